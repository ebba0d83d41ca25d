// Package domain provides defenitions of all entities.
package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrTransactionNotFound indicates that the transaction is not found.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrInvalidPrice indicates that the given price is not a positive number.
	ErrInvalidPrice = errors.New("price must be a positive number")
)

// TransactionType tells whether a transaction adds to or subtracts from the balance.
type TransactionType string

const (
	// Income increases the account balance.
	Income TransactionType = "income"
	// Expense decreases the account balance.
	Expense TransactionType = "expense"
)

// Transaction holds a single ledger entry. BalanceAfter is derived:
// it must equal the previous transaction's BalanceAfter plus the signed price.
// Transactions are ordered by date, ties broken by id.
type Transaction struct {
	ID           int64           `json:"id"`
	Date         time.Time       `json:"date"`
	Type         TransactionType `json:"type"`
	Price        string          `json:"price"` // must be positive
	BalanceAfter string          `json:"balance_after"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// SignedAmount returns the price as a signed decimal: positive for income,
// negative for expense.
func (t Transaction) SignedAmount() (decimal.Decimal, error) {
	price, err := decimal.NewFromString(t.Price)
	if err != nil {
		return decimal.Decimal{}, err
	}

	if t.Type == Expense {
		return price.Neg(), nil
	}

	return price, nil
}

// UpdateTransactionParams holds the fields changed by a price edit.
type UpdateTransactionParams struct {
	ID           int64
	Price        string
	BalanceAfter string
}

// CreateTransactionParams holds data needed for transaction creation.
type CreateTransactionParams struct {
	Date         time.Time       `json:"date"`
	Type         TransactionType `json:"type"`
	Price        string          `json:"price"`
	BalanceAfter string          `json:"balance_after"`
}

// BalanceCacheKey returns the balance cache key for the given transaction id.
func BalanceCacheKey(transactionID int64) string {
	return fmt.Sprintf("transaction:%d:balance", transactionID)
}

// BalanceCachePrefix covers every transaction balance cache entry.
const BalanceCachePrefix = "transaction:"
