package domain

import (
	"errors"
	"time"
)

var (
	// ErrAccountNotFound indicates that the bank account is not found.
	ErrAccountNotFound = errors.New("account not found")
)

// BankAccount is the aggregate root owning the transaction sequence.
// Balance equals BalanceAfter of the last transaction in order.
type BankAccount struct {
	ID          int32     `json:"id"`
	AccountName string    `json:"account_name"`
	Balance     string    `json:"balance"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
