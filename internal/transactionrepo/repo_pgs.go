// Package transactionrepo manages repository layer of ledger transactions.
package transactionrepo

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/minibank/ledger-api/internal/domain"
	"github.com/minibank/ledger-api/pkg/dbpkg"
	"github.com/minibank/ledger-api/pkg/errorspkg"
)

// RepoPGS facilitates transaction repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns transaction RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

const getQuery = `
SELECT
	id, date, type, price, balance_after, created_at, updated_at
FROM transactions
WHERE id = $1
`

// Get returns the transaction with the given id.
func (r *RepoPGS) Get(ctx context.Context, id int64) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, getQuery, id)

	tx, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return tx, domain.ErrTransactionNotFound
		}

		l.Error().Err(err).Send()

		return tx, errorspkg.ErrInternal
	}

	return tx, nil
}

const findPreviousQuery = `
SELECT
	id, date, type, price, balance_after, created_at, updated_at
FROM transactions
WHERE (date, id) < ($1, $2)
ORDER BY date DESC, id DESC
LIMIT 1
`

// FindPrevious returns the transaction immediately before the given one in
// (date, id) order, or ErrTransactionNotFound if it is the first one.
func (r *RepoPGS) FindPrevious(ctx context.Context, tx domain.Transaction) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, findPreviousQuery, tx.Date, tx.ID)

	prev, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return prev, domain.ErrTransactionNotFound
		}

		l.Error().Err(err).Send()

		return prev, errorspkg.ErrInternal
	}

	return prev, nil
}

const listAfterQuery = `
SELECT
	id, date, type, price, balance_after, created_at, updated_at
FROM transactions
WHERE (date, id) > ($1, $2)
ORDER BY date, id
`

// ListAfter returns every transaction strictly after the given one in
// (date, id) order.
func (r *RepoPGS) ListAfter(ctx context.Context, after domain.Transaction) ([]domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listAfterQuery, after.Date, after.ID)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	return collectTransactions(l, rows)
}

const listQuery = `
SELECT
	id, date, type, price, balance_after, created_at, updated_at
FROM transactions
ORDER BY date, id
LIMIT $1 OFFSET $2
`

// List returns the specified page of transactions in (date, id) order.
func (r *RepoPGS) List(ctx context.Context, limit, offset int32) ([]domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listQuery, limit, offset)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	return collectTransactions(l, rows)
}

const updateQuery = `
UPDATE transactions
SET price = $1, balance_after = $2, updated_at = now()
WHERE id = $3
RETURNING id, date, type, price, balance_after, created_at, updated_at
`

// Update sets the transaction's price and balance and returns the changed row.
func (r *RepoPGS) Update(ctx context.Context, arg domain.UpdateTransactionParams) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, updateQuery, arg.Price, arg.BalanceAfter, arg.ID)

	tx, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return tx, domain.ErrTransactionNotFound
		}

		l.Error().Err(err).Send()

		return tx, errorspkg.ErrInternal
	}

	return tx, nil
}

const updateBalanceQuery = `
UPDATE transactions
SET balance_after = $1, updated_at = now()
WHERE id = $2
`

// UpdateBalance sets only the transaction's balance.
func (r *RepoPGS) UpdateBalance(ctx context.Context, id int64, balanceAfter string) error {
	l := zerolog.Ctx(ctx)

	res, err := r.db.ExecContext(ctx, updateBalanceQuery, balanceAfter, id)
	if err != nil {
		l.Error().Err(err).Send()
		return errorspkg.ErrInternal
	}

	affected, err := res.RowsAffected()
	if err != nil {
		l.Error().Err(err).Send()
		return errorspkg.ErrInternal
	}

	if affected == 0 {
		return domain.ErrTransactionNotFound
	}

	return nil
}

// CreateMany bulk-inserts transactions with pq.CopyIn.
func (r *RepoPGS) CreateMany(ctx context.Context, args []domain.CreateTransactionParams) error {
	l := zerolog.Ctx(ctx)

	stmt, err := r.db.PrepareContext(ctx, pq.CopyIn("transactions", "date", "type", "price", "balance_after"))
	if err != nil {
		l.Error().Err(err).Send()
		return errorspkg.ErrInternal
	}

	for _, arg := range args {
		if _, err := stmt.ExecContext(ctx, arg.Date, string(arg.Type), arg.Price, arg.BalanceAfter); err != nil {
			l.Error().Err(err).Send()
			stmt.Close()

			return errorspkg.ErrInternal
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		l.Error().Err(err).Send()
		stmt.Close()

		return errorspkg.ErrInternal
	}

	if err := stmt.Close(); err != nil {
		l.Error().Err(err).Send()
		return errorspkg.ErrInternal
	}

	return nil
}

const getAccountQuery = `
SELECT
	id, account_name, balance, created_at, updated_at
FROM bank_accounts
ORDER BY id
LIMIT 1
`

// GetAccount returns the main bank account.
func (r *RepoPGS) GetAccount(ctx context.Context) (domain.BankAccount, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, getAccountQuery)

	var a domain.BankAccount

	err := row.Scan(
		&a.ID,
		&a.AccountName,
		&a.Balance,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return a, domain.ErrAccountNotFound
		}

		l.Error().Err(err).Send()

		return a, errorspkg.ErrInternal
	}

	return a, nil
}

const createAccountQuery = `
INSERT INTO
    bank_accounts (account_name, balance)
VALUES
    ($1, $2)
RETURNING id, account_name, balance, created_at, updated_at
`

// CreateAccount creates the bank account and then returns it.
func (r *RepoPGS) CreateAccount(ctx context.Context, accountName, balance string) (domain.BankAccount, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, createAccountQuery, accountName, balance)

	var a domain.BankAccount

	err := row.Scan(
		&a.ID,
		&a.AccountName,
		&a.Balance,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	if err != nil {
		l.Error().Err(err).Send()
		return a, errorspkg.ErrInternal
	}

	return a, nil
}

const updateAccountBalanceQuery = `
UPDATE bank_accounts
SET balance = $1, updated_at = now()
WHERE id = $2
`

// UpdateAccountBalance sets the account's balance.
func (r *RepoPGS) UpdateAccountBalance(ctx context.Context, id int32, balance string) error {
	l := zerolog.Ctx(ctx)

	res, err := r.db.ExecContext(ctx, updateAccountBalanceQuery, balance, id)
	if err != nil {
		l.Error().Err(err).Send()
		return errorspkg.ErrInternal
	}

	affected, err := res.RowsAffected()
	if err != nil {
		l.Error().Err(err).Send()
		return errorspkg.ErrInternal
	}

	if affected == 0 {
		return domain.ErrAccountNotFound
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (domain.Transaction, error) {
	var tx domain.Transaction

	err := row.Scan(
		&tx.ID,
		&tx.Date,
		&tx.Type,
		&tx.Price,
		&tx.BalanceAfter,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)

	return tx, err
}

func collectTransactions(l *zerolog.Logger, rows *sql.Rows) ([]domain.Transaction, error) {
	items := []domain.Transaction{}

	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, tx)
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	return items, nil
}
