// Package recalcengine propagates a balance delta through every transaction
// after an edited one.
package recalcengine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/minibank/ledger-api/internal/domain"
)

// Repo provides data access layer interface needed by the recalculation engine.
//
//go:generate mockgen -source engine.go -destination engine_mock.go -package recalcengine
type Repo interface {
	Get(ctx context.Context, id int64) (domain.Transaction, error)
	ListAfter(ctx context.Context, after domain.Transaction) ([]domain.Transaction, error)
	UpdateBalance(ctx context.Context, id int64, balanceAfter string) error
	GetAccount(ctx context.Context) (domain.BankAccount, error)
	UpdateAccountBalance(ctx context.Context, id int32, balance string) error
}

// Cache provides the balance cache interface needed by the engine.
type Cache interface {
	Get(key string) (string, bool)
	Set(key, value string, ttl time.Duration)
	Delete(key string)
}

// Engine recomputes downstream balance_after values after a price edit.
type Engine struct {
	repo     Repo
	cache    Cache
	cacheTTL time.Duration
}

// New returns an engine writing cache entries with the given TTL.
func New(repo Repo, cache Cache, cacheTTL time.Duration) *Engine {
	return &Engine{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

// Recalculate applies balanceChange to every transaction strictly after the
// edited one, in (date, id) order. The edited transaction's own balance is
// assumed already updated by the caller and seeds the running balance.
//
// Per transaction, a cached last-known balance shortcuts recomputation:
// under a single outstanding edit every downstream balance shifts by the
// same delta, so cached + balanceChange equals the authoritative value.
// With no cache entry the engine falls back to running + signed amount.
// Rows already written before a storage failure stay committed.
func (e *Engine) Recalculate(ctx context.Context, transactionID int64, balanceChange string) (domain.RecalculateResult, error) {
	l := zerolog.Ctx(ctx)

	change, err := decimal.NewFromString(balanceChange)
	if err != nil {
		l.Error().Err(err).Str("balance_change", balanceChange).Msg("bad balance change")
		return domain.RecalculateResult{}, err
	}

	edited, err := e.repo.Get(ctx, transactionID)
	if err != nil {
		return domain.RecalculateResult{}, err
	}

	running, err := decimal.NewFromString(edited.BalanceAfter)
	if err != nil {
		return domain.RecalculateResult{}, err
	}

	subsequent, err := e.repo.ListAfter(ctx, edited)
	if err != nil {
		return domain.RecalculateResult{}, err
	}

	var result domain.RecalculateResult

	for _, tx := range subsequent {
		current, ok := e.cachedBalance(tx.ID)
		if ok {
			running = current.Add(change)
		} else {
			amount, err := tx.SignedAmount()
			if err != nil {
				return result, err
			}

			running = running.Add(amount)
		}

		if err := e.repo.UpdateBalance(ctx, tx.ID, running.String()); err != nil {
			return result, err
		}

		e.cache.Set(domain.BalanceCacheKey(tx.ID), running.String(), e.cacheTTL)
		result.UpdatedCount++
	}

	// The account balance tracks the last transaction in order. With no
	// subsequent transactions the edited row is the last one.
	account, err := e.repo.GetAccount(ctx)
	if err != nil {
		return result, err
	}

	if err := e.repo.UpdateAccountBalance(ctx, account.ID, running.String()); err != nil {
		return result, err
	}

	l.Info().
		Int64("transaction_id", transactionID).
		Int("updated_count", result.UpdatedCount).
		Msg("balances recalculated")

	return result, nil
}

// cachedBalance reads a transaction's last-known balance. Unparseable entries
// are dropped and treated as absent.
func (e *Engine) cachedBalance(transactionID int64) (decimal.Decimal, bool) {
	key := domain.BalanceCacheKey(transactionID)

	raw, ok := e.cache.Get(key)
	if !ok {
		return decimal.Decimal{}, false
	}

	value, err := decimal.NewFromString(raw)
	if err != nil {
		e.cache.Delete(key)
		return decimal.Decimal{}, false
	}

	return value, true
}

// Handler adapts the engine to a job queue handler for
// domain.JobTypeRecalculateBalances.
func (e *Engine) Handler() func(ctx context.Context, payload any) (any, error) {
	return func(ctx context.Context, payload any) (any, error) {
		p, ok := payload.(domain.RecalculatePayload)
		if !ok {
			return nil, fmt.Errorf("unexpected payload type %T", payload)
		}

		return e.Recalculate(ctx, p.TransactionID, p.BalanceChange)
	}
}
