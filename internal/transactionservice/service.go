// Package transactionservice manages business logic layer of transactions.
package transactionservice

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/minibank/ledger-api/internal/domain"
)

// Repo provides data access layer interface needed by transaction service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package transactionservice
type Repo interface {
	Get(ctx context.Context, id int64) (domain.Transaction, error)
	FindPrevious(ctx context.Context, tx domain.Transaction) (domain.Transaction, error)
	Update(ctx context.Context, arg domain.UpdateTransactionParams) (domain.Transaction, error)
	List(ctx context.Context, limit, offset int32) ([]domain.Transaction, error)
}

// Queue provides the job submission interface needed by the service.
type Queue interface {
	Submit(jobType string, payload any) (domain.Job, error)
}

// Cache provides the balance cache interface needed by the service.
type Cache interface {
	Set(key, value string, ttl time.Duration)
}

// Service facilitates transaction service layer logic.
type Service struct {
	repo     Repo
	queue    Queue
	cache    Cache
	cacheTTL time.Duration
}

// New returns transaction service struct to manage transaction bussines logic.
func New(repo Repo, queue Queue, cache Cache, cacheTTL time.Duration) *Service {
	return &Service{
		repo:     repo,
		queue:    queue,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

// Get returns the transaction for the given ID.
func (s *Service) Get(ctx context.Context, id int64) (domain.Transaction, error) {
	return s.repo.Get(ctx, id)
}

// List returns the requested page of transactions in ledger order.
func (s *Service) List(ctx context.Context, page, limit int32) ([]domain.Transaction, error) {
	offset := (page - 1) * limit

	return s.repo.List(ctx, limit, offset)
}

// EditPrice changes the transaction's price, updates its own balance
// synchronously and submits an asynchronous job that propagates the balance
// delta through every later transaction. It returns the updated transaction
// and the job id to poll for propagation completeness.
func (s *Service) EditPrice(ctx context.Context, id int64, price string) (domain.Transaction, string, error) {
	l := zerolog.Ctx(ctx)

	newPrice, err := decimal.NewFromString(price)
	if err != nil {
		l.Info().Err(err).Str("price", price).Msg("rejecting edit")
		return domain.Transaction{}, "", domain.ErrInvalidPrice
	}

	if newPrice.LessThanOrEqual(decimal.Zero) {
		return domain.Transaction{}, "", domain.ErrInvalidPrice
	}

	tx, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Transaction{}, "", err
	}

	oldPrice, err := decimal.NewFromString(tx.Price)
	if err != nil {
		l.Error().Err(err).Send()
		return domain.Transaction{}, "", err
	}

	priceDifference := newPrice.Sub(oldPrice)

	balanceChange := priceDifference
	if tx.Type == domain.Expense {
		balanceChange = priceDifference.Neg()
	}

	// The edited row's new balance is seeded from the previous transaction;
	// the first transaction starts from the account's opening balance of zero.
	previousBalance := decimal.Zero

	prev, err := s.repo.FindPrevious(ctx, tx)
	switch {
	case err == nil:
		previousBalance, err = decimal.NewFromString(prev.BalanceAfter)
		if err != nil {
			l.Error().Err(err).Send()
			return domain.Transaction{}, "", err
		}
	case errors.Is(err, domain.ErrTransactionNotFound):
	default:
		return domain.Transaction{}, "", err
	}

	balanceAfter := previousBalance.Add(newPrice)
	if tx.Type == domain.Expense {
		balanceAfter = previousBalance.Sub(newPrice)
	}

	updated, err := s.repo.Update(ctx, domain.UpdateTransactionParams{
		ID:           id,
		Price:        newPrice.String(),
		BalanceAfter: balanceAfter.String(),
	})
	if err != nil {
		return domain.Transaction{}, "", err
	}

	s.cache.Set(domain.BalanceCacheKey(id), balanceAfter.String(), s.cacheTTL)

	job, err := s.queue.Submit(domain.JobTypeRecalculateBalances, domain.RecalculatePayload{
		TransactionID: id,
		BalanceChange: balanceChange.String(),
	})
	if err != nil {
		return domain.Transaction{}, "", err
	}

	l.Info().
		Int64("transaction_id", id).
		Str("balance_change", balanceChange.String()).
		Str("job_id", job.ID).
		Msg("price edited, recalculation queued")

	return updated, job.ID, nil
}
