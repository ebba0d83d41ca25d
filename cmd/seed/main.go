// Package main seeds the database with a bank account and a year of transactions.
package main

import (
	"context"
	"errors"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/minibank/ledger-api/internal/domain"
	"github.com/minibank/ledger-api/internal/middleware"
	"github.com/minibank/ledger-api/internal/transactionrepo"
	"github.com/minibank/ledger-api/pkg/configpkg"
	"github.com/minibank/ledger-api/pkg/dbpkg"
	"github.com/minibank/ledger-api/pkg/randompkg"

	_ "github.com/lib/pq"
)

const (
	transactionCount = 10000
	seedDays         = 365
	chunkSize        = 500
	accountName      = "Main account"
)

func main() {
	config, err := configpkg.Load("./configs")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	logger := middleware.GetLogger(config)

	db, err := dbpkg.Setup(config.DBDriver, config.DBSource)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot connect to database")
	}
	defer db.Close()

	ctx := context.Background()

	account, err := transactionrepo.NewRepoPGS(db).GetAccount(ctx)
	if errors.Is(err, domain.ErrAccountNotFound) {
		account, err = transactionrepo.NewRepoPGS(db).CreateAccount(ctx, accountName, "0")
	}

	if err != nil {
		logger.Fatal().Err(err).Msg("cannot prepare bank account")
	}

	params := make([]domain.CreateTransactionParams, 0, transactionCount)
	for i := 0; i < transactionCount; i++ {
		params = append(params, domain.CreateTransactionParams{
			Date:  randompkg.DateWithinDays(seedDays),
			Type:  randompkg.TransactionType(),
			Price: randompkg.MoneyAmountBetween(10, 1000),
		})
	}

	sort.Slice(params, func(i, j int) bool {
		return params[i].Date.Before(params[j].Date)
	})

	balance := decimal.Zero

	for i := range params {
		price, err := decimal.NewFromString(params[i].Price)
		if err != nil {
			logger.Fatal().Err(err).Msg("cannot parse generated price")
		}

		if params[i].Type == domain.Expense {
			price = price.Neg()
		}

		balance = balance.Add(price)
		params[i].BalanceAfter = balance.String()
	}

	// CopyIn needs an open transaction.
	tx, err := db.Begin()
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot begin transaction")
	}

	repo := transactionrepo.NewRepoPGS(tx)

	for start := 0; start < len(params); start += chunkSize {
		end := start + chunkSize
		if end > len(params) {
			end = len(params)
		}

		if err := repo.CreateMany(ctx, params[start:end]); err != nil {
			_ = tx.Rollback()
			logger.Fatal().Err(err).Msg("cannot insert transactions")
		}
	}

	if err := repo.UpdateAccountBalance(ctx, account.ID, balance.String()); err != nil {
		_ = tx.Rollback()
		logger.Fatal().Err(err).Msg("cannot update account balance")
	}

	if err := tx.Commit(); err != nil {
		logger.Fatal().Err(err).Msg("cannot commit seed")
	}

	logger.Info().
		Int("transactions", transactionCount).
		Str("balance", balance.String()).
		Msg("seed finished")
}
