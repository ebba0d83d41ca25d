package transactionservice

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/minibank/ledger-api/internal/domain"
	"github.com/minibank/ledger-api/pkg/errorspkg"
)

const testCacheTTL = time.Hour

func day(offset int) time.Time {
	return time.Date(2024, time.March, 1+offset, 0, 0, 0, 0, time.UTC)
}

func TestEditPrice(t *testing.T) {
	t1 := domain.Transaction{ID: 1, Date: day(0), Type: domain.Income, Price: "100", BalanceAfter: "100"}
	t2 := domain.Transaction{ID: 2, Date: day(1), Type: domain.Expense, Price: "40", BalanceAfter: "60"}

	testJob := domain.Job{ID: "job-1", Type: domain.JobTypeRecalculateBalances, Status: domain.JobPending}

	type input struct {
		id    int64
		price string
	}

	testCases := []struct {
		name          string
		input         input
		buildStubs    func(repo *MockRepo, queue *MockQueue, cache *MockCache)
		checkResponse func(tx domain.Transaction, jobID string, err error)
	}{
		{
			name:  "Invalid price",
			input: input{id: 1, price: "!@#$"},
			buildStubs: func(repo *MockRepo, queue *MockQueue, cache *MockCache) {
				repo.EXPECT().Get(gomock.Any(), gomock.Any()).Times(0)
				repo.EXPECT().Update(gomock.Any(), gomock.Any()).Times(0)
				queue.EXPECT().Submit(gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(tx domain.Transaction, jobID string, err error) {
				require.Empty(t, tx)
				require.Empty(t, jobID)
				require.ErrorIs(t, err, domain.ErrInvalidPrice)
			},
		},
		{
			name:  "Negative price",
			input: input{id: 1, price: "-5"},
			buildStubs: func(repo *MockRepo, queue *MockQueue, cache *MockCache) {
				repo.EXPECT().Get(gomock.Any(), gomock.Any()).Times(0)
				repo.EXPECT().Update(gomock.Any(), gomock.Any()).Times(0)
				queue.EXPECT().Submit(gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(tx domain.Transaction, jobID string, err error) {
				require.Empty(t, jobID)
				require.ErrorIs(t, err, domain.ErrInvalidPrice)
			},
		},
		{
			name:  "Zero price",
			input: input{id: 1, price: "0"},
			buildStubs: func(repo *MockRepo, queue *MockQueue, cache *MockCache) {
				repo.EXPECT().Get(gomock.Any(), gomock.Any()).Times(0)
				queue.EXPECT().Submit(gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(tx domain.Transaction, jobID string, err error) {
				require.ErrorIs(t, err, domain.ErrInvalidPrice)
			},
		},
		{
			name:  "Transaction not found",
			input: input{id: 9999, price: "150"},
			buildStubs: func(repo *MockRepo, queue *MockQueue, cache *MockCache) {
				repo.EXPECT().Get(gomock.Any(), gomock.Eq(int64(9999))).
					Times(1).
					Return(domain.Transaction{}, domain.ErrTransactionNotFound)
				repo.EXPECT().Update(gomock.Any(), gomock.Any()).Times(0)
				queue.EXPECT().Submit(gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(tx domain.Transaction, jobID string, err error) {
				require.Empty(t, jobID)
				require.ErrorIs(t, err, domain.ErrTransactionNotFound)
			},
		},
		{
			name:  "Expense edit seeds from previous balance",
			input: input{id: 2, price: "50"},
			buildStubs: func(repo *MockRepo, queue *MockQueue, cache *MockCache) {
				// Editing expense T2 from 40 to 50: delta is -10,
				// new balance is 100 - 50 = 50.
				repo.EXPECT().Get(gomock.Any(), gomock.Eq(int64(2))).
					Times(1).
					Return(t2, nil)
				repo.EXPECT().FindPrevious(gomock.Any(), gomock.Eq(t2)).
					Times(1).
					Return(t1, nil)
				repo.EXPECT().Update(gomock.Any(), gomock.Eq(domain.UpdateTransactionParams{
					ID:           2,
					Price:        "50",
					BalanceAfter: "50",
				})).
					Times(1).
					Return(domain.Transaction{ID: 2, Date: day(1), Type: domain.Expense, Price: "50", BalanceAfter: "50"}, nil)
				cache.EXPECT().Set(domain.BalanceCacheKey(2), "50", testCacheTTL).Times(1)
				queue.EXPECT().Submit(domain.JobTypeRecalculateBalances, domain.RecalculatePayload{
					TransactionID: 2,
					BalanceChange: "-10",
				}).
					Times(1).
					Return(testJob, nil)
			},
			checkResponse: func(tx domain.Transaction, jobID string, err error) {
				require.NoError(t, err)
				require.Equal(t, "job-1", jobID)
				require.Equal(t, "50", tx.Price)
				require.Equal(t, "50", tx.BalanceAfter)
			},
		},
		{
			name:  "First transaction seeds from opening balance",
			input: input{id: 1, price: "150"},
			buildStubs: func(repo *MockRepo, queue *MockQueue, cache *MockCache) {
				repo.EXPECT().Get(gomock.Any(), gomock.Eq(int64(1))).
					Times(1).
					Return(t1, nil)
				repo.EXPECT().FindPrevious(gomock.Any(), gomock.Eq(t1)).
					Times(1).
					Return(domain.Transaction{}, domain.ErrTransactionNotFound)
				repo.EXPECT().Update(gomock.Any(), gomock.Eq(domain.UpdateTransactionParams{
					ID:           1,
					Price:        "150",
					BalanceAfter: "150",
				})).
					Times(1).
					Return(domain.Transaction{ID: 1, Date: day(0), Type: domain.Income, Price: "150", BalanceAfter: "150"}, nil)
				cache.EXPECT().Set(domain.BalanceCacheKey(1), "150", testCacheTTL).Times(1)
				queue.EXPECT().Submit(domain.JobTypeRecalculateBalances, domain.RecalculatePayload{
					TransactionID: 1,
					BalanceChange: "50",
				}).
					Times(1).
					Return(testJob, nil)
			},
			checkResponse: func(tx domain.Transaction, jobID string, err error) {
				require.NoError(t, err)
				require.Equal(t, "job-1", jobID)
				require.Equal(t, "150", tx.BalanceAfter)
			},
		},
		{
			name:  "Update fails",
			input: input{id: 1, price: "150"},
			buildStubs: func(repo *MockRepo, queue *MockQueue, cache *MockCache) {
				repo.EXPECT().Get(gomock.Any(), gomock.Eq(int64(1))).
					Times(1).
					Return(t1, nil)
				repo.EXPECT().FindPrevious(gomock.Any(), gomock.Eq(t1)).
					Times(1).
					Return(domain.Transaction{}, domain.ErrTransactionNotFound)
				repo.EXPECT().Update(gomock.Any(), gomock.Any()).
					Times(1).
					Return(domain.Transaction{}, errorspkg.ErrInternal)
				queue.EXPECT().Submit(gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(tx domain.Transaction, jobID string, err error) {
				require.Empty(t, jobID)
				require.ErrorIs(t, err, errorspkg.ErrInternal)
			},
		},
	}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)

			repo := NewMockRepo(ctrl)
			queue := NewMockQueue(ctrl)
			cache := NewMockCache(ctrl)
			tc.buildStubs(repo, queue, cache)

			service := New(repo, queue, cache, testCacheTTL)

			tx, jobID, err := service.EditPrice(context.Background(), tc.input.id, tc.input.price)
			tc.checkResponse(tx, jobID, err)
		})
	}
}

func TestList(t *testing.T) {
	ctrl := gomock.NewController(t)

	repo := NewMockRepo(ctrl)
	queue := NewMockQueue(ctrl)
	cache := NewMockCache(ctrl)

	want := []domain.Transaction{{ID: 11}, {ID: 12}}

	repo.EXPECT().List(gomock.Any(), int32(10), int32(20)).
		Times(1).
		Return(want, nil)

	service := New(repo, queue, cache, testCacheTTL)

	got, err := service.List(context.Background(), 3, 10)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestGet(t *testing.T) {
	ctrl := gomock.NewController(t)

	repo := NewMockRepo(ctrl)
	queue := NewMockQueue(ctrl)
	cache := NewMockCache(ctrl)

	want := domain.Transaction{ID: 7, Type: domain.Income, Price: "10", BalanceAfter: "10"}

	repo.EXPECT().Get(gomock.Any(), int64(7)).
		Times(1).
		Return(want, nil)

	service := New(repo, queue, cache, testCacheTTL)

	got, err := service.Get(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, want, got)
}
