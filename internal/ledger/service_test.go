package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/jangbu-erp/jangbu-erp/internal/shared"
)

type memReadRepo struct {
	entries []Entry
	opening int64

	listCalls    int
	balanceCalls int
	rangeCalls   int

	// Error injection for repository failures.
	listErr    error
	balanceErr error
	rangeErr   error
}

func (m *memReadRepo) List(_ context.Context, scope Scope, page shared.Page) ([]Entry, error) {
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []Entry
	for _, e := range m.entries {
		if e.Scope() == scope {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memReadRepo) LatestBalance(_ context.Context, scope Scope) (int64, error) {
	m.balanceCalls++
	if m.balanceErr != nil {
		return 0, m.balanceErr
	}
	var balance int64
	for _, e := range m.entries {
		if e.Scope() == scope {
			balance = e.Balance
		}
	}
	return balance, nil
}

func (m *memReadRepo) Range(_ context.Context, scope Scope, from, to time.Time) (int64, []Entry, error) {
	m.rangeCalls++
	if m.rangeErr != nil {
		return 0, nil, m.rangeErr
	}
	var out []Entry
	for _, e := range m.entries {
		if e.Scope() != scope || e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		out = append(out, e)
	}
	return m.opening, out, nil
}

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func serviceScope() Scope {
	return Scope{Kind: KindReceivable, BizUnit: "HQ", Counterparty: "CP-300"}
}

func TestServiceBalanceCachesResult(t *testing.T) {
	ctx := context.Background()
	scope := serviceScope()
	repo := &memReadRepo{entries: []Entry{{
		Kind: scope.Kind, BizUnit: scope.BizUnit, Counterparty: scope.Counterparty,
		Date: day(1), Number: 1, Balance: 42000,
	}}}
	svc := NewService(repo, testRedis(t))

	balance, err := svc.Balance(ctx, scope)
	require.NoError(t, err)
	require.Equal(t, int64(42000), balance)

	balance, err = svc.Balance(ctx, scope)
	require.NoError(t, err)
	require.Equal(t, int64(42000), balance)
	require.Equal(t, 1, repo.balanceCalls)
}

func TestServiceInvalidateBalanceDropsCache(t *testing.T) {
	ctx := context.Background()
	scope := serviceScope()
	repo := &memReadRepo{entries: []Entry{{
		Kind: scope.Kind, BizUnit: scope.BizUnit, Counterparty: scope.Counterparty,
		Date: day(1), Number: 1, Balance: 100,
	}}}
	svc := NewService(repo, testRedis(t))

	_, err := svc.Balance(ctx, scope)
	require.NoError(t, err)

	repo.entries[0].Balance = 250
	svc.InvalidateBalance(ctx, scope)

	balance, err := svc.Balance(ctx, scope)
	require.NoError(t, err)
	require.Equal(t, int64(250), balance)
	require.Equal(t, 2, repo.balanceCalls)
}

func TestServiceBalanceWorksWithoutCache(t *testing.T) {
	scope := serviceScope()
	repo := &memReadRepo{entries: []Entry{{
		Kind: scope.Kind, BizUnit: scope.BizUnit, Counterparty: scope.Counterparty,
		Date: day(1), Number: 1, Balance: 7,
	}}}
	svc := NewService(repo, nil)

	balance, err := svc.Balance(context.Background(), scope)
	require.NoError(t, err)
	require.Equal(t, int64(7), balance)
}

func TestServiceGetStatement(t *testing.T) {
	scope := serviceScope()
	repo := &memReadRepo{
		opening: 10000,
		entries: []Entry{
			{Kind: scope.Kind, BizUnit: scope.BizUnit, Counterparty: scope.Counterparty,
				Date: day(3), Number: 1, Amount: 5000, Balance: 15000},
			{Kind: scope.Kind, BizUnit: scope.BizUnit, Counterparty: scope.Counterparty,
				Date: day(7), Number: 1, Amount: -2000, Balance: 13000},
		},
	}
	svc := NewService(repo, nil)

	stmt, err := svc.GetStatement(context.Background(), scope, day(1), day(31))
	require.NoError(t, err)
	require.Equal(t, int64(10000), stmt.Opening)
	require.Equal(t, int64(3000), stmt.Total)
	require.Equal(t, int64(13000), stmt.Closing)
	require.Len(t, stmt.Entries, 2)
}

func TestServiceGetStatementRejectsInvertedRange(t *testing.T) {
	svc := NewService(&memReadRepo{}, nil)
	_, err := svc.GetStatement(context.Background(), serviceScope(), day(10), day(1))
	require.ErrorIs(t, err, ErrInvalidScope)
}

func TestServiceRejectsInvalidScope(t *testing.T) {
	svc := NewService(&memReadRepo{}, nil)
	ctx := context.Background()

	_, err := svc.Balance(ctx, Scope{Kind: "EQUITY", Counterparty: "CP-1"})
	require.ErrorIs(t, err, ErrInvalidScope)

	_, err = svc.List(ctx, Scope{Kind: KindPayable}, shared.Page{})
	require.ErrorIs(t, err, ErrInvalidScope)
}
