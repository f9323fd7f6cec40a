package ledger

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// memTxRepo is an in-memory TxRepository keeping entries in chronological
// order, mirroring the row-tuple comparisons the SQL implementation uses.
type memTxRepo struct {
	entries       []Entry
	nextID        int64
	closedThrough map[Scope]time.Time

	insertErr error
	updateErr error
}

func newMemTxRepo() *memTxRepo {
	return &memTxRepo{nextID: 1, closedThrough: make(map[Scope]time.Time)}
}

func (m *memTxRepo) sorted(scope Scope) []Entry {
	var out []Entry
	for _, e := range m.entries {
		if e.Scope() == scope {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key()) })
	return out
}

func (m *memTxRepo) LatestBefore(_ context.Context, scope Scope, key SortKey) (*Entry, error) {
	var prior *Entry
	for _, e := range m.sorted(scope) {
		if e.Key().Less(key) {
			e := e
			prior = &e
		}
	}
	return prior, nil
}

func (m *memTxRepo) ListAfter(_ context.Context, scope Scope, key SortKey) ([]Entry, error) {
	var out []Entry
	for _, e := range m.sorted(scope) {
		if key.Less(e.Key()) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memTxRepo) Insert(_ context.Context, entry Entry) (Entry, error) {
	if m.insertErr != nil {
		return Entry{}, m.insertErr
	}
	entry.ID = m.nextID
	m.nextID++
	entry.CreatedAt = time.Now()
	m.entries = append(m.entries, entry)
	return entry, nil
}

func (m *memTxRepo) Delete(_ context.Context, scope Scope, date time.Time, number int64) (*Entry, error) {
	for i, e := range m.entries {
		if e.Scope() == scope && e.Date.Equal(date) && e.Number == number {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return &e, nil
		}
	}
	return nil, nil
}

func (m *memTxRepo) UpdateBalance(_ context.Context, id int64, balance int64) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	for i := range m.entries {
		if m.entries[i].ID == id {
			m.entries[i].Balance = balance
			return nil
		}
	}
	return ErrEntryNotFound
}

func (m *memTxRepo) SnapshotCovers(_ context.Context, scope Scope, date time.Time) (bool, error) {
	boundary, ok := m.closedThrough[scope]
	if !ok {
		return false, nil
	}
	return !date.After(boundary), nil
}

func (m *memTxRepo) balances(scope Scope) []int64 {
	var out []int64
	for _, e := range m.sorted(scope) {
		out = append(out, e.Balance)
	}
	return out
}

func day(d int) time.Time {
	return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
}

func testScope() Scope {
	return Scope{Kind: KindPayable, BizUnit: "HQ", Counterparty: "CP-100"}
}

func TestUpdaterAppendChainsBalances(t *testing.T) {
	ctx := context.Background()
	repo := newMemTxRepo()
	scope := testScope()
	var up Updater

	first, err := up.Append(ctx, repo, Entry{
		Kind: scope.Kind, BizUnit: scope.BizUnit, Counterparty: scope.Counterparty,
		Date: day(1), Number: 1, TxTime: "09:00:00", Amount: 11000,
	})
	require.NoError(t, err)
	require.Equal(t, int64(11000), first.Balance)

	second, err := up.Append(ctx, repo, Entry{
		Kind: scope.Kind, BizUnit: scope.BizUnit, Counterparty: scope.Counterparty,
		Date: day(2), Number: 1, TxTime: "10:00:00", Amount: -5000,
	})
	require.NoError(t, err)
	require.Equal(t, int64(6000), second.Balance)

	require.Equal(t, []int64{11000, 6000}, repo.balances(scope))
}

func TestUpdaterAppendLateArrivalRechainsLaterEntries(t *testing.T) {
	ctx := context.Background()
	repo := newMemTxRepo()
	scope := testScope()
	var up Updater

	for d, amount := range map[int]int64{1: 10000, 5: 20000, 9: 30000} {
		_, err := up.Append(ctx, repo, Entry{
			Kind: scope.Kind, BizUnit: scope.BizUnit, Counterparty: scope.Counterparty,
			Date: day(d), Number: 1, TxTime: "09:00:00", Amount: amount,
		})
		require.NoError(t, err)
	}

	// A backdated entry lands between day 1 and day 5.
	inserted, err := up.Append(ctx, repo, Entry{
		Kind: scope.Kind, BizUnit: scope.BizUnit, Counterparty: scope.Counterparty,
		Date: day(3), Number: 1, TxTime: "14:00:00", Amount: 5000,
	})
	require.NoError(t, err)
	require.Equal(t, int64(15000), inserted.Balance)
	require.Equal(t, []int64{10000, 15000, 35000, 65000}, repo.balances(scope))
}

func TestUpdaterAppendSameDateOrdersByNumberThenTime(t *testing.T) {
	ctx := context.Background()
	repo := newMemTxRepo()
	scope := testScope()
	var up Updater

	_, err := up.Append(ctx, repo, Entry{
		Kind: scope.Kind, BizUnit: scope.BizUnit, Counterparty: scope.Counterparty,
		Date: day(1), Number: 2, TxTime: "15:00:00", Amount: 200,
	})
	require.NoError(t, err)

	first, err := up.Append(ctx, repo, Entry{
		Kind: scope.Kind, BizUnit: scope.BizUnit, Counterparty: scope.Counterparty,
		Date: day(1), Number: 1, TxTime: "09:00:00", Amount: 100,
	})
	require.NoError(t, err)
	require.Equal(t, int64(100), first.Balance)
	require.Equal(t, []int64{100, 300}, repo.balances(scope))
}

func TestUpdaterAppendRejectsClosedPeriod(t *testing.T) {
	ctx := context.Background()
	repo := newMemTxRepo()
	scope := testScope()
	repo.closedThrough[scope] = day(31)
	var up Updater

	_, err := up.Append(ctx, repo, Entry{
		Kind: scope.Kind, BizUnit: scope.BizUnit, Counterparty: scope.Counterparty,
		Date: day(15), Number: 1, TxTime: "09:00:00", Amount: 1000,
	})
	require.ErrorIs(t, err, ErrClosedPeriod)
	require.Empty(t, repo.entries)
}

func TestUpdaterAppendAllowsEntryAfterBoundary(t *testing.T) {
	ctx := context.Background()
	repo := newMemTxRepo()
	scope := testScope()
	repo.closedThrough[scope] = day(31)
	var up Updater

	_, err := up.Append(ctx, repo, Entry{
		Kind: scope.Kind, BizUnit: scope.BizUnit, Counterparty: scope.Counterparty,
		Date: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), Number: 1,
		TxTime: "09:00:00", Amount: 1000,
	})
	require.NoError(t, err)
}

func TestUpdaterRemoveRechainsFromPriorBalance(t *testing.T) {
	ctx := context.Background()
	repo := newMemTxRepo()
	scope := testScope()
	var up Updater

	for d, amount := range map[int]int64{1: 10000, 2: 5000, 3: 7000} {
		_, err := up.Append(ctx, repo, Entry{
			Kind: scope.Kind, BizUnit: scope.BizUnit, Counterparty: scope.Counterparty,
			Date: day(d), Number: 1, TxTime: "09:00:00", Amount: amount,
		})
		require.NoError(t, err)
	}

	removed, err := up.Remove(ctx, repo, scope, day(2), 1)
	require.NoError(t, err)
	require.NotNil(t, removed)
	require.Equal(t, int64(5000), removed.Amount)
	require.Equal(t, []int64{10000, 17000}, repo.balances(scope))
}

func TestUpdaterRemoveMissingEntry(t *testing.T) {
	repo := newMemTxRepo()
	var up Updater
	_, err := up.Remove(context.Background(), repo, testScope(), day(1), 99)
	require.ErrorIs(t, err, ErrEntryNotFound)
}

func TestUpdaterRemoveRejectsClosedPeriod(t *testing.T) {
	ctx := context.Background()
	repo := newMemTxRepo()
	scope := testScope()
	var up Updater

	_, err := up.Append(ctx, repo, Entry{
		Kind: scope.Kind, BizUnit: scope.BizUnit, Counterparty: scope.Counterparty,
		Date: day(10), Number: 1, TxTime: "09:00:00", Amount: 1000,
	})
	require.NoError(t, err)

	repo.closedThrough[scope] = day(31)
	_, err = up.Remove(ctx, repo, scope, day(10), 1)
	require.ErrorIs(t, err, ErrClosedPeriod)
	require.Len(t, repo.entries, 1)
}

func TestUpdaterScopesStayIndependent(t *testing.T) {
	ctx := context.Background()
	repo := newMemTxRepo()
	var up Updater

	a := testScope()
	b := Scope{Kind: KindPayable, BizUnit: "HQ", Counterparty: "CP-200"}

	_, err := up.Append(ctx, repo, Entry{
		Kind: a.Kind, BizUnit: a.BizUnit, Counterparty: a.Counterparty,
		Date: day(1), Number: 1, TxTime: "09:00:00", Amount: 100,
	})
	require.NoError(t, err)
	entry, err := up.Append(ctx, repo, Entry{
		Kind: b.Kind, BizUnit: b.BizUnit, Counterparty: b.Counterparty,
		Date: day(2), Number: 1, TxTime: "09:00:00", Amount: 999,
	})
	require.NoError(t, err)
	require.Equal(t, int64(999), entry.Balance)
}

func TestRechain(t *testing.T) {
	entries := []Entry{{Amount: 100}, {Amount: -30}, {Amount: 50}}
	out := Rechain(entries, 1000)
	require.Equal(t, int64(1100), out[0].Balance)
	require.Equal(t, int64(1070), out[1].Balance)
	require.Equal(t, int64(1120), out[2].Balance)
}

func TestSortKeyCompare(t *testing.T) {
	base := SortKey{Date: day(5), Number: 3, Time: "12:00:00"}

	require.Equal(t, -1, SortKey{Date: day(4), Number: 9, Time: "23:00:00"}.Compare(base))
	require.Equal(t, 1, SortKey{Date: day(6), Number: 1, Time: "01:00:00"}.Compare(base))
	require.Equal(t, -1, SortKey{Date: day(5), Number: 2, Time: "23:00:00"}.Compare(base))
	require.Equal(t, -1, SortKey{Date: day(5), Number: 3, Time: "11:59:59"}.Compare(base))
	require.Equal(t, 0, base.Compare(base))
	require.True(t, SortKey{Date: day(5), Number: 2}.Less(base))
}

func TestKindFor(t *testing.T) {
	require.Equal(t, KindPayable, KindFor(true))
	require.Equal(t, KindReceivable, KindFor(false))
}
