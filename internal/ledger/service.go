package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/jangbu-erp/jangbu-erp/internal/shared"
)

// ReadRepositoryPort abstracts ledger reads for the service.
type ReadRepositoryPort interface {
	List(ctx context.Context, scope Scope, page shared.Page) ([]Entry, error)
	LatestBalance(ctx context.Context, scope Scope) (int64, error)
	Range(ctx context.Context, scope Scope, from, to time.Time) (int64, []Entry, error)
}

// Statement summarises a counterparty ledger over a date range.
type Statement struct {
	Scope   Scope
	From    time.Time
	To      time.Time
	Opening int64
	Total   int64
	Closing int64
	Entries []Entry
}

// Service serves the ledger read surface. Statements dedupe concurrent
// identical requests; the latest balance is cached briefly in Redis since the
// posting path invalidates it on every write.
type Service struct {
	repo     ReadRepositoryPort
	cache    *redis.Client
	group    singleflight.Group
	cacheTTL time.Duration
}

// NewService constructs the ledger read service. cache may be nil.
func NewService(repo ReadRepositoryPort, cache *redis.Client) *Service {
	return &Service{repo: repo, cache: cache, cacheTTL: 30 * time.Second}
}

// List returns entries for a scope in chronological order.
func (s *Service) List(ctx context.Context, scope Scope, page shared.Page) ([]Entry, error) {
	if err := validateScope(scope); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, scope, page)
}

// Balance returns the current running balance for a scope.
func (s *Service) Balance(ctx context.Context, scope Scope) (int64, error) {
	if err := validateScope(scope); err != nil {
		return 0, err
	}
	key := balanceCacheKey(scope)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key).Result(); err == nil {
			if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
				return v, nil
			}
		}
	}
	balance, err := s.repo.LatestBalance(ctx, scope)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, strconv.FormatInt(balance, 10), s.cacheTTL).Err()
	}
	return balance, nil
}

// InvalidateBalance drops the cached balance after a posting or void.
func (s *Service) InvalidateBalance(ctx context.Context, scope Scope) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, balanceCacheKey(scope)).Err()
}

// GetStatement builds the statement for a scope and date range. Concurrent
// requests for the same statement share one repository round trip.
func (s *Service) GetStatement(ctx context.Context, scope Scope, from, to time.Time) (Statement, error) {
	if err := validateScope(scope); err != nil {
		return Statement{}, err
	}
	if to.Before(from) {
		return Statement{}, fmt.Errorf("%w: statement range inverted", ErrInvalidScope)
	}
	key := fmt.Sprintf("%s:%s:%s:%s:%s", scope.Kind, scope.BizUnit, scope.Counterparty,
		from.Format("20060102"), to.Format("20060102"))
	v, err, _ := s.group.Do(key, func() (any, error) {
		opening, entries, err := s.repo.Range(ctx, scope, from, to)
		if err != nil {
			return nil, err
		}
		var total int64
		for _, e := range entries {
			total += e.Amount
		}
		return Statement{
			Scope:   scope,
			From:    from,
			To:      to,
			Opening: opening,
			Total:   total,
			Closing: opening + total,
			Entries: entries,
		}, nil
	})
	if err != nil {
		return Statement{}, err
	}
	return v.(Statement), nil
}

func balanceCacheKey(scope Scope) string {
	return fmt.Sprintf("ledger:balance:%s:%s:%s", scope.Kind, scope.BizUnit, scope.Counterparty)
}

func validateScope(scope Scope) error {
	if scope.Kind != KindReceivable && scope.Kind != KindPayable {
		return fmt.Errorf("%w: unknown ledger kind %q", ErrInvalidScope, scope.Kind)
	}
	if scope.Counterparty == "" {
		return fmt.Errorf("%w: counterparty required", ErrInvalidScope)
	}
	return nil
}
