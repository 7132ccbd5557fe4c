package reports

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/openbooks/openbooks/internal/shared"
)

// ActivityPort supplies the per-account aggregates reports are built from.
type ActivityPort interface {
	FetchActivity(ctx context.Context, dateFrom, dateTo *time.Time) ([]AccountActivity, error)
}

// DefaultTTL bounds report staleness. The cache is purely an optimization:
// a miss recomputes the identical result from stored data.
const DefaultTTL = 5 * time.Minute

// Service generates reports with a short-TTL Redis memo and singleflight
// dedup of concurrent identical generations. A nil cache client disables
// memoization.
type Service struct {
	logger *slog.Logger
	repo   ActivityPort
	cache  *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

func NewService(logger *slog.Logger, repo ActivityPort, cache *redis.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{logger: logger, repo: repo, cache: cache, ttl: ttl}
}

// TrialBalance builds the trial balance for [dateFrom, dateTo]; nil bounds
// mean unbounded. Pre-window activity folds into each account's opening
// column, so closing equals the balance as of dateTo.
func (s *Service) TrialBalance(ctx context.Context, dateFrom, dateTo *time.Time) (TrialBalance, error) {
	key := shared.ReportCacheKey("trial_balance", windowKey(dateFrom, dateTo))
	var cached TrialBalance
	if s.lookup(ctx, key, &cached) {
		return cached, nil
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		activity, err := s.repo.FetchActivity(ctx, dateFrom, dateTo)
		if err != nil {
			return nil, err
		}
		tb := BuildTrialBalance(activity)
		s.store(ctx, key, tb)
		return tb, nil
	})
	if err != nil {
		return TrialBalance{}, err
	}
	return v.(TrialBalance), nil
}

// BalanceSheet builds the statement of financial position as of dateTo.
func (s *Service) BalanceSheet(ctx context.Context, dateTo *time.Time) (BalanceSheet, error) {
	key := shared.ReportCacheKey("balance_sheet", windowKey(nil, dateTo))
	var cached BalanceSheet
	if s.lookup(ctx, key, &cached) {
		return cached, nil
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		activity, err := s.repo.FetchActivity(ctx, nil, dateTo)
		if err != nil {
			return nil, err
		}
		bs := BuildBalanceSheet(activity)
		s.store(ctx, key, bs)
		return bs, nil
	})
	if err != nil {
		return BalanceSheet{}, err
	}
	return v.(BalanceSheet), nil
}

// IncomeStatement builds period flows for [dateFrom, dateTo].
func (s *Service) IncomeStatement(ctx context.Context, dateFrom, dateTo *time.Time) (IncomeStatement, error) {
	key := shared.ReportCacheKey("income_statement", windowKey(dateFrom, dateTo))
	var cached IncomeStatement
	if s.lookup(ctx, key, &cached) {
		return cached, nil
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		activity, err := s.repo.FetchActivity(ctx, dateFrom, dateTo)
		if err != nil {
			return nil, err
		}
		is := BuildIncomeStatement(activity)
		s.store(ctx, key, is)
		return is, nil
	})
	if err != nil {
		return IncomeStatement{}, err
	}
	return v.(IncomeStatement), nil
}

// ClosePeriod summarizes the retained-earnings transfer through a date.
// Always computed fresh; close decisions should not read a stale memo.
func (s *Service) ClosePeriod(ctx context.Context, through time.Time) (PeriodClose, error) {
	activity, err := s.repo.FetchActivity(ctx, nil, &through)
	if err != nil {
		return PeriodClose{}, err
	}
	return BuildPeriodClose(activity), nil
}

// Warmup pre-generates the all-time trial balance, typically from a cron.
func (s *Service) Warmup(ctx context.Context) error {
	_, err := s.TrialBalance(ctx, nil, nil)
	return err
}

func windowKey(dateFrom, dateTo *time.Time) string {
	format := func(t *time.Time) string {
		if t == nil {
			return "all"
		}
		return t.Format("2006-01-02")
	}
	return format(dateFrom) + ":" + format(dateTo)
}

func (s *Service) lookup(ctx context.Context, key string, target any) bool {
	if s.cache == nil {
		return false
	}
	payload, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(payload, target); err != nil {
		s.logger.Warn("report cache entry unreadable", slog.String("key", key), slog.Any("error", err))
		return false
	}
	return true
}

func (s *Service) store(ctx context.Context, key string, report any) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		s.logger.Warn("report cache store failed", slog.String("key", key), slog.Any("error", err))
	}
}
