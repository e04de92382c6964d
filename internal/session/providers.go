package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/cache"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/repository"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/timeengine"
)

// Strategy yields a value or reports that it has none. Errors are logged and
// the next strategy is tried.
type Strategy struct {
	Name  string
	Value func(ctx context.Context) (float64, bool, error)
}

// Chain tries strategies in order and falls back to zero.
type Chain struct {
	name       string
	strategies []Strategy
	logger     *zap.Logger
}

// NewChain builds a provider chain; name is used in log lines only.
func NewChain(name string, logger *zap.Logger, strategies ...Strategy) *Chain {
	return &Chain{name: name, strategies: strategies, logger: logger}
}

// Resolve returns the first available value and the strategy that produced
// it, or (0, "default").
func (c *Chain) Resolve(ctx context.Context) (float64, string) {
	for _, s := range c.strategies {
		v, ok, err := s.Value(ctx)
		if err != nil {
			c.logger.Warn("Provider strategy failed",
				zap.String("provider", c.name),
				zap.String("strategy", s.Name),
				zap.Error(err),
			)
			continue
		}
		if ok {
			return v, s.Name
		}
	}
	return 0, "default"
}

// CurrentDoseProvider returns the instrument's latest cumulative total dose.
type CurrentDoseProvider struct{ chain *Chain }

// NewCurrentDoseProvider tries strategies in order (normally cache, then store).
func NewCurrentDoseProvider(logger *zap.Logger, strategies ...Strategy) *CurrentDoseProvider {
	return &CurrentDoseProvider{chain: NewChain("current_dose", logger, strategies...)}
}

func (p *CurrentDoseProvider) CurrentTotalDose(ctx context.Context) float64 {
	v, _ := p.chain.Resolve(ctx)
	return v
}

// RecentRateProvider returns a short trailing average dose rate in µSv/h.
type RecentRateProvider struct{ chain *Chain }

// NewRecentRateProvider tries strategies in order (normally cache, then store).
func NewRecentRateProvider(logger *zap.Logger, strategies ...Strategy) *RecentRateProvider {
	return &RecentRateProvider{chain: NewChain("recent_rate", logger, strategies...)}
}

func (p *RecentRateProvider) RecentDoseRate(ctx context.Context) float64 {
	v, _ := p.chain.Resolve(ctx)
	return v
}

// CacheTotalDose reads the newest cached reading's counter.
func CacheTotalDose(c *cache.ReadingCache) Strategy {
	return Strategy{Name: "cache", Value: func(context.Context) (float64, bool, error) {
		r, ok := c.Latest()
		return r.TotalAbsorbedDose, ok, nil
	}}
}

// StoreTotalDose reads the newest stored reading's counter.
func StoreTotalDose(store repository.ReadingRepository) Strategy {
	return Strategy{Name: "store", Value: func(ctx context.Context) (float64, bool, error) {
		rs, err := store.LatestReadings(ctx, 1)
		if err != nil || len(rs) == 0 {
			return 0, false, err
		}
		return rs[0].TotalAbsorbedDose, true, nil
	}}
}

// RecentRateWindow is the number of cached readings averaged for the
// rate-based exposure estimate.
const RecentRateWindow = 10

// CacheRecentRate averages the last n cached dose rates.
func CacheRecentRate(c *cache.ReadingCache, n int) Strategy {
	return Strategy{Name: "cache", Value: func(context.Context) (float64, bool, error) {
		avg, ok := c.AverageRecentRate(n)
		return avg, ok, nil
	}}
}

// StoreRecentRate averages stored dose rates over the trailing window.
func StoreRecentRate(store repository.ReadingRepository, engine *timeengine.Engine, window time.Duration) Strategy {
	return Strategy{Name: "store", Value: func(ctx context.Context) (float64, bool, error) {
		now := engine.Now()
		stats, err := store.DoseRateStats(ctx, now.Add(-window), now)
		if err != nil {
			return 0, false, err
		}
		return stats.Avg, stats.Count > 0 && stats.Avg > 0, nil
	}}
}
