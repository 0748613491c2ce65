// Package analytics computes marketplace statistics and daily trading
// rollups.
package analytics

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/hydrochain/marketplace/internal/app/domain/analytics"
	"github.com/hydrochain/marketplace/internal/app/domain/trade"
	"github.com/hydrochain/marketplace/internal/app/storage"
	"github.com/hydrochain/marketplace/pkg/logger"
)

const statsCacheKey = "marketplace:stats"

// Service computes live marketplace statistics, optionally caching them in
// Redis for a short window.
type Service struct {
	credits      storage.CreditStore
	transactions storage.TransactionStore
	store        storage.AnalyticsStore
	cache        *redis.Client
	cacheTTL     time.Duration
	log          *logger.Logger
}

// New constructs an analytics service. cache may be nil to disable caching.
func New(
	credits storage.CreditStore,
	transactions storage.TransactionStore,
	store storage.AnalyticsStore,
	cache *redis.Client,
	cacheTTL time.Duration,
	log *logger.Logger,
) *Service {
	if log == nil {
		log = logger.NewDefault("analytics")
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &Service{
		credits:      credits,
		transactions: transactions,
		store:        store,
		cache:        cache,
		cacheTTL:     cacheTTL,
		log:          log,
	}
}

// MarketplaceStats returns the live marketplace summary. Results are served
// from cache when fresh; cache failures fall through to a live computation.
func (s *Service) MarketplaceStats(ctx context.Context) (analytics.Stats, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, statsCacheKey).Bytes(); err == nil {
			var cached analytics.Stats
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	stats, err := s.computeStats(ctx)
	if err != nil {
		return analytics.Stats{}, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, statsCacheKey, data, s.cacheTTL).Err(); err != nil {
				s.log.WithError(err).Debug("stats cache write failed")
			}
		}
	}
	return stats, nil
}

func (s *Service) computeStats(ctx context.Context) (analytics.Stats, error) {
	forSale := true
	retired := false
	listings, err := s.credits.ListCredits(ctx, storage.CreditFilter{ForSale: &forSale, Retired: &retired})
	if err != nil {
		return analytics.Stats{}, err
	}

	retiredCount, err := s.credits.CountRetiredCredits(ctx)
	if err != nil {
		return analytics.Stats{}, err
	}
	projects, err := s.credits.CountDistinctProjects(ctx)
	if err != nil {
		return analytics.Stats{}, err
	}

	stats := analytics.Stats{
		CreditsForSale: len(listings),
		CreditsRetired: retiredCount,
		ProjectCount:   projects,
	}
	for _, c := range listings {
		stats.AveragePrice += c.Price
		stats.TotalQuantityKg += c.QuantityKg
	}
	if len(listings) > 0 {
		stats.AveragePrice /= float64(len(listings))
	}
	return stats, nil
}

// RollUpDay aggregates one day's completed trades into a snapshot and
// upserts it.
func (s *Service) RollUpDay(ctx context.Context, day time.Time) (analytics.DailySnapshot, error) {
	day = day.UTC().Truncate(24 * time.Hour)
	from := day
	to := day.Add(24 * time.Hour)

	trades, err := s.transactions.ListTransactionsBetween(ctx, from, to)
	if err != nil {
		return analytics.DailySnapshot{}, err
	}

	snap := analytics.DailySnapshot{Date: day}
	users := make(map[string]bool)
	var prices []float64
	for _, tx := range trades {
		if tx.Status != trade.StatusCompleted {
			continue
		}
		snap.CreditsTraded++
		snap.VolumeKg += tx.QuantityKg
		snap.ValueUSD += tx.Price
		users[tx.BuyerID] = true
		users[tx.SellerID] = true
		if tx.Type == trade.TypePartnership {
			snap.NewPartnerships++
		}
		if tx.QuantityKg > 0 {
			prices = append(prices, tx.Price/tx.QuantityKg)
		}
	}
	snap.ActiveUsers = len(users)
	if snap.VolumeKg > 0 {
		snap.AvgPricePerKg = snap.ValueUSD / snap.VolumeKg
	}
	snap.Volatility = stddev(prices)

	snap, err = s.store.UpsertDailySnapshot(ctx, snap)
	if err != nil {
		return analytics.DailySnapshot{}, err
	}
	s.log.WithField("date", day.Format("2006-01-02")).
		WithField("trades", snap.CreditsTraded).
		Info("daily snapshot written")
	return snap, nil
}

// History returns the most recent daily snapshots, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]analytics.DailySnapshot, error) {
	return s.store.ListDailySnapshots(ctx, limit)
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values) - 1)
	return math.Sqrt(variance)
}
