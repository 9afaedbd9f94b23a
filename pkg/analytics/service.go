package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/roadpulse/roadpulse/pkg/observability"
	"github.com/roadpulse/roadpulse/pkg/store"
	"github.com/roadpulse/roadpulse/pkg/traffic"
)

const (
	l1CacheSize = 256
	cacheTTL    = 5 * time.Minute
)

// Source is the store surface the read side needs.
type Source interface {
	Snapshot() (*store.State, uint64)
}

// Service answers analytics queries with a version-keyed two-level cache.
// The Redis client is optional; without it only the in-process LRU is
// used.
type Service struct {
	source  Source
	l1      *expirable.LRU[string, *Report]
	redis   *redis.Client
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewService builds the read-side service. redisClient and metrics may be
// nil.
func NewService(source Source, redisClient *redis.Client, logger *observability.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		source:  source,
		l1:      expirable.NewLRU[string, *Report](l1CacheSize, nil, cacheTTL),
		redis:   redisClient,
		logger:  logger.WithField("component", "analytics"),
		metrics: metrics,
	}
}

// Report computes (or serves from cache) the analytics report for the
// given location filter. Empty filter means the whole dataset.
func (s *Service) Report(ctx context.Context, locationKey string) *Report {
	// One snapshot supplies both the data and the cache key version, so a
	// concurrent write can never cache a newer report under an older key.
	snapshot, version := s.source.Snapshot()
	key := fmt.Sprintf("analytics:%s:v%d", locationKey, version)

	if r, ok := s.l1.Get(key); ok {
		s.countCache("memory", true)
		return r
	}
	s.countCache("memory", false)

	if r := s.fromRedis(ctx, key); r != nil {
		s.l1.Add(key, r)
		return r
	}

	r := Compute(snapshot, locationKey)

	s.l1.Add(key, r)
	s.toRedis(ctx, key, r)
	return r
}

// NearbyHotspots answers a radius query over the current snapshot.
func (s *Service) NearbyHotspots(center traffic.Location, radiusKm float64) []NearbyHotspot {
	snapshot, _ := s.source.Snapshot()
	return Nearby(snapshot, center, radiusKm)
}

// BestRoutes returns recorded routes between the endpoints, newest first.
func (s *Service) BestRoutes(origin, destination traffic.Location) []*traffic.AlternativeRoute {
	snapshot, _ := s.source.Snapshot()
	return BestRoutes(snapshot, origin, destination)
}

func (s *Service) fromRedis(ctx context.Context, key string) *Report {
	if s.redis == nil {
		return nil
	}

	data, err := s.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		s.countCache("redis", false)
		return nil
	}
	if err != nil {
		s.countCache("redis", false)
		s.logger.WithError(err).Debug("Redis cache read failed")
		return nil
	}

	var r Report
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		// Corrupt entry, drop it.
		s.redis.Del(ctx, key)
		s.countCache("redis", false)
		return nil
	}

	s.countCache("redis", true)
	return &r
}

func (s *Service) toRedis(ctx context.Context, key string, r *Report) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, data, cacheTTL).Err(); err != nil {
		s.logger.WithError(err).Debug("Redis cache write failed")
	}
}

func (s *Service) countCache(cacheType string, hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.AnalyticsCacheHitsTotal.WithLabelValues(cacheType).Inc()
	} else {
		s.metrics.AnalyticsCacheMissesTotal.WithLabelValues(cacheType).Inc()
	}
}

// OpenRedis connects a Redis client for the L2 cache.
func OpenRedis(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}
