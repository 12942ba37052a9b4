package metrics

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	DbPoolOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "app_db_pool_open",
		Help: "Current open DB connections",
	})
	DbPoolIdle         = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_db_pool_idle"})
	DbPoolInuse        = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_db_pool_inuse"})
	DbPoolWaitCount    = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_db_pool_wait_count"})
	DbPoolWaitDuration = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_db_pool_wait_seconds"})

	RedisPoolOpen  = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_redis_pool_open"})
	RedisPoolIdle  = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_redis_pool_idle"})
	RedisPoolStale = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_redis_pool_stale"})
	RedisPoolMiss  = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_redis_pool_misses"})
)

// ObservePools samples DB and Redis pool stats every interval until ctx ends.
// rdb may be nil.
func ObservePools(ctx context.Context, sqlDB *sql.DB, rdb *redis.Client, every time.Duration) {
	if every <= 0 {
		every = 15 * time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		SamplePools(sqlDB, rdb)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func SamplePools(sqlDB *sql.DB, rdb *redis.Client) {
	if sqlDB != nil {
		st := sqlDB.Stats()
		DbPoolOpen.Set(float64(st.OpenConnections))
		DbPoolIdle.Set(float64(st.Idle))
		DbPoolInuse.Set(float64(st.InUse))
		DbPoolWaitCount.Set(float64(st.WaitCount))
		DbPoolWaitDuration.Set(st.WaitDuration.Seconds())
	}
	if rdb != nil {
		st := rdb.PoolStats()
		RedisPoolOpen.Set(float64(st.TotalConns))
		RedisPoolIdle.Set(float64(st.IdleConns))
		RedisPoolStale.Set(float64(st.StaleConns))
		RedisPoolMiss.Set(float64(st.Misses))
	}
}
