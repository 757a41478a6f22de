package store

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yuuzone/yuuzone/models"
)

const popularThreadsKey = "yuuzone:popular-threads"

// PopularThreads serves the thread-id set behind the popular/all feed:
// the top N subthreads by member count. Results are cached in redis
// with a small in-process TinyLFU tier; without a redis URL it reads
// the database directly.
type PopularThreads struct {
	db    *gorm.DB
	cache *cache.Cache
	n     int
	ttl   time.Duration
}

func NewPopularThreads(db *gorm.DB, redisURL string, n int) (*PopularThreads, error) {
	pt := &PopularThreads{
		db:  db,
		n:   n,
		ttl: 5 * time.Minute,
	}

	if redisURL != "" {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("could not configure popular-thread cache: %w", err)
		}
		rdb := redis.NewClient(opt)
		if _, err := rdb.Ping(context.TODO()).Result(); err != nil {
			return nil, fmt.Errorf("could not connect to popular-thread cache: %w", err)
		}
		pt.cache = cache.New(&cache.Options{
			Redis:      rdb,
			LocalCache: cache.NewTinyLFU(1000, pt.ttl),
		})
	}

	return pt, nil
}

// ThreadIDs returns the current popular thread-id set.
func (pt *PopularThreads) ThreadIDs(ctx context.Context) ([]uint, error) {
	if pt.cache == nil {
		return pt.queryThreadIDs(ctx)
	}

	var ids []uint
	err := pt.cache.Once(&cache.Item{
		Ctx:   ctx,
		Key:   popularThreadsKey,
		Value: &ids,
		TTL:   pt.ttl,
		Do: func(*cache.Item) (interface{}, error) {
			out, err := pt.queryThreadIDs(ctx)
			return out, err
		},
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (pt *PopularThreads) queryThreadIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	if err := pt.db.WithContext(ctx).Model(&models.Subthread{}).
		Order("member_count DESC, post_count DESC").
		Limit(pt.n).
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("listing popular threads: %w", err)
	}
	return ids, nil
}
