package ai

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"

	"trackdash/internal/model"
	"trackdash/internal/util/logx"
)

// Describer produces a summary for a record.
type Describer interface {
	DescribeTrack(ctx context.Context, r model.TrackRecord, clicks []model.ClickEvent) (Summary, error)
}

// Cache memoises summaries per id and last_seen, so new activity on a record
// invalidates its entry.
type Cache struct {
	next  Describer
	cache *ristretto.Cache
	ttl   time.Duration
}

func NewCache(next Describer, ttl time.Duration) (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{next: next, cache: c, ttl: ttl}, nil
}

func key(r model.TrackRecord) string { return r.TrackID + "@" + r.LastSeen }

func (c *Cache) DescribeTrack(ctx context.Context, r model.TrackRecord, clicks []model.ClickEvent) (Summary, error) {
	k := key(r)
	if v, ok := c.cache.Get(k); ok {
		if s, ok := v.(Summary); ok {
			logx.Debugf("ai: cache hit %s", k)
			return s, nil
		}
	}
	s, err := c.next.DescribeTrack(ctx, r, clicks)
	if err != nil {
		return Summary{}, err
	}
	c.cache.SetWithTTL(k, s, int64(len(s.Text())+len(k)), c.ttl)
	c.cache.Wait()
	return s, nil
}

func (c *Cache) Close() { c.cache.Close() }
