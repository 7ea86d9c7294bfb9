package ranker

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
)

// resultCache memoizes ranking results for a short TTL so repeated context
// assembly within one turn does not rescore the same pool.
type resultCache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

func newResultCache(ttl time.Duration) (*resultCache, error) {
	if ttl <= 0 {
		ttl = 20 * time.Second
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &resultCache{cache: cache, ttl: ttl}, nil
}

func (c *resultCache) get(key string) (Result, bool) {
	v, ok := c.cache.Get(key)
	if !ok {
		return Result{}, false
	}
	res, ok := v.(Result)
	return res, ok
}

func (c *resultCache) put(key string, res Result) {
	c.cache.SetWithTTL(key, res, 1, c.ttl)
	// Ristretto admits asynchronously; wait so the next identical call hits.
	c.cache.Wait()
}

func (c *resultCache) close() {
	c.cache.Close()
}

// cacheKey fingerprints everything that can change a ranking outcome.
func cacheKey(messages []Message, pool []MemoryRecord, opts Options) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.Content)
		b.WriteByte('\x1f')
	}
	b.WriteByte('\x1e')
	for _, m := range pool {
		fmt.Fprintf(&b, "%s|%d|%.3f|%s\x1f", m.Title, m.Timestamp.UnixMilli(), m.Importance, m.Mood)
	}
	fmt.Fprintf(&b, "\x1e%d|%.3f|%t|%t|%d",
		opts.MaxMemories, opts.MinRelevanceScore, opts.IncludeRecent, opts.PreferHighImportance, opts.Now.UnixMilli())

	h := sha1.Sum([]byte(b.String()))
	return "rank:" + hex.EncodeToString(h[:])
}
