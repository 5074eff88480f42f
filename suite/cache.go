package suite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/VictoriaMetrics/fastcache"

	"github.com/weiihann/heft/store"
	"github.com/weiihann/heft/workload"
)

const (
	cacheEntries  = 100
	cacheMaxBytes = 32 * 1024 * 1024
)

type cacheEntry struct {
	Data  string `json:"data"`
	Index int    `json:"index"`
}

var cacheSeq atomic.Int64

// buildCache writes 100 serialized entries under a private prefix, reads
// them back and deletes them.
func buildCache(context.Context, Env) (workload.Body, error) {
	cache := fastcache.New(cacheMaxBytes)
	data := strings.Repeat("Precious Data ", 20)

	return func(_ context.Context, _ *store.Conn) error {
		prefix := fmt.Sprintf("cache_test_%08x", cacheSeq.Add(1))
		keys := make([][]byte, cacheEntries)

		for i := range keys {
			keys[i] = []byte(fmt.Sprintf("%s/%d", prefix, i))

			val, err := json.Marshal(cacheEntry{Data: data, Index: i})
			if err != nil {
				return fmt.Errorf("encode entry %d: %w", i, err)
			}
			cache.Set(keys[i], val)
		}

		var buf []byte
		for i, key := range keys {
			buf = cache.Get(buf[:0], key)
			if len(buf) == 0 {
				continue
			}

			var e cacheEntry
			if err := json.Unmarshal(buf, &e); err != nil {
				return fmt.Errorf("decode entry %d: %w", i, err)
			}
		}

		for _, key := range keys {
			cache.Del(key)
		}

		return nil
	}, nil
}
