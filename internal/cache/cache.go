// Package cache stores completed non-streaming responses keyed by a
// deterministic fingerprint of the request.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"relay-api/internal/shared"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type ResponseCache struct {
	redis *redis.Client
	log   *zap.SugaredLogger
}

func NewResponseCache(redisClient *redis.Client, log *zap.SugaredLogger) *ResponseCache {
	return &ResponseCache{redis: redisClient, log: log}
}

// Fingerprint derives a stable key from the model, conversation and
// generation parameters. Key order in the request body must not change the
// fingerprint, so the payload is re-encoded with sorted keys.
func Fingerprint(model string, payload map[string]any) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})

	keys := make([]string, 0, len(payload))
	for k := range payload {
		if k == "stream" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		raw, err := json.Marshal(payload[k])
		if err != nil {
			raw = fmt.Appendf(nil, "%v", payload[k])
		}
		h.Write(raw)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *ResponseCache) Get(ctx context.Context, fingerprint string) ([]byte, bool) {
	cached, err := c.redis.Get(ctx, cacheKey(fingerprint)).Bytes()
	if err != nil {
		return nil, false
	}
	return cached, true
}

func (c *ResponseCache) Put(ctx context.Context, fingerprint string, response []byte) {
	if err := c.redis.Set(ctx, cacheKey(fingerprint), response, shared.ResponseCacheTTL).Err(); err != nil {
		c.log.Warnw("Failed to cache response", "error", err)
	}
}

func cacheKey(fingerprint string) string {
	return fmt.Sprintf("relay:v1:response:%s", fingerprint)
}
