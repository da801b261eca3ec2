package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/chatcart/backend/internal/domain"
	"go.uber.org/zap"
)

const defaultCompletionTTL = 10 * time.Minute

// CachedClient memoizes completions of an inner model client.
// Identical prompt and image bytes always map to the same entry.
type CachedClient struct {
	inner  domain.ModelClient
	cache  domain.CacheRepository
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedClient wraps inner with a completion cache
func NewCachedClient(inner domain.ModelClient, cache domain.CacheRepository, ttl time.Duration, logger *zap.Logger) *CachedClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = defaultCompletionTTL
	}
	return &CachedClient{inner: inner, cache: cache, ttl: ttl, logger: logger}
}

// Complete returns a cached completion when present, otherwise calls the inner client.
// Errors are never cached.
func (c *CachedClient) Complete(ctx context.Context, prompt string, image *domain.Image) (string, error) {
	key := completionCacheKey(prompt, image)

	if value, err := c.cache.Get(ctx, key); err == nil {
		if text, ok := value.(string); ok && text != "" {
			c.logger.Debug("completion cache hit", zap.String("key", key))
			return text, nil
		}
	}

	text, err := c.inner.Complete(ctx, prompt, image)
	if err != nil {
		return "", err
	}

	if err := c.cache.Set(ctx, key, text, c.ttl); err != nil {
		c.logger.Warn("failed to cache completion", zap.String("key", key), zap.Error(err))
	}
	return text, nil
}

// completionCacheKey builds "completion:<sha256>" over the prompt and image payload
func completionCacheKey(prompt string, image *domain.Image) string {
	h := sha256.New()
	h.Write([]byte(prompt))
	if image != nil {
		h.Write([]byte{0})
		h.Write([]byte(image.MIMEType))
		h.Write([]byte{0})
		h.Write(image.Data)
	}
	return "completion:" + hex.EncodeToString(h.Sum(nil))
}
