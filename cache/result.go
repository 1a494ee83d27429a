// Package cache deduplicates conversions: the same file converted with
// the same options returns the cached result without reprocessing.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"converthub/database"
	"converthub/models"
)

const resultKeyPrefix = "conversion:result:"

// ResultCache stores finished ConversionResults in Redis keyed by the
// file content hash plus the operation and its options.
type ResultCache struct {
	cache *database.Cache
	ttl   time.Duration
}

func NewResultCache(cache *database.Cache, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ResultCache{cache: cache, ttl: ttl}
}

// Key derives the cache key. Options are serialized in sorted order so
// equivalent maps always produce the same key.
func Key(fileHash, operation string, options map[string]string) string {
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte(fileHash))
	h.Write([]byte{0})
	h.Write([]byte(operation))
	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(options[k]))
	}
	return resultKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached result, or (nil, nil) on a miss.
func (rc *ResultCache) Get(ctx context.Context, key string) (*models.ConversionResult, error) {
	data, err := rc.cache.Get(ctx, key)
	if err != nil {
		if database.Miss(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var result models.ConversionResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, fmt.Errorf("decode cached result: %w", err)
	}
	return &result, nil
}

func (rc *ResultCache) Set(ctx context.Context, key string, result *models.ConversionResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return rc.cache.Set(ctx, key, data, rc.ttl)
}
