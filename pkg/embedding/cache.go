package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by a VectorCache when the key is absent.
var ErrCacheMiss = errors.New("vector cache miss")

// VectorCache stores previously computed vectors.
type VectorCache interface {
	Get(ctx context.Context, key string) ([]float32, error)
	Set(ctx context.Context, key string, vec []float32) error
}

// MemoryVectorCache keeps vectors in process memory.
type MemoryVectorCache struct {
	cache *gocache.Cache
}

func NewMemoryVectorCache(ttl time.Duration) *MemoryVectorCache {
	return &MemoryVectorCache{
		cache: gocache.New(ttl, 10*time.Minute),
	}
}

func (c *MemoryVectorCache) Get(_ context.Context, key string) ([]float32, error) {
	if x, found := c.cache.Get(key); found {
		return x.([]float32), nil
	}
	return nil, ErrCacheMiss
}

func (c *MemoryVectorCache) Set(_ context.Context, key string, vec []float32) error {
	c.cache.Set(key, vec, gocache.DefaultExpiration)
	return nil
}

// RedisVectorCache stores vectors as little-endian float32 blobs.
type RedisVectorCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisVectorCache(rdb *redis.Client, ttl time.Duration) *RedisVectorCache {
	return &RedisVectorCache{
		rdb:    rdb,
		prefix: "embedding:",
		ttl:    ttl,
	}
}

func (c *RedisVectorCache) Get(ctx context.Context, key string) ([]float32, error) {
	raw, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return decodeVector(raw)
}

func (c *RedisVectorCache) Set(ctx context.Context, key string, vec []float32) error {
	return c.rdb.Set(ctx, c.prefix+key, encodeVector(vec), c.ttl).Err()
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(raw []byte) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("corrupt cached vector of %d bytes", len(raw))
	}
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return vec, nil
}

// CacheKey scopes a text to the provider and dimension that embedded it.
func CacheKey(provider string, dimension int, text string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", provider, dimension, text)))
	return hex.EncodeToString(sum[:])
}
