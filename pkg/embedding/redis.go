package embedding

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
)

// RedisCache keeps vectors in Redis as little-endian float32 blobs
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache creates a Redis backed Cache. A ttl of 0 keeps entries forever.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: "ditto:embedding:",
		ttl:    ttl,
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, goerr.Wrap(err, "failed to get embedding from redis", goerr.V("key", key))
	}

	vec, err := DecodeVector(raw)
	if err != nil {
		return nil, false, goerr.Wrap(err, "broken embedding in redis", goerr.V("key", key))
	}
	return vec, true, nil
}

func (c *RedisCache) Put(ctx context.Context, key string, vector []float32) error {
	if err := c.client.Set(ctx, c.prefix+key, EncodeVector(vector), c.ttl).Err(); err != nil {
		return goerr.Wrap(err, "failed to put embedding to redis", goerr.V("key", key))
	}
	return nil
}

// EncodeVector packs vec as little-endian float32 bytes
func EncodeVector(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// DecodeVector unpacks bytes written by EncodeVector
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, goerr.New("invalid vector length", goerr.V("bytes", len(b)))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}
