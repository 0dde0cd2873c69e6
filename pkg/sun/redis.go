package sun

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bingomanatee/multiverse/pkg/multiverse"
)

// RedisSun stores a collection's records as JSON values under
// "<collection>:<key>" keys. Redis round-trips make every operation
// deferrable, so the sun reports IsAsync true and the transport engine
// streams into it with fan-out flushes.
type RedisSun struct {
	client    *redis.Client
	name      string
	schema    *multiverse.LocalSchema
	batchSize int
	log       *zap.Logger
}

// NewRedisSun creates a Redis-backed collection and verifies connectivity.
func NewRedisSun(name string, schema *multiverse.LocalSchema, cfg multiverse.RedisSunConfig, batchSize int, log *zap.Logger) (*RedisSun, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("at least one endpoint is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Endpoints[0],
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisSun{
		client:    client,
		name:      name,
		schema:    schema,
		batchSize: batchSize,
		log:       log,
	}, nil
}

func (s *RedisSun) Name() string                    { return s.name }
func (s *RedisSun) Schema() *multiverse.LocalSchema { return s.schema }
func (s *RedisSun) BatchSize() int                  { return s.batchSize }
func (s *RedisSun) IsAsync() bool                   { return true }

func (s *RedisSun) storageKey(key string) string {
	return s.name + ":" + key
}

func (s *RedisSun) recordKey(storageKey string) string {
	return storageKey[len(s.name)+1:]
}

func (s *RedisSun) Get(ctx context.Context, key string) (multiverse.Record, bool, error) {
	data, err := s.client.Get(ctx, s.storageKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	var rec multiverse.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false, fmt.Errorf("failed to decode record %s: %w", key, err)
	}
	return rec, true, nil
}

func (s *RedisSun) Set(ctx context.Context, key string, rec multiverse.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", key, err)
	}
	if err := s.client.Set(ctx, s.storageKey(key), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	s.log.Debug("redis set", zap.String("collection", s.name), zap.String("key", key), zap.Int("bytes", len(data)))
	return nil
}

func (s *RedisSun) Has(ctx context.Context, key string) (bool, error) {
	count, err := s.client.Exists(ctx, s.storageKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check existence of key %s: %w", key, err)
	}
	return count > 0, nil
}

func (s *RedisSun) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.storageKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

func (s *RedisSun) Count(ctx context.Context) (int, error) {
	total := 0
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.name+":*", 512).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to scan collection %s: %w", s.name, err)
		}
		total += len(keys)
		if next == 0 {
			return total, nil
		}
		cursor = next
	}
}

func (s *RedisSun) GetMany(ctx context.Context, keys []string) (map[string]multiverse.Record, error) {
	if len(keys) == 0 {
		return map[string]multiverse.Record{}, nil
	}

	storageKeys := make([]string, len(keys))
	for i, key := range keys {
		storageKeys[i] = s.storageKey(key)
	}

	values, err := s.client.MGet(ctx, storageKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get %d keys: %w", len(keys), err)
	}

	out := make(map[string]multiverse.Record, len(keys))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var rec multiverse.Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode record %s: %w", keys[i], err)
		}
		out[keys[i]] = rec
	}
	return out, nil
}

func (s *RedisSun) SetMany(ctx context.Context, recs map[string]multiverse.Record) error {
	pipe := s.client.Pipeline()
	for key, rec := range recs {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode record %s: %w", key, err)
		}
		pipe.Set(ctx, s.storageKey(key), data, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to batch set %d records: %w", len(recs), err)
	}
	s.log.Debug("redis batch set", zap.String("collection", s.name), zap.Int("records", len(recs)))
	return nil
}

func (s *RedisSun) Find(ctx context.Context, match func(rec multiverse.Record) bool) ([]multiverse.KeyedRecord, error) {
	cursor, err := s.Values(ctx)
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var out []multiverse.KeyedRecord
	for {
		batch, done, err := cursor.Next(ctx, 512)
		if err != nil {
			return nil, err
		}
		for _, kr := range batch {
			if match(kr.Record) {
				out = append(out, kr)
			}
		}
		if done {
			return out, nil
		}
	}
}

// Mutate is copy-on-write over a get/set pair. Redis suns assume one logical
// writer per collection, so no WATCH transaction guards the window.
func (s *RedisSun) Mutate(ctx context.Context, key string, fn multiverse.MutateFunc) (multiverse.Record, error) {
	stored, found, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	result, action := fn(multiverse.CloneRecord(stored), found)
	switch action {
	case multiverse.MutateSet:
		if result == nil {
			return nil, fmt.Errorf("mutate of %q returned MutateSet with a nil record", key)
		}
		if err := s.Set(ctx, key, result); err != nil {
			return nil, err
		}
		return result, nil
	case multiverse.MutateDelete:
		if err := s.Delete(ctx, key); err != nil {
			return nil, err
		}
		return nil, nil
	case multiverse.MutateNoop:
		return stored, nil
	default:
		return nil, fmt.Errorf("mutate of %q returned unknown action %d", key, action)
	}
}

func (s *RedisSun) Values(ctx context.Context) (multiverse.Cursor, error) {
	return &redisCursor{sun: s}, nil
}

// Close releases the underlying client.
func (s *RedisSun) Close() error {
	return s.client.Close()
}

type redisCursor struct {
	sun    *RedisSun
	cursor uint64
	done   bool
}

func (c *redisCursor) Next(ctx context.Context, batchSize int) ([]multiverse.KeyedRecord, bool, error) {
	if c.done {
		return nil, true, nil
	}
	if batchSize <= 0 {
		batchSize = multiverse.DefaultBatchSize
	}

	keys, next, err := c.sun.client.Scan(ctx, c.cursor, c.sun.name+":*", int64(batchSize)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to scan collection %s: %w", c.sun.name, err)
	}
	c.cursor = next
	if next == 0 {
		c.done = true
	}
	if len(keys) == 0 {
		return nil, c.done, nil
	}

	values, err := c.sun.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch scanned records: %w", err)
	}

	out := make([]multiverse.KeyedRecord, 0, len(keys))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var rec multiverse.Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, false, fmt.Errorf("failed to decode record %s: %w", keys[i], err)
		}
		out = append(out, multiverse.KeyedRecord{Key: c.sun.recordKey(keys[i]), Record: rec})
	}
	return out, c.done, nil
}

func (c *redisCursor) Close() error {
	c.done = true
	return nil
}

// redisFactory builds Redis suns from configuration.
type redisFactory struct{}

func (f *redisFactory) Type() string { return "redis" }

func (f *redisFactory) Validate(cfg multiverse.SunConfig) error {
	if cfg.Type != "redis" {
		return fmt.Errorf("invalid type for redis factory: %s", cfg.Type)
	}
	if len(cfg.Redis.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint is required")
	}
	if cfg.Redis.DB < 0 || cfg.Redis.DB > 15 {
		return fmt.Errorf("redis db must be between 0 and 15, got: %d", cfg.Redis.DB)
	}
	return nil
}

func (f *redisFactory) Create(cfg multiverse.SunConfig, schema *multiverse.LocalSchema, deps Deps) (multiverse.Collection, error) {
	return NewRedisSun(cfg.Collection, schema, cfg.Redis, cfg.BatchSize, deps.logger())
}

func init() {
	RegisterFactory(&redisFactory{})
}
