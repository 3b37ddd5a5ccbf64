package storage

import (
	"TaxiGovExplorer/src/processor"
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// FrequencyCache publishes frequency tables as Redis hashes, one per
// freq:<base>:<column>, so dashboards can read them without the API.
type FrequencyCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewFrequencyCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*FrequencyCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &FrequencyCache{rdb: rdb, ttl: ttl}, nil
}

func frequencyKey(base, column string) string {
	return fmt.Sprintf("freq:%s:%s", base, column)
}

func encodeTable(t processor.FrequencyTable) map[string]interface{} {
	counts := t.Map()
	fields := make(map[string]interface{}, len(counts))
	for v, n := range counts {
		fields[v] = n
	}
	return fields
}

// decodeTable rebuilds a table from a hash, highest count first.
func decodeTable(base, column string, fields map[string]string) (processor.FrequencyTable, error) {
	t := processor.FrequencyTable{Partition: base, Column: column}
	for v, c := range fields {
		n, err := strconv.Atoi(c)
		if err != nil {
			return t, fmt.Errorf("%s: bad count %q for %q", frequencyKey(base, column), c, v)
		}
		t.Rows = append(t.Rows, processor.CategoryCount{Value: v, Count: n})
	}
	// hashes are unordered; ties fall back to the value
	sort.Slice(t.Rows, func(i, j int) bool {
		if t.Rows[i].Count != t.Rows[j].Count {
			return t.Rows[i].Count > t.Rows[j].Count
		}
		return t.Rows[i].Value < t.Rows[j].Value
	})
	return t, nil
}

// Put replaces the cached tables of column ("reason" or "agency").
func (c *FrequencyCache) Put(ctx context.Context, column string, tables []processor.FrequencyTable) error {
	pipe := c.rdb.TxPipeline()
	for _, t := range tables {
		key := frequencyKey(t.Partition, column)
		pipe.Del(ctx, key)
		if len(t.Rows) == 0 {
			continue
		}
		pipe.HSet(ctx, key, encodeTable(t))
		if c.ttl > 0 {
			pipe.Expire(ctx, key, c.ttl)
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Get returns the cached table; ok is false when the key does not exist.
func (c *FrequencyCache) Get(ctx context.Context, base, column string) (processor.FrequencyTable, bool, error) {
	fields, err := c.rdb.HGetAll(ctx, frequencyKey(base, column)).Result()
	if err != nil {
		return processor.FrequencyTable{}, false, err
	}
	if len(fields) == 0 {
		return processor.FrequencyTable{}, false, nil
	}
	t, err := decodeTable(base, column, fields)
	return t, err == nil, err
}

func (c *FrequencyCache) Close() error {
	return c.rdb.Close()
}
