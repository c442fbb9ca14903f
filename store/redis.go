package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"traffic-sensor-stream/models"
)

// Схема ключей:
//   <prefix>:index  sorted set, score = recordedAt в микросекундах, member = id (20 цифр)
//   <prefix>:data   hash member -> JSON показания
//   <prefix>:seq    счётчик id
//   <prefix>:last   последний выданный recordedAt
// Члены с равным score сортируются лексикографически, то есть по id.

var insertScript = redis.NewScript(`
local now = ARGV[2]
local last = redis.call('GET', KEYS[4])
if last and tonumber(last) > tonumber(now) then
	now = last
end
redis.call('SET', KEYS[4], now)
local id = redis.call('INCR', KEYS[3])
local member = string.format('%020d', id)
redis.call('HSET', KEYS[2], member, ARGV[1])
redis.call('ZADD', KEYS[1], now, member)
return {id, now}
`)

var rangeScript = redis.NewScript(`
local ids
if ARGV[1] == 'range' then
	ids = redis.call('ZRANGEBYSCORE', KEYS[1], ARGV[2], ARGV[3], 'WITHSCORES')
else
	ids = redis.call('ZREVRANGE', KEYS[1], 0, tonumber(ARGV[2]) - 1, 'WITHSCORES')
end
local out = {}
for i = 1, #ids, 2 do
	out[#out + 1] = ids[i]
	out[#out + 1] = ids[i + 1]
	out[#out + 1] = redis.call('HGET', KEYS[2], ids[i])
end
return out
`)

var pruneScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[1])
for _, member in ipairs(ids) do
	redis.call('HDEL', KEYS[2], member)
end
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[1])
return #ids
`)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	Now      Clock
}

// RedisStore keeps the series in a sorted set. Writes and multi-key reads are
// Lua scripts, so a reader never sees half of an insert.
type RedisStore struct {
	client *redis.Client
	now    Clock
	index  string
	data   string
	seq    string
	last   string
}

func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     50, // Увеличенный пул соединений
		MinIdleConns: 10,
		MaxRetries:   3,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "sensors"
	}
	now := cfg.Now
	if now == nil {
		now = systemClock
	}
	return &RedisStore{
		client: rdb,
		now:    now,
		index:  prefix + ":index",
		data:   prefix + ":data",
		seq:    prefix + ":seq",
		last:   prefix + ":last",
	}, nil
}

func (rs *RedisStore) Close() error {
	return rs.client.Close()
}

func (rs *RedisStore) Insert(ctx context.Context, r models.Reading) (models.StoredReading, error) {
	if err := r.Validate(); err != nil {
		return models.StoredReading{}, err
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return models.StoredReading{}, models.WrapStorage("insert", err)
	}

	at := recordTime(rs.now).UnixMicro()
	res, err := insertScript.Run(ctx, rs.client,
		[]string{rs.index, rs.data, rs.seq, rs.last},
		payload, strconv.FormatInt(at, 10),
	).Slice()
	if err != nil {
		return models.StoredReading{}, models.WrapStorage("insert", err)
	}
	if len(res) != 2 {
		return models.StoredReading{}, models.WrapStorage("insert", fmt.Errorf("unexpected reply %v", res))
	}
	id, ok := res[0].(int64)
	if !ok {
		return models.StoredReading{}, models.WrapStorage("insert", fmt.Errorf("unexpected id %v", res[0]))
	}
	micros, err := strconv.ParseInt(fmt.Sprint(res[1]), 10, 64)
	if err != nil {
		return models.StoredReading{}, models.WrapStorage("insert", err)
	}
	return models.StoredReading{ID: id, Reading: r, RecordedAt: time.UnixMicro(micros).UTC()}, nil
}

func (rs *RedisStore) Latest(ctx context.Context) (models.StoredReading, error) {
	readings, err := rs.Recent(ctx, 1)
	if err != nil {
		return models.StoredReading{}, err
	}
	if len(readings) == 0 {
		return models.StoredReading{}, models.ErrNotFound
	}
	return readings[0], nil
}

func (rs *RedisStore) RangeQuery(ctx context.Context, from, to time.Time) ([]models.StoredReading, error) {
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	lo := strconv.FormatInt(ceilMicro(from), 10)
	hi := strconv.FormatInt(to.UnixMicro(), 10)
	return rs.fetch(ctx, "range", "range", lo, hi)
}

func (rs *RedisStore) Recent(ctx context.Context, limit int) ([]models.StoredReading, error) {
	if limit <= 0 {
		return []models.StoredReading{}, nil
	}
	return rs.fetch(ctx, "recent", "recent", strconv.Itoa(limit))
}

func (rs *RedisStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := pruneScript.Run(ctx, rs.client, []string{rs.index, rs.data},
		strconv.FormatInt(ceilMicro(cutoff), 10)).Int64()
	if err != nil {
		return 0, models.WrapStorage("delete", err)
	}
	return n, nil
}

func (rs *RedisStore) fetch(ctx context.Context, op string, args ...interface{}) ([]models.StoredReading, error) {
	res, err := rangeScript.Run(ctx, rs.client, []string{rs.index, rs.data}, args...).Slice()
	if err != nil {
		return nil, models.WrapStorage(op, err)
	}

	out := make([]models.StoredReading, 0, len(res)/3)
	for i := 0; i+2 < len(res); i += 3 {
		payload, ok := res[i+2].(string)
		if !ok {
			// hash очищен вручную
			continue
		}
		id, err := strconv.ParseInt(fmt.Sprint(res[i]), 10, 64)
		if err != nil {
			return nil, models.WrapStorage(op, err)
		}
		score, err := strconv.ParseFloat(fmt.Sprint(res[i+1]), 64)
		if err != nil {
			return nil, models.WrapStorage(op, err)
		}
		var r models.Reading
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, models.WrapStorage(op, err)
		}
		out = append(out, models.StoredReading{
			ID:         id,
			Reading:    r,
			RecordedAt: time.UnixMicro(int64(score)).UTC(),
		})
	}
	return out, nil
}
