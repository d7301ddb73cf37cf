// Package cache keeps account summaries in Redis so the conversation list
// does not hit the account store on every request.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"unisell/server/internal/models"
	"unisell/server/internal/store"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "unisell:account:"

// Connect parses a redis:// URL and pings the server
func Connect(ctx context.Context, url string, log *zap.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "invalid REDIS_URL")
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "failed to ping redis")
	}

	log.Info("redis connected", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return rdb, nil
}

// Directory is a read-through cache of account profiles in front of
// another Directory. Whether an account exists is always answered by the
// wrapped directory; only names and photos are served from Redis and may
// lag behind by up to the TTL. Redis failures are logged and fall through.
type Directory struct {
	rdb  redis.Cmdable
	next store.Directory
	ttl  time.Duration
	log  *zap.Logger
}

func NewDirectory(rdb redis.Cmdable, next store.Directory, ttl time.Duration, log *zap.Logger) *Directory {
	return &Directory{rdb: rdb, next: next, ttl: ttl, log: log}
}

func key(id string) string {
	return keyPrefix + id
}

func (d *Directory) Exists(ctx context.Context, id string) (bool, error) {
	return d.next.Exists(ctx, id)
}

func (d *Directory) Existing(ctx context.Context, ids []string) (map[string]bool, error) {
	return d.next.Existing(ctx, ids)
}

func (d *Directory) Lookup(ctx context.Context, ids []string) (map[string]models.Account, error) {
	out := make(map[string]models.Account, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = key(id)
	}

	var misses []string
	vals, err := d.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		d.log.Warn("account cache read failed", zap.Error(err))
		misses = ids
	} else {
		misses = decodeHits(vals, ids, out, d.log)
	}

	if err := d.dropDeleted(ctx, out); err != nil {
		return nil, err
	}
	if len(misses) == 0 {
		return out, nil
	}

	loaded, err := d.next.Lookup(ctx, misses)
	if err != nil {
		return nil, err
	}

	pipe := d.rdb.Pipeline()
	queued := 0
	for id, a := range loaded {
		out[id] = a
		raw, err := json.Marshal(a)
		if err != nil {
			continue
		}
		pipe.Set(ctx, key(id), raw, d.ttl)
		queued++
	}
	if queued == 0 {
		return out, nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		d.log.Warn("account cache write failed", zap.Error(err))
	}

	return out, nil
}

// dropDeleted confirms cache hits against the wrapped directory and evicts
// accounts that no longer exist.
func (d *Directory) dropDeleted(ctx context.Context, hits map[string]models.Account) error {
	if len(hits) == 0 {
		return nil
	}

	ids := make([]string, 0, len(hits))
	for id := range hits {
		ids = append(ids, id)
	}
	live, err := d.next.Existing(ctx, ids)
	if err != nil {
		return err
	}

	var gone []string
	for _, id := range ids {
		if !live[id] {
			delete(hits, id)
			gone = append(gone, id)
		}
	}
	if err := d.Invalidate(ctx, gone...); err != nil {
		d.log.Warn("account cache eviction failed", zap.Strings("ids", gone), zap.Error(err))
	}
	return nil
}

// Invalidate drops cached entries
func (d *Directory) Invalidate(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = key(id)
	}
	return d.rdb.Del(ctx, keys...).Err()
}

// decodeHits fills out from MGET values and returns the ids that missed
func decodeHits(vals []interface{}, ids []string, out map[string]models.Account, log *zap.Logger) []string {
	var misses []string
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			misses = append(misses, ids[i])
			continue
		}
		var a models.Account
		if err := json.Unmarshal([]byte(s), &a); err != nil || a.ID != ids[i] {
			log.Debug("discarding corrupt account cache entry", zap.String("id", ids[i]))
			misses = append(misses, ids[i])
			continue
		}
		out[ids[i]] = a
	}
	return misses
}
