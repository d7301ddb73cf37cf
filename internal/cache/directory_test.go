package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"unisell/server/internal/messaging"
	"unisell/server/internal/models"
	"unisell/server/internal/store"
	"unisell/server/internal/utils"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// memRedis implements the commands Directory issues against a map
type memRedis struct {
	redis.Cmdable
	mu   sync.Mutex
	data map[string]string
}

func newMemRedis() *memRedis {
	return &memRedis{data: map[string]string{}}
}

func (m *memRedis) MGet(ctx context.Context, keys ...string) *redis.SliceCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	vals := make([]interface{}, len(keys))
	for i, k := range keys {
		if v, ok := m.data[k]; ok {
			vals[i] = v
		}
	}
	return redis.NewSliceResult(vals, nil)
}

func (m *memRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (m *memRedis) Pipeline() redis.Pipeliner {
	return &memPipe{r: m, queued: map[string]string{}}
}

func (m *memRedis) has(k string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[k]
	return ok
}

type memPipe struct {
	redis.Pipeliner
	r      *memRedis
	queued map[string]string
}

func (p *memPipe) Set(ctx context.Context, k string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		p.queued[k] = string(v)
	case string:
		p.queued[k] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func (p *memPipe) Exec(ctx context.Context) ([]redis.Cmder, error) {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	for k, v := range p.queued {
		p.r.data[k] = v
	}
	return nil, nil
}

func TestDirectoryCachesProfiles(t *testing.T) {
	ctx := context.Background()
	alice := models.Account{ID: utils.NewObjectID(), Name: "Alice"}
	backing := store.NewMemoryDirectory(alice)
	rdb := newMemRedis()
	dir := NewDirectory(rdb, backing, time.Minute, zap.NewNop())

	if _, err := dir.Lookup(ctx, []string{alice.ID}); err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if !rdb.has(key(alice.ID)) {
		t.Fatal("profile not cached")
	}

	// Profile edits are served from the cache until the entry expires.
	backing.Put(models.Account{ID: alice.ID, Name: "Alice B."})
	got, err := dir.Lookup(ctx, []string{alice.ID})
	if err != nil || got[alice.ID].Name != "Alice" {
		t.Fatalf("expected cached profile, got %+v, %v", got, err)
	}
}

func TestDirectoryDeletedAccount(t *testing.T) {
	ctx := context.Background()
	alice := models.Account{ID: utils.NewObjectID(), Name: "Alice"}
	backing := store.NewMemoryDirectory(alice)
	rdb := newMemRedis()
	dir := NewDirectory(rdb, backing, time.Minute, zap.NewNop())

	if _, err := dir.Lookup(ctx, []string{alice.ID}); err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	backing.Remove(alice.ID)

	ok, err := dir.Exists(ctx, alice.ID)
	if err != nil || ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}
	live, err := dir.Existing(ctx, []string{alice.ID})
	if err != nil || live[alice.ID] {
		t.Fatalf("Existing = %v, %v", live, err)
	}
	got, err := dir.Lookup(ctx, []string{alice.ID})
	if err != nil || len(got) != 0 {
		t.Fatalf("Lookup = %+v, %v", got, err)
	}
	if rdb.has(key(alice.ID)) {
		t.Error("stale entry not evicted")
	}
}

func TestCachedServiceHonoursDeletedAccounts(t *testing.T) {
	ctx := context.Background()
	alice := models.Account{ID: utils.NewObjectID(), Name: "Alice"}
	bob := models.Account{ID: utils.NewObjectID(), Name: "Bob"}
	backing := store.NewMemoryDirectory(alice, bob)
	dir := NewDirectory(newMemRedis(), backing, time.Minute, zap.NewNop())
	svc := messaging.NewService(store.NewMemory(), dir)

	if _, err := svc.Send(ctx, alice.ID, bob.ID, "hi", ""); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	convs, err := svc.ListConversations(ctx, alice.ID)
	if err != nil || len(convs) != 1 {
		t.Fatalf("expected 1 conversation, got %d, %v", len(convs), err)
	}

	backing.Remove(bob.ID)

	if _, err := svc.Send(ctx, alice.ID, bob.ID, "still there?", ""); !errors.Is(err, messaging.ErrInvalidReceiver) {
		t.Errorf("expected ErrInvalidReceiver, got %v", err)
	}
	convs, err = svc.ListConversations(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(convs) != 0 {
		t.Errorf("dangling conversation kept: %+v", convs)
	}
}
