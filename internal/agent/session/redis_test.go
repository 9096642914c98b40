package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/finn-shopping-assistant/server/internal/agent/model"
)

func newTestRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, ttl), mr
}

func TestRedisStoreRoundTripsThread(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := newTestRedisStore(t, time.Hour)

	thread, err := store.GetOrCreate(ctx, "t1", system)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if len(thread.Messages) != 1 {
		t.Fatalf("len(messages) = %d, want 1", len(thread.Messages))
	}

	if err := store.Append(ctx, "t1", model.UserMessage("I'm user id 5")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	id := int64(5)
	if err := store.SaveContext(ctx, "t1", model.ThreadContext{UserID: &id, LastAction: "show-orders"}); err != nil {
		t.Fatalf("SaveContext() error = %v", err)
	}

	thread, err = store.GetOrCreate(ctx, "t1", system)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if len(thread.Messages) != 2 || thread.Messages[1].Content != "I'm user id 5" {
		t.Fatalf("messages = %#v", thread.Messages)
	}
	if thread.Context.UserID == nil || *thread.Context.UserID != 5 {
		t.Fatalf("context = %#v, want user 5", thread.Context)
	}
	if thread.Context.LastAction != "show-orders" {
		t.Fatalf("last action = %q", thread.Context.LastAction)
	}
}

func TestRedisStoreReplaceHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := newTestRedisStore(t, 0)

	_, _ = store.GetOrCreate(ctx, "t1", system)
	_ = store.Append(ctx, "t1", model.UserMessage("stale"))

	history := []model.Message{model.UserMessage("x"), model.AssistantMessage("y")}
	if err := store.ReplaceHistory(ctx, "t1", system, history); err != nil {
		t.Fatalf("ReplaceHistory() error = %v", err)
	}

	thread, _ := store.GetOrCreate(ctx, "t1", system)
	want := append([]model.Message{system}, history...)
	if len(thread.Messages) != len(want) {
		t.Fatalf("len(messages) = %d, want %d", len(thread.Messages), len(want))
	}
	for i := range want {
		if thread.Messages[i] != want[i] {
			t.Fatalf("messages[%d] = %#v, want %#v", i, thread.Messages[i], want[i])
		}
	}
}

func TestRedisStoreRefreshesTTL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, mr := newTestRedisStore(t, 10*time.Minute)

	_, _ = store.GetOrCreate(ctx, "t1", system)
	mr.FastForward(9 * time.Minute)
	_ = store.Append(ctx, "t1", model.UserMessage("still here"))
	mr.FastForward(9 * time.Minute)

	if !mr.Exists("conversation:t1:messages") {
		t.Fatal("conversation expired although it was touched")
	}
	if ttl := mr.TTL("conversation:t1:messages"); ttl <= 0 || ttl > 10*time.Minute {
		t.Fatalf("ttl = %v", ttl)
	}
}

func TestRedisStoreConcurrentCreateSeedsOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, mr := newTestRedisStore(t, time.Hour)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.GetOrCreate(ctx, "t1", system); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	rows, err := mr.List("conversation:t1:messages")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(messages) = %d, want 1 system message", len(rows))
	}
	if ttl := mr.TTL("conversation:t1:messages"); ttl != time.Hour {
		t.Fatalf("ttl = %v, want %v", ttl, time.Hour)
	}
}
