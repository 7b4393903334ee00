package catalog

import (
	"context"
	"testing"
	"time"
)

func TestTTLCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewTTLCache()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if err := c.Set(ctx, "k", MovieSummary{ID: 1, Title: "A"}, time.Minute); err != nil {
		t.Fatal(err)
	}
	var got MovieSummary
	if ok, err := c.Get(ctx, "k", &got); !ok || err != nil || got.Title != "A" {
		t.Fatalf("expected hit, got %v %v %+v", ok, err, got)
	}

	now = now.Add(2 * time.Minute)
	if ok, _ := c.Get(ctx, "k", &got); ok {
		t.Fatal("expected expired entry to miss")
	}
}

func TestTTLCache_DeleteAndPurge(t *testing.T) {
	ctx := context.Background()
	c := NewTTLCache()
	_ = c.Set(ctx, "a", 1, time.Minute)
	_ = c.Set(ctx, "b", 2, time.Minute)

	_ = c.Delete(ctx, "a")
	var v int
	if ok, _ := c.Get(ctx, "a", &v); ok {
		t.Fatal("expected a deleted")
	}
	_ = c.Purge(ctx)
	if ok, _ := c.Get(ctx, "b", &v); ok {
		t.Fatal("expected purge to drop b")
	}
}
