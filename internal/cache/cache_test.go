package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryClient(t *testing.T) {
	c := NewMemory("test")
	ctx := context.Background()

	if _, err := c.Get(ctx, "missing"); !IsNotFound(err) {
		t.Fatalf("want not found, got %v", err)
	}

	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil || got != "v" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Get(ctx, "k"); !IsNotFound(err) {
		t.Fatalf("want not found after delete, got %v", err)
	}
}

func TestMemoryClientTTL(t *testing.T) {
	c := NewMemory("")
	ctx := context.Background()

	if err := c.Set(ctx, "fugaz", "v", 10*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, err := c.Get(ctx, "fugaz"); !IsNotFound(err) {
		t.Fatalf("entry should have expired, got %v", err)
	}
}

func TestNewDefaultsToMemory(t *testing.T) {
	c, err := New(Config{Kind: ""})
	if err != nil || c == nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
