package cache

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRistrettoCache(t *testing.T) {
	cacheInterface, err := NewRistrettoCache(&RistrettoConfig{
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
		Logger:      zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	defer cacheInterface.Close()

	cache := cacheInterface.(*RistrettoCache)

	t.Run("set-and-get", func(t *testing.T) {
		if !cache.Set("spot-rate", "0.0485", time.Minute) {
			t.Error("expected Set to succeed")
		}
		cache.Wait()

		value, found := cache.Get("spot-rate")
		if !found {
			t.Fatal("expected key to be found")
		}
		if value != "0.0485" {
			t.Errorf("expected %q, got %q", "0.0485", value)
		}
	})

	t.Run("get-missing-key", func(t *testing.T) {
		if _, found := cache.Get("nonexistent"); found {
			t.Error("expected key to not be found")
		}
	})

	t.Run("delete", func(t *testing.T) {
		cache.Set("stale-quote", "1", time.Minute)
		cache.Wait()
		cache.Delete("stale-quote")
		cache.Wait()
		if _, found := cache.Get("stale-quote"); found {
			t.Error("expected key to be deleted")
		}
	})
}
