package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestLRUCacheBasicOperations(t *testing.T) {
	c := NewLRUCache(100)
	defer c.Close()
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		if err := c.Set(ctx, "key1", []byte("value1"), time.Minute); err != nil {
			t.Fatalf("set failed: %v", err)
		}

		val, err := c.Get(ctx, "key1")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if string(val) != "value1" {
			t.Errorf("expected value1, got %s", val)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		val, err := c.Get(ctx, "missing")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if val != nil {
			t.Errorf("expected nil for missing key, got %s", val)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		c.Set(ctx, "key2", []byte("value2"), time.Minute)
		if err := c.Delete(ctx, "key2"); err != nil {
			t.Fatalf("delete failed: %v", err)
		}

		val, _ := c.Get(ctx, "key2")
		if val != nil {
			t.Errorf("expected nil after delete, got %s", val)
		}
	})
}

func TestLRUCacheExpiry(t *testing.T) {
	c := NewLRUCache(100)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "ephemeral", []byte("gone soon"), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	val, err := c.Get(ctx, "ephemeral")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if val != nil {
		t.Errorf("expected expired entry to be gone, got %s", val)
	}
}

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache(3)
	defer c.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		c.Set(ctx, fmt.Sprintf("key%d", i), []byte("v"), time.Minute)
	}

	size, capacity := c.Stats()
	if size != 3 {
		t.Errorf("expected size 3 after eviction, got %d", size)
	}
	if capacity != 3 {
		t.Errorf("expected capacity 3, got %d", capacity)
	}

	// Oldest entries evicted first.
	if val, _ := c.Get(ctx, "key0"); val != nil {
		t.Error("expected key0 to be evicted")
	}
	if val, _ := c.Get(ctx, "key4"); val == nil {
		t.Error("expected key4 to survive")
	}
}

func TestLRUCacheCounter(t *testing.T) {
	c := NewLRUCache(100)
	defer c.Close()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := c.IncrementCounter(ctx, "velocity:user-001", time.Minute)
		if err != nil {
			t.Fatalf("increment failed: %v", err)
		}
		if got != want {
			t.Errorf("expected counter %d, got %d", want, got)
		}
	}

	// Independent counters do not interfere.
	got, _ := c.IncrementCounter(ctx, "velocity:user-002", time.Minute)
	if got != 1 {
		t.Errorf("expected fresh counter 1, got %d", got)
	}
}

func TestLRUCacheCounterWindowReset(t *testing.T) {
	c := NewLRUCache(100)
	defer c.Close()
	ctx := context.Background()

	c.IncrementCounter(ctx, "win", 10*time.Millisecond)
	c.IncrementCounter(ctx, "win", 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	got, err := c.IncrementCounter(ctx, "win", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if got != 1 {
		t.Errorf("expected counter reset to 1 after window, got %d", got)
	}
}

func TestCacheFactory(t *testing.T) {
	t.Run("Memory", func(t *testing.T) {
		c, err := New(domain.CacheConfig{Type: "memory", LocalMaxSize: 10})
		if err != nil {
			t.Fatalf("factory failed: %v", err)
		}
		defer c.Close()

		if _, ok := c.(*LRUCache); !ok {
			t.Errorf("expected LRUCache, got %T", c)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		if _, err := New(domain.CacheConfig{Type: "memcached"}); err == nil {
			t.Error("expected error for unsupported cache type")
		}
	})
}

func TestAssessmentCaching(t *testing.T) {
	c := NewLRUCache(100)
	defer c.Close()
	ctx := context.Background()

	assessment := &domain.RiskAssessment{
		TransactionID:  "tx-001",
		AnalysisID:     "analysis-001",
		UserID:         "user-001",
		CompositeScore: 84.2,
		Severity:       domain.SeverityHigh,
		RequiresReview: true,
	}

	if err := SetAssessment(ctx, c, assessment); err != nil {
		t.Fatalf("set assessment failed: %v", err)
	}

	got, err := GetAssessment(ctx, c, "analysis-001")
	if err != nil {
		t.Fatalf("get assessment failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected cached assessment")
	}
	if got.CompositeScore != 84.2 || got.Severity != domain.SeverityHigh {
		t.Errorf("cached assessment mismatch: %+v", got)
	}

	miss, err := GetAssessment(ctx, c, "unknown")
	if err != nil {
		t.Fatalf("get missing assessment failed: %v", err)
	}
	if miss != nil {
		t.Errorf("expected nil for unknown analysis id, got %+v", miss)
	}
}
