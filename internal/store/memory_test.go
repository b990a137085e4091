package store

import (
	"context"
	"encoding/json"
	"testing"
)

func TestMemoryStorePutIsFullOverwrite(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	key := KeyOf("a")

	if err := s.Put(ctx, "t", key, map[string]any{"x": 1, "y": 2}); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "t", key, map[string]any{"x": 9}); err != nil {
		t.Fatal(err)
	}

	raw, found, err := s.Get(ctx, "t", key)
	if err != nil || !found {
		t.Fatalf("get: found=%t err=%v", found, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatal(err)
	}
	if _, ok := doc["y"]; ok {
		t.Fatal("overwrite must drop fields absent from the new item")
	}
}

func TestMemoryStoreUpdateMergesTopLevel(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	key := KeyOf("a")

	if err := s.Put(ctx, "t", key, map[string]any{"x": 1, "y": 2}); err != nil {
		t.Fatal(err)
	}
	raw, err := s.Update(ctx, "t", key, map[string]any{"y": 7, "z": 3})
	if err != nil {
		t.Fatal(err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatal(err)
	}
	if doc["x"] != float64(1) || doc["y"] != float64(7) || doc["z"] != float64(3) {
		t.Fatalf("unexpected merged doc %v", doc)
	}
}

func TestMemoryStoreScanFiltersAndOrders(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_ = s.Put(ctx, "t", KeyOf("b"), map[string]any{"pipeline": "appian", "n": 2})
	_ = s.Put(ctx, "t", KeyOf("a"), map[string]any{"pipeline": "appian", "n": 1})
	_ = s.Put(ctx, "t", KeyOf("c"), map[string]any{"pipeline": "mmdl", "n": 3})

	items, err := s.Scan(ctx, "t", Filter{"pipeline": "appian"})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	var first map[string]any
	if err := json.Unmarshal(items[0], &first); err != nil {
		t.Fatal(err)
	}
	if first["n"] != float64(1) {
		t.Fatalf("expected deterministic key order, got %v", first)
	}

	all, err := s.Scan(ctx, "t", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 items unfiltered, got %d", len(all))
	}
}
