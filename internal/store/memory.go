package store

import (
	"context"
	"encoding/json"
	"reflect"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store used in tests and local development.
// It mirrors the PostgresStore semantics: full-item overwrite on Put,
// top-level merge on Update, top-level containment match on Scan.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]map[Key]json.RawMessage
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]map[Key]json.RawMessage)}
}

func (s *MemoryStore) Get(_ context.Context, table string, key Key) (json.RawMessage, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.tables[table][key]
	if !ok {
		return nil, false, nil
	}
	return item, true, nil
}

func (s *MemoryStore) Put(_ context.Context, table string, key Key, item any) error {
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tables[table] == nil {
		s.tables[table] = make(map[Key]json.RawMessage)
	}
	s.tables[table][key] = data
	return nil
}

func (s *MemoryStore) Update(_ context.Context, table string, key Key, fields map[string]any) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tables[table] == nil {
		s.tables[table] = make(map[Key]json.RawMessage)
	}

	doc := make(map[string]any)
	if existing, ok := s.tables[table][key]; ok {
		if err := json.Unmarshal(existing, &doc); err != nil {
			return nil, err
		}
	}
	for k, v := range fields {
		doc[k] = v
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	s.tables[table][key] = data
	return data, nil
}

func (s *MemoryStore) Scan(_ context.Context, table string, filter Filter) ([]json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]Key, 0, len(s.tables[table]))
	for key := range s.tables[table] {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].PK != keys[j].PK {
			return keys[i].PK < keys[j].PK
		}
		return keys[i].SK < keys[j].SK
	})

	var items []json.RawMessage
	for _, key := range keys {
		item := s.tables[table][key]
		if len(filter) > 0 && !matchesFilter(item, filter) {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func matchesFilter(item json.RawMessage, filter Filter) bool {
	var doc map[string]any
	if err := json.Unmarshal(item, &doc); err != nil {
		return false
	}
	// Round-trip the filter values through JSON so numeric types compare
	// the same way the JSONB containment operator would.
	normalized, err := json.Marshal(filter)
	if err != nil {
		return false
	}
	var want map[string]any
	if err := json.Unmarshal(normalized, &want); err != nil {
		return false
	}
	for k, v := range want {
		got, ok := doc[k]
		if !ok || !reflect.DeepEqual(got, v) {
			return false
		}
	}
	return true
}
