// Package store provides the durable key-value document store used by the
// reconciliation pipelines. Records live in logical tables and are addressed
// by a partition/sort key pair; writes are full-item overwrites, which is what
// makes the pipeline stages idempotent under re-invocation.
package store

import (
	"context"
	"encoding/json"
)

// Key addresses a document inside a logical table. SK is empty for tables
// keyed by a single id.
type Key struct {
	PK string
	SK string
}

// KeyOf builds a single-id key.
func KeyOf(id string) Key {
	return Key{PK: id}
}

// Filter is a top-level field containment filter for Scan. A nil filter
// matches every document in the table.
type Filter map[string]any

// Store is the document store contract consumed by the pipeline stages.
type Store interface {
	// Get loads one document. found is false when the key is absent;
	// absence is not an error at this layer because several stages treat
	// it as a legitimate outcome.
	Get(ctx context.Context, table string, key Key) (item json.RawMessage, found bool, err error)

	// Put writes the full document, overwriting any existing item.
	Put(ctx context.Context, table string, key Key, item any) error

	// Update merges the given top-level fields into the document,
	// creating it when absent, and returns the resulting item.
	Update(ctx context.Context, table string, key Key, fields map[string]any) (json.RawMessage, error)

	// Scan returns every document in the table matching the filter.
	Scan(ctx context.Context, table string, filter Filter) ([]json.RawMessage, error)
}
