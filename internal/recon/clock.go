// Package recon implements the record reconciliation and alert-timing engine:
// pure classification and threshold logic, the staged run pipeline, the
// workflow trigger gate, and the periodic status report.
package recon

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Clock supplies "now" so every elapsed-time computation is deterministic
// under test.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock returns a constant instant; used in tests.
type FixedClock struct {
	Instant time.Time
}

func (c FixedClock) Now() time.Time { return c.Instant }

// SecondsSince returns the whole seconds elapsed between ref and now,
// floored. Positive when ref is in the past, negative when in the future;
// a future reference is not an error at this layer.
func SecondsSince(clock Clock, ref time.Time) int64 {
	ms := clock.Now().UnixMilli() - ref.UnixMilli()
	if ms >= 0 {
		return ms / 1000
	}
	// Floor, not truncate: -1500ms elapsed is -2s.
	return -((-ms + 999) / 1000)
}

// When is a timestamp that unmarshals from any of the upstream wire shapes:
// an ISO-8601 string, an epoch-millisecond number, or an epoch-millisecond
// numeric string. It is the single date-parsing entry point for the engine.
type When struct {
	time.Time
}

// ParseWhen normalizes a raw timestamp value.
func ParseWhen(raw any) (When, error) {
	switch v := raw.(type) {
	case nil:
		return When{}, fmt.Errorf("timestamp is nil")
	case time.Time:
		return When{Time: v}, nil
	case When:
		return v, nil
	case float64:
		return When{Time: time.UnixMilli(int64(v)).UTC()}, nil
	case int64:
		return When{Time: time.UnixMilli(v).UTC()}, nil
	case int:
		return When{Time: time.UnixMilli(int64(v)).UTC()}, nil
	case string:
		return parseWhenString(v)
	default:
		return When{}, fmt.Errorf("unsupported timestamp type %T", raw)
	}
}

func parseWhenString(s string) (When, error) {
	if s == "" {
		return When{}, fmt.Errorf("timestamp is empty")
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return When{Time: time.UnixMilli(ms).UTC()}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return When{Time: t.UTC()}, nil
		}
	}
	return When{}, fmt.Errorf("unparseable timestamp %q", s)
}

// IsZero reports whether the timestamp is unset.
func (w When) IsZero() bool { return w.Time.IsZero() }

// EpochMillis returns the timestamp as epoch milliseconds.
func (w When) EpochMillis() int64 { return w.Time.UnixMilli() }

// LocaleDate renders the timestamp as M/D/YYYY, the normalization the Appian
// pipeline compares and the report renders.
func (w When) LocaleDate() string {
	if w.IsZero() {
		return ""
	}
	return w.Time.UTC().Format("1/2/2006")
}

func (w When) MarshalJSON() ([]byte, error) {
	if w.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(w.Time.UnixMilli())
}

func (w *When) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*w = When{}
		return nil
	}
	parsed, err := ParseWhen(raw)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}
