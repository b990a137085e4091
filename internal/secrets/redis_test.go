package secrets

import (
	"context"
	"testing"

	"seatool_alerts/platform/apperr"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStoreFromClient(client), mr
}

func TestScopePath(t *testing.T) {
	scope := Scope{Project: "seatool-alerts", Stage: "prod", Purpose: "alerts"}
	if got := scope.Path(); got != "seatool-alerts/prod/alerts" {
		t.Fatalf("unexpected scope path: %s", got)
	}
}

func TestExists(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	scope := Scope{Project: "seatool-alerts", Stage: "test", Purpose: "alerts"}

	ok, err := store.Exists(ctx, scope)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if ok {
		t.Fatal("secret should not exist before it is set")
	}

	mr.Set("secret:seatool-alerts/test/alerts", `{"sourceEmail":"noreply@example.com"}`)

	ok, err = store.Exists(ctx, scope)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !ok {
		t.Fatal("secret should exist after it is set")
	}
}

func TestGetJSON(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	scope := Scope{Project: "seatool-alerts", Stage: "test", Purpose: "alerts"}
	mr.Set("secret:seatool-alerts/test/alerts", `{"sourceEmail":"noreply@example.com"}`)

	var value struct {
		SourceEmail string `json:"sourceEmail"`
	}
	if err := store.GetJSON(ctx, scope, &value); err != nil {
		t.Fatalf("get json: %v", err)
	}
	if value.SourceEmail != "noreply@example.com" {
		t.Fatalf("unexpected sourceEmail: %s", value.SourceEmail)
	}
}

func TestGetJSONMissing(t *testing.T) {
	store, _ := newTestStore(t)

	var value map[string]any
	err := store.GetJSON(context.Background(), Scope{Project: "p", Stage: "s", Purpose: "x"}, &value)
	if err == nil {
		t.Fatal("expected error for missing secret")
	}
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected NotFound kind, got %v", err)
	}
}

func TestGetJSONMalformed(t *testing.T) {
	store, mr := newTestStore(t)

	mr.Set("secret:p/s/x", "not-json")

	var value map[string]any
	err := store.GetJSON(context.Background(), Scope{Project: "p", Stage: "s", Purpose: "x"}, &value)
	if !apperr.IsKind(err, apperr.KindMalformedRecord) {
		t.Fatalf("expected MalformedRecord kind, got %v", err)
	}
}
