package secrets

import (
	"context"
	"crypto/tls"
	"encoding/json"

	"seatool_alerts/platform/apperr"
	"seatool_alerts/platform/config"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "secret:"

// RedisStore implements Store on Redis. Values are stored as JSON strings
// under "secret:<project>/<stage>/<purpose>".
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a secret store from the shared Redis configuration.
func NewRedisStore(cfg config.SecretsConfig) (*RedisStore, error) {
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, "invalid redis url", err).WithOp("secrets.NewRedisStore")
	}

	if cfg.GetRedisTLSInsecure() {
		if opt.TLSConfig != nil {
			opt.TLSConfig.InsecureSkipVerify = true
		} else {
			opt.TLSConfig = &tls.Config{InsecureSkipVerify: true}
		}
	}

	return &RedisStore{client: redis.NewClient(opt)}, nil
}

// NewRedisStoreFromClient wraps an existing client; used by tests.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Exists(ctx context.Context, scope Scope) (bool, error) {
	n, err := s.client.Exists(ctx, keyPrefix+scope.Path()).Result()
	if err != nil {
		return false, apperr.TransientIO("secret exists check failed", err).WithOp("secrets.Exists")
	}
	return n > 0, nil
}

func (s *RedisStore) GetJSON(ctx context.Context, scope Scope, out any) error {
	val, err := s.client.Get(ctx, keyPrefix+scope.Path()).Result()
	if err == redis.Nil {
		return apperr.NotFound("secret not found: " + scope.Path()).WithOp("secrets.GetJSON")
	}
	if err != nil {
		return apperr.TransientIO("secret fetch failed", err).WithOp("secrets.GetJSON")
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return apperr.Wrap(apperr.KindMalformedRecord, "secret is not valid JSON", err).WithOp("secrets.GetJSON")
	}
	return nil
}
