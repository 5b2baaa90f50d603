package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/hashpulse/internal/domain"
)

const keyPrefix = "hashpulse:kv:"

// swapCredentialsScript writes the three credential fields only when the stored refresh token is
// absent or equals ARGV[1]. Returns 1 when written.
// KEYS: [1]=namespace hash. ARGV: [1]=previous refresh token, [2]=access, [3]=refresh, [4]=expires_at
var swapCredentialsScript = goredis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'refresh_token')
if current and current ~= ARGV[1] then
  return 0
end
redis.call('HSET', KEYS[1], 'access_token', ARGV[2], 'refresh_token', ARGV[3], 'expires_at', ARGV[4])
return 1
`)

// Store keeps each namespace in one hash, hashpulse:kv:<namespace>.
type Store struct {
	rdb *goredis.Client
}

var _ domain.Store = (*Store)(nil)

func NewStore(rdb *goredis.Client) *Store {
	return &Store{rdb: rdb}
}

func namespaceKey(namespace string) string {
	return keyPrefix + namespace
}

func (s *Store) Put(ctx context.Context, namespace, key, value string) error {
	if err := s.rdb.HSet(ctx, namespaceKey(namespace), key, value).Err(); err != nil {
		return fmt.Errorf("redis put %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	value, err := s.rdb.HGet(ctx, namespaceKey(namespace), key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s/%s: %w", namespace, key, err)
	}
	return value, true, nil
}

func (s *Store) Delete(ctx context.Context, namespace, key string) (bool, error) {
	n, err := s.rdb.HDel(ctx, namespaceKey(namespace), key).Result()
	if err != nil {
		return false, fmt.Errorf("redis delete %s/%s: %w", namespace, key, err)
	}
	return n > 0, nil
}

func (s *Store) LoadCredentials(ctx context.Context, namespace string) (domain.CredentialSet, bool, error) {
	keys := []string{domain.KeyAccessToken, domain.KeyRefreshToken, domain.KeyExpiresAt}
	values, err := s.rdb.HMGet(ctx, namespaceKey(namespace), keys...).Result()
	if err != nil {
		return domain.CredentialSet{}, false, fmt.Errorf("redis load credentials %s: %w", namespace, err)
	}

	fields := make(map[string]string, len(keys))
	for i, v := range values {
		if str, ok := v.(string); ok {
			fields[keys[i]] = str
		}
	}
	creds, found := domain.CredentialsFromFields(fields)
	return creds, found, nil
}

func (s *Store) SwapCredentials(ctx context.Context, namespace, previousRefreshToken string, next domain.CredentialSet) (bool, error) {
	fields := next.Fields()
	written, err := swapCredentialsScript.Run(ctx, s.rdb, []string{namespaceKey(namespace)},
		previousRefreshToken,
		fields[domain.KeyAccessToken],
		fields[domain.KeyRefreshToken],
		fields[domain.KeyExpiresAt],
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis swap credentials %s: %w", namespace, err)
	}
	return written == 1, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}
