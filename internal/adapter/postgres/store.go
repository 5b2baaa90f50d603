package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pscheid92/hashpulse/internal/domain"
)

const (
	upsertEntry = `
INSERT INTO kv_entries (namespace, key, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

	upsertCredentials = `
INSERT INTO kv_entries (namespace, key, value, updated_at)
VALUES ($1, $2, $3, now()), ($1, $4, $5, now()), ($1, $6, $7, now())
ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
)

type Store struct {
	pool *pgxpool.Pool
}

var _ domain.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Put(ctx context.Context, namespace, key, value string) error {
	if _, err := s.pool.Exec(ctx, upsertEntry, namespace, key, value); err != nil {
		return fmt.Errorf("postgres put %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM kv_entries WHERE namespace = $1 AND key = $2`, namespace, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("postgres get %s/%s: %w", namespace, key, err)
	}
	return value, true, nil
}

func (s *Store) Delete(ctx context.Context, namespace, key string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM kv_entries WHERE namespace = $1 AND key = $2`, namespace, key)
	if err != nil {
		return false, fmt.Errorf("postgres delete %s/%s: %w", namespace, key, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) LoadCredentials(ctx context.Context, namespace string) (domain.CredentialSet, bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, value FROM kv_entries WHERE namespace = $1 AND key = ANY($2)`,
		namespace, []string{domain.KeyAccessToken, domain.KeyRefreshToken, domain.KeyExpiresAt},
	)
	if err != nil {
		return domain.CredentialSet{}, false, fmt.Errorf("postgres load credentials %s: %w", namespace, err)
	}

	fields := make(map[string]string, 3)
	var key, value string
	_, err = pgx.ForEachRow(rows, []any{&key, &value}, func() error {
		fields[key] = value
		return nil
	})
	if err != nil {
		return domain.CredentialSet{}, false, fmt.Errorf("postgres load credentials %s: %w", namespace, err)
	}

	creds, found := domain.CredentialsFromFields(fields)
	return creds, found, nil
}

// SwapCredentials holds pg_advisory_xact_lock(hashtext(namespace)) for the transaction, so
// concurrent swaps on one namespace run one after another.
func (s *Store) SwapCredentials(ctx context.Context, namespace, previousRefreshToken string, next domain.CredentialSet) (bool, error) {
	swapped := false
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, namespace); err != nil {
			return fmt.Errorf("lock namespace: %w", err)
		}

		var stored string
		err := tx.QueryRow(ctx,
			`SELECT value FROM kv_entries WHERE namespace = $1 AND key = $2`, namespace, domain.KeyRefreshToken,
		).Scan(&stored)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
		case err != nil:
			return fmt.Errorf("read refresh token: %w", err)
		case stored != previousRefreshToken:
			return nil
		}

		fields := next.Fields()
		if _, err := tx.Exec(ctx, upsertCredentials, namespace,
			domain.KeyAccessToken, fields[domain.KeyAccessToken],
			domain.KeyRefreshToken, fields[domain.KeyRefreshToken],
			domain.KeyExpiresAt, fields[domain.KeyExpiresAt],
		); err != nil {
			return fmt.Errorf("write credentials: %w", err)
		}
		swapped = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("postgres swap credentials %s: %w", namespace, err)
	}
	return swapped, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
