package domain

import "context"

// KVStore is a namespaced string key-value store.
type KVStore interface {
	Put(ctx context.Context, namespace, key, value string) error
	Get(ctx context.Context, namespace, key string) (value string, found bool, err error)
	Delete(ctx context.Context, namespace, key string) (deleted bool, err error)
}

// TokenStore persists CredentialSets under the fixed credential keys of a namespace.
type TokenStore interface {
	LoadCredentials(ctx context.Context, namespace string) (creds CredentialSet, found bool, err error)
	// SwapCredentials writes all three fields atomically, but only if the stored refresh token
	// is absent or equals previousRefreshToken.
	SwapCredentials(ctx context.Context, namespace, previousRefreshToken string, next CredentialSet) (swapped bool, err error)
}

// Store is what every KV backend provides.
type Store interface {
	KVStore
	TokenStore
	Ping(ctx context.Context) error
}
