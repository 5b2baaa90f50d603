// Package memory is the single-process KV backend. It is the default when no Redis or Postgres is configured.
package memory

import (
	"context"
	"sync"

	"github.com/pscheid92/hashpulse/internal/domain"
)

// Store keeps one map per namespace behind a single mutex.
type Store struct {
	mu         sync.Mutex
	namespaces map[string]map[string]string
}

var _ domain.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{namespaces: make(map[string]map[string]string)}
}

func (s *Store) Put(_ context.Context, namespace, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bucket(namespace)[key] = value
	return nil
}

func (s *Store) Get(_ context.Context, namespace, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.namespaces[namespace][key]
	return value, ok, nil
}

func (s *Store) Delete(_ context.Context, namespace, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[namespace]
	if !ok {
		return false, nil
	}
	if _, ok := ns[key]; !ok {
		return false, nil
	}
	delete(ns, key)
	return true, nil
}

func (s *Store) LoadCredentials(_ context.Context, namespace string) (domain.CredentialSet, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, found := domain.CredentialsFromFields(s.namespaces[namespace])
	return creds, found, nil
}

func (s *Store) SwapCredentials(_ context.Context, namespace, previousRefreshToken string, next domain.CredentialSet) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns := s.bucket(namespace)
	if stored, ok := ns[domain.KeyRefreshToken]; ok && stored != previousRefreshToken {
		return false, nil
	}
	for k, v := range next.Fields() {
		ns[k] = v
	}
	return true, nil
}

func (s *Store) Ping(context.Context) error {
	return nil
}

func (s *Store) bucket(namespace string) map[string]string {
	ns, ok := s.namespaces[namespace]
	if !ok {
		ns = make(map[string]string)
		s.namespaces[namespace] = ns
	}
	return ns
}
