package oauth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/pscheid92/hashpulse/internal/adapter/metrics"
	"github.com/pscheid92/hashpulse/internal/apiclient"
	"github.com/pscheid92/hashpulse/internal/domain"
	apperrors "github.com/pscheid92/hashpulse/internal/platform/errors"
	"github.com/pscheid92/hashpulse/internal/platform/retry"
)

const (
	defaultMaxAttempts    = 3
	defaultBackoff        = 500 * time.Millisecond
	defaultRefreshTimeout = 2 * time.Minute
)

// Refresher performs the refresh_token grant.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken, clientID string) (domain.CredentialSet, error)
}

type Manager struct {
	tokens    domain.TokenStore
	refresher Refresher
	clock     clockwork.Clock
	policy    retry.Policy
	metrics   *metrics.TokenMetrics
	group     singleflight.Group

	refreshTimeout time.Duration
}

type Option func(*Manager)

// WithRetry bounds refresh attempts. Backoff doubles after each failed attempt.
func WithRetry(maxAttempts int, initialBackoff time.Duration) Option {
	return func(m *Manager) {
		m.policy.MaxAttempts = maxAttempts
		m.policy.InitialBackoff = initialBackoff
		m.policy.RateLimitBackoff = 4 * initialBackoff
		m.policy.MaxBackoff = 16 * initialBackoff
	}
}

// WithRefreshTimeout bounds one shared refresh, including every retry and the final swap.
// The refresh does not inherit the cancellation of the caller that started it.
func WithRefreshTimeout(d time.Duration) Option {
	return func(m *Manager) { m.refreshTimeout = d }
}

func WithMetrics(tm *metrics.TokenMetrics) Option {
	return func(m *Manager) { m.metrics = tm }
}

func NewManager(tokens domain.TokenStore, refresher Refresher, clock clockwork.Clock, opts ...Option) *Manager {
	m := &Manager{
		tokens:         tokens,
		refresher:      refresher,
		clock:          clock,
		refreshTimeout: defaultRefreshTimeout,
	}
	WithRetry(defaultMaxAttempts, defaultBackoff)(m)
	for _, opt := range opts {
		opt(m)
	}
	m.policy.Clock = clock
	return m
}

// EnsureValidToken returns current unchanged while it is valid. Otherwise it refreshes and persists
// exactly one new CredentialSet for the namespace. Concurrent callers presenting the same namespace,
// client ID and refresh token share a refresh. A caller whose ctx ends stops waiting, but the shared
// refresh keeps running so a rotated refresh token is always persisted.
func (m *Manager) EnsureValidToken(ctx context.Context, namespace string, current domain.CredentialSet) (domain.CredentialSet, error) {
	if current.Valid(m.clock.Now()) {
		if m.metrics != nil {
			m.metrics.Reused.Inc()
		}
		return current, nil
	}

	ch := m.group.DoChan(flightKey(namespace, current), func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.refreshTimeout)
		defer cancel()
		return m.refresh(rctx, namespace, current)
	})

	select {
	case <-ctx.Done():
		return domain.CredentialSet{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.CredentialSet{}, res.Err
		}
		creds := res.Val.(domain.CredentialSet)
		creds.ClientID = current.ClientID
		if res.Shared {
			slog.DebugContext(ctx, "Shared in-flight token refresh", "namespace", namespace)
		}
		return creds, nil
	}
}

// flightKey separates refreshes for different apps or token generations within one namespace.
func flightKey(namespace string, current domain.CredentialSet) string {
	return namespace + "\x00" + current.ClientID + "\x00" + current.RefreshToken
}

func (m *Manager) refresh(ctx context.Context, namespace string, current domain.CredentialSet) (domain.CredentialSet, error) {
	start := m.clock.Now()
	defer func() {
		if m.metrics != nil {
			m.metrics.RefreshDuration.Observe(m.clock.Since(start).Seconds())
		}
	}()

	policy := m.policy
	policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.WarnContext(ctx, "Token refresh failed, retrying",
			"namespace", namespace,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
	}

	next, err := retry.Do(ctx, policy, apiclient.ClassifyRetry, func(ctx context.Context) (domain.CredentialSet, error) {
		return m.refresher.Refresh(ctx, current.RefreshToken, current.ClientID)
	})
	if err != nil {
		if apperrors.IsType(err, apperrors.TypeAuth) {
			if stored, ok := m.rotatedElsewhere(ctx, namespace, current); ok {
				slog.WarnContext(ctx, "Token refresh rejected but another writer already rotated the credentials",
					"namespace", namespace, "error", err)
				m.count("recovered")
				return stored, nil
			}
		}
		m.count("failed")
		return domain.CredentialSet{}, fmt.Errorf("refresh token for namespace %q: %w", namespace, err)
	}

	swapped, err := m.tokens.SwapCredentials(ctx, namespace, current.RefreshToken, next)
	if err != nil {
		m.count("failed")
		return domain.CredentialSet{}, fmt.Errorf("persist credentials for namespace %q: %w", namespace, err)
	}
	m.count("refreshed")

	if !swapped {
		if m.metrics != nil {
			m.metrics.SwapConflicts.Inc()
		}
		stored, found, err := m.tokens.LoadCredentials(ctx, namespace)
		if err == nil && found && stored.Valid(m.clock.Now()) {
			slog.WarnContext(ctx, "Credentials were rotated concurrently, using stored set", "namespace", namespace)
			return stored, nil
		}
		slog.WarnContext(ctx, "Credentials were rotated concurrently, stored set unusable, keeping refreshed set",
			"namespace", namespace)
		return next, nil
	}

	slog.InfoContext(ctx, "Token refreshed", "namespace", namespace, "expires_at", next.ExpiresAt())
	return next, nil
}

// rotatedElsewhere reports a valid stored set whose refresh token differs from the one we presented.
func (m *Manager) rotatedElsewhere(ctx context.Context, namespace string, current domain.CredentialSet) (domain.CredentialSet, bool) {
	stored, found, err := m.tokens.LoadCredentials(ctx, namespace)
	if err != nil || !found {
		return domain.CredentialSet{}, false
	}
	if stored.RefreshToken == current.RefreshToken || !stored.Valid(m.clock.Now()) {
		return domain.CredentialSet{}, false
	}
	return stored, true
}

func (m *Manager) count(result string) {
	if m.metrics != nil {
		m.metrics.Refreshes.WithLabelValues(result).Inc()
	}
}
