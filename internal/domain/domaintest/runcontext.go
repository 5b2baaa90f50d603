// Package domaintest provides an in-memory domain.RunContext for task tests.
package domaintest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/hashpulse/internal/adapter/memory"
	"github.com/pscheid92/hashpulse/internal/domain"
	apperrors "github.com/pscheid92/hashpulse/internal/platform/errors"
)

// RunContext keeps blobs in a map and renders "{{ key }}" placeholders from Vars.
type RunContext struct {
	NS    string
	ID    string
	Clock clockwork.Clock
	Vars  map[string]string
	Store *memory.Store

	mu     sync.Mutex
	blobs  map[string][]byte
	writes []string
}

var _ domain.RunContext = (*RunContext)(nil)

func NewRunContext(namespace string, clock clockwork.Clock) *RunContext {
	return &RunContext{
		NS:    namespace,
		ID:    "run-test",
		Clock: clock,
		Vars:  map[string]string{},
		Store: memory.NewStore(),
		blobs: map[string][]byte{},
	}
}

func (r *RunContext) RunID() string        { return r.ID }
func (r *RunContext) Namespace() string    { return r.NS }
func (r *RunContext) Now() time.Time       { return r.Clock.Now() }
func (r *RunContext) Logger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func (r *RunContext) Render(tmpl string) (string, error) {
	out := tmpl
	for k, v := range r.Vars {
		out = strings.ReplaceAll(out, "{{ "+k+" }}", v)
	}
	if strings.Contains(out, "{{") {
		return "", apperrors.ValidationError(fmt.Sprintf("unresolved template %q", tmpl))
	}
	return out, nil
}

func (r *RunContext) ReadBlob(_ context.Context, uri string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, ok := r.blobs[uri]
	if !ok {
		return nil, apperrors.NotFoundError("blob not found: " + uri)
	}
	return data, nil
}

func (r *RunContext) WriteBlob(_ context.Context, name string, data []byte) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	uri := fmt.Sprintf("blob:///%s/%s/%d-%s", r.NS, r.Clock.Now().UTC().Format(domain.DateLayout), len(r.writes), name)
	r.blobs[uri] = append([]byte(nil), data...)
	r.writes = append(r.writes, uri)
	return uri, nil
}

// PutBlob seeds a blob under a caller-chosen URI.
func (r *RunContext) PutBlob(uri string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blobs[uri] = data
}

// Writes lists the URIs written through WriteBlob, oldest first.
func (r *RunContext) Writes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.writes...)
}

func (r *RunContext) GetKV(ctx context.Context, key string) (string, bool, error) {
	return r.Store.Get(ctx, r.NS, key)
}

func (r *RunContext) PutKV(ctx context.Context, key, value string) error {
	return r.Store.Put(ctx, r.NS, key, value)
}

func (r *RunContext) Tokens() domain.TokenStore {
	return r.Store
}
