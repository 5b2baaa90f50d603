package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/pscheid92/hashpulse/internal/adapter/template"
	"github.com/pscheid92/hashpulse/internal/domain"
)

// runContext is the domain.RunContext for one run. It keeps the run's context so
// Render can reach the KV store from the kv template function.
type runContext struct {
	ctx       context.Context
	svc       *Service
	id        string
	namespace string
	inputs    map[string]any
	started   time.Time
	logger    *slog.Logger
}

var _ domain.RunContext = (*runContext)(nil)

func newRunContext(ctx context.Context, svc *Service, id, namespace string, inputs map[string]any) *runContext {
	return &runContext{
		ctx:       ctx,
		svc:       svc,
		id:        id,
		namespace: namespace,
		inputs:    inputs,
		started:   svc.clock.Now(),
		logger:    slog.Default().With("namespace", namespace),
	}
}

func (r *runContext) RunID() string        { return r.id }
func (r *runContext) Namespace() string    { return r.namespace }
func (r *runContext) Logger() *slog.Logger { return r.logger }
func (r *runContext) Now() time.Time       { return r.svc.clock.Now() }

func (r *runContext) Render(tmpl string) (string, error) {
	return r.svc.renderer.Render(r.ctx, tmpl, template.Scope{
		Namespace: r.namespace,
		RunID:     r.id,
		Date:      r.started,
		Inputs:    r.inputs,
		KV:        r.svc.store,
	})
}

func (r *runContext) ReadBlob(ctx context.Context, uri string) ([]byte, error) {
	return r.svc.blobs.Get(ctx, uri)
}

func (r *runContext) WriteBlob(ctx context.Context, name string, data []byte) (string, error) {
	uri, err := r.svc.blobs.Put(ctx, r.namespace, name, data)
	if err != nil {
		return "", err
	}
	if r.svc.metrics != nil {
		r.svc.metrics.BlobBytes.WithLabelValues(r.namespace).Add(float64(len(data)))
	}
	return uri, nil
}

func (r *runContext) GetKV(ctx context.Context, key string) (string, bool, error) {
	return r.svc.store.Get(ctx, r.namespace, key)
}

func (r *runContext) PutKV(ctx context.Context, key, value string) error {
	return r.svc.store.Put(ctx, r.namespace, key, value)
}

func (r *runContext) Tokens() domain.TokenStore {
	return r.svc.store
}
