package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/hashpulse/internal/adapter/metrics"
	"github.com/pscheid92/hashpulse/internal/adapter/template"
	"github.com/pscheid92/hashpulse/internal/domain"
	"github.com/pscheid92/hashpulse/internal/platform/correlation"
	apperrors "github.com/pscheid92/hashpulse/internal/platform/errors"
	"github.com/pscheid92/hashpulse/internal/platform/validation"
)

// Renderer evaluates property templates for a run.
type Renderer interface {
	Render(ctx context.Context, tmpl string, scope template.Scope) (string, error)
}

type Service struct {
	tasks    map[string]domain.TaskFactory
	store    domain.Store
	blobs    domain.BlobStore
	renderer Renderer
	clock    clockwork.Clock
	metrics  *metrics.TaskMetrics
}

// NewService wires the service. m may be nil.
func NewService(store domain.Store, blobs domain.BlobStore, renderer Renderer, clock clockwork.Clock, m *metrics.TaskMetrics) *Service {
	return &Service{
		tasks:    make(map[string]domain.TaskFactory),
		store:    store,
		blobs:    blobs,
		renderer: renderer,
		clock:    clock,
		metrics:  m,
	}
}

// Register adds a task type. Registering the same type twice replaces the factory.
func (s *Service) Register(taskType string, factory domain.TaskFactory) {
	s.tasks[taskType] = factory
}

func (s *Service) TaskTypes() []string {
	return slices.Sorted(maps.Keys(s.tasks))
}

// RunRequest is one task invocation. Properties is the task's JSON property object.
type RunRequest struct {
	Type       string          `json:"type" validate:"required"`
	Namespace  string          `json:"namespace" validate:"required,namespace"`
	Inputs     map[string]any  `json:"inputs"`
	Properties json.RawMessage `json:"properties"`
}

type RunResult struct {
	RunID string `json:"run_id"`
	domain.Output
}

// Run decodes, validates and runs one task. It blocks until the task finishes.
func (s *Service) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	if err := validation.Struct(req); err != nil {
		return RunResult{}, err
	}

	factory, ok := s.tasks[req.Type]
	if !ok {
		return RunResult{}, apperrors.NotFoundError(fmt.Sprintf("unknown task type %q", req.Type))
	}

	task := factory()
	if err := decodeProperties(req.Properties, task); err != nil {
		return RunResult{}, err
	}
	if err := task.Validate(); err != nil {
		return RunResult{}, err
	}

	runID := uuid.NewString()
	ctx = correlation.WithID(ctx, runID)
	ctx = correlation.With(ctx, "task_type", req.Type)

	rc := newRunContext(ctx, s, runID, req.Namespace, req.Inputs)
	logger := rc.Logger()
	logger.InfoContext(ctx, "Task run started")

	start := s.clock.Now()
	out, err := task.Run(ctx, rc)
	elapsed := s.clock.Since(start)

	result := "success"
	if err != nil {
		result = string(apperrors.AsStructuredError(err).Type)
	}
	if s.metrics != nil {
		s.metrics.RunsTotal.WithLabelValues(req.Type, result).Inc()
		s.metrics.RunDuration.WithLabelValues(req.Type).Observe(elapsed.Seconds())
	}

	if err != nil {
		logger.WarnContext(ctx, "Task run failed", "error", err, "duration", elapsed)
		return RunResult{}, fmt.Errorf("run %s: %w", req.Type, err)
	}
	logger.InfoContext(ctx, "Task run finished", "uri", out.URI, "duration", elapsed)
	return RunResult{RunID: runID, Output: out}, nil
}

// decodeProperties applies raw onto task; fields it does not name keep their defaults.
func decodeProperties(raw json.RawMessage, task domain.Task) error {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(task); err != nil {
		return apperrors.ValidationError(fmt.Sprintf("invalid properties: %v", err))
	}
	return nil
}

// GetKV returns a NotFoundError for a missing key.
func (s *Service) GetKV(ctx context.Context, namespace, key string) (string, error) {
	value, found, err := s.store.Get(ctx, namespace, key)
	if err != nil {
		return "", err
	}
	if !found {
		return "", apperrors.NotFoundError(fmt.Sprintf("key %q not found in namespace %q", key, namespace))
	}
	return value, nil
}

func (s *Service) PutKV(ctx context.Context, namespace, key, value string) error {
	if err := checkKey(namespace, key); err != nil {
		return err
	}
	return s.store.Put(ctx, namespace, key, value)
}

func (s *Service) DeleteKV(ctx context.Context, namespace, key string) error {
	deleted, err := s.store.Delete(ctx, namespace, key)
	if err != nil {
		return err
	}
	if !deleted {
		return apperrors.NotFoundError(fmt.Sprintf("key %q not found in namespace %q", key, namespace))
	}
	return nil
}

func (s *Service) ReadBlob(ctx context.Context, uri string) ([]byte, error) {
	return s.blobs.Get(ctx, uri)
}

// Ping checks the KV backend.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

type kvRef struct {
	Namespace string `json:"namespace" validate:"required,namespace"`
	Key       string `json:"key" validate:"required,max=256"`
}

func checkKey(namespace, key string) error {
	return validation.Struct(kvRef{Namespace: namespace, Key: key})
}
