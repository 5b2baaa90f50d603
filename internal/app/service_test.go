package app

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/hashpulse/internal/adapter/blob"
	"github.com/pscheid92/hashpulse/internal/adapter/memory"
	"github.com/pscheid92/hashpulse/internal/adapter/metrics"
	"github.com/pscheid92/hashpulse/internal/adapter/template"
	"github.com/pscheid92/hashpulse/internal/domain"
	"github.com/pscheid92/hashpulse/internal/platform/config"
	"github.com/pscheid92/hashpulse/internal/platform/correlation"
	apperrors "github.com/pscheid92/hashpulse/internal/platform/errors"
	"github.com/pscheid92/hashpulse/internal/platform/validation"
)

var runDay = time.Date(2024, 11, 29, 9, 0, 0, 0, time.UTC)

// echoTask writes its rendered message to a blob.
type echoTask struct {
	Message domain.Property `json:"message" validate:"required"`
	Suffix  domain.Property `json:"suffix"`

	fail  error
	runID *string
}

func (t *echoTask) Type() string    { return "test.Echo" }
func (t *echoTask) Validate() error { return validation.Struct(t) }

func (t *echoTask) Run(ctx context.Context, rc domain.RunContext) (domain.Output, error) {
	if t.runID != nil {
		*t.runID = rc.RunID()
		rc.Logger().InfoContext(ctx, "echo running")
	}
	if t.fail != nil {
		return domain.Output{}, t.fail
	}

	msg, suffix := string(t.Message), string(t.Suffix)
	if err := domain.RenderInto(rc, map[string]*string{"message": &msg, "suffix": &suffix}); err != nil {
		return domain.Output{}, err
	}
	uri, err := rc.WriteBlob(ctx, "echo.txt", []byte(msg+suffix))
	if err != nil {
		return domain.Output{}, err
	}
	return domain.NewOutput(uri, rc.Now()), nil
}

type fixture struct {
	svc     *Service
	store   *memory.Store
	metrics *metrics.TaskMetrics
}

func newFixture(t *testing.T, task func() *echoTask) fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(runDay)
	store := memory.NewStore()
	m := metrics.NewTaskMetrics(prometheus.NewRegistry())

	svc := NewService(store, blob.NewMemoryStore(clock), template.NewRenderer(), clock, m)
	svc.Register("test.Echo", func() domain.Task { return task() })
	return fixture{svc: svc, store: store, metrics: m}
}

func defaultEcho() *echoTask { return &echoTask{Suffix: "!"} }

func TestRun_RendersAndStages(t *testing.T) {
	f := newFixture(t, defaultEcho)
	ctx := context.Background()
	require.NoError(t, f.store.Put(ctx, "marketing", "greeting", "Hello"))

	res, err := f.svc.Run(ctx, RunRequest{
		Type:       "test.Echo",
		Namespace:  "marketing",
		Inputs:     map[string]any{"name": "Kestra"},
		Properties: json.RawMessage(`{"message": "{{ kv \"greeting\" }}, {{ .inputs.name }} on {{ .execution.date }}"}`),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "2024-11-29", res.CurrentDate)
	assert.Regexp(t, `^blob:///marketing/2024-11-29/.+-echo\.txt$`, res.URI)

	data, err := f.svc.ReadBlob(ctx, res.URI)
	require.NoError(t, err)
	assert.Equal(t, "Hello, Kestra on 2024-11-29!", string(data))

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RunsTotal.WithLabelValues("test.Echo", "success")))
	assert.Equal(t, float64(len(data)), testutil.ToFloat64(f.metrics.BlobBytes.WithLabelValues("marketing")))
}

func TestRun_NumericPropertyOverridesDefault(t *testing.T) {
	f := newFixture(t, defaultEcho)

	res, err := f.svc.Run(context.Background(), RunRequest{
		Type:       "test.Echo",
		Namespace:  "ns",
		Properties: json.RawMessage(`{"message": 42, "suffix": null}`),
	})
	require.NoError(t, err)

	data, err := f.svc.ReadBlob(context.Background(), res.URI)
	require.NoError(t, err)
	assert.Equal(t, "42!", string(data))
}

func TestRun_RequestErrors(t *testing.T) {
	f := newFixture(t, defaultEcho)

	tests := []struct {
		name string
		req  RunRequest
		want apperrors.ErrorType
	}{
		{"unknown type", RunRequest{Type: "nope.Nope", Namespace: "ns"}, apperrors.TypeNotFound},
		{"missing namespace", RunRequest{Type: "test.Echo"}, apperrors.TypeValidation},
		{"bad namespace", RunRequest{Type: "test.Echo", Namespace: "../etc"}, apperrors.TypeValidation},
		{"unknown property", RunRequest{Type: "test.Echo", Namespace: "ns", Properties: json.RawMessage(`{"message":"x","bogus":1}`)}, apperrors.TypeValidation},
		{"malformed properties", RunRequest{Type: "test.Echo", Namespace: "ns", Properties: json.RawMessage(`{"message":`)}, apperrors.TypeValidation},
		{"missing required property", RunRequest{Type: "test.Echo", Namespace: "ns"}, apperrors.TypeValidation},
		{"unresolved template", RunRequest{Type: "test.Echo", Namespace: "ns", Properties: json.RawMessage(`{"message":"{{ .inputs.missing }}"}`)}, apperrors.TypeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Run(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, tt.want), err.Error())
		})
	}
}

func TestRun_TaskFailureIsCountedByType(t *testing.T) {
	f := newFixture(t, func() *echoTask {
		return &echoTask{Message: "x", fail: apperrors.AuthError(http.StatusUnauthorized, "twitter: Unauthorized")}
	})

	_, err := f.svc.Run(context.Background(), RunRequest{Type: "test.Echo", Namespace: "ns"})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.TypeAuth))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RunsTotal.WithLabelValues("test.Echo", "auth")))
}

func TestRun_LogsCarryRunID(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(correlation.NewHandler(slog.NewJSONHandler(&buf, nil))))
	t.Cleanup(func() { slog.SetDefault(prev) })

	var runID string
	f := newFixture(t, func() *echoTask { return &echoTask{Message: "x", runID: &runID} })

	res, err := f.svc.Run(context.Background(), RunRequest{Type: "test.Echo", Namespace: "ns"})
	require.NoError(t, err)
	assert.Equal(t, res.RunID, runID)

	var line map[string]any
	for _, raw := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		require.NoError(t, json.Unmarshal(raw, &line))
		assert.Equal(t, runID, line["correlation_id"])
		assert.Equal(t, "test.Echo", line["task_type"])
		assert.Equal(t, "ns", line["namespace"])
	}
}

func TestKV(t *testing.T) {
	f := newFixture(t, defaultEcho)
	ctx := context.Background()

	_, err := f.svc.GetKV(ctx, "ns", "k")
	assert.True(t, apperrors.IsType(err, apperrors.TypeNotFound))

	require.NoError(t, f.svc.PutKV(ctx, "ns", "k", "v"))
	v, err := f.svc.GetKV(ctx, "ns", "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	require.NoError(t, f.svc.DeleteKV(ctx, "ns", "k"))
	err = f.svc.DeleteKV(ctx, "ns", "k")
	assert.True(t, apperrors.IsType(err, apperrors.TypeNotFound))

	err = f.svc.PutKV(ctx, "a/b", "k", "v")
	assert.True(t, apperrors.IsType(err, apperrors.TypeValidation))
}

func TestBootstrap_MemoryBackends(t *testing.T) {
	cfg := &config.Config{
		KVBackend:               config.BackendMemory,
		BlobBackend:             config.BackendMemory,
		HTTPTimeout:             time.Second,
		ApifyBaseURL:            "http://apify.invalid",
		TwitterAPIBaseURL:       "http://twitter.invalid",
		TwitterTokenBaseURL:     "http://x.invalid",
		LLMBaseURL:              "http://llm.invalid",
		LLMModel:                "llama3-8b-8192",
		TokenRefreshMaxAttempts: 1,
	}

	rt, err := Bootstrap(context.Background(), cfg, clockwork.NewFakeClockAt(runDay))
	require.NoError(t, err)
	t.Cleanup(rt.Close)

	assert.Equal(t, []string{"instagram.GetPosts", "sentiment.Analyze", "twitter.GetTweets"}, rt.Service.TaskTypes())
	require.NoError(t, rt.Service.Ping(context.Background()))

	_, err = rt.Service.Run(context.Background(), RunRequest{Type: "instagram.GetPosts", Namespace: "ns"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token is required")
}
