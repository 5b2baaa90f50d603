package sentiment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/hashpulse/internal/apiclient"
	"github.com/pscheid92/hashpulse/internal/domain"
	"github.com/pscheid92/hashpulse/internal/domain/domaintest"
	apperrors "github.com/pscheid92/hashpulse/internal/platform/errors"
)

const postsURI = "blob:///marketing/2024-11-29/posts.json"

func newTask(t *testing.T, llmContent string) (*AnalyzeTask, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_, _ = w.Write([]byte(completion(llmContent)))
	}))
	t.Cleanup(srv.Close)

	chat := NewChatClient(apiclient.New(apiclient.Config{Provider: provider}), srv.URL, "llama3-8b-8192")
	task := NewTaskFactory(chat)().(*AnalyzeTask)
	return task, &calls
}

func newRunContext() *domaintest.RunContext {
	rc := domaintest.NewRunContext("marketing", clockwork.NewFakeClockAt(time.Date(2024, 11, 29, 23, 30, 0, 0, time.UTC)))
	rc.Vars["posts_uri"] = postsURI
	return rc
}

func TestAnalyzeTask_CountMismatchIsTolerated(t *testing.T) {
	two := `[{"sentiment":"POSITIVE","score":0.9,"positive_word_count":3,"negative_word_count":0},` +
		`{"sentiment":"NEGATIVE","score":0.1,"positive_word_count":0,"negative_word_count":2}]`
	task, _ := newTask(t, two)
	task.Posts = "{{ posts_uri }}"
	task.APIKey = "gsk"
	require.NoError(t, task.Validate())

	rc := newRunContext()
	rc.PutBlob(postsURI, []byte(`["great deal","awful service","meh"]`))

	out, err := task.Run(context.Background(), rc)
	require.NoError(t, err)
	assert.Equal(t, "2024-11-29", out.CurrentDate)

	raw, err := rc.ReadBlob(context.Background(), out.URI)
	require.NoError(t, err)
	var records []domain.SentimentRecord
	require.NoError(t, json.Unmarshal(raw, &records))
	assert.Len(t, records, 2)
}

func TestAnalyzeTask_Validate(t *testing.T) {
	task := &AnalyzeTask{}
	err := task.Validate()
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.TypeValidation))
	assert.Contains(t, err.Error(), "posts is required")
	assert.Contains(t, err.Error(), "api_key is required")
	assert.Equal(t, TaskType, task.Type())
}

func TestAnalyzeTask_RenderedPostsMustBeBlobURI(t *testing.T) {
	task, calls := newTask(t, `[]`)
	task.Posts = "/etc/passwd"
	task.APIKey = "gsk"

	_, err := task.Run(context.Background(), newRunContext())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.TypeValidation))
	assert.Zero(t, *calls)
}

func TestAnalyzeTask_MalformedPostsBlob(t *testing.T) {
	task, calls := newTask(t, `[]`)
	task.Posts = postsURI
	task.APIKey = "gsk"

	rc := newRunContext()
	rc.PutBlob(postsURI, []byte(`{"not":"an array"}`))

	_, err := task.Run(context.Background(), rc)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.TypeParse))
	assert.Zero(t, *calls)
	assert.Empty(t, rc.Writes())
}

func TestAnalyzeTask_MissingPostsBlob(t *testing.T) {
	task, _ := newTask(t, `[]`)
	task.Posts = postsURI
	task.APIKey = "gsk"

	_, err := task.Run(context.Background(), newRunContext())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.TypeNotFound))
}

func TestAnalyzeTask_ExtractionFailureWritesNothing(t *testing.T) {
	task, _ := newTask(t, "I cannot help with that.")
	task.Posts = postsURI
	task.APIKey = "gsk"

	rc := newRunContext()
	rc.PutBlob(postsURI, []byte(`["a"]`))

	_, err := task.Run(context.Background(), rc)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.TypeExtraction))
	assert.Empty(t, rc.Writes())
}
