package sentiment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pscheid92/hashpulse/internal/domain"
	apperrors "github.com/pscheid92/hashpulse/internal/platform/errors"
	"github.com/pscheid92/hashpulse/internal/platform/validation"
)

const TaskType = "sentiment.Analyze"

const outputName = "sentiment.json"

// AnalyzeTask reads a staged array of post texts and stages one sentiment record per post.
type AnalyzeTask struct {
	Posts  domain.Property `json:"posts" validate:"required"`
	APIKey domain.Property `json:"api_key" validate:"required"`
	Model  domain.Property `json:"model"`

	chat *ChatClient
}

type analyzeInput struct {
	Posts  string `json:"posts" validate:"required,blob_uri"`
	APIKey string `json:"api_key" validate:"required"`
	Model  string `json:"model"`
}

func NewTaskFactory(chat *ChatClient) domain.TaskFactory {
	return func() domain.Task {
		return &AnalyzeTask{chat: chat}
	}
}

func (t *AnalyzeTask) Type() string { return TaskType }

func (t *AnalyzeTask) Validate() error {
	return validation.Struct(t)
}

func (t *AnalyzeTask) Run(ctx context.Context, rc domain.RunContext) (domain.Output, error) {
	in := analyzeInput{Posts: string(t.Posts), APIKey: string(t.APIKey), Model: string(t.Model)}
	if err := domain.RenderInto(rc, map[string]*string{
		"posts":   &in.Posts,
		"api_key": &in.APIKey,
		"model":   &in.Model,
	}); err != nil {
		return domain.Output{}, err
	}
	if err := validation.Struct(in); err != nil {
		return domain.Output{}, err
	}

	raw, err := rc.ReadBlob(ctx, in.Posts)
	if err != nil {
		return domain.Output{}, fmt.Errorf("read posts: %w", err)
	}
	var posts []string
	if err := json.Unmarshal(raw, &posts); err != nil {
		return domain.Output{}, apperrors.ParseError("posts blob is not a JSON array of strings", err)
	}

	records, err := t.chat.Analyze(ctx, in.APIKey, in.Model, posts)
	if err != nil {
		return domain.Output{}, err
	}
	if len(records) != len(posts) {
		rc.Logger().InfoContext(ctx, "Sentiment count differs from post count", "posts", len(posts), "records", len(records))
	}

	out, err := domain.EncodeJSON(records)
	if err != nil {
		return domain.Output{}, apperrors.InternalError("encode sentiment records", err)
	}

	uri, err := rc.WriteBlob(ctx, outputName, out)
	if err != nil {
		return domain.Output{}, fmt.Errorf("stage sentiment records: %w", err)
	}
	rc.Logger().DebugContext(ctx, "Staged sentiment records", "uri", uri, "records", len(records))

	return domain.NewOutput(uri, rc.Now()), nil
}
