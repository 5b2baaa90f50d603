package instagram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pscheid92/hashpulse/internal/domain"
	apperrors "github.com/pscheid92/hashpulse/internal/platform/errors"
	"github.com/pscheid92/hashpulse/internal/platform/validation"
)

const (
	TaskType = "instagram.GetPosts"

	DefaultHashtag       = "blackfridaysale"
	DefaultNumberOfPosts = "1"

	outputName = "posts.json"
)

// GetPostsTask stages the captions of the most recent posts for a hashtag.
type GetPostsTask struct {
	Token         domain.Property `json:"token" validate:"required"`
	Hashtag       domain.Property `json:"hashtag"`
	NumberOfPosts domain.Property `json:"numberOfPosts"`

	client *Client
}

type getPostsInput struct {
	Token         string `json:"token" validate:"required"`
	Hashtag       string `json:"hashtag" validate:"required,hashtag"`
	NumberOfPosts int    `json:"numberOfPosts" validate:"min=1,max=1000"`
}

func NewTaskFactory(client *Client) domain.TaskFactory {
	return func() domain.Task {
		return &GetPostsTask{
			Hashtag:       DefaultHashtag,
			NumberOfPosts: DefaultNumberOfPosts,
			client:        client,
		}
	}
}

func (t *GetPostsTask) Type() string { return TaskType }

func (t *GetPostsTask) Validate() error {
	return validation.Struct(t)
}

func (t *GetPostsTask) Run(ctx context.Context, rc domain.RunContext) (domain.Output, error) {
	in, err := t.render(rc)
	if err != nil {
		return domain.Output{}, err
	}

	captions, err := t.client.FetchCaptions(ctx, in.Token, in.Hashtag, in.NumberOfPosts)
	if err != nil {
		return domain.Output{}, err
	}

	out, err := domain.EncodeJSON(captions)
	if err != nil {
		return domain.Output{}, apperrors.InternalError("encode captions", err)
	}

	uri, err := rc.WriteBlob(ctx, outputName, out)
	if err != nil {
		return domain.Output{}, fmt.Errorf("stage captions: %w", err)
	}
	rc.Logger().DebugContext(ctx, "Staged instagram captions", "uri", uri, "hashtag", in.Hashtag, "posts", len(captions))

	return domain.NewOutput(uri, rc.Now()), nil
}

func (t *GetPostsTask) render(rc domain.RunContext) (getPostsInput, error) {
	token, hashtag, count := string(t.Token), string(t.Hashtag), string(t.NumberOfPosts)
	if err := domain.RenderInto(rc, map[string]*string{
		"token":         &token,
		"hashtag":       &hashtag,
		"numberOfPosts": &count,
	}); err != nil {
		return getPostsInput{}, err
	}

	n, err := strconv.Atoi(domain.OrDefault(count, DefaultNumberOfPosts))
	if err != nil {
		return getPostsInput{}, apperrors.ValidationError(fmt.Sprintf("numberOfPosts must be an integer, got %q", count))
	}

	in := getPostsInput{
		Token:         strings.TrimSpace(token),
		Hashtag:       strings.TrimPrefix(domain.OrDefault(hashtag, DefaultHashtag), "#"),
		NumberOfPosts: n,
	}
	return in, validation.Struct(in)
}
