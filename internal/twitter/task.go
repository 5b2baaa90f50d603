package twitter

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
	TaskType = "twitter.GetTweets"

	DefaultHashtag       = "blackfridaysale"
	DefaultNumberOfPosts = "10"
	DefaultNamespace     = "twitter"

	outputName = "tweets.json"
)

// TokenManager hands out a usable access token for a credential namespace.
type TokenManager interface {
	EnsureValidToken(ctx context.Context, namespace string, current domain.CredentialSet) (domain.CredentialSet, error)
}

// GetTweetsTask stages the texts of recent tweets for a hashtag. Missing token fields fall back to
// the credentials stored under Namespace.
type GetTweetsTask struct {
	AccessToken   domain.Property `json:"access_token"`
	RefreshToken  domain.Property `json:"refresh_token"`
	ExpiresAt     domain.Property `json:"expires_at"`
	ClientID      domain.Property `json:"client_id" validate:"required"`
	Hashtag       domain.Property `json:"hashtag"`
	NumberOfPosts domain.Property `json:"numberOfPosts"`
	Namespace     domain.Property `json:"namespace"`

	client *Client
	tokens TokenManager
}

type getTweetsInput struct {
	ClientID      string `json:"client_id" validate:"required"`
	Hashtag       string `json:"hashtag" validate:"required,hashtag"`
	NumberOfPosts int    `json:"numberOfPosts" validate:"min=10,max=100"`
	Namespace     string `json:"namespace" validate:"required,namespace"`

	creds domain.CredentialSet
}

func NewTaskFactory(client *Client, tokens TokenManager) domain.TaskFactory {
	return func() domain.Task {
		return &GetTweetsTask{
			Hashtag:       DefaultHashtag,
			NumberOfPosts: DefaultNumberOfPosts,
			Namespace:     DefaultNamespace,
			client:        client,
			tokens:        tokens,
		}
	}
}

func (t *GetTweetsTask) Type() string { return TaskType }

func (t *GetTweetsTask) Validate() error {
	return validation.Struct(t)
}

func (t *GetTweetsTask) Run(ctx context.Context, rc domain.RunContext) (domain.Output, error) {
	in, err := t.render(rc)
	if err != nil {
		return domain.Output{}, err
	}

	creds, err := t.credentials(ctx, rc, in)
	if err != nil {
		return domain.Output{}, err
	}

	creds, err = t.tokens.EnsureValidToken(ctx, in.Namespace, creds)
	if err != nil {
		return domain.Output{}, err
	}

	texts, err := t.client.SearchRecent(ctx, creds.AccessToken, in.Hashtag, in.NumberOfPosts)
	if err != nil {
		return domain.Output{}, err
	}

	out, err := domain.EncodeJSON(texts)
	if err != nil {
		return domain.Output{}, apperrors.InternalError("encode tweets", err)
	}

	uri, err := rc.WriteBlob(ctx, outputName, out)
	if err != nil {
		return domain.Output{}, fmt.Errorf("stage tweets: %w", err)
	}
	rc.Logger().DebugContext(ctx, "Staged tweets", "uri", uri, "hashtag", in.Hashtag, "tweets", len(texts))

	return domain.NewOutput(uri, rc.Now()), nil
}

func (t *GetTweetsTask) render(rc domain.RunContext) (getTweetsInput, error) {
	access, refresh, expires := string(t.AccessToken), string(t.RefreshToken), string(t.ExpiresAt)
	clientID, hashtag, count, ns := string(t.ClientID), string(t.Hashtag), string(t.NumberOfPosts), string(t.Namespace)

	if err := domain.RenderInto(rc, map[string]*string{
		"access_token":  &access,
		"refresh_token": &refresh,
		"expires_at":    &expires,
		"client_id":     &clientID,
		"hashtag":       &hashtag,
		"numberOfPosts": &count,
		"namespace":     &ns,
	}); err != nil {
		return getTweetsInput{}, err
	}

	n, err := strconv.Atoi(domain.OrDefault(count, DefaultNumberOfPosts))
	if err != nil {
		return getTweetsInput{}, apperrors.ValidationError(fmt.Sprintf("numberOfPosts must be an integer, got %q", count))
	}

	in := getTweetsInput{
		ClientID:      strings.TrimSpace(clientID),
		Hashtag:       strings.TrimPrefix(domain.OrDefault(hashtag, DefaultHashtag), "#"),
		NumberOfPosts: n,
		Namespace:     domain.OrDefault(ns, DefaultNamespace),
		creds: domain.CredentialSet{
			AccessToken:          strings.TrimSpace(access),
			RefreshToken:         strings.TrimSpace(refresh),
			ExpiresAtEpochMillis: domain.ParseExpiresAt(expires),
		},
	}
	if err := validation.Struct(in); err != nil {
		return getTweetsInput{}, err
	}
	in.creds.ClientID = in.ClientID
	return in, nil
}

// credentials fills token fields that rendered empty from the stored set.
func (t *GetTweetsTask) credentials(ctx context.Context, rc domain.RunContext, in getTweetsInput) (domain.CredentialSet, error) {
	creds := in.creds
	if creds.AccessToken == "" || creds.RefreshToken == "" || creds.ExpiresAtEpochMillis <= 0 {
		stored, found, err := rc.Tokens().LoadCredentials(ctx, in.Namespace)
		if err != nil {
			return domain.CredentialSet{}, fmt.Errorf("load credentials for namespace %q: %w", in.Namespace, err)
		}
		if found {
			if creds.AccessToken == "" {
				creds.AccessToken = stored.AccessToken
			}
			if creds.RefreshToken == "" {
				creds.RefreshToken = stored.RefreshToken
			}
			if creds.ExpiresAtEpochMillis <= 0 {
				creds.ExpiresAtEpochMillis = stored.ExpiresAtEpochMillis
			}
			rc.Logger().DebugContext(ctx, "Filled missing token fields from store", "namespace", in.Namespace)
		}
	}

	if !creds.Valid(rc.Now()) && creds.RefreshToken == "" {
		return domain.CredentialSet{}, apperrors.ValidationError("refresh_token is required when the access token is missing or expired")
	}
	return creds, nil
}
