package sentiment

import (
	"context"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/pscheid92/hashpulse/internal/apiclient"
	"github.com/pscheid92/hashpulse/internal/domain"
	apperrors "github.com/pscheid92/hashpulse/internal/platform/errors"
)

const provider = "llm"

const instructionPrompt = `Please provide a sentiment analysis for the posts in the following format:

[
  {
    "sentiment": "POSITIVE",
    "score": 0.7,
    "positive_word_count": 4,
    "negative_word_count": 1
  },
  {
    "sentiment": "NEGATIVE",
    "score": 0.3,
    "positive_word_count": 2,
    "negative_word_count": 6
  },
  {
    "sentiment": "NEUTRAL",
    "score": 0.4,
    "positive_word_count": 2,
    "negative_word_count": 3
  }
]

NOTE: Ensure there is an **equal distribution** of **POSITIVE**, **NEGATIVE** and **NEUTRAL** responses across the posts. Do not skew results to either positive or negative excessively. Just return the raw JSON response in the exact format as shown above without any additional explanation or plain text.`

const dataPrefix = "Here is the data for analysis: "

// Sender is the slice of apiclient.Client used here.
type Sender interface {
	Send(ctx context.Context, method, rawURL string, headers map[string]string, body any) (*apiclient.Response, error)
}

// ChatClient talks to an OpenAI-compatible chat completions endpoint.
type ChatClient struct {
	api          Sender
	endpoint     string
	defaultModel string
}

func NewChatClient(api Sender, baseURL, defaultModel string) *ChatClient {
	return &ChatClient{
		api:          api,
		endpoint:     apiclient.BuildURL(baseURL, "/chat/completions", nil),
		defaultModel: defaultModel,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

// Analyze asks the model for one record per post. An empty model falls back to the client default.
func (c *ChatClient) Analyze(ctx context.Context, apiKey, model string, posts []string) ([]domain.SentimentRecord, error) {
	if model == "" {
		model = c.defaultModel
	}

	data, err := encodePosts(posts)
	if err != nil {
		return nil, apperrors.InternalError("encode posts", err)
	}

	req := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "user", Content: instructionPrompt},
			{Role: "user", Content: dataPrefix + data},
		},
	}
	headers := map[string]string{"Authorization": "Bearer " + apiKey}

	resp, err := c.api.Send(ctx, http.MethodPost, c.endpoint, headers, req)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, resp.Err(provider)
	}

	if !gjson.ValidBytes(resp.Body) {
		return nil, apperrors.ParseError("chat completion response is not JSON", nil)
	}
	content := gjson.GetBytes(resp.Body, "choices.0.message.content")
	if content.Type != gjson.String {
		return nil, apperrors.ExtractionError("chat completion response has no message content")
	}

	return Extract(content.Str)
}

// encodePosts renders posts as a JSON array without HTML escaping so the model sees the text as written.
func encodePosts(posts []string) (string, error) {
	if posts == nil {
		posts = []string{}
	}
	b, err := domain.EncodeJSON(posts)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
