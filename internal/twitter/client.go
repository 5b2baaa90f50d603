// Package twitter runs recent-search queries against the X/Twitter v2 API with OAuth2 user tokens.
package twitter

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/pscheid92/hashpulse/internal/apiclient"
	apperrors "github.com/pscheid92/hashpulse/internal/platform/errors"
)

const (
	provider   = "twitter"
	searchPath = "/2/tweets/search/recent"
)

// Sender is the slice of apiclient.Client used here.
type Sender interface {
	Send(ctx context.Context, method, rawURL string, headers map[string]string, body any) (*apiclient.Response, error)
}

type Client struct {
	api     Sender
	baseURL string
}

func NewClient(api Sender, baseURL string) *Client {
	return &Client{api: api, baseURL: baseURL}
}

// SearchRecent returns the texts of the most recent tweets tagged with hashtag.
func (c *Client) SearchRecent(ctx context.Context, accessToken, hashtag string, maxResults int) ([]string, error) {
	query := url.Values{}
	query.Set("query", "#"+hashtag)
	query.Set("max_results", strconv.Itoa(maxResults))

	headers := map[string]string{"Authorization": "Bearer " + accessToken}
	resp, err := c.api.Send(ctx, http.MethodGet, apiclient.BuildURL(c.baseURL, searchPath, query), headers, nil)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, resp.Err(provider)
	}
	return tweetTexts(resp.Body)
}

// tweetTexts projects data[].text. A response without data has no matches.
func tweetTexts(body []byte) ([]string, error) {
	if !gjson.ValidBytes(body) {
		return nil, apperrors.ParseError("search response is not JSON", nil)
	}

	data := gjson.GetBytes(body, "data")
	if !data.Exists() {
		return []string{}, nil
	}
	if !data.IsArray() {
		return nil, apperrors.ParseError("search response data is not an array", nil)
	}

	// meta.result_count is untrusted; size from the array actually received.
	items := data.Get("#.text").Array()
	texts := make([]string, 0, len(items))
	for _, text := range items {
		texts = append(texts, text.String())
	}
	return texts, nil
}
