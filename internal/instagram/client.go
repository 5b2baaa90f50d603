// Package instagram fetches hashtag posts through the Apify Instagram hashtag scraper.
package instagram

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
	provider    = "apify"
	scraperPath = "/v2/acts/apify~instagram-hashtag-scraper/run-sync-get-dataset-items"
	actorMemory = "256"
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

type scrapeRequest struct {
	Hashtags []string `json:"hashtags"`
}

// FetchCaptions runs the scraper synchronously and returns each post's caption, "" when a post has none.
func (c *Client) FetchCaptions(ctx context.Context, token, hashtag string, maxItems int) ([]string, error) {
	query := url.Values{}
	query.Set("token", token)
	query.Set("maxItems", strconv.Itoa(maxItems))
	query.Set("memory", actorMemory)

	endpoint := apiclient.BuildURL(c.baseURL, scraperPath, query)
	resp, err := c.api.Send(ctx, http.MethodPost, endpoint, nil, scrapeRequest{Hashtags: []string{hashtag}})
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, resp.Err(provider)
	}

	if !gjson.ValidBytes(resp.Body) {
		return nil, apperrors.ParseError("scraper response is not JSON", nil)
	}
	items := gjson.ParseBytes(resp.Body)
	if !items.IsArray() {
		return nil, apperrors.ParseError("scraper response is not a JSON array", nil)
	}

	captions := make([]string, 0, len(items.Array()))
	items.ForEach(func(_, item gjson.Result) bool {
		captions = append(captions, item.Get("caption").String())
		return true
	})
	return captions, nil
}
