package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/pscheid92/hashpulse/internal/apiclient"
	"github.com/pscheid92/hashpulse/internal/domain"
	apperrors "github.com/pscheid92/hashpulse/internal/platform/errors"
)

const tokenPath = "/2/oauth2/token"

// Sender is the slice of apiclient.Client used here.
type Sender interface {
	Send(ctx context.Context, method, rawURL string, headers map[string]string, body any) (*apiclient.Response, error)
}

// TokenClient performs the refresh_token grant against an X/Twitter-style token endpoint.
type TokenClient struct {
	api      Sender
	tokenURL string
}

func NewTokenClient(api Sender, baseURL string) *TokenClient {
	return &TokenClient{
		api:      api,
		tokenURL: apiclient.BuildURL(baseURL, tokenPath, nil),
	}
}

type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresAt    epochMillis `json:"expires_at"`
}

// epochMillis accepts a JSON number or a numeric string. Anything else decodes to 0 (unset).
type epochMillis int64

func (e *epochMillis) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	n := json.Number(data)
	if v, err := n.Int64(); err == nil && v > 0 {
		*e = epochMillis(v)
		return nil
	}
	if f, err := n.Float64(); err == nil && f > 0 {
		*e = epochMillis(int64(f))
		return nil
	}
	*e = 0
	return nil
}

// Refresh exchanges refreshToken for a new token pair. Non-200 answers are AuthErrors, malformed
// bodies ParseErrors and network failures TransportErrors. A response without refresh_token keeps
// the one that was presented.
func (c *TokenClient) Refresh(ctx context.Context, refreshToken, clientID string) (domain.CredentialSet, error) {
	form := url.Values{}
	form.Set("refresh_token", refreshToken)
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", clientID)

	resp, err := c.api.Send(ctx, http.MethodPost, c.tokenURL, nil, form)
	if err != nil {
		return domain.CredentialSet{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return domain.CredentialSet{}, resp.Err("token endpoint")
	}

	var result tokenResponse
	if err := apiclient.DecodeJSON(resp.Body, &result); err != nil {
		return domain.CredentialSet{}, err
	}
	if result.AccessToken == "" {
		return domain.CredentialSet{}, apperrors.ParseError("token response without access_token", nil)
	}
	if result.RefreshToken == "" {
		result.RefreshToken = refreshToken
	}

	return domain.CredentialSet{
		AccessToken:          result.AccessToken,
		RefreshToken:         result.RefreshToken,
		ExpiresAtEpochMillis: int64(result.ExpiresAt),
		ClientID:             clientID,
	}, nil
}
