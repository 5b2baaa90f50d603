package domain

import (
	"strconv"
	"strings"
	"time"
)

// Fixed keys a CredentialSet is persisted under inside its namespace.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyExpiresAt    = "expires_at"
)

// CredentialSet is an OAuth2 access/refresh token pair plus the server-reported expiry.
// ClientID is supplied by task inputs and never persisted.
type CredentialSet struct {
	AccessToken          string
	RefreshToken         string
	ExpiresAtEpochMillis int64
	ClientID             string
}

// Valid reports whether the access token is usable at now. Every field must be set
// and now must be strictly before the expiry.
func (c CredentialSet) Valid(now time.Time) bool {
	if c.AccessToken == "" || c.RefreshToken == "" || c.ExpiresAtEpochMillis <= 0 {
		return false
	}
	return now.UnixMilli() < c.ExpiresAtEpochMillis
}

func (c CredentialSet) ExpiresAt() time.Time {
	if c.ExpiresAtEpochMillis <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(c.ExpiresAtEpochMillis)
}

// ParseExpiresAt decodes a stored expires_at value. Missing or unparsable values are 0 (unset).
func ParseExpiresAt(s string) int64 {
	ms, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || ms < 0 {
		return 0
	}
	return ms
}

func FormatExpiresAt(ms int64) string {
	return strconv.FormatInt(ms, 10)
}

// Fields returns the persisted key/value form.
func (c CredentialSet) Fields() map[string]string {
	return map[string]string{
		KeyAccessToken:  c.AccessToken,
		KeyRefreshToken: c.RefreshToken,
		KeyExpiresAt:    FormatExpiresAt(c.ExpiresAtEpochMillis),
	}
}

// CredentialsFromFields is the inverse of Fields. found is false when none of the keys is present.
func CredentialsFromFields(fields map[string]string) (creds CredentialSet, found bool) {
	access, okA := fields[KeyAccessToken]
	refresh, okR := fields[KeyRefreshToken]
	expires, okE := fields[KeyExpiresAt]
	return CredentialSet{
		AccessToken:          access,
		RefreshToken:         refresh,
		ExpiresAtEpochMillis: ParseExpiresAt(expires),
	}, okA || okR || okE
}
