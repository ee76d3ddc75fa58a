package connector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// connectionResponse mirrors the broker's connection listing. Only the
// fields needed to build a credential are decoded.
type connectionResponse struct {
	Items []connectionItem `json:"items"`
}

type connectionItem struct {
	Settings connectionSettings `json:"settings"`
}

type connectionSettings struct {
	AccessToken string       `json:"access_token"`
	ExpiresAt   expiresAt    `json:"expires_at"`
	OAuth       *oauthConfig `json:"oauth"`
}

type oauthConfig struct {
	Credentials struct {
		AccessToken string `json:"access_token"`
	} `json:"credentials"`
}

// toToken converts the first connection into an oauth2.Token. It returns nil
// when no connection carries an access token. A zero Expiry means the broker
// did not say how long the token lives.
func (r *connectionResponse) toToken() *oauth2.Token {
	if len(r.Items) == 0 {
		return nil
	}

	s := r.Items[0].Settings

	access := s.AccessToken
	if access == "" && s.OAuth != nil {
		access = s.OAuth.Credentials.AccessToken
	}

	if access == "" {
		return nil
	}

	return &oauth2.Token{
		AccessToken: access,
		TokenType:   "Bearer",
		Expiry:      time.Time(s.ExpiresAt),
	}
}

// unixMillisThreshold separates unix seconds from unix milliseconds. Any
// numeric expiry above it is read as milliseconds.
const unixMillisThreshold = 1e12

// expiresAt accepts an RFC 3339 string, a unix timestamp number (seconds or
// milliseconds), or null.
type expiresAt time.Time

func (e *expiresAt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*e = expiresAt{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}

		if s == "" {
			*e = expiresAt{}
			return nil
		}

		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("connector: invalid expires_at %q: %w", s, err)
		}

		*e = expiresAt(t)

		return nil
	}

	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("connector: invalid expires_at %s: %w", data, err)
	}

	if n > unixMillisThreshold {
		*e = expiresAt(time.UnixMilli(int64(n)))
	} else {
		*e = expiresAt(time.Unix(int64(n), 0))
	}

	return nil
}
