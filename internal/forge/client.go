package forge

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v55/github"
	"golang.org/x/oauth2"
)

// Client is a forge API client scoped to one authenticated account.
type Client struct {
	gh     *github.Client
	logger *slog.Logger

	login string // cached by Me
}

// NewHTTPClient returns an HTTP client that attaches a bearer token from ts
// to every request. The source is asked for a token on each request, so
// any caching is the source's business.
func NewHTTPClient(ts oauth2.TokenSource, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &oauth2.Transport{
			Source: ts,
			Base:   http.DefaultTransport,
		},
	}
}

// NewClient creates a forge client against apiURL (for example
// "https://api.github.com/"). httpClient must handle authentication. A nil
// logger discards output.
func NewClient(httpClient *http.Client, apiURL, userAgent string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}

	base, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("forge: invalid API URL %q: %w", apiURL, err)
	}

	gh := github.NewClient(httpClient)
	gh.BaseURL = base

	if userAgent != "" {
		gh.UserAgent = userAgent
	}

	return &Client{gh: gh, logger: logger}, nil
}

// Me returns the login of the authenticated account. The result is cached
// for the lifetime of the client.
func (c *Client) Me(ctx context.Context) (string, error) {
	if c.login != "" {
		return c.login, nil
	}

	user, _, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("forge: resolving authenticated user: %w", wrapError(err))
	}

	c.login = user.GetLogin()
	c.logger.Debug("resolved authenticated user", slog.String("login", c.login))

	return c.login, nil
}
