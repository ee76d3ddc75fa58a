package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	connectionPath = "/api/v2/connection"
	connectorName  = "github"

	// identityHeader keeps its underscores on the wire, so it is written
	// into the header map directly instead of through Header.Set.
	identityHeader = "X_REPLIT_TOKEN"

	// maxErrorBody caps how much of a failed response is kept for messages.
	maxErrorBody = 4096
)

// Clock supplies the current time for credential expiry checks.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Credentials are the environment inputs of a token exchange.
type Credentials struct {
	Hostname     string // REPLIT_CONNECTORS_HOSTNAME
	ReplIdentity string // REPL_IDENTITY
	Renewal      string // WEB_REPL_RENEWAL
}

// identity returns the X_REPLIT_TOKEN header value. The workspace identity
// wins over the deployment renewal token.
func (c Credentials) identity() string {
	switch {
	case c.ReplIdentity != "":
		return "repl " + c.ReplIdentity
	case c.Renewal != "":
		return "depl " + c.Renewal
	default:
		return ""
	}
}

func (c Credentials) validate() error {
	if c.Hostname == "" {
		return fmt.Errorf("%w: REPLIT_CONNECTORS_HOSTNAME is not set", ErrAuthConfiguration)
	}

	if c.identity() == "" {
		return fmt.Errorf("%w: neither REPL_IDENTITY nor WEB_REPL_RENEWAL is set", ErrAuthConfiguration)
	}

	return nil
}

// Option configures a Client.
type Option func(*Client)

// WithClock replaces the wall clock used for expiry checks.
func WithClock(clock Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithEndpoint points the client at a broker base URL instead of
// https://<hostname>. Used to target in-process fakes.
func WithEndpoint(base string) Option {
	return func(c *Client) { c.endpoint = strings.TrimSuffix(base, "/") }
}

// Client fetches forge access tokens from the broker and caches the most
// recent one until it expires. Safe for concurrent use.
type Client struct {
	creds      Credentials
	httpClient *http.Client
	endpoint   string
	clock      Clock
	logger     *slog.Logger

	mu     sync.Mutex
	cached *oauth2.Token
	group  singleflight.Group
}

// NewClient creates a broker client. A nil logger discards output.
func NewClient(creds Credentials, httpClient *http.Client, logger *slog.Logger, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := &Client{
		creds:      creds,
		httpClient: httpClient,
		endpoint:   "https://" + creds.Hostname,
		clock:      systemClock{},
		logger:     logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// AccessToken returns a forge access token, reusing the cached one while it
// is unexpired.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	tok, err := c.token(ctx)
	if err != nil {
		return "", err
	}

	return tok.AccessToken, nil
}

// TokenSource adapts the client to oauth2.TokenSource so an oauth2.Transport
// can attach the bearer token to every forge request. ctx is used for broker
// exchanges and must outlive the source.
//
// Unlike AccessToken, a source keeps a credential that has no expiry for its
// whole lifetime, so one source costs one exchange per run rather than one
// per request. Expiring credentials go through the client cache as usual.
func (c *Client) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, client: c}
}

type tokenSource struct {
	ctx    context.Context //nolint:containedctx // oauth2.TokenSource has no ctx parameter
	client *Client

	mu     sync.Mutex
	pinned *oauth2.Token // credential without expiry, held for the source's life
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pinned != nil {
		return copyToken(s.pinned), nil
	}

	tok, err := s.client.token(s.ctx)
	if err != nil {
		return nil, err
	}

	if tok.Expiry.IsZero() {
		s.pinned = copyToken(tok)
	}

	return tok, nil
}

func (c *Client) token(ctx context.Context) (*oauth2.Token, error) {
	if err := c.creds.validate(); err != nil {
		return nil, err
	}

	if tok := c.cachedToken(); tok != nil {
		c.logger.Debug("using cached forge token", slog.Time("expiry", tok.Expiry))
		return tok, nil
	}

	v, err, shared := c.group.Do(connectorName, func() (any, error) {
		if tok := c.cachedToken(); tok != nil {
			return tok, nil
		}

		tok, err := c.fetch(ctx)
		if err != nil {
			return nil, err
		}

		// A credential without an expiry is never reused.
		if !tok.Expiry.IsZero() {
			c.mu.Lock()
			c.cached = tok
			c.mu.Unlock()
		}

		return tok, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		c.logger.Debug("joined in-flight token exchange")
	}

	tok, ok := v.(*oauth2.Token)
	if !ok {
		return nil, fmt.Errorf("connector: unexpected token type %T", v)
	}

	return copyToken(tok), nil
}

// cachedToken returns a copy of the cached credential if it is still valid.
func (c *Client) cachedToken() *oauth2.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached == nil || !c.clock.Now().Before(c.cached.Expiry) {
		return nil
	}

	return copyToken(c.cached)
}

func copyToken(t *oauth2.Token) *oauth2.Token {
	cp := *t
	return &cp
}

// fetch performs one network exchange with the broker.
func (c *Client) fetch(ctx context.Context) (*oauth2.Token, error) {
	q := url.Values{}
	q.Set("include_secrets", "true")
	q.Set("connector_names", connectorName)

	reqURL := c.endpoint + connectionPath + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("connector: creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header[identityHeader] = []string{c.creds.identity()}

	c.logger.Debug("requesting forge token from broker", slog.String("host", req.URL.Host))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBrokerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		brokerErr := &BrokerError{
			StatusCode: resp.StatusCode,
			RequestID:  resp.Header.Get("X-Request-Id"),
			Message:    strings.TrimSpace(string(body)),
			Err:        ErrBrokerUnavailable,
		}

		c.logger.Warn("broker request failed",
			slog.Int("status", resp.StatusCode),
			slog.String("request_id", brokerErr.RequestID),
		)

		return nil, brokerErr
	}

	var parsed connectionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", ErrBrokerUnavailable, err)
	}

	tok := parsed.toToken()
	if tok == nil {
		return nil, fmt.Errorf("%w: no %s connection with an access token", ErrBrokerUnavailable, connectorName)
	}

	c.logger.Info("obtained forge token",
		slog.Time("expiry", tok.Expiry),
		slog.Bool("cacheable", !tok.Expiry.IsZero()),
	)

	return tok, nil
}
