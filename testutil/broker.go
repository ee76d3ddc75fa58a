package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

// FakeBroker is an in-process connectors broker that hands out a fixed
// forge token.
type FakeBroker struct {
	Server *httptest.Server

	mu        sync.Mutex
	token     string
	expiresAt string
	status    int
	calls     atomic.Int32
	identity  atomic.Value
}

// NewFakeBroker starts a broker that answers with token. The server is shut
// down by t.Cleanup.
func NewFakeBroker(t *testing.T, token string) *FakeBroker {
	t.Helper()

	b := &FakeBroker{token: token, status: http.StatusOK}
	b.Server = httptest.NewServer(http.HandlerFunc(b.handle))
	t.Cleanup(b.Server.Close)

	return b
}

// SetExpiry makes the broker report an expires_at value (RFC 3339).
func (b *FakeBroker) SetExpiry(expiresAt string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.expiresAt = expiresAt
}

// SetStatus makes the broker answer with status and no token.
func (b *FakeBroker) SetStatus(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.status = status
}

// Calls returns how many exchanges the broker served.
func (b *FakeBroker) Calls() int {
	return int(b.calls.Load())
}

// LastIdentity returns the X_REPLIT_TOKEN header of the latest request.
func (b *FakeBroker) LastIdentity() string {
	v, _ := b.identity.Load().(string)
	return v
}

func (b *FakeBroker) handle(w http.ResponseWriter, r *http.Request) {
	b.calls.Add(1)
	b.identity.Store(r.Header.Get("X_REPLIT_TOKEN"))

	b.mu.Lock()
	status, token, expiresAt := b.status, b.token, b.expiresAt
	b.mu.Unlock()

	if r.URL.Path != "/api/v2/connection" || r.URL.Query().Get("connector_names") != "github" {
		writeNotFound(w)
		return
	}

	if status != http.StatusOK {
		writeJSON(w, status, map[string]any{"message": "broker failure"})
		return
	}

	settings := map[string]any{"access_token": token}
	if expiresAt != "" {
		settings["expires_at"] = expiresAt
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": []any{map[string]any{"settings": settings}},
	})
}
