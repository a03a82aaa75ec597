package identity

import (
	"sync"

	"github.com/ag-tej/shiksha-setu/internal/domain"
)

// Credential is a concurrency-safe holder for the current bearer token.
type Credential struct {
	mu    sync.RWMutex
	token domain.Token
}

var _ domain.TokenSource = (*Credential)(nil)

func NewCredential() *Credential {
	return &Credential{}
}

// BearerToken returns the current access token, or ("", false) when absent.
func (c *Credential) BearerToken() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token.AccessToken, c.token.Valid()
}

func (c *Credential) set(token domain.Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Credential) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = domain.Token{}
}
