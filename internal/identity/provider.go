package identity

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ag-tej/shiksha-setu/internal/domain"
	apperrors "github.com/ag-tej/shiksha-setu/internal/errors"
)

// Provider owns the authenticated user and the bearer credential lifecycle.
// Safe for concurrent use.
type Provider struct {
	auth  domain.AuthService
	cred  *Credential
	cache *TokenCache

	mu   sync.RWMutex
	user *domain.User

	subsMu  sync.Mutex
	subs    map[int]chan struct{}
	nextSub int
}

var _ domain.IdentityProvider = (*Provider)(nil)

// NewProvider creates the provider. cache may be nil, in which case tokens
// are not persisted between runs.
func NewProvider(auth domain.AuthService, cred *Credential, cache *TokenCache) *Provider {
	return &Provider{
		auth:  auth,
		cred:  cred,
		cache: cache,
		subs:  make(map[int]chan struct{}),
	}
}

// Current returns the authenticated user, or (nil, false) when logged out.
func (p *Provider) Current() (*domain.User, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.user == nil {
		return nil, false
	}
	user := *p.user
	return &user, true
}

// Subscribe returns a coalescing notification channel and a cancel func.
func (p *Provider) Subscribe() (<-chan struct{}, func()) {
	p.subsMu.Lock()
	defer p.subsMu.Unlock()

	id := p.nextSub
	p.nextSub++
	ch := make(chan struct{}, 1)
	p.subs[id] = ch

	cancel := func() {
		p.subsMu.Lock()
		defer p.subsMu.Unlock()
		delete(p.subs, id)
	}
	return ch, cancel
}

// Login exchanges credentials for a token, resolves the account, caches the
// token, and notifies subscribers.
func (p *Provider) Login(ctx context.Context, username, password string) (*domain.User, error) {
	token, err := p.auth.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return p.activate(ctx, token)
}

// Signup registers a new account and activates it like Login.
func (p *Provider) Signup(ctx context.Context, email, password, name string) (*domain.User, error) {
	token, err := p.auth.Signup(ctx, email, password, name)
	if err != nil {
		return nil, err
	}
	return p.activate(ctx, token)
}

// Restore activates the identity from a previously cached token. Returns
// (nil, false, nil) when no usable token is cached; a stale token is
// discarded silently.
func (p *Provider) Restore(ctx context.Context) (*domain.User, bool, error) {
	if p.cache == nil {
		return nil, false, nil
	}

	token, ok, err := p.cache.Load()
	if err != nil || !ok {
		return nil, false, err
	}

	p.cred.set(token)
	user, err := p.auth.CurrentUser(ctx)
	if err != nil {
		p.cred.clear()
		if apperrors.IsType(err, apperrors.TypeUnauthenticated) {
			if clearErr := p.cache.Clear(); clearErr != nil {
				slog.Warn("Failed to discard stale token cache", "error", clearErr)
			}
			return nil, false, nil
		}
		return nil, false, err
	}

	p.setUser(user)
	p.notify()
	return user, true, nil
}

// Logout discards the user, the credential, and the cached token, then
// notifies subscribers.
func (p *Provider) Logout() {
	p.setUser(nil)
	p.cred.clear()
	if p.cache != nil {
		if err := p.cache.Clear(); err != nil {
			slog.Warn("Failed to clear token cache", "error", err)
		}
	}
	p.notify()
}

func (p *Provider) activate(ctx context.Context, token domain.Token) (*domain.User, error) {
	p.cred.set(token)

	user, err := p.auth.CurrentUser(ctx)
	if err != nil {
		p.cred.clear()
		return nil, err
	}

	p.setUser(user)
	if p.cache != nil {
		if err := p.cache.Save(token); err != nil {
			slog.Warn("Failed to persist token cache", "error", err)
		}
	}
	p.notify()
	return user, nil
}

func (p *Provider) setUser(user *domain.User) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.user = user
}

func (p *Provider) notify() {
	p.subsMu.Lock()
	defer p.subsMu.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
