package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ag-tej/shiksha-setu/internal/crypto"
	"github.com/ag-tej/shiksha-setu/internal/domain"
)

// TokenCache persists the bearer token between runs, optionally encrypted
// at rest.
type TokenCache struct {
	path   string
	cipher crypto.Cipher
}

type cachedToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func NewTokenCache(path string, cipher crypto.Cipher) *TokenCache {
	if cipher == nil {
		cipher = crypto.Noop{}
	}
	return &TokenCache{path: path, cipher: cipher}
}

// Load reads the cached token. A missing file is not an error; an unreadable
// or undecryptable file is.
func (c *TokenCache) Load() (domain.Token, bool, error) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Token{}, false, nil
		}
		return domain.Token{}, false, fmt.Errorf("failed to read token cache: %w", err)
	}

	plain, err := c.cipher.Decrypt(string(raw))
	if err != nil {
		return domain.Token{}, false, fmt.Errorf("failed to decrypt token cache: %w", err)
	}

	var cached cachedToken
	if err := json.Unmarshal([]byte(plain), &cached); err != nil {
		return domain.Token{}, false, fmt.Errorf("failed to parse token cache: %w", err)
	}

	token := domain.Token{AccessToken: cached.AccessToken, TokenType: cached.TokenType}
	return token, token.Valid(), nil
}

// Save writes the token with owner-only permissions, creating parent
// directories as needed.
func (c *TokenCache) Save(token domain.Token) error {
	encoded, err := json.Marshal(cachedToken{AccessToken: token.AccessToken, TokenType: token.TokenType})
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	sealed, err := c.cipher.Encrypt(string(encoded))
	if err != nil {
		return fmt.Errorf("failed to encrypt token: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := os.WriteFile(c.path, []byte(sealed), 0o600); err != nil {
		return fmt.Errorf("failed to write token cache: %w", err)
	}
	return nil
}

// Clear removes the cached token; a missing file is fine.
func (c *TokenCache) Clear() error {
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token cache: %w", err)
	}
	return nil
}
