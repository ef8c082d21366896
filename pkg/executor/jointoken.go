package executor

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// TokenManager issues and validates short-lived tokens a new node presents
// when asking to join the Raft cluster as a voter.
type TokenManager struct {
	tokens map[string]*JoinToken
	mu     sync.RWMutex
}

// JoinToken is a credential for joining the cluster. ValidateToken does not
// consume it: it stays valid until ExpiresAt or until RevokeToken removes it.
type JoinToken struct {
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// NewTokenManager creates an empty token manager.
func NewTokenManager() *TokenManager {
	return &TokenManager{tokens: make(map[string]*JoinToken)}
}

// GenerateToken mints a new join token valid for duration.
func (tm *TokenManager) GenerateToken(duration time.Duration) (*JoinToken, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate random token: %w", err)
	}

	jt := &JoinToken{
		Token:     hex.EncodeToString(raw),
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(duration),
	}

	tm.mu.Lock()
	tm.tokens[jt.Token] = jt
	tm.mu.Unlock()

	return jt, nil
}

// ValidateToken reports whether token is known and unexpired.
func (tm *TokenManager) ValidateToken(token string) error {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	jt, exists := tm.tokens[token]
	if !exists {
		return fmt.Errorf("invalid join token")
	}
	if time.Now().After(jt.ExpiresAt) {
		return fmt.Errorf("join token expired")
	}
	return nil
}

// RevokeToken invalidates token immediately.
func (tm *TokenManager) RevokeToken(token string) {
	tm.mu.Lock()
	delete(tm.tokens, token)
	tm.mu.Unlock()
}

// CleanupExpiredTokens drops every token past its expiry.
func (tm *TokenManager) CleanupExpiredTokens() {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	now := time.Now()
	for token, jt := range tm.tokens {
		if now.After(jt.ExpiresAt) {
			delete(tm.tokens, token)
		}
	}
}

// ListTokens returns every still-tracked token (expired or not).
func (tm *TokenManager) ListTokens() []*JoinToken {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	tokens := make([]*JoinToken, 0, len(tm.tokens))
	for _, jt := range tm.tokens {
		tokens = append(tokens, jt)
	}
	return tokens
}

// GenerateJoinToken mints a 24h join token.
func (e *Executor) GenerateJoinToken() (*JoinToken, error) {
	return e.tokens.GenerateToken(24 * time.Hour)
}

// ValidateJoinToken checks a presented join token.
func (e *Executor) ValidateJoinToken(token string) error {
	return e.tokens.ValidateToken(token)
}
