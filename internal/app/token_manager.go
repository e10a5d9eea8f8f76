package app

import (
	"context"
	"errors"
	"log"

	"golang.org/x/sync/singleflight"

	"trivia-quiz/internal/domain"
)

// TokenSource issues fresh session tokens from the trivia API.
type TokenSource interface {
	RequestToken(ctx context.Context) (string, error)
}

// TokenManager owns the persisted session token.
// Losing the token only means the API may repeat questions.
type TokenManager struct {
	kv     KeyValueStore
	source TokenSource
	sf     singleflight.Group
}

func NewTokenManager(kv KeyValueStore, source TokenSource) *TokenManager {
	return &TokenManager{kv: kv, source: source}
}

// Token returns the stored token or requests a new one. It returns "" on any failure.
func (m *TokenManager) Token(ctx context.Context) string {
	token, err := m.kv.Get(ctx, KeySessionToken)
	if err == nil && token != "" {
		return token
	}
	if err != nil && !errors.Is(err, domain.ErrKeyNotFound) {
		log.Printf("read session token: %v", err)
	}

	result, _, _ := m.sf.Do(KeySessionToken, func() (interface{}, error) {
		// Another caller may have stored one while we waited.
		if token, err := m.kv.Get(ctx, KeySessionToken); err == nil && token != "" {
			return token, nil
		}
		token, err := m.source.RequestToken(ctx)
		if err != nil {
			log.Printf("request session token: %v", err)
			return "", nil
		}
		if err := m.kv.Set(ctx, KeySessionToken, token); err != nil {
			log.Printf("persist session token: %v", err)
		}
		return token, nil
	})
	return result.(string)
}

// Invalidate removes the stored token so the next Token call requests a new one.
func (m *TokenManager) Invalidate(ctx context.Context) {
	if err := m.kv.Delete(ctx, KeySessionToken); err != nil {
		log.Printf("invalidate session token: %v", err)
	}
}
