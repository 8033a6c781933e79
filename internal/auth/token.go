// Package auth keeps the API token pair: where it is stored, how it is
// fetched from the token endpoint, and how searches obtain it.
package auth

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/oauth2"
)

// ErrNoToken is returned by a Source when no access token is available
var ErrNoToken = errors.New("no access token; run 'vmusic token refresh'")

// TokenPair is the pair of tokens handed out by the token endpoint
type TokenPair struct {
	VKToken     string `json:"vkToken"`
	LastFMToken string `json:"lastFmToken"`
}

// IsZero reports whether no token is set
func (p TokenPair) IsZero() bool {
	return p.VKToken == "" && p.LastFMToken == ""
}

// Store persists a TokenPair
type Store interface {
	Load(ctx context.Context) (TokenPair, error)
	Save(ctx context.Context, pair TokenPair) error
}

// MemoryStore keeps the pair in memory
type MemoryStore struct {
	mu   sync.RWMutex
	pair TokenPair
}

// NewMemoryStore creates a store holding pair
func NewMemoryStore(pair TokenPair) *MemoryStore {
	return &MemoryStore{pair: pair}
}

// Load implements Store
func (s *MemoryStore) Load(context.Context) (TokenPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair, nil
}

// Save implements Store
func (s *MemoryStore) Save(_ context.Context, pair TokenPair) error {
	s.mu.Lock()
	s.pair = pair
	s.mu.Unlock()
	return nil
}

// Source adapts a Store to oauth2.TokenSource. The VK token never expires on
// its own; it is replaced when the API rejects it.
type Source struct {
	Store Store
	// Fallback is used while the store is empty, e.g. api.access_token from config.
	Fallback string
}

var _ oauth2.TokenSource = (*Source)(nil)

// Token implements oauth2.TokenSource
func (s *Source) Token() (*oauth2.Token, error) {
	pair, err := s.Store.Load(context.Background())
	if err != nil {
		return nil, err
	}

	access := pair.VKToken
	if access == "" {
		access = s.Fallback
	}
	if access == "" {
		return nil, ErrNoToken
	}

	return &oauth2.Token{AccessToken: access, TokenType: "vk"}, nil
}
