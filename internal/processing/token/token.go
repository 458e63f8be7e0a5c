// Package token caches bearer tokens per credential name and decides between reuse and refresh.
package token

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nypl/cancel-request-consumer/internal/core/domain"
	"github.com/nypl/cancel-request-consumer/internal/processing/metrics"
)

// FetchFunc obtains a fresh token from a credential service.
type FetchFunc func(ctx context.Context) (string, error)

// Store holds at most one token per credential name.
// Setting an empty token invalidates the entry.
type Store interface {
	Get(ctx context.Context, name string) (string, error)
	Set(ctx context.Context, name, token string) error
}

// Resolve returns the cached token when it is non-empty, without calling fetch.
// Otherwise it returns the token produced by fetch. Errors from fetch are returned unchanged.
func Resolve(ctx context.Context, cached string, fetch FetchFunc, name string) (domain.Credential, error) {
	if cached != "" {
		return domain.Credential{Token: cached, TokenName: name, TokenType: domain.TokenTypeCached}, nil
	}

	token, err := fetch(ctx)
	if err != nil {
		return domain.Credential{}, err
	}
	return domain.Credential{Token: token, TokenName: name, TokenType: domain.TokenTypeNew}, nil
}

// Cache resolves credentials against a Store and persists freshly fetched tokens.
type Cache struct {
	store Store
	log   *slog.Logger
}

// NewCache creates a token cache backed by store.
func NewCache(store Store) *Cache {
	return &Cache{store: store, log: slog.Default()}
}

// Acquire returns a credential for name, fetching and storing a new token on a miss.
func (c *Cache) Acquire(ctx context.Context, name string, fetch FetchFunc) (domain.Credential, error) {
	cached, err := c.store.Get(ctx, name)
	if err != nil {
		// An unreachable store is treated as a miss
		c.log.Warn("Token store read failed", "token_name", name, "error", err)
		cached = ""
	}

	cred, err := Resolve(ctx, cached, fetch, name)
	if err != nil {
		return domain.Credential{}, err
	}

	if cred.TokenType == domain.TokenTypeNew {
		if err := c.store.Set(ctx, name, cred.Token); err != nil {
			c.log.Warn("Token store write failed", "token_name", name, "error", err)
		}
	}

	metrics.TokenAcquisitions.WithLabelValues(name, string(cred.TokenType)).Inc()
	c.log.Debug("Credential resolved", "token_name", name, "token_type", cred.TokenType)
	return cred, nil
}

// Invalidate drops the cached token for name so the next Acquire fetches a new one.
func (c *Cache) Invalidate(ctx context.Context, name string) error {
	if err := c.store.Set(ctx, name, ""); err != nil {
		return fmt.Errorf("failed to invalidate token %s: %w", name, err)
	}
	metrics.TokenInvalidations.WithLabelValues(name).Inc()
	c.log.Info("Cached credential invalidated", "token_name", name)
	return nil
}

// Peek returns the cached token for name without fetching.
func (c *Cache) Peek(ctx context.Context, name string) (string, error) {
	return c.store.Get(ctx, name)
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens[name], nil
}

func (s *MemoryStore) Set(_ context.Context, name, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == "" {
		delete(s.tokens, name)
		return nil
	}
	s.tokens[name] = token
	return nil
}
