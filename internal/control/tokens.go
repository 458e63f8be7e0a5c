package control

import (
	"github.com/nypl/cancel-request-consumer/internal/core/config"
	"github.com/nypl/cancel-request-consumer/internal/core/domain"
	"github.com/nypl/cancel-request-consumer/internal/infra/api"
	"github.com/nypl/cancel-request-consumer/internal/infra/auth"
	redisclient "github.com/nypl/cancel-request-consumer/internal/infra/redis"
	"github.com/nypl/cancel-request-consumer/internal/processing/token"
)

// NewTokenCache builds the credential cache, backed by Redis when a URL is
// configured and by process memory otherwise. The returned close func releases
// the store.
func NewTokenCache(cfg config.AppConfig) (*token.Cache, func() error, error) {
	if cfg.Redis.URL == "" {
		return token.NewCache(token.NewMemoryStore()), func() error { return nil }, nil
	}

	client, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	store := redisclient.NewTokenStore(client, cfg.Redis.KeyPrefix, cfg.Redis.TokenTTL)
	return token.NewCache(store), client.Close, nil
}

// NewFetchers returns a fetch func per credential name that has a configured service.
func NewFetchers(cfg config.AppConfig, client *api.Client) map[string]token.FetchFunc {
	fetchers := make(map[string]token.FetchFunc)

	if cfg.Auth.OAuth.URL != "" {
		oauth := auth.NewOAuthFetcher(client, auth.OAuthConfig{
			URL:          cfg.Auth.OAuth.URL,
			ClientID:     cfg.Auth.OAuth.ClientID,
			ClientSecret: cfg.Auth.OAuth.ClientSecret,
			Scope:        cfg.Auth.OAuth.Scope,
			GrantType:    cfg.Auth.OAuth.GrantType,
		})
		fetchers[domain.TokenNamePlatform] = oauth.Fetch
	}

	if cfg.Auth.Sierra.URL != "" {
		sierra := auth.NewBasicFetcher(client, auth.BasicConfig{
			URL:          cfg.Auth.Sierra.URL,
			ClientID:     cfg.Auth.Sierra.ClientID,
			ClientSecret: cfg.Auth.Sierra.ClientSecret,
		})
		fetchers[domain.TokenNameSierra] = sierra.Fetch
	}

	return fetchers
}
