package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nypl/cancel-request-consumer/internal/core/domain"
	"github.com/nypl/cancel-request-consumer/internal/infra/api"
)

func TestOAuthFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil ||
			r.PostForm.Get("grant_type") != "client_credentials" ||
			r.PostForm.Get("client_id") != "id" ||
			r.PostForm.Get("scope") != "write:hold_request" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"access_token":"abc","expires_in":3600}`))
	}))
	defer srv.Close()

	f := NewOAuthFetcher(api.NewClient(time.Second), OAuthConfig{
		URL:          srv.URL,
		ClientID:     "id",
		ClientSecret: "secret",
		Scope:        "write:hold_request",
	})

	token, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
}

func TestOAuthFetcher_MissingAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token_type":"bearer"}`))
	}))
	defer srv.Close()

	f := NewOAuthFetcher(api.NewClient(time.Second), OAuthConfig{URL: srv.URL})

	_, err := f.Fetch(context.Background())
	var ce *domain.ConsumerError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, domain.KindInvalidTokenResponse, ce.Kind)
}

func TestOAuthFetcher_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewOAuthFetcher(api.NewClient(time.Second), OAuthConfig{URL: srv.URL})

	_, err := f.Fetch(context.Background())
	var ce *domain.ConsumerError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, domain.ErrorKind("auth-service-error"), ce.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, ce.StatusCode)
}

func TestBasicFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "sierra" || pass != "pw" || r.URL.Path != "/v5/token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"access_token":"sierra-token"}`))
	}))
	defer srv.Close()

	f := NewBasicFetcher(api.NewClient(time.Second), BasicConfig{
		URL:          srv.URL + "/v5/",
		ClientID:     "sierra",
		ClientSecret: "pw",
	})

	token, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sierra-token", token)
}

func TestBasicFetcher_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	f := NewBasicFetcher(api.NewClient(time.Second), BasicConfig{URL: srv.URL + "/"})

	_, err := f.Fetch(context.Background())
	var ce *domain.ConsumerError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, Service, ce.Service)
	assert.Equal(t, http.StatusUnauthorized, ce.StatusCode)
}

func TestTokenURL(t *testing.T) {
	assert.Equal(t, "https://sierra/v5/token", tokenURL("https://sierra/v5/"))
	assert.Equal(t, "https://sierra/v5/token", tokenURL("https://sierra/v5"))
}
