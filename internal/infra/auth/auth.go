// Package auth fetches bearer tokens from the platform OAuth server and the Sierra token endpoint.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/nypl/cancel-request-consumer/internal/core/domain"
	"github.com/nypl/cancel-request-consumer/internal/infra/api"
)

// Service names the credential services in errors and metrics.
const Service = "auth-service"

// OAuthConfig holds the client-credentials parameters of the platform OAuth server.
type OAuthConfig struct {
	URL          string
	ClientID     string
	ClientSecret string
	Scope        string
	GrantType    string
}

// OAuthFetcher obtains platform tokens with the client-credentials grant.
type OAuthFetcher struct {
	client *api.Client
	cfg    OAuthConfig
}

// NewOAuthFetcher creates a fetcher for the platform OAuth server.
func NewOAuthFetcher(client *api.Client, cfg OAuthConfig) *OAuthFetcher {
	if cfg.GrantType == "" {
		cfg.GrantType = "client_credentials"
	}
	return &OAuthFetcher{client: client, cfg: cfg}
}

// Fetch requests a new access token.
func (f *OAuthFetcher) Fetch(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("client_id", f.cfg.ClientID)
	form.Set("client_secret", f.cfg.ClientSecret)
	form.Set("grant_type", f.cfg.GrantType)
	form.Set("scope", f.cfg.Scope)

	resp, err := f.client.Do(ctx, api.Request{
		Service: Service,
		Method:  http.MethodPost,
		URL:     f.cfg.URL,
		Form:    form,
	})
	if err != nil {
		return "", authError(err)
	}
	return accessToken(resp)
}

// BasicConfig holds the basic-auth parameters of the Sierra token endpoint.
type BasicConfig struct {
	URL          string
	ClientID     string
	ClientSecret string
}

// BasicFetcher obtains Sierra tokens by posting basic-auth credentials to <url>token.
type BasicFetcher struct {
	client *api.Client
	cfg    BasicConfig
}

// NewBasicFetcher creates a fetcher for the Sierra token endpoint.
func NewBasicFetcher(client *api.Client, cfg BasicConfig) *BasicFetcher {
	return &BasicFetcher{client: client, cfg: cfg}
}

// Fetch requests a new access token.
func (f *BasicFetcher) Fetch(ctx context.Context) (string, error) {
	resp, err := f.client.Do(ctx, api.Request{
		Service:       Service,
		Method:        http.MethodPost,
		URL:           tokenURL(f.cfg.URL),
		Body:          map[string]any{},
		BasicUser:     f.cfg.ClientID,
		BasicPassword: f.cfg.ClientSecret,
	})
	if err != nil {
		return "", authError(err)
	}
	return accessToken(resp)
}

func tokenURL(base string) string {
	if base == "" || strings.HasSuffix(base, "/") {
		return base + "token"
	}
	return base + "/token"
}

func accessToken(resp *api.Response) (string, error) {
	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := resp.Decode(&body); err != nil || body.AccessToken == "" {
		return "", &domain.ConsumerError{
			Kind:    domain.KindInvalidTokenResponse,
			Service: Service,
			Message: "the auth service response did not contain an access_token",
			Err:     err,
		}
	}
	return body.AccessToken, nil
}

func authError(err error) error {
	ce := &domain.ConsumerError{
		Kind:    domain.ServiceKind(Service),
		Service: Service,
		Message: "unable to obtain an access token",
		Err:     err,
	}

	var te *api.TransportError
	if errors.As(err, &te) && te.Kind == api.KindResponded {
		ce.StatusCode = te.StatusCode
		ce.Message = fmt.Sprintf("%s; the auth service responded with a status code: (%d)", ce.Message, te.StatusCode)
		ce.DebugInfo = &domain.DebugInfo{
			ResponseType: te.Kind.String(),
			Method:       te.Method,
			URL:          te.URL,
			StatusCode:   te.StatusCode,
			StatusText:   te.StatusText,
			ErrorType:    te.APIType,
			ErrorMessage: te.APIMessage,
		}
	} else if te != nil && te.Kind == api.KindMalformed {
		// A request that cannot be built is a configuration problem
		ce.Kind = domain.KindFunctionParameter
		ce.Service = ""
	}
	return ce
}
