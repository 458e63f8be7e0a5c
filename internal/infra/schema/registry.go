// Package schema resolves Avro schemas and converts records to and from the stream wire format.
package schema

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/hamba/avro/v2"

	"github.com/nypl/cancel-request-consumer/internal/infra/api"
)

// Schema names known to the consumer.
const (
	RecordSchema = "RecapCancelHoldRequest"
	ResultSchema = "CancelRequestResult"
)

//go:embed schemas/*.avsc
var embedded embed.FS

// Registry resolves schemas by name, from a remote schema service when one is
// configured and from the bundled definitions otherwise.
type Registry struct {
	client *api.Client
	url    string
	log    *slog.Logger

	mu    sync.RWMutex
	cache map[string]avro.Schema
}

// NewRegistry creates a registry. An empty registryURL uses bundled schemas only.
func NewRegistry(client *api.Client, registryURL string) *Registry {
	return &Registry{
		client: client,
		url:    strings.TrimSuffix(registryURL, "/"),
		log:    slog.Default(),
		cache:  make(map[string]avro.Schema),
	}
}

// Schema returns the parsed schema for name.
func (r *Registry) Schema(ctx context.Context, name string) (avro.Schema, error) {
	r.mu.RLock()
	s, ok := r.cache[name]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	s, err := r.load(ctx, name)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[name] = s
	r.mu.Unlock()

	return s, nil
}

func (r *Registry) load(ctx context.Context, name string) (avro.Schema, error) {
	if r.url != "" && r.client != nil {
		s, err := r.fetch(ctx, name)
		if err == nil {
			return s, nil
		}
		r.log.Warn("Remote schema unavailable, using bundled definition", "schema", name, "error", err)
	}

	data, err := embedded.ReadFile("schemas/" + name + ".avsc")
	if err != nil {
		return nil, fmt.Errorf("unknown schema %s", name)
	}
	s, err := avro.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema %s: %w", name, err)
	}
	return s, nil
}

func (r *Registry) fetch(ctx context.Context, name string) (avro.Schema, error) {
	resp, err := r.client.Do(ctx, api.Request{
		Service: "schema-service",
		Method:  http.MethodGet,
		URL:     r.url + "/current-schemas/" + url.PathEscape(name),
	})
	if err != nil {
		return nil, err
	}

	var body struct {
		Data struct {
			Schema string `json:"schema"`
		} `json:"data"`
	}
	if err := resp.Decode(&body); err != nil {
		return nil, err
	}
	if body.Data.Schema == "" {
		return nil, fmt.Errorf("schema service returned no schema for %s", name)
	}

	s, err := avro.Parse(body.Data.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema %s: %w", name, err)
	}
	return s, nil
}
