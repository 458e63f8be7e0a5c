package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/nypl/cancel-request-consumer/internal/core/domain"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

func (c *AppConfig) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Auth.OAuth.GrantType == "" {
		c.Auth.OAuth.GrantType = "client_credentials"
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = 10 * time.Second
	}
	if c.API.HoldPageSize == 0 {
		c.API.HoldPageSize = 50
	}
	if c.Pipeline.Profile == "" {
		c.Pipeline.Profile = "hold-delete"
	}
	if c.Stream.Durable == "" {
		c.Stream.Durable = "cancel-request-consumer"
	}
	if c.Stream.BatchSize == 0 {
		c.Stream.BatchSize = 10
	}
	if c.Stream.FetchWait == 0 {
		c.Stream.FetchWait = 5 * time.Second
	}
	if c.Stream.RecordSchema == "" {
		c.Stream.RecordSchema = "RecapCancelHoldRequest"
	}
	if c.Stream.ResultSchema == "" {
		c.Stream.ResultSchema = "CancelRequestResult"
	}
	if c.Stream.ResultStream == "" {
		c.Stream.ResultStream = "CancelRequestResult"
	}
}

// Validate checks that the parameters the consumer cannot run without are set.
func (c *AppConfig) Validate() error {
	var missing []string
	required := []struct {
		name  string
		value string
	}{
		{"auth.oauth.url", c.Auth.OAuth.URL},
		{"auth.oauth.client_id", c.Auth.OAuth.ClientID},
		{"auth.oauth.client_secret", c.Auth.OAuth.ClientSecret},
		{"auth.oauth.scope", c.Auth.OAuth.Scope},
		{"api.checkout_url", c.API.CheckoutURL},
		{"api.checkin_url", c.API.CheckinURL},
		{"stream.nats_url", c.Stream.NATSURL},
		{"stream.inbound_stream", c.Stream.InboundStream},
		{"stream.inbound_subject", c.Stream.InboundSubject},
		{"stream.record_schema", c.Stream.RecordSchema},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.name)
		}
	}

	if c.usesSierra() {
		if c.API.SierraURL == "" {
			missing = append(missing, "api.sierra_url")
		}
		if c.Auth.Sierra.URL == "" {
			missing = append(missing, "auth.sierra.url")
		}
	}
	if c.Pipeline.Profile == "recap" && len(c.Pipeline.Stages) == 0 && c.API.RecapURL == "" {
		missing = append(missing, "api.recap_url")
	}

	if len(missing) > 0 {
		return domain.NewConsumerError(domain.KindFunctionParameter,
			"missing required configuration: %s", strings.Join(missing, ", "))
	}

	switch c.Pipeline.Profile {
	case "hold-delete", "recap":
	default:
		return domain.NewConsumerError(domain.KindFunctionParameter,
			"unknown pipeline profile %q", c.Pipeline.Profile)
	}
	return nil
}

// usesSierra reports whether any configured stage talks to Sierra.
func (c *AppConfig) usesSierra() bool {
	if len(c.Pipeline.Stages) > 0 {
		for _, s := range c.Pipeline.Stages {
			if s == "lookup" || s == "delete" {
				return true
			}
		}
		return false
	}
	return c.Pipeline.Profile == "hold-delete" || c.Pipeline.Lookup
}
