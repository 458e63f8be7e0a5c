package config

import (
	"time"

	redisclient "github.com/nypl/cancel-request-consumer/internal/infra/redis"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Logging  LoggingConfig      `yaml:"logging"`
	Auth     AuthConfig         `yaml:"auth"`
	API      APIConfig          `yaml:"api"`
	Pipeline PipelineConfig     `yaml:"pipeline"`
	Stream   StreamConfig       `yaml:"stream"`
	Schema   SchemaConfig       `yaml:"schema"`
	Redis    redisclient.Config `yaml:"redis"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// AuthConfig holds the credential services.
type AuthConfig struct {
	OAuth  OAuthConfig  `yaml:"oauth"`
	Sierra SierraConfig `yaml:"sierra"`
}

// OAuthConfig holds the platform OAuth client-credentials settings.
type OAuthConfig struct {
	URL          string `yaml:"url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Scope        string `yaml:"scope"`
	GrantType    string `yaml:"grant_type"`
}

// SierraConfig holds the Sierra basic-auth token settings.
type SierraConfig struct {
	URL          string `yaml:"url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// APIConfig holds the downstream REST services.
type APIConfig struct {
	CheckoutURL  string        `yaml:"checkout_url"`
	CheckinURL   string        `yaml:"checkin_url"`
	RecapURL     string        `yaml:"recap_url"`
	SierraURL    string        `yaml:"sierra_url"`
	Timeout      time.Duration `yaml:"timeout"`
	HoldPageSize int           `yaml:"hold_page_size"`
}

// PipelineConfig selects the stages records run through.
type PipelineConfig struct {
	Profile string   `yaml:"profile"` // hold-delete, recap
	Lookup  bool     `yaml:"lookup"`
	Stages  []string `yaml:"stages"` // overrides the profile when set
}

// StreamConfig holds the NATS JetStream settings.
type StreamConfig struct {
	NATSURL        string        `yaml:"nats_url"`
	InboundStream  string        `yaml:"inbound_stream"`
	InboundSubject string        `yaml:"inbound_subject"`
	Durable        string        `yaml:"durable"`
	BatchSize      int           `yaml:"batch_size"`
	FetchWait      time.Duration `yaml:"fetch_wait"`
	AckWait        time.Duration `yaml:"ack_wait"`
	MaxDeliver     int           `yaml:"max_deliver"`
	ResultStream   string        `yaml:"result_stream"`
	ResultSchema   string        `yaml:"result_schema"`
	RecordSchema   string        `yaml:"record_schema"`
}

// SchemaConfig holds the schema service settings.
type SchemaConfig struct {
	RegistryURL string `yaml:"registry_url"` // empty = bundled schemas
}
