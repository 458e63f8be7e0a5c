// Package stream reads cancel request batches from NATS JetStream and writes results back.
package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Client holds the NATS connection and its JetStream context.
type Client struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Connect dials NATS with unlimited reconnects.
func Connect(url string) (*Client, error) {
	nc, err := nats.Connect(url,
		nats.Name("cancel-request-consumer"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	return &Client{nc: nc, js: js}, nil
}

// Close drains the connection.
func (c *Client) Close() {
	if c.nc != nil {
		_ = c.nc.Drain()
	}
}

// Connected reports whether the connection is currently up.
func (c *Client) Connected() bool {
	return c.nc != nil && c.nc.IsConnected()
}

// EnsureStream creates the stream, or updates it to cover subjects.
func (c *Client) EnsureStream(ctx context.Context, name string, subjects ...string) error {
	if len(subjects) == 0 {
		subjects = []string{name}
	}
	_, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     name,
		Subjects: subjects,
	})
	if err != nil {
		return fmt.Errorf("failed to ensure stream %s: %w", name, err)
	}
	return nil
}

// Publish writes raw data to subject and waits for the JetStream acknowledgement.
func (c *Client) Publish(ctx context.Context, subject string, data []byte) error {
	if _, err := c.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}
