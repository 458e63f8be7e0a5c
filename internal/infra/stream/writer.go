package stream

import (
	"context"
	"fmt"
)

// Encoder serializes a payload with a named schema.
type Encoder interface {
	Encode(ctx context.Context, schemaName string, v any) ([]byte, error)
}

// Writer publishes encoded payloads to a JetStream subject.
type Writer struct {
	client *Client
	enc    Encoder
}

// NewWriter creates a result writer.
func (c *Client) NewWriter(enc Encoder) *Writer {
	return &Writer{client: c, enc: enc}
}

// Write encodes payload with schemaName and publishes it to streamName,
// waiting for the JetStream acknowledgement.
func (w *Writer) Write(ctx context.Context, streamName string, payload any, schemaName string) error {
	data, err := w.enc.Encode(ctx, schemaName, payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	return w.client.Publish(ctx, streamName, data)
}
