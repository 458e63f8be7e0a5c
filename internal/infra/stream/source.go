package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/sethvargo/go-retry"
)

// Verdict tells the source how to settle the messages of a handled batch.
type Verdict int

const (
	// VerdictAck acknowledges the batch.
	VerdictAck Verdict = iota
	// VerdictRedeliver asks JetStream to redeliver the batch after a backoff.
	VerdictRedeliver
	// VerdictTerminate stops redelivery of the batch.
	VerdictTerminate
)

func (v Verdict) String() string {
	switch v {
	case VerdictAck:
		return "ack"
	case VerdictRedeliver:
		return "redeliver"
	case VerdictTerminate:
		return "terminate"
	default:
		return "unknown"
	}
}

// Handler processes the raw payloads of one batch.
type Handler func(ctx context.Context, payloads [][]byte) Verdict

// SourceConfig configures the pull consumer.
type SourceConfig struct {
	Stream    string
	Subject   string
	Durable   string
	BatchSize int
	FetchWait time.Duration
	// AckWait must cover a whole batch, since messages are settled after processing.
	AckWait    time.Duration
	MaxDeliver int

	RedeliverBase time.Duration
	RedeliverMax  time.Duration
}

func (c *SourceConfig) defaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.FetchWait <= 0 {
		c.FetchWait = 5 * time.Second
	}
	if c.AckWait <= 0 {
		c.AckWait = 5 * time.Minute
	}
	if c.RedeliverBase <= 0 {
		c.RedeliverBase = 2 * time.Second
	}
	if c.RedeliverMax <= 0 {
		c.RedeliverMax = 5 * time.Minute
	}
}

// Source pulls batches from a durable JetStream consumer.
type Source struct {
	consumer jetstream.Consumer
	cfg      SourceConfig
	log      *slog.Logger
}

// NewSource ensures the inbound stream and durable consumer exist.
func (c *Client) NewSource(ctx context.Context, cfg SourceConfig) (*Source, error) {
	cfg.defaults()

	if err := c.EnsureStream(ctx, cfg.Stream, cfg.Subject); err != nil {
		return nil, err
	}

	consumer, err := c.js.CreateOrUpdateConsumer(ctx, cfg.Stream, jetstream.ConsumerConfig{
		Durable:       cfg.Durable,
		AckPolicy:     jetstream.AckExplicitPolicy,
		FilterSubject: cfg.Subject,
		AckWait:       cfg.AckWait,
		MaxDeliver:    cfg.MaxDeliver,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer %s: %w", cfg.Durable, err)
	}

	return &Source{consumer: consumer, cfg: cfg, log: slog.Default()}, nil
}

// Run fetches batches and hands them to handler until ctx is cancelled.
func (s *Source) Run(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		batch, err := s.consumer.Fetch(s.cfg.BatchSize, jetstream.FetchMaxWait(s.cfg.FetchWait))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Warn("Fetch failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.cfg.FetchWait):
			}
			continue
		}

		var msgs []jetstream.Msg
		for msg := range batch.Messages() {
			msgs = append(msgs, msg)
		}
		if err := batch.Error(); err != nil && !isIdle(err) {
			s.log.Warn("Fetch ended with error", "error", err, "received", len(msgs))
		}
		if len(msgs) == 0 {
			continue
		}

		payloads := make([][]byte, len(msgs))
		for i, msg := range msgs {
			payloads[i] = msg.Data()
		}

		verdict := handler(ctx, payloads)
		for _, msg := range msgs {
			if err := s.settle(msg, verdict); err != nil {
				s.log.Error("Failed to settle message", "verdict", verdict.String(), "error", err)
			}
		}
	}
}

func isIdle(err error) bool {
	return errors.Is(err, nats.ErrTimeout) || errors.Is(err, jetstream.ErrNoMessages)
}

// settleable is the subset of jetstream.Msg used to settle a message.
type settleable interface {
	Ack() error
	NakWithDelay(delay time.Duration) error
	Term() error
	Metadata() (*jetstream.MsgMetadata, error)
}

func (s *Source) settle(msg settleable, verdict Verdict) error {
	switch verdict {
	case VerdictAck:
		return msg.Ack()
	case VerdictRedeliver:
		var delivered uint64 = 1
		if md, err := msg.Metadata(); err == nil {
			delivered = md.NumDelivered
		}
		return msg.NakWithDelay(RedeliveryDelay(s.cfg.RedeliverBase, s.cfg.RedeliverMax, delivered))
	default:
		return msg.Term()
	}
}

// RedeliveryDelay returns the exponential backoff for a message delivered n times.
func RedeliveryDelay(base, limit time.Duration, delivered uint64) time.Duration {
	backoff := retry.WithCappedDuration(limit, retry.NewExponential(base))

	delay := base
	for i := uint64(0); i < delivered; i++ {
		d, stop := backoff.Next()
		if stop {
			break
		}
		delay = d
	}
	return delay
}
