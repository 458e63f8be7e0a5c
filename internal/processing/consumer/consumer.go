// Package consumer handles one inbound batch end to end: credentials, decoding,
// filtering, the record pipeline and result publishing.
package consumer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nypl/cancel-request-consumer/internal/core/domain"
	"github.com/nypl/cancel-request-consumer/internal/infra/stream"
	"github.com/nypl/cancel-request-consumer/internal/processing/classify"
	"github.com/nypl/cancel-request-consumer/internal/processing/metrics"
	"github.com/nypl/cancel-request-consumer/internal/processing/token"
)

// Decoder turns raw stream payloads into records.
type Decoder interface {
	DecodeRecords(ctx context.Context, schemaName string, payloads [][]byte) ([]domain.CancelRequestRecord, error)
}

// TokenSource resolves cached or fresh credentials.
type TokenSource interface {
	Acquire(ctx context.Context, name string, fetch token.FetchFunc) (domain.Credential, error)
}

// Processor runs records through the stage pipeline.
type Processor interface {
	Credentials() []string
	Process(ctx context.Context, records []domain.CancelRequestRecord, tokens map[string]string) ([]domain.CancelRequestRecord, error)
}

// Publisher writes results for processed records.
type Publisher interface {
	Publish(ctx context.Context, records []domain.CancelRequestRecord, streamName, schemaName string) ([]domain.CancelRequestRecord, error)
}

// Recorder receives the status of every handled batch.
type Recorder interface {
	RecordBatch(status domain.BatchStatus)
}

// Config names the schemas and the result stream.
type Config struct {
	RecordSchema string
	ResultStream string
	ResultSchema string
}

// Deps are the collaborators of a Consumer.
type Deps struct {
	Decoder   Decoder
	Tokens    TokenSource
	Fetchers  map[string]token.FetchFunc
	Pipeline  Processor
	Publisher Publisher
	Recorder  Recorder
}

// Consumer handles inbound batches.
type Consumer struct {
	cfg  Config
	deps Deps
	log  *slog.Logger
}

// New creates a consumer after checking that every credential the pipeline
// needs has a fetcher.
func New(cfg Config, deps Deps) (*Consumer, error) {
	switch {
	case strings.TrimSpace(cfg.RecordSchema) == "":
		return nil, domain.NewConsumerError(domain.KindFunctionParameter, "the record schema name is not defined")
	case strings.TrimSpace(cfg.ResultStream) == "":
		return nil, domain.NewConsumerError(domain.KindFunctionParameter, "the result stream name is not defined")
	case strings.TrimSpace(cfg.ResultSchema) == "":
		return nil, domain.NewConsumerError(domain.KindFunctionParameter, "the result schema name is not defined")
	case deps.Decoder == nil || deps.Tokens == nil || deps.Pipeline == nil || deps.Publisher == nil:
		return nil, domain.NewConsumerError(domain.KindFunctionParameter, "consumer dependencies are incomplete")
	}

	for _, name := range deps.Pipeline.Credentials() {
		if deps.Fetchers[name] == nil {
			return nil, domain.NewConsumerError(domain.KindFunctionParameter, "no fetcher configured for credential %s", name)
		}
	}

	return &Consumer{cfg: cfg, deps: deps, log: slog.Default()}, nil
}

// Handle processes one batch and tells the stream how to settle it.
// Processing is not interrupted by cancellation of ctx once it has started.
func (c *Consumer) Handle(ctx context.Context, payloads [][]byte) stream.Verdict {
	status := domain.BatchStatus{BatchID: uuid.NewString()}
	log := c.log.With("batch_id", status.BatchID)

	err := c.handleBatch(context.WithoutCancel(ctx), log, payloads, &status)
	verdict := Settle(err)

	status.Outcome = verdict.String()
	status.FinishedAt = time.Now()
	if err != nil {
		status.Error = err.Error()
		log.Error("Batch failed",
			"verdict", verdict.String(),
			"action", classify.DecideBatch(err).String(),
			"error", err,
		)
	} else {
		log.Info("Batch completed", "processed", status.Processed, "published", status.Published)
	}

	metrics.BatchesTotal.WithLabelValues(status.Outcome).Inc()
	if c.deps.Recorder != nil {
		c.deps.Recorder.RecordBatch(status)
	}
	return verdict
}

// HandleBatch processes one batch. A nil error means the batch is complete.
func (c *Consumer) HandleBatch(ctx context.Context, payloads [][]byte) error {
	status := domain.BatchStatus{BatchID: uuid.NewString()}
	return c.handleBatch(ctx, c.log.With("batch_id", status.BatchID), payloads, &status)
}

func (c *Consumer) handleBatch(
	ctx context.Context,
	log *slog.Logger,
	payloads [][]byte,
	status *domain.BatchStatus,
) error {
	if len(payloads) == 0 {
		return domain.NewConsumerError(domain.KindFunctionParameter, "the batch contains no records")
	}

	records, tokens, err := c.prepare(ctx, payloads)
	if err != nil {
		return err
	}
	status.Decoded = len(records)
	metrics.RecordsDecoded.Add(float64(len(records)))

	filtered := FilterProcessed(log, records)
	if len(filtered) == 0 {
		log.Info("No records remain after filtering",
			"type", domain.KindRecordsFilteredEmpty,
			"decoded", len(records),
		)
		return nil
	}

	processed, err := c.deps.Pipeline.Process(ctx, filtered, tokens)
	if err != nil {
		return err
	}
	status.Processed = len(processed)
	if len(processed) == 0 {
		return nil
	}

	published, err := c.deps.Publisher.Publish(ctx, processed, c.cfg.ResultStream, c.cfg.ResultSchema)
	if err != nil {
		return err
	}
	status.Published = len(published)
	return nil
}

// prepare acquires credentials concurrently with decoding the payloads.
func (c *Consumer) prepare(ctx context.Context, payloads [][]byte) ([]domain.CancelRequestRecord, map[string]string, error) {
	g, gctx := errgroup.WithContext(ctx)

	var records []domain.CancelRequestRecord
	g.Go(func() error {
		var err error
		records, err = c.deps.Decoder.DecodeRecords(gctx, c.cfg.RecordSchema, payloads)
		return err
	})

	var mu sync.Mutex
	tokens := make(map[string]string)
	for _, name := range c.deps.Pipeline.Credentials() {
		fetch := c.deps.Fetchers[name]
		g.Go(func() error {
			cred, err := c.deps.Tokens.Acquire(gctx, name, fetch)
			if err != nil {
				return err
			}
			mu.Lock()
			tokens[name] = cred.Token
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return records, tokens, nil
}

// FilterProcessed drops records already flagged as processed upstream.
func FilterProcessed(log *slog.Logger, records []domain.CancelRequestRecord) []domain.CancelRequestRecord {
	out := make([]domain.CancelRequestRecord, 0, len(records))
	for _, rec := range records {
		if rec.Processed {
			log.Info("Filtered out processed record", "cancel_request_id", rec.ID)
			metrics.RecordsFiltered.Inc()
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Settle maps the result of a batch to how its messages are settled.
func Settle(err error) stream.Verdict {
	if err == nil {
		return stream.VerdictAck
	}
	if errors.Is(err, context.Canceled) {
		return stream.VerdictRedeliver
	}
	if classify.Recoverable(err) {
		return stream.VerdictRedeliver
	}
	return stream.VerdictTerminate
}
