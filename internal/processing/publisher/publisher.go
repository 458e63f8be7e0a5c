// Package publisher converts pipelined records into results and writes them to the result stream.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/nypl/cancel-request-consumer/internal/core/domain"
	"github.com/nypl/cancel-request-consumer/internal/processing/batch"
	"github.com/nypl/cancel-request-consumer/internal/processing/metrics"
)

// Writer writes one payload to a named stream using the named schema.
type Writer interface {
	Write(ctx context.Context, streamName string, payload any, schemaName string) error
}

// BuildResult converts a record into its normalized outcome.
func BuildResult(rec domain.CancelRequestRecord) domain.CancelRequestResult {
	res := domain.CancelRequestResult{CancelRequestID: rec.ID}
	if rec.JobID != "" {
		jobID := rec.JobID
		res.JobID = &jobID
	}

	if rec.Terminal() {
		res.Success = true
		return res
	}

	res.Error = &domain.ResultError{
		Type:    string(domain.KindConsumerError),
		Message: fmt.Sprintf("the checkout and checkin processed failed for Cancel Request Record (%d)", rec.ID),
	}
	if ce := rec.Error; ce != nil {
		switch {
		case ce.APIType() != "":
			res.Error.Type = ce.APIType()
		case ce.Kind != "":
			res.Error.Type = string(ce.Kind)
		}
		switch {
		case ce.APIMessage() != "":
			res.Error.Message = ce.APIMessage()
		case ce.Message != "":
			res.Error.Message = ce.Message
		}
	}
	return res
}

// Publisher writes results for a batch of records, one at a time.
type Publisher struct {
	writer Writer
	log    *slog.Logger
}

// New creates a publisher that writes through w.
func New(w Writer) *Publisher {
	return &Publisher{writer: w, log: slog.Default()}
}

// Publish writes one result per record. The first write failure aborts the
// remaining writes and is returned as a non-recoverable result stream error.
func (p *Publisher) Publish(
	ctx context.Context,
	records []domain.CancelRequestRecord,
	streamName, schemaName string,
) ([]domain.CancelRequestRecord, error) {
	switch {
	case len(records) == 0:
		return nil, domain.NewConsumerError(domain.KindFunctionParameter,
			"the records array is empty, unable to post records to stream")
	case strings.TrimSpace(streamName) == "":
		return nil, domain.NewConsumerError(domain.KindFunctionParameter,
			"the stream name is not defined, unable to post records to stream")
	case strings.TrimSpace(schemaName) == "":
		return nil, domain.NewConsumerError(domain.KindFunctionParameter,
			"the schema name is not defined, unable to post records to stream")
	case p.writer == nil:
		return nil, domain.NewConsumerError(domain.KindFunctionParameter,
			"no stream writer configured, unable to post records to stream")
	}

	return batch.Run(ctx, records, func(ctx context.Context, rec domain.CancelRequestRecord) batch.Outcome[domain.CancelRequestRecord] {
		result := BuildResult(rec)
		if err := p.writer.Write(ctx, streamName, result, schemaName); err != nil {
			p.log.Error("Failed to post result", "cancel_request_id", rec.ID, "stream", streamName, "error", err)
			return batch.Fatal[domain.CancelRequestRecord](&domain.ConsumerError{
				Kind: domain.KindResultStream,
				Message: fmt.Sprintf("unable to post Cancel Request Record (%d) to %s, received an error from the stream",
					rec.ID, streamName),
				Err: err,
			})
		}

		metrics.ResultsPublished.WithLabelValues(strconv.FormatBool(result.Success)).Inc()
		p.log.Info("Posted result", "cancel_request_id", rec.ID, "success", result.Success)
		return batch.Continue(rec)
	})
}
