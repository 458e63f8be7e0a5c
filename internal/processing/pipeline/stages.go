package pipeline

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/nypl/cancel-request-consumer/internal/core/domain"
	"github.com/nypl/cancel-request-consumer/internal/infra/api"
	"github.com/nypl/cancel-request-consumer/internal/processing/batch"
	"github.com/nypl/cancel-request-consumer/internal/processing/classify"
	"github.com/nypl/cancel-request-consumer/internal/processing/metrics"
)

type outcome = batch.Outcome[domain.CancelRequestRecord]

type checkoutRequest struct {
	PatronBarcode       string  `json:"patronBarcode"`
	ItemBarcode         string  `json:"itemBarcode"`
	OwningInstitutionID *string `json:"owningInstitutionId"`
	DesiredDateDue      *string `json:"desiredDateDue"`
}

type checkinRequest struct {
	ItemBarcode         string  `json:"itemBarcode"`
	OwningInstitutionID *string `json:"owningInstitutionId"`
}

type recapRequest struct {
	Processed bool `json:"processed"`
	Success   bool `json:"success"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// handleFailure attaches the classified error to the record and decides whether
// the batch can continue past it.
func handleFailure(log *slog.Logger, stage, service string, rec domain.CancelRequestRecord, err error) outcome {
	ce := classify.Classify(err, service, rec.ID)
	rec.Error = ce

	switch action := classify.Decide(ce); action {
	case classify.ActionSkipRecord:
		log.Error("Stage rejected record",
			"stage", stage,
			"cancel_request_id", rec.ID,
			"status", ce.StatusCode,
			"error", ce.Message,
		)
		metrics.StageOutcomes.WithLabelValues(stage, "rejected").Inc()
		return batch.Skip(rec)
	default:
		log.Warn("Stage failed, aborting batch",
			"stage", stage,
			"cancel_request_id", rec.ID,
			"action", action.String(),
			"kind", ce.Kind,
			"status", ce.StatusCode,
		)
		metrics.StageOutcomes.WithLabelValues(stage, "fatal").Inc()
		return batch.Fatal[domain.CancelRequestRecord](ce)
	}
}

func precondition(log *slog.Logger, stage string, rec domain.CancelRequestRecord, reason string) outcome {
	log.Warn("Stage precondition not met, skipping",
		"stage", stage,
		"cancel_request_id", rec.ID,
		"reason", reason,
	)
	metrics.StageOutcomes.WithLabelValues(stage, "skipped").Inc()
	return batch.Skip(rec)
}

type checkoutStage struct {
	client *api.Client
	url    string
	log    *slog.Logger
}

func (s *checkoutStage) Name() string       { return StageCheckout }
func (s *checkoutStage) Credential() string { return domain.TokenNamePlatform }

func (s *checkoutStage) Apply(ctx context.Context, rec domain.CancelRequestRecord, token string) outcome {
	rec.CheckoutProcessed = false
	if !rec.HasBarcodes() {
		return precondition(s.log, StageCheckout, rec, "missing patron or item barcode")
	}

	resp, err := s.client.Do(ctx, api.Request{
		Service: ServiceCheckout,
		Method:  http.MethodPost,
		URL:     s.url,
		Token:   token,
		Body: checkoutRequest{
			PatronBarcode:       rec.PatronBarcode,
			ItemBarcode:         rec.ItemBarcode,
			OwningInstitutionID: optional(rec.OwningInstitutionID),
			DesiredDateDue:      optional(rec.DesiredDateDue),
		},
	})
	if err != nil {
		return handleFailure(s.log, StageCheckout, ServiceCheckout, rec, err)
	}

	rec.CheckoutResponse = resp.Data()
	if resp.Succeeded() {
		rec.CheckoutProcessed = true
		rec.Success = true
		s.log.Info("Checkout cancelled", "cancel_request_id", rec.ID)
		metrics.StageOutcomes.WithLabelValues(StageCheckout, "succeeded").Inc()
	} else {
		s.log.Warn("Checkout response did not signal success", "cancel_request_id", rec.ID)
		metrics.StageOutcomes.WithLabelValues(StageCheckout, "unsuccessful").Inc()
	}
	return batch.Continue(rec)
}

type checkinStage struct {
	client *api.Client
	url    string
	log    *slog.Logger
}

func (s *checkinStage) Name() string       { return StageCheckin }
func (s *checkinStage) Credential() string { return domain.TokenNamePlatform }

func (s *checkinStage) Apply(ctx context.Context, rec domain.CancelRequestRecord, token string) outcome {
	rec.CheckinProcessed = false
	if !rec.CheckoutProcessed {
		return precondition(s.log, StageCheckin, rec, "checkout was not processed")
	}

	resp, err := s.client.Do(ctx, api.Request{
		Service: ServiceCheckin,
		Method:  http.MethodPost,
		URL:     s.url,
		Token:   token,
		Body: checkinRequest{
			ItemBarcode:         rec.ItemBarcode,
			OwningInstitutionID: optional(rec.OwningInstitutionID),
		},
	})
	if err != nil {
		return handleFailure(s.log, StageCheckin, ServiceCheckin, rec, err)
	}

	rec.CheckinResponse = resp.Data()
	if resp.Succeeded() {
		rec.CheckinProcessed = true
		s.log.Info("Checkin cancelled", "cancel_request_id", rec.ID)
		metrics.StageOutcomes.WithLabelValues(StageCheckin, "succeeded").Inc()
	} else {
		s.log.Warn("Checkin response did not signal success", "cancel_request_id", rec.ID)
		metrics.StageOutcomes.WithLabelValues(StageCheckin, "unsuccessful").Inc()
	}
	return batch.Continue(rec)
}

type recapStage struct {
	client *api.Client
	url    string
	log    *slog.Logger
}

func (s *recapStage) Name() string       { return StageRecap }
func (s *recapStage) Credential() string { return domain.TokenNamePlatform }

func (s *recapStage) Apply(ctx context.Context, rec domain.CancelRequestRecord, token string) outcome {
	rec.RecapProcessed = false
	if !rec.CheckoutProcessed || !rec.CheckinProcessed {
		return precondition(s.log, StageRecap, rec, "checkout or checkin was not processed")
	}

	resp, err := s.client.Do(ctx, api.Request{
		Service: ServiceRecap,
		Method:  http.MethodPatch,
		URL:     s.url + "/" + strconv.Itoa(rec.ID),
		Token:   token,
		Body:    recapRequest{Processed: true, Success: true},
	})
	if err != nil {
		return handleFailure(s.log, StageRecap, ServiceRecap, rec, err)
	}

	rec.CancelResponse = resp.Data()
	if resp.Succeeded() {
		rec.RecapProcessed = true
		s.log.Info("Cancel request marked processed", "cancel_request_id", rec.ID)
		metrics.StageOutcomes.WithLabelValues(StageRecap, "succeeded").Inc()
	} else {
		s.log.Warn("Recap response did not signal success", "cancel_request_id", rec.ID)
		metrics.StageOutcomes.WithLabelValues(StageRecap, "unsuccessful").Inc()
	}
	return batch.Continue(rec)
}

type deleteStage struct {
	client  *api.Client
	baseURL string
	log     *slog.Logger
}

func (s *deleteStage) Name() string       { return StageDelete }
func (s *deleteStage) Credential() string { return domain.TokenNameSierra }

func (s *deleteStage) Apply(ctx context.Context, rec domain.CancelRequestRecord, token string) outcome {
	rec.Deleted = false
	if rec.HoldRequestID == "" {
		return precondition(s.log, StageDelete, rec, "no hold request was found")
	}

	resp, err := s.client.Do(ctx, api.Request{
		Service: ServiceHold,
		Method:  http.MethodDelete,
		URL:     s.holdURL(rec.HoldRequestID),
		Token:   token,
	})
	if err != nil {
		return handleFailure(s.log, StageDelete, ServiceHold, rec, err)
	}

	if resp.StatusCode == http.StatusNoContent || resp.Empty() {
		rec.Deleted = true
		s.log.Info("Hold request deleted", "cancel_request_id", rec.ID, "hold_request_id", rec.HoldRequestID)
		metrics.StageOutcomes.WithLabelValues(StageDelete, "succeeded").Inc()
	} else {
		s.log.Warn("Hold delete returned a body", "cancel_request_id", rec.ID, "status", resp.StatusCode)
		metrics.StageOutcomes.WithLabelValues(StageDelete, "unsuccessful").Inc()
	}
	return batch.Continue(rec)
}

// holdURL accepts either the absolute hold URL Sierra returns or a bare hold id.
func (s *deleteStage) holdURL(id string) string {
	if strings.HasPrefix(id, "http://") || strings.HasPrefix(id, "https://") {
		return id
	}
	return s.baseURL + "patrons/holds/" + id
}
