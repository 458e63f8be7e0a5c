package schema

import (
	"context"
	"fmt"

	"github.com/hamba/avro/v2"

	"github.com/nypl/cancel-request-consumer/internal/core/domain"
)

// wireRecord mirrors the RecapCancelHoldRequest schema.
type wireRecord struct {
	ID                  int     `avro:"id"`
	JobID               *string `avro:"jobId"`
	TrackingID          *string `avro:"trackingId"`
	PatronBarcode       *string `avro:"patronBarcode"`
	ItemBarcode         *string `avro:"itemBarcode"`
	OwningInstitutionID *string `avro:"owningInstitutionId"`
	Processed           bool    `avro:"processed"`
	Success             bool    `avro:"success"`
	CreatedDate         *string `avro:"createdDate"`
	UpdatedDate         *string `avro:"updatedDate"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ref(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (w wireRecord) toDomain() domain.CancelRequestRecord {
	return domain.CancelRequestRecord{
		ID:                  w.ID,
		JobID:               deref(w.JobID),
		TrackingID:          deref(w.TrackingID),
		PatronBarcode:       deref(w.PatronBarcode),
		ItemBarcode:         deref(w.ItemBarcode),
		OwningInstitutionID: deref(w.OwningInstitutionID),
		Processed:           w.Processed,
		Success:             w.Success,
		CreatedDate:         deref(w.CreatedDate),
		UpdatedDate:         deref(w.UpdatedDate),
	}
}

func fromDomain(r domain.CancelRequestRecord) wireRecord {
	return wireRecord{
		ID:                  r.ID,
		JobID:               ref(r.JobID),
		TrackingID:          ref(r.TrackingID),
		PatronBarcode:       ref(r.PatronBarcode),
		ItemBarcode:         ref(r.ItemBarcode),
		OwningInstitutionID: ref(r.OwningInstitutionID),
		Processed:           r.Processed,
		Success:             r.Success,
		CreatedDate:         ref(r.CreatedDate),
		UpdatedDate:         ref(r.UpdatedDate),
	}
}

// DecodeRecords decodes every payload with the named schema. Any failure is a
// non-recoverable decode error for the whole batch.
func (r *Registry) DecodeRecords(ctx context.Context, name string, payloads [][]byte) ([]domain.CancelRequestRecord, error) {
	s, err := r.Schema(ctx, name)
	if err != nil {
		return nil, &domain.ConsumerError{
			Kind:    domain.KindDecode,
			Message: fmt.Sprintf("unable to resolve schema %s", name),
			Err:     err,
		}
	}

	records := make([]domain.CancelRequestRecord, 0, len(payloads))
	for i, payload := range payloads {
		var w wireRecord
		if err := avro.Unmarshal(s, payload, &w); err != nil {
			return nil, &domain.ConsumerError{
				Kind:    domain.KindDecode,
				Message: fmt.Sprintf("unable to decode record %d of the batch with schema %s", i, name),
				Err:     err,
			}
		}
		records = append(records, w.toDomain())
	}
	return records, nil
}

// EncodeRecord encodes a cancel request record in the inbound wire format.
func (r *Registry) EncodeRecord(ctx context.Context, rec domain.CancelRequestRecord) ([]byte, error) {
	return r.Encode(ctx, RecordSchema, fromDomain(rec))
}

// Encode marshals v with the named schema.
func (r *Registry) Encode(ctx context.Context, name string, v any) ([]byte, error) {
	s, err := r.Schema(ctx, name)
	if err != nil {
		return nil, err
	}
	data, err := avro.Marshal(s, v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode with schema %s: %w", name, err)
	}
	return data, nil
}

// DecodeResult decodes a payload written to the result stream.
func (r *Registry) DecodeResult(ctx context.Context, payload []byte) (domain.CancelRequestResult, error) {
	var out domain.CancelRequestResult
	s, err := r.Schema(ctx, ResultSchema)
	if err != nil {
		return out, err
	}
	if err := avro.Unmarshal(s, payload, &out); err != nil {
		return out, fmt.Errorf("failed to decode result: %w", err)
	}
	return out, nil
}
