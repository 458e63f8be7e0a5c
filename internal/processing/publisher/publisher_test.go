package publisher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nypl/cancel-request-consumer/internal/core/domain"
	"github.com/nypl/cancel-request-consumer/internal/processing/classify"
)

type mockWriter struct {
	written []domain.CancelRequestResult
	failOn  int
	err     error
}

func (m *mockWriter) Write(_ context.Context, _ string, payload any, _ string) error {
	res := payload.(domain.CancelRequestResult)
	if m.err != nil && res.CancelRequestID == m.failOn {
		return m.err
	}
	m.written = append(m.written, res)
	return nil
}

func TestBuildResult_Deleted(t *testing.T) {
	res := BuildResult(domain.CancelRequestRecord{ID: 1, JobID: "job", Deleted: true})

	assert.True(t, res.Success)
	assert.Nil(t, res.Error)
	require.NotNil(t, res.JobID)
	assert.Equal(t, "job", *res.JobID)
}

func TestBuildResult_NoErrorUsesGenericMessage(t *testing.T) {
	res := BuildResult(domain.CancelRequestRecord{ID: 42})

	assert.False(t, res.Success)
	assert.Nil(t, res.JobID)
	require.NotNil(t, res.Error)
	assert.Equal(t, "cancel-request-consumer-error", res.Error.Type)
	assert.Contains(t, res.Error.Message, "(42)")
}

func TestBuildResult_UsesAttachedError(t *testing.T) {
	res := BuildResult(domain.CancelRequestRecord{ID: 3, Error: &domain.ConsumerError{
		Kind:      "checkout-service-error",
		Message:   "checkout failed",
		DebugInfo: &domain.DebugInfo{ErrorType: "item-not-found", ErrorMessage: "no such item"},
	}})
	assert.Equal(t, "item-not-found", res.Error.Type)
	assert.Equal(t, "no such item", res.Error.Message)

	res = BuildResult(domain.CancelRequestRecord{ID: 3, Error: &domain.ConsumerError{
		Kind:    "checkin-service-error",
		Message: "checkin failed",
	}})
	assert.Equal(t, "checkin-service-error", res.Error.Type)
	assert.Equal(t, "checkin failed", res.Error.Message)
}

func TestBuildResult_RecapProcessed(t *testing.T) {
	assert.True(t, BuildResult(domain.CancelRequestRecord{ID: 1, RecapProcessed: true}).Success)
}

func TestPublish_WritesEveryRecordInOrder(t *testing.T) {
	w := &mockWriter{}
	out, err := New(w).Publish(context.Background(), []domain.CancelRequestRecord{
		{ID: 1, Deleted: true},
		{ID: 2},
	}, "CancelRequestResult", "CancelRequestResult")

	require.NoError(t, err)
	assert.Len(t, out, 2)
	require.Len(t, w.written, 2)
	assert.Equal(t, 1, w.written[0].CancelRequestID)
	assert.True(t, w.written[0].Success)
	assert.Equal(t, 2, w.written[1].CancelRequestID)
	assert.False(t, w.written[1].Success)
}

func TestPublish_WriteFailureIsFatal(t *testing.T) {
	w := &mockWriter{failOn: 2, err: errors.New("stream unavailable")}
	_, err := New(w).Publish(context.Background(), []domain.CancelRequestRecord{
		{ID: 1}, {ID: 2}, {ID: 3},
	}, "results", "CancelRequestResult")

	var ce *domain.ConsumerError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, domain.KindResultStream, ce.Kind)
	assert.False(t, classify.Recoverable(err))
	assert.Len(t, w.written, 1)
}

func TestPublish_ValidatesParameters(t *testing.T) {
	recs := []domain.CancelRequestRecord{{ID: 1}}
	tests := []struct {
		name    string
		pub     *Publisher
		records []domain.CancelRequestRecord
		stream  string
		schema  string
	}{
		{"empty records", New(&mockWriter{}), nil, "s", "x"},
		{"empty stream", New(&mockWriter{}), recs, " ", "x"},
		{"empty schema", New(&mockWriter{}), recs, "s", ""},
		{"no writer", New(nil), recs, "s", "x"},
	}

	for _, tt := range tests {
		_, err := tt.pub.Publish(context.Background(), tt.records, tt.stream, tt.schema)
		var ce *domain.ConsumerError
		if assert.True(t, errors.As(err, &ce), tt.name) {
			assert.Equal(t, domain.KindFunctionParameter, ce.Kind, tt.name)
		}
	}
}
