package schema

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nypl/cancel-request-consumer/internal/core/domain"
	"github.com/nypl/cancel-request-consumer/internal/infra/api"
)

func TestRecordRoundTrip(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(nil, "")

	in := domain.CancelRequestRecord{
		ID:                  716,
		JobID:               "9a6fbbe9-bd10-4067-9fea-a0838de6c527",
		TrackingID:          "715",
		PatronBarcode:       "23333090797927",
		ItemBarcode:         "33433038947945",
		OwningInstitutionID: "NYPL",
		CreatedDate:         "2017-10-04T16:41:53-04:00",
	}

	data, err := reg.EncodeRecord(ctx, in)
	require.NoError(t, err)

	out, err := reg.DecodeRecords(ctx, RecordSchema, [][]byte{data})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, in, out[0])
}

func TestDecodeRecords_Garbage(t *testing.T) {
	_, err := NewRegistry(nil, "").DecodeRecords(context.Background(), RecordSchema, [][]byte{{0xff}})

	var ce *domain.ConsumerError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, domain.KindDecode, ce.Kind)
}

func TestDecodeRecords_UnknownSchema(t *testing.T) {
	_, err := NewRegistry(nil, "").DecodeRecords(context.Background(), "Nope", [][]byte{{0x00}})

	var ce *domain.ConsumerError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, domain.KindDecode, ce.Kind)
}

func TestResultRoundTrip(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(nil, "")
	job := "job-1"

	for _, in := range []domain.CancelRequestResult{
		{CancelRequestID: 1, JobID: &job, Success: true},
		{CancelRequestID: 2, Error: &domain.ResultError{Type: "checkout-service-error", Message: "failed"}},
	} {
		data, err := reg.Encode(ctx, ResultSchema, in)
		require.NoError(t, err)

		out, err := reg.DecodeResult(ctx, data)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}
}

func TestRegistry_RemoteSchemaIsCached(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/current-schemas/Tiny" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"data":{"schema":"{\"name\":\"Tiny\",\"type\":\"record\",\"fields\":[{\"name\":\"id\",\"type\":\"int\"}]}"}}`))
	}))
	defer srv.Close()

	reg := NewRegistry(api.NewClient(time.Second), srv.URL+"/")

	s, err := reg.Schema(context.Background(), "Tiny")
	require.NoError(t, err)
	assert.Contains(t, s.String(), "Tiny")

	_, err = reg.Schema(context.Background(), "Tiny")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRegistry_RemoteFailureFallsBackToBundled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	reg := NewRegistry(api.NewClient(time.Second), srv.URL)

	_, err := reg.Schema(context.Background(), ResultSchema)
	assert.NoError(t, err)
}
