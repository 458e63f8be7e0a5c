package classify

import (
	"errors"
	"fmt"
	"testing"

	"github.com/nypl/cancel-request-consumer/internal/core/domain"
	"github.com/nypl/cancel-request-consumer/internal/infra/api"
)

func responded(status int) error {
	return &api.TransportError{
		Kind:       api.KindResponded,
		Method:     "POST",
		URL:        "http://checkout",
		StatusCode: status,
		StatusText: "Some Status",
	}
}

func TestClassify_Unauthorized(t *testing.T) {
	ce := Classify(responded(401), "checkout-service", 1)
	if ce.Kind != domain.KindAccessTokenInvalid {
		t.Fatalf("expected %s, got %s", domain.KindAccessTokenInvalid, ce.Kind)
	}
	if ce.StatusCode != 401 {
		t.Errorf("expected status 401, got %d", ce.StatusCode)
	}
}

func TestClassify_ServerError(t *testing.T) {
	ce := Classify(responded(503), "checkout-service", 1)
	if ce.Kind != "checkout-service-error" {
		t.Fatalf("unexpected kind %s", ce.Kind)
	}
	if ce.StatusCode != 503 {
		t.Errorf("expected status 503, got %d", ce.StatusCode)
	}
	want := "An error was received from the checkout-service for Cancel Request Record (1); the service responded with a status code: (503) and status text: some status"
	if ce.Message != want {
		t.Errorf("unexpected message:\n got %q\nwant %q", ce.Message, want)
	}
}

func TestClassify_NoServiceName(t *testing.T) {
	ce := Classify(responded(500), "", 0)
	if ce.Kind != domain.KindServiceError {
		t.Fatalf("unexpected kind %s", ce.Kind)
	}
	if ce.StatusCode != 500 {
		t.Errorf("expected status code to be carried, got %d", ce.StatusCode)
	}
}

func TestClassify_NoResponse(t *testing.T) {
	raw := &api.TransportError{Kind: api.KindNoResponse, Err: errors.New("i/o timeout")}
	ce := Classify(raw, "checkin-service", 2)

	if ce.Kind != "checkin-service-error" {
		t.Fatalf("unexpected kind %s", ce.Kind)
	}
	if ce.HasStatus() {
		t.Errorf("expected no status code, got %d", ce.StatusCode)
	}
	if ce.DebugInfo.ResponseType != "request" {
		t.Errorf("unexpected response type %s", ce.DebugInfo.ResponseType)
	}
}

func TestClassify_Malformed(t *testing.T) {
	ce := Classify(errors.New("boom"), "checkout-service", 3)

	if ce.Kind != domain.KindServiceError {
		t.Fatalf("unexpected kind %s", ce.Kind)
	}
	if ce.DebugInfo.Debug != "malformed request" {
		t.Errorf("unexpected debug %q", ce.DebugInfo.Debug)
	}
}

func TestClassify_APIErrorBody(t *testing.T) {
	raw := &api.TransportError{
		Kind:       api.KindResponded,
		StatusCode: 404,
		StatusText: "Not Found",
		APIType:    "item-not-found",
		APIMessage: "item does not exist",
	}
	ce := Classify(raw, "checkin-service", 4)

	if ce.APIType() != "item-not-found" || ce.APIMessage() != "item does not exist" {
		t.Errorf("api fields not captured: %+v", ce.DebugInfo)
	}
}

func TestClassify_PassesThroughConsumerErrors(t *testing.T) {
	orig := domain.NewConsumerError(domain.KindResultStream, "stream down")
	if got := Classify(fmt.Errorf("wrapped: %w", orig), "checkout-service", 1); got != orig {
		t.Fatalf("expected the original error back, got %v", got)
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		expect Action
	}{
		{"unauthorized", Classify(responded(401), "checkout-service", 1), ActionRedeliverInvalidateToken},
		{"server error", Classify(responded(500), "checkout-service", 1), ActionRedeliver},
		{"bad gateway", Classify(responded(502), "checkin-service", 1), ActionRedeliver},
		{"timeout", Classify(&api.TransportError{Kind: api.KindNoResponse}, "checkin-service", 1), ActionRedeliver},
		{"not found", Classify(responded(404), "checkout-service", 1), ActionSkipRecord},
		{"bad request", Classify(responded(400), "checkout-service", 1), ActionSkipRecord},
		{"consumer error", domain.NewConsumerError(domain.KindConsumerError, "x"), ActionFail},
		{"result stream", domain.NewConsumerError(domain.KindResultStream, "x"), ActionFail},
		{"parameter error", domain.NewConsumerError(domain.KindFunctionParameter, "x"), ActionFail},
		{"decode error", domain.NewConsumerError(domain.KindDecode, "x"), ActionFail},
		{"untyped", errors.New("x"), ActionFail},
	}

	for _, tt := range tests {
		if got := Decide(tt.err); got != tt.expect {
			t.Errorf("%s: Decide() = %v, want %v", tt.name, got, tt.expect)
		}
	}
}

func TestDecideBatch(t *testing.T) {
	if got := DecideBatch(Classify(responded(404), "auth-service", 0)); got != ActionFail {
		t.Errorf("expected 4xx at batch level to fail, got %v", got)
	}
	if !Recoverable(Classify(responded(503), "auth-service", 0)) {
		t.Error("expected 5xx to be recoverable")
	}
	if Recoverable(domain.NewConsumerError(domain.KindResultStream, "x")) {
		t.Error("expected result stream errors to be non-recoverable")
	}
}
