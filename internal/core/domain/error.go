package domain

import "fmt"

// ErrorKind classifies a ConsumerError.
type ErrorKind string

const (
	KindAccessTokenInvalid   ErrorKind = "access-token-invalid"
	KindServiceError         ErrorKind = "service-error"
	KindConsumerError        ErrorKind = "cancel-request-consumer-error"
	KindFunctionParameter    ErrorKind = "function-parameter-error"
	KindInvalidTokenResponse ErrorKind = "invalid-access-token-response"
	KindResultStream         ErrorKind = "cancel-request-result-stream-error"
	KindRecordsFilteredEmpty ErrorKind = "filtered-records-array-empty"
	KindDecode               ErrorKind = "decode-error"
)

// ServiceKind returns the "<service>-error" kind for a named downstream service.
func ServiceKind(service string) ErrorKind {
	if service == "" {
		return KindServiceError
	}
	return ErrorKind(service + "-error")
}

// DebugInfo is the diagnostic payload captured from a failed downstream call.
type DebugInfo struct {
	ResponseType string `json:"responseType"`
	Method       string `json:"method,omitempty"`
	URL          string `json:"url,omitempty"`
	Payload      any    `json:"payload,omitempty"`
	StatusCode   int    `json:"statusCode,omitempty"`
	StatusText   string `json:"statusText,omitempty"`
	ErrorType    string `json:"errorType,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	Debug        string `json:"debug,omitempty"`
}

// ConsumerError is the typed error attached to records and returned to the batch host.
type ConsumerError struct {
	Kind ErrorKind `json:"type"`
	// Service is set when the error came from a downstream service call.
	Service string `json:"service,omitempty"`
	// StatusCode is zero when no response was received.
	StatusCode int        `json:"statusCode,omitempty"`
	Message    string     `json:"message"`
	DebugInfo  *DebugInfo `json:"debugInfo,omitempty"`
	Err        error      `json:"-"`
}

// NewConsumerError builds a ConsumerError of the given kind.
func NewConsumerError(kind ErrorKind, format string, args ...any) *ConsumerError {
	return &ConsumerError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *ConsumerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ConsumerError) Unwrap() error { return e.Err }

// HasStatus reports whether the downstream service responded.
func (e *ConsumerError) HasStatus() bool { return e.StatusCode != 0 }

// APIType returns the error type reported by the downstream API, if any.
func (e *ConsumerError) APIType() string {
	if e.DebugInfo == nil {
		return ""
	}
	return e.DebugInfo.ErrorType
}

// APIMessage returns the error message reported by the downstream API, if any.
func (e *ConsumerError) APIMessage() string {
	if e.DebugInfo == nil {
		return ""
	}
	return e.DebugInfo.ErrorMessage
}
