package api

import "fmt"

// TransportKind describes how far a request got before it failed.
type TransportKind int

const (
	// KindResponded means the service answered with a non-2xx status.
	KindResponded TransportKind = iota + 1
	// KindNoResponse means the request was sent but nothing came back (network, timeout).
	KindNoResponse
	// KindMalformed means the request could not be built.
	KindMalformed
)

func (k TransportKind) String() string {
	switch k {
	case KindResponded:
		return "response"
	case KindNoResponse:
		return "request"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// TransportError is returned by Client.Do for every failed call.
type TransportError struct {
	Kind       TransportKind
	Service    string
	Method     string
	URL        string
	Payload    any
	StatusCode int
	StatusText string
	// APIType and APIMessage come from the error body of the downstream API.
	APIType    string
	APIMessage string
	Err        error
}

func (e *TransportError) Error() string {
	switch e.Kind {
	case KindResponded:
		return fmt.Sprintf("%s %s: status %d %s", e.Method, e.URL, e.StatusCode, e.StatusText)
	case KindNoResponse:
		return fmt.Sprintf("%s %s: no response: %v", e.Method, e.URL, e.Err)
	default:
		return fmt.Sprintf("malformed request: %v", e.Err)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }
