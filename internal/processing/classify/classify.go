// Package classify turns raw downstream failures into typed consumer errors and
// decides what a failure means for the record and for the batch.
package classify

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nypl/cancel-request-consumer/internal/core/domain"
	"github.com/nypl/cancel-request-consumer/internal/infra/api"
)

// Action determines how a classified error is handled.
type Action int

const (
	// ActionSkipRecord keeps the error on the record and continues the batch.
	ActionSkipRecord Action = iota
	// ActionRedeliver aborts the batch and asks the host to redeliver it.
	ActionRedeliver
	// ActionRedeliverInvalidateToken is ActionRedeliver after dropping the cached token.
	ActionRedeliverInvalidateToken
	// ActionFail aborts the batch without redelivery.
	ActionFail
)

func (a Action) String() string {
	switch a {
	case ActionSkipRecord:
		return "skip-record"
	case ActionRedeliver:
		return "redeliver"
	case ActionRedeliverInvalidateToken:
		return "redeliver-invalidate-token"
	case ActionFail:
		return "fail"
	default:
		return "unknown"
	}
}

const malformedDebug = "malformed request"

// Classify maps a raw failure from a call to service into a ConsumerError.
// A recordID of zero omits the record from the message.
func Classify(err error, service string, recordID int) *domain.ConsumerError {
	if err == nil {
		return nil
	}

	var ce *domain.ConsumerError
	if errors.As(err, &ce) {
		return ce
	}

	msg := baseMessage(service, recordID)

	var te *api.TransportError
	if !errors.As(err, &te) || te.Kind == api.KindMalformed {
		return &domain.ConsumerError{
			Kind:      domain.KindServiceError,
			Service:   service,
			Message:   msg,
			DebugInfo: &domain.DebugInfo{ResponseType: api.KindMalformed.String(), Debug: malformedDebug},
			Err:       err,
		}
	}

	if te.Kind == api.KindNoResponse {
		return &domain.ConsumerError{
			Kind:    domain.ServiceKind(service),
			Service: service,
			Message: msg + "; the request was made, no response received",
			DebugInfo: &domain.DebugInfo{
				ResponseType: te.Kind.String(),
				Method:       te.Method,
				URL:          te.URL,
				Payload:      te.Payload,
				Debug:        errString(te.Err),
			},
			Err: err,
		}
	}

	msg += fmt.Sprintf("; the service responded with a status code: (%d)", te.StatusCode)
	if te.StatusText != "" {
		msg += " and status text: " + strings.ToLower(te.StatusText)
	}

	kind := domain.ServiceKind(service)
	if te.StatusCode == 401 {
		kind = domain.KindAccessTokenInvalid
	}

	return &domain.ConsumerError{
		Kind:       kind,
		Service:    service,
		StatusCode: te.StatusCode,
		Message:    msg,
		DebugInfo: &domain.DebugInfo{
			ResponseType: te.Kind.String(),
			Method:       te.Method,
			URL:          te.URL,
			Payload:      te.Payload,
			StatusCode:   te.StatusCode,
			StatusText:   te.StatusText,
			ErrorType:    te.APIType,
			ErrorMessage: te.APIMessage,
		},
		Err: err,
	}
}

// Decide determines the action for an error raised while processing a record.
func Decide(err error) Action {
	if err == nil {
		return ActionSkipRecord
	}

	var ce *domain.ConsumerError
	if !errors.As(err, &ce) {
		return ActionFail
	}

	switch {
	case ce.Kind == domain.KindAccessTokenInvalid:
		return ActionRedeliverInvalidateToken
	case ce.Kind != domain.KindServiceError && ce.Service == "":
		// Consumer-level kinds never succeed on redelivery
		return ActionFail
	case !ce.HasStatus() || ce.StatusCode >= 500:
		return ActionRedeliver
	default:
		return ActionSkipRecord
	}
}

// DecideBatch determines the action for an error that reached the batch level.
// Errors that would only skip a record mean the batch itself cannot make progress.
func DecideBatch(err error) Action {
	action := Decide(err)
	if action == ActionSkipRecord {
		return ActionFail
	}
	return action
}

// Recoverable reports whether a batch failing with err should be redelivered.
func Recoverable(err error) bool {
	switch DecideBatch(err) {
	case ActionRedeliver, ActionRedeliverInvalidateToken:
		return true
	default:
		return false
	}
}

func baseMessage(service string, recordID int) string {
	msg := "An error was received"
	if service != "" {
		msg += " from the " + service
	}
	if recordID != 0 {
		msg += fmt.Sprintf(" for Cancel Request Record (%d)", recordID)
	}
	return msg
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
