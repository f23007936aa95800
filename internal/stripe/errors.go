package stripe

import (
	"errors"
	"fmt"

	stripego "github.com/stripe/stripe-go/v82"
)

// Error is a processor failure with the fields clients need to render a
// card failure: the error taxonomy, the human message, and the decline
// detail when a card was declined.
type Error struct {
	Operation   string
	HTTPStatus  int
	Type        string
	Code        string
	DeclineCode string
	ChargeID    string
	Message     string
	Cause       error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("stripe %s failed: %s (%s)", e.Operation, e.Message, e.Code)
	}
	return fmt.Sprintf("stripe %s failed: %s", e.Operation, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// wrapError converts a stripe-go error into an Error, preserving the
// processor's classification when present.
func wrapError(operation string, err error) error {
	var sErr *stripego.Error
	if errors.As(err, &sErr) {
		return &Error{
			Operation:   operation,
			HTTPStatus:  sErr.HTTPStatusCode,
			Type:        string(sErr.Type),
			Code:        string(sErr.Code),
			DeclineCode: string(sErr.DeclineCode),
			ChargeID:    sErr.ChargeID,
			Message:     sErr.Msg,
			Cause:       err,
		}
	}

	return &Error{
		Operation: operation,
		Message:   err.Error(),
		Cause:     err,
	}
}

// AsError returns the wrapped processor error, if err carries one.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
