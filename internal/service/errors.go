package service

import (
	"errors"
	"fmt"

	"github.com/paidmsg/beancounter/internal/storage/beandb"
	"github.com/paidmsg/beancounter/internal/stripe"
)

// Code is the closed set of failure classes the core surfaces to its
// callers. Domain outcomes (insufficient balance, invalid amount) are
// results, not errors, and never appear here.
type Code string

const (
	CodeNotFound     Code = "not_found"
	CodeInvalidUUID  Code = "invalid_uuid"
	CodeBadArguments Code = "bad_arguments"
	CodeDatabase     Code = "database_error"
	CodeProcessor    Code = "stripe_error"
)

// Error is a classified core failure.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NotFound builds a not-found failure.
func NotFound(message string) error {
	return &Error{Code: CodeNotFound, Message: message}
}

// InvalidUUID builds an identifier-parse failure.
func InvalidUUID(field string, cause error) error {
	return &Error{Code: CodeInvalidUUID, Message: field + " is not a valid client identifier", Cause: cause}
}

// BadArguments builds an invalid-request failure.
func BadArguments(message string) error {
	return &Error{Code: CodeBadArguments, Message: message}
}

// CodeOf classifies an error from the core into a Code.
func CodeOf(err error) Code {
	var coreErr *Error
	if errors.As(err, &coreErr) {
		return coreErr.Code
	}
	if _, ok := stripe.AsError(err); ok {
		return CodeProcessor
	}
	if beandb.IsNotFound(err) {
		return CodeNotFound
	}
	return CodeDatabase
}

// wrapStoreError classifies a storage failure, passing core errors
// through untouched.
func wrapStoreError(err error) error {
	var coreErr *Error
	if errors.As(err, &coreErr) {
		return err
	}
	if _, ok := stripe.AsError(err); ok {
		return &Error{Code: CodeProcessor, Message: "payment processor call failed", Cause: err}
	}
	if beandb.IsNotFound(err) {
		return &Error{Code: CodeNotFound, Message: "record not found", Cause: err}
	}
	return &Error{Code: CodeDatabase, Message: "store operation failed", Cause: err}
}
