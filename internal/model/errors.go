package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies domain failures so the transport layer can map them
// to responses without string matching.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindInvalidState
	KindLimitExceeded
	KindNotFound
	KindServiceUnavailable
	KindDataIntegrity
)

type DomainError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func Validationf(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func InvalidStatef(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

func LimitExceededf(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: KindLimitExceeded, Message: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func ServiceUnavailable(msg string, err error) *DomainError {
	return &DomainError{Kind: KindServiceUnavailable, Message: msg, Err: err}
}

func DataIntegrityf(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: KindDataIntegrity, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the classification from any wrapped error chain.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

var ErrExtensionInvalid = LimitExceededf("extension minutes must be positive")

func ErrInvalidTransition(from, to AttemptStatus) *DomainError {
	return InvalidStatef("attempt cannot move from %s to %s", from, to)
}

func ErrExtensionTooLarge(max int) *DomainError {
	return LimitExceededf("cannot extend more than %d minutes", max)
}
