// Package errcode defines the error kinds surfaced by the service layer and
// the HTTP status each one maps to.
package errcode

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

type Err struct {
	Code   int    `json:"code"`
	Status int    `json:"-"`
	Msg    string `json:"msg"`
	cause  error
}

var (
	ErrInvalidInput      = &Err{Code: 10001, Status: http.StatusBadRequest, Msg: "invalid input"}
	ErrNotFound          = &Err{Code: 10002, Status: http.StatusNotFound, Msg: "not found"}
	ErrConflict          = &Err{Code: 10003, Status: http.StatusConflict, Msg: "conflict"}
	ErrUnauthorized      = &Err{Code: 10004, Status: http.StatusUnauthorized, Msg: "unauthorized"}
	ErrForbidden         = &Err{Code: 10005, Status: http.StatusForbidden, Msg: "forbidden"}
	ErrInsufficientFunds = &Err{Code: 20001, Status: http.StatusPaymentRequired, Msg: "insufficient funds"}
	ErrChainUnavailable  = &Err{Code: 20002, Status: http.StatusServiceUnavailable, Msg: "chain unavailable"}
	ErrSubmissionFailed  = &Err{Code: 20003, Status: http.StatusBadGateway, Msg: "submission failed"}
	ErrInternal          = &Err{Code: 50000, Status: http.StatusInternalServerError, Msg: "internal error"}
)

func (e *Err) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.cause)
	}
	return e.Msg
}

func (e *Err) Cause() error  { return e.cause }
func (e *Err) Unwrap() error { return e.cause }

// Is reports whether target is the same kind, so errors.Is(err, ErrNotFound)
// matches any message variant of ErrNotFound.
func (e *Err) Is(target error) bool {
	t, ok := target.(*Err)
	return ok && t.Code == e.Code
}

// WithMsg returns a copy of the kind carrying a specific message.
func (e *Err) WithMsg(format string, args ...interface{}) *Err {
	return &Err{Code: e.Code, Status: e.Status, Msg: fmt.Sprintf(format, args...)}
}

// Wrap returns a copy of the kind carrying msg and the underlying cause.
func (e *Err) Wrap(cause error, msg string) *Err {
	return &Err{Code: e.Code, Status: e.Status, Msg: msg, cause: cause}
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind *Err) bool {
	return errors.Is(err, kind)
}

// From extracts the first *Err in the chain, or ErrInternal wrapping err.
func From(err error) *Err {
	var e *Err
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal.Wrap(err, ErrInternal.Msg)
}
