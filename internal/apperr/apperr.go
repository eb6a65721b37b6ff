// Package apperr carries a machine-readable error kind through service and
// gateway layers so callers can map failures without string matching.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers and for response mapping.
type Kind int

const (
	// KindUnknown is an unclassified internal failure.
	KindUnknown Kind = iota
	// KindNotFound means a referenced user, workspace, membership, or
	// external subject does not exist.
	KindNotFound
	// KindConflict means a uniqueness constraint was violated (duplicate
	// membership, duplicate email).
	KindConflict
	// KindAccessDenied means the caller or service account lacks the
	// required privilege, including an upstream 403.
	KindAccessDenied
	// KindBadRequest means required input is missing or malformed.
	KindBadRequest
	// KindPolicyViolation means the operation is structurally valid but
	// forbidden by a domain rule (e.g. leaving the last workspace).
	KindPolicyViolation
	// KindUpstream means the identity provider or broker failed in a way
	// not classified above.
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindAccessDenied:
		return "access_denied"
	case KindBadRequest:
		return "bad_request"
	case KindPolicyViolation:
		return "policy_violation"
	case KindUpstream:
		return "upstream_failure"
	default:
		return "internal"
	}
}

// Error is an error with a Kind. Wrapped causes stay reachable via errors.Is/As.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an existing error. Returns nil if err is nil.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err, or KindUnknown when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
