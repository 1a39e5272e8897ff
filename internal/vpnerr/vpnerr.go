// Package vpnerr defines the error taxonomy the orchestration core raises
// (spec §7): each failure is tagged with a Kind so callers and the log sink
// can classify it without string matching.
package vpnerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an orchestrator failure.
type Kind string

const (
	// Config is invalid or missing required fields in caller-supplied input.
	Config Kind = "config"
	// Spawn is a failure to launch a helper binary.
	Spawn Kind = "spawn"
	// HealthCheck is a child that exited within its health-check window.
	HealthCheck Kind = "health_check"
	// Platform is an OS tool reporting failure (rasdial, nmcli, scutil, pkexec).
	Platform Kind = "platform"
	// IO is a log-append, config-write, or settings-read failure.
	IO Kind = "io"
	// Parse is unparseable tool output (e.g. ping).
	Parse Kind = "parse"
)

// previewLen is the number of characters of offending JSON kept in a Config error.
const previewLen = 200

// Error is a classified orchestrator failure with an English message.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a Kind-tagged error with a wrapped cause. A non-nil cause is
// wrapped with github.com/pkg/errors.WithStack, recording a stack trace at
// the raise site; formatting Cause with %+v prints it for post-mortem log
// inspection (the *Error itself has no Formatter, so %+v on it prints only
// Error()).
func New(kind Kind, message string, cause error) *Error {
	if cause != nil {
		cause = errors.WithStack(cause)
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// NewConfig builds a Config error carrying a truncated preview of the
// offending JSON, per spec §7.
func NewConfig(message string, rawJSON []byte) *Error {
	preview := string(rawJSON)
	if len(preview) > previewLen {
		preview = preview[:previewLen]
	}
	return &Error{Kind: Config, Message: fmt.Sprintf("%s (input: %q)", message, preview)}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
