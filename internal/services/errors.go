package services

import (
	"errors"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrCancelled     = errors.New("cancelled")
	ErrTransient     = errors.New("transient failure")
)

// Error carries stage context for a failure together with the marker used for
// classification. errors.Is matches both the marker and the wrapped cause.
type Error struct {
	Marker    error
	Stage     string
	Operation string
	Message   string
	Cause     error
}

func (e *Error) Error() string {
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	var b strings.Builder
	if e.Marker != nil {
		b.WriteString(e.Marker.Error())
		b.WriteString(": ")
	}
	b.WriteString(detail)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Marker != nil {
		out = append(out, e.Marker)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// Wrap builds an error that includes stage context while tagging it with the
// provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &Error{
		Marker:    marker,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     err,
	}
}

// Reason returns the human readable part of err suitable for manifests and
// task failure reasons. Wrapped errors yield their message (plus cause);
// anything else yields err.Error().
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		msg := svcErr.Message
		if msg == "" {
			msg = buildDetail(svcErr.Stage, svcErr.Operation, "")
		}
		if svcErr.Cause != nil {
			return msg + ": " + svcErr.Cause.Error()
		}
		return msg
	}
	return strings.TrimSpace(err.Error())
}

// IsCancelled reports whether err represents a cooperative cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
