package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures so callers can decide whether a
// failure is fatal to the run or only to one symbol.
type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration"
	KindNotFound      ErrorKind = "not_found"
	KindTransport     ErrorKind = "transport"
	KindEmptyResponse ErrorKind = "empty_response"
)

// PipelineError is returned by every stage of the analysis pipeline.
type PipelineError struct {
	Kind   ErrorKind
	Op     string
	Status int // HTTP status for transport errors, 0 otherwise
	Msg    string
	Err    error
}

func (e *PipelineError) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *PipelineError) Unwrap() error { return e.Err }

// ConfigurationError reports a missing or invalid setting.
func ConfigurationError(format string, args ...any) error {
	return &PipelineError{Kind: KindConfiguration, Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing local snapshot.
func NotFoundError(op string, err error) error {
	return &PipelineError{Kind: KindNotFound, Op: op, Err: err}
}

// TransportError reports a failed or non-2xx remote call.
func TransportError(op string, status int, msg string, err error) error {
	return &PipelineError{Kind: KindTransport, Op: op, Status: status, Msg: msg, Err: err}
}

// EmptyResponseError reports a successful inference call without usable text.
func EmptyResponseError(op string) error {
	return &PipelineError{Kind: KindEmptyResponse, Op: op, Msg: "No response from AI"}
}

// KindOf returns the kind of the first PipelineError in err's chain, or "".
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

func IsNotFound(err error) bool      { return KindOf(err) == KindNotFound }
func IsTransport(err error) bool     { return KindOf(err) == KindTransport }
func IsConfiguration(err error) bool { return KindOf(err) == KindConfiguration }
