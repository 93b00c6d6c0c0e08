package tools

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed tool call.
type Kind string

const (
	KindUnknownTool         Kind = "unknown_tool"
	KindMissingArgument     Kind = "missing_argument"
	KindInvalidArgument     Kind = "invalid_argument"
	KindNotFound            Kind = "not_found"
	KindNotImplemented      Kind = "not_implemented"
	KindRemoteRequestFailed Kind = "remote_request_failed"
)

// Sentinels for errors.Is; any *Error of the same Kind matches.
var (
	ErrUnknownTool         = &Error{Kind: KindUnknownTool}
	ErrMissingArgument     = &Error{Kind: KindMissingArgument}
	ErrInvalidArgument     = &Error{Kind: KindInvalidArgument}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrNotImplemented      = &Error{Kind: KindNotImplemented}
	ErrRemoteRequestFailed = &Error{Kind: KindRemoteRequestFailed}
)

// HTTPStatus maps a kind to the status the REST endpoints answer with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnknownTool, KindNotFound:
		return http.StatusNotFound
	case KindMissingArgument, KindInvalidArgument:
		return http.StatusBadRequest
	case KindNotImplemented:
		return http.StatusNotImplemented
	case KindRemoteRequestFailed:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Error is a classified tool failure.
type Error struct {
	Kind     Kind
	Tool     string
	Argument string
	// Status is the HTTP status Foreman answered with, if any.
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Tool != "" {
		msg = e.Tool + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

func unknownTool(name string) *Error {
	return &Error{Kind: KindUnknownTool, Tool: name, Message: fmt.Sprintf("unknown tool %q", name)}
}

func missingArgument(tool ToolName, arg string) *Error {
	return &Error{Kind: KindMissingArgument, Tool: string(tool), Argument: arg, Message: fmt.Sprintf("missing required argument %q", arg)}
}

func invalidArgument(tool ToolName, msg string) *Error {
	return &Error{Kind: KindInvalidArgument, Tool: string(tool), Message: msg}
}

func notFound(tool ToolName, msg string) *Error {
	return &Error{Kind: KindNotFound, Tool: string(tool), Message: msg}
}

func notImplemented(tool ToolName) *Error {
	return &Error{Kind: KindNotImplemented, Tool: string(tool), Message: "tool is not implemented"}
}

func remoteFailed(tool ToolName, status int, err error) *Error {
	msg := "remote request failed"
	if status != 0 {
		msg = fmt.Sprintf("remote request failed with status %d", status)
	}
	return &Error{Kind: KindRemoteRequestFailed, Tool: string(tool), Status: status, Message: msg, Err: err}
}
