package core

import (
	"errors"
	"fmt"
)

// Exit codes shared by moodplay and moodplayd.
const (
	ExitOK          = 0
	ExitRuntime     = 1
	ExitUsage       = 2
	ExitUnavailable = 3
	ExitAuth        = 4
	ExitMalformed   = 5
)

// Wire error codes carried in reply envelopes.
const (
	CodeMalformedOutput = "MALFORMED_OUTPUT"
	CodeUnavailable     = "UNAVAILABLE"
	CodeAuth            = "AUTH"
	CodeInvalid         = "INVALID"
	CodeInternal        = "INTERNAL"
)

var (
	// ErrMalformedModelOutput means the reply held no parseable recommendation list.
	ErrMalformedModelOutput = errors.New("malformed model output")
	// ErrModelUnavailable means the language model could not be reached.
	ErrModelUnavailable = errors.New("language model unavailable")
	// ErrModelAuth means the language model rejected our credentials.
	ErrModelAuth = errors.New("language model authentication failed")
	// ErrMetadataUnavailable means the metadata search failed (not an empty result).
	ErrMetadataUnavailable = errors.New("metadata service unavailable")
	// ErrLocatorUnavailable means the video search failed (not an empty result).
	ErrLocatorUnavailable = errors.New("locator service unavailable")
)

// MalformedReplyError carries the raw reply that could not be parsed.
type MalformedReplyError struct {
	Reply  string
	Reason string
}

func (e *MalformedReplyError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMalformedModelOutput, e.Reason)
}

// Unwrap lets errors.Is match ErrMalformedModelOutput.
func (e *MalformedReplyError) Unwrap() error {
	return ErrMalformedModelOutput
}

// CLIError carries a user-visible message and exit code.
type CLIError struct {
	Code int
	Msg  string
	Err  error
}

func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// WrapError creates a CLIError with an underlying error.
func WrapError(code int, msg string, err error) *CLIError {
	return &CLIError{Code: code, Msg: msg, Err: err}
}

// ErrorForReplyCode maps protocol error codes to CLI exit codes.
func ErrorForReplyCode(code string, message string) *CLIError {
	switch code {
	case CodeMalformedOutput:
		return &CLIError{Code: ExitMalformed, Msg: message}
	case CodeUnavailable:
		return &CLIError{Code: ExitUnavailable, Msg: message}
	case CodeAuth:
		return &CLIError{Code: ExitAuth, Msg: message}
	case CodeInvalid:
		return &CLIError{Code: ExitUsage, Msg: message}
	default:
		return &CLIError{Code: ExitRuntime, Msg: message}
	}
}

// ReplyCodeForError maps a pipeline error to a protocol error code.
func ReplyCodeForError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedModelOutput):
		return CodeMalformedOutput
	case errors.Is(err, ErrModelAuth):
		return CodeAuth
	case errors.Is(err, ErrModelUnavailable), errors.Is(err, ErrMetadataUnavailable), errors.Is(err, ErrLocatorUnavailable):
		return CodeUnavailable
	case isUsageError(err):
		return CodeInvalid
	default:
		return CodeInternal
	}
}

func isUsageError(err error) bool {
	var cliErr *CLIError
	return errors.As(err, &cliErr) && cliErr.Code == ExitUsage
}

// ExitCode returns the CLI exit code from error.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr.Code
	}
	switch ReplyCodeForError(err) {
	case CodeMalformedOutput:
		return ExitMalformed
	case CodeAuth:
		return ExitAuth
	case CodeUnavailable:
		return ExitUnavailable
	default:
		return ExitRuntime
	}
}
