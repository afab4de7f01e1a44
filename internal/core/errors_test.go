package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorForReplyCode(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{CodeMalformedOutput, ExitMalformed},
		{CodeUnavailable, ExitUnavailable},
		{CodeAuth, ExitAuth},
		{CodeInvalid, ExitUsage},
		{"UNKNOWN", ExitRuntime},
	}

	for _, test := range tests {
		err := ErrorForReplyCode(test.code, "message")
		if err.Code != test.expected {
			t.Fatalf("code %s expected %d got %d", test.code, test.expected, err.Code)
		}
	}
}

func TestReplyCodeForError(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{nil, ""},
		{&MalformedReplyError{Reply: "hi", Reason: "no list"}, CodeMalformedOutput},
		{fmt.Errorf("turn: %w", ErrModelAuth), CodeAuth},
		{fmt.Errorf("turn: %w", ErrModelUnavailable), CodeUnavailable},
		{fmt.Errorf("item: %w", ErrMetadataUnavailable), CodeUnavailable},
		{fmt.Errorf("item: %w", ErrLocatorUnavailable), CodeUnavailable},
		{&CLIError{Code: ExitUsage, Msg: "prompt required"}, CodeInvalid},
		{errors.New("boom"), CodeInternal},
	}

	for _, test := range tests {
		if got := ReplyCodeForError(test.err); got != test.expected {
			t.Fatalf("error %v expected %q got %q", test.err, test.expected, got)
		}
	}
}

func TestExitCode(t *testing.T) {
	if ExitCode(nil) != ExitOK {
		t.Fatalf("expected ok")
	}
	if ExitCode(WrapError(ExitUsage, "bad", errors.New("x"))) != ExitUsage {
		t.Fatalf("expected usage")
	}
	if ExitCode(fmt.Errorf("wrapped: %w", ErrMetadataUnavailable)) != ExitUnavailable {
		t.Fatalf("expected unavailable")
	}
	if ExitCode(&MalformedReplyError{Reason: "x"}) != ExitMalformed {
		t.Fatalf("expected malformed")
	}
}
