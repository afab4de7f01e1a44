package core

import "testing"

func TestParsePolicy(t *testing.T) {
	policy, err := ParsePolicy("", "")
	if err != nil {
		t.Fatalf("parse defaults: %v", err)
	}
	if policy != DefaultPolicy() {
		t.Fatalf("expected defaults, got %+v", policy)
	}

	policy, err = ParsePolicy("SKIP", "placeholder")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if policy.OnServiceError != SkipItem || policy.OnMalformed != Placeholder {
		t.Fatalf("unexpected policy %+v", policy)
	}

	if _, err := ParsePolicy("retry", ""); err == nil {
		t.Fatalf("expected error for unknown service policy")
	}
	if _, err := ParsePolicy("", "drop"); err == nil {
		t.Fatalf("expected error for unknown malformed policy")
	}
}
