package idgen

import (
	"testing"

	"github.com/google/uuid"
)

func TestGeneratorProducesDistinctV4(t *testing.T) {
	gen := Generator{}
	a, b := gen.NewID(), gen.NewID()
	if a == b {
		t.Fatalf("expected distinct ids, got %q twice", a)
	}
	parsed, err := uuid.Parse(a)
	if err != nil {
		t.Fatalf("parse %q: %v", a, err)
	}
	if parsed.Version() != 4 {
		t.Fatalf("version = %d", parsed.Version())
	}
}
