package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/mikey-austin/moodplay/pkg/mp"
)

func TestExtractSplitsProseAndList(t *testing.T) {
	reply := "Sure!\n[{\"artist\":\"Queen\",\"track\":\"Bohemian Rhapsody\"}]\nEnjoy!"
	parsed, err := BracketExtractor{}.Extract(reply)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if parsed.Preamble != "Sure!" {
		t.Fatalf("unexpected preamble %q", parsed.Preamble)
	}
	if parsed.Epilogue != "Enjoy!" {
		t.Fatalf("unexpected epilogue %q", parsed.Epilogue)
	}
	want := []mp.Recommendation{{Artist: "Queen", Track: "Bohemian Rhapsody"}}
	if len(parsed.Recommendations) != 1 || parsed.Recommendations[0] != want[0] {
		t.Fatalf("unexpected recommendations %+v", parsed.Recommendations)
	}
}

func TestExtractKeepsModelOrder(t *testing.T) {
	reply := `Here you go [
{"artist": "A", "track": "1"},
{"artist": "B", "track": "2"},
{"artist": "C", "track": "3"}
]`
	parsed, err := BracketExtractor{}.Extract(reply)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	got := make([]string, 0, len(parsed.Recommendations))
	for _, rec := range parsed.Recommendations {
		got = append(got, rec.Artist)
	}
	if strings.Join(got, ",") != "A,B,C" {
		t.Fatalf("unexpected order %v", got)
	}
	if parsed.Preamble != "Here you go " {
		t.Fatalf("expected only newlines trimmed, got %q", parsed.Preamble)
	}
	if parsed.Epilogue != "" {
		t.Fatalf("expected empty epilogue, got %q", parsed.Epilogue)
	}
}

func TestExtractFailures(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"no bracket", "I can't play anything right now."},
		{"no closing bracket", "Try [{\"artist\":\"Queen\""},
		{"closing before opening", "oops ] then ["},
		{"not records", "[1, 2, 3]"},
		{"invalid json", "[{artist: Queen}]"},
		{"wrong field type", `[{"artist": 1, "track": "x"}]`},
	}

	for _, test := range tests {
		_, err := BracketExtractor{}.Extract(test.reply)
		if !errors.Is(err, ErrMalformedModelOutput) {
			t.Fatalf("%s: expected malformed output, got %v", test.name, err)
		}
		var malformed *MalformedReplyError
		if !errors.As(err, &malformed) || malformed.Reply != test.reply {
			t.Fatalf("%s: expected raw reply to be attached", test.name)
		}
	}
}

func TestExtractEmptyList(t *testing.T) {
	parsed, err := BracketExtractor{}.Extract("Nothing fits.\n[]")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if parsed.Recommendations == nil || len(parsed.Recommendations) != 0 {
		t.Fatalf("expected empty non-nil list")
	}
}

func FuzzBracketExtractorRoundTrip(f *testing.F) {
	f.Add("Sure!\n", "\nEnjoy!")
	f.Add("", "")
	f.Add("\n\nlead", "tail\n\n")

	list := `[{"artist":"Queen","track":"Bohemian Rhapsody"}]`
	f.Fuzz(func(t *testing.T, before string, after string) {
		if strings.ContainsAny(before, "[]") || strings.ContainsAny(after, "[]") {
			t.Skip()
		}
		parsed, err := BracketExtractor{}.Extract(before + list + after)
		if err != nil {
			t.Fatalf("extract: %v", err)
		}
		if parsed.Preamble != strings.Trim(before, "\n") {
			t.Fatalf("preamble mismatch: %q vs %q", parsed.Preamble, before)
		}
		if parsed.Epilogue != strings.Trim(after, "\n") {
			t.Fatalf("epilogue mismatch: %q vs %q", parsed.Epilogue, after)
		}
		if len(parsed.Recommendations) != 1 {
			t.Fatalf("expected one recommendation")
		}
	})
}
