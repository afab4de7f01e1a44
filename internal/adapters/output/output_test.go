package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mikey-austin/moodplay/internal/core"
	"github.com/mikey-austin/moodplay/pkg/mp"
)

func TestHumanPrinterAsk(t *testing.T) {
	var buf bytes.Buffer
	result := core.TurnResult{
		Summary: "Sure!\n\nQueen - Bohemian Rhapsody (link: uri1)\n\nEnjoy!",
		Dropped: []mp.Recommendation{{Artist: "Nobody", Track: "Unknown"}},
	}
	if err := (HumanPrinter{Out: &buf}).Print(result); err != nil {
		t.Fatalf("print: %v", err)
	}
	got := buf.String()
	if !strings.HasPrefix(got, result.Summary+"\n") {
		t.Fatalf("summary missing: %q", got)
	}
	if !strings.Contains(got, "not found: Nobody - Unknown") {
		t.Fatalf("drop missing: %q", got)
	}
}

func TestHumanPrinterQueue(t *testing.T) {
	var buf bytes.Buffer
	result := core.QueueResult{Queue: mp.QueueGetReply{
		Revision: 2,
		Entries: []mp.QueueItem{
			{QueueEntryID: "q1", Artist: "Queen", Track: "Bohemian Rhapsody", Locator: "uri1"},
		},
	}}
	if err := (HumanPrinter{Out: &buf}).Print(result); err != nil {
		t.Fatalf("print: %v", err)
	}
	if !strings.Contains(buf.String(), "REV 2") || !strings.Contains(buf.String(), "uri1") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestHumanPrinterResolve(t *testing.T) {
	cases := []struct {
		name  string
		reply mp.ResolveReply
		want  string
	}{
		{name: "no metadata", reply: mp.ResolveReply{}, want: "no metadata match"},
		{name: "no video", reply: mp.ResolveReply{Canonical: &mp.Recommendation{Artist: "Queen", Track: "X"}}, want: "no playable resource"},
		{name: "found", reply: mp.ResolveReply{Found: true, Canonical: &mp.Recommendation{Artist: "Queen", Track: "X"}, Locator: "uri1"}, want: "uri1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			result := core.ResolveResult{Query: mp.ResolveBody{Track: "x", Artist: "queen"}, Reply: tc.reply}
			if err := (HumanPrinter{Out: &buf}).Print(result); err != nil {
				t.Fatalf("print: %v", err)
			}
			if !strings.Contains(buf.String(), tc.want) {
				t.Fatalf("output %q missing %q", buf.String(), tc.want)
			}
		})
	}
}

func TestJSONPrinterTurnResult(t *testing.T) {
	var buf bytes.Buffer
	if err := (JSONPrinter{Out: &buf}).Print(core.TurnResult{TurnID: "t1", Stage: core.StageDone}); err != nil {
		t.Fatalf("print: %v", err)
	}
	if !strings.Contains(buf.String(), `"turnId": "t1"`) || !strings.Contains(buf.String(), `"items": []`) {
		t.Fatalf("unexpected json %q", buf.String())
	}
}
