package core

import (
	"strings"

	json "github.com/goccy/go-json"

	"github.com/mikey-austin/moodplay/pkg/mp"
)

// ParsedReply is one assistant reply split around its recommendation list.
type ParsedReply struct {
	Preamble        string
	Recommendations []mp.Recommendation
	Epilogue        string
}

// Extractor splits a model reply into prose and recommendations.
type Extractor interface {
	Extract(reply string) (ParsedReply, error)
}

// BracketExtractor takes everything from the first '[' to the last ']' as a
// JSON list of {artist, track} records.
type BracketExtractor struct{}

// Extract implements Extractor. Failures are *MalformedReplyError.
func (BracketExtractor) Extract(reply string) (ParsedReply, error) {
	start := strings.Index(reply, "[")
	if start < 0 {
		return ParsedReply{}, &MalformedReplyError{Reply: reply, Reason: "no recommendation list"}
	}
	end := strings.LastIndex(reply, "]")
	if end < start {
		return ParsedReply{}, &MalformedReplyError{Reply: reply, Reason: "unterminated recommendation list"}
	}

	var records []mp.Recommendation
	if err := json.Unmarshal([]byte(reply[start:end+1]), &records); err != nil {
		return ParsedReply{}, &MalformedReplyError{Reply: reply, Reason: "decode recommendation list: " + err.Error()}
	}
	if records == nil {
		records = []mp.Recommendation{}
	}

	return ParsedReply{
		Preamble:        strings.Trim(reply[:start], "\n"),
		Recommendations: records,
		Epilogue:        strings.Trim(reply[end+1:], "\n"),
	}, nil
}
