package core

import (
	"fmt"
	"strings"
)

// ServiceErrorPolicy decides what a lookup service failure does to the turn.
type ServiceErrorPolicy string

const (
	// AbortTurn stops resolving the remaining items of the turn.
	AbortTurn ServiceErrorPolicy = "abort"
	// SkipItem records the failure and moves on to the next item.
	SkipItem ServiceErrorPolicy = "skip"
)

// MalformedPolicy decides what is recorded when a reply cannot be parsed.
type MalformedPolicy string

const (
	// KeepReply appends the raw model reply as the assistant turn.
	KeepReply MalformedPolicy = "keep_reply"
	// Placeholder appends MalformedPlaceholderText instead.
	Placeholder MalformedPolicy = "placeholder"
)

// MalformedPlaceholderText is recorded under the Placeholder policy.
const MalformedPlaceholderText = "(no playable recommendations in reply)"

// Policy groups the per-turn failure policies.
type Policy struct {
	OnServiceError ServiceErrorPolicy
	OnMalformed    MalformedPolicy
}

// DefaultPolicy aborts on service failures and keeps malformed replies.
func DefaultPolicy() Policy {
	return Policy{OnServiceError: AbortTurn, OnMalformed: KeepReply}
}

// ParsePolicy validates config strings; empty values take the defaults.
func ParsePolicy(onServiceError string, onMalformed string) (Policy, error) {
	policy := DefaultPolicy()
	switch ServiceErrorPolicy(strings.ToLower(strings.TrimSpace(onServiceError))) {
	case "":
	case AbortTurn:
		policy.OnServiceError = AbortTurn
	case SkipItem:
		policy.OnServiceError = SkipItem
	default:
		return Policy{}, fmt.Errorf("on_service_error must be abort|skip, got %q", onServiceError)
	}
	switch MalformedPolicy(strings.ToLower(strings.TrimSpace(onMalformed))) {
	case "":
	case KeepReply:
		policy.OnMalformed = KeepReply
	case Placeholder:
		policy.OnMalformed = Placeholder
	default:
		return Policy{}, fmt.Errorf("on_malformed must be keep_reply|placeholder, got %q", onMalformed)
	}
	return policy, nil
}
