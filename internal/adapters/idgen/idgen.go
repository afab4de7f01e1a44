package idgen

import "github.com/google/uuid"

// Generator creates random UUID identifiers for turns and commands.
type Generator struct{}

// NewID returns a UUIDv4 string, or an empty string if the system entropy
// source failed.
func (Generator) NewID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return ""
	}
	return id.String()
}
