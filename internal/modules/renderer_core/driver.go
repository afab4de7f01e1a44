package renderercore

import "context"

// Driver is a player backend that can append to its own playlist.
type Driver interface {
	// AppendPlay adds uri to the end of the player's playlist and starts
	// playback only if the player is idle.
	AppendPlay(ctx context.Context, uri string) error
}
