package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mikey-austin/moodplay/internal/ports"
	"github.com/mikey-austin/moodplay/pkg/mp"
)

// MetadataResolver canonicalizes loosely specified track/artist pairs.
type MetadataResolver struct {
	Search   ports.MetadataSearch
	Selector Selector
}

// Resolve returns the canonical pair. found is false when the service had no
// match; err is only set when the service itself failed.
func (r MetadataResolver) Resolve(ctx context.Context, track string, artist string) (mp.Recommendation, bool, error) {
	track = strings.TrimSpace(track)
	artist = strings.TrimSpace(artist)
	if track == "" {
		return mp.Recommendation{}, false, nil
	}

	matches, err := r.Search.SearchTrack(ctx, track, artist)
	if err != nil {
		return mp.Recommendation{}, false, fmt.Errorf("%w: search %q by %q: %w", ErrMetadataUnavailable, track, artist, err)
	}

	ranked := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		ranked = append(ranked, Candidate{Track: m.Track, Artist: m.Artist})
	}
	best, ok := r.selector().Select(Candidate{Track: track, Artist: artist}, ranked)
	if !ok {
		return mp.Recommendation{}, false, nil
	}
	return mp.Recommendation{Artist: best.Artist, Track: best.Track}, true, nil
}

func (r MetadataResolver) selector() Selector {
	if r.Selector == nil {
		return FirstSelector{}
	}
	return r.Selector
}

// ResourceLocator maps a canonical pair to a playable URI.
type ResourceLocator struct {
	Search   ports.VideoSearch
	Selector Selector
}

// Query builds the video search query for a pair.
func Query(track string, artist string) string {
	return fmt.Sprintf("%s - %s", track, artist)
}

// Locate returns a playable URI. found is false when the search came back
// empty; err is set when the search service failed or returned only results
// without a URI. A blank entry among usable ones is skipped.
func (l ResourceLocator) Locate(ctx context.Context, track string, artist string) (string, bool, error) {
	sel := l.selector()
	query := Query(track, artist)
	results, err := l.Search.SearchVideos(ctx, query, sel.Window())
	if err != nil {
		return "", false, fmt.Errorf("%w: search %q: %w", ErrLocatorUnavailable, query, err)
	}

	ranked := make([]Candidate, 0, len(results))
	for _, res := range results {
		if strings.TrimSpace(res.URI) == "" {
			continue
		}
		ranked = append(ranked, Candidate{Title: res.Title, URI: res.URI})
	}
	if len(results) > 0 && len(ranked) == 0 {
		return "", false, fmt.Errorf("%w: search %q: results carry no uri", ErrLocatorUnavailable, query)
	}
	best, ok := sel.Select(Candidate{Track: track, Artist: artist}, ranked)
	if !ok {
		return "", false, nil
	}
	return best.URI, true, nil
}

func (l ResourceLocator) selector() Selector {
	if l.Selector == nil {
		return FirstSelector{}
	}
	return l.Selector
}

// IsServiceUnavailable reports whether err came from a lookup service failure.
func IsServiceUnavailable(err error) bool {
	return errors.Is(err, ErrMetadataUnavailable) || errors.Is(err, ErrLocatorUnavailable)
}
