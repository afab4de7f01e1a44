package core

import (
	"context"
	"errors"
	"testing"

	"github.com/mikey-austin/moodplay/pkg/mp"
)

type fakeMetadata struct {
	matches map[string][]mp.Recommendation
	err     error
	calls   int
}

func (f *fakeMetadata) SearchTrack(ctx context.Context, track string, artist string) ([]mp.Recommendation, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.matches[track+"|"+artist], nil
}

type fakeVideos struct {
	results map[string][]mp.VideoResult
	err     error
	queries []string
	limits  []int
}

func (f *fakeVideos) SearchVideos(ctx context.Context, query string, limit int) ([]mp.VideoResult, error) {
	f.queries = append(f.queries, query)
	f.limits = append(f.limits, limit)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[query], nil
}

func TestResolveTakesTopRankedMatch(t *testing.T) {
	search := &fakeMetadata{matches: map[string][]mp.Recommendation{
		"bohemian rapsody|queen": {
			{Track: "Bohemian Rhapsody", Artist: "Queen"},
			{Track: "Bohemian Rhapsody", Artist: "Panic! at the Disco"},
		},
	}}
	resolver := MetadataResolver{Search: search}

	got, found, err := resolver.Resolve(context.Background(), "bohemian rapsody", "queen")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !found || got.Artist != "Queen" || got.Track != "Bohemian Rhapsody" {
		t.Fatalf("unexpected result %+v found=%t", got, found)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	search := &fakeMetadata{matches: map[string][]mp.Recommendation{
		"Song|Band": {{Track: "Song", Artist: "Band"}},
	}}
	resolver := MetadataResolver{Search: search}

	first, _, _ := resolver.Resolve(context.Background(), "Song", "Band")
	second, _, _ := resolver.Resolve(context.Background(), "Song", "Band")
	if first != second {
		t.Fatalf("expected identical results, got %+v and %+v", first, second)
	}
}

func TestResolveNotFoundIsNotAnError(t *testing.T) {
	resolver := MetadataResolver{Search: &fakeMetadata{}}
	_, found, err := resolver.Resolve(context.Background(), "Imaginary", "Nobody")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if found {
		t.Fatalf("expected not found")
	}
}

func TestResolveServiceFailure(t *testing.T) {
	resolver := MetadataResolver{Search: &fakeMetadata{err: errors.New("connection refused")}}
	_, _, err := resolver.Resolve(context.Background(), "Song", "Band")
	if !errors.Is(err, ErrMetadataUnavailable) {
		t.Fatalf("expected metadata unavailable, got %v", err)
	}
	if !IsServiceUnavailable(err) {
		t.Fatalf("expected service unavailable classification")
	}
}

func TestResolveBlankTrackSkipsSearch(t *testing.T) {
	search := &fakeMetadata{}
	resolver := MetadataResolver{Search: search}
	_, found, err := resolver.Resolve(context.Background(), "  ", "Band")
	if err != nil || found {
		t.Fatalf("expected silent miss")
	}
	if search.calls != 0 {
		t.Fatalf("expected no search call")
	}
}

func TestLocateQueryAndLimit(t *testing.T) {
	videos := &fakeVideos{results: map[string][]mp.VideoResult{
		"Bohemian Rhapsody - Queen": {{URI: "uri1", Title: "Queen – Bohemian Rhapsody (Official Video)"}},
	}}
	locator := ResourceLocator{Search: videos}

	uri, found, err := locator.Locate(context.Background(), "Bohemian Rhapsody", "Queen")
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if !found || uri != "uri1" {
		t.Fatalf("unexpected uri %q", uri)
	}
	if len(videos.limits) != 1 || videos.limits[0] != 1 {
		t.Fatalf("expected a single-result search, got %v", videos.limits)
	}
}

func TestLocateEmptyAndFailure(t *testing.T) {
	locator := ResourceLocator{Search: &fakeVideos{}}
	if _, found, err := locator.Locate(context.Background(), "x", "y"); err != nil || found {
		t.Fatalf("expected silent miss")
	}

	locator = ResourceLocator{Search: &fakeVideos{err: errors.New("503")}}
	if _, _, err := locator.Locate(context.Background(), "x", "y"); !errors.Is(err, ErrLocatorUnavailable) {
		t.Fatalf("expected locator unavailable, got %v", err)
	}
}

func TestLocateBlankURIs(t *testing.T) {
	videos := &fakeVideos{results: map[string][]mp.VideoResult{
		Query("x", "y"): {{Title: "x", URI: " "}},
	}}
	locator := ResourceLocator{Search: videos}
	if _, _, err := locator.Locate(context.Background(), "x", "y"); !errors.Is(err, ErrLocatorUnavailable) {
		t.Fatalf("results without a uri should be malformed, got %v", err)
	}

	videos.results[Query("x", "y")] = []mp.VideoResult{{URI: ""}, {URI: "uri2"}}
	locator.Selector = FuzzySelector{Size: 5}
	uri, found, err := locator.Locate(context.Background(), "x", "y")
	if err != nil || !found || uri != "uri2" {
		t.Fatalf("blank entry should be skipped: %q %v %v", uri, found, err)
	}
}
