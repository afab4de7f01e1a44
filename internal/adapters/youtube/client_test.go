package youtube

import (
	"context"
	"errors"
	"testing"

	"github.com/mikey-austin/moodplay/internal/adapters/breaker"
)

func TestSearchVideosMapsAndTruncates(t *testing.T) {
	var got string
	client := NewClient(Config{}, WithSearchFunc(func(ctx context.Context, query string) ([]Hit, error) {
		got = query
		return []Hit{
			{VideoID: "", Title: "channel, not a video"},
			{VideoID: "fJ9rUzIMcZQ", Title: "Queen - Bohemian Rhapsody"},
			{VideoID: "second", Title: "cover"},
		}, nil
	}))

	results, err := client.SearchVideos(context.Background(), " Bohemian Rhapsody - Queen ", 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if got != "Bohemian Rhapsody - Queen" {
		t.Fatalf("query = %q", got)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %+v", results)
	}
	if results[0].URI != "https://www.youtube.com/watch?v=fJ9rUzIMcZQ" {
		t.Fatalf("uri = %q", results[0].URI)
	}
}

func TestSearchVideosNoLimit(t *testing.T) {
	client := NewClient(Config{}, WithSearchFunc(func(ctx context.Context, query string) ([]Hit, error) {
		return []Hit{{VideoID: "a"}, {VideoID: "b"}}, nil
	}))
	results, err := client.SearchVideos(context.Background(), "q", 0)
	if err != nil || len(results) != 2 {
		t.Fatalf("unexpected results %+v err=%v", results, err)
	}
}

func TestSearchVideosFailureAndBreaker(t *testing.T) {
	boom := errors.New("quota")
	calls := 0
	client := NewClient(Config{},
		WithSearchFunc(func(ctx context.Context, query string) ([]Hit, error) {
			calls++
			return nil, boom
		}),
		WithBreaker(breaker.Options{Failures: 1}))

	if _, err := client.SearchVideos(context.Background(), "q", 1); !errors.Is(err, boom) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if _, err := client.SearchVideos(context.Background(), "q", 1); !errors.Is(err, breaker.ErrOpen) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestSearchVideosEmptyQuery(t *testing.T) {
	client := NewClient(Config{}, WithSearchFunc(func(ctx context.Context, query string) ([]Hit, error) {
		t.Fatalf("search should not run")
		return nil, nil
	}))
	results, err := client.SearchVideos(context.Background(), "  ", 1)
	if err != nil || len(results) != 0 {
		t.Fatalf("unexpected %+v %v", results, err)
	}
}
