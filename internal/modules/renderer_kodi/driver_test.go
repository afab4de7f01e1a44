package rendererkodi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

type kodiStub struct {
	mu      sync.Mutex
	methods []string
	params  []map[string]any
	players []map[string]any
	size    int
}

func (k *kodiStub) roundTrip(t *testing.T) testTransport {
	return func(req *http.Request) (*http.Response, error) {
		body, _ := io.ReadAll(req.Body)
		var rpcReq struct {
			Method string         `json:"method"`
			Params map[string]any `json:"params"`
		}
		if err := json.Unmarshal(body, &rpcReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		k.mu.Lock()
		k.methods = append(k.methods, rpcReq.Method)
		k.params = append(k.params, rpcReq.Params)
		k.mu.Unlock()

		var result any
		switch rpcReq.Method {
		case "Playlist.Add", "Player.Open":
			result = "OK"
		case "Player.GetActivePlayers":
			result = k.players
		case "Playlist.GetProperties":
			result = map[string]any{"size": k.size}
		default:
			t.Fatalf("unexpected method %s", rpcReq.Method)
		}

		payload, _ := json.Marshal(map[string]any{"result": result})
		return &http.Response{
			StatusCode: 200,
			Status:     "200 OK",
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(bytes.NewBuffer(payload)),
		}, nil
	}
}

func newTestDriver(t *testing.T, stub *kodiStub) *Driver {
	t.Helper()
	driver, err := NewDriver("kodi.test:8080", "kodi", "secret", VideoPlaylist, 2*time.Second)
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	if driver.baseURL != "http://kodi.test:8080/jsonrpc" {
		t.Fatalf("unexpected base url %s", driver.baseURL)
	}
	driver.http = &http.Client{Transport: stub.roundTrip(t)}
	return driver
}

func TestAppendPlayOpensWhenIdle(t *testing.T) {
	stub := &kodiStub{players: []map[string]any{}, size: 3}
	driver := newTestDriver(t, stub)

	if err := driver.AppendPlay(context.Background(), "https://www.youtube.com/watch?v=fJ9rUzIMcZQ"); err != nil {
		t.Fatalf("append: %v", err)
	}

	want := []string{"Playlist.Add", "Player.GetActivePlayers", "Playlist.GetProperties", "Player.Open"}
	if len(stub.methods) != len(want) {
		t.Fatalf("unexpected calls %v", stub.methods)
	}
	for i := range want {
		if stub.methods[i] != want[i] {
			t.Fatalf("unexpected calls %v", stub.methods)
		}
	}
	item := stub.params[0]["item"].(map[string]any)
	if item["file"] != "plugin://plugin.video.youtube/play/?video_id=fJ9rUzIMcZQ" {
		t.Fatalf("unexpected file %v", item["file"])
	}
	open := stub.params[3]["item"].(map[string]any)
	if open["position"] != float64(2) || open["playlistid"] != float64(VideoPlaylist) {
		t.Fatalf("unexpected open params %v", open)
	}
}

func TestAppendPlayLeavesPlaybackAlone(t *testing.T) {
	stub := &kodiStub{players: []map[string]any{{"playerid": 1, "type": "video"}}}
	driver := newTestDriver(t, stub)

	if err := driver.AppendPlay(context.Background(), "http://example.com/track.mp3"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(stub.methods) != 2 {
		t.Fatalf("expected add and player check only, got %v", stub.methods)
	}
	item := stub.params[0]["item"].(map[string]any)
	if item["file"] != "http://example.com/track.mp3" {
		t.Fatalf("non youtube uri should pass through, got %v", item["file"])
	}
}

func TestAppendPlayReportsRPCError(t *testing.T) {
	driver, err := NewDriver("http://kodi.test", "", "", VideoPlaylist, 0)
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	driver.http = &http.Client{Transport: testTransport(func(*http.Request) (*http.Response, error) {
		payload := []byte(`{"error":{"code":-32602,"message":"Invalid params."}}`)
		return &http.Response{StatusCode: 200, Body: io.NopCloser(bytes.NewReader(payload))}, nil
	})}

	if err := driver.AppendPlay(context.Background(), "http://example.com/a.mp3"); err == nil {
		t.Fatalf("expected rpc error")
	}
	if err := driver.AppendPlay(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty uri")
	}
}

func TestPlayableFile(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.youtube.com/watch?v=abc", youtubePluginURL + "abc"},
		{"https://youtube.com/watch?v=abc&t=10", youtubePluginURL + "abc"},
		{"https://youtu.be/abc", youtubePluginURL + "abc"},
		{"https://www.youtube.com/watch", "https://www.youtube.com/watch"},
		{"http://example.com/a.mp3", "http://example.com/a.mp3"},
	}
	for _, test := range tests {
		if got := PlayableFile(test.in); got != test.want {
			t.Fatalf("%s: got %s want %s", test.in, got, test.want)
		}
	}
}

type testTransport func(*http.Request) (*http.Response, error)

func (t testTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	return t(r)
}
