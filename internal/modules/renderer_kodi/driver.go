package rendererkodi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
)

// VideoPlaylist is Kodi's video playlist; the YouTube add-on plays there.
const VideoPlaylist = 1

const youtubePluginURL = "plugin://plugin.video.youtube/play/?video_id="

// Driver implements renderercore.Driver for Kodi via JSON-RPC.
type Driver struct {
	baseURL    string
	http       *http.Client
	username   string
	password   string
	playlistID int
	nextID     atomic.Int64
}

// NewDriver creates a Kodi JSON-RPC driver appending to playlistID.
func NewDriver(baseURL string, username string, password string, playlistID int, timeout time.Duration) (*Driver, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("base_url required")
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(parsed.Path, "/jsonrpc") {
		parsed.Path = path.Join(parsed.Path, "/jsonrpc")
	}
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Driver{
		baseURL:    parsed.String(),
		http:       &http.Client{Timeout: timeout},
		username:   username,
		password:   password,
		playlistID: playlistID,
	}, nil
}

// AppendPlay adds uri to the playlist and opens it at the new item when
// nothing is playing.
func (d *Driver) AppendPlay(ctx context.Context, uri string) error {
	if uri == "" {
		return errors.New("url required")
	}
	if _, err := d.rpc(ctx, "Playlist.Add", map[string]any{
		"playlistid": d.playlistID,
		"item":       map[string]any{"file": PlayableFile(uri)},
	}); err != nil {
		return err
	}

	active, err := d.playing(ctx)
	if err != nil || active {
		return err
	}
	size, err := d.playlistSize(ctx)
	if err != nil {
		return err
	}
	_, err = d.rpc(ctx, "Player.Open", map[string]any{
		"item": map[string]any{"playlistid": d.playlistID, "position": max(size-1, 0)},
	})
	return err
}

// PlayableFile rewrites YouTube watch links for the Kodi YouTube add-on.
// Other URIs pass through unchanged.
func PlayableFile(uri string) string {
	parsed, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	host := strings.TrimPrefix(parsed.Host, "www.")
	switch {
	case host == "youtube.com" && parsed.Path == "/watch":
		if id := parsed.Query().Get("v"); id != "" {
			return youtubePluginURL + id
		}
	case host == "youtu.be":
		if id := strings.Trim(parsed.Path, "/"); id != "" {
			return youtubePluginURL + id
		}
	}
	return uri
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type activePlayer struct {
	PlayerID int    `json:"playerid"`
	Type     string `json:"type"`
}

type playlistProperties struct {
	Size int `json:"size"`
}

func (d *Driver) playing(ctx context.Context) (bool, error) {
	raw, err := d.rpc(ctx, "Player.GetActivePlayers", nil)
	if err != nil {
		return false, err
	}
	var players []activePlayer
	if err := json.Unmarshal(raw, &players); err != nil {
		return false, err
	}
	return len(players) > 0, nil
}

func (d *Driver) playlistSize(ctx context.Context) (int, error) {
	raw, err := d.rpc(ctx, "Playlist.GetProperties", map[string]any{
		"playlistid": d.playlistID,
		"properties": []string{"size"},
	})
	if err != nil {
		return 0, err
	}
	var props playlistProperties
	if err := json.Unmarshal(raw, &props); err != nil {
		return 0, err
	}
	return props.Size, nil
}

func (d *Driver) rpc(ctx context.Context, method string, params any) (json.RawMessage, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      d.nextID.Add(1),
		Method:  method,
		Params:  params,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if d.username != "" || d.password != "" {
		httpReq.SetBasicAuth(d.username, d.password)
	}
	resp, err := d.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("kodi %s: %s", method, strings.TrimSpace(string(body)))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var rpcResp rpcResponse
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return nil, err
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("kodi %s: %s", method, rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}
