package renderervlc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Driver implements renderercore.Driver for VLC via its HTTP interface.
type Driver struct {
	baseURL  string
	http     *http.Client
	username string
	password string
}

// NewDriver creates a VLC HTTP driver.
func NewDriver(baseURL string, username string, password string, timeout time.Duration) (*Driver, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("base_url required")
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Driver{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		username: username,
		password: password,
	}, nil
}

// AppendPlay enqueues uri and starts playback if VLC is idle.
func (d *Driver) AppendPlay(ctx context.Context, uri string) error {
	if uri == "" {
		return errors.New("url required")
	}
	payload, err := d.request(ctx, url.Values{
		"command": []string{"in_enqueue"},
		"input":   []string{uri},
	})
	if err != nil {
		return err
	}
	var status vlcStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		return fmt.Errorf("vlc status: %w", err)
	}
	if status.State == "playing" {
		return nil
	}
	_, err = d.request(ctx, url.Values{"command": []string{"pl_play"}})
	return err
}

type vlcStatus struct {
	State string `json:"state"`
}

func (d *Driver) request(ctx context.Context, values url.Values) ([]byte, error) {
	endpoint := d.baseURL + "/requests/status.json"
	if len(values) > 0 {
		endpoint = endpoint + "?" + values.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if d.username != "" || d.password != "" {
		req.SetBasicAuth(d.username, d.password)
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("vlc error: %s", msg)
	}
	return body, nil
}
