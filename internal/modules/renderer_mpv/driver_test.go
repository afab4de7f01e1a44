package renderermpv

import (
	"bufio"
	"context"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

type ipcRequest struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

// fakeMPV answers each request with an unrelated event followed by the reply.
func fakeMPV(t *testing.T, result string) (string, <-chan []any) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mpv.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Skipf("unix sockets unavailable: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	seen := make(chan []any, 4)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				scanner := bufio.NewScanner(conn)
				for scanner.Scan() {
					var req ipcRequest
					if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
						return
					}
					seen <- req.Command
					_, _ = conn.Write([]byte(`{"event":"start-file","playlist_entry_id":1}` + "\n"))
					reply, _ := json.Marshal(map[string]any{"error": result, "data": nil, "request_id": req.RequestID})
					_, _ = conn.Write(append(reply, '\n'))
				}
			}(conn)
		}
	}()
	return path, seen
}

func TestAppendPlaySendsLoadfile(t *testing.T) {
	path, seen := fakeMPV(t, "success")
	driver, err := NewDriver(path, time.Second)
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}

	if err := driver.AppendPlay(context.Background(), "https://www.youtube.com/watch?v=abc"); err != nil {
		t.Fatalf("append: %v", err)
	}
	cmd := <-seen
	if len(cmd) != 3 || cmd[0] != "loadfile" || cmd[1] != "https://www.youtube.com/watch?v=abc" || cmd[2] != "append-play" {
		t.Fatalf("unexpected command %v", cmd)
	}
}

func TestAppendPlayReportsMPVError(t *testing.T) {
	path, _ := fakeMPV(t, "invalid parameter")
	driver, _ := NewDriver(path, time.Second)

	err := driver.AppendPlay(context.Background(), "uri")
	if err == nil || !strings.Contains(err.Error(), "invalid parameter") {
		t.Fatalf("expected mpv error, got %v", err)
	}
}

func TestAppendPlayReusesConnection(t *testing.T) {
	path, seen := fakeMPV(t, "success")
	driver, _ := NewDriver(path, time.Second)
	defer driver.Close()

	for _, uri := range []string{"u1", "u2"} {
		if err := driver.AppendPlay(context.Background(), uri); err != nil {
			t.Fatalf("append %s: %v", uri, err)
		}
	}
	for _, want := range []string{"u1", "u2"} {
		if cmd := <-seen; cmd[1] != want {
			t.Fatalf("unexpected command %v", cmd)
		}
	}
}

func TestAppendPlayTimesOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mute.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Skipf("unix sockets unavailable: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			// Read and never answer.
			go func(conn net.Conn) {
				defer conn.Close()
				buf := make([]byte, 1024)
				for {
					if _, err := conn.Read(buf); err != nil {
						return
					}
				}
			}(conn)
		}
	}()

	driver, _ := NewDriver(path, 100*time.Millisecond)
	err = driver.AppendPlay(context.Background(), "uri")
	if err == nil || !strings.Contains(err.Error(), "deadline") {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestAppendPlayNoSocket(t *testing.T) {
	driver, _ := NewDriver(filepath.Join(t.TempDir(), "missing.sock"), 100*time.Millisecond)
	if err := driver.AppendPlay(context.Background(), "uri"); err == nil {
		t.Fatalf("expected dial error")
	}
}

func TestNewDriverRequiresSocket(t *testing.T) {
	if _, err := NewDriver(" ", 0); err == nil {
		t.Fatalf("expected error")
	}
}
