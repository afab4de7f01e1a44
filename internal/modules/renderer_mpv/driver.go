package renderermpv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dexterlb/mpvipc"
)

// Driver implements renderercore.Driver over mpv's JSON IPC socket. The
// connection is opened on first use and reopened after mpv restarts.
type Driver struct {
	socket  string
	timeout time.Duration

	mu   sync.Mutex
	conn *mpvipc.Connection
}

// NewDriver creates a driver for the mpv socket at path.
func NewDriver(socket string, timeout time.Duration) (*Driver, error) {
	socket = strings.TrimSpace(socket)
	if socket == "" {
		return nil, errors.New("ipc_socket required")
	}
	if timeout == 0 {
		timeout = 3 * time.Second
	}
	return &Driver{socket: socket, timeout: timeout}, nil
}

// AppendPlay appends uri to mpv's playlist, starting playback when idle.
func (d *Driver) AppendPlay(ctx context.Context, uri string) error {
	if uri == "" {
		return errors.New("url required")
	}
	_, err := d.Call(ctx, "loadfile", uri, "append-play")
	return err
}

type callResult struct {
	data any
	err  error
}

// Call sends one IPC command and waits for its response or the timeout.
func (d *Driver) Call(ctx context.Context, args ...any) (any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	conn, err := d.connection()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan callResult, 1)
	go func() {
		data, err := conn.Call(args...)
		done <- callResult{data: data, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("mpv %v: %w", args[0], res.err)
		}
		return res.data, nil
	case <-ctx.Done():
		// A reply that never came leaves the connection in an unknown state.
		d.reset()
		return nil, fmt.Errorf("mpv %v: %w", args[0], ctx.Err())
	}
}

// Close drops the IPC connection.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reset()
	return nil
}

func (d *Driver) connection() (*mpvipc.Connection, error) {
	if d.conn != nil && !d.conn.IsClosed() {
		return d.conn, nil
	}
	conn := mpvipc.NewConnection(d.socket)
	if err := conn.Open(); err != nil {
		return nil, fmt.Errorf("mpv dial %s: %w", d.socket, err)
	}
	d.conn = conn
	return conn, nil
}

func (d *Driver) reset() {
	if d.conn != nil {
		_ = d.conn.Close()
		d.conn = nil
	}
}
