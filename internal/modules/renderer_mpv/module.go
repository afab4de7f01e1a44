package renderermpv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Config configures an mpv process owned by the daemon.
type Config struct {
	Binary string
	Socket string
	// Video keeps a video window; the default is audio only.
	Video     bool
	ExtraArgs []string
}

// Module runs mpv in idle mode with its IPC socket enabled so the driver can
// feed it. It is only needed when no mpv is already running.
type Module struct {
	log    *zap.Logger
	config Config
}

// NewModule creates an mpv process module.
func NewModule(log *zap.Logger, cfg Config) (*Module, error) {
	if strings.TrimSpace(cfg.Socket) == "" {
		return nil, errors.New("ipc_socket required")
	}
	if strings.TrimSpace(cfg.Binary) == "" {
		cfg.Binary = "mpv"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Module{log: log, config: cfg}, nil
}

// Args returns the mpv command line.
func (m *Module) Args() []string {
	args := []string{
		"--idle=yes",
		"--no-terminal",
		"--ytdl=yes",
		"--input-ipc-server=" + m.config.Socket,
	}
	if !m.config.Video {
		args = append(args, "--no-video")
	}
	return append(args, m.config.ExtraArgs...)
}

// Run starts mpv and waits until ctx is done or mpv exits.
func (m *Module) Run(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(m.config.Socket), 0o700); err != nil {
		return fmt.Errorf("mpv socket dir: %w", err)
	}
	_ = os.Remove(m.config.Socket)
	cmd := exec.CommandContext(ctx, m.config.Binary, m.Args()...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start mpv: %w", err)
	}
	m.log.Info("mpv started", zap.Int("pid", cmd.Process.Pid), zap.String("socket", m.config.Socket))

	err := cmd.Wait()
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("mpv exited: %w", err)
	}
	return errors.New("mpv exited")
}
