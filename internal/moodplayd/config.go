package moodplayd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/mikey-austin/moodplay/internal/core"
)

// Environment variables consulted when the file leaves a key empty.
const (
	EnvLLMAPIKey    = "AWANLLM_API_KEY"
	EnvLastFMAPIKey = "LASTFM_API_KEY"
)

// Config is the top-level configuration for moodplayd.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	LLM      LLMConfig      `toml:"llm"`
	LastFM   LastFMConfig   `toml:"lastfm"`
	YouTube  YouTubeConfig  `toml:"youtube"`
	Player   PlayerConfig   `toml:"player"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Modules  ModulesConfig  `toml:"modules"`
}

// ServerConfig defines shared server settings.
type ServerConfig struct {
	Broker    string     `toml:"broker"`
	Identity  string     `toml:"identity"`
	NodeID    string     `toml:"node_id"`
	TopicBase string     `toml:"topic_base"`
	LogLevel  string     `toml:"log_level"`
	LogFormat string     `toml:"log_format"`
	LogOutput string     `toml:"log_output"`
	LogUTC    bool       `toml:"log_utc"`
	LogSource bool       `toml:"log_source"`
	TLS       TLSConfig  `toml:"tls"`
	Auth      AuthConfig `toml:"auth"`
}

// TLSConfig holds TLS paths for MQTT.
type TLSConfig struct {
	CA   string `toml:"ca"`
	Cert string `toml:"cert"`
	Key  string `toml:"key"`
}

// AuthConfig holds MQTT auth credentials.
type AuthConfig struct {
	User string `toml:"user"`
	Pass string `toml:"pass"`
}

// LLMConfig configures the chat model.
type LLMConfig struct {
	APIKey            string  `toml:"api_key"`
	BaseURL           string  `toml:"base_url"`
	Model             string  `toml:"model"`
	SystemPrompt      string  `toml:"system_prompt"`
	RepetitionPenalty float64 `toml:"repetition_penalty"`
	Temperature       float64 `toml:"temperature"`
	TopP              float64 `toml:"top_p"`
	TopK              int     `toml:"top_k"`
	MaxTokens         int     `toml:"max_tokens"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RetryAttempts     int     `toml:"retry_attempts"`
}

// LastFMConfig configures the metadata search.
type LastFMConfig struct {
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Limit          int     `toml:"limit"`
	Selection      string  `toml:"selection"`
	Window         int     `toml:"window"`
	RatePerSecond  float64 `toml:"rate"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// YouTubeConfig configures the video search.
type YouTubeConfig struct {
	Selection      string `toml:"selection"`
	MaxResults     int    `toml:"max_results"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// PlayerConfig selects the playback backend.
type PlayerConfig struct {
	Backend string     `toml:"backend"`
	MPV     MPVConfig  `toml:"mpv"`
	VLC     VLCConfig  `toml:"vlc"`
	Kodi    KodiConfig `toml:"kodi"`
}

// MPVConfig configures mpv JSON IPC. Unless spawn is false the daemon runs
// its own mpv on the socket.
type MPVConfig struct {
	Socket    string   `toml:"ipc_socket"`
	Spawn     *bool    `toml:"spawn"`
	Binary    string   `toml:"binary"`
	Video     bool     `toml:"video"`
	ExtraArgs []string `toml:"extra_args"`
	TimeoutMS int64    `toml:"timeout_ms"`
}

// VLCConfig configures the VLC HTTP interface.
type VLCConfig struct {
	BaseURL   string `toml:"base_url"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	TimeoutMS int64  `toml:"timeout_ms"`
}

// KodiConfig configures Kodi JSON-RPC.
type KodiConfig struct {
	BaseURL  string `toml:"base_url"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	// PlaylistID defaults to the video playlist used by the YouTube add-on.
	PlaylistID *int  `toml:"playlist_id"`
	TimeoutMS  int64 `toml:"timeout_ms"`
}

// PipelineConfig holds the per-turn failure policies.
type PipelineConfig struct {
	OnServiceError string `toml:"on_service_error"`
	OnMalformed    string `toml:"on_malformed"`
}

// ModulesConfig holds module configurations.
type ModulesConfig struct {
	Console       ConsoleConfig       `toml:"console"`
	RequestBridge RequestBridgeConfig `toml:"request_bridge"`
	EmbeddedMQTT  EmbeddedMQTTConfig  `toml:"embedded_mqtt"`
}

// ConsoleConfig configures the stdin prompt loop.
type ConsoleConfig struct {
	Enabled   bool   `toml:"enabled"`
	Prompt    string `toml:"prompt"`
	ShowQueue *bool  `toml:"show_queue"`
}

// RequestBridgeConfig configures the MQTT request bridge.
type RequestBridgeConfig struct {
	Enabled          bool   `toml:"enabled"`
	NodeID           string `toml:"node_id"`
	Name             string `toml:"name"`
	AskTimeoutSecond int    `toml:"ask_timeout_seconds"`
}

// EmbeddedMQTTConfig configures the embedded MQTT broker.
type EmbeddedMQTTConfig struct {
	Enabled        bool   `toml:"enabled"`
	Listen         string `toml:"listen"`
	AllowAnonymous bool   `toml:"allow_anonymous"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	TLSCA          string `toml:"tls_ca"`
	TLSCert        string `toml:"tls_cert"`
	TLSKey         string `toml:"tls_key"`
}

// LoadConfig loads a config file from path and fills API keys from the
// environment.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Config{}, err
	}
	if info.IsDir() {
		return Config{}, errors.New("config path is a directory")
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	cfg.ApplyEnv(os.Getenv)
	cfg.ApplyDefaults(os.Getenv)
	return cfg, nil
}

// ApplyEnv fills empty API keys using getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = getenv(EnvLLMAPIKey)
	}
	if c.LastFM.APIKey == "" {
		c.LastFM.APIKey = getenv(EnvLastFMAPIKey)
	}
}

// ApplyDefaults fills settings that depend on the environment.
func (c *Config) ApplyDefaults(getenv func(string) string) {
	if c.PlayerBackend() == "mpv" && strings.TrimSpace(c.Player.MPV.Socket) == "" {
		c.Player.MPV.Socket = DefaultMPVSocket(getenv)
	}
}

// DefaultMPVSocket is $XDG_RUNTIME_DIR/moodplay/mpv.sock, or a per-user file in
// the temp dir when no runtime dir is set.
func DefaultMPVSocket(getenv func(string) string) string {
	if dir := getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "moodplay", "mpv.sock")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("moodplay-%d", os.Getuid()), "mpv.sock")
}

// Validate reports settings the daemon cannot start with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		errs = append(errs, fmt.Errorf("llm.api_key is required (or set %s)", EnvLLMAPIKey))
	}
	if strings.TrimSpace(c.LastFM.APIKey) == "" {
		errs = append(errs, fmt.Errorf("lastfm.api_key is required (or set %s)", EnvLastFMAPIKey))
	}
	if _, err := core.ParsePolicy(c.Pipeline.OnServiceError, c.Pipeline.OnMalformed); err != nil {
		errs = append(errs, err)
	}
	if _, err := core.NewSelector(c.LastFM.Selection, c.LastFM.Window); err != nil {
		errs = append(errs, fmt.Errorf("lastfm.selection: %w", err))
	}
	if _, err := core.NewSelector(c.YouTube.Selection, c.YouTube.MaxResults); err != nil {
		errs = append(errs, fmt.Errorf("youtube.selection: %w", err))
	}
	switch c.PlayerBackend() {
	case "mpv":
		if strings.TrimSpace(c.Player.MPV.Socket) == "" {
			errs = append(errs, errors.New("player.mpv.ipc_socket is required"))
		}
	case "vlc":
		if strings.TrimSpace(c.Player.VLC.BaseURL) == "" {
			errs = append(errs, errors.New("player.vlc.base_url is required"))
		}
	case "kodi":
		if strings.TrimSpace(c.Player.Kodi.BaseURL) == "" {
			errs = append(errs, errors.New("player.kodi.base_url is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown player.backend %q", c.Player.Backend))
	}
	if c.Modules.RequestBridge.Enabled && c.Server.Broker == "" && !c.Modules.EmbeddedMQTT.Enabled {
		errs = append(errs, errors.New("request_bridge requires server.broker or embedded_mqtt"))
	}
	return errors.Join(errs...)
}

// PlayerBackend returns the normalized backend name, mpv by default.
func (c Config) PlayerBackend() string {
	backend := strings.ToLower(strings.TrimSpace(c.Player.Backend))
	if backend == "" {
		return "mpv"
	}
	return backend
}

// YouTubeLimit is the number of video results requested. The first-result
// strategy only ever looks at one.
func (c Config) YouTubeLimit() int {
	switch strings.ToLower(strings.TrimSpace(c.YouTube.Selection)) {
	case "", "first":
		return 1
	}
	if c.YouTube.MaxResults <= 0 {
		return 5
	}
	return c.YouTube.MaxResults
}

// SpawnEnabled reports whether the daemon owns the mpv process.
func (c MPVConfig) SpawnEnabled() bool {
	return c.Spawn == nil || *c.Spawn
}

// ShowQueueEnabled reports whether the console prints the queue after each turn.
func (c ConsoleConfig) ShowQueueEnabled() bool {
	return c.ShowQueue == nil || *c.ShowQueue
}

// AskTimeout returns the bridge ask timeout, zero for the module default.
func (c RequestBridgeConfig) AskTimeout() time.Duration {
	return time.Duration(c.AskTimeoutSecond) * time.Second
}

// DefaultConfigPath returns the default config location.
func DefaultConfigPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "moodplay", "moodplayd.toml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "moodplay", "moodplayd.toml"), nil
}
