package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mikey-austin/moodplay/internal/moodplayd"
	"github.com/mikey-austin/moodplay/pkg/mp"
)

func testConfig() moodplayd.Config {
	cfg := moodplayd.Config{}
	cfg.LLM.APIKey = "secret-llm"
	cfg.LastFM.APIKey = "secret-fm"
	cfg.Player.MPV.Socket = filepath.Join(os.TempDir(), "moodplay-test.sock")
	return cfg
}

func TestApplyOverridesDefaults(t *testing.T) {
	cfg := testConfig()
	applyOverrides(&cfg, overrides{logLevel: "debug"})

	if cfg.Server.TopicBase != mp.BaseTopic {
		t.Fatalf("expected default topic base, got %q", cfg.Server.TopicBase)
	}
	if cfg.Server.LogLevel != "debug" {
		t.Fatalf("expected override")
	}
	if !cfg.Modules.Console.Enabled {
		t.Fatalf("console should be the fallback front end")
	}
	if nodeID(cfg) != "mp:pipeline:default" {
		t.Fatalf("unexpected node id %q", nodeID(cfg))
	}
}

func TestApplyOverridesEmbeddedBroker(t *testing.T) {
	cfg := testConfig()
	cfg.Modules.RequestBridge.Enabled = true
	cfg.Modules.EmbeddedMQTT.Enabled = true
	cfg.Modules.EmbeddedMQTT.Listen = "127.0.0.1:18830"
	applyOverrides(&cfg, overrides{identity: "den"})

	if cfg.Server.Broker != "mqtt://127.0.0.1:18830" {
		t.Fatalf("unexpected broker %q", cfg.Server.Broker)
	}
	if cfg.Modules.Console.Enabled {
		t.Fatalf("console should stay off when the bridge is enabled")
	}
	if nodeID(cfg) != "mp:pipeline:den" {
		t.Fatalf("unexpected node id %q", nodeID(cfg))
	}
}

func TestBuildModulesModuleOnlyFilter(t *testing.T) {
	cfg := testConfig()
	applyOverrides(&cfg, overrides{})

	built, err := buildDeps(cfg, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("buildDeps: %v", err)
	}
	if built.pipeline.Events != nil {
		t.Fatalf("events need a bus connection")
	}

	modules, err := buildModules(cfg, built, zap.NewNop(), "console", false)
	if err != nil {
		t.Fatalf("buildModules: %v", err)
	}
	if len(modules) != 1 || modules[0].Name != "console" || !modules[0].StopOnExit {
		t.Fatalf("unexpected modules %+v", modules)
	}

	if _, err := buildModules(cfg, built, zap.NewNop(), "request_bridge", false); err == nil {
		t.Fatalf("expected error for filtered module")
	}
}

func TestBuildModulesBridgeNeedsClient(t *testing.T) {
	cfg := testConfig()
	cfg.Modules.RequestBridge.Enabled = true
	applyOverrides(&cfg, overrides{broker: "mqtt://localhost:1883"})

	built, err := buildDeps(cfg, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("buildDeps: %v", err)
	}
	if _, err := buildModules(cfg, built, zap.NewNop(), "", false); err == nil {
		t.Fatalf("expected error without mqtt client")
	}
}

func TestBuildModulesSpawnsMPV(t *testing.T) {
	cfg := testConfig()
	applyOverrides(&cfg, overrides{})

	built, err := buildDeps(cfg, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("buildDeps: %v", err)
	}
	modules, err := buildModules(cfg, built, zap.NewNop(), "", false)
	if err != nil {
		t.Fatalf("buildModules: %v", err)
	}
	names := []string{}
	for _, m := range modules {
		names = append(names, m.Name)
	}
	if strings.Join(names, ",") != "renderer_mpv,console" {
		t.Fatalf("unexpected modules %v", names)
	}
}

func TestBuildModulesExternalMPV(t *testing.T) {
	cfg := testConfig()
	off := false
	cfg.Player.MPV.Spawn = &off
	applyOverrides(&cfg, overrides{})

	built, err := buildDeps(cfg, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("buildDeps: %v", err)
	}
	modules, err := buildModules(cfg, built, zap.NewNop(), "", false)
	if err != nil {
		t.Fatalf("buildModules: %v", err)
	}
	if len(modules) != 1 || modules[0].Name != "console" {
		t.Fatalf("unexpected modules %+v", modules)
	}
}

func TestBuildDepsRejectsBadPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.OnMalformed = "shrug"
	if _, err := buildDeps(cfg, nil, zap.NewNop()); err == nil {
		t.Fatalf("expected policy error")
	}
}

func TestSamplingOverrides(t *testing.T) {
	s := sampling(moodplayd.LLMConfig{Temperature: 0.2, MaxTokens: 256})
	if s.Temperature != 0.2 || s.MaxTokens != 256 {
		t.Fatalf("overrides not applied: %+v", s)
	}
	if s.TopK != 40 || s.TopP != 0.9 {
		t.Fatalf("defaults lost: %+v", s)
	}
}

func TestLoadConfigMissingDefault(t *testing.T) {
	t.Setenv(moodplayd.EnvLLMAPIKey, "env-llm")
	path := filepath.Join(t.TempDir(), "absent.toml")

	cfg, err := loadConfig(path, true)
	if err != nil {
		t.Fatalf("missing default config should not fail: %v", err)
	}
	if cfg.LLM.APIKey != "env-llm" {
		t.Fatalf("expected env key")
	}
	if _, err := loadConfig(path, false); err == nil {
		t.Fatalf("explicit missing config should fail")
	}
}

func TestEnvOnlyConfigValidates(t *testing.T) {
	runtime := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", runtime)
	t.Setenv(moodplayd.EnvLLMAPIKey, "env-llm")
	t.Setenv(moodplayd.EnvLastFMAPIKey, "env-fm")

	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.toml"), true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	applyOverrides(&cfg, overrides{})
	if err := cfg.Validate(); err != nil {
		t.Fatalf("env-only config should validate: %v", err)
	}
	if cfg.Player.MPV.Socket != filepath.Join(runtime, "moodplay", "mpv.sock") {
		t.Fatalf("unexpected socket %q", cfg.Player.MPV.Socket)
	}
	if got := strings.Join(enabledModules(cfg), ","); got != "renderer_mpv,console" {
		t.Fatalf("unexpected modules %s", got)
	}
}

func TestPrintResolvedConfigHidesKeys(t *testing.T) {
	cfg := testConfig()
	applyOverrides(&cfg, overrides{})
	var out bytes.Buffer
	printResolvedConfig(&out, cfg)
	if strings.Contains(out.String(), "secret") || !strings.Contains(out.String(), "llm_key_set=true") {
		t.Fatalf("unexpected output %q", out.String())
	}
}
