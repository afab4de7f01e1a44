package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mikey-austin/moodplay/internal/adapters/breaker"
	"github.com/mikey-austin/moodplay/internal/adapters/clock"
	"github.com/mikey-austin/moodplay/internal/adapters/idgen"
	"github.com/mikey-austin/moodplay/internal/adapters/lastfm"
	"github.com/mikey-austin/moodplay/internal/adapters/llm"
	"github.com/mikey-austin/moodplay/internal/adapters/mqttserver"
	"github.com/mikey-austin/moodplay/internal/adapters/youtube"
	"github.com/mikey-austin/moodplay/internal/core"
	"github.com/mikey-austin/moodplay/internal/modules/console"
	embeddedmqtt "github.com/mikey-austin/moodplay/internal/modules/embedded_mqtt"
	renderercore "github.com/mikey-austin/moodplay/internal/modules/renderer_core"
	rendererkodi "github.com/mikey-austin/moodplay/internal/modules/renderer_kodi"
	renderermpv "github.com/mikey-austin/moodplay/internal/modules/renderer_mpv"
	renderervlc "github.com/mikey-austin/moodplay/internal/modules/renderer_vlc"
	requestbridge "github.com/mikey-austin/moodplay/internal/modules/request_bridge"
	"github.com/mikey-austin/moodplay/internal/moodplayd"
	"github.com/mikey-austin/moodplay/internal/ports"
	"github.com/mikey-austin/moodplay/pkg/mp"
)

const defaultEmbeddedListen = "127.0.0.1:1883"

func main() {
	var (
		configPath  string
		broker      string
		identity    string
		topicBase   string
		logLevel    string
		logFormat   string
		logOutput   string
		logSource   bool
		logUTC      bool
		printConfig bool
		dryRun      bool
		moduleOnly  string
	)

	defaultConfig, err := moodplayd.DefaultConfigPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	flag.StringVar(&configPath, "config", defaultConfig, "config file path")
	flag.StringVar(&broker, "broker", "", "MQTT broker URL override")
	flag.StringVar(&identity, "identity", "", "server identity override")
	flag.StringVar(&topicBase, "topic-base", "", "topic base override")
	flag.StringVar(&logLevel, "log-level", "", "log level override")
	flag.StringVar(&logFormat, "log-format", "", "log format override (text|json)")
	flag.StringVar(&logOutput, "log-output", "", "log output override (stdout|stderr)")
	flag.BoolVar(&logSource, "log-source", false, "include source file in logs")
	flag.BoolVar(&logUTC, "log-utc", false, "use UTC timestamps in logs")
	flag.StringVar(&moduleOnly, "module", "", "limit to a single module")
	flag.BoolVar(&printConfig, "print-config", false, "print resolved config and exit")
	flag.BoolVar(&dryRun, "dry-run", false, "validate config and exit")
	flag.Parse()

	cfg, err := loadConfig(configPath, configPath == defaultConfig)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	applyOverrides(&cfg, overrides{
		broker:    broker,
		identity:  identity,
		topicBase: topicBase,
		logLevel:  logLevel,
		logFormat: logFormat,
		logOutput: logOutput,
		logSource: logSource,
		logUTC:    logUTC,
	})

	if printConfig {
		printResolvedConfig(os.Stdout, cfg)
		return
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(core.ExitUsage)
	}
	if dryRun {
		return
	}

	logger := moodplayd.NewLogger(moodplayd.LogConfig{
		Level:     cfg.Server.LogLevel,
		Format:    cfg.Server.LogFormat,
		Output:    cfg.Server.LogOutput,
		AddSource: cfg.Server.LogSource,
		UTC:       cfg.Server.LogUTC,
	})
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	skipEmbedded := false
	if moduleOnly != "embedded_mqtt" && cfg.Modules.EmbeddedMQTT.Enabled && cfg.Server.Broker == embeddedBrokerURL(cfg) {
		if err := startEmbeddedBroker(ctx, cfg, logger, cancel); err != nil {
			logger.Error("embedded mqtt failed", zap.Error(err))
			os.Exit(1)
		}
		skipEmbedded = true
	}

	logger.Info("moodplayd starting",
		zap.String("broker", cfg.Server.Broker),
		zap.String("identity", cfg.Server.Identity),
		zap.String("node_id", nodeID(cfg)),
		zap.String("topic_base", cfg.Server.TopicBase),
		zap.String("player", cfg.PlayerBackend()),
		zap.String("log_level", cfg.Server.LogLevel),
		zap.Strings("modules", enabledModules(cfg)),
	)

	var client *mqttserver.Client
	if needsBus(cfg, moduleOnly) {
		presence := mp.TopicPresence(cfg.Server.TopicBase, nodeID(cfg))
		client, err = mqttserver.NewClient(mqttserver.Options{
			BrokerURL:   cfg.Server.Broker,
			ClientID:    fmt.Sprintf("moodplayd-%d", time.Now().UnixNano()),
			Username:    cfg.Server.Auth.User,
			Password:    cfg.Server.Auth.Pass,
			TLSCA:       cfg.Server.TLS.CA,
			TLSCert:     cfg.Server.TLS.Cert,
			TLSKey:      cfg.Server.TLS.Key,
			Timeout:     2 * time.Second,
			Logger:      logger.With(zap.String("component", "mqtt")),
			Debug:       strings.EqualFold(cfg.Server.LogLevel, "debug"),
			WillTopic:   presence,
			WillPayload: []byte{},
		})
		if err != nil {
			logger.Error("mqtt connection failed", zap.Error(err))
			os.Exit(1)
		}
		defer client.Close()
	}

	built, err := buildDeps(cfg, client, logger)
	if err != nil {
		logger.Error("failed to build pipeline", zap.Error(err))
		os.Exit(1)
	}

	modules, err := buildModules(cfg, built, logger, moduleOnly, skipEmbedded)
	if err != nil {
		logger.Error("failed to build modules", zap.Error(err))
		os.Exit(1)
	}

	supervisor := moodplayd.Supervisor{Logger: logger}
	if err := supervisor.Run(ctx, modules); err != nil {
		logger.Error("supervisor error", zap.Error(err))
		os.Exit(1)
	}
}

type overrides struct {
	broker    string
	identity  string
	topicBase string
	logLevel  string
	logFormat string
	logOutput string
	logSource bool
	logUTC    bool
}

// loadConfig reads path. A missing default config is not an error: the
// daemon can run on environment keys alone.
func loadConfig(path string, isDefault bool) (moodplayd.Config, error) {
	cfg, err := moodplayd.LoadConfig(path)
	if err != nil {
		if isDefault && errors.Is(err, fs.ErrNotExist) {
			cfg = moodplayd.Config{}
			cfg.ApplyEnv(os.Getenv)
			cfg.ApplyDefaults(os.Getenv)
			return cfg, nil
		}
		return moodplayd.Config{}, err
	}
	return cfg, nil
}

func applyOverrides(cfg *moodplayd.Config, o overrides) {
	if o.broker != "" {
		cfg.Server.Broker = o.broker
	}
	if o.identity != "" {
		cfg.Server.Identity = o.identity
	}
	if o.topicBase != "" {
		cfg.Server.TopicBase = o.topicBase
	}
	if o.logLevel != "" {
		cfg.Server.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Server.LogFormat = o.logFormat
	}
	if o.logOutput != "" {
		cfg.Server.LogOutput = o.logOutput
	}
	if o.logSource {
		cfg.Server.LogSource = true
	}
	if o.logUTC {
		cfg.Server.LogUTC = true
	}
	if cfg.Server.TopicBase == "" {
		cfg.Server.TopicBase = mp.BaseTopic
	}
	if cfg.Server.Identity == "" {
		cfg.Server.Identity = "default"
	}
	if cfg.Server.Broker == "" && cfg.Modules.EmbeddedMQTT.Enabled {
		cfg.Server.Broker = embeddedBrokerURL(*cfg)
	}
	// Without any front end the daemon would have nothing to do, so fall
	// back to the interactive prompt.
	if !cfg.Modules.Console.Enabled && !cfg.Modules.RequestBridge.Enabled {
		cfg.Modules.Console.Enabled = true
	}
}

func nodeID(cfg moodplayd.Config) string {
	if cfg.Modules.RequestBridge.NodeID != "" {
		return cfg.Modules.RequestBridge.NodeID
	}
	return "mp:" + mp.KindPipeline + ":" + cfg.Server.Identity
}

func needsBus(cfg moodplayd.Config, moduleOnly string) bool {
	if !cfg.Modules.RequestBridge.Enabled {
		return false
	}
	return moduleOnly == "" || moduleOnly == "request_bridge"
}

type deps struct {
	pipeline *core.Pipeline
	queue    *renderercore.Queue
	client   *mqttserver.Client
}

func buildDeps(cfg moodplayd.Config, client *mqttserver.Client, logger *zap.Logger) (deps, error) {
	policy, err := core.ParsePolicy(cfg.Pipeline.OnServiceError, cfg.Pipeline.OnMalformed)
	if err != nil {
		return deps{}, err
	}
	metaSelector, err := core.NewSelector(cfg.LastFM.Selection, cfg.LastFM.Window)
	if err != nil {
		return deps{}, err
	}
	videoSelector, err := core.NewSelector(cfg.YouTube.Selection, cfg.YouTubeLimit())
	if err != nil {
		return deps{}, err
	}
	driver, err := buildDriver(cfg)
	if err != nil {
		return deps{}, err
	}

	breakerOpts := breaker.Options{Logger: logger.With(zap.String("component", "breaker"))}
	model := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Sampling:       sampling(cfg.LLM),
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	},
		llm.WithRetryMaxAttempts(cfg.LLM.RetryAttempts),
		llm.WithLogger(logger.With(zap.String("component", "llm"))),
		llm.WithBreaker(breakerOpts),
	)
	metadata := lastfm.NewClient(lastfm.Config{
		APIKey:         cfg.LastFM.APIKey,
		BaseURL:        cfg.LastFM.BaseURL,
		Limit:          cfg.LastFM.Limit,
		TimeoutSeconds: cfg.LastFM.TimeoutSeconds,
		RatePerSecond:  cfg.LastFM.RatePerSecond,
	},
		lastfm.WithLogger(logger.With(zap.String("component", "lastfm"))),
		lastfm.WithBreaker(breakerOpts),
	)
	videos := youtube.NewClient(youtube.Config{TimeoutSeconds: cfg.YouTube.TimeoutSeconds},
		youtube.WithLogger(logger.With(zap.String("component", "youtube"))),
		youtube.WithBreaker(breakerOpts),
	)

	queue := renderercore.NewQueue(driver, logger.With(zap.String("component", "queue")))

	var events ports.EventPublisher
	if client != nil {
		events = mqttserver.EventPublisher{Client: client, TopicBase: cfg.Server.TopicBase, NodeID: nodeID(cfg)}
	}

	pipeline := &core.Pipeline{
		Model:        model,
		Extractor:    core.BracketExtractor{},
		Resolver:     core.MetadataResolver{Search: metadata, Selector: metaSelector},
		Locator:      core.ResourceLocator{Search: videos, Selector: videoSelector},
		Queue:        queue,
		Events:       events,
		Conversation: core.NewConversation(cfg.LLM.SystemPrompt),
		IDGen:        idgen.Generator{},
		Clock:        clock.Clock{},
		Policy:       policy,
		Log:          logger.With(zap.String("component", "pipeline")),
	}
	return deps{pipeline: pipeline, queue: queue, client: client}, nil
}

func sampling(cfg moodplayd.LLMConfig) llm.Sampling {
	s := llm.DefaultSampling()
	if cfg.RepetitionPenalty > 0 {
		s.RepetitionPenalty = cfg.RepetitionPenalty
	}
	if cfg.Temperature > 0 {
		s.Temperature = cfg.Temperature
	}
	if cfg.TopP > 0 {
		s.TopP = cfg.TopP
	}
	if cfg.TopK > 0 {
		s.TopK = cfg.TopK
	}
	if cfg.MaxTokens > 0 {
		s.MaxTokens = cfg.MaxTokens
	}
	return s
}

func buildDriver(cfg moodplayd.Config) (renderercore.Driver, error) {
	switch cfg.PlayerBackend() {
	case "mpv":
		driver, err := renderermpv.NewDriver(cfg.Player.MPV.Socket, time.Duration(cfg.Player.MPV.TimeoutMS)*time.Millisecond)
		if err != nil {
			return nil, err
		}
		return driver, nil
	case "vlc":
		vlc := cfg.Player.VLC
		driver, err := renderervlc.NewDriver(vlc.BaseURL, vlc.Username, vlc.Password, time.Duration(vlc.TimeoutMS)*time.Millisecond)
		if err != nil {
			return nil, err
		}
		return driver, nil
	case "kodi":
		kodi := cfg.Player.Kodi
		playlist := rendererkodi.VideoPlaylist
		if kodi.PlaylistID != nil {
			playlist = *kodi.PlaylistID
		}
		driver, err := rendererkodi.NewDriver(kodi.BaseURL, kodi.Username, kodi.Password, playlist, time.Duration(kodi.TimeoutMS)*time.Millisecond)
		if err != nil {
			return nil, err
		}
		return driver, nil
	default:
		return nil, fmt.Errorf("unknown player backend %q", cfg.Player.Backend)
	}
}

func buildModules(cfg moodplayd.Config, d deps, logger *zap.Logger, moduleOnly string, skipEmbedded bool) ([]moodplayd.ModuleRunner, error) {
	wanted := func(name string) bool { return moduleOnly == "" || moduleOnly == name }
	modules := []moodplayd.ModuleRunner{}

	if cfg.Modules.EmbeddedMQTT.Enabled && !skipEmbedded && wanted("embedded_mqtt") {
		mod, err := embeddedmqtt.NewModule(logger.With(zap.String("module", "embedded_mqtt")), embeddedConfig(cfg))
		if err != nil {
			return nil, err
		}
		modules = append(modules, moodplayd.ModuleRunner{Name: "embedded_mqtt", Run: mod.Run})
	}

	if cfg.PlayerBackend() == "mpv" && cfg.Player.MPV.SpawnEnabled() && wanted("renderer_mpv") {
		mpv := cfg.Player.MPV
		mod, err := renderermpv.NewModule(logger.With(zap.String("module", "renderer_mpv")), renderermpv.Config{
			Binary:    mpv.Binary,
			Socket:    mpv.Socket,
			Video:     mpv.Video,
			ExtraArgs: mpv.ExtraArgs,
		})
		if err != nil {
			return nil, err
		}
		modules = append(modules, moodplayd.ModuleRunner{Name: "renderer_mpv", Run: mod.Run})
	}

	if cfg.Modules.RequestBridge.Enabled && wanted("request_bridge") {
		if d.client == nil {
			return nil, errors.New("request_bridge requires an mqtt connection")
		}
		bridgeCfg := cfg.Modules.RequestBridge
		mod, err := requestbridge.NewModule(logger.With(zap.String("module", "request_bridge")), d.client, d.pipeline, d.queue, requestbridge.Config{
			NodeID:     nodeID(cfg),
			TopicBase:  cfg.Server.TopicBase,
			Name:       bridgeCfg.Name,
			AskTimeout: bridgeCfg.AskTimeout(),
		})
		if err != nil {
			return nil, err
		}
		modules = append(modules, moodplayd.ModuleRunner{Name: "request_bridge", Run: mod.Run})
	}

	if cfg.Modules.Console.Enabled && wanted("console") {
		consoleCfg := cfg.Modules.Console
		mod := console.NewModule(logger.With(zap.String("module", "console")), d.pipeline, d.queue, console.Config{
			Prompt:    consoleCfg.Prompt,
			ShowQueue: consoleCfg.ShowQueueEnabled(),
		})
		modules = append(modules, moodplayd.ModuleRunner{Name: "console", Run: mod.Run, StopOnExit: true})
	}

	if moduleOnly != "" && len(modules) == 0 {
		return nil, errors.New("no modules enabled")
	}
	return modules, nil
}

func enabledModules(cfg moodplayd.Config) []string {
	out := []string{}
	if cfg.Modules.EmbeddedMQTT.Enabled {
		out = append(out, "embedded_mqtt")
	}
	if cfg.PlayerBackend() == "mpv" && cfg.Player.MPV.SpawnEnabled() {
		out = append(out, "renderer_mpv")
	}
	if cfg.Modules.RequestBridge.Enabled {
		out = append(out, "request_bridge")
	}
	if cfg.Modules.Console.Enabled {
		out = append(out, "console")
	}
	return out
}

func printResolvedConfig(out io.Writer, cfg moodplayd.Config) {
	fmt.Fprintf(out,
		"broker=%s identity=%s node_id=%s topic_base=%s log_level=%s log_format=%s log_output=%s player=%s llm_model=%s llm_key_set=%t lastfm_key_set=%t on_service_error=%s on_malformed=%s modules=%v\n",
		cfg.Server.Broker,
		cfg.Server.Identity,
		nodeID(cfg),
		cfg.Server.TopicBase,
		cfg.Server.LogLevel,
		cfg.Server.LogFormat,
		cfg.Server.LogOutput,
		cfg.PlayerBackend(),
		cfg.LLM.Model,
		cfg.LLM.APIKey != "",
		cfg.LastFM.APIKey != "",
		cfg.Pipeline.OnServiceError,
		cfg.Pipeline.OnMalformed,
		enabledModules(cfg),
	)
}

func embeddedConfig(cfg moodplayd.Config) embeddedmqtt.Config {
	e := cfg.Modules.EmbeddedMQTT
	return embeddedmqtt.Config{
		Listen:         e.Listen,
		AllowAnonymous: e.AllowAnonymous,
		Username:       e.Username,
		Password:       e.Password,
		TopicBase:      cfg.Server.TopicBase,
		TLSCA:          e.TLSCA,
		TLSCert:        e.TLSCert,
		TLSKey:         e.TLSKey,
	}
}

func embeddedListen(cfg moodplayd.Config) string {
	if cfg.Modules.EmbeddedMQTT.Listen == "" {
		return defaultEmbeddedListen
	}
	return cfg.Modules.EmbeddedMQTT.Listen
}

func embeddedBrokerURL(cfg moodplayd.Config) string {
	return embeddedmqtt.BrokerURL(embeddedListen(cfg), embeddedConfig(cfg).TLSEnabled())
}

// startEmbeddedBroker runs the broker ahead of the supervisor so the bus
// client can connect to it.
func startEmbeddedBroker(ctx context.Context, cfg moodplayd.Config, logger *zap.Logger, cancel context.CancelFunc) error {
	mod, err := embeddedmqtt.NewModule(logger.With(zap.String("module", "embedded_mqtt")), embeddedConfig(cfg))
	if err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- mod.Run(ctx)
	}()
	go func() {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("embedded mqtt exited", zap.Error(err))
			cancel()
		}
	}()

	return waitForListen(embeddedListen(cfg), 3*time.Second)
}

func waitForListen(listen string, timeout time.Duration) error {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return err
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	addr := net.JoinHostPort(host, port)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("embedded mqtt not ready at %s", addr)
}
