package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mikey-austin/moodplay/internal/adapters/clock"
	"github.com/mikey-austin/moodplay/internal/adapters/config"
	"github.com/mikey-austin/moodplay/internal/adapters/idgen"
	"github.com/mikey-austin/moodplay/internal/adapters/mqtt"
	"github.com/mikey-austin/moodplay/internal/adapters/output"
	"github.com/mikey-austin/moodplay/internal/core"
	"github.com/mikey-austin/moodplay/pkg/mp"
)

// defaultTimeout covers a model round trip plus one lookup per item.
const defaultTimeout = 2 * time.Minute

type app struct {
	service core.Service
	events  eventSource
	printer output.Printer
	json    bool
	timeout time.Duration
	close   func()
}

type eventSource interface {
	WatchEvents(ctx context.Context, nodeID string) (<-chan mp.Event, error)
}

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		os.Exit(core.ExitCode(err))
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "moodplay",
		Short:         "Ask for music in plain language and queue it",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	var (
		broker    string
		topicBase string
		identity  string
		node      string
		timeout   time.Duration
		jsonOut   bool
		tlsCA     string
		tlsCert   string
		tlsKey    string
		userOpt   string
		passOpt   string
	)

	root.PersistentFlags().StringVarP(&broker, "broker", "b", "", "MQTT broker URL")
	root.PersistentFlags().StringVar(&topicBase, "topic-base", mp.BaseTopic, "MQTT topic base")
	root.PersistentFlags().StringVarP(&identity, "identity", "i", "", "controller identity")
	root.PersistentFlags().StringVarP(&node, "node", "n", "", "daemon node id (default: the only one online)")
	root.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 0, "command timeout")
	root.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output json")
	root.PersistentFlags().StringVar(&tlsCA, "tls-ca", "", "TLS CA path")
	root.PersistentFlags().StringVar(&tlsCert, "tls-cert", "", "TLS cert path")
	root.PersistentFlags().StringVar(&tlsKey, "tls-key", "", "TLS key path")
	root.PersistentFlags().StringVar(&userOpt, "user", "", "MQTT username")
	root.PersistentFlags().StringVar(&passOpt, "pass", "", "MQTT password")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		identity = defaultIdentity(identity, cfg.Identity)
		broker = firstSet(broker, cfg.Broker)
		node = firstSet(node, cfg.Node)
		userOpt = firstSet(userOpt, cfg.Username)
		passOpt = firstSet(passOpt, cfg.Password)
		tlsCA = firstSet(tlsCA, cfg.TLSCA)
		tlsCert = firstSet(tlsCert, cfg.TLSCert)
		tlsKey = firstSet(tlsKey, cfg.TLSKey)
		if topicBase == mp.BaseTopic && cfg.TopicBase != "" {
			topicBase = cfg.TopicBase
		}
		timeout = resolveTimeout(timeout, cfg.Timeout.Duration)
		if broker == "" {
			return &core.CLIError{Code: core.ExitUsage, Msg: "broker is required (set --broker or config)"}
		}

		clientID := fmt.Sprintf("moodplay-%d", time.Now().UnixNano())
		mqttClient, err := mqtt.NewClient(mqtt.Options{
			BrokerURL: broker,
			ClientID:  clientID,
			Username:  userOpt,
			Password:  passOpt,
			TLSCA:     tlsCA,
			TLSCert:   tlsCert,
			TLSKey:    tlsKey,
			TopicBase: topicBase,
			Timeout:   timeout,
		})
		if err != nil {
			return core.WrapError(core.ExitUnavailable, "connect to broker", err)
		}

		service := core.Service{
			Broker: mqttClient,
			Clock:  clock.Clock{},
			IDGen:  idgen.Generator{},
			Config: core.Config{
				Broker:    broker,
				Identity:  identity,
				TopicBase: topicBase,
				Node:      node,
			},
		}

		var printer output.Printer
		if jsonOut {
			printer = output.JSONPrinter{Out: cmd.OutOrStdout()}
		} else {
			printer = output.HumanPrinter{Out: cmd.OutOrStdout()}
		}

		cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, &app{
			service: service,
			events:  mqttClient,
			printer: printer,
			json:    jsonOut,
			timeout: timeout,
			close:   mqttClient.Close,
		}))
		return nil
	}
	root.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if app := fromContext(cmd); app != nil && app.close != nil {
			app.close()
		}
	}

	root.AddCommand(askCommand())
	root.AddCommand(chatCommand())
	root.AddCommand(historyCommand())
	root.AddCommand(queueCommand())
	root.AddCommand(resolveCommand())
	return root
}

type appKey struct{}

func fromContext(cmd *cobra.Command) *app {
	val := cmd.Context().Value(appKey{})
	if val == nil {
		return nil
	}
	return val.(*app)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, timeout)
}

func resolveTimeout(flagVal time.Duration, cfgVal time.Duration) time.Duration {
	if flagVal > 0 {
		return flagVal
	}
	if cfgVal > 0 {
		return cfgVal
	}
	return defaultTimeout
}

func firstSet(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func defaultIdentity(flagVal string, cfgVal string) string {
	if flagVal != "" {
		return flagVal
	}
	if cfgVal != "" {
		return cfgVal
	}
	usr, _ := user.Current()
	host, _ := os.Hostname()
	if usr != nil && host != "" {
		return fmt.Sprintf("mp:controller:%s@%s", usr.Username, host)
	}
	if host != "" {
		return "mp:controller:" + host
	}
	return "mp:controller:unknown"
}

// promptFromArgs joins args into one prompt; "-" or no args reads stdin.
func promptFromArgs(args []string, stdin io.Reader) (string, error) {
	if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", err
		}
		args = []string{string(data)}
	}
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" {
		return "", errors.New("prompt required")
	}
	return prompt, nil
}
