package core

// Config is runtime configuration for the CLI.
type Config struct {
	Broker    string
	Identity  string
	TopicBase string
	// Node is the daemon node ID commands are sent to.
	Node string
}
