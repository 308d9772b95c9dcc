package server

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"ipchat/internal/relay"
)

// Config holds all server settings. Values come from IPCHAT_-prefixed
// environment variables, with the unprefixed spellings (PORT,
// ALLOWED_ORIGINS, ...) accepted as fallbacks so platform-injected variables
// work unchanged.
type Config struct {
	Port             string        `envconfig:"PORT" default:"8080"`
	AllowedOrigins   []string      `envconfig:"ALLOWED_ORIGINS" default:"*"`
	ServerName       string        `envconfig:"SERVER_NAME"`
	Echo             bool          `envconfig:"ECHO" default:"true"`
	MaxMessageBytes  int           `envconfig:"MAX_MESSAGE_BYTES" default:"4096"`
	MaxNameLength    int           `envconfig:"MAX_NAME_LENGTH" default:"20"`
	MaxQueueDepth    int           `envconfig:"MAX_QUEUE_DEPTH" default:"256"`
	OverflowPolicy   string        `envconfig:"OVERFLOW_POLICY" default:"drop-oldest"`
	HandshakeTimeout time.Duration `envconfig:"HANDSHAKE_TIMEOUT" default:"10s"`
	WriteTimeout     time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s"`
	HistoryLimit     int           `envconfig:"HISTORY_LIMIT" default:"100"`
	HistoryReplay    int           `envconfig:"HISTORY_REPLAY" default:"20"`
	RateLimitBurst   int           `envconfig:"RATE_LIMIT_BURST" default:"5"`
	RateLimitRefill  time.Duration `envconfig:"RATE_LIMIT_REFILL" default:"1s"`
	LogFile          string        `envconfig:"LOG_FILE"`
	DevLog           bool          `envconfig:"DEV_LOG" default:"false"`
}

// Load reads the configuration from the environment. The server identity
// falls back to the hosting platform's external hostname when set, matching
// the original deployment target.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("ipchat", &cfg); err != nil {
		return Config{}, fmt.Errorf("loading config from environment: %w", err)
	}

	if cfg.ServerName == "" {
		cfg.ServerName = os.Getenv("RENDER_EXTERNAL_HOSTNAME")
	}

	return cfg, nil
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// RelayOptions maps the config onto the relay core's options. Out-of-range
// values are corrected by the relay's own sanitizer.
func (c Config) RelayOptions() relay.Options {
	return relay.Options{
		Echo:                    c.Echo,
		MaxQueueDepth:           c.MaxQueueDepth,
		OverflowPolicy:          relay.OverflowPolicy(c.OverflowPolicy),
		MaxMessageBytes:         c.MaxMessageBytes,
		MaxNameLength:           c.MaxNameLength,
		HandshakeTimeout:        c.HandshakeTimeout,
		WriteTimeout:            c.WriteTimeout,
		HistoryLimit:            c.HistoryLimit,
		HistoryReplay:           c.HistoryReplay,
		RateLimitBurst:          c.RateLimitBurst,
		RateLimitRefillInterval: c.RateLimitRefill,
		ServerName:              c.ServerName,
	}
}
