package natskit

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const (
	DefaultURL           = nats.DefaultURL
	DefaultSubjectPrefix = "buskit"
	DefaultReplyTimeout  = 5 * time.Second
	DefaultMaxUnacked    = 100
	DefaultMaxAckPending = 3
)

// Config is the flat configuration surface consumed at construction. There
// is no other discovery mechanism.
type Config struct {
	// URL of the NATS server, including host, port and protocol.
	URL string `envconfig:"BUSKIT_URL" default:"nats://127.0.0.1:4222"`

	// SenderID identifies this broker instance on every envelope it
	// produces. Empty assigns a fresh id.
	SenderID string `envconfig:"BUSKIT_SENDER_ID"`

	// SubjectPrefix prefixes derived delivery subjects.
	SubjectPrefix string `envconfig:"BUSKIT_SUBJECT_PREFIX" default:"buskit"`

	// ReplyTimeout bounds request/reply waits when the request does not
	// carry its own timeout.
	ReplyTimeout time.Duration `envconfig:"BUSKIT_REPLY_TIMEOUT" default:"5s"`

	// MaxUnacked bounds unacknowledged deliveries across all subjects of
	// this broker instance.
	MaxUnacked int64 `envconfig:"BUSKIT_MAX_UNACKED" default:"100"`

	// MaxAckPending is the per-consumer server-side ack pending limit.
	MaxAckPending int `envconfig:"BUSKIT_MAX_ACK_PENDING" default:"3"`

	// Logger for broker internals. Nil disables logging.
	Logger *zerolog.Logger `ignored:"true"`

	// Metrics optionally registers broker metrics. Nil keeps them private.
	Metrics prometheus.Registerer `ignored:"true"`

	// Options are raw transport connection options (credentials, TLS,
	// reconnect behavior) passed through to the connect call.
	Options []nats.Option `ignored:"true"`
}

// ConfigFromEnv populates a Config from the environment.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) withDefaults() Config {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = DefaultSubjectPrefix
	}
	if c.ReplyTimeout <= 0 {
		c.ReplyTimeout = DefaultReplyTimeout
	}
	if c.MaxUnacked <= 0 {
		c.MaxUnacked = DefaultMaxUnacked
	}
	if c.MaxAckPending <= 0 {
		c.MaxAckPending = DefaultMaxAckPending
	}
	return c
}

func (c Config) logger() zerolog.Logger {
	if c.Logger == nil {
		return zerolog.Nop()
	}
	return *c.Logger
}
