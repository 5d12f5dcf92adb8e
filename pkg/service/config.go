package service

import (
	"time"

	"github.com/fr33mang/helki-go/pkg/connection"
	"github.com/fr33mang/helki-go/pkg/log"
)

const (
	// DefaultPollTimeout bounds one long-poll cycle. The cloud holds
	// polls open for roughly 25s, so 30s distinguishes a held-open
	// poll from a dead one.
	DefaultPollTimeout = 30 * time.Second

	// DefaultBootstrapTimeout bounds the wait for the initial node
	// list during Start before the REST bootstrap takes over.
	DefaultBootstrapTimeout = 10 * time.Second

	// DefaultKeepaliveEvery is the number of poll cycles between
	// unsolicited full-snapshot re-requests.
	DefaultKeepaliveEvery = 300

	// DefaultFailureThreshold is the number of consecutive connect
	// failures that triggers one REST refresh.
	DefaultFailureThreshold = 10

	// DefaultCooldown is the pause after a mid-session break before
	// reconnecting.
	DefaultCooldown = 1 * time.Second
)

// Config tunes the coordinator. The zero value is not usable; start
// from DefaultConfig.
type Config struct {
	// PollTimeout bounds one long-poll cycle.
	PollTimeout time.Duration

	// BootstrapTimeout bounds the initial wait for the node list.
	BootstrapTimeout time.Duration

	// IdleWindow is the idle watchdog window: the longest the session
	// may go without receiving any frame at all.
	IdleWindow time.Duration

	// StaleWindow is the staleness watchdog window: the longest the
	// session may go without receiving a data event.
	StaleWindow time.Duration

	// KeepaliveEvery re-requests the full snapshot every this many
	// poll cycles. Zero disables keepalive re-requests.
	KeepaliveEvery int

	// FailureThreshold is the consecutive connect-failure count that
	// triggers a REST refresh. Each crossing triggers exactly one.
	FailureThreshold int

	// Cooldown is the pause before reconnecting after a mid-session
	// break.
	Cooldown time.Duration

	// Backoff configures the reconnect backoff.
	Backoff connection.BackoffConfig

	// Logger receives protocol events. Nil disables logging.
	Logger log.Logger
}

// DefaultConfig returns the empirically tuned defaults for the Helki
// cloud.
func DefaultConfig() Config {
	return Config{
		PollTimeout:      DefaultPollTimeout,
		BootstrapTimeout: DefaultBootstrapTimeout,
		IdleWindow:       connection.DefaultIdleWindow,
		StaleWindow:      connection.DefaultStaleWindow,
		KeepaliveEvery:   DefaultKeepaliveEvery,
		FailureThreshold: DefaultFailureThreshold,
		Cooldown:         DefaultCooldown,
		Backoff: connection.BackoffConfig{
			Initial:    connection.InitialBackoff,
			Max:        connection.MaxBackoff,
			Multiplier: connection.BackoffMultiplier,
			Jitter:     connection.JitterFactor,
		},
	}
}

// withDefaults fills zero-valued fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.PollTimeout == 0 {
		c.PollTimeout = def.PollTimeout
	}
	if c.BootstrapTimeout == 0 {
		c.BootstrapTimeout = def.BootstrapTimeout
	}
	if c.IdleWindow == 0 {
		c.IdleWindow = def.IdleWindow
	}
	if c.StaleWindow == 0 {
		c.StaleWindow = def.StaleWindow
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.Cooldown == 0 {
		c.Cooldown = def.Cooldown
	}
	if c.Backoff == (connection.BackoffConfig{}) {
		c.Backoff = def.Backoff
	}
	if c.Logger == nil {
		c.Logger = log.NoopLogger{}
	}
	return c
}
