// Package config loads the server settings from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"souls/internal/game/board"
	"souls/internal/lobby"
	"souls/internal/reliable"
)

// ============================================================================
// Defaults
// ============================================================================
const (
	defaultListenAddr    = ":8080"
	defaultServiceName   = "souls-session"
	defaultServicePort   = 8080
	defaultLogLevel      = "info"
	defaultSubjectPrefix = "souls"
	defaultSweepSchedule = "@every 1m"
)

// ============================================================================
// Config
// ============================================================================

type Config struct {
	ListenAddr  string
	ServiceName string
	ServicePort int

	LogLevel       string
	LogDevelopment bool

	CatalogPath      string
	ConsulAddr       string
	ConsulCatalogKey string

	NATSURL           string
	NATSSubjectPrefix string

	AckTimeout          time.Duration
	MaxDeliveryAttempts int
	BackoffFactor       float64
	MaxBackoff          time.Duration

	SoulsToWin     int
	StartingHand   int
	StartingCoins  int
	StartingHealth int
	MailboxSize    int
	EnqueueTimeout time.Duration

	SweepSchedule string
	RoomIdleTTL   time.Duration
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	d := reliable.DefaultPolicy()
	lc := lobby.DefaultConfig()

	cfg := &Config{
		ListenAddr:        getString("LISTEN_ADDR", defaultListenAddr),
		ServiceName:       getString("SERVICE_NAME", defaultServiceName),
		LogLevel:          getString("LOG_LEVEL", defaultLogLevel),
		CatalogPath:       os.Getenv("CARD_CATALOG_PATH"),
		ConsulAddr:        os.Getenv("CONSUL_HTTP_ADDR"),
		ConsulCatalogKey:  os.Getenv("CONSUL_CATALOG_KEY"),
		NATSURL:           os.Getenv("NATS_URL"),
		NATSSubjectPrefix: getString("NATS_SUBJECT_PREFIX", defaultSubjectPrefix),
		SweepSchedule:     getString("SWEEP_SCHEDULE", defaultSweepSchedule),
	}

	var errs []error
	cfg.ServicePort = getInt("SERVICE_PORT", defaultServicePort, &errs)
	cfg.LogDevelopment = getBool("LOG_DEVELOPMENT", false, &errs)
	cfg.AckTimeout = getDuration("ACK_TIMEOUT", d.AckTimeout, &errs)
	cfg.MaxDeliveryAttempts = getInt("MAX_DELIVERY_ATTEMPTS", d.MaxAttempts, &errs)
	cfg.BackoffFactor = getFloat("BACKOFF_FACTOR", d.BackoffFactor, &errs)
	cfg.MaxBackoff = getDuration("MAX_BACKOFF", d.MaxBackoff, &errs)
	cfg.SoulsToWin = getInt("SOULS_TO_WIN", lc.SoulsToWin, &errs)
	cfg.StartingHand = getInt("STARTING_HAND", lc.Board.HandSize, &errs)
	cfg.StartingCoins = getInt("STARTING_COINS", lc.Board.Coins, &errs)
	cfg.StartingHealth = getInt("STARTING_HEALTH", lc.Board.Health, &errs)
	cfg.MailboxSize = getInt("MAILBOX_SIZE", lc.MailboxSize, &errs)
	cfg.EnqueueTimeout = getDuration("ENQUEUE_TIMEOUT", 2*time.Second, &errs)
	cfg.RoomIdleTTL = getDuration("ROOM_IDLE_TTL", lc.IdleTTL, &errs)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	positive := map[string]time.Duration{
		"ACK_TIMEOUT":     c.AckTimeout,
		"MAX_BACKOFF":     c.MaxBackoff,
		"ENQUEUE_TIMEOUT": c.EnqueueTimeout,
		"ROOM_IDLE_TTL":   c.RoomIdleTTL,
	}
	for name, v := range positive {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, v))
		}
	}
	if c.MaxDeliveryAttempts < 1 {
		errs = append(errs, fmt.Errorf("MAX_DELIVERY_ATTEMPTS must be at least 1, got %d", c.MaxDeliveryAttempts))
	}
	if c.BackoffFactor < 1 {
		errs = append(errs, fmt.Errorf("BACKOFF_FACTOR must be at least 1, got %g", c.BackoffFactor))
	}
	if c.SoulsToWin < 1 {
		errs = append(errs, fmt.Errorf("SOULS_TO_WIN must be at least 1, got %d", c.SoulsToWin))
	}
	if c.MailboxSize < 1 {
		errs = append(errs, fmt.Errorf("MAILBOX_SIZE must be at least 1, got %d", c.MailboxSize))
	}
	if c.StartingHand < 0 || c.StartingCoins < 0 || c.StartingHealth < 0 {
		errs = append(errs, errors.New("starting hand, coins and health cannot be negative"))
	}
	if c.ServicePort < 1 || c.ServicePort > 65535 {
		errs = append(errs, fmt.Errorf("SERVICE_PORT out of range: %d", c.ServicePort))
	}
	return errors.Join(errs...)
}

func (c *Config) Policy() reliable.Policy {
	return reliable.Policy{
		AckTimeout:    c.AckTimeout,
		MaxAttempts:   c.MaxDeliveryAttempts,
		BackoffFactor: c.BackoffFactor,
		MaxBackoff:    c.MaxBackoff,
	}
}

func (c *Config) Board() board.Settings {
	s := board.DefaultSettings()
	s.HandSize = c.StartingHand
	s.Coins = c.StartingCoins
	s.Health = c.StartingHealth
	return s
}

func (c *Config) Lobby() lobby.Config {
	lc := lobby.DefaultConfig()
	lc.SoulsToWin = c.SoulsToWin
	lc.MailboxSize = c.MailboxSize
	lc.Board = c.Board()
	lc.IdleTTL = c.RoomIdleTTL
	return lc
}

// ============================================================================
// Environment helpers
// ============================================================================

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return n
}

func getFloat(key string, def float64, errs *[]error) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return f
}

func getBool(key string, def bool, errs *[]error) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return b
}

func getDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return d
}
