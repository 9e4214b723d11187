// Package config holds the token server's configuration surface (spec §4.5,
// C8): the handful of values read once at process start and treated as
// immutable thereafter.
package config

import (
	"fmt"
	"time"

	"github.com/HaKr/token-server/internal/durationflag"
)

// Ranges mirror spec §4.5's table exactly.
var (
	PortRange = struct{ Min, Max int }{Min: 1, Max: 65535}

	TokenLifetimeRange = durationflag.Range{
		Min:     30 * time.Minute,
		Max:     96 * time.Hour,
		Default: 2 * time.Hour,
	}

	PurgeIntervalRange = durationflag.Range{
		Min:     time.Second,
		Max:     90 * time.Minute,
		Default: time.Minute,
	}
)

const DefaultPort = 3666

// Config is the immutable configuration read once at startup (spec §4.5).
type Config struct {
	Port             int
	TokenLifetime    time.Duration
	PurgeInterval    time.Duration
	DumpEnabled      bool
	ShutdownEnabled  bool
	LogLevel         string
	LogFormat        string
	LogFile          string
}

// Validate checks every field against spec §4.5's valid ranges. A
// violation here is a configuration error: per spec §7, it must be fatal
// and must happen "before accepting connections" — Validate is always
// called before any socket is bound.
func (c Config) Validate() error {
	if c.Port < PortRange.Min || c.Port > PortRange.Max {
		return fmt.Errorf("port %d out of range [%d, %d]", c.Port, PortRange.Min, PortRange.Max)
	}
	if err := TokenLifetimeRange.Validate(c.TokenLifetime); err != nil {
		return fmt.Errorf("token-lifetime %s: %w", durationflag.Format(c.TokenLifetime), err)
	}
	if err := PurgeIntervalRange.Validate(c.PurgeInterval); err != nil {
		return fmt.Errorf("purge-interval %s: %w", durationflag.Format(c.PurgeInterval), err)
	}
	return nil
}

// Default returns a Config with every field at spec §4.5's default.
func Default() Config {
	return Config{
		Port:          DefaultPort,
		TokenLifetime: TokenLifetimeRange.Default,
		PurgeInterval: PurgeIntervalRange.Default,
		DumpEnabled:   false,
		LogLevel:      "info",
		LogFormat:     "default",
	}
}
