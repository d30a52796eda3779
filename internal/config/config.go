// Package config loads the engine's tuning knobs and keeps them live:
// Config is loaded once via spf13/viper (the config-loading library used
// throughout the nabbar-golib example pack's config/ tree, layered here
// over YAML plus environment variable overrides) and republished through a
// Watcher built on fsnotify, grounded on the teacher's
// internal/runtime/vfs/watch_fsnotify.go event-channel shape. Every reload
// swaps an atomic.Pointer[Config] rather than mutating fields in place, the
// same sync/atomic-heavy style internal/runtime/asyncio uses for its
// shared mutable state, so a reader holding one snapshot never observes a
// config change underneath it. Nothing in this package builds or updates an
// engine.Context: a Context takes its settings from engine.Options, copied
// once in engine.NewContext.
package config

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spf13/viper"

	"github.com/pubnub/pntx/internal/proxy"
	"github.com/pubnub/pntx/internal/version"
)

// Config is one immutable snapshot of engine tuning: keep-alive policy, a
// per-transaction deadline, proxy settings, gzip opt-in, and the
// origin/base URL. It is not passed to engine.Context, which is configured
// through engine.Options instead.
type Config struct {
	Origin  string
	BufMax  int
	Timeout time.Duration

	KeepAliveEnabled bool
	KeepAliveMax     int
	KeepAliveTimeout time.Duration

	AcceptGzip bool

	Proxy proxy.State

	// MinEngineVersion, if set, is a semver constraint (e.g. ">= 1.0.0")
	// the running engine build must satisfy for this Config to be
	// accepted (spec.md §4.8).
	MinEngineVersion string
}

func defaults() Config {
	return Config{
		BufMax:           8192,
		Timeout:          30 * time.Second,
		KeepAliveEnabled: true,
		KeepAliveMax:     1000,
		KeepAliveTimeout: 5 * time.Minute,
	}
}

// Load reads path (YAML) through viper, layering PNTX_-prefixed environment
// variables over it, and validates the result's MinEngineVersion
// constraint against the running build (spec.md §4.8: "reject a loaded
// Config whose MinEngineVersion constraint the running engine does not
// satisfy").
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("PNTX")
	v.AutomaticEnv()

	d := defaults()
	v.SetDefault("origin", d.Origin)
	v.SetDefault("buf_max", d.BufMax)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("keep_alive.enabled", d.KeepAliveEnabled)
	v.SetDefault("keep_alive.max", d.KeepAliveMax)
	v.SetDefault("keep_alive.timeout", d.KeepAliveTimeout)
	v.SetDefault("accept_gzip", d.AcceptGzip)
	v.SetDefault("proxy.type", int(proxy.None))
	v.SetDefault("min_engine_version", "")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := &Config{
		Origin:           v.GetString("origin"),
		BufMax:           v.GetInt("buf_max"),
		Timeout:          v.GetDuration("timeout"),
		KeepAliveEnabled: v.GetBool("keep_alive.enabled"),
		KeepAliveMax:     v.GetInt("keep_alive.max"),
		KeepAliveTimeout: v.GetDuration("keep_alive.timeout"),
		AcceptGzip:       v.GetBool("accept_gzip"),
		Proxy: proxy.State{
			Type: proxy.Type(v.GetInt("proxy.type")),
			Credentials: proxy.Credentials{
				Username: v.GetString("proxy.username"),
				Password: v.GetString("proxy.password"),
			},
		},
		MinEngineVersion: v.GetString("min_engine_version"),
	}

	ok, err := version.SatisfiesMin(cfg.MinEngineVersion)
	if err != nil {
		return nil, fmt.Errorf("config: invalid min_engine_version constraint %q: %w", cfg.MinEngineVersion, err)
	}
	if !ok {
		return nil, fmt.Errorf("config: engine version %s does not satisfy min_engine_version %q",
			version.Engine, cfg.MinEngineVersion)
	}

	return cfg, nil
}

// Store holds the current Config snapshot behind an atomic pointer:
// readers never block, and a reload only ever replaces the pointer, never
// fields within the struct a Context might be reading from mid-flight.
type Store struct {
	current atomic.Pointer[Config]
}

// NewStore wraps an already-loaded Config.
func NewStore(initial *Config) *Store {
	s := &Store{}
	s.current.Store(initial)
	return s
}

// Get returns the current snapshot. Safe to call concurrently with Set.
func (s *Store) Get() *Config { return s.current.Load() }

// Set publishes a new snapshot, used by Watcher on every successful reload.
func (s *Store) Set(cfg *Config) { s.current.Store(cfg) }
