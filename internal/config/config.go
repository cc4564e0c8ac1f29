// Package config loads the gateway's runtime configuration from defaults,
// an optional YAML file, and environment variables, in that order of
// increasing precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// RateLimit bounds how many RPCs a single conversation may issue to the
// HTTP boundary per second.
type RateLimit struct {
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

// GatewayConfig is the merged, effective configuration for one gatewayd
// process.
type GatewayConfig struct {
	ListenAddr         string        `mapstructure:"listen_addr"`
	ConversationHeader string        `mapstructure:"conversation_header"`
	Debug              bool          `mapstructure:"debug"`
	RateLimit          RateLimit     `mapstructure:"rate_limit"`
	AuditLogPath       string        `mapstructure:"audit_log_path"`
	MetricsAddr        string        `mapstructure:"metrics_addr"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
}

// Manager owns the viper instance backing a GatewayConfig and the callbacks
// that react to a live config reload.
type Manager struct {
	v        *viper.Viper
	merged   *GatewayConfig
	onChange []func(*GatewayConfig)
}

// NewManager builds a Manager with defaults set, ready for Load.
func NewManager() *Manager {
	v := viper.New()
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("conversation_header", "X-Conversation-Id")
	v.SetDefault("debug", false)
	v.SetDefault("rate_limit.per_second", 20.0)
	v.SetDefault("rate_limit.burst", 40)
	v.SetDefault("audit_log_path", "")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("write_timeout", 5*time.Second)

	v.SetEnvPrefix("GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Manager{v: v, merged: &GatewayConfig{}}
}

// Load reads configPath (if non-empty) as a YAML file on top of the
// defaults, then re-applies environment overrides, and populates Get().
// An empty configPath is not an error; defaults and env vars still apply.
// A non-empty configPath naming a file that cannot be read is an error.
func (m *Manager) Load(configPath string) error {
	if configPath != "" {
		m.v.SetConfigFile(configPath)
		if err := m.v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", configPath, err)
		}
	}
	return m.reload()
}

func (m *Manager) reload() error {
	cfg := &GatewayConfig{}
	if err := m.v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	m.merged = cfg
	for _, fn := range m.onChange {
		fn(cfg)
	}
	return nil
}

// OnChange registers a callback invoked after every successful reload,
// including the one triggered by WatchConfig. Only rate-limit parameters
// are expected to be safely hot-swappable; callbacks that need anything
// else should re-derive it from Get() rather than assume process-lifetime
// stability.
func (m *Manager) OnChange(fn func(*GatewayConfig)) {
	m.onChange = append(m.onChange, fn)
}

// WatchConfig enables live reload of the backing file, if one was loaded.
// Uses viper's fsnotify-backed watcher.
func (m *Manager) WatchConfig() {
	m.v.OnConfigChange(func(_ fsnotify.Event) {
		if err := m.reload(); err != nil {
			// A bad edit to the config file must not crash the process;
			// the previous merged config remains in effect.
			return
		}
	})
	m.v.WatchConfig()
}

// Get returns the current merged configuration.
func (m *Manager) Get() *GatewayConfig {
	return m.merged
}
