package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// ErrConfigIncomplete is returned when the mail settings needed for dispatch
// are missing.
var ErrConfigIncomplete = errors.New("configuration incomplete")

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	v         *viper.Viper
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	v := cm.v
	d := DefaultConfig()

	v.SetDefault("mail.host", d.Mail.Host)
	v.SetDefault("mail.port", d.Mail.Port)
	v.SetDefault("mail.from", d.Mail.From)
	v.SetDefault("mail.username", d.Mail.Username)
	v.SetDefault("mail.password", d.Mail.Password)
	v.SetDefault("mail.tls", d.Mail.TLS)
	v.SetDefault("mail.timeout_seconds", d.Mail.TimeoutSeconds)
	v.SetDefault("detect.run_prefix", d.Detect.RunPrefix)
	v.SetDefault("detect.reappear", d.Detect.Reappear)
	v.SetDefault("dispatch.concurrency", d.Dispatch.Concurrency)
	v.SetDefault("dispatch.greeting", d.Dispatch.Greeting)
	v.SetDefault("dispatch.signature", d.Dispatch.Signature)
	v.SetDefault("relay.container_name", d.Relay.ContainerName)
	v.SetDefault("relay.image", d.Relay.Image)
	v.SetDefault("relay.smtp_port", d.Relay.SMTPPort)
	v.SetDefault("relay.ui_port", d.Relay.UIPort)
	v.SetDefault("watch.settle_millis", d.Watch.SettleMillis)
	v.SetDefault("watch.metrics_addr", d.Watch.MetricsAddr)

	// Environment variables with RUNSHEETS_ prefix, e.g. RUNSHEETS_MAIL_HOST
	v.SetEnvPrefix("RUNSHEETS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.runsheets")
	}

	// Try to read config file (not required)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFile returns the config file in use, or "" when running on defaults.
func (cm *Manager) ConfigFile() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig reloads the file whenever it changes. A reload that fails to
// parse or names an unknown policy is logged and the previous config stays
// in effect.
func (cm *Manager) WatchConfig(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err == nil {
			err = cfg.CheckPolicies()
		}
		if err != nil {
			logger.Warn("config reload rejected", "file", e.Name, "error", err)
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envRef.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# runsheets configuration
# The mail password uses ${ENV_VAR} syntax to reference an environment variable
# Set it in your shell: export RUNSHEETS_MAIL_PASSWORD=xxx

`)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, append(header, data...), 0o600)
}
