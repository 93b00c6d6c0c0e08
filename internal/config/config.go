// Package config loads the server configuration from flags, environment
// variables and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. FOREMAN_MCP_FOREMAN_URL.
const EnvPrefix = "FOREMAN_MCP"

// Config stores all configuration of the application.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Foreman ForemanConfig `mapstructure:"foreman"`
}

// ServerConfig stores the HTTP listener settings.
type ServerConfig struct {
	Host        string  `mapstructure:"host"`
	Port        int     `mapstructure:"port"`
	Token       string  `mapstructure:"token"`
	TLSCertFile string  `mapstructure:"tls_cert_file"`
	TLSKeyFile  string  `mapstructure:"tls_key_file"`
	RateLimit   float64 `mapstructure:"rate_limit"` // requests per second, 0 = off
	RateBurst   int     `mapstructure:"rate_burst"`
}

// LogConfig stores logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// ForemanConfig stores the Foreman connection.
type ForemanConfig struct {
	URL       string        `mapstructure:"url"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	VerifySSL bool          `mapstructure:"verify_ssl"`
	Timeout   time.Duration `mapstructure:"timeout"` // per outbound request
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// TLSEnabled reports whether both a certificate and a key are configured.
func (c ServerConfig) TLSEnabled() bool { return c.TLSCertFile != "" && c.TLSKeyFile != "" }

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"host":               "server.host",
	"port":               "server.port",
	"token":              "server.token",
	"tls-cert-file":      "server.tls_cert_file",
	"tls-key-file":       "server.tls_key_file",
	"rate-limit":         "server.rate_limit",
	"rate-burst":         "server.rate_burst",
	"log-level":          "log.level",
	"foreman-url":        "foreman.url",
	"foreman-username":   "foreman.username",
	"foreman-password":   "foreman.password",
	"foreman-verify-ssl": "foreman.verify_ssl",
	"foreman-timeout":    "foreman.timeout",
}

// Flags returns the command line flags understood by Load.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("foreman-mcp", pflag.ContinueOnError)
	fs.String("config", "", "Path to a YAML config file")
	fs.String("host", "127.0.0.1", "Address to listen on")
	fs.Int("port", 3000, "Port to listen on for HTTP")
	fs.String("token", "", "Bearer token required on /mcp, /sse and /messages/")
	fs.String("tls-cert-file", "", "TLS certificate file")
	fs.String("tls-key-file", "", "TLS private key file")
	fs.Float64("rate-limit", 0, "Requests per second allowed on the MCP endpoints (0 disables)")
	fs.Int("rate-burst", 10, "Burst size for the rate limit")
	fs.String("log-level", "info", "Logging level (debug, info, warning, error, critical)")
	fs.String("foreman-url", "", "Foreman URL to connect to")
	fs.String("foreman-username", "admin", "Username for Foreman API authentication")
	fs.String("foreman-password", "changeme", "Password for Foreman API authentication")
	fs.Bool("foreman-verify-ssl", false, "Verify the Foreman TLS certificate")
	fs.Duration("foreman-timeout", 30*time.Second, "Deadline for each request to Foreman")
	return fs
}

// Load builds a Config from, in order of precedence, flags set on fs,
// environment variables, the config file and defaults. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for flag, key := range flagKeys {
			if f := fs.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", flag, err)
				}
			}
		}
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.token", "")
	v.SetDefault("server.tls_cert_file", "")
	v.SetDefault("server.tls_key_file", "")
	v.SetDefault("server.rate_limit", 0)
	v.SetDefault("server.rate_burst", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("foreman.url", "")
	v.SetDefault("foreman.username", "admin")
	v.SetDefault("foreman.password", "changeme")
	v.SetDefault("foreman.verify_ssl", false)
	v.SetDefault("foreman.timeout", 30*time.Second)
}

// Validate checks the settings that have no usable default.
func (c *Config) Validate() error {
	var errs []error
	if c.Foreman.URL == "" {
		errs = append(errs, errors.New("foreman.url is required"))
	} else if u, err := url.Parse(c.Foreman.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("foreman.url %q is not an absolute URL", c.Foreman.URL))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		errs = append(errs, errors.New("server.tls_cert_file and server.tls_key_file must be set together"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit must not be negative"))
	}
	if c.Foreman.Timeout <= 0 {
		errs = append(errs, errors.New("foreman.timeout must be positive"))
	}
	return errors.Join(errs...)
}
