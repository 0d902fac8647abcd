// Package config loads the server configuration.
//
// Values come from built-in defaults, then an optional YAML file, then
// command-line flags. A flag only overrides the file when it was set
// explicitly.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"net/url"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config is the server configuration.
type Config struct {
	// DBPath is the SQLite database file. It is created on first run.
	DBPath string `yaml:"db"`

	// Addr is the listen address.
	Addr string `yaml:"addr"`

	// BaseURL is the externally visible origin used to build public links.
	BaseURL string `yaml:"base_url"`

	// LogPath mirrors all log output to a file when set.
	LogPath string `yaml:"log"`

	// AdminEmail and AdminName describe the admin created on first run.
	AdminEmail string `yaml:"admin_email"`
	AdminName  string `yaml:"admin_name"`

	// StoreTimeout bounds every store call made on behalf of a request.
	StoreTimeout time.Duration `yaml:"store_timeout"`

	// TokenTTL is the lifetime of a session token.
	TokenTTL time.Duration `yaml:"token_ttl"`

	HTTP HTTPConfig `yaml:"http"`
}

// HTTPConfig holds the http.Server timeouts.
type HTTPConfig struct {
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DBPath:       "oficina.sqlite3",
		Addr:         ":8080",
		BaseURL:      "http://localhost:8080",
		AdminEmail:   "admin@localhost",
		AdminName:    "Administrador",
		StoreTimeout: 5 * time.Second,
		TokenTTL:     7 * 24 * time.Hour,
		HTTP: HTTPConfig{
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
			ShutdownTimeout:   5 * time.Second,
		},
	}
}

// LoadFile reads a YAML file over the defaults. Unknown keys are errors so a
// typo does not silently fall back to a default.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	c := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return c, nil
}

// AddFlags registers the flags that can override the configuration. Their
// values are written to into, whose current fields are the flag defaults.
func AddFlags(fs *pflag.FlagSet, into *Config) {
	fs.StringVarP(&into.DBPath, "db", "d", into.DBPath, "SQLite database path")
	fs.StringVarP(&into.Addr, "addr", "a", into.Addr, "listen address")
	fs.StringVar(&into.BaseURL, "base-url", into.BaseURL, "public origin used in shared links")
	fs.StringVarP(&into.LogPath, "log", "l", into.LogPath, "log file path (default: stdout/stderr only)")
	fs.StringVarP(&into.AdminEmail, "admin-email", "e", into.AdminEmail, "admin email on first run")
	fs.StringVarP(&into.AdminName, "admin-name", "u", into.AdminName, "admin display name on first run")
	fs.DurationVar(&into.StoreTimeout, "store-timeout", into.StoreTimeout, "timeout of each store call")
	fs.DurationVar(&into.TokenTTL, "token-ttl", into.TokenTTL, "session token lifetime")
}

// ApplyFlags copies every flag set on the command line from flags into c.
func (c *Config) ApplyFlags(fs *pflag.FlagSet, flags *Config) {
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "db":
			c.DBPath = flags.DBPath
		case "addr":
			c.Addr = flags.Addr
		case "base-url":
			c.BaseURL = flags.BaseURL
		case "log":
			c.LogPath = flags.LogPath
		case "admin-email":
			c.AdminEmail = flags.AdminEmail
		case "admin-name":
			c.AdminName = flags.AdminName
		case "store-timeout":
			c.StoreTimeout = flags.StoreTimeout
		case "token-ttl":
			c.TokenTTL = flags.TokenTTL
		}
	})
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.DBPath == "" {
		errs = append(errs, errors.New("db: must not be empty"))
	}
	if c.Addr == "" {
		errs = append(errs, errors.New("addr: must not be empty"))
	}

	u, err := url.Parse(c.BaseURL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("base_url: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("base_url: scheme must be http or https, got %q", u.Scheme))
	case u.Host == "":
		errs = append(errs, errors.New("base_url: missing host"))
	case u.RawQuery != "" || u.Fragment != "":
		errs = append(errs, errors.New("base_url: must not have a query or fragment"))
	}

	if addr, err := mail.ParseAddress(c.AdminEmail); err != nil || addr.Address != c.AdminEmail {
		errs = append(errs, fmt.Errorf("admin_email: invalid address %q", c.AdminEmail))
	}
	if c.AdminName == "" {
		errs = append(errs, errors.New("admin_name: must not be empty"))
	}

	if c.StoreTimeout <= 0 {
		errs = append(errs, errors.New("store_timeout: must be positive"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token_ttl: must be positive"))
	}

	for name, d := range map[string]time.Duration{
		"http.read_header_timeout": c.HTTP.ReadHeaderTimeout,
		"http.read_timeout":        c.HTTP.ReadTimeout,
		"http.write_timeout":       c.HTTP.WriteTimeout,
		"http.idle_timeout":        c.HTTP.IdleTimeout,
		"http.shutdown_timeout":    c.HTTP.ShutdownTimeout,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s: must not be negative", name))
		}
	}

	return errors.Join(errs...)
}
