package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultPath is read when Load is called with an empty path.
const DefaultPath = "config.yaml"

// EnvPrefix marks environment overrides; "__" separates nested keys,
// e.g. DISPATCH_SERVER__PORT=9090.
const EnvPrefix = "DISPATCH_"

type Config struct {
	Server      ServerConfig       `koanf:"server"`
	Telemetry   TelemetryConfig    `koanf:"telemetry"`
	Storage     StorageConfig      `koanf:"storage"`
	Dispatchers []DispatcherConfig `koanf:"dispatchers"`
	Endpoints   []EndpointConfig   `koanf:"endpoints"`

	// Handlers lists handler factory kinds in resolution order
	Handlers []string `koanf:"handlers"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Admin           AdminConfig   `koanf:"admin"`
}

// AdminConfig mounts the admin API. An empty Path disables it.
type AdminConfig struct {
	Path string         `koanf:"path"`
	Keys []APIKeyConfig `koanf:"keys"` // empty leaves the admin API open
}

type TelemetryConfig struct {
	ServiceName string `koanf:"service_name"`
	Tracing     bool   `koanf:"tracing"`      // stdout span exporter
	MetricsPath string `koanf:"metrics_path"` // empty disables the Prometheus endpoint
}

type StorageConfig struct {
	SQLite SQLiteConfig `koanf:"sqlite"`

	// SeedEndpoints copies every configured endpoint with a path into the
	// route store at startup
	SeedEndpoints bool `koanf:"seed_endpoints"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"` // empty selects the in-memory store
}

// DispatcherConfig configures one entry of the dispatcher chain. Which
// fields apply depends on Type.
type DispatcherConfig struct {
	Name string `koanf:"name"`
	Type string `koanf:"type"` // health, auth, table, store, webhook, maintenance

	// health
	Path string `koanf:"path"`

	// auth
	Keys   []APIKeyConfig `koanf:"keys"`
	Exempt []string       `koanf:"exempt"` // path prefixes that skip authentication

	// table: endpoint names to route; empty routes every configured endpoint
	Endpoints []string `koanf:"endpoints"`

	// webhook
	URL     string            `koanf:"url"`
	Timeout time.Duration     `koanf:"timeout"`
	Retries int               `koanf:"retries"`
	OnError string            `koanf:"on_error"` // allow or deny (default deny)
	Headers map[string]string `koanf:"headers"`

	// maintenance
	Enabled    bool          `koanf:"enabled"`
	RetryAfter time.Duration `koanf:"retry_after"`
	Message    string        `koanf:"message"`
}

type APIKeyConfig struct {
	Name    string `koanf:"name"`
	KeyHash string `koanf:"key_hash"`
}

// EndpointConfig describes an endpoint a dispatcher can select.
type EndpointConfig struct {
	Name         string            `koanf:"name"`
	Kind         string            `koanf:"kind"` // static, redirect, proxy, passthrough
	Method       string            `koanf:"method"`
	Path         string            `koanf:"path"` // chi pattern, e.g. /users/{id} or /api/*
	Target       string            `koanf:"target"`
	Status       int               `koanf:"status"`
	Body         string            `koanf:"body"`
	Headers      map[string]string `koanf:"headers"`
	BlockPrivate bool              `koanf:"block_private"`
}

// Dispatcher types understood by routes.Build.
const (
	DispatcherHealth      = "health"
	DispatcherAuth        = "auth"
	DispatcherTable       = "table"
	DispatcherStore       = "store"
	DispatcherWebhook     = "webhook"
	DispatcherMaintenance = "maintenance"
)

var knownDispatchers = map[string]bool{
	DispatcherHealth:      true,
	DispatcherAuth:        true,
	DispatcherTable:       true,
	DispatcherStore:       true,
	DispatcherWebhook:     true,
	DispatcherMaintenance: true,
}

// Load reads path (or DefaultPath), applies DISPATCH_ environment overrides
// and defaults, and validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	setDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	for i := range cfg.Dispatchers {
		d := &cfg.Dispatchers[i]
		d.URL = substituteEnvVars(d.URL)
		for name, v := range d.Headers {
			d.Headers[name] = substituteEnvVars(v)
		}
		for j := range d.Keys {
			d.Keys[j].KeyHash = substituteEnvVars(d.Keys[j].KeyHash)
		}
	}
	for j := range cfg.Server.Admin.Keys {
		cfg.Server.Admin.Keys[j].KeyHash = substituteEnvVars(cfg.Server.Admin.Keys[j].KeyHash)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration Load produces with no file and no
// environment overrides.
func Default() *Config {
	k := koanf.New(".")
	setDefaults(k)

	var cfg Config
	_ = k.Unmarshal("", &cfg)
	return &cfg
}

func setDefaults(k *koanf.Koanf) {
	defaults := map[string]any{
		"server.port":             8080,
		"server.request_timeout":  "30s",
		"server.shutdown_timeout": "10s",
		"telemetry.service_name":  "polyglot-dispatch",
		"telemetry.metrics_path":  "/metrics",
		"handlers":                []string{"static", "redirect", "proxy"},
	}
	for key, v := range defaults {
		if !k.Exists(key) {
			k.Set(key, v)
		}
	}
}

// Validate checks the dispatcher chain and endpoint list for mistakes that
// would otherwise only show up on the first request.
func (c *Config) Validate() error {
	if p := c.Server.Admin.Path; p != "" && (!strings.HasPrefix(p, "/") || p == "/") {
		return fmt.Errorf("server.admin.path must start with / and not be the root")
	}

	names := make(map[string]bool, len(c.Dispatchers))
	for i, d := range c.Dispatchers {
		if d.Name == "" {
			return fmt.Errorf("dispatcher %d: name is required", i)
		}
		if names[d.Name] {
			return fmt.Errorf("dispatcher %s: duplicate name", d.Name)
		}
		names[d.Name] = true

		if !knownDispatchers[d.Type] {
			return fmt.Errorf("dispatcher %s: unknown type %q", d.Name, d.Type)
		}
		switch d.Type {
		case DispatcherWebhook:
			if d.URL == "" {
				return fmt.Errorf("dispatcher %s: url is required", d.Name)
			}
			if d.OnError != "" && d.OnError != "allow" && d.OnError != "deny" {
				return fmt.Errorf("dispatcher %s: invalid on_error %q (must be 'allow' or 'deny')", d.Name, d.OnError)
			}
			if d.Retries < 0 {
				return fmt.Errorf("dispatcher %s: retries must not be negative", d.Name)
			}
		case DispatcherAuth:
			if len(d.Keys) == 0 {
				return fmt.Errorf("dispatcher %s: at least one key is required", d.Name)
			}
			for _, prefix := range d.Exempt {
				if !strings.HasPrefix(prefix, "/") {
					return fmt.Errorf("dispatcher %s: exempt prefix %q must start with /", d.Name, prefix)
				}
			}
		}
	}

	endpoints := make(map[string]bool, len(c.Endpoints))
	for i, e := range c.Endpoints {
		if e.Name == "" {
			return fmt.Errorf("endpoint %d: name is required", i)
		}
		if endpoints[e.Name] {
			return fmt.Errorf("endpoint %s: duplicate name", e.Name)
		}
		endpoints[e.Name] = true
		if e.Path != "" && !strings.HasPrefix(e.Path, "/") {
			return fmt.Errorf("endpoint %s: path must start with /", e.Name)
		}
	}

	for _, d := range c.Dispatchers {
		for _, name := range d.Endpoints {
			if !endpoints[name] {
				return fmt.Errorf("dispatcher %s: unknown endpoint %q", d.Name, name)
			}
		}
	}
	return nil
}

// Endpoint returns the endpoint named name.
func (c *Config) Endpoint(name string) (EndpointConfig, bool) {
	for _, e := range c.Endpoints {
		if e.Name == name {
			return e, true
		}
	}
	return EndpointConfig{}, false
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
