package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Provider kinds.
const (
	KindHTTP     = "http"
	KindPostgres = "postgres"
	KindElastic  = "elastic"
	KindStatic   = "static"
)

type Server struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`

	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable only behind a proxy that sets them.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers"`
}

type Log struct {
	Level string `yaml:"level"`
}

type Search struct {
	DefaultPageSize int           `yaml:"default_page_size"`
	MaxPageSize     int           `yaml:"max_page_size"`
	ProviderTimeout time.Duration `yaml:"provider_timeout"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
}

type Breaker struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout"`
}

type RateLimit struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// Provider describes one upstream source. The order of the providers list is
// the order used to merge results.
type Provider struct {
	Name    string        `yaml:"name"`
	Kind    string        `yaml:"kind"`
	URL     string        `yaml:"url"`
	DSN     string        `yaml:"dsn"`
	Index   string        `yaml:"index"`
	File    string        `yaml:"file"`
	Timeout time.Duration `yaml:"timeout"`
	Enabled *bool         `yaml:"enabled"`
}

// IsEnabled reports whether the provider should be wired. Providers are
// enabled unless explicitly switched off.
func (p Provider) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

type Config struct {
	Server    Server     `yaml:"server"`
	Log       Log        `yaml:"log"`
	Search    Search     `yaml:"search"`
	Breaker   Breaker    `yaml:"breaker"`
	RateLimit RateLimit  `yaml:"rate_limit"`
	Providers []Provider `yaml:"providers"`
}

func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Log: Log{Level: "info"},
		Search: Search{
			DefaultPageSize: 20,
			MaxPageSize:     100,
			ProviderTimeout: 5 * time.Second,
			CacheTTL:        30 * time.Second,
		},
		Breaker: Breaker{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			ResetTimeout:     30 * time.Second,
		},
		RateLimit: RateLimit{Requests: 10, Window: time.Minute},
		Providers: []Provider{
			{Name: "provider1", Kind: KindHTTP, URL: "http://localhost:9001"},
			{Name: "provider2", Kind: KindHTTP, URL: "http://localhost:9002"},
			{Name: "provider3", Kind: KindHTTP, URL: "http://localhost:9003"},
		},
	}
}

// Load builds the configuration from defaults, an optional .env file, an
// optional YAML file and the environment, in that order.
//
// If path is empty, CONFIG_FILE is used, then config.yaml if it exists.
func Load(path string) (Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Addr = ":" + v
	}
	if v := os.Getenv("ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitCSV(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("TRUST_PROXY_HEADERS"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("env TRUST_PROXY_HEADERS: %w", err)
		}
		cfg.Server.TrustProxyHeaders = trust
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"DEFAULT_PAGE_SIZE", &cfg.Search.DefaultPageSize},
		{"MAX_PAGE_SIZE", &cfg.Search.MaxPageSize},
		{"BREAKER_FAILURE_THRESHOLD", &cfg.Breaker.FailureThreshold},
		{"BREAKER_SUCCESS_THRESHOLD", &cfg.Breaker.SuccessThreshold},
		{"RATE_LIMIT_REQUESTS", &cfg.RateLimit.Requests},
	}
	for _, e := range ints {
		v := os.Getenv(e.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("env %s: %w", e.key, err)
		}
		*e.dst = n
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"PROVIDER_TIMEOUT", &cfg.Search.ProviderTimeout},
		{"CACHE_TTL", &cfg.Search.CacheTTL},
		{"BREAKER_RESET_TIMEOUT", &cfg.Breaker.ResetTimeout},
		{"RATE_LIMIT_WINDOW", &cfg.RateLimit.Window},
		{"SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout},
	}
	for _, e := range durations {
		v := os.Getenv(e.key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("env %s: %w", e.key, err)
		}
		*e.dst = d
	}

	// PROVIDER_<NAME>_URL and PROVIDER_<NAME>_DSN point a configured
	// provider somewhere else without touching the file.
	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		prefix := "PROVIDER_" + envName(p.Name) + "_"
		if v := os.Getenv(prefix + "URL"); v != "" {
			p.URL = v
		}
		if v := os.Getenv(prefix + "DSN"); v != "" {
			p.DSN = v
		}
	}
	return nil
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	if c.Search.DefaultPageSize <= 0 || c.Search.MaxPageSize <= 0 {
		return errors.New("search: page sizes must be positive")
	}
	if c.Search.DefaultPageSize > c.Search.MaxPageSize {
		return fmt.Errorf("search: default page size %d exceeds max %d", c.Search.DefaultPageSize, c.Search.MaxPageSize)
	}
	if c.Search.ProviderTimeout <= 0 {
		return errors.New("search: provider timeout must be positive")
	}
	if c.RateLimit.Window <= 0 {
		return errors.New("rate_limit: window must be positive")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("providers[%d]: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("providers[%d]: duplicate name %q", i, p.Name)
		}
		seen[p.Name] = true

		switch p.Kind {
		case KindHTTP:
			if p.URL == "" {
				return fmt.Errorf("provider %s: url is required", p.Name)
			}
		case KindElastic:
			if p.URL == "" || p.Index == "" {
				return fmt.Errorf("provider %s: url and index are required", p.Name)
			}
		case KindPostgres:
			if p.DSN == "" {
				return fmt.Errorf("provider %s: dsn is required", p.Name)
			}
		case KindStatic:
			if p.File == "" {
				return fmt.Errorf("provider %s: file is required", p.Name)
			}
		default:
			return fmt.Errorf("provider %s: unknown kind %q", p.Name, p.Kind)
		}
	}
	return nil
}

// SlogLevel parses the configured log level.
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log: %w", err)
	}
	return level, nil
}

// ProviderTimeout returns the call timeout for p, falling back to the
// search-wide default.
func (c Config) ProviderTimeout(p Provider) time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return c.Search.ProviderTimeout
}

func envName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
