package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Mode selects development or production build behavior
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// Devtool names the source map style, using the same vocabulary as webpack's devtool option
type Devtool string

const (
	DevtoolSourceMap       Devtool = "source-map"
	DevtoolCheapSourceMap  Devtool = "cheap-source-map"
	DevtoolInlineSourceMap Devtool = "inline-source-map"
	DevtoolHiddenSourceMap Devtool = "hidden-source-map"
	DevtoolNone            Devtool = "none"
)

// Minimizer is an output optimizer enabled in production mode
type Minimizer string

const (
	MinimizerScript     Minimizer = "script"
	MinimizerStylesheet Minimizer = "stylesheet"
)

// Rule maps source files to a loader
type Rule struct {
	Test    string   `json:"test" yaml:"test"`       // Regular expression matched against the file path
	Exclude []string `json:"exclude" yaml:"exclude"` // Glob patterns that bypass the rule
	Loader  string   `json:"loader" yaml:"loader"`   // esbuild loader name (js, jsx, ts, tsx, css, ...)
}

// OutputConfig holds where and how bundles are written
type OutputConfig struct {
	Path       string `json:"path" yaml:"path"`
	Filename   string `json:"filename" yaml:"filename"`
	PublicPath string `json:"public_path" yaml:"public_path"`
}

// HTMLConfig holds HTML page generation options
type HTMLConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Title    string `json:"title" yaml:"title"`
	Template string `json:"template" yaml:"template"`
	Filename string `json:"filename" yaml:"filename"`
	Inject   string `json:"inject" yaml:"inject"` // "body" or "head"
	Favicon  string `json:"favicon" yaml:"favicon"`
}

// ScriptAttributesConfig controls attributes on injected script tags
type ScriptAttributesConfig struct {
	DefaultAttribute string   `json:"default_attribute" yaml:"default_attribute"` // sync, defer, async or module
	Async            []string `json:"async" yaml:"async"`
	Defer            []string `json:"defer" yaml:"defer"`
	Module           []string `json:"module" yaml:"module"`
}

// OptimizationConfig controls minification; a nil Minimize follows the mode
type OptimizationConfig struct {
	Minimize *bool `json:"minimize" yaml:"minimize"`
}

// StatsConfig controls the build report
type StatsConfig struct {
	Colors bool `json:"colors" yaml:"colors"`
}

// DevServerConfig holds the development server configuration
type DevServerConfig struct {
	ContentBase string `json:"content_base" yaml:"content_base"`
	Inline      bool   `json:"inline" yaml:"inline"`
	Port        int    `json:"port" yaml:"port"`
	HTTPS       bool   `json:"https" yaml:"https"`
	CertPath    string `json:"cert_path" yaml:"cert_path"`
	KeyPath     string `json:"key_path" yaml:"key_path"`
}

// RateLimitConfig holds the static server's token bucket settings
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"` // 0 disables rate limiting
	Burst             int     `json:"burst" yaml:"burst"`
}

// ServerConfig holds the static server configuration
type ServerConfig struct {
	Root         string          `json:"root" yaml:"root"`
	Port         int             `json:"port" yaml:"port"`
	ReadTimeout  time.Duration   `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration   `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration   `json:"idle_timeout" yaml:"idle_timeout"`
	RateLimit    RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
}

// DatabaseConfig holds build history storage configuration
type DatabaseConfig struct {
	Driver       string        `json:"driver" yaml:"driver"` // sqlite, postgres or memory
	Path         string        `json:"path" yaml:"path"`     // SQLite database file
	Host         string        `json:"host" yaml:"host"`
	Port         int           `json:"port" yaml:"port"`
	Name         string        `json:"name" yaml:"name"`
	Username     string        `json:"username" yaml:"username"`
	Password     string        `json:"password" yaml:"password"`
	SSLMode      string        `json:"ssl_mode" yaml:"ssl_mode"`
	MaxOpenConns int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	MaxLifetime  time.Duration `json:"max_lifetime" yaml:"max_lifetime"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	LogRequests bool `json:"log_requests" yaml:"log_requests"` // Log every served request
	LogVerbose  bool `json:"log_verbose" yaml:"log_verbose"`   // Log watcher and loader details
}

// SentryConfig holds error reporting configuration; an empty DSN disables reporting
type SentryConfig struct {
	DSN         string  `json:"dsn" yaml:"dsn"`
	Environment string  `json:"environment" yaml:"environment"`
	Release     string  `json:"release" yaml:"release"`
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`
}

// Config holds all configuration for building and serving the site
type Config struct {
	Mode             Mode                   `json:"mode" yaml:"mode"`
	Context          string                 `json:"context" yaml:"context"` // Base directory for relative paths; empty means the working directory
	Devtool          Devtool                `json:"devtool" yaml:"devtool"`
	Entry            string                 `json:"entry" yaml:"entry"`
	Entries          map[string]string      `json:"entries" yaml:"entries"`
	Output           OutputConfig           `json:"output" yaml:"output"`
	Rules            []Rule                 `json:"rules" yaml:"rules"`
	Target           string                 `json:"target" yaml:"target"`
	HTML             HTMLConfig             `json:"html" yaml:"html"`
	ScriptAttributes ScriptAttributesConfig `json:"script_attributes" yaml:"script_attributes"`
	Optimization     OptimizationConfig     `json:"optimization" yaml:"optimization"`
	Stats            StatsConfig            `json:"stats" yaml:"stats"`
	DevServer        DevServerConfig        `json:"dev_server" yaml:"dev_server"`
	Server           ServerConfig           `json:"server" yaml:"server"`
	Database         DatabaseConfig         `json:"database" yaml:"database"`
	Logging          LoggingConfig          `json:"logging" yaml:"logging"`
	Sentry           SentryConfig           `json:"sentry" yaml:"sentry"`
}

// DefaultConfig returns the default configuration. The mode comes from the environment
// and falls back to development when the environment holds an unknown value.
func DefaultConfig() *Config {
	mode, err := ModeFromEnv()
	if err != nil {
		mode = ModeDevelopment
	}

	return &Config{
		Mode:  mode,
		Entry: "src/index.js",
		Output: OutputConfig{
			Path:       "dist",
			Filename:   "[name].bundle.js",
			PublicPath: "/",
		},
		Rules: []Rule{
			{
				Test:    `\.jsx?$`,
				Exclude: []string{"**/node_modules/**"},
				Loader:  "jsx",
			},
		},
		Target: "es2015",
		HTML: HTMLConfig{
			Enabled:  true,
			Title:    "Custom template",
			Template: "src/index.template.html",
			Filename: "index.html",
			Inject:   "body",
		},
		ScriptAttributes: ScriptAttributesConfig{
			DefaultAttribute: "defer",
		},
		Stats: StatsConfig{
			Colors: true,
		},
		DevServer: DevServerConfig{
			ContentBase: "./dist",
			Inline:      true,
			Port:        3000,
			CertPath:    ".pagepack/dev-ca.pem",
			KeyPath:     ".pagepack/dev-ca-key.pem",
		},
		Server: ServerConfig{
			Root:         "dist",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:       "sqlite",
			Path:         ".pagepack/builds.db",
			Host:         "localhost",
			Port:         5432,
			Name:         "pagepack",
			Username:     "postgres",
			SSLMode:      "disable",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			MaxLifetime:  5 * time.Minute,
		},
		Logging: LoggingConfig{
			LogRequests: true,
		},
		Sentry: SentryConfig{
			SampleRate: 1.0,
		},
	}
}

// ParseMode parses a mode name; the empty string means development
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ModeDevelopment):
		return ModeDevelopment, nil
	case string(ModeProduction):
		return ModeProduction, nil
	default:
		return "", fmt.Errorf("unknown mode %q (expected development or production)", s)
	}
}

// ModeFromEnv reads the mode from PAGEPACK_MODE, then NODE_ENV
func ModeFromEnv() (Mode, error) {
	if v := os.Getenv("PAGEPACK_MODE"); v != "" {
		return ParseMode(v)
	}
	return ParseMode(os.Getenv("NODE_ENV"))
}

// IsProduction reports whether the configuration builds for production
func (c *Config) IsProduction() bool {
	return c.Mode == ModeProduction
}

// ResolvedDevtool returns the configured devtool, or the mode default when unset
func (c *Config) ResolvedDevtool() Devtool {
	if c.Devtool != "" {
		return c.Devtool
	}
	if c.IsProduction() {
		return DevtoolCheapSourceMap
	}
	return DevtoolSourceMap
}

// ShouldMinimize reports whether minimizers run for this configuration
func (c *Config) ShouldMinimize() bool {
	if c.Optimization.Minimize != nil {
		return *c.Optimization.Minimize
	}
	return c.IsProduction()
}

// Minimizers returns the enabled minimizers
func (c *Config) Minimizers() []Minimizer {
	if !c.ShouldMinimize() {
		return nil
	}
	return []Minimizer{MinimizerScript, MinimizerStylesheet}
}

// ResolvePath makes a configured path absolute relative to Context.
// A relative Context is itself taken relative to the working directory.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	joined := filepath.Join(c.Context, p)
	if abs, err := filepath.Abs(joined); err == nil {
		return abs
	}
	return joined
}

// EntryPoints returns the named entry points. A single Entry gets an empty name,
// meaning the bundler derives the chunk name from the file name.
func (c *Config) EntryPoints() map[string]string {
	if len(c.Entries) > 0 {
		return c.Entries
	}
	return map[string]string{"": c.Entry}
}

// ListenAddr returns the static server listen address
func (s ServerConfig) ListenAddr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// ListenAddr returns the development server listen address
func (d DevServerConfig) ListenAddr() string {
	return fmt.Sprintf(":%d", d.Port)
}
