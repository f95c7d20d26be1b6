package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseMode(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		expected  Mode
		expectErr bool
	}{
		{name: "empty defaults to development", input: "", expected: ModeDevelopment},
		{name: "development", input: "development", expected: ModeDevelopment},
		{name: "production", input: "production", expected: ModeProduction},
		{name: "case insensitive", input: " Production ", expected: ModeProduction},
		{name: "unknown", input: "staging", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mode, err := ParseMode(tc.input)
			if tc.expectErr {
				if err == nil {
					t.Errorf("expected an error, but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, but got: %v", err)
			}
			if mode != tc.expected {
				t.Errorf("expected mode %s, but got %s", tc.expected, mode)
			}
		})
	}
}

func TestModeFromEnv(t *testing.T) {
	t.Setenv("PAGEPACK_MODE", "")
	t.Setenv("NODE_ENV", "production")
	mode, err := ModeFromEnv()
	if err != nil || mode != ModeProduction {
		t.Fatalf("expected production from NODE_ENV, got %s (err %v)", mode, err)
	}

	t.Setenv("PAGEPACK_MODE", "development")
	mode, err = ModeFromEnv()
	if err != nil || mode != ModeDevelopment {
		t.Fatalf("expected PAGEPACK_MODE to win, got %s (err %v)", mode, err)
	}
}

func TestResolvedDevtool(t *testing.T) {
	testCases := []struct {
		name     string
		mode     Mode
		devtool  Devtool
		expected Devtool
	}{
		{name: "production default", mode: ModeProduction, expected: DevtoolCheapSourceMap},
		{name: "development default", mode: ModeDevelopment, expected: DevtoolSourceMap},
		{name: "explicit wins", mode: ModeProduction, devtool: DevtoolNone, expected: DevtoolNone},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{Mode: tc.mode, Devtool: tc.devtool}
			if got := cfg.ResolvedDevtool(); got != tc.expected {
				t.Errorf("expected devtool %s, but got %s", tc.expected, got)
			}
		})
	}
}

func TestMinimizers(t *testing.T) {
	prod := &Config{Mode: ModeProduction}
	if got := prod.Minimizers(); len(got) != 2 || got[0] != MinimizerScript || got[1] != MinimizerStylesheet {
		t.Errorf("expected production to enable exactly two minimizers, got %v", got)
	}

	dev := &Config{Mode: ModeDevelopment}
	if got := dev.Minimizers(); len(got) != 0 {
		t.Errorf("expected development to enable no minimizers, got %v", got)
	}

	on := true
	forced := &Config{Mode: ModeDevelopment, Optimization: OptimizationConfig{Minimize: &on}}
	if got := forced.Minimizers(); len(got) != 2 {
		t.Errorf("expected explicit minimize to enable minimizers, got %v", got)
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Setenv("PAGEPACK_MODE", "")
	t.Setenv("NODE_ENV", "")
	cfg := DefaultConfig()

	if cfg.Mode != ModeDevelopment {
		t.Errorf("expected development mode, got %s", cfg.Mode)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected static server port 8080, got %d", cfg.Server.Port)
	}
	if cfg.DevServer.Port != 3000 {
		t.Errorf("expected dev server port 3000, got %d", cfg.DevServer.Port)
	}
	if cfg.Output.Filename != "[name].bundle.js" {
		t.Errorf("unexpected output filename %s", cfg.Output.Filename)
	}
	if cfg.ScriptAttributes.DefaultAttribute != "defer" {
		t.Errorf("expected default script attribute defer, got %s", cfg.ScriptAttributes.DefaultAttribute)
	}
	if err := cfg.ValidateConfig(); err != nil {
		t.Errorf("expected default config to be valid, got: %v", err)
	}
}

func TestResolvePath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		name     string
		context  string
		input    string
		expected string
	}{
		{name: "empty stays empty", context: "site", input: "", expected: ""},
		{name: "absolute unchanged", context: "site", input: filepath.Join(dir, "x"), expected: filepath.Join(dir, "x")},
		{name: "absolute context", context: filepath.Join(dir, "abs"), input: "dist", expected: filepath.Join(dir, "abs", "dist")},
		{name: "relative context uses working directory", context: "site", input: "dist", expected: filepath.Join(wd, "site", "dist")},
		{name: "dot context", context: ".", input: ".", expected: wd},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{Context: tc.context}
			got := cfg.ResolvePath(tc.input)
			if got != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, got)
			}
			if tc.input != "" && !filepath.IsAbs(got) {
				t.Errorf("expected an absolute path, got %q", got)
			}
		})
	}
}

func TestValidatePort(t *testing.T) {
	testCases := []struct {
		name      string
		port      int
		fieldName string
		expectErr bool
		errString string
	}{
		{
			name:      "valid port",
			port:      8080,
			fieldName: "Server.Port",
		},
		{
			name:      "port out of range (low)",
			port:      0,
			fieldName: "Server.Port",
			expectErr: true,
			errString: "Server.Port: port must be between 1 and 65535 (current value: 0)",
		},
		{
			name:      "port out of range (high)",
			port:      65536,
			fieldName: "DevServer.Port",
			expectErr: true,
			errString: "DevServer.Port: port must be between 1 and 65535 (current value: 65536)",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validatePort(tc.port, tc.fieldName)
			if tc.expectErr {
				if err == nil {
					t.Errorf("expected an error, but got nil")
				} else if err.Error() != tc.errString {
					t.Errorf("expected error string '%s', but got '%s'", tc.errString, err.Error())
				}
			} else if err != nil {
				t.Errorf("expected no error, but got: %v", err)
			}
		})
	}
}

func TestValidateRule(t *testing.T) {
	testCases := []struct {
		name      string
		rule      Rule
		expectErr bool
		errString string
	}{
		{
			name: "valid rule",
			rule: Rule{Test: `\.js$`, Exclude: []string{"**/node_modules/**"}, Loader: "jsx"},
		},
		{
			name:      "empty test",
			rule:      Rule{Loader: "js"},
			expectErr: true,
			errString: "Rules[0].Test: pattern cannot be empty",
		},
		{
			name:      "bad regexp",
			rule:      Rule{Test: `(`, Loader: "js"},
			expectErr: true,
			errString: "Rules[0].Test: invalid regular expression (current value: ()",
		},
		{
			name:      "unknown loader",
			rule:      Rule{Test: `\.js`, Loader: "babel"},
			expectErr: true,
			errString: "Rules[0].Loader: unknown loader (current value: babel)",
		},
		{
			name:      "bad glob",
			rule:      Rule{Test: `\.js`, Loader: "js", Exclude: []string{"[unclosed"}},
			expectErr: true,
			errString: "Rules[0].Exclude: invalid glob pattern (current value: [unclosed)",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateRule(tc.rule, "Rules[0]")
			if tc.expectErr {
				if err == nil {
					t.Errorf("expected an error, but got nil")
				} else if err.Error() != tc.errString {
					t.Errorf("expected error string '%s', but got '%s'", tc.errString, err.Error())
				}
			} else if err != nil {
				t.Errorf("expected no error, but got: %v", err)
			}
		})
	}
}

func TestValidateConfig(t *testing.T) {
	newDefaultConfig := func() *Config {
		c := DefaultConfig()
		c.Mode = ModeDevelopment
		return c
	}

	testCases := []struct {
		name      string
		config    *Config
		expectErr bool
		errString string
	}{
		{
			name:   "valid default config",
			config: newDefaultConfig(),
		},
		{
			name: "invalid server port",
			config: func() *Config {
				c := newDefaultConfig()
				c.Server.Port = 0
				return c
			}(),
			expectErr: true,
			errString: "Server.Port: port must be between 1 and 65535 (current value: 0)",
		},
		{
			name: "multiple entries without placeholder",
			config: func() *Config {
				c := newDefaultConfig()
				c.Entries = map[string]string{"app": "src/app.js", "admin": "src/admin.js"}
				c.Output.Filename = "bundle.js"
				return c
			}(),
			expectErr: true,
			errString: "Output.Filename: multiple entries need a [name] or [hash] placeholder (current value: bundle.js)",
		},
		{
			name: "bad script attribute",
			config: func() *Config {
				c := newDefaultConfig()
				c.ScriptAttributes.DefaultAttribute = "lazy"
				return c
			}(),
			expectErr: true,
			errString: "ScriptAttributes.DefaultAttribute: must be sync, defer, async or module (current value: lazy)",
		},
		{
			name: "multiple errors",
			config: func() *Config {
				c := newDefaultConfig()
				c.Server.Port = 0
				c.Database.Driver = "mysql"
				return c
			}(),
			expectErr: true,
			errString: "Server.Port: port must be between 1 and 65535 (current value: 0); Database.Driver: must be sqlite, postgres or memory (current value: mysql)",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.config.ValidateConfig()
			if tc.expectErr {
				if err == nil {
					t.Errorf("expected an error, but got nil")
					return
				}
				for _, subErr := range strings.Split(tc.errString, "; ") {
					if !strings.Contains(err.Error(), subErr) {
						t.Errorf("expected error to contain '%s', but got '%s'", subErr, err.Error())
					}
				}
			} else if err != nil {
				t.Errorf("expected no error, but got: %v", err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "pagepack.json")
	if err := os.WriteFile(jsonPath, []byte(`{"mode":"production","entry":"app/main.js","server":{"port":9000}}`), 0600); err != nil {
		t.Fatal(err)
	}
	yamlPath := filepath.Join(dir, "pagepack.yaml")
	if err := os.WriteFile(yamlPath, []byte("output:\n  path: public\nserver:\n  read_timeout: 5s\nhtml:\n  title: Hello\n"), 0600); err != nil {
		t.Fatal(err)
	}

	t.Run("json", func(t *testing.T) {
		cfg := DefaultConfig()
		if err := LoadFile(jsonPath, cfg); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if cfg.Mode != ModeProduction || cfg.Entry != "app/main.js" || cfg.Server.Port != 9000 {
			t.Errorf("json values not applied: %+v", cfg)
		}
		if cfg.DevServer.Port != 3000 {
			t.Errorf("expected untouched fields to keep defaults, got dev port %d", cfg.DevServer.Port)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		cfg := DefaultConfig()
		if err := LoadFile(yamlPath, cfg); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if cfg.Output.Path != "public" || cfg.HTML.Title != "Hello" {
			t.Errorf("yaml values not applied: %+v", cfg)
		}
		if cfg.Server.ReadTimeout != 5*time.Second {
			t.Errorf("expected read timeout 5s, got %s", cfg.Server.ReadTimeout)
		}
		if cfg.Output.Filename != "[name].bundle.js" {
			t.Errorf("expected untouched output filename, got %s", cfg.Output.Filename)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if err := LoadFile(filepath.Join(dir, "nope.json"), DefaultConfig()); err == nil {
			t.Errorf("expected an error for a missing file")
		}
	})

	t.Run("unsupported extension", func(t *testing.T) {
		tomlPath := filepath.Join(dir, "pagepack.toml")
		if err := os.WriteFile(tomlPath, []byte("mode = 'production'"), 0600); err != nil {
			t.Fatal(err)
		}
		if err := LoadFile(tomlPath, DefaultConfig()); err == nil {
			t.Errorf("expected an error for an unsupported extension")
		}
	})
}
