package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var loaderNames = map[string]bool{
	"js": true, "jsx": true, "ts": true, "tsx": true, "css": true,
	"json": true, "text": true, "file": true, "dataurl": true, "base64": true,
	"binary": true, "copy": true, "empty": true, "local-css": true, "global-css": true,
}

var filenamePlaceholder = regexp.MustCompile(`\[(name|hash|contenthash|chunkhash)\]`)

// ValidateConfig checks the whole configuration and reports every problem found
func (c *Config) ValidateConfig() error {
	var errs []string
	add := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	if c.Mode != ModeDevelopment && c.Mode != ModeProduction {
		add(fmt.Errorf("Mode: must be development or production (current value: %s)", c.Mode))
	}
	add(validateDevtool(c.Devtool, "Devtool"))
	add(validateEntries(c))
	add(validateOutput(c.Output, len(c.EntryPoints()) > 1))
	for i, rule := range c.Rules {
		add(validateRule(rule, fmt.Sprintf("Rules[%d]", i)))
	}
	add(validateHTML(c.HTML))
	add(validateScriptAttributes(c.ScriptAttributes, "ScriptAttributes"))
	add(validatePort(c.Server.Port, "Server.Port"))
	add(validatePort(c.DevServer.Port, "DevServer.Port"))
	if c.Server.RateLimit.RequestsPerSecond < 0 {
		add(fmt.Errorf("Server.RateLimit.RequestsPerSecond: must not be negative (current value: %g)", c.Server.RateLimit.RequestsPerSecond))
	}
	if c.Server.RateLimit.RequestsPerSecond > 0 && c.Server.RateLimit.Burst < 1 {
		add(fmt.Errorf("Server.RateLimit.Burst: must be at least 1 when rate limiting is enabled (current value: %d)", c.Server.RateLimit.Burst))
	}
	add(validateDatabase(c.Database))
	if c.Sentry.SampleRate < 0 || c.Sentry.SampleRate > 1 {
		add(fmt.Errorf("Sentry.SampleRate: must be between 0 and 1 (current value: %g)", c.Sentry.SampleRate))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// validatePort checks that a port number is in the valid TCP range
func validatePort(port int, fieldName string) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s: port must be between 1 and 65535 (current value: %d)", fieldName, port)
	}
	return nil
}

func validateDevtool(devtool Devtool, fieldName string) error {
	switch devtool {
	case "", DevtoolSourceMap, DevtoolCheapSourceMap, DevtoolInlineSourceMap, DevtoolHiddenSourceMap, DevtoolNone, "false":
		return nil
	}
	return fmt.Errorf("%s: unsupported devtool (current value: %s)", fieldName, devtool)
}

func validateEntries(c *Config) error {
	if len(c.Entries) == 0 {
		if strings.TrimSpace(c.Entry) == "" {
			return fmt.Errorf("Entry: entry file cannot be empty")
		}
		return nil
	}
	for name, path := range c.Entries {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("Entries: entry name cannot be empty")
		}
		if strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("Entries: entry name '%s' must not contain path separators", name)
		}
		if strings.TrimSpace(path) == "" {
			return fmt.Errorf("Entries.%s: entry file cannot be empty", name)
		}
	}
	return nil
}

func validateOutput(out OutputConfig, multipleEntries bool) error {
	if strings.TrimSpace(out.Path) == "" {
		return fmt.Errorf("Output.Path: output directory cannot be empty")
	}
	if out.Filename == "" {
		return fmt.Errorf("Output.Filename: filename pattern cannot be empty")
	}
	if filepath.Base(out.Filename) != out.Filename {
		return fmt.Errorf("Output.Filename: filename pattern must not contain directories (current value: %s)", out.Filename)
	}
	if multipleEntries && !filenamePlaceholder.MatchString(out.Filename) {
		return fmt.Errorf("Output.Filename: multiple entries need a [name] or [hash] placeholder (current value: %s)", out.Filename)
	}
	if out.PublicPath != "" && !strings.HasSuffix(out.PublicPath, "/") {
		return fmt.Errorf("Output.PublicPath: must end with '/' (current value: %s)", out.PublicPath)
	}
	return nil
}

func validateRule(rule Rule, fieldName string) error {
	if rule.Test == "" {
		return fmt.Errorf("%s.Test: pattern cannot be empty", fieldName)
	}
	if _, err := regexp.Compile(rule.Test); err != nil {
		return fmt.Errorf("%s.Test: invalid regular expression (current value: %s)", fieldName, rule.Test)
	}
	if !loaderNames[rule.Loader] {
		return fmt.Errorf("%s.Loader: unknown loader (current value: %s)", fieldName, rule.Loader)
	}
	return validateGlobs(rule.Exclude, fieldName+".Exclude")
}

func validateGlobs(patterns []string, fieldName string) error {
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("%s: invalid glob pattern (current value: %s)", fieldName, pattern)
		}
	}
	return nil
}

func validateHTML(h HTMLConfig) error {
	if !h.Enabled {
		return nil
	}
	if h.Filename == "" {
		return fmt.Errorf("HTML.Filename: filename cannot be empty")
	}
	if h.Inject != "body" && h.Inject != "head" {
		return fmt.Errorf("HTML.Inject: must be 'body' or 'head' (current value: %s)", h.Inject)
	}
	return nil
}

func validateScriptAttributes(s ScriptAttributesConfig, fieldName string) error {
	switch s.DefaultAttribute {
	case "", "sync", "defer", "async", "module":
	default:
		return fmt.Errorf("%s.DefaultAttribute: must be sync, defer, async or module (current value: %s)", fieldName, s.DefaultAttribute)
	}
	if err := validateGlobs(s.Async, fieldName+".Async"); err != nil {
		return err
	}
	if err := validateGlobs(s.Defer, fieldName+".Defer"); err != nil {
		return err
	}
	return validateGlobs(s.Module, fieldName+".Module")
}

func validateDatabase(db DatabaseConfig) error {
	switch db.Driver {
	case "memory":
		return nil
	case "sqlite":
		if db.Path == "" {
			return fmt.Errorf("Database.Path: path cannot be empty for sqlite")
		}
		return nil
	case "postgres":
		if db.Host == "" {
			return fmt.Errorf("Database.Host: host cannot be empty for postgres")
		}
		return validatePort(db.Port, "Database.Port")
	default:
		return fmt.Errorf("Database.Driver: must be sqlite, postgres or memory (current value: %s)", db.Driver)
	}
}
