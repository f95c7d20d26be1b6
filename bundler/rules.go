package bundler

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/evanw/esbuild/pkg/api"

	"github.com/hannes/pagepack/config"
)

var loaders = map[string]api.Loader{
	"js":         api.LoaderJS,
	"jsx":        api.LoaderJSX,
	"ts":         api.LoaderTS,
	"tsx":        api.LoaderTSX,
	"css":        api.LoaderCSS,
	"local-css":  api.LoaderLocalCSS,
	"global-css": api.LoaderGlobalCSS,
	"json":       api.LoaderJSON,
	"text":       api.LoaderText,
	"file":       api.LoaderFile,
	"dataurl":    api.LoaderDataURL,
	"base64":     api.LoaderBase64,
	"binary":     api.LoaderBinary,
	"copy":       api.LoaderCopy,
	"empty":      api.LoaderEmpty,
}

// rule is a compiled config.Rule
type rule struct {
	test    *regexp.Regexp
	exclude []string
	loader  api.Loader
}

func compileRules(rules []config.Rule) ([]rule, error) {
	compiled := make([]rule, 0, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Test)
		if err != nil {
			return nil, fmt.Errorf("rule %d: invalid test pattern: %w", i, err)
		}
		loader, ok := loaders[r.Loader]
		if !ok {
			return nil, fmt.Errorf("rule %d: unknown loader %q", i, r.Loader)
		}
		compiled = append(compiled, rule{test: re, exclude: r.Exclude, loader: loader})
	}
	return compiled, nil
}

// excludes reports whether path (relative to base when possible) matches an exclude glob
func (r rule) excludes(base, path string) bool {
	candidate := filepath.ToSlash(path)
	if rel, err := filepath.Rel(base, path); err == nil && !strings.HasPrefix(rel, "..") {
		candidate = filepath.ToSlash(rel)
	}
	candidate = strings.TrimPrefix(candidate, "/")

	for _, pattern := range r.exclude {
		if ok, _ := doublestar.Match(pattern, candidate); ok {
			return true
		}
	}
	return false
}

// rulesPlugin loads files matching a rule's test with the rule's loader.
// Excluded files are left to esbuild's default loading; the first matching rule wins.
func rulesPlugin(rules []rule, base string, verbose bool) api.Plugin {
	return api.Plugin{
		Name: "pagepack-rules",
		Setup: func(build api.PluginBuild) {
			for _, r := range rules {
				build.OnLoad(api.OnLoadOptions{Filter: r.test.String(), Namespace: "file"},
					func(args api.OnLoadArgs) (api.OnLoadResult, error) {
						if r.excludes(base, args.Path) {
							return api.OnLoadResult{}, nil
						}

						// #nosec G304 - paths come from esbuild's resolver
						data, err := os.ReadFile(args.Path)
						if err != nil {
							return api.OnLoadResult{}, fmt.Errorf("failed to read %s: %w", args.Path, err)
						}
						if verbose {
							log.Printf("[Bundler] Loading %s with %s loader", args.Path, loaderName(r.loader))
						}

						contents := string(data)
						resolveDir := filepath.Dir(args.Path)
						return api.OnLoadResult{
							Contents:   &contents,
							ResolveDir: resolveDir,
							Loader:     r.loader,
						}, nil
					})
			}
		},
	}
}

func loaderName(l api.Loader) string {
	for name, loader := range loaders {
		if loader == l {
			return name
		}
	}
	return "default"
}
