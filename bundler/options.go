package bundler

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/hannes/pagepack/config"
)

var targets = map[string]api.Target{
	"es5":    api.ES5,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

// sourceMapOptions maps a devtool name onto esbuild's source map settings
func sourceMapOptions(devtool config.Devtool) (api.SourceMap, api.SourcesContent) {
	switch devtool {
	case config.DevtoolSourceMap:
		return api.SourceMapLinked, api.SourcesContentInclude
	case config.DevtoolCheapSourceMap:
		// No embedded sources keeps the map small
		return api.SourceMapLinked, api.SourcesContentExclude
	case config.DevtoolInlineSourceMap:
		return api.SourceMapInline, api.SourcesContentInclude
	case config.DevtoolHiddenSourceMap:
		return api.SourceMapExternal, api.SourcesContentInclude
	default:
		return api.SourceMapNone, api.SourcesContentExclude
	}
}

// entryNames converts a webpack-style filename pattern into esbuild entry names
// and an output extension override. "[name].bundle.js" becomes "[name].bundle".
func entryNames(filename string) (string, map[string]string) {
	pattern := strings.NewReplacer("[contenthash]", "[hash]", "[chunkhash]", "[hash]").Replace(filename)

	ext := filepath.Ext(pattern)
	switch ext {
	case ".js":
		return strings.TrimSuffix(pattern, ext), nil
	case ".mjs", ".cjs":
		return strings.TrimSuffix(pattern, ext), map[string]string{".js": ext}
	default:
		return pattern, nil
	}
}

// buildOptions translates the configuration into esbuild options
func buildOptions(cfg *config.Config, plugins []api.Plugin) (api.BuildOptions, error) {
	target, ok := targets[strings.ToLower(cfg.Target)]
	if !ok {
		return api.BuildOptions{}, fmt.Errorf("unsupported target %q", cfg.Target)
	}

	names, outExtension := entryNames(cfg.Output.Filename)
	sourcemap, sourcesContent := sourceMapOptions(cfg.ResolvedDevtool())
	workDir := cfg.ResolvePath(".")

	opts := api.BuildOptions{
		AbsWorkingDir:  workDir,
		Outdir:         cfg.ResolvePath(cfg.Output.Path),
		EntryNames:     names,
		OutExtension:   outExtension,
		Bundle:         true,
		Write:          false,
		Metafile:       true,
		Platform:       api.PlatformBrowser,
		Target:         target,
		Sourcemap:      sourcemap,
		SourcesContent: sourcesContent,
		Define: map[string]string{
			"process.env.NODE_ENV": strconv.Quote(string(cfg.Mode)),
		},
		Loader: map[string]api.Loader{
			".css": api.LoaderCSS,
		},
		LogLevel: api.LogLevelSilent,
		Plugins:  plugins,
	}

	// esbuild's minify flags are global, so the script minimizer alone also
	// minifies stylesheets. The stylesheet case keeps a stylesheet-only list working.
	for _, m := range cfg.Minimizers() {
		switch m {
		case config.MinimizerScript:
			opts.MinifyWhitespace = true
			opts.MinifyIdentifiers = true
			opts.MinifySyntax = true
		case config.MinimizerStylesheet:
			opts.MinifyWhitespace = true
			opts.MinifySyntax = true
		}
	}

	entries := cfg.EntryPoints()
	if single, ok := entries[""]; ok && len(entries) == 1 {
		opts.EntryPoints = []string{cfg.ResolvePath(single)}
		return opts, nil
	}

	ordered := make([]string, 0, len(entries))
	for name := range entries {
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)
	for _, name := range ordered {
		opts.EntryPointsAdvanced = append(opts.EntryPointsAdvanced, api.EntryPoint{
			InputPath:  cfg.ResolvePath(entries[name]),
			OutputPath: name,
		})
	}
	return opts, nil
}
