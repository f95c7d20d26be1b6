package bundler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hannes/pagepack/config"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

func newTestConfig(t *testing.T, mode config.Mode) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Mode = mode
	cfg.Context = t.TempDir()
	cfg.Database.Driver = "memory"
	return cfg
}

func readOutput(t *testing.T, cfg *config.Config, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(cfg.ResolvePath(cfg.Output.Path), name))
	require.NoError(t, err)
	return string(data)
}

func assetNames(r *Result) []string {
	names := make([]string, len(r.Assets))
	for i, a := range r.Assets {
		names[i] = a.Name
	}
	return names
}

func TestBuildDevelopment(t *testing.T) {
	cfg := newTestConfig(t, config.ModeDevelopment)
	writeFiles(t, cfg.Context, map[string]string{
		"src/index.js":  "import './style.css';\nimport { greet } from './greet.js';\nconst el = <div>{greet('dev')}</div>;\nconsole.log(el, process.env.NODE_ENV);\n",
		"src/greet.js":  "export function greet(name) { return `hello ${name}`; }\n",
		"src/style.css": "body { color: red; }\n",
	})

	b, err := New(cfg)
	require.NoError(t, err)
	defer b.Close()

	result, err := b.Build(context.Background())
	require.NoError(t, err)
	require.True(t, result.Succeeded())
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, config.ModeDevelopment, result.Mode)

	assert.ElementsMatch(t, []string{
		"index.bundle.css",
		"index.bundle.css.map",
		"index.bundle.js",
		"index.bundle.js.map",
		"index.html",
	}, assetNames(result))

	js := readOutput(t, cfg, "index.bundle.js")
	assert.Contains(t, js, "//# sourceMappingURL=index.bundle.js.map")
	assert.Contains(t, js, `"development"`)
	assert.Contains(t, js, "React.createElement")

	jsMap := readOutput(t, cfg, "index.bundle.js.map")
	assert.Contains(t, jsMap, "sourcesContent")

	page := readOutput(t, cfg, "index.html")
	assert.Contains(t, page, "<title>Custom template</title>")
	assert.Contains(t, page, `<script src="/index.bundle.js" defer=""></script>`)
	assert.Contains(t, page, `<link href="/index.bundle.css" rel="stylesheet"/>`)
}

func TestBuildProduction(t *testing.T) {
	cfg := newTestConfig(t, config.ModeProduction)
	writeFiles(t, cfg.Context, map[string]string{
		"src/index.js":            "import './style.css';\nfunction longFunctionName(argument) { return argument * 2; }\nconsole.log(longFunctionName(21), process.env.NODE_ENV);\n",
		"src/style.css":           "body {\n  color: red;\n}\n",
		"src/index.template.html": "<!DOCTYPE html><html><head><title>{{ .Title }}</title></head><body><main></main></body></html>",
	})

	b, err := New(cfg)
	require.NoError(t, err)
	defer b.Close()

	result, err := b.Build(context.Background())
	require.NoError(t, err)

	js := readOutput(t, cfg, "index.bundle.js")
	assert.NotContains(t, js, "longFunctionName")
	assert.Contains(t, js, `"production"`)

	css := readOutput(t, cfg, "index.bundle.css")
	assert.Contains(t, css, "body{color:red}")

	jsMap := readOutput(t, cfg, "index.bundle.js.map")
	assert.NotContains(t, jsMap, "sourcesContent")

	page := readOutput(t, cfg, "index.html")
	assert.Contains(t, page, "<main></main>")
	assert.Contains(t, page, `defer=""`)
	assert.Greater(t, result.TotalSize(), int64(0))
}

func TestBuildReportsErrors(t *testing.T) {
	cfg := newTestConfig(t, config.ModeDevelopment)
	writeFiles(t, cfg.Context, map[string]string{
		"src/index.js": "const = ;\n",
	})

	b, err := New(cfg)
	require.NoError(t, err)
	defer b.Close()

	result, err := b.Build(context.Background())
	require.Error(t, err)

	var buildErr *BuildError
	require.True(t, errors.As(err, &buildErr))
	require.NotEmpty(t, buildErr.Messages)
	assert.Equal(t, "src/index.js", buildErr.Messages[0].File)
	assert.Equal(t, 1, buildErr.Messages[0].Line)

	require.NotNil(t, result)
	assert.False(t, result.Succeeded())
	_, statErr := os.Stat(filepath.Join(cfg.ResolvePath(cfg.Output.Path), "index.html"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestBuildRejectedOptionsReturnResult(t *testing.T) {
	cfg := newTestConfig(t, config.ModeDevelopment)
	cfg.Entries = map[string]string{"a": "src/a.js", "b": "src/b.js"}
	cfg.Output.Path = ""
	writeFiles(t, cfg.Context, map[string]string{
		"src/a.js": "console.log('a');\n",
		"src/b.js": "console.log('b');\n",
	})

	b, err := New(cfg)
	require.NoError(t, err)
	defer b.Close()

	result, err := b.Build(context.Background())
	require.Error(t, err)

	var buildErr *BuildError
	require.True(t, errors.As(err, &buildErr))
	require.NotEmpty(t, buildErr.Messages)
	require.NotNil(t, result)
	assert.NotEmpty(t, result.ID)
	assert.False(t, result.Succeeded())
	assert.Equal(t, buildErr.Messages, result.Errors)
}

func TestBuildRelativeContext(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"site/src/index.js": "console.log('relative');\n",
	})
	t.Chdir(dir)

	cfg := config.DefaultConfig()
	cfg.Mode = config.ModeDevelopment
	cfg.Context = "site"
	cfg.Database.Driver = "memory"

	b, err := New(cfg)
	require.NoError(t, err)
	defer b.Close()

	result, err := b.Build(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Contains(t, assetNames(result), "index.bundle.js")
	_, statErr := os.Stat(filepath.Join(dir, "site", "dist", "index.bundle.js"))
	assert.NoError(t, statErr)
}

func TestBuildExcludedFilesUseDefaultLoader(t *testing.T) {
	cfg := newTestConfig(t, config.ModeDevelopment)
	writeFiles(t, cfg.Context, map[string]string{
		"src/index.js":                     "import widget from 'widget';\nconsole.log(widget);\n",
		"node_modules/widget/index.js":     "export default <span/>;\n",
		"node_modules/widget/package.json": `{"name":"widget","main":"index.js"}`,
	})

	b, err := New(cfg)
	require.NoError(t, err)
	defer b.Close()

	_, err = b.Build(context.Background())
	require.Error(t, err, "JSX inside node_modules must not go through the jsx rule")

	var buildErr *BuildError
	require.True(t, errors.As(err, &buildErr))
	assert.Contains(t, buildErr.Messages[0].File, "node_modules/widget/index.js")
}

func TestBuildIncrementalRebuild(t *testing.T) {
	cfg := newTestConfig(t, config.ModeDevelopment)
	cfg.HTML.Enabled = false
	writeFiles(t, cfg.Context, map[string]string{
		"src/index.js": "console.log('first');\n",
	})

	b, err := New(cfg)
	require.NoError(t, err)
	defer b.Close()

	first, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Contains(t, readOutput(t, cfg, "index.bundle.js"), "first")

	writeFiles(t, cfg.Context, map[string]string{
		"src/index.js": "console.log('second');\n",
	})
	second, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Contains(t, readOutput(t, cfg, "index.bundle.js"), "second")
	assert.NotContains(t, assetNames(second), "index.html")
}

func TestBuildExtraScripts(t *testing.T) {
	cfg := newTestConfig(t, config.ModeDevelopment)
	writeFiles(t, cfg.Context, map[string]string{"src/index.js": "console.log(1);\n"})

	b, err := New(cfg, WithExtraScripts("/__pagepack/livereload.js"))
	require.NoError(t, err)
	defer b.Close()

	_, err = b.Build(context.Background())
	require.NoError(t, err)
	assert.Contains(t, readOutput(t, cfg, "index.html"), `<script src="/__pagepack/livereload.js"></script>`)
}

func TestBuildCanceledContext(t *testing.T) {
	cfg := newTestConfig(t, config.ModeDevelopment)
	b, err := New(cfg)
	require.NoError(t, err)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = b.Build(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildAfterClose(t *testing.T) {
	cfg := newTestConfig(t, config.ModeDevelopment)
	b, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, b.Close())

	_, err = b.Build(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
