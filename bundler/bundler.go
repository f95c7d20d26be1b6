// Package bundler builds the site's entry points into the output directory
// with esbuild, then generates the HTML page that loads them.
package bundler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/google/uuid"

	"github.com/hannes/pagepack/config"
	"github.com/hannes/pagepack/htmlgen"
)

// ErrClosed is returned by Build after Close
var ErrClosed = errors.New("bundler is closed")

// Bundler runs builds for one configuration. Builds are serialized and
// reuse the same esbuild context, so rebuilds are incremental.
type Bundler struct {
	cfg          *config.Config
	rules        []rule
	extraScripts []string

	mu     sync.Mutex
	esctx  api.BuildContext
	closed bool
}

// Option customizes a Bundler
type Option func(*Bundler)

// WithExtraScripts appends script URLs to the generated HTML page, after the bundles
func WithExtraScripts(urls ...string) Option {
	return func(b *Bundler) {
		b.extraScripts = append(b.extraScripts, urls...)
	}
}

// New creates a bundler for cfg
func New(cfg *config.Config, opts ...Option) (*Bundler, error) {
	rules, err := compileRules(cfg.Rules)
	if err != nil {
		return nil, err
	}

	b := &Bundler{cfg: cfg, rules: rules}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Config returns the bundler's configuration
func (b *Bundler) Config() *config.Config {
	return b.cfg
}

// OutputDir returns the absolute output directory
func (b *Bundler) OutputDir() string {
	return b.cfg.ResolvePath(b.cfg.Output.Path)
}

// Build runs one build. On esbuild errors, including rejected options, it
// returns a non-nil result together with a *BuildError, so callers can still
// report and record it.
func (b *Bundler) Build(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	result := &Result{
		ID:      uuid.NewString(),
		Mode:    b.cfg.Mode,
		Started: time.Now(),
	}

	if err := b.ensureContext(); err != nil {
		var buildErr *BuildError
		if errors.As(err, &buildErr) {
			result.Errors = buildErr.Messages
			result.Duration = time.Since(result.Started)
			return result, err
		}
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			b.esctx.Cancel()
		case <-done:
		}
	}()
	res := b.esctx.Rebuild()
	close(done)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result.Warnings = convertMessages(res.Warnings)
	if len(res.Errors) > 0 {
		result.Errors = convertMessages(res.Errors)
		result.Duration = time.Since(result.Started)
		return result, &BuildError{Messages: result.Errors}
	}

	assets, err := b.writeOutputs(res.OutputFiles)
	if err != nil {
		return nil, err
	}

	if b.cfg.HTML.Enabled {
		extra, err := b.writeExtras(assets)
		if err != nil {
			return nil, err
		}
		assets = append(assets, extra...)
	}

	sort.Slice(assets, func(i, j int) bool { return assets[i].Name < assets[j].Name })
	result.Assets = assets
	result.Duration = time.Since(result.Started)
	return result, nil
}

// Close releases the esbuild context
func (b *Bundler) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.esctx != nil {
		b.esctx.Dispose()
		b.esctx = nil
	}
	b.closed = true
	return nil
}

func (b *Bundler) ensureContext() error {
	if b.esctx != nil {
		return nil
	}

	plugins := []api.Plugin{rulesPlugin(b.rules, b.cfg.ResolvePath("."), b.cfg.Logging.LogVerbose)}
	opts, err := buildOptions(b.cfg, plugins)
	if err != nil {
		return err
	}

	esctx, ctxErr := api.Context(opts)
	if ctxErr != nil {
		return &BuildError{Messages: convertMessages(ctxErr.Errors)}
	}
	b.esctx = esctx
	return nil
}

func (b *Bundler) writeOutputs(files []api.OutputFile) ([]Asset, error) {
	outDir := b.OutputDir()
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	assets := make([]Asset, 0, len(files))
	for _, f := range files {
		if err := os.MkdirAll(filepath.Dir(f.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := os.WriteFile(f.Path, f.Contents, 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", f.Path, err)
		}
		name, err := filepath.Rel(outDir, f.Path)
		if err != nil {
			name = filepath.Base(f.Path)
		}
		name = filepath.ToSlash(name)
		assets = append(assets, Asset{Name: name, Size: int64(len(f.Contents)), Kind: assetKind(name)})
	}
	return assets, nil
}

// writeExtras copies the favicon and writes the HTML page
func (b *Bundler) writeExtras(assets []Asset) ([]Asset, error) {
	var extra []Asset
	outDir := b.OutputDir()

	favicon := ""
	if b.cfg.HTML.Favicon != "" {
		src := b.cfg.ResolvePath(b.cfg.HTML.Favicon)
		favicon = filepath.Base(src)
		size, err := copyFile(src, filepath.Join(outDir, favicon))
		if err != nil {
			return nil, fmt.Errorf("failed to copy favicon: %w", err)
		}
		extra = append(extra, Asset{Name: favicon, Size: size, Kind: KindAsset})
	}

	template := b.cfg.ResolvePath(b.cfg.HTML.Template)
	if template != "" {
		if _, err := os.Stat(template); os.IsNotExist(err) {
			log.Printf("[Bundler] HTML template %s not found, using the default page", template)
			template = ""
		}
	}

	names := make([]string, 0, len(assets))
	for _, a := range assets {
		if a.Kind == KindScript || a.Kind == KindStylesheet {
			names = append(names, a.Name)
		}
	}
	sort.Strings(names)

	page, err := htmlgen.Generate(htmlgen.Options{
		Title:      b.cfg.HTML.Title,
		Template:   template,
		PublicPath: b.cfg.Output.PublicPath,
		Inject:     b.cfg.HTML.Inject,
		Mode:       string(b.cfg.Mode),
		Favicon:    favicon,
		Attributes: htmlgen.ScriptAttributes{
			Default: b.cfg.ScriptAttributes.DefaultAttribute,
			Async:   b.cfg.ScriptAttributes.Async,
			Defer:   b.cfg.ScriptAttributes.Defer,
			Module:  b.cfg.ScriptAttributes.Module,
		},
		ExtraScripts: b.extraScripts,
	}, names)
	if err != nil {
		return nil, err
	}

	htmlPath := filepath.Join(outDir, b.cfg.HTML.Filename)
	if err := os.WriteFile(htmlPath, page, 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", htmlPath, err)
	}
	return append(extra, Asset{Name: filepath.ToSlash(b.cfg.HTML.Filename), Size: int64(len(page)), Kind: KindHTML}), nil
}

func copyFile(src, dst string) (int64, error) {
	// #nosec G304 - favicon path comes from the build configuration
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := in.Close(); err != nil {
			log.Printf("[Bundler] Failed to close %s: %v", src, err)
		}
	}()

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	return n, err
}
