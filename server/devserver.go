package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hannes/pagepack/bundler"
	"github.com/hannes/pagepack/config"
	"github.com/hannes/pagepack/report"
	"github.com/hannes/pagepack/store"
	"github.com/hannes/pagepack/telemetry"
	"github.com/hannes/pagepack/watch"
)

const keepAliveInterval = 15 * time.Second

// DevServer builds the site, serves the content base and rebuilds on change.
// In inline mode every generated page loads the live reload client.
type DevServer struct {
	config      *config.Config
	bundler     *bundler.Bundler
	builds      store.BuildStore
	out         io.Writer
	hub         *hub
	contentRoot string
	router      chi.Router

	mu   sync.RWMutex
	port int
	last *bundler.Result
}

// NewDevServer creates a development server. Build reports go to out and
// build records to builds.
func NewDevServer(cfg *config.Config, builds store.BuildStore, out io.Writer) (*DevServer, error) {
	var opts []bundler.Option
	if cfg.DevServer.Inline {
		opts = append(opts, bundler.WithExtraScripts(LiveReloadPath))
	}

	b, err := bundler.New(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bundler: %w", err)
	}
	if builds == nil {
		builds = store.NewMemoryStore()
	}
	if out == nil {
		out = io.Discard
	}

	d := &DevServer{
		config:      cfg,
		bundler:     b,
		builds:      builds,
		out:         out,
		hub:         newHub(),
		contentRoot: cfg.ResolvePath(cfg.DevServer.ContentBase),
	}
	d.router = d.buildRouter()
	return d, nil
}

// Handler returns the dev server's HTTP handler
func (d *DevServer) Handler() http.Handler {
	return d.router
}

// Port returns the bound port, or 0 before Start has bound the socket
func (d *DevServer) Port() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.port
}

// LastResult returns the most recent build result
func (d *DevServer) LastResult() *bundler.Result {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.last
}

// Rebuild runs one build, reports and records it, and notifies live reload
// clients. Build failures return the result along with a *bundler.BuildError.
func (d *DevServer) Rebuild(ctx context.Context) (*bundler.Result, error) {
	result, err := d.bundler.Build(ctx)

	var buildErr *bundler.BuildError
	if err != nil && !errors.As(err, &buildErr) {
		return nil, err
	}

	if werr := report.Write(d.out, result, d.config.Stats.Colors); werr != nil {
		log.Printf("[DevServer] Failed to write build report: %v", werr)
	}
	if serr := d.builds.SaveBuild(ctx, store.NewRecord(result)); serr != nil {
		log.Printf("[DevServer] Failed to record build %s: %v", result.ID, serr)
	}

	d.mu.Lock()
	d.last = result
	d.mu.Unlock()

	if buildErr != nil {
		telemetry.CaptureError(buildErr, map[string]string{
			"build_id": result.ID,
			"mode":     string(result.Mode),
		})
		messages := make([]string, len(result.Errors))
		for i, m := range result.Errors {
			messages[i] = m.String()
		}
		d.hub.broadcast(newEvent(EventError, map[string]interface{}{
			"id":     result.ID,
			"errors": messages,
		}))
		return result, err
	}

	n := d.hub.broadcast(newEvent(EventReload, map[string]interface{}{"id": result.ID}))
	if d.config.Logging.LogVerbose {
		log.Printf("[DevServer] Build %s sent to %d clients", result.ID, n)
	}
	return result, nil
}

// Start runs the initial build, watches the project for changes and serves
// until ctx is cancelled. A failing initial build does not stop the server.
func (d *DevServer) Start(ctx context.Context) error {
	if _, err := d.Rebuild(ctx); err != nil {
		var buildErr *bundler.BuildError
		if !errors.As(err, &buildErr) {
			return err
		}
	}

	root := d.config.ResolvePath(".")
	w, err := watch.New(root, watch.Options{
		Ignore:  d.watchIgnores(root),
		Verbose: d.config.Logging.LogVerbose,
	})
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		if err := w.Run(watchCtx, func(paths []string) {
			log.Printf("[DevServer] %d file(s) changed, rebuilding", len(paths))
			if _, err := d.Rebuild(watchCtx); err != nil && watchCtx.Err() == nil {
				log.Printf("[DevServer] Rebuild failed: %v", err)
			}
		}); err != nil {
			log.Printf("[DevServer] Watcher stopped: %v", err)
		}
	}()
	defer func() {
		stopWatch()
		<-watchDone
	}()

	srv := &http.Server{
		Addr:              d.config.DevServer.ListenAddr(),
		Handler:           d.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       d.config.Server.IdleTimeout,
	}
	scheme := "http"
	if d.config.DevServer.HTTPS {
		certs, err := NewCertManager(
			d.config.ResolvePath(d.config.DevServer.CertPath),
			d.config.ResolvePath(d.config.DevServer.KeyPath),
		)
		if err != nil {
			return fmt.Errorf("failed to set up HTTPS: %w", err)
		}
		srv.TLSConfig = certs.TLSConfig()
		scheme = "https"
	}

	return serve(ctx, "DevServer", srv, func(port int) {
		log.Printf("[DevServer] dev server is listening on %s://localhost:%d", scheme, port)
		log.Printf("[DevServer] Serving %s, watching %s", d.contentRoot, root)
		d.mu.Lock()
		d.port = port
		d.mu.Unlock()
	})
}

// Close releases the bundler
func (d *DevServer) Close() error {
	return d.bundler.Close()
}

// watchIgnores lists the generated and vendored paths under root that must not trigger rebuilds
func (d *DevServer) watchIgnores(root string) []string {
	ignores := []string{".git", ".pagepack", "**/node_modules/**"}
	for _, p := range []string{d.bundler.OutputDir(), d.contentRoot} {
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		ignores = append(ignores, filepath.ToSlash(rel))
	}
	for _, rule := range d.config.Rules {
		ignores = append(ignores, rule.Exclude...)
	}
	return ignores
}

func (d *DevServer) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	if telemetry.Enabled() {
		r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	}
	r.Use(requestID)
	if d.config.Logging.LogRequests {
		r.Use(requestLogger("DevServer"))
	}

	r.Get(LiveReloadPath, d.handleLiveReload)
	r.Get(EventsPath, d.handleEvents)
	r.Get(BuildsPath, d.handleBuilds)
	r.Get(BuildsPath+"/{buildID}", d.handleBuild)
	r.Handle("/*", noCache(http.FileServer(http.Dir(d.contentRoot))))
	return r
}

func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		next.ServeHTTP(w, r)
	})
}

func (d *DevServer) handleLiveReload(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := io.WriteString(w, liveReloadScript); err != nil {
		log.Printf("[DevServer] Failed to write live reload client: %v", err)
	}
}

func (d *DevServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, unsubscribe := d.hub.subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, canFlush := w.(http.Flusher)
	flush := func() {
		if canFlush {
			flusher.Flush()
		}
	}
	fmt.Fprint(w, ": connected\n\n")
	flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case evt := <-events:
			fmt.Fprint(w, evt.Format())
			flush()
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (d *DevServer) handleBuilds(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := d.builds.ListBuilds(r.Context(), limit)
	if err != nil {
		log.Printf("[DevServer] Failed to list builds: %v", err)
		http.Error(w, "failed to list builds", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []store.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (d *DevServer) handleBuild(w http.ResponseWriter, r *http.Request) {
	rec, err := d.builds.GetBuild(r.Context(), chi.URLParam(r, "buildID"))
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "build not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("[DevServer] Failed to get build: %v", err)
		http.Error(w, "failed to get build", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
