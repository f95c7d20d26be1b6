// Package telemetry wires build and server failures into Sentry.
// Every function is a no-op until Init succeeds with a non-empty DSN.
package telemetry

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/hannes/pagepack/config"
)

var enabled atomic.Bool

// Init configures the Sentry client from cfg. An empty DSN leaves reporting disabled.
func Init(cfg config.SentryConfig, mode config.Mode) error {
	if cfg.DSN == "" {
		return nil
	}

	environment := cfg.Environment
	if environment == "" {
		environment = string(mode)
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: environment,
		Release:     cfg.Release,
		SampleRate:  cfg.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize sentry: %w", err)
	}

	enabled.Store(true)
	log.Printf("[Telemetry] Error reporting enabled (environment: %s)", environment)
	return nil
}

// Enabled reports whether Sentry reporting is active
func Enabled() bool {
	return enabled.Load()
}

// CaptureError reports err with the given tags
func CaptureError(err error, tags map[string]string) {
	if err == nil || !Enabled() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

// Flush waits up to timeout for buffered events to be sent
func Flush(timeout time.Duration) {
	if !Enabled() {
		return
	}
	if !sentry.Flush(timeout) {
		log.Printf("[Telemetry] Timed out flushing events")
	}
}
