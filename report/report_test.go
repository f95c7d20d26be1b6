package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hannes/pagepack/bundler"
	"github.com/hannes/pagepack/config"
	"github.com/hannes/pagepack/store"
)

func TestHumanSize(t *testing.T) {
	testCases := []struct {
		in       int64
		expected string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, HumanSize(tc.in))
	}
}

func TestWritePlain(t *testing.T) {
	result := &bundler.Result{
		ID:       "b-1",
		Mode:     config.ModeProduction,
		Duration: 42 * time.Millisecond,
		Assets: []bundler.Asset{
			{Name: "index.bundle.js", Size: 2048, Kind: bundler.KindScript},
			{Name: "index.html", Size: 300, Kind: bundler.KindHTML},
		},
		Warnings: []bundler.Message{{Text: "unused import", File: "src/a.js", Line: 3, Column: 1}},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, result, false))

	out := buf.String()
	assert.Contains(t, out, "index.bundle.js")
	assert.Contains(t, out, "2.0 KiB")
	assert.Contains(t, out, "WARNING src/a.js:3:1: unused import")
	assert.Contains(t, out, "Built 2.3 KiB in 42ms (mode: production, build: b-1)")
}

func TestWriteFailure(t *testing.T) {
	result := &bundler.Result{
		ID:     "b-2",
		Mode:   config.ModeDevelopment,
		Errors: []bundler.Message{{Text: "Unexpected \";\""}},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, result, false))
	assert.Contains(t, buf.String(), "ERROR Unexpected \";\"")
	assert.Contains(t, buf.String(), "Failed with 1 errors")
}

func TestHistory(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, History(&buf, nil, false))
		assert.Equal(t, "No builds recorded\n", buf.String())
	})

	t.Run("records", func(t *testing.T) {
		records := []store.Record{
			{
				ID:         "b-2",
				Mode:       "development",
				Status:     store.StatusFailed,
				StartedAt:  time.Now(),
				Duration:   15 * time.Millisecond,
				FirstError: "src/index.js:1:6: Expected identifier",
			},
			{
				ID:        "b-1",
				Mode:      "production",
				Status:    store.StatusSuccess,
				StartedAt: time.Now().Add(-time.Hour),
				Duration:  1200 * time.Millisecond,
				Assets:    []bundler.Asset{{Name: "a.js", Size: 1024}, {Name: "a.css", Size: 512}},
			},
		}

		var buf bytes.Buffer
		require.NoError(t, History(&buf, records, false))
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 4)
		assert.Contains(t, lines[0], "Started")
		assert.Contains(t, lines[1], "failed")
		assert.Contains(t, lines[1], "b-2")
		assert.Contains(t, lines[2], "ERROR src/index.js:1:6: Expected identifier")
		assert.Contains(t, lines[3], "1.5 KiB")
		assert.Contains(t, lines[3], "1.2s")
	})
}
