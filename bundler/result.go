package bundler

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/hannes/pagepack/config"
)

// Asset kinds
const (
	KindScript     = "script"
	KindStylesheet = "stylesheet"
	KindSourceMap  = "sourcemap"
	KindHTML       = "html"
	KindAsset      = "asset"
)

// Asset is one file written to the output directory
type Asset struct {
	Name string `json:"name"` // Path relative to the output directory, slash separated
	Size int64  `json:"size"`
	Kind string `json:"kind"`
}

// Message is a located build diagnostic
type Message struct {
	Text   string `json:"text"`
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// String formats the message as file:line:column: text
func (m Message) String() string {
	if m.File == "" {
		return m.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", m.File, m.Line, m.Column, m.Text)
}

// Result describes one build
type Result struct {
	ID       string        `json:"id"`
	Mode     config.Mode   `json:"mode"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Assets   []Asset       `json:"assets"`
	Warnings []Message     `json:"warnings"`
	Errors   []Message     `json:"errors"`
}

// Succeeded reports whether the build produced no errors
func (r *Result) Succeeded() bool {
	return len(r.Errors) == 0
}

// TotalSize returns the combined size of all assets
func (r *Result) TotalSize() int64 {
	var total int64
	for _, a := range r.Assets {
		total += a.Size
	}
	return total
}

// BuildError is returned when esbuild reports errors
type BuildError struct {
	Messages []Message
}

func (e *BuildError) Error() string {
	if len(e.Messages) == 1 {
		return "build failed: " + e.Messages[0].String()
	}
	lines := make([]string, len(e.Messages))
	for i, m := range e.Messages {
		lines[i] = m.String()
	}
	return fmt.Sprintf("build failed with %d errors:\n%s", len(e.Messages), strings.Join(lines, "\n"))
}

func convertMessages(msgs []api.Message) []Message {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = Message{Text: m.Text}
		if m.PluginName != "" {
			out[i].Text = fmt.Sprintf("[plugin %s] %s", m.PluginName, m.Text)
		}
		if m.Location != nil {
			out[i].File = m.Location.File
			out[i].Line = m.Location.Line
			out[i].Column = m.Location.Column
		}
	}
	return out
}

func assetKind(name string) string {
	switch path.Ext(name) {
	case ".js", ".mjs", ".cjs":
		return KindScript
	case ".css":
		return KindStylesheet
	case ".map":
		return KindSourceMap
	case ".html", ".htm":
		return KindHTML
	default:
		return KindAsset
	}
}
