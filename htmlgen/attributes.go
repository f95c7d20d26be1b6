package htmlgen

import (
	"path"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/net/html"
)

// Script loading attributes
const (
	AttrSync   = "sync"
	AttrDefer  = "defer"
	AttrAsync  = "async"
	AttrModule = "module"
)

// ScriptAttributes decides which loading attribute each injected script gets.
// Pattern lists are globs matched against the script's file name; module wins
// over async, async wins over defer, and anything unmatched gets Default.
type ScriptAttributes struct {
	Default string
	Async   []string
	Defer   []string
	Module  []string
}

// AttributeFor returns the loading attribute for the script with the given asset name
func (s ScriptAttributes) AttributeFor(name string) string {
	switch {
	case matchAny(s.Module, name):
		return AttrModule
	case matchAny(s.Async, name):
		return AttrAsync
	case matchAny(s.Defer, name):
		return AttrDefer
	case s.Default == "":
		return AttrSync
	default:
		return s.Default
	}
}

func matchAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
		// Let bare patterns like "vendor*.js" match nested assets too
		if ok, _ := doublestar.Match(pattern, path.Base(name)); ok {
			return true
		}
	}
	return false
}

func scriptAttrs(src, attribute string) []html.Attribute {
	attrs := []html.Attribute{{Key: "src", Val: src}}
	switch attribute {
	case AttrDefer:
		attrs = append(attrs, html.Attribute{Key: "defer"})
	case AttrAsync:
		attrs = append(attrs, html.Attribute{Key: "async"})
	case AttrModule:
		attrs = append(attrs, html.Attribute{Key: "type", Val: "module"})
	}
	return attrs
}
