// Package htmlgen renders the HTML page that loads the bundled assets.
//
// The page comes from a template (Go html/template syntax) or a built-in
// default document. Stylesheet links are appended to <head> and script tags
// to <body> (or <head>), in asset order, each prefixed with the public path.
package htmlgen

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const defaultDocument = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{ .Title }}</title>
</head>
<body>
</body>
</html>
`

// Options controls page generation
type Options struct {
	Title      string
	Template   string // Path to the template file; empty uses the default document
	PublicPath string
	Inject     string // "body" or "head"
	Mode       string
	Favicon    string // Asset name of the favicon, already copied to the output directory
	Attributes ScriptAttributes

	// ExtraScripts are absolute URLs appended after the bundle scripts without loading attributes
	ExtraScripts []string
}

// TemplateData is what templates can reference
type TemplateData struct {
	Title      string
	PublicPath string
	Mode       string
}

// Generate renders the page for the given asset names (relative to the output directory)
func Generate(opts Options, assets []string) ([]byte, error) {
	source := defaultDocument
	if opts.Template != "" {
		// #nosec G304 - template path comes from the build configuration
		data, err := os.ReadFile(opts.Template)
		if err != nil {
			return nil, fmt.Errorf("failed to read html template: %w", err)
		}
		source = string(data)
	}

	rendered, err := executeTemplate(source, TemplateData{
		Title:      opts.Title,
		PublicPath: opts.PublicPath,
		Mode:       opts.Mode,
	})
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(strings.NewReader(rendered))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html template: %w", err)
	}

	head := findElement(doc, atom.Head)
	body := findElement(doc, atom.Body)
	if head == nil || body == nil {
		return nil, fmt.Errorf("html template has no head or body element")
	}

	scriptParent := body
	if opts.Inject == "head" {
		scriptParent = head
	}

	if opts.Favicon != "" {
		head.AppendChild(element(atom.Link, []html.Attribute{
			{Key: "rel", Val: "icon"},
			{Key: "href", Val: assetURL(opts.PublicPath, opts.Favicon)},
		}))
	}

	for _, name := range assets {
		switch path.Ext(name) {
		case ".css":
			head.AppendChild(element(atom.Link, []html.Attribute{
				{Key: "href", Val: assetURL(opts.PublicPath, name)},
				{Key: "rel", Val: "stylesheet"},
			}))
		case ".js", ".mjs":
			attr := opts.Attributes.AttributeFor(name)
			scriptParent.AppendChild(element(atom.Script, scriptAttrs(assetURL(opts.PublicPath, name), attr)))
		}
	}

	for _, src := range opts.ExtraScripts {
		scriptParent.AppendChild(element(atom.Script, []html.Attribute{{Key: "src", Val: src}}))
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, fmt.Errorf("failed to render html: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func executeTemplate(source string, data TemplateData) (string, error) {
	tmpl, err := template.New("page").Parse(source)
	if err != nil {
		return "", fmt.Errorf("failed to parse html template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute html template: %w", err)
	}
	return buf.String(), nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func element(a atom.Atom, attrs []html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: a,
		Data:     a.String(),
		Attr:     attrs,
	}
}

func assetURL(publicPath, name string) string {
	if publicPath == "" {
		return name
	}
	return strings.TrimSuffix(publicPath, "/") + "/" + strings.TrimPrefix(name, "/")
}
