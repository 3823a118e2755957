// Package template loads card templates and turns them into visual trees.
//
// A template is a file whose extension selects how it is evaluated:
//
//	.svg   Go text/template producing SVG markup
//	.html  Go text/template producing HTML markup (screenshot mode)
//	.dot   Go text/template producing a Graphviz DOT graph
//	.js    JavaScript defining render(props, card), evaluated by QuickJS
//
// The template identifier is the file path without extension, for example
// "blog/post" for blog/post.svg. Text templates receive a [Data] value;
// JavaScript templates receive the same values as two arguments.
package template

import (
	"bytes"
	"path"
	"strings"
	"text/template"

	"github.com/matzehuels/linkcard/pkg/card"
	"github.com/matzehuels/linkcard/pkg/errors"
)

// Kind is the template language.
type Kind string

// Template kinds, named by file extension.
const (
	KindSVG  Kind = "svg"
	KindHTML Kind = "html"
	KindDOT  Kind = "dot"
	KindJS   Kind = "js"
)

// kindFor returns the kind for a file name, or "" if unsupported.
func kindFor(name string) Kind {
	switch strings.ToLower(path.Ext(name)) {
	case ".svg":
		return KindSVG
	case ".html", ".htm":
		return KindHTML
	case ".dot", ".gv":
		return KindDOT
	case ".js":
		return KindJS
	}
	return ""
}

// TreeKind returns the language of the tree the template produces.
func (k Kind) TreeKind() card.TreeKind {
	switch k {
	case KindDOT:
		return card.TreeDOT
	case KindHTML:
		return card.TreeHTML
	}
	return card.TreeMarkup
}

// Template is a loaded card template. It is immutable.
type Template struct {
	ID     string
	Kind   Kind
	Source string
	// Hash is the SHA-256 of Source; it is part of every cache fingerprint,
	// so editing a template invalidates its cached images.
	Hash string
	// Origin names where the template was loaded from.
	Origin string

	text *template.Template
}

// Ref returns the template reference carried by render contexts.
func (t *Template) Ref() card.TemplateRef {
	return card.TemplateRef{ID: t.ID, Hash: t.Hash, Kind: t.Kind.TreeKind()}
}

// IsScript reports whether the template must be evaluated by the script
// engine.
func (t *Template) IsScript() bool {
	return t.Kind == KindJS
}

// Card describes the image being rendered.
type Card struct {
	Route  string   `json:"route"`
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Emoji  string   `json:"emoji"`
	Font   string   `json:"font"`
	Fonts  []string `json:"fonts"`
}

// Data is the input of a template evaluation.
type Data struct {
	Props map[string]any `json:"props"`
	Card  Card           `json:"card"`
}

// NewData builds template input for a request.
func NewData(route string, props map[string]any, width, height int, emoji card.Emoji, fonts []card.FontDescriptor) Data {
	if props == nil {
		props = map[string]any{}
	}
	c := Card{Route: route, Width: width, Height: height, Emoji: string(emoji)}
	for _, f := range fonts {
		if !containsString(c.Fonts, f.Name) {
			c.Fonts = append(c.Fonts, f.Name)
		}
	}
	if len(c.Fonts) > 0 {
		c.Font = c.Fonts[0]
	}
	return Data{Props: props, Card: c}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Execute evaluates a text template. Script templates are evaluated by the
// script engine instead.
func (t *Template) Execute(data Data) (string, error) {
	if t.text == nil {
		return "", errors.New(errors.ErrCodeUnsupported, "template %s is not a text template", t.ID)
	}
	var buf bytes.Buffer
	if err := t.text.Execute(&buf, data); err != nil {
		return "", errors.Wrap(errors.ErrCodeRenderFailed, err, "execute template %s", t.ID)
	}
	return buf.String(), nil
}

// parse builds a Template from source.
func parse(id, origin string, kind Kind, source []byte, hash string) (*Template, error) {
	t := &Template{
		ID:     id,
		Kind:   kind,
		Source: string(source),
		Hash:   hash,
		Origin: origin,
	}
	if kind == KindJS {
		return t, nil
	}
	text, err := template.New(id).Funcs(Funcs()).Option("missingkey=zero").Parse(t.Source)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse template %s", id)
	}
	t.text = text
	return t, nil
}
