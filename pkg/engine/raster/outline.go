package raster

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/xml"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/matzehuels/linkcard/pkg/card"
)

// canvas.ParseSVG resolves font-family against system fonts only, so text is
// converted to glyph outlines with the request's faces before parsing.

const defaultFontSize = 16.0

// face is one loaded font with the weight it was requested at.
type face struct {
	name   string
	weight int
	font   *canvas.Font
}

// faceSet selects loaded fonts by family and weight.
type faceSet struct {
	faces []face
}

// newFaceSet loads every face. The first one is the fallback for families
// that match nothing; with no faces at all Go Regular is used.
func newFaceSet(fonts []card.FontFace) (*faceSet, error) {
	s := &faceSet{}
	for _, f := range fonts {
		cf, err := canvas.LoadFont(f.Data, 0, canvas.FontRegular)
		if err != nil {
			return nil, fmt.Errorf("load font %s: %w", f.Descriptor.Key(), err)
		}
		s.faces = append(s.faces, face{name: strings.ToLower(f.Descriptor.Name), weight: f.Descriptor.Weight, font: cf})
	}
	if len(s.faces) == 0 {
		cf, err := canvas.LoadFont(goregular.TTF, 0, canvas.FontRegular)
		if err != nil {
			return nil, fmt.Errorf("load fallback font: %w", err)
		}
		s.faces = append(s.faces, face{name: "go", weight: 400, font: cf})
	}
	return s, nil
}

// pick returns the font for a CSS font-family list, preferring the closest
// weight within the first family that has any face.
func (s *faceSet) pick(families string, weight int) *canvas.Font {
	for _, fam := range strings.Split(families, ",") {
		fam = strings.ToLower(strings.Trim(strings.TrimSpace(fam), `"'`))
		var best *face
		for i := range s.faces {
			f := &s.faces[i]
			if f.name != fam {
				continue
			}
			if best == nil || abs(f.weight-weight) < abs(best.weight-weight) {
				best = f
			}
		}
		if best != nil {
			return best.font
		}
	}
	return s.faces[0].font
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// textStyle is the inherited text state of an element.
type textStyle struct {
	family string
	size   float64
	weight int
	anchor string
}

var defaultTextStyle = textStyle{size: defaultFontSize, weight: 400, anchor: "start"}

// with applies one presentation attribute or style declaration.
func (t textStyle) with(key, val string) textStyle {
	val = strings.TrimSpace(val)
	switch key {
	case "font-family":
		t.family = val
	case "font-size":
		if n, ok := parseLength(val); ok {
			t.size = n
		}
	case "font-weight":
		switch val {
		case "normal":
			t.weight = 400
		case "bold":
			t.weight = 700
		default:
			if n, err := strconv.Atoi(val); err == nil {
				t.weight = n
			}
		}
	case "text-anchor":
		t.anchor = val
	}
	return t
}

// attr is a raw attribute token.
type attr struct {
	name string
	val  string
	raw  []byte
}

// textAttrs are consumed by the outline and not copied to the path.
var textAttrs = map[string]bool{
	"x": true, "y": true, "dx": true, "dy": true,
	"font-family": true, "font-size": true, "font-weight": true, "font-style": true,
	"text-anchor": true, "dominant-baseline": true, "letter-spacing": true,
}

// outlineText replaces every <text> element in svg with a <path> of its
// glyph outlines. Other markup is copied unchanged.
func outlineText(svg []byte, faces *faceSet) ([]byte, error) {
	// The lexer rewrites whitespace inside attribute values in place.
	in := parse.NewInputBytes(bytes.Clone(svg))
	l := xml.NewLexer(in)

	var out bytes.Buffer
	out.Grow(len(svg))
	stack := []textStyle{defaultTextStyle}

	for {
		tt, data := l.Next()
		switch tt {
		case xml.ErrorToken:
			if err := l.Err(); err != nil && err != io.EOF {
				return nil, fmt.Errorf("parse svg: %w", err)
			}
			return out.Bytes(), nil

		case xml.StartTagToken:
			name := string(l.Text())
			closeTok, closeData, attrs := readAttrs(l)
			style := stack[len(stack)-1]
			for _, a := range attrs {
				if a.name == "style" {
					for _, decl := range strings.Split(a.val, ";") {
						if k, v, ok := strings.Cut(decl, ":"); ok {
							style = style.with(strings.TrimSpace(k), v)
						}
					}
					continue
				}
				style = style.with(a.name, a.val)
			}

			if name == "text" {
				if closeTok == xml.StartTagCloseVoidToken {
					continue
				}
				content, err := readText(l)
				if err != nil {
					return nil, err
				}
				writeOutline(&out, faces, style, attrs, content)
				continue
			}

			out.Write(data)
			for _, a := range attrs {
				out.Write(a.raw)
			}
			out.Write(closeData)
			if closeTok == xml.StartTagCloseToken {
				stack = append(stack, style)
			}

		case xml.EndTagToken:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
			out.Write(data)

		default:
			out.Write(data)
		}
	}
}

// readAttrs consumes attribute tokens up to the end of the start tag.
func readAttrs(l *xml.Lexer) (xml.TokenType, []byte, []attr) {
	var attrs []attr
	for {
		tt, data := l.Next()
		if tt != xml.AttributeToken {
			return tt, data, attrs
		}
		val := l.AttrVal()
		if len(val) >= 2 && (val[0] == '"' || val[0] == '\'') {
			val = val[1 : len(val)-1]
		}
		attrs = append(attrs, attr{name: string(l.Text()), val: html.UnescapeString(string(val)), raw: bytes.Clone(data)})
	}
}

// readText returns the character data of a <text> element, including that
// of nested <tspan> elements, and consumes its end tag.
func readText(l *xml.Lexer) (string, error) {
	var b strings.Builder
	depth := 0
	for {
		tt, data := l.Next()
		switch tt {
		case xml.ErrorToken:
			return "", fmt.Errorf("unterminated <text> element")
		case xml.TextToken:
			b.WriteString(html.UnescapeString(string(data)))
		case xml.CDATAToken:
			b.Write(l.Text())
		case xml.StartTagToken:
			if tt, _, _ := readAttrs(l); tt == xml.StartTagCloseToken {
				depth++
			}
		case xml.EndTagToken:
			if depth == 0 {
				return b.String(), nil
			}
			depth--
		}
	}
}

// writeOutline emits the glyph path for one text element. Elements without
// visible glyphs are dropped.
func writeOutline(out *bytes.Buffer, faces *faceSet, style textStyle, attrs []attr, content string) {
	content = strings.Join(strings.Fields(content), " ")
	if content == "" {
		return
	}
	var x, y, dx, dy float64
	for _, a := range attrs {
		n, _ := parseLength(firstValue(a.val))
		switch a.name {
		case "x":
			x = n
		case "y":
			y = n
		case "dx":
			dx = n
		case "dy":
			dy = n
		}
	}
	x, y = x+dx, y+dy

	// Face sizes are in points; this scale makes one em equal font-size
	// user units, as canvas itself does for SVG text.
	f := faces.pick(style.family, style.weight).Face(style.size*72/25.4, canvas.Black)
	p, width, err := f.ToPath(content)
	if err != nil || p.Empty() {
		return
	}
	switch style.anchor {
	case "middle":
		x -= width / 2
	case "end":
		x -= width
	}
	p = p.Transform(canvas.Identity.Translate(x, y).ReflectY())

	out.WriteString("<path")
	for _, a := range attrs {
		if !textAttrs[a.name] {
			out.Write(a.raw)
		}
	}
	fmt.Fprintf(out, ` d="%s"/>`, p.ToSVG())
}

func firstValue(s string) string {
	if f := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' }); len(f) > 0 {
		return f[0]
	}
	return ""
}

// parseLength parses a user-unit or px length.
func parseLength(s string) (float64, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "px")
	n, err := strconv.ParseFloat(s, 64)
	return n, err == nil
}
