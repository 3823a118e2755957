package template

import (
	"fmt"
	"html"
	"strings"
	"text/template"
	"unicode/utf8"
)

// Funcs returns the functions available to text templates:
//
//	default DEF VAL   VAL, or DEF when VAL is empty
//	xml VAL           VAL escaped for XML and HTML text and attributes
//	truncate N VAL    VAL cut to N runes with an ellipsis
//	wrap N VAL        VAL split into lines of at most N runes
//	upper VAL, lower VAL
//	add A B, mul A B  integer arithmetic for layout
func Funcs() template.FuncMap {
	return template.FuncMap{
		"default":  defaultValue,
		"xml":      escape,
		"truncate": truncate,
		"wrap":     wrap,
		"upper":    func(v any) string { return strings.ToUpper(str(v)) },
		"lower":    func(v any) string { return strings.ToLower(str(v)) },
		"add":      func(a, b int) int { return a + b },
		"mul":      func(a, b int) int { return a * b },
	}
}

func str(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func defaultValue(def, v any) any {
	if str(v) == "" {
		return def
	}
	return v
}

func escape(v any) string {
	return html.EscapeString(str(v))
}

func truncate(n int, v any) string {
	s := str(v)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	if n < 1 {
		return ""
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}

// wrap breaks text at word boundaries. Words longer than n stay whole.
func wrap(n int, v any) []string {
	var lines []string
	var line strings.Builder
	for _, word := range strings.Fields(str(v)) {
		if line.Len() > 0 && utf8.RuneCountInString(line.String())+1+utf8.RuneCountInString(word) > n {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return lines
}
