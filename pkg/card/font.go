package card

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/matzehuels/linkcard/pkg/errors"
)

// DefaultFontWeight is used when a descriptor or shorthand omits the weight.
const DefaultFontWeight = 400

// FontSource identifies where a font's bytes come from.
type FontSource int

// Font sources in resolution precedence order.
const (
	FontSourceNone FontSource = iota
	FontSourceLocal
	FontSourceEmbedded
	FontSourceRemote
)

func (s FontSource) String() string {
	switch s {
	case FontSourceLocal:
		return "local"
	case FontSourceEmbedded:
		return "embedded"
	case FontSourceRemote:
		return "remote"
	}
	return "none"
}

// FontDescriptor names a font face and at most one source for its bytes.
type FontDescriptor struct {
	Name     string `json:"name"`
	Weight   int    `json:"weight"`
	Path     string `json:"path,omitempty"`
	Embedded string `json:"embedded,omitempty"`
	Remote   string `json:"remote,omitempty"`
}

// ParseFontShorthand expands "Name:weight" (or "Name") into a descriptor with
// a remote fetch key.
func ParseFontShorthand(s string) (FontDescriptor, error) {
	name, weightStr, hasWeight := strings.Cut(strings.TrimSpace(s), ":")
	name = strings.TrimSpace(name)
	if err := errors.ValidateFontName(name); err != nil {
		return FontDescriptor{}, err
	}

	weight := DefaultFontWeight
	if hasWeight {
		w, err := strconv.Atoi(strings.TrimSpace(weightStr))
		if err != nil {
			return FontDescriptor{}, errors.New(errors.ErrCodeInvalidFont, "invalid font weight in %q", s)
		}
		weight = w
	}
	if err := validateWeight(weight); err != nil {
		return FontDescriptor{}, err
	}

	return FontDescriptor{
		Name:   name,
		Weight: weight,
		Remote: fmt.Sprintf("%s:%d", name, weight),
	}, nil
}

// UnmarshalJSON accepts either the shorthand string or an object.
func (d *FontDescriptor) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := ParseFontShorthand(s)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	}

	type plain FontDescriptor
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*d = FontDescriptor(p)
	if d.Weight == 0 {
		d.Weight = DefaultFontWeight
	}
	return nil
}

// Key returns "Name:weight", the identity used by the font endpoint and by
// prefetch lists.
func (d FontDescriptor) Key() string {
	return fmt.Sprintf("%s:%d", d.Name, d.Weight)
}

// Source returns the highest-precedence source set on d:
// local path, then embedded asset, then remote fetch.
func (d FontDescriptor) Source() FontSource {
	switch {
	case d.Path != "":
		return FontSourceLocal
	case d.Embedded != "":
		return FontSourceEmbedded
	case d.Remote != "":
		return FontSourceRemote
	}
	return FontSourceNone
}

// SourceCount returns how many source fields are set.
func (d FontDescriptor) SourceCount() int {
	n := 0
	for _, s := range []string{d.Path, d.Embedded, d.Remote} {
		if s != "" {
			n++
		}
	}
	return n
}

// Collapse returns a copy of d holding only its highest-precedence source.
func (d FontDescriptor) Collapse() FontDescriptor {
	out := FontDescriptor{Name: d.Name, Weight: d.Weight}
	switch d.Source() {
	case FontSourceLocal:
		out.Path = d.Path
	case FontSourceEmbedded:
		out.Embedded = d.Embedded
	case FontSourceRemote:
		out.Remote = d.Remote
	}
	return out
}

// Validate checks the name and weight.
func (d FontDescriptor) Validate() error {
	if err := errors.ValidateFontName(d.Name); err != nil {
		return err
	}
	return validateWeight(d.Weight)
}

func validateWeight(w int) error {
	if w < 100 || w > 900 || w%100 != 0 {
		return errors.New(errors.ErrCodeInvalidFont, "invalid font weight %d (must be 100-900 in steps of 100)", w)
	}
	return nil
}

// FontFace is a descriptor together with its loaded bytes.
type FontFace struct {
	Descriptor FontDescriptor
	Data       []byte
	// Format is the CSS font format: "truetype" or "opentype".
	Format string
}
