// Package fonts resolves the font faces a card is rendered with.
//
// # Overview
//
// Requests name fonts with [card.FontDescriptor] values. Each descriptor has
// at most one effective source, chosen by precedence:
//
//  1. a local file path
//  2. an embedded asset compiled into the binary (see [EmbeddedNames])
//  3. a remote fetch key, resolved through the Google Fonts CSS API
//
// [Normalize] prepares a descriptor list for a deployment target and
// [Resolver] loads the bytes.
//
// The embedded assets are the Go font family from golang.org/x/image, so a
// card always has at least one usable face even when nothing can be fetched.
package fonts

import (
	"slices"
	"sync"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/matzehuels/linkcard/pkg/card"
)

// DefaultFamily is the family injected when a request names no fonts.
const DefaultFamily = "Go"

// DefaultEmbedded is the embedded asset backing [DefaultDescriptor].
const DefaultEmbedded = "go-regular"

var embedded = map[string][]byte{
	"go-regular":   goregular.TTF,
	"go-medium":    gomedium.TTF,
	"go-bold":      gobold.TTF,
	"go-italic":    goitalic.TTF,
	"go-mono":      gomono.TTF,
	"go-mono-bold": gomonobold.TTF,
}

// Embedded returns the bytes of a bundled font asset.
func Embedded(name string) ([]byte, bool) {
	data, ok := embedded[name]
	return data, ok
}

// EmbeddedNames lists the bundled font assets in sorted order.
func EmbeddedNames() []string {
	names := make([]string, 0, len(embedded))
	for n := range embedded {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// DefaultDescriptor returns the built-in fallback font.
func DefaultDescriptor() card.FontDescriptor {
	return card.FontDescriptor{Name: DefaultFamily, Weight: card.DefaultFontWeight, Embedded: DefaultEmbedded}
}

var (
	fallback     card.FontFace
	fallbackOnce sync.Once
)

// FallbackFace returns the loaded default font. It is used for
// reduced-fidelity renders and never fails.
func FallbackFace() card.FontFace {
	fallbackOnce.Do(func() {
		fallback = card.FontFace{
			Descriptor: DefaultDescriptor(),
			Data:       embedded[DefaultEmbedded],
			Format:     FormatTrueType,
		}
	})
	return fallback
}
