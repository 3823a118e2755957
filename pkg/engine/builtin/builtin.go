// Package builtin wires the engine backends shipped with linkcard into an
// [engine.Factories] table and the matching capability probes.
package builtin

import (
	"github.com/matzehuels/linkcard/pkg/compat"
	"github.com/matzehuels/linkcard/pkg/engine"
	"github.com/matzehuels/linkcard/pkg/engine/browser"
	"github.com/matzehuels/linkcard/pkg/engine/encode"
	"github.com/matzehuels/linkcard/pkg/engine/raster"
	"github.com/matzehuels/linkcard/pkg/engine/script"
	"github.com/matzehuels/linkcard/pkg/engine/vector"
)

// Options configures the builtin engines.
type Options struct {
	Browser browser.Config
	// Offline disables remote font fetching.
	Offline bool
}

// Factories returns constructors for every builtin engine.
func Factories(opts Options) engine.Factories {
	return engine.Factories{
		engine.KindScript:     script.New,
		engine.KindVector:     vector.New,
		engine.KindRasterizer: raster.New,
		engine.KindBrowser:    browser.New(opts.Browser),
		engine.KindEncoder:    encode.New,
	}
}

// Probes returns environment probes for the compatibility resolver. The
// pure-Go engines are always linked in and need no probe.
func Probes(opts Options) compat.Probes {
	return compat.Probes{
		compat.EngineBrowser: func() bool { return browser.Detect(opts.Browser) },
		compat.EngineFetch:   func() bool { return !opts.Offline },
	}
}
