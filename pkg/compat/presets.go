package compat

import (
	"maps"
	"slices"
)

// Preset describes a deployment target's known engine constraints.
type Preset struct {
	Name        string
	Description string
	Engines     map[Phase][]Engine
}

var (
	allEngines    = []Engine{EngineVector, EngineRasterizer, EngineBrowser, EngineEncoder, EngineFetch}
	serverless    = []Engine{EngineVector, EngineRasterizer, EngineEncoder, EngineFetch}
	edge          = []Engine{EngineVector, EngineRasterizer, EngineFetch}
	buildMachines = map[Phase][]Engine{
		PhaseBuild:     allEngines,
		PhaseDev:       allEngines,
		PhasePrerender: allEngines,
	}
)

func withRuntime(runtime []Engine) map[Phase][]Engine {
	out := maps.Clone(buildMachines)
	if runtime != nil {
		out[PhaseRuntime] = runtime
	}
	return out
}

// presets is the static table. Build, dev and prerender run on a build
// machine where every engine can be installed; the runtime column carries the
// platform constraints.
var presets = map[string]Preset{
	"node": {
		Name:        "node",
		Description: "Long-running server process",
		Engines:     withRuntime(allEngines),
	},
	"docker": {
		Name:        "docker",
		Description: "Container image with system packages",
		Engines:     withRuntime(allEngines),
	},
	"vercel": {
		Name:        "vercel",
		Description: "Serverless functions; no browser process",
		Engines:     withRuntime(serverless),
	},
	"netlify": {
		Name:        "netlify",
		Description: "Serverless functions; no browser process",
		Engines:     withRuntime(serverless),
	},
	"cloudflare": {
		Name:        "cloudflare",
		Description: "Edge isolates; no browser, no native codecs",
		Engines:     withRuntime(edge),
	},
	"deno": {
		Name:        "deno",
		Description: "Deno Deploy isolates; no browser, no native codecs",
		Engines:     withRuntime(edge),
	},
	"static": {
		Name:        "static",
		Description: "Static hosting; images only exist if pre-rendered",
		Engines:     withRuntime(nil),
	},
}

// LookupPreset returns the named preset.
func LookupPreset(name string) (Preset, bool) {
	p, ok := presets[name]
	return p, ok
}

// PresetNames returns the preset names in sorted order.
func PresetNames() []string {
	return slices.Sorted(maps.Keys(presets))
}
