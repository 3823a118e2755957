package compat

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/matzehuels/linkcard/pkg/card"
	"github.com/matzehuels/linkcard/pkg/errors"
)

// Probe reports whether an engine's local dependency is actually present
// (a binary on PATH, a reachable endpoint, an opt-in flag).
type Probe func() bool

// Probes maps engines to their environment probes. Engines without a probe
// are left as the preset declares them.
type Probes map[Engine]Probe

// Resolution is the outcome of resolving a preset.
type Resolution struct {
	Preset string
	Matrix Matrix
	// Warnings collects narrowing decisions worth surfacing to operators.
	Warnings []string
}

// Resolve computes the compatibility matrix for a preset.
//
// Overrides are keyed "phase.engine" (e.g. "runtime.browser"); a false value
// disables the pair. A true value cannot enable a pair the preset or the
// probes ruled out and is reported as a warning.
func Resolve(preset string, probes Probes, overrides map[string]bool) (Resolution, error) {
	p, ok := LookupPreset(preset)
	if !ok {
		return Resolution{}, errors.New(errors.ErrCodeInvalidConfig,
			"unknown preset %q (must be one of: %s)", preset, strings.Join(PresetNames(), ", "))
	}

	res := Resolution{Preset: p.Name, Matrix: NewMatrix(p.Engines)}

	for _, e := range Engines() {
		probe, ok := probes[e]
		if !ok || probe == nil {
			continue
		}
		if probe() {
			continue
		}
		for _, phase := range Phases() {
			if res.Matrix.Available(phase, e) {
				res.Matrix = res.Matrix.without(phase, e)
			}
		}
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s engine not detected locally; disabled in all phases", e))
	}

	for key, enabled := range overrides {
		phase, engine, err := parseOverrideKey(key)
		if err != nil {
			return Resolution{}, err
		}
		if enabled {
			if !res.Matrix.Available(phase, engine) {
				res.Warnings = append(res.Warnings, fmt.Sprintf("override %s=true ignored: overrides can only disable engines", key))
			}
			continue
		}
		res.Matrix = res.Matrix.without(phase, engine)
	}

	return res, nil
}

func parseOverrideKey(key string) (Phase, Engine, error) {
	ps, es, ok := strings.Cut(key, ".")
	phase, engine := Phase(ps), Engine(es)
	if !ok || !phase.Valid() || !engine.Valid() {
		return "", "", errors.New(errors.ErrCodeInvalidConfig, "invalid compatibility override %s (want phase.engine)", strconv.Quote(key))
	}
	return phase, engine, nil
}

// Reconcile returns opts adjusted so that the matrix can honor them in the
// given phase, together with one warning per adjustment. It never fails:
// when neither strategy is usable the options are returned unchanged and the
// request will fail with NO_RENDERER_AVAILABLE at render time.
func Reconcile(m Matrix, phase Phase, opts card.RenderOptions) (card.RenderOptions, []string) {
	out := opts.Clone()
	var warnings []string

	if !m.ModeAvailable(phase, out.Renderer, out.Format) {
		alt := out.Renderer.Alternate()
		switch {
		case m.ModeAvailable(phase, alt, out.Format):
			warnings = append(warnings, fmt.Sprintf("renderer %q unavailable in %s phase; defaulting to %q", out.Renderer, phase, alt))
			out.Renderer = alt
		case m.ModeAvailable(phase, out.Renderer, card.NativeFormat):
			warnings = append(warnings, fmt.Sprintf("format %q unavailable with renderer %q in %s phase; defaulting to %q", out.Format, out.Renderer, phase, card.NativeFormat))
			out.Format = card.NativeFormat
		case m.ModeAvailable(phase, alt, card.NativeFormat):
			warnings = append(warnings, fmt.Sprintf("renderer %q unavailable in %s phase; defaulting to %q with %q", out.Renderer, phase, alt, card.NativeFormat))
			out.Renderer = alt
			out.Format = card.NativeFormat
		default:
			warnings = append(warnings, fmt.Sprintf("no renderer available in %s phase", phase))
			return out, warnings
		}
	}

	if out.Renderer == card.ModeScreenshot && out.Format == card.FormatSVG {
		warnings = append(warnings, fmt.Sprintf("screenshot renderer cannot produce svg; defaulting format to %q", card.NativeFormat))
		out.Format = card.NativeFormat
	}

	if out.Format.NeedsEncoder() && !m.Available(phase, EngineEncoder) {
		warnings = append(warnings, fmt.Sprintf("bitmap encoder unavailable in %s phase; defaulting format %q to %q", phase, out.Format, card.NativeFormat))
		out.Format = card.NativeFormat
	}

	return out, warnings
}
