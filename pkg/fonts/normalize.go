package fonts

import (
	"github.com/charmbracelet/log"

	"github.com/matzehuels/linkcard/pkg/card"
	"github.com/matzehuels/linkcard/pkg/compat"
)

// ParseList expands "Name:weight" shorthand entries into descriptors.
func ParseList(entries []string) ([]card.FontDescriptor, error) {
	out := make([]card.FontDescriptor, 0, len(entries))
	for _, e := range entries {
		d, err := card.ParseFontShorthand(e)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Normalize prepares descriptors for rendering at phase under m.
//
// Each descriptor is collapsed to its highest-precedence source. When the
// target cannot fetch remotely, descriptors whose only source is remote are
// dropped with a warning. If nothing remains, [DefaultDescriptor] is used.
// Order is preserved and duplicates are kept.
func Normalize(descs []card.FontDescriptor, m compat.Matrix, phase compat.Phase, logger *log.Logger) []card.FontDescriptor {
	if logger == nil {
		logger = log.Default()
	}
	fetch := m.Available(phase, compat.EngineFetch)

	out := make([]card.FontDescriptor, 0, len(descs))
	for _, d := range descs {
		if d.Weight == 0 {
			d.Weight = card.DefaultFontWeight
		}
		if d.SourceCount() == 0 {
			// A bare name is a remote fetch of that family.
			d.Remote = d.Key()
		}
		d = d.Collapse()
		if d.Source() == card.FontSourceRemote && !fetch {
			logger.Warn("font dropped: remote fonts unavailable on this target",
				"font", d.Key(), "phase", phase)
			continue
		}
		out = append(out, d)
	}

	if len(out) == 0 {
		return []card.FontDescriptor{DefaultDescriptor()}
	}
	return out
}

// PrefetchList returns the remote descriptors among descs, for downloading
// at build time so runtime targets without network access can use them.
func PrefetchList(descs []card.FontDescriptor) []card.FontDescriptor {
	var out []card.FontDescriptor
	seen := make(map[string]bool)
	for _, d := range descs {
		if d.Weight == 0 {
			d.Weight = card.DefaultFontWeight
		}
		if d.SourceCount() == 0 && d.Name != "" {
			d.Remote = d.Key()
		}
		if d.Collapse().Source() != card.FontSourceRemote || seen[d.Key()] {
			continue
		}
		seen[d.Key()] = true
		out = append(out, d.Collapse())
	}
	return out
}
