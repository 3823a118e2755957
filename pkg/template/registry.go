package template

import (
	"io/fs"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/linkcard/pkg/cache"
	"github.com/matzehuels/linkcard/pkg/errors"
	"github.com/matzehuels/linkcard/pkg/template/builtin"
)

// Source is a directory tree of templates.
type Source struct {
	Name string
	FS   fs.FS
}

// BuiltinSource returns the templates compiled into the binary.
func BuiltinSource() Source {
	return Source{Name: "builtin", FS: builtin.FS}
}

// DirSource returns a source reading templates from dir.
func DirSource(dir string) Source {
	return Source{Name: dir, FS: os.DirFS(dir)}
}

// Registry holds the loaded templates. Later sources override earlier ones
// with the same identifier. It is safe for concurrent use; [Registry.Reload]
// swaps the whole set atomically.
type Registry struct {
	sources []Source
	logger  *log.Logger

	mu        sync.RWMutex
	templates map[string]*Template
}

// NewRegistry loads every template from sources.
func NewRegistry(logger *log.Logger, sources ...Source) (*Registry, error) {
	if logger == nil {
		logger = log.Default()
	}
	r := &Registry{sources: sources, logger: logger}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads every source. Edited templates get new content hashes.
// On error the previous set stays active.
func (r *Registry) Reload() error {
	loaded := make(map[string]*Template)
	for _, src := range r.sources {
		err := fs.WalkDir(src.FS, ".", func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if p != "." && strings.HasPrefix(d.Name(), ".") {
					return fs.SkipDir
				}
				return nil
			}
			kind := kindFor(p)
			if kind == "" {
				return nil
			}
			id := strings.TrimSuffix(p, p[strings.LastIndex(p, "."):])
			if err := errors.ValidateTemplateID(id); err != nil {
				r.logger.Warn("skipping template with invalid name", "source", src.Name, "path", p)
				return nil
			}
			data, err := fs.ReadFile(src.FS, p)
			if err != nil {
				return err
			}
			t, err := parse(id, src.Name, kind, data, cache.Hash(data))
			if err != nil {
				return err
			}
			if prev, ok := loaded[id]; ok && prev.Origin != src.Name {
				r.logger.Debug("template overridden", "id", id, "by", src.Name, "was", prev.Origin)
			}
			loaded[id] = t
			return nil
		})
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "load templates from %s", src.Name)
		}
	}

	r.mu.Lock()
	r.templates = loaded
	r.mu.Unlock()
	return nil
}

// Get returns the template with the given identifier.
func (r *Registry) Get(id string) (*Template, error) {
	r.mu.RLock()
	t, ok := r.templates[id]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.New(errors.ErrCodeTemplateNotFound, "template %q not found", id)
	}
	return t, nil
}

// Info summarizes a template for listings.
type Info struct {
	ID     string `json:"id"`
	Kind   Kind   `json:"kind"`
	Hash   string `json:"hash"`
	Origin string `json:"origin"`
}

// List returns every template sorted by identifier.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, Info{ID: t.ID, Kind: t.Kind, Hash: t.Hash, Origin: t.Origin})
	}
	slices.SortFunc(out, func(a, b Info) int { return strings.Compare(a.ID, b.ID) })
	return out
}
