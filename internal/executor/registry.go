package executor

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/afero"
)

var ErrUnknownExecutor = errors.New("unknown executor")

// Registry maps executor names to environments.
type Registry struct {
	byName map[string]Conda
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Conda)}
}

// Register adds env under name. Names are unique.
func (r *Registry) Register(name string, env Conda) error {
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("executor %q already registered", name)
	}
	r.byName[name] = env
	return nil
}

func (r *Registry) Get(name string) (Conda, error) {
	env, ok := r.byName[name]
	if !ok {
		return Conda{}, fmt.Errorf("%w: %q", ErrUnknownExecutor, name)
	}
	return env, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Prefixes returns the command prefix of every executor, by name.
func (r *Registry) Prefixes() map[string][]string {
	out := make(map[string][]string, len(r.byName))
	for n, env := range r.byName {
		out[n] = env.Prefix()
	}
	return out
}

// Missing returns the names of file-derived environments whose prefix
// directory does not exist yet.
func (r *Registry) Missing(fs afero.Fs) ([]string, error) {
	var out []string
	for _, n := range r.Names() {
		env := r.byName[n]
		if env.CreateCommand() == nil {
			continue
		}
		exists, err := afero.DirExists(fs, env.Env)
		if err != nil {
			return nil, err
		}
		if !exists {
			out = append(out, n)
		}
	}
	return out, nil
}
