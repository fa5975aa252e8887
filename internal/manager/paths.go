package manager

import (
	"fmt"
	"path"

	"jobweaver/internal/core"
)

// OutputDir returns output/<parts...>. With mkdir the directory is created.
func (m *Manager) OutputDir(mkdir bool, parts ...string) (core.Path, error) {
	return m.namespaced(OutputRoot, mkdir, false, parts)
}

// OutputFile returns output/<parts...>. With mkdir only the parent is created.
func (m *Manager) OutputFile(mkdir bool, parts ...string) (core.Path, error) {
	return m.namespaced(OutputRoot, mkdir, true, parts)
}

// TempDir returns temp/<parts...>. With mkdir the directory is created.
func (m *Manager) TempDir(mkdir bool, parts ...string) (core.Path, error) {
	return m.namespaced(TempRoot, mkdir, false, parts)
}

// TempFile returns temp/<parts...>. With mkdir only the parent is created.
func (m *Manager) TempFile(mkdir bool, parts ...string) (core.Path, error) {
	return m.namespaced(TempRoot, mkdir, true, parts)
}

func (m *Manager) namespaced(root string, mkdir, parentOnly bool, parts []string) (core.Path, error) {
	p := path.Join(append([]string{root}, parts...)...)
	if !mkdir {
		return core.Path(p), nil
	}
	dir := p
	if parentOnly {
		dir = path.Dir(p)
	}
	if err := m.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}
	return core.Path(p), nil
}
