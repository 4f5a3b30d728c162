// Package manifest loads and validates the project manifest (surv.toml).
package manifest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the conventional manifest file name.
const FileName = "surv.toml"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid manifest")

// Manifest describes a multi-package project.
type Manifest struct {
	Project  Project            `toml:"project"`
	Paths    Paths              `toml:"paths"`
	Packages map[string]Package `toml:"packages"`

	// Dir is the directory containing the manifest; package roots and
	// ir_root are resolved against it.
	Dir string `toml:"-"`
}

// Project holds project identity.
type Project struct {
	Name string `toml:"name"`
}

// Paths configures unit discovery.
type Paths struct {
	IRRoot  string   `toml:"ir_root"`
	Exclude []string `toml:"exclude"`
	Deploy  []string `toml:"deploy"`
}

// Package is one named, path-rooted grouping of units.
type Package struct {
	Root      string   `toml:"root"`
	Namespace string   `toml:"namespace"`
	Depends   []string `toml:"depends"` // advisory only
}

// Error reports a malformed manifest.
type Error struct {
	Path   string
	Reason string
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("manifest: %s", e.Reason)
	}
	return fmt.Sprintf("manifest %s: %s", e.Path, e.Reason)
}

func (e *Error) Unwrap() error { return ErrInvalid }

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	defer f.Close()

	m, err := Decode(f)
	if err != nil {
		var merr *Error
		if errors.As(err, &merr) {
			merr.Path = path
		}
		return nil, err
	}
	m.Dir = filepath.Dir(path)
	return m, nil
}

// Decode parses and validates a manifest from r. Dir is left empty.
func Decode(r io.Reader) (*Manifest, error) {
	var m Manifest
	if _, err := toml.NewDecoder(r).Decode(&m); err != nil {
		return nil, &Error{Reason: err.Error()}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest is well formed.
func (m *Manifest) Validate() error {
	if strings.TrimSpace(m.Project.Name) == "" {
		return &Error{Reason: "project.name is required"}
	}
	if strings.TrimSpace(m.Paths.IRRoot) == "" {
		return &Error{Reason: "paths.ir_root is required"}
	}
	for _, name := range m.PackageNames() {
		pkg := m.Packages[name]
		if strings.TrimSpace(pkg.Root) == "" {
			return &Error{Reason: fmt.Sprintf("package %q: root is required", name)}
		}
		for _, dep := range pkg.Depends {
			if _, ok := m.Packages[dep]; !ok {
				return &Error{Reason: fmt.Sprintf("package %q depends on undeclared package %q", name, dep)}
			}
		}
	}
	return nil
}

// PackageNames returns the declared package names sorted.
func (m *Manifest) PackageNames() []string {
	names := make([]string, 0, len(m.Packages))
	for name := range m.Packages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasPackage reports whether name is a declared package.
func (m *Manifest) HasPackage(name string) bool {
	_, ok := m.Packages[name]
	return ok
}

// PackageRoot resolves a package root against the manifest directory.
func (m *Manifest) PackageRoot(name string) string {
	root := m.Packages[name].Root
	if filepath.IsAbs(root) {
		return filepath.Clean(root)
	}
	return filepath.Join(m.Dir, root)
}

// IRRoot resolves paths.ir_root against the manifest directory.
func (m *Manifest) IRRoot() string {
	if filepath.IsAbs(m.Paths.IRRoot) {
		return filepath.Clean(m.Paths.IRRoot)
	}
	return filepath.Join(m.Dir, m.Paths.IRRoot)
}

// DeployFiles resolves paths.deploy against the manifest directory.
func (m *Manifest) DeployFiles() []string {
	out := make([]string, 0, len(m.Paths.Deploy))
	for _, p := range m.Paths.Deploy {
		if filepath.IsAbs(p) {
			out = append(out, filepath.Clean(p))
			continue
		}
		out = append(out, filepath.Join(m.Dir, p))
	}
	return out
}
