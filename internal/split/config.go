package split

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

// CopyShared is the only supported shared-symbol policy: a schema or func
// needed by several modules is written into each of their files.
const CopyShared = "copy"

// ErrInvalidConfig is wrapped by every config validation failure.
var ErrInvalidConfig = errors.New("invalid split config")

// Config is the [split] section of a split config file.
type Config struct {
	OutputDir   string             `toml:"output_dir"`
	Manifest    string             `toml:"manifest"` // relative to OutputDir
	ProjectName string             `toml:"project_name"`
	IRRoot      string             `toml:"ir_root"` // relative to the manifest, default "."
	Behavior    Behavior           `toml:"behavior"`
	Packages    map[string]Package `toml:"packages"`
}

// Behavior tunes how a split runs.
type Behavior struct {
	SharedSymbols   string `toml:"shared_symbols"`
	RunProjectCheck *bool  `toml:"run_project_check"`
}

// ProjectCheck reports whether the written project should be checked. It
// defaults to true.
func (b Behavior) ProjectCheck() bool {
	return b.RunProjectCheck == nil || *b.RunProjectCheck
}

// Package is one output package and the modules carved into it.
type Package struct {
	Root      string       `toml:"root"` // relative to OutputDir
	Namespace string       `toml:"namespace"`
	Depends   []string     `toml:"depends"`
	Modules   []Assignment `toml:"modules"`
}

// Assignment places one module in a file under its package root.
type Assignment struct {
	Mod  string `toml:"mod"`
	File string `toml:"file"`
}

// PackageNames returns the configured package names sorted.
func (c *Config) PackageNames() []string {
	names := make([]string, 0, len(c.Packages))
	for name := range c.Packages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadConfig reads the split config at path. A relative output_dir is
// resolved against the config's directory.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening split config: %w", err)
	}
	defer f.Close()

	cfg, err := DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if !filepath.IsAbs(cfg.OutputDir) {
		cfg.OutputDir = filepath.Join(filepath.Dir(path), cfg.OutputDir)
	}
	return cfg, nil
}

// DecodeConfig parses and validates a config document holding a [split]
// table.
func DecodeConfig(r io.Reader) (*Config, error) {
	var doc struct {
		Split *Config `toml:"split"`
	}
	if _, err := toml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if doc.Split == nil {
		return nil, fmt.Errorf("%w: missing [split] section", ErrInvalidConfig)
	}
	cfg := doc.Split
	if cfg.IRRoot == "" {
		cfg.IRRoot = "."
	}
	if cfg.Behavior.SharedSymbols == "" {
		cfg.Behavior.SharedSymbols = CopyShared
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	required := []struct{ key, val string }{
		{"output_dir", c.OutputDir},
		{"manifest", c.Manifest},
		{"project_name", c.ProjectName},
	}
	for _, r := range required {
		if strings.TrimSpace(r.val) == "" {
			return fmt.Errorf("split.%s is required", r.key)
		}
	}
	if !filepath.IsLocal(c.Manifest) {
		return fmt.Errorf("split.manifest %q must be a relative path inside output_dir", c.Manifest)
	}
	if c.Behavior.SharedSymbols != CopyShared {
		return fmt.Errorf("split.behavior.shared_symbols %q is not supported (supported: %s)", c.Behavior.SharedSymbols, CopyShared)
	}
	if len(c.Packages) == 0 {
		return errors.New("split.packages must declare at least one package")
	}
	for _, name := range c.PackageNames() {
		pkg := c.Packages[name]
		if strings.TrimSpace(pkg.Root) == "" {
			return fmt.Errorf("package %q: root is required", name)
		}
		if !filepath.IsLocal(pkg.Root) {
			return fmt.Errorf("package %q: root %q must be a relative path inside output_dir", name, pkg.Root)
		}
		if strings.TrimSpace(pkg.Namespace) == "" {
			return fmt.Errorf("package %q: namespace is required", name)
		}
		for _, dep := range pkg.Depends {
			if _, ok := c.Packages[dep]; !ok {
				return fmt.Errorf("package %q depends on undeclared package %q", name, dep)
			}
		}
		if len(pkg.Modules) == 0 {
			return fmt.Errorf("package %q: modules must list at least one module", name)
		}
		for i, a := range pkg.Modules {
			if strings.TrimSpace(a.Mod) == "" || strings.TrimSpace(a.File) == "" {
				return fmt.Errorf("package %q: modules[%d] needs both mod and file", name, i)
			}
			if !filepath.IsLocal(a.File) {
				return fmt.Errorf("package %q: file %q must be a relative path inside the package root", name, a.File)
			}
		}
	}
	return nil
}
