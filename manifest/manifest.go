// Package manifest handles invmc.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/chazu/invmc/vm"
)

// FileName is the manifest file looked up by Load and FindAndLoad.
const FileName = "invmc.toml"

// Manifest represents an invmc.toml project configuration.
type Manifest struct {
	Project Project     `toml:"project"`
	Source  Source      `toml:"source"`
	Build   BuildConfig `toml:"build"`
	Run     RunConfig   `toml:"run"`
	Log     LogConfig   `toml:"log"`

	// Dir is the directory containing the invmc.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures source file locations.
type Source struct {
	Dirs  []string `toml:"dirs"`
	Entry string   `toml:"entry"`
}

// BuildConfig configures code generation output.
type BuildConfig struct {
	Output  string `toml:"output"`
	Cache   string `toml:"cache"`
	NoCache bool   `toml:"no-cache"`
}

// RunConfig configures the reference machine used by `invmc -run`.
type RunConfig struct {
	StepLimit int `toml:"step-limit"`
}

// LogConfig configures diagnostics logging.
type LogConfig struct {
	Verbosity int `toml:"verbosity"`
}

// Default returns the configuration used when no invmc.toml exists.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.applyDefaults()
	return m
}

// Load parses an invmc.toml file from the given directory and checks it
// against the manifest schema.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var raw map[string]interface{}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if err := checkSchema(raw); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	m.applyDefaults()
	return &m, nil
}

func (m *Manifest) applyDefaults() {
	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{"."}
	}
	if m.Build.Cache == "" {
		m.Build.Cache = filepath.Join(".invmc", "cache.db")
	}
	if m.Run.StepLimit == 0 {
		m.Run.StepLimit = vm.DefaultStepLimit
	}
}

// FindAndLoad walks up from startDir to find an invmc.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, m.resolve(d))
	}
	return paths
}

// EntryPath returns the entry source file, or "" when none is configured.
func (m *Manifest) EntryPath() string {
	if m.Source.Entry == "" {
		return ""
	}
	return m.resolve(m.Source.Entry)
}

// CachePath returns the build cache database path.
func (m *Manifest) CachePath() string {
	return m.resolve(m.Build.Cache)
}

// OutputPath returns where the program compiled from src is written. With
// no configured output directory it sits next to src with an .invm
// extension.
func (m *Manifest) OutputPath(src string) string {
	name := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)) + ".invm"
	if m.Build.Output == "" {
		return filepath.Join(filepath.Dir(src), name)
	}
	return filepath.Join(m.resolve(m.Build.Output), name)
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
