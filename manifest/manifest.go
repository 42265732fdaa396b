// Package manifest handles jbasic.toml configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/jbasic/vm"
)

// FileName is the name of the configuration file.
const FileName = "jbasic.toml"

// DefaultPort is the port of the evaluation service.
const DefaultPort = 4567

// Manifest represents a jbasic.toml configuration.
type Manifest struct {
	Limits Limits       `toml:"limits"`
	Run    RunConfig    `toml:"run"`
	Log    LogConfig    `toml:"log"`
	Libs   Libs         `toml:"libs"`
	Server ServerConfig `toml:"server"`

	// Dir is the directory containing the jbasic.toml file (set at load time).
	Dir string `toml:"-"`
}

// Limits sizes the fixed pools of an environment.
type Limits struct {
	Tokens    int `toml:"tokens"`
	Text      int `toml:"text"`
	Symbols   int `toml:"symbols"`
	Resources int `toml:"resources"`
	ArrayLen  int `toml:"array-length"`
}

// RunConfig configures program execution.
type RunConfig struct {
	// MaxSteps bounds WHILE iterations per run; 0 means unbounded.
	MaxSteps int `toml:"max-steps"`
}

// LogConfig configures commonlog.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Libs selects the native libraries registered in new environments.
type Libs struct {
	Std bool `toml:"std"`
}

// ServerConfig configures the evaluation service.
type ServerConfig struct {
	Port int `toml:"port"`
}

// Default returns the configuration used when no jbasic.toml exists.
func Default() *Manifest {
	return &Manifest{
		Limits: Limits{
			Tokens:    vm.DefaultTokens,
			Text:      vm.DefaultText,
			Symbols:   vm.DefaultSymbols,
			Resources: vm.DefaultResources,
			ArrayLen:  vm.DefaultArrayLen,
		},
		Log:    LogConfig{Verbosity: 1},
		Libs:   Libs{Std: true},
		Server: ServerConfig{Port: DefaultPort},
	}
}

// Load parses a jbasic.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// Parse decodes a configuration and fills in defaults for every key that
// is absent.
func Parse(data string) (*Manifest, error) {
	var m Manifest
	md, err := toml.Decode(data, &m)
	if err != nil {
		return nil, err
	}

	// Defaults
	def := Default()
	if m.Limits.Tokens == 0 {
		m.Limits.Tokens = def.Limits.Tokens
	}
	if m.Limits.Text == 0 {
		m.Limits.Text = def.Limits.Text
	}
	if m.Limits.Symbols == 0 {
		m.Limits.Symbols = def.Limits.Symbols
	}
	if m.Limits.Resources == 0 {
		m.Limits.Resources = def.Limits.Resources
	}
	if m.Limits.ArrayLen == 0 {
		m.Limits.ArrayLen = def.Limits.ArrayLen
	}
	if !md.IsDefined("log", "verbosity") {
		m.Log.Verbosity = def.Log.Verbosity
	}
	if !md.IsDefined("libs", "std") {
		m.Libs.Std = def.Libs.Std
	}
	if m.Server.Port == 0 {
		m.Server.Port = def.Server.Port
	}

	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	limits := []struct {
		key string
		val int
	}{
		{"limits.tokens", m.Limits.Tokens},
		{"limits.text", m.Limits.Text},
		{"limits.symbols", m.Limits.Symbols},
		{"limits.resources", m.Limits.Resources},
		{"limits.array-length", m.Limits.ArrayLen},
		{"run.max-steps", m.Run.MaxSteps},
	}
	for _, l := range limits {
		if l.val < 0 {
			return fmt.Errorf("%s must not be negative, got %d", l.key, l.val)
		}
	}
	if m.Server.Port < 0 || m.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", m.Server.Port)
	}
	return nil
}

// FindAndLoad walks up from startDir to find a jbasic.toml file,
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

// EnvConfig converts the limits and run settings to an environment
// configuration. I/O is left for the caller to wire.
func (m *Manifest) EnvConfig() vm.Config {
	return vm.Config{
		Tokens:    m.Limits.Tokens,
		Text:      m.Limits.Text,
		Symbols:   m.Limits.Symbols,
		Resources: m.Limits.Resources,
		ArrayLen:  m.Limits.ArrayLen,
		MaxSteps:  m.Run.MaxSteps,
	}
}

// LogPath returns the log file for commonlog.Configure, or nil to log to
// stderr. A relative path is resolved against the manifest directory.
func (m *Manifest) LogPath() *string {
	if m.Log.File == "" {
		return nil
	}
	path := m.Log.File
	if !filepath.IsAbs(path) && m.Dir != "" {
		path = filepath.Join(m.Dir, path)
	}
	return &path
}
