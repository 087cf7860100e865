// Package config loads template-cache settings from YAML and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/tplcache"
)

// Settings mirror the YAML document. Zero values mean "use the default".
type Settings struct {
	Enabled bool   `yaml:"enabled"`
	Backend string `yaml:"backend"` // e.g. "locmem://", "redis://localhost:6379/0"

	// MstatDisabled skips file modification checks and memoizes template
	// lookups. nil => true.
	MstatDisabled *bool `yaml:"mstat_disabled"`

	Timeout       Duration `yaml:"timeout"` // bytecode lifetime; 0 or "none" => never
	MaxEntries    int      `yaml:"max_entries"`
	CullFrequency *int     `yaml:"cull_frequency"`
	KeyPrefix     string   `yaml:"key_prefix"`
	Version       int      `yaml:"version"`
	TemplateDirs  []string `yaml:"template_dirs"`
}

// MstatChecksDisabled reports the effective mstat setting.
func (s *Settings) MstatChecksDisabled() bool {
	return s.MstatDisabled == nil || *s.MstatDisabled
}

// Duration accepts "90s", "1h30m", "2d", "1w", "none", or a bare integer of seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	if n.Tag == "!!int" {
		var secs int64
		if err := n.Decode(&secs); err != nil {
			return err
		}
		if secs < 0 {
			return fmt.Errorf("line %d: config: negative duration %d", n.Line, secs)
		}
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	v, err := parseDuration(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*d = v
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	switch {
	case d == Duration(tplcache.NoExpiration):
		return "none", nil
	case d == 0:
		return "", nil
	}
	return str2duration.String(time.Duration(d)), nil
}

// Std returns the duration as time.Duration. "none" maps to tplcache.NoExpiration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func parseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "":
		return 0, nil
	case "none", "never":
		return Duration(tplcache.NoExpiration), nil
	}
	var v time.Duration
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		v = time.Duration(secs) * time.Second
	} else if v, err = str2duration.ParseDuration(s); err != nil {
		return 0, fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("config: negative duration %q", s)
	}
	return Duration(v), nil
}

// Parse decodes a YAML document and validates the backend URI.
func Parse(b []byte) (*Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads and parses the file at path.
func Load(path string) (*Settings, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(b)
}

const (
	EnvEnabled       = "TPLCACHE_ENABLED"
	EnvBackend       = "TPLCACHE_BACKEND"
	EnvMstatDisabled = "TPLCACHE_MSTAT_DISABLED"
	EnvTimeout       = "TPLCACHE_TIMEOUT"
)

// ApplyEnv overrides settings from the environment. lookup is usually os.LookupEnv.
func (s *Settings) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvEnabled); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvEnabled, err)
		}
		s.Enabled = b
	}
	if v, ok := lookup(EnvBackend); ok {
		s.Backend = v
	}
	if v, ok := lookup(EnvMstatDisabled); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvMstatDisabled, err)
		}
		s.MstatDisabled = &b
	}
	if v, ok := lookup(EnvTimeout); ok {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvTimeout, err)
		}
		s.Timeout = d
	}
	return s.validate()
}

func (s *Settings) validate() error {
	if s.Backend == "" {
		return nil
	}
	_, err := ParseBackend(s.Backend)
	return err
}
