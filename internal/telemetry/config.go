// Package telemetry sends anonymous, opt-in usage events. Transcripts, task
// names and people are never included.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// ConfigFileName is the telemetry state file under the data directory.
const ConfigFileName = "telemetry.json"

// Config holds the telemetry state and the user's choice.
type Config struct {
	Enabled bool `json:"enabled"`

	// ConsentAsked is set once the user has made a choice either way.
	ConsentAsked bool `json:"consent_asked"`

	// AnonymousID is a random UUID generated on first load.
	AnonymousID string `json:"anonymous_id"`
}

// ConfigStore reads and writes the telemetry state file.
type ConfigStore struct {
	fs  afero.Fs
	dir string
}

// NewConfigStore stores the state at dir/telemetry.json.
func NewConfigStore(fs afero.Fs, dir string) *ConfigStore {
	return &ConfigStore{fs: fs, dir: dir}
}

// Path returns the state file location.
func (s *ConfigStore) Path() string {
	return filepath.Join(s.dir, ConfigFileName)
}

// Load reads the state. A missing file yields a disabled config with a fresh
// anonymous ID.
func (s *ConfigStore) Load() (*Config, error) {
	cfg := &Config{}

	data, err := afero.ReadFile(s.fs, s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			cfg.AnonymousID = uuid.New().String()
			return cfg, nil
		}
		return nil, fmt.Errorf("read telemetry config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse telemetry config: %w", err)
	}
	if cfg.AnonymousID == "" {
		cfg.AnonymousID = uuid.New().String()
	}
	return cfg, nil
}

// Save writes the state with owner-only permissions.
func (s *ConfigStore) Save(cfg *Config) error {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create telemetry directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal telemetry config: %w", err)
	}
	if err := afero.WriteFile(s.fs, s.Path(), data, 0o600); err != nil {
		return fmt.Errorf("write telemetry config: %w", err)
	}
	return nil
}

// Enable turns telemetry on and records that the user chose.
func (c *Config) Enable() {
	c.Enabled = true
	c.ConsentAsked = true
}

// Disable turns telemetry off and records that the user chose.
func (c *Config) Disable() {
	c.Enabled = false
	c.ConsentAsked = true
}

// NeedsConsent reports whether the user has not been asked yet.
func (c *Config) NeedsConsent() bool { return !c.ConsentAsked }

// IsEnabled reports whether events may be sent.
func (c *Config) IsEnabled() bool { return c.Enabled }
