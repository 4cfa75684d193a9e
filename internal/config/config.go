// Package config loads the edit configuration that drives an HDR metadata
// rewrite, and the runtime settings read from the environment.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zsiec/hdredit/internal/hdr"
)

// ErrConfigInvalid is returned when neither edit section is present.
var ErrConfigInvalid = errors.New("config: one of either MDCV or CLL metadata must be present")

// EditConfig is the edit intent: an optional MDCV override and an optional
// CLL override. A nil section leaves that payload kind untouched.
type EditConfig struct {
	MDCV *hdr.EditMDCV `json:"mdcv,omitempty" yaml:"mdcv,omitempty"`
	CLL  *hdr.EditCLL  `json:"cll,omitempty" yaml:"cll,omitempty"`
}

// Validate checks that at least one edit section is present.
func (c *EditConfig) Validate() error {
	if c == nil || (c.MDCV == nil && c.CLL == nil) {
		return ErrConfigInvalid
	}
	return nil
}

// Load reads an edit config from path. Files ending in .yaml or .yml are
// parsed as YAML, anything else as JSON. The result is validated.
func Load(path string) (*EditConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg *EditConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cfg, err = ParseYAML(data)
	default:
		cfg, err = ParseJSON(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseJSON decodes and validates a JSON edit config. Unknown fields are
// rejected so a misspelled key cannot silently become a no-op.
func ParseJSON(data []byte) (*EditConfig, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var cfg EditConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseYAML decodes and validates a YAML edit config.
func ParseYAML(data []byte) (*EditConfig, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg EditConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
