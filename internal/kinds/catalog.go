// Package kinds loads an optional static catalog mapping mention "kind"
// strings to a human-readable label and a default priority hint, used only
// for log enrichment and the admin HTTP surface's display. Absence of the
// catalog file is not an error: defaults apply.
package kinds

import (
	"errors"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mentionflow/harness/internal/config"
)

type (
	// Kind describes one entry in the catalog.
	Kind struct {
		Name     string `yaml:"name"`
		Label    string `yaml:"label"`
		Priority int    `yaml:"priority"`
	}

	// Catalog holds the kind entries loaded from kinds.yaml.
	Catalog struct {
		Kinds []Kind `yaml:"kinds"`

		byName map[string]Kind
	}
)

const (
	// DefaultConfigPath is the default location of the optional kinds catalog.
	DefaultConfigPath = "kinds.yaml"

	// ConfigPathEnvVar names the environment variable overriding DefaultConfigPath.
	ConfigPathEnvVar = "MENTIONFLOW_KINDS_CONFIG"

	// defaultPriority is returned for any kind absent from the catalog.
	defaultPriority = 0
)

// Load reads a catalog from path. A missing file, an empty file, or invalid
// YAML all degrade gracefully to an empty catalog rather than failing
// startup — the kinds catalog is cosmetic, never load-bearing.
func Load(path string) (*Catalog, error) {
	cat := &Catalog{Kinds: []Kind{}, byName: map[string]Kind{}}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted configuration
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("kinds catalog not found, continuing with defaults", slog.String("path", path))

			return cat, nil
		}

		slog.Warn("failed to read kinds catalog, continuing with defaults",
			slog.String("path", path), slog.Any("error", err))

		return cat, nil
	}

	if len(data) == 0 {
		return cat, nil
	}

	if err := yaml.Unmarshal(data, cat); err != nil {
		slog.Warn("failed to parse kinds catalog, continuing with defaults",
			slog.String("path", path), slog.Any("error", err))

		return &Catalog{Kinds: []Kind{}, byName: map[string]Kind{}}, nil
	}

	cat.index()

	return cat, nil
}

// LoadFromEnv loads the catalog from the path named by ConfigPathEnvVar,
// falling back to DefaultConfigPath.
func LoadFromEnv() (*Catalog, error) {
	path := config.GetEnvStr(ConfigPathEnvVar, DefaultConfigPath)

	return Load(path)
}

func (c *Catalog) index() {
	c.byName = make(map[string]Kind, len(c.Kinds))
	for _, k := range c.Kinds {
		c.byName[k.Name] = k
	}
}

// Label returns the catalog's human-readable label for kind, or kind itself
// if it is not in the catalog.
func (c *Catalog) Label(kind string) string {
	if entry, ok := c.byName[kind]; ok && entry.Label != "" {
		return entry.Label
	}

	return kind
}

// Priority returns the catalog's priority hint for kind, or defaultPriority
// if it is not in the catalog.
func (c *Catalog) Priority(kind string) int {
	if entry, ok := c.byName[kind]; ok {
		return entry.Priority
	}

	return defaultPriority
}
