// Package devices holds the viewport preset catalog.
package devices

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Category groups presets by form factor.
type Category string

const (
	CategoryMobile  Category = "mobile"
	CategoryTablet  Category = "tablet"
	CategoryDesktop Category = "desktop"
)

// Preset is an emulated device viewport.
type Preset struct {
	ID          string   `yaml:"id" json:"id"`
	Label       string   `yaml:"label" json:"label"`
	ShortLabel  string   `yaml:"short_label" json:"shortLabel"`
	Width       int      `yaml:"width" json:"width"`
	Height      int      `yaml:"height" json:"height"`
	PixelRatio  float64  `yaml:"pixel_ratio" json:"pixelRatio"`
	UserAgent   string   `yaml:"user_agent" json:"userAgent"`
	Category    Category `yaml:"category" json:"category"`
	Description string   `yaml:"description" json:"description"`
}

// IsMobile reports whether the preset emulates a touch phone.
func (p Preset) IsMobile() bool {
	return p.Category == CategoryMobile
}

func (p Preset) validate() error {
	switch {
	case strings.TrimSpace(p.ID) == "":
		return fmt.Errorf("preset id is required")
	case p.Width <= 0 || p.Height <= 0:
		return fmt.Errorf("preset %s: width and height must be positive", p.ID)
	case p.PixelRatio <= 0:
		return fmt.Errorf("preset %s: pixel_ratio must be positive", p.ID)
	}
	switch p.Category {
	case CategoryMobile, CategoryTablet, CategoryDesktop:
	default:
		return fmt.Errorf("preset %s: unknown category %q", p.ID, p.Category)
	}
	return nil
}

//go:embed presets.yaml
var builtinYAML []byte

// DefaultDeviceIDs is the selection used when none is stored.
var DefaultDeviceIDs = []string{"mobile-360x800", "tablet-768x1024", "desktop-1920x1080"}

// Catalog is a lookup table of presets. Overrides replace or extend the
// built-in presets and are swapped atomically.
type Catalog struct {
	mu        sync.RWMutex
	builtin   []Preset
	overrides []Preset
	merged    []Preset
	byID      map[string]Preset
}

// NewCatalog returns a catalog holding the built-in presets.
func NewCatalog() (*Catalog, error) {
	builtin, err := ParsePresets(builtinYAML)
	if err != nil {
		return nil, fmt.Errorf("builtin presets: %w", err)
	}
	c := &Catalog{builtin: builtin}
	c.rebuildLocked()
	return c, nil
}

// ParsePresets decodes a YAML list of presets.
func ParsePresets(data []byte) ([]Preset, error) {
	var presets []Preset
	if err := yaml.Unmarshal(data, &presets); err != nil {
		return nil, err
	}
	for _, p := range presets {
		if err := p.validate(); err != nil {
			return nil, err
		}
	}
	return presets, nil
}

// LoadOverrides reads an override file and applies it. A missing file clears
// the overrides.
func (c *Catalog) LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		c.SetOverrides(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read device overrides: %w", err)
	}
	presets, err := ParsePresets(data)
	if err != nil {
		return fmt.Errorf("parse device overrides %s: %w", path, err)
	}
	c.SetOverrides(presets)
	return nil
}

// SetOverrides replaces the override set.
func (c *Catalog) SetOverrides(presets []Preset) {
	c.mu.Lock()
	c.overrides = append([]Preset(nil), presets...)
	c.rebuildLocked()
	c.mu.Unlock()
}

func (c *Catalog) rebuildLocked() {
	byID := make(map[string]Preset, len(c.builtin)+len(c.overrides))
	merged := make([]Preset, 0, len(c.builtin)+len(c.overrides))
	index := make(map[string]int)
	for _, set := range [][]Preset{c.builtin, c.overrides} {
		for _, p := range set {
			if i, ok := index[p.ID]; ok {
				merged[i] = p
			} else {
				index[p.ID] = len(merged)
				merged = append(merged, p)
			}
			byID[p.ID] = p
		}
	}
	c.merged = merged
	c.byID = byID
}

// Lookup returns the preset with id.
func (c *Catalog) Lookup(id string) (Preset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.byID[id]
	return p, ok
}

// List returns all presets in catalog order.
func (c *Catalog) List() []Preset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Preset(nil), c.merged...)
}

// Filter keeps known ids, in order, without duplicates.
func (c *Catalog) Filter(ids []string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, ok := c.byID[id]; !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
