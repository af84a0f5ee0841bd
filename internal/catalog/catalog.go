// Package catalog loads the flow catalog: which flows are enabled and the
// model parameters, cache TTL and schedule of each.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/brandflow/brandflow/internal/flow"
)

//go:embed flows.yaml
var defaultCatalog []byte

// Duration is a time.Duration that also accepts a day suffix ("7d").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// ParseDuration parses Go durations plus whole days ("7d").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

// FlowSpec is one catalog entry. Pointer fields distinguish "unset" from a
// zero value when merging overrides.
type FlowSpec struct {
	Name            string    `yaml:"name" json:"name"`
	Description     string    `yaml:"description,omitempty" json:"description"`
	Enabled         *bool     `yaml:"enabled,omitempty" json:"-"`
	Model           string    `yaml:"model,omitempty" json:"model,omitempty"`
	Temperature     *float32  `yaml:"temperature,omitempty" json:"-"`
	MaxOutputTokens int       `yaml:"maxOutputTokens,omitempty" json:"maxOutputTokens"`
	CacheTTL        *Duration `yaml:"cacheTTL,omitempty" json:"-"`
	Schedule        string    `yaml:"schedule,omitempty" json:"schedule,omitempty"`
}

// IsEnabled reports the enabled flag, defaulting to true.
func (s FlowSpec) IsEnabled() bool { return s.Enabled == nil || *s.Enabled }

// TTL returns the cache TTL, zero when unset.
func (s FlowSpec) TTL() time.Duration {
	if s.CacheTTL == nil {
		return 0
	}
	return time.Duration(*s.CacheTTL)
}

// Competitor is a tracked competitor for competitor-watch.
type Competitor struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url,omitempty" json:"url,omitempty"`
}

// Catalog is the parsed catalog file.
type Catalog struct {
	Flows       []FlowSpec   `yaml:"flows"`
	Competitors []Competitor `yaml:"competitors"`
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load returns the embedded catalog with the file at path merged over it.
// An empty path returns the defaults.
func Load(path string) (*Catalog, error) {
	base, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	override, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	base.merge(override)
	return base, nil
}

func (c *Catalog) validate() error {
	seen := make(map[string]bool, len(c.Flows))
	for i, f := range c.Flows {
		if f.Name == "" {
			return fmt.Errorf("flows[%d]: name is required", i)
		}
		if seen[f.Name] {
			return fmt.Errorf("flows[%d]: duplicate flow %q", i, f.Name)
		}
		seen[f.Name] = true
		if f.Temperature != nil && (*f.Temperature < 0 || *f.Temperature > 2) {
			return fmt.Errorf("flow %q: temperature %v out of range [0,2]", f.Name, *f.Temperature)
		}
		if f.MaxOutputTokens < 0 {
			return fmt.Errorf("flow %q: maxOutputTokens must not be negative", f.Name)
		}
	}
	for i, comp := range c.Competitors {
		if strings.TrimSpace(comp.Name) == "" {
			return fmt.Errorf("competitors[%d]: name is required", i)
		}
	}
	return nil
}

func (c *Catalog) merge(o *Catalog) {
	for _, of := range o.Flows {
		idx := -1
		for i := range c.Flows {
			if c.Flows[i].Name == of.Name {
				idx = i
				break
			}
		}
		if idx < 0 {
			c.Flows = append(c.Flows, of)
			continue
		}
		f := &c.Flows[idx]
		if of.Description != "" {
			f.Description = of.Description
		}
		if of.Enabled != nil {
			f.Enabled = of.Enabled
		}
		if of.Model != "" {
			f.Model = of.Model
		}
		if of.Temperature != nil {
			f.Temperature = of.Temperature
		}
		if of.MaxOutputTokens != 0 {
			f.MaxOutputTokens = of.MaxOutputTokens
		}
		if of.CacheTTL != nil {
			f.CacheTTL = of.CacheTTL
		}
		if of.Schedule != "" {
			f.Schedule = of.Schedule
		}
	}
	if len(o.Competitors) > 0 {
		c.Competitors = o.Competitors
	}
}

// Flow returns the entry for name.
func (c *Catalog) Flow(name string) (FlowSpec, bool) {
	for _, f := range c.Flows {
		if f.Name == name {
			return f, true
		}
	}
	return FlowSpec{}, false
}

// Settings resolves the runtime settings of name. defaultModel fills in an
// unset model. Flows missing from the catalog are disabled.
func (c *Catalog) Settings(name, defaultModel string) flow.Settings {
	f, ok := c.Flow(name)
	if !ok {
		return flow.Settings{Enabled: false, Model: defaultModel}
	}
	s := flow.Settings{
		Enabled:         f.IsEnabled(),
		Model:           f.Model,
		MaxOutputTokens: f.MaxOutputTokens,
		CacheTTL:        f.TTL(),
	}
	if s.Model == "" {
		s.Model = defaultModel
	}
	if f.Temperature != nil {
		s.Temperature = *f.Temperature
	}
	return s
}

// Entry is the public view of a catalog flow.
type Entry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
	Model       string `json:"model"`
	CacheTTL    string `json:"cacheTTL,omitempty"`
	Schedule    string `json:"schedule,omitempty"`
}

// Entries lists every flow for display.
func (c *Catalog) Entries(defaultModel string) []Entry {
	out := make([]Entry, 0, len(c.Flows))
	for _, f := range c.Flows {
		e := Entry{
			Name:        f.Name,
			Description: f.Description,
			Enabled:     f.IsEnabled(),
			Model:       f.Model,
			Schedule:    f.Schedule,
		}
		if e.Model == "" {
			e.Model = defaultModel
		}
		if ttl := f.TTL(); ttl > 0 {
			e.CacheTTL = ttl.String()
		}
		out = append(out, e)
	}
	return out
}
