// Package sop provides the per-domain standard operating procedures: the
// cleaning rules, chart preferences and report layout used for each
// business domain.
package sop

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"integralq/pkg/contracts/domain"
)

// Cleaning rule names understood by the cleaner.
const (
	RuleRemoveCurrency     = "remove_currency_symbols"
	RuleConvertPercentages = "convert_percentages"
	RuleHandleNulls        = "handle_nulls"
	RuleTrimWhitespace     = "trim_whitespace"
	RuleNormalizeNames     = "normalize_names"
	RuleConvertDates       = "convert_dates"
)

//go:embed bundles.yaml
var defaultBundles []byte

// Bundle is one domain's procedure.
type Bundle struct {
	Domain          domain.Domain              `yaml:"-"`
	Rules           []string                   `yaml:"rules"`
	PreferredCharts []domain.VisualizationType `yaml:"preferred_charts"`
	ReportSections  []string                   `yaml:"report_sections"`
	NarrativeFocus  string                     `yaml:"narrative_focus"`
}

// HasRule reports whether the bundle enables rule.
func (b Bundle) HasRule(rule string) bool {
	for _, r := range b.Rules {
		if r == rule {
			return true
		}
	}
	return false
}

// PreferenceRank returns the position of t in PreferredCharts, or -1.
func (b Bundle) PreferenceRank(t domain.VisualizationType) int {
	for i, p := range b.PreferredCharts {
		if p == t {
			return i
		}
	}
	return -1
}

type document struct {
	Domains map[string]Bundle `yaml:"domains"`
}

// Registry resolves bundles by domain.
type Registry struct {
	bundles map[domain.Domain]Bundle
}

// Default returns the registry built from the embedded bundles.
func Default() *Registry {
	r, err := Parse(defaultBundles)
	if err != nil {
		panic(fmt.Sprintf("embedded SOP bundles are invalid: %v", err))
	}
	return r
}

// Load returns the embedded bundles overlaid with the file at path. Domains
// present in the file replace the embedded definition entirely.
func Load(path string) (*Registry, error) {
	r := Default()
	if path == "" {
		return r, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read SOP file: %w", err)
	}
	override, err := Parse(data)
	if err != nil {
		return nil, err
	}
	for d, b := range override.bundles {
		r.bundles[d] = b
	}
	return r, nil
}

// Parse decodes a YAML bundle document.
func Parse(data []byte) (*Registry, error) {
	var doc document
	if err := yaml.UnmarshalStrict(data, &doc); err != nil {
		return nil, fmt.Errorf("parse SOP bundles: %w", err)
	}

	r := &Registry{bundles: make(map[domain.Domain]Bundle, len(doc.Domains))}
	for key, b := range doc.Domains {
		d, err := domain.ParseDomain(key)
		if err != nil || d == "" {
			return nil, fmt.Errorf("SOP bundle %q: unknown domain", key)
		}
		for _, c := range b.PreferredCharts {
			if !c.Valid() {
				return nil, fmt.Errorf("SOP bundle %q: unknown chart type %q", key, c)
			}
		}
		b.Domain = d
		r.bundles[d] = b
	}
	return r, nil
}

// For returns the bundle for d, falling back to General and then to an
// empty bundle carrying only the null and whitespace rules.
func (r *Registry) For(d domain.Domain) Bundle {
	if b, ok := r.bundles[d]; ok {
		return b
	}
	if b, ok := r.bundles[domain.General]; ok {
		b.Domain = domain.General
		return b
	}
	return Bundle{Domain: domain.General, Rules: []string{RuleHandleNulls, RuleTrimWhitespace}}
}
