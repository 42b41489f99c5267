package domain

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// AuditConfig holds every tunable threshold, loaded from .forensor.yaml.
// All fields have documented defaults; an invalid value aborts the run
// before any scanning starts.
type AuditConfig struct {
	// Protocols restricts which scanners run. Empty means all four.
	Protocols []string `yaml:"protocols"         json:"protocols,omitempty"`
	// Ignore holds doublestar globs matched against relative paths and basenames.
	Ignore       []string `yaml:"ignore"            json:"ignore,omitempty"`
	MaxFileBytes int64    `yaml:"max_file_bytes"    json:"max_file_bytes,omitempty"`
	MaxCommits   int      `yaml:"max_commits"       json:"max_commits,omitempty"`
	EvidenceMax  int      `yaml:"evidence_max"      json:"evidence_max,omitempty"`

	// Rot protocol.
	StaleDays       int `yaml:"stale_days"        json:"stale_days,omitempty"`
	ChurnWindowDays int `yaml:"churn_window_days" json:"churn_window_days,omitempty"`
	ChurnThreshold  int `yaml:"churn_threshold"   json:"churn_threshold,omitempty"`

	// Guilt protocol.
	GodClassLines int     `yaml:"god_class_lines"   json:"god_class_lines,omitempty"`
	GuiltScale    float64 `yaml:"guilt_scale"       json:"guilt_scale,omitempty"`

	// Cost protocol. HeavyImports entries merge into the built-in table.
	TrivialComplexity int               `yaml:"trivial_complexity" json:"trivial_complexity,omitempty"`
	HeavyImports      map[string]string `yaml:"heavy_imports"      json:"heavy_imports,omitempty"`

	// Validation gate.
	MinFindings        int                `yaml:"min_findings"              json:"min_findings,omitempty"`
	MinRecommendations int                `yaml:"min_recommendations"       json:"min_recommendations,omitempty"`
	BaseThreshold      float64            `yaml:"base_threshold"            json:"base_threshold,omitempty"`
	SizeAdjustments    map[string]float64 `yaml:"size_adjustments"          json:"size_adjustments,omitempty"`
	MaxIterations      int                `yaml:"max_iterations"            json:"max_iterations,omitempty"`
	InterpretTimeout   int                `yaml:"interpret_timeout_seconds" json:"interpret_timeout_seconds,omitempty"`
}

// DefaultConfig returns the documented defaults for every threshold.
func DefaultConfig() AuditConfig {
	return AuditConfig{
		MaxFileBytes:    1 << 20,
		MaxCommits:      2000,
		EvidenceMax:     80,
		StaleDays:       365,
		ChurnWindowDays: 30,
		ChurnThreshold:  50,
		GodClassLines:   500,
		GuiltScale:      200,

		TrivialComplexity: 10,

		MinFindings:        3,
		MinRecommendations: 2,
		BaseThreshold:      0.70,
		SizeAdjustments: map[string]float64{
			string(SizeTiny):    0.00,
			string(SizeSmall):   0.02,
			string(SizeMedium):  0.05,
			string(SizeLarge):   0.10,
			string(SizeMassive): 0.15,
		},
		MaxIterations:    3,
		InterpretTimeout: 120,
	}
}

// SizeAdjustment returns the threshold reduction for a size category.
func (c AuditConfig) SizeAdjustment(cat RepoSizeCategory) float64 {
	return c.SizeAdjustments[string(cat)]
}

// EnabledProtocols resolves the protocol subset, defaulting to all four.
func (c AuditConfig) EnabledProtocols() []string {
	if len(c.Protocols) == 0 {
		return AllProtocols
	}
	return c.Protocols
}

// Validate checks the config for invalid values and returns a descriptive
// error naming the offending field. A failing config must stop the run.
func (c AuditConfig) Validate() error {
	positives := []struct {
		name  string
		value int
	}{
		{"stale_days", c.StaleDays},
		{"churn_window_days", c.ChurnWindowDays},
		{"churn_threshold", c.ChurnThreshold},
		{"god_class_lines", c.GodClassLines},
		{"evidence_max", c.EvidenceMax},
		{"trivial_complexity", c.TrivialComplexity},
		{"max_commits", c.MaxCommits},
		{"max_iterations", c.MaxIterations},
		{"interpret_timeout_seconds", c.InterpretTimeout},
	}
	for _, p := range positives {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, p.value)
		}
	}

	if c.MaxFileBytes <= 0 {
		return fmt.Errorf("max_file_bytes must be positive, got %d", c.MaxFileBytes)
	}
	if c.GuiltScale <= 0 {
		return fmt.Errorf("guilt_scale must be positive, got %g", c.GuiltScale)
	}
	if c.MinFindings < 0 {
		return fmt.Errorf("min_findings must not be negative, got %d", c.MinFindings)
	}
	if c.MinRecommendations < 0 {
		return fmt.Errorf("min_recommendations must not be negative, got %d", c.MinRecommendations)
	}
	if c.BaseThreshold <= 0 || c.BaseThreshold > 1 {
		return fmt.Errorf("base_threshold must be in (0, 1], got %g", c.BaseThreshold)
	}

	valid := make(map[string]bool, len(AllProtocols))
	for _, p := range AllProtocols {
		valid[p] = true
	}
	for _, p := range c.Protocols {
		if !valid[p] {
			return fmt.Errorf("unknown protocol %q (valid: rot, guilt, exposure, cost)", p)
		}
	}

	validSizes := map[string]bool{
		string(SizeTiny): true, string(SizeSmall): true, string(SizeMedium): true,
		string(SizeLarge): true, string(SizeMassive): true,
	}
	for cat, adj := range c.SizeAdjustments {
		if !validSizes[cat] {
			return fmt.Errorf("size_adjustments: unknown category %q", cat)
		}
		if adj < 0 || adj > 0.5 {
			return fmt.Errorf("size_adjustments[%s] must be in [0, 0.5], got %g", cat, adj)
		}
	}

	for _, g := range c.Ignore {
		if !doublestar.ValidatePattern(g) {
			return fmt.Errorf("ignore: invalid glob pattern %q", g)
		}
	}

	return nil
}
