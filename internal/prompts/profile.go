// Package prompts loads the guidance prompt profile and renders the two model prompts.
package prompts

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed default_profile.yaml
var defaultProfile []byte

// Profile is the YAML-configurable part of the guidance pipeline.
type Profile struct {
	Name             string   `yaml:"name"`
	MatchThreshold   float64  `yaml:"match_threshold"`
	MatchCount       int      `yaml:"match_count"`
	ContextSeparator string   `yaml:"context_separator"`
	Actions          []string `yaml:"actions"`
	ConfidenceLabels []string `yaml:"confidence_labels"`
	RewriteTemplate  string   `yaml:"rewrite_template"`
	AnswerTemplate   string   `yaml:"answer_template"`

	rewrite *template.Template
	answer  *template.Template
}

// Load reads a profile from path, or the embedded default when path is empty.
func Load(path string) (*Profile, error) {
	data := defaultProfile
	if path != "" {
		slog.Info("Loading prompt profile", "file", path)
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt profile %s: %w", path, err)
		}
		data = b
	}
	return Parse(data)
}

// Parse decodes and validates a YAML profile.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse prompt profile YAML: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the profile and compiles its templates.
func (p *Profile) Validate() error {
	if p.MatchThreshold <= 0 || p.MatchThreshold > 1 {
		return fmt.Errorf("profile validation failed: match_threshold must be in (0, 1], got %v", p.MatchThreshold)
	}
	if p.MatchCount <= 0 {
		return fmt.Errorf("profile validation failed: match_count must be positive")
	}
	if p.ContextSeparator == "" {
		return fmt.Errorf("profile validation failed: context_separator is required")
	}
	if len(p.Actions) == 0 {
		return fmt.Errorf("profile validation failed: at least one action key is required")
	}
	if len(p.ConfidenceLabels) == 0 {
		return fmt.Errorf("profile validation failed: at least one confidence label is required")
	}

	if p.RewriteTemplate == "" || p.AnswerTemplate == "" {
		return fmt.Errorf("profile validation failed: rewrite_template and answer_template are required")
	}

	var err error
	if p.rewrite, err = template.New("rewrite").Option("missingkey=error").Parse(p.RewriteTemplate); err != nil {
		return fmt.Errorf("profile validation failed: rewrite_template: %w", err)
	}
	if p.answer, err = template.New("answer").Option("missingkey=error").Parse(p.AnswerTemplate); err != nil {
		return fmt.Errorf("profile validation failed: answer_template: %w", err)
	}
	return nil
}
