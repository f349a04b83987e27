package review

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules is a team policy pack loaded from the rulesFile setting.
type Rules struct {
	Focus             []string          `json:"focus,omitempty" yaml:"focus,omitempty"`
	SeverityOverrides map[string]string `json:"severityOverrides,omitempty" yaml:"severityOverrides,omitempty"`
	Required          []RequiredCheck   `json:"required,omitempty" yaml:"required,omitempty"`
}

// RequiredCheck is a policy check that should always be enforced.
type RequiredCheck struct {
	ID   string `json:"id" yaml:"id"`
	Text string `json:"text" yaml:"text"`
}

// LoadRules reads a JSON or YAML rules file. An empty path returns nil rules.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	var rules Rules
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &rules)
	default:
		err = json.Unmarshal(data, &rules)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing rules file: %w", err)
	}
	if err := rules.validate(); err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	return &rules, nil
}

func (r *Rules) validate() error {
	for cat, sev := range r.SeverityOverrides {
		if !validCategory(Category(cat)) {
			return fmt.Errorf("unknown category %q in severityOverrides", cat)
		}
		if _, ok := ParseSeverity(sev); !ok {
			return fmt.Errorf("invalid severity %q for %s", sev, cat)
		}
	}
	return nil
}

// BuildRulesPromptSection returns additional prompt instructions derived from rules.
func BuildRulesPromptSection(rules *Rules) string {
	if rules == nil {
		return ""
	}

	var b strings.Builder

	if len(rules.Focus) > 0 {
		fmt.Fprintf(&b, "\nFocus areas: %s. Prioritize findings in these areas.\n",
			strings.Join(rules.Focus, ", "))
	}

	if len(rules.SeverityOverrides) > 0 {
		cats := make([]string, 0, len(rules.SeverityOverrides))
		for cat := range rules.SeverityOverrides {
			cats = append(cats, cat)
		}
		sort.Strings(cats)
		b.WriteString("\nSeverity policy:\n")
		for _, cat := range cats {
			fmt.Fprintf(&b, "- %s findings should be rated as %s severity.\n", cat, rules.SeverityOverrides[cat])
		}
	}

	if len(rules.Required) > 0 {
		b.WriteString("\nRequired checks (always evaluate these):\n")
		for _, req := range rules.Required {
			fmt.Fprintf(&b, "- [%s] %s\n", req.ID, req.Text)
		}
	}

	return b.String()
}

// ApplySeverityOverrides enforces the rules' per-category severities.
func ApplySeverityOverrides(findings []RawFinding, rules *Rules) []RawFinding {
	if rules == nil || len(rules.SeverityOverrides) == 0 {
		return findings
	}
	for i := range findings {
		if override, ok := rules.SeverityOverrides[string(findings[i].Category)]; ok {
			if sev, ok := ParseSeverity(override); ok {
				findings[i].Severity = sev
			}
		}
	}
	return findings
}
