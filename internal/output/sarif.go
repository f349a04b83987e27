package output

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dshills/lens/internal/review"
)

// SARIFWriter outputs findings in SARIF v2.1.0 format.
type SARIFWriter struct{}

func (s *SARIFWriter) Write(w io.Writer, report *review.Report) error {
	sarif := buildSARIF(report)
	data, err := json.MarshalIndent(sarif, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling SARIF: %w", err)
	}
	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("writing SARIF: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool        sarifTool         `json:"tool"`
	Invocations []sarifInvocation `json:"invocations,omitempty"`
	Results     []sarifResult     `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	ShortDescription sarifMessage        `json:"shortDescription"`
	DefaultConfig    sarifDefaultConfig  `json:"defaultConfiguration"`
	Properties       sarifRuleProperties `json:"properties,omitempty"`
}

type sarifDefaultConfig struct {
	Level string `json:"level"`
}

type sarifRuleProperties struct {
	Tags []string `json:"tags,omitempty"`
}

type sarifInvocation struct {
	ExecutionSuccessful        bool                `json:"executionSuccessful"`
	ToolExecutionNotifications []sarifNotification `json:"toolExecutionNotifications,omitempty"`
}

type sarifNotification struct {
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifResult struct {
	RuleID              string            `json:"ruleId"`
	Level               string            `json:"level"`
	Message             sarifMessage      `json:"message"`
	Locations           []sarifLocation   `json:"locations,omitempty"`
	Fixes               []sarifFix        `json:"fixes,omitempty"`
	PartialFingerprints map[string]string `json:"partialFingerprints,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine"`
	EndLine   int `json:"endLine"`
}

type sarifFix struct {
	Description sarifMessage `json:"description"`
}

func buildSARIF(report *review.Report) sarifLog {
	var rules []sarifRule
	seen := make(map[string]bool)
	results := []sarifResult{}
	var notes []sarifNotification

	for _, p := range report.Paths() {
		fr := report.Files[p]
		if fr.Error != "" {
			notes = append(notes, sarifNotification{
				Level:     "error",
				Message:   sarifMessage{Text: fmt.Sprintf("%s review (%s): %s", fr.Status, fr.ErrorKind, fr.Error)},
				Locations: []sarifLocation{location(p, nil)},
			})
		}

		for _, f := range fr.Findings {
			ruleID := generateRuleID(f)
			if !seen[ruleID] {
				seen[ruleID] = true
				rules = append(rules, sarifRule{
					ID:               ruleID,
					Name:             string(f.Category),
					ShortDescription: sarifMessage{Text: title(f)},
					DefaultConfig:    sarifDefaultConfig{Level: severityToLevel(f.Severity)},
					Properties:       sarifRuleProperties{Tags: f.Tags},
				})
			}

			result := sarifResult{
				RuleID:              ruleID,
				Level:               severityToLevel(f.Severity),
				Message:             sarifMessage{Text: f.Message},
				Locations:           []sarifLocation{location(p, f.Lines)},
				PartialFingerprints: map[string]string{"lensFindingId": f.ID},
			}
			if f.Suggestion != "" {
				result.Fixes = append(result.Fixes, sarifFix{
					Description: sarifMessage{Text: f.Suggestion},
				})
			}
			results = append(results, result)
		}
	}

	run := sarifRun{
		Tool: sarifTool{
			Driver: sarifDriver{
				Name:           review.ToolName,
				Version:        report.Version,
				InformationURI: "https://github.com/dshills/lens",
				Rules:          rules,
			},
		},
		Results: results,
	}
	if len(notes) > 0 {
		run.Invocations = []sarifInvocation{{
			ExecutionSuccessful:        report.Summary.Statuses.Failed == 0,
			ToolExecutionNotifications: notes,
		}}
	}

	return sarifLog{
		Version: "2.1.0",
		Schema:  "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/main/sarif-2.1/schema/sarif-schema-2.1.0.json",
		Runs:    []sarifRun{run},
	}
}

func location(p string, lines *review.LineRange) sarifLocation {
	loc := sarifLocation{PhysicalLocation: sarifPhysicalLocation{
		ArtifactLocation: sarifArtifactLocation{URI: p},
	}}
	if lines != nil {
		loc.PhysicalLocation.Region = &sarifRegion{StartLine: lines.Start, EndLine: lines.End}
	}
	return loc
}

// severityToLevel maps a severity to a SARIF level.
func severityToLevel(s review.Severity) string {
	switch s {
	case review.SeverityCritical, review.SeverityHigh:
		return "error"
	case review.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}

// generateRuleID creates a stable rule ID from category and title.
func generateRuleID(f review.Finding) string {
	data := fmt.Sprintf("%s/%s", f.Category, title(f))
	h := sha256.Sum256([]byte(data))
	return fmt.Sprintf("lens/%s/%x", f.Category, h[:4])
}
