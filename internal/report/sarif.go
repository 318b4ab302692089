// SARIF 2.1.0 converter for failed controls, consumable by GitHub and
// GitLab code scanning.

package report

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/hardscan/hardscan/internal/errors"
	"github.com/hardscan/hardscan/internal/scan"
)

const (
	sarifVersion  = "2.1.0"
	sarifSchema   = "https://json.schemastore.org/sarif-2.1.0.json"
	driverName    = "hardscan"
	driverVersion = "1.0.0"
	driverInfoURI = "https://github.com/hardscan/hardscan"
)

type SARIFReport struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []SARIFRun `json:"runs"`
}

type SARIFRun struct {
	Tool    SARIFTool     `json:"tool"`
	Results []SARIFResult `json:"results"`
}

type SARIFTool struct {
	Driver SARIFDriver `json:"driver"`
}

type SARIFDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri"`
	Rules          []SARIFRule `json:"rules"`
}

type SARIFRule struct {
	ID                   string              `json:"id"`
	Name                 string              `json:"name"`
	ShortDescription     SARIFText           `json:"shortDescription"`
	FullDescription      SARIFText           `json:"fullDescription,omitempty"`
	DefaultConfiguration *SARIFConfiguration `json:"defaultConfiguration,omitempty"`
}

type SARIFConfiguration struct {
	Level string `json:"level"`
}

type SARIFResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   SARIFMessage    `json:"message"`
	Locations []SARIFLocation `json:"locations,omitempty"`
	Kind      string          `json:"kind,omitempty"`
}

type SARIFMessage struct {
	Text string `json:"text"`
}

type SARIFText struct {
	Text string `json:"text"`
}

type SARIFLocation struct {
	PhysicalLocation SARIFPhysicalLocation  `json:"physicalLocation,omitempty"`
	LogicalLocations []SARIFLogicalLocation `json:"logicalLocations,omitempty"`
}

type SARIFPhysicalLocation struct {
	ArtifactLocation SARIFArtifactLocation `json:"artifactLocation"`
}

type SARIFArtifactLocation struct {
	URI string `json:"uri"`
}

type SARIFLogicalLocation struct {
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"`
}

// ConvertToSARIF maps a scan result's failed controls to SARIF results.
// Each control becomes a rule; passing controls are not reported.
func ConvertToSARIF(r *scan.Result) *SARIFReport {
	rules := make([]SARIFRule, 0, len(r.Failed))
	results := make([]SARIFResult, 0, len(r.Failed))
	seen := make(map[string]bool)

	host := hostname(r)
	for _, fc := range r.Failed {
		level := severityToSARIFLevel(fc.Severity)

		if !seen[fc.ID] {
			seen[fc.ID] = true
			rule := SARIFRule{
				ID:               fc.ID,
				Name:             fc.ID,
				ShortDescription: SARIFText{Text: fc.Title},
				DefaultConfiguration: &SARIFConfiguration{
					Level: level,
				},
			}
			if fc.Remediation != "" {
				rule.FullDescription = SARIFText{Text: fc.Remediation}
			}
			rules = append(rules, rule)
		}

		msg := fc.Evidence
		if msg == "" {
			msg = fc.Title
		}
		result := SARIFResult{
			RuleID:  fc.ID,
			Level:   level,
			Message: SARIFMessage{Text: msg},
			Kind:    "fail",
		}
		if loc := sectionLocation(controlSection(fc.ID), host); loc != nil {
			result.Locations = []SARIFLocation{*loc}
		}
		results = append(results, result)
	}

	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })

	return &SARIFReport{
		Version: sarifVersion,
		Schema:  sarifSchema,
		Runs: []SARIFRun{{
			Tool: SARIFTool{
				Driver: SARIFDriver{
					Name:           driverName,
					Version:        driverVersion,
					InformationURI: driverInfoURI,
					Rules:          rules,
				},
			},
			Results: results,
		}},
	}
}

func toSARIF(r *scan.Result) (string, error) {
	data, err := json.MarshalIndent(ConvertToSARIF(r), "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.ErrParseFailure, "encoding report: %v", err)
	}
	return string(data), nil
}

func severityToSARIFLevel(severity string) string {
	switch severity {
	case scan.SeverityCritical, scan.SeverityHigh:
		return "error"
	case scan.SeverityMedium:
		return "warning"
	case scan.SeverityLow:
		return "note"
	default:
		return "warning"
	}
}

// controlSection mirrors the profile convention of dotted control IDs
func controlSection(id string) string {
	for i := 0; i < len(id); i++ {
		if id[i] == '.' {
			if i == 0 {
				return id
			}
			return id[:i]
		}
	}
	return id
}

// sectionLocation maps a control section to the config file it audits
func sectionLocation(section, host string) *SARIFLocation {
	var uri, logicalName string

	switch section {
	case "ssh":
		uri = "file:///etc/ssh/sshd_config"
		logicalName = "SSH Configuration"
	case "sysctl":
		uri = "file:///etc/sysctl.conf"
		logicalName = "Kernel Parameters"
	case "kernel":
		uri = "file:///etc/modprobe.d/"
		logicalName = "Kernel Modules"
	case "mounts", "filesystem":
		uri = "file:///etc/fstab"
		logicalName = "Filesystem Configuration"
	case "login":
		uri = "file:///etc/login.defs"
		logicalName = "Login Policy"
	case "accounts":
		uri = "file:///etc/passwd"
		logicalName = "Account Policy"
	case "services":
		uri = "file:///etc/systemd/system/"
		logicalName = "Service Configuration"
	default:
		uri = fmt.Sprintf("system://%s", host)
		logicalName = fmt.Sprintf("%s subsystem", section)
	}

	return &SARIFLocation{
		PhysicalLocation: SARIFPhysicalLocation{
			ArtifactLocation: SARIFArtifactLocation{URI: uri},
		},
		LogicalLocations: []SARIFLogicalLocation{
			{Name: logicalName, Kind: "resource"},
		},
	}
}
