package profile

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/hardscan/hardscan/internal/errors"
)

// SuiteProfile names one profile a suite runs, with per-profile
// attribute overrides
type SuiteProfile struct {
	Path       string                 `yaml:"path" json:"path" validate:"required"`
	Attributes map[string]interface{} `yaml:"attributes,omitempty" json:"attributes,omitempty"`
}

// Suite is a test-suite descriptor: which profiles to run against a node
// and how to report the outcome. Suites let one invocation cover several
// benchmarks and gate on an overall score.
type Suite struct {
	Name        string                 `yaml:"name" json:"name" validate:"required"`
	Description string                 `yaml:"description,omitempty" json:"description,omitempty"`
	Profiles    []SuiteProfile         `yaml:"profiles" json:"profiles" validate:"required,min=1,dive"`
	Attributes  map[string]interface{} `yaml:"attributes,omitempty" json:"attributes,omitempty"`
	Level       int                    `yaml:"level,omitempty" json:"level,omitempty" validate:"omitempty,oneof=1 2"`
	Tags        []string               `yaml:"tags,omitempty" json:"tags,omitempty"`
	Format      string                 `yaml:"format,omitempty" json:"format,omitempty" validate:"omitempty,oneof=text json yaml sarif summary compact"`
	Output      string                 `yaml:"output,omitempty" json:"output,omitempty"`
	MinScore    float64                `yaml:"min_score,omitempty" json:"min_score,omitempty" validate:"min=0,max=100"`

	path string
}

// LoadSuite reads and validates the first suite descriptor in path
func LoadSuite(path string) (*Suite, error) {
	suites, err := LoadSuites(path)
	if err != nil {
		return nil, err
	}
	return suites[0], nil
}

// LoadSuites reads every suite descriptor in path. A file may hold
// several suites separated by --- document markers.
func LoadSuites(path string) ([]*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrFileOperation, "reading suite %s: %v", path, err)
	}

	var suites []*Suite
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var s Suite
		if err := dec.Decode(&s); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrap(errors.ErrParseFailure, "parsing suite %s: %v", path, err)
		}
		s.path = path
		if s.Level == 0 {
			s.Level = 1
		}
		if s.Format == "" {
			s.Format = "text"
		}
		if err := validate.Struct(&s); err != nil {
			return nil, errors.Wrap(errors.ErrInvalidProfile, "suite %s: %s", path, validationMessage(err))
		}
		suites = append(suites, &s)
	}

	if len(suites) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidProfile, "suite %s holds no documents", path)
	}
	return suites, nil
}

// Path returns the file the suite was loaded from
func (s *Suite) Path() string {
	return s.path
}

// ProfilePath resolves the i-th profile reference against the suite file
// location
func (s *Suite) ProfilePath(i int) string {
	p := s.Profiles[i].Path
	if filepath.IsAbs(p) || s.path == "" {
		return p
	}
	return filepath.Join(filepath.Dir(s.path), p)
}

// MergedAttributes overlays per-profile attributes on suite-wide ones for
// the i-th profile. Per-profile values win.
func (s *Suite) MergedAttributes(i int) map[string]interface{} {
	merged := map[string]interface{}{}
	for k, v := range s.Attributes {
		merged[k] = v
	}
	for k, v := range s.Profiles[i].Attributes {
		merged[k] = v
	}
	return merged
}
