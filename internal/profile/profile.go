// Package profile loads and validates declarative hardening profiles.
// A profile is a YAML document of controls; each control carries an
// impact weight, a CIS-style level and one or more host checks.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/hardscan/hardscan/internal/errors"
)

// validate is the shared validator instance for profile documents
var validate = validator.New()

// validationMessage renders the first validator failure as a readable
// field/rule message
func validationMessage(err error) string {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		f := verrs[0]
		return fmt.Sprintf("field %s failed '%s' rule", f.Namespace(), f.Tag())
	}
	return err.Error()
}

// knownCheckTypes is filled in by the check package's init. When empty,
// type validation is left to check compilation.
var knownCheckTypes map[string]bool

// RegisterCheckTypes declares the check types Validate accepts in
// control check specs
func RegisterCheckTypes(types []string) {
	knownCheckTypes = make(map[string]bool, len(types))
	for _, t := range types {
		knownCheckTypes[t] = true
	}
}

// Profile is one YAML rule set
type Profile struct {
	Name       string                   `yaml:"name" json:"name" validate:"required"`
	Title      string                   `yaml:"title,omitempty" json:"title,omitempty"`
	Version    string                   `yaml:"version,omitempty" json:"version,omitempty"`
	Summary    string                   `yaml:"summary,omitempty" json:"summary,omitempty"`
	Maintainer string                   `yaml:"maintainer,omitempty" json:"maintainer,omitempty"`
	License    string                   `yaml:"license,omitempty" json:"license,omitempty"`
	Supports   []Support                `yaml:"supports,omitempty" json:"supports,omitempty"`
	Depends    []Dependency             `yaml:"depends,omitempty" json:"depends,omitempty"`
	Attributes map[string]AttributeSpec `yaml:"attributes,omitempty" json:"attributes,omitempty"`
	Controls   []Control                `yaml:"controls" json:"controls" validate:"dive"`

	// path is the source file, kept for resolving relative depends
	path string
}

// Support restricts a profile to matching hosts. Empty fields match anything.
type Support struct {
	Family string `yaml:"family,omitempty" json:"family,omitempty"` // debian, rhel, arch, alpine
	Distro string `yaml:"distro,omitempty" json:"distro,omitempty"` // ubuntu, centos, ...
}

// Dependency references another profile file to merge before this one
type Dependency struct {
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
	Path string `yaml:"path" json:"path" validate:"required"`
}

// AttributeSpec declares a tunable profile parameter
type AttributeSpec struct {
	Default     interface{} `yaml:"default,omitempty" json:"default,omitempty"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	Type        string      `yaml:"type,omitempty" json:"type,omitempty" validate:"omitempty,oneof=string number boolean array"`
}

// Ref links a control to its source recommendation
type Ref struct {
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
	URL  string `yaml:"url,omitempty" json:"url,omitempty"`
}

// Control is one auditable hardening rule
type Control struct {
	ID          string      `yaml:"id" json:"id" validate:"required"`
	Title       string      `yaml:"title" json:"title" validate:"required"`
	Desc        string      `yaml:"desc,omitempty" json:"desc,omitempty"`
	Impact      float64     `yaml:"impact" json:"impact" validate:"min=0,max=1"`
	Level       int         `yaml:"level,omitempty" json:"level,omitempty" validate:"omitempty,oneof=1 2"`
	Tags        []string    `yaml:"tags,omitempty" json:"tags,omitempty"`
	Refs        []Ref       `yaml:"refs,omitempty" json:"refs,omitempty"`
	Remediation Remediation `yaml:"remediation,omitempty" json:"remediation,omitempty"`
	Checks      []CheckSpec `yaml:"checks" json:"checks" validate:"required,min=1,dive"`
}

// Remediation describes how to fix a failing control. Commands feed the
// generated hardening script; prose-only remediation becomes a manual step.
type Remediation struct {
	Text     string   `yaml:"text,omitempty" json:"text,omitempty"`
	Commands []string `yaml:"commands,omitempty" json:"commands,omitempty"`
}

// CheckSpec names a check primitive and its parameters
type CheckSpec struct {
	Type   string                 `yaml:"type" json:"type" validate:"required"`
	Params map[string]interface{} `yaml:"params,omitempty" json:"params,omitempty"`
}

// Section returns the control's grouping prefix: everything before the
// first dot of the ID ("sysctl.ip-forward" -> "sysctl")
func (c *Control) Section() string {
	if i := strings.Index(c.ID, "."); i > 0 {
		return c.ID[:i]
	}
	return c.ID
}

// HasTag reports whether the control carries the given tag
func (c *Control) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Load parses and validates a single profile file
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrFileOperation, "reading profile %s: %v", path, err)
	}

	p := &Profile{}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, errors.Wrap(errors.ErrParseFailure, "parsing profile %s: %v", path, err)
	}
	p.path = path
	p.normalize()

	if err := p.Validate(); err != nil {
		return nil, errors.Wrap(err, "profile %s", path)
	}

	return p, nil
}

// LoadDir loads every *.yaml/*.yml profile in a directory, sorted by name
func LoadDir(dir string) ([]*Profile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrFileOperation, "reading profile directory %s", dir)
	}

	var profiles []*Profile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		p, err := Load(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}

	if len(profiles) == 0 {
		return nil, errors.Wrap(errors.ErrNotFound, "no profiles in %s", dir)
	}

	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return profiles, nil
}

// normalize applies defaults the YAML may omit
func (p *Profile) normalize() {
	for i := range p.Controls {
		if p.Controls[i].Level == 0 {
			p.Controls[i].Level = 1
		}
	}
}

// Validate checks structural rules: required fields, impact range, level
// enum, control ID uniqueness within the profile and, when the check
// registry is linked in, that every check type is a known primitive
func (p *Profile) Validate() error {
	if err := validate.Struct(p); err != nil {
		return errors.Wrap(errors.ErrInvalidProfile, "%s", validationMessage(err))
	}

	seen := make(map[string]bool, len(p.Controls))
	for _, c := range p.Controls {
		if seen[c.ID] {
			return errors.Wrap(errors.ErrInvalidProfile, "duplicate control id %q", c.ID)
		}
		seen[c.ID] = true

		for _, spec := range c.Checks {
			if knownCheckTypes != nil && !knownCheckTypes[spec.Type] {
				return errors.Wrap(errors.ErrInvalidProfile, "control %s: unknown check type %q", c.ID, spec.Type)
			}
		}
	}

	return nil
}

// Lint returns non-fatal findings a profile author should review
func (p *Profile) Lint() []string {
	var warnings []string

	if len(p.Controls) == 0 {
		warnings = append(warnings, "profile has no controls")
	}
	if p.Version == "" {
		warnings = append(warnings, "profile has no version")
	}
	for _, c := range p.Controls {
		if c.Impact == 0 {
			warnings = append(warnings, fmt.Sprintf("control %s has impact 0.0 and will always classify as low", c.ID))
		}
		if c.Remediation.Text == "" && len(c.Remediation.Commands) == 0 {
			warnings = append(warnings, fmt.Sprintf("control %s has no remediation", c.ID))
		}
	}

	return warnings
}

// SupportsHost reports whether the profile applies to the detected host.
// An empty supports list matches everything.
func (p *Profile) SupportsHost(family, distro string) bool {
	if len(p.Supports) == 0 {
		return true
	}
	for _, s := range p.Supports {
		familyOK := s.Family == "" || s.Family == family
		distroOK := s.Distro == "" || s.Distro == distro
		if familyOK && distroOK {
			return true
		}
	}
	return false
}

// Path returns the file the profile was loaded from
func (p *Profile) Path() string {
	return p.path
}
