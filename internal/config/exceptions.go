package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Exceptions contains node-specific waivers: controls intentionally not
// enforced, each with a recorded reason. Applied exceptions always surface in
// scan output so waived findings stay visible.
type Exceptions struct {
	Version    string             `yaml:"version"`
	Server     ServerInfo         `yaml:"server"`
	Controls   []ControlException `yaml:"controls"`
	Services   []ServiceException `yaml:"services,omitempty"`
	AlertCodes []string           `yaml:"alertCodes,omitempty"` // Waived drift alert codes (HS-001, ...)
}

// ServerInfo contains optional metadata about the node
type ServerInfo struct {
	Role        string `yaml:"role"`        // e.g., "web", "db", "docker-host"
	Environment string `yaml:"environment"` // e.g., "production", "development"
	Notes       string `yaml:"notes"`
}

// ControlException waives a single control
type ControlException struct {
	ID      string `yaml:"id"`                // e.g., "sysctl.ip-forward"
	Reason  string `yaml:"reason"`            // Why this control is waived (required)
	Expires string `yaml:"expires,omitempty"` // YYYY-MM-DD; expired waivers stop matching
	AddedBy string `yaml:"addedBy,omitempty"`
	AddedAt string `yaml:"addedAt,omitempty"`
}

// ServiceException allows a service to change without drift alerts.
// Names ending in * match by prefix.
type ServiceException struct {
	Name   string `yaml:"name"`
	Reason string `yaml:"reason"`
}

const exceptionsFileName = ".hardscan-exceptions.yaml"

// LoadExceptions loads the exceptions file from standard locations.
// A missing file is not an error; it yields an empty set.
func LoadExceptions() (*Exceptions, error) {
	exc := &Exceptions{Version: "1.0"}

	home, _ := os.UserHomeDir()
	searchPaths := []string{}

	// 1. Environment variable (Docker volume)
	if configDir := os.Getenv("HARDSCAN_CONFIG_DIR"); configDir != "" {
		searchPaths = append(searchPaths,
			filepath.Join(configDir, exceptionsFileName),
		)
	}

	// 2. Current directory
	searchPaths = append(searchPaths, exceptionsFileName)

	// 3. Home directory
	if home != "" {
		searchPaths = append(searchPaths, filepath.Join(home, exceptionsFileName))
	}

	// 4. System-wide
	searchPaths = append(searchPaths, "/etc/hardscan/exceptions.yaml")

	for _, path := range searchPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, exc); err != nil {
			return nil, fmt.Errorf("invalid exceptions file at %s: %w", path, err)
		}
		if err := exc.validate(); err != nil {
			return nil, fmt.Errorf("invalid exceptions file at %s: %w", path, err)
		}
		return exc, nil
	}

	// No exceptions file found - return empty set
	return exc, nil
}

// LoadExceptionsFile reads exceptions from one explicit path. Unlike the
// search-path loader, a missing file here is an error.
func LoadExceptionsFile(path string) (*Exceptions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading exceptions file %s: %w", path, err)
	}

	exc := &Exceptions{Version: "1.0"}
	if err := yaml.Unmarshal(data, exc); err != nil {
		return nil, fmt.Errorf("invalid exceptions file at %s: %w", path, err)
	}
	if err := exc.validate(); err != nil {
		return nil, fmt.Errorf("invalid exceptions file at %s: %w", path, err)
	}
	return exc, nil
}

// ExceptionsSavePath is where exception edits land: the first existing
// file on the search path, else a new file in the current directory
func ExceptionsSavePath() string {
	if configDir := os.Getenv("HARDSCAN_CONFIG_DIR"); configDir != "" {
		p := filepath.Join(configDir, exceptionsFileName)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if _, err := os.Stat(exceptionsFileName); err == nil {
		return exceptionsFileName
	}
	if home, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(home, exceptionsFileName)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return exceptionsFileName
}

// SaveExceptions writes the exceptions file to the given path (0600)
func SaveExceptions(exc *Exceptions, path string) error {
	if path == "" {
		path = exceptionsFileName
	}

	data, err := yaml.Marshal(exc)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// validate rejects waivers without a reason
func (e *Exceptions) validate() error {
	for _, c := range e.Controls {
		if strings.TrimSpace(c.ID) == "" {
			return fmt.Errorf("control exception with empty id")
		}
		if strings.TrimSpace(c.Reason) == "" {
			return fmt.Errorf("control exception %s has no reason", c.ID)
		}
	}
	for _, s := range e.Services {
		if strings.TrimSpace(s.Reason) == "" {
			return fmt.Errorf("service exception %s has no reason", s.Name)
		}
	}
	return nil
}

// Find returns the exception for a control ID, expired or not
func (e *Exceptions) Find(controlID string) *ControlException {
	if e == nil {
		return nil
	}
	for i := range e.Controls {
		if e.Controls[i].ID == controlID {
			return &e.Controls[i]
		}
	}
	return nil
}

// IsExcepted reports whether a control is waived at the given time.
// Expired waivers do not match.
func (e *Exceptions) IsExcepted(controlID string, at time.Time) (bool, *ControlException) {
	exc := e.Find(controlID)
	if exc == nil {
		return false, nil
	}
	if exc.ExpiredAt(at) {
		return false, exc
	}
	return true, exc
}

// ExpiredAt reports whether the waiver has lapsed. Unparseable dates are
// treated as expired so a typo fails closed.
func (c *ControlException) ExpiredAt(at time.Time) bool {
	if c.Expires == "" {
		return false
	}
	deadline, err := time.Parse("2006-01-02", c.Expires)
	if err != nil {
		return true
	}
	return at.After(deadline.Add(24 * time.Hour))
}

// Add registers a waiver, replacing any existing one for the same control
func (e *Exceptions) Add(exc ControlException) error {
	if strings.TrimSpace(exc.ID) == "" {
		return fmt.Errorf("control exception with empty id")
	}
	if strings.TrimSpace(exc.Reason) == "" {
		return fmt.Errorf("control exception %s has no reason", exc.ID)
	}
	if exc.AddedAt == "" {
		exc.AddedAt = time.Now().Format("2006-01-02")
	}

	for i := range e.Controls {
		if e.Controls[i].ID == exc.ID {
			e.Controls[i] = exc
			return nil
		}
	}
	e.Controls = append(e.Controls, exc)
	return nil
}

// Remove deletes a waiver by control ID
func (e *Exceptions) Remove(controlID string) bool {
	for i := range e.Controls {
		if e.Controls[i].ID == controlID {
			e.Controls = append(e.Controls[:i], e.Controls[i+1:]...)
			return true
		}
	}
	return false
}

// IsServiceExcepted checks service drift waivers, with * suffix prefix matching
func (e *Exceptions) IsServiceExcepted(serviceName string) bool {
	if e == nil {
		return false
	}
	for _, svc := range e.Services {
		if strings.HasSuffix(svc.Name, "*") {
			prefix := strings.TrimSuffix(svc.Name, "*")
			if strings.HasPrefix(serviceName, prefix) {
				return true
			}
		} else if svc.Name == serviceName {
			return true
		}
	}
	return false
}

// IsAlertWaived checks if a drift alert code is waived
func (e *Exceptions) IsAlertWaived(code string) bool {
	if e == nil {
		return false
	}

	code = strings.TrimSpace(strings.ToUpper(code))

	for _, waived := range e.AlertCodes {
		if strings.ToUpper(strings.TrimSpace(waived)) == code {
			return true
		}
	}

	return false
}

// AddAlertCode waives a drift alert code
func (e *Exceptions) AddAlertCode(code string) {
	if e == nil {
		return
	}

	code = strings.TrimSpace(strings.ToUpper(code))

	if e.IsAlertWaived(code) {
		return
	}

	e.AlertCodes = append(e.AlertCodes, code)
}

// RemoveAlertCode removes a waived drift alert code
func (e *Exceptions) RemoveAlertCode(code string) bool {
	if e == nil {
		return false
	}

	code = strings.TrimSpace(strings.ToUpper(code))

	for i, waived := range e.AlertCodes {
		if strings.ToUpper(strings.TrimSpace(waived)) == code {
			e.AlertCodes = append(e.AlertCodes[:i], e.AlertCodes[i+1:]...)
			return true
		}
	}

	return false
}
