// Package check implements the declarative check primitives a profile
// control can reference. Each primitive validates its parameters up front
// and returns an executable func probing the audited host.
package check

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hardscan/hardscan/internal/errors"
	"github.com/hardscan/hardscan/internal/profile"
	"github.com/hardscan/hardscan/internal/system"
)

// Status is the outcome of one primitive against the host
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusSkip Status = "skip"
	StatusNA   Status = "not-applicable"
)

// Func executes one primitive and returns its status with evidence
type Func func(ctx context.Context) (Status, string)

// Builder validates a check spec's params and produces the executable func
type Builder func(h *Host, params map[string]interface{}) (Func, error)

// Host carries per-run host state shared by primitives: detected OS facts
// and the cached effective sshd configuration. Safe for concurrent use.
type Host struct {
	OS *system.OSInfo

	mu       sync.Mutex
	sshdConf string
	sshdErr  error
	sshdRead bool
}

// NewHost wraps detected OS facts for a scan run
func NewHost(osInfo *system.OSInfo) *Host {
	return &Host{OS: osInfo}
}

// sshdConfig returns the effective sshd configuration, lowercased and
// cached for the run. Prefers sshd -T (resolved defaults), falls back to
// the raw config file.
func (h *Host) sshdConfig(ctx context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sshdRead {
		return h.sshdConf, h.sshdErr
	}
	h.sshdRead = true

	if toolAvailable("sshd") {
		result, err := system.Probe(ctx, system.TimeoutShort, "sshd", "-T")
		if err == nil && result != nil && result.Success {
			h.sshdConf = strings.ToLower(result.Stdout)
			return h.sshdConf, nil
		}
	}

	data, err := system.ReadHostFile(ctx, "/etc/ssh/sshd_config")
	if err != nil {
		h.sshdErr = errors.Wrap(err, "reading sshd configuration")
		return "", h.sshdErr
	}
	h.sshdConf = strings.ToLower(string(data))
	return h.sshdConf, nil
}

// registry maps check type names to their builders
var registry = map[string]Builder{
	"sysctl":            buildSysctl,
	"kernel-module":     buildKernelModule,
	"mount-option":      buildMountOption,
	"file-permissions":  buildFilePermissions,
	"file-exists":       buildFileExists,
	"file-absent":       buildFileAbsent,
	"file-content":      buildFileContent,
	"sshd-config":       buildSSHDConfig,
	"login-defs":        buildLoginDefs,
	"package-installed": buildPackageInstalled,
	"package-absent":    buildPackageAbsent,
	"service-enabled":   buildServiceEnabled,
	"service-disabled":  buildServiceDisabled,
	"account-policy":    buildAccountPolicy,
	"command":           buildCommand,
}

// Profile validation rejects unknown check types at load time once the
// registry is linked in
func init() {
	profile.RegisterCheckTypes(Types())
}

// Known reports whether a check type exists in the registry
func Known(typ string) bool {
	_, ok := registry[typ]
	return ok
}

// Types lists all registered check types, sorted
func Types() []string {
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Build compiles one check spec into an executable func. Unknown types and
// invalid params fail here, before any scan work starts.
func Build(h *Host, spec profile.CheckSpec) (Func, error) {
	builder, ok := registry[spec.Type]
	if !ok {
		return nil, errors.Wrap(errors.ErrInvalidProfile, "unknown check type %q (known: %s)", spec.Type, strings.Join(Types(), ", "))
	}
	fn, err := builder(h, spec.Params)
	if err != nil {
		return nil, errors.Wrap(err, "check type %q", spec.Type)
	}
	return fn, nil
}

// toolAvailable reports whether a probe tool can run, either from the
// local PATH or through the container host-exec strategies
func toolAvailable(tool string) bool {
	if system.CommandExists(tool) {
		return true
	}
	return system.IsInContainer()
}

// skipMissing is the shared evidence line for an absent probe tool
func skipMissing(tool string) string {
	return fmt.Sprintf("%s not available on this host", tool)
}
