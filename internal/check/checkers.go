package check

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"syscall"

	"github.com/hardscan/hardscan/internal/errors"
	"github.com/hardscan/hardscan/internal/profile"
	"github.com/hardscan/hardscan/internal/system"
)

// buildSysctl verifies a kernel parameter holds the expected value
func buildSysctl(h *Host, params map[string]interface{}) (Func, error) {
	key, err := requireString(params, "key")
	if err != nil {
		return nil, err
	}
	expected, err := requireStringValue(params, "value")
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) (Status, string) {
		if !toolAvailable("sysctl") {
			return StatusSkip, skipMissing("sysctl")
		}
		result, err := system.Probe(ctx, system.TimeoutShort, "sysctl", "-n", key)
		if err != nil {
			return StatusSkip, err.Error()
		}
		if result == nil || !result.Success {
			return StatusFail, fmt.Sprintf("could not read %s", key)
		}
		actual := strings.TrimSpace(result.Stdout)
		if actual == expected {
			return StatusPass, fmt.Sprintf("%s = %s", key, actual)
		}
		return StatusFail, fmt.Sprintf("%s = %s (expected %s)", key, actual, expected)
	}, nil
}

// buildKernelModule verifies a kernel module is disabled (default) or loaded
func buildKernelModule(h *Host, params map[string]interface{}) (Func, error) {
	name, err := requireString(params, "name")
	if err != nil {
		return nil, err
	}
	state := optionalString(params, "state", "disabled")
	if state != "disabled" && state != "loaded" {
		return nil, fmt.Errorf("param \"state\" must be disabled or loaded, got %q", state)
	}

	loadedRe := regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(name) + `\s`)

	if state == "loaded" {
		return func(ctx context.Context) (Status, string) {
			if !toolAvailable("lsmod") {
				return StatusSkip, skipMissing("lsmod")
			}
			result, err := system.Probe(ctx, system.TimeoutShort, "lsmod")
			if err != nil {
				return StatusSkip, err.Error()
			}
			if result != nil && result.Success && loadedRe.MatchString(result.Stdout) {
				return StatusPass, fmt.Sprintf("module %s is loaded", name)
			}
			return StatusFail, fmt.Sprintf("module %s is not loaded", name)
		}, nil
	}

	return func(ctx context.Context) (Status, string) {
		if !toolAvailable("lsmod") {
			return StatusSkip, skipMissing("lsmod")
		}
		result, err := system.Probe(ctx, system.TimeoutShort, "lsmod")
		if err != nil {
			return StatusSkip, err.Error()
		}
		if result != nil && result.Success && loadedRe.MatchString(result.Stdout) {
			return StatusFail, fmt.Sprintf("module %s is currently loaded", name)
		}

		// modprobe dry run shows whether loading is diverted to /bin/false
		result, _ = system.Probe(ctx, system.TimeoutShort, "modprobe", "-n", "-v", name)
		if result != nil {
			output := result.Stdout + result.Stderr
			if strings.Contains(output, "/bin/false") || strings.Contains(output, "/bin/true") {
				return StatusPass, fmt.Sprintf("module %s is disabled via modprobe", name)
			}
			if strings.Contains(output, "not found") {
				return StatusPass, fmt.Sprintf("module %s is not available in this kernel", name)
			}
		}

		if status, evidence, found := modprobeDropin(ctx, name); found {
			return status, evidence
		}

		return StatusFail, fmt.Sprintf("module %s is not disabled", name)
	}, nil
}

// modprobeDropin scans /etc/modprobe.d for a blacklist or install directive
func modprobeDropin(ctx context.Context, name string) (Status, string, bool) {
	dir := system.HostPath("/etc/modprobe.d")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return StatusFail, "", false
	}

	blacklistRe := regexp.MustCompile(`(?m)^\s*blacklist\s+` + regexp.QuoteMeta(name) + `\s*$`)
	installRe := regexp.MustCompile(`(?m)^\s*install\s+` + regexp.QuoteMeta(name) + `\s+/bin/(false|true)`)

	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".conf") {
			continue
		}
		data, err := system.ReadHostFile(ctx, "/etc/modprobe.d/"+e.Name())
		if err != nil {
			continue
		}
		if blacklistRe.Match(data) || installRe.Match(data) {
			return StatusPass, fmt.Sprintf("module %s is disabled in %s", name, e.Name()), true
		}
	}
	return StatusFail, "", false
}

// buildMountOption verifies a mount point carries the wanted options
func buildMountOption(h *Host, params map[string]interface{}) (Func, error) {
	path, err := requireString(params, "path")
	if err != nil {
		return nil, err
	}
	wanted, err := stringSlice(params, "options")
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) (Status, string) {
		if !toolAvailable("findmnt") {
			return StatusSkip, skipMissing("findmnt")
		}
		result, err := system.Probe(ctx, system.TimeoutShort, "findmnt", "-n", "-o", "OPTIONS", path)
		if err != nil {
			return StatusSkip, err.Error()
		}
		if result == nil || !result.Success || strings.TrimSpace(result.Stdout) == "" {
			return StatusNA, fmt.Sprintf("%s is not a separate mount point", path)
		}

		options := strings.TrimSpace(result.Stdout)
		present := map[string]bool{}
		for _, opt := range strings.Split(options, ",") {
			present[strings.TrimSpace(opt)] = true
		}

		var missing []string
		for _, opt := range wanted {
			if !present[opt] {
				missing = append(missing, opt)
			}
		}
		if len(missing) > 0 {
			return StatusFail, fmt.Sprintf("%s is missing options %s (mounted with %s)", path, strings.Join(missing, ","), options)
		}
		return StatusPass, fmt.Sprintf("%s mounted with %s", path, options)
	}, nil
}

// buildFilePermissions verifies mode and ownership bounds on a file.
// The actual mode must not carry any bit the declared mode lacks.
func buildFilePermissions(h *Host, params map[string]interface{}) (Func, error) {
	path, err := requireString(params, "path")
	if err != nil {
		return nil, err
	}
	modeStr, err := requireString(params, "mode")
	if err != nil {
		return nil, err
	}
	parsed, err := strconv.ParseUint(modeStr, 8, 32)
	if err != nil {
		return nil, fmt.Errorf("param \"mode\" %q is not octal", modeStr)
	}
	maxMode := os.FileMode(parsed)
	wantUID := optionalInt(params, "owner", 0)
	wantGID := optionalInt(params, "group", 0)

	return func(ctx context.Context) (Status, string) {
		info, err := os.Stat(system.HostPath(path))
		if err != nil {
			return StatusNA, fmt.Sprintf("%s not found", path)
		}

		mode := info.Mode().Perm()
		stat, ok := info.Sys().(*syscall.Stat_t)
		if !ok {
			return StatusFail, fmt.Sprintf("could not read ownership of %s", path)
		}

		permOK := mode&^maxMode == 0
		uidOK := stat.Uid == uint32(wantUID)
		gidOK := stat.Gid == uint32(wantGID)

		if permOK && uidOK && gidOK {
			return StatusPass, fmt.Sprintf("%s: mode=%04o, uid=%d, gid=%d", path, mode, stat.Uid, stat.Gid)
		}

		var issues []string
		if !permOK {
			issues = append(issues, fmt.Sprintf("mode=%04o (max allowed %04o)", mode, maxMode))
		}
		if !uidOK {
			issues = append(issues, fmt.Sprintf("uid=%d (expected %d)", stat.Uid, wantUID))
		}
		if !gidOK {
			issues = append(issues, fmt.Sprintf("gid=%d (expected %d)", stat.Gid, wantGID))
		}
		return StatusFail, fmt.Sprintf("%s: %s", path, strings.Join(issues, ", "))
	}, nil
}

// buildFileExists verifies a path is present on the host
func buildFileExists(h *Host, params map[string]interface{}) (Func, error) {
	path, err := requireString(params, "path")
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) (Status, string) {
		if system.FileExists(path) {
			return StatusPass, fmt.Sprintf("%s exists", path)
		}
		return StatusFail, fmt.Sprintf("%s does not exist", path)
	}, nil
}

// buildFileAbsent verifies a path is not present on the host
func buildFileAbsent(h *Host, params map[string]interface{}) (Func, error) {
	path, err := requireString(params, "path")
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) (Status, string) {
		if system.FileExists(path) {
			return StatusFail, fmt.Sprintf("%s exists", path)
		}
		return StatusPass, fmt.Sprintf("%s is absent", path)
	}, nil
}

// buildFileContent verifies a file matches (or with absent: true, does not
// match) a regular expression
func buildFileContent(h *Host, params map[string]interface{}) (Func, error) {
	path, err := requireString(params, "path")
	if err != nil {
		return nil, err
	}
	pattern, err := requireString(params, "pattern")
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("param \"pattern\": %v", err)
	}
	absent := optionalBool(params, "absent", false)

	return func(ctx context.Context) (Status, string) {
		data, err := system.ReadHostFile(ctx, path)
		if err != nil {
			if absent && os.IsNotExist(err) {
				return StatusPass, fmt.Sprintf("%s does not exist", path)
			}
			return StatusFail, fmt.Sprintf("could not read %s", path)
		}

		match := re.Find(data)
		if absent {
			if match != nil {
				return StatusFail, fmt.Sprintf("%s matches %q: %s", path, pattern, strings.TrimSpace(string(match)))
			}
			return StatusPass, fmt.Sprintf("%s does not match %q", path, pattern)
		}
		if match != nil {
			return StatusPass, fmt.Sprintf("%s matches %q: %s", path, pattern, strings.TrimSpace(string(match)))
		}
		return StatusFail, fmt.Sprintf("%s does not match %q", path, pattern)
	}, nil
}

// buildSSHDConfig verifies a key in the effective sshd configuration.
// Exactly one of value (exact match) or max (numeric upper bound) is
// required; default decides the outcome when the key is not present.
func buildSSHDConfig(h *Host, params map[string]interface{}) (Func, error) {
	key, err := requireString(params, "key")
	if err != nil {
		return nil, err
	}
	key = strings.ToLower(key)

	wantValue, hasValue := stringValue(params, "value")
	hasMax := hasParam(params, "max")
	max := optionalInt(params, "max", 0)
	if hasValue == hasMax {
		return nil, fmt.Errorf("exactly one of \"value\" or \"max\" is required")
	}
	wantValue = strings.ToLower(wantValue)

	whenAbsent := optionalString(params, "default", "fail")
	if whenAbsent != "pass" && whenAbsent != "fail" {
		return nil, fmt.Errorf("param \"default\" must be pass or fail, got %q", whenAbsent)
	}

	re := regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(key) + `\s+(\S+)`)

	return func(ctx context.Context) (Status, string) {
		conf, err := h.sshdConfig(ctx)
		if err != nil {
			return StatusSkip, "sshd configuration unavailable"
		}

		match := re.FindStringSubmatch(conf)
		if len(match) < 2 {
			if whenAbsent == "pass" {
				return StatusPass, fmt.Sprintf("sshd %s uses its default", key)
			}
			return StatusFail, fmt.Sprintf("sshd %s is not set", key)
		}
		actual := match[1]

		if hasMax {
			n, convErr := strconv.Atoi(actual)
			if convErr != nil {
				return StatusFail, fmt.Sprintf("sshd %s is %s (expected a number <= %d)", key, actual, max)
			}
			if n <= max {
				return StatusPass, fmt.Sprintf("sshd %s is %d", key, n)
			}
			return StatusFail, fmt.Sprintf("sshd %s is %d (expected <= %d)", key, n, max)
		}

		if actual == wantValue {
			return StatusPass, fmt.Sprintf("sshd %s is %s", key, actual)
		}
		return StatusFail, fmt.Sprintf("sshd %s is %s (expected %s)", key, actual, wantValue)
	}, nil
}

// buildLoginDefs verifies a /etc/login.defs setting, by exact value or
// numeric bounds
func buildLoginDefs(h *Host, params map[string]interface{}) (Func, error) {
	key, err := requireString(params, "key")
	if err != nil {
		return nil, err
	}
	key = strings.ToUpper(key)

	wantValue, hasValue := stringValue(params, "value")
	hasMin := hasParam(params, "min")
	hasMax := hasParam(params, "max")
	min := optionalInt(params, "min", 0)
	max := optionalInt(params, "max", 0)
	if !hasValue && !hasMin && !hasMax {
		return nil, fmt.Errorf("one of \"value\", \"min\" or \"max\" is required")
	}
	if hasValue && (hasMin || hasMax) {
		return nil, fmt.Errorf("\"value\" cannot combine with \"min\"/\"max\"")
	}

	re := regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(key) + `\s+(\S+)`)

	return func(ctx context.Context) (Status, string) {
		data, err := system.ReadHostFile(ctx, "/etc/login.defs")
		if err != nil {
			return StatusFail, "could not read /etc/login.defs"
		}

		match := re.FindStringSubmatch(string(data))
		if len(match) < 2 {
			return StatusFail, fmt.Sprintf("%s not configured", key)
		}
		actual := match[1]

		if hasValue {
			if actual == wantValue {
				return StatusPass, fmt.Sprintf("%s is %s", key, actual)
			}
			return StatusFail, fmt.Sprintf("%s is %s (expected %s)", key, actual, wantValue)
		}

		n, convErr := strconv.Atoi(actual)
		if convErr != nil {
			return StatusFail, fmt.Sprintf("%s is %s (expected a number)", key, actual)
		}
		if hasMin && n < min {
			return StatusFail, fmt.Sprintf("%s is %d (expected >= %d)", key, n, min)
		}
		if hasMax && n > max {
			return StatusFail, fmt.Sprintf("%s is %d (expected <= %d)", key, n, max)
		}
		return StatusPass, fmt.Sprintf("%s is %d", key, n)
	}, nil
}

// packageInstalled probes the family's package manager for one package
func packageInstalled(ctx context.Context, family, pkg string) (installed bool, status Status, evidence string) {
	switch family {
	case "debian":
		if !toolAvailable("dpkg") {
			return false, StatusSkip, skipMissing("dpkg")
		}
		result, err := system.Probe(ctx, system.TimeoutShort, "dpkg", "-s", pkg)
		if err != nil {
			return false, StatusSkip, err.Error()
		}
		ok := result != nil && result.Success && strings.Contains(result.Stdout, "Status: install ok installed")
		return ok, "", ""
	case "rhel":
		if !toolAvailable("rpm") {
			return false, StatusSkip, skipMissing("rpm")
		}
		result, err := system.Probe(ctx, system.TimeoutShort, "rpm", "-q", pkg)
		if err != nil {
			return false, StatusSkip, err.Error()
		}
		return result != nil && result.Success, "", ""
	default:
		return false, StatusSkip, fmt.Sprintf("no package manager support for family %q", family)
	}
}

// buildPackageInstalled verifies a package is installed
func buildPackageInstalled(h *Host, params map[string]interface{}) (Func, error) {
	name, err := requireString(params, "name")
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) (Status, string) {
		installed, status, evidence := packageInstalled(ctx, h.OS.Family, name)
		if status == StatusSkip {
			return status, evidence
		}
		if installed {
			return StatusPass, fmt.Sprintf("package %s is installed", name)
		}
		return StatusFail, fmt.Sprintf("package %s is not installed", name)
	}, nil
}

// buildPackageAbsent verifies a package is not installed
func buildPackageAbsent(h *Host, params map[string]interface{}) (Func, error) {
	name, err := requireString(params, "name")
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) (Status, string) {
		installed, status, evidence := packageInstalled(ctx, h.OS.Family, name)
		if status == StatusSkip {
			return status, evidence
		}
		if installed {
			return StatusFail, fmt.Sprintf("package %s is installed", name)
		}
		return StatusPass, fmt.Sprintf("package %s is not installed", name)
	}, nil
}

// serviceState probes systemd for enabled and active state
func serviceState(ctx context.Context, name string) (enabled, active bool, status Status, evidence string) {
	if !toolAvailable("systemctl") {
		return false, false, StatusSkip, skipMissing("systemctl")
	}

	enabledResult, err := system.Probe(ctx, system.TimeoutShort, "systemctl", "is-enabled", name)
	if err != nil {
		return false, false, StatusSkip, err.Error()
	}
	activeResult, err := system.Probe(ctx, system.TimeoutShort, "systemctl", "is-active", name)
	if err != nil {
		return false, false, StatusSkip, err.Error()
	}

	enabled = enabledResult != nil && strings.TrimSpace(enabledResult.Stdout) == "enabled"
	active = activeResult != nil && strings.TrimSpace(activeResult.Stdout) == "active"
	return enabled, active, "", ""
}

// buildServiceEnabled verifies a service is enabled and active
func buildServiceEnabled(h *Host, params map[string]interface{}) (Func, error) {
	name, err := requireString(params, "name")
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) (Status, string) {
		enabled, active, status, evidence := serviceState(ctx, name)
		if status == StatusSkip {
			return status, evidence
		}
		switch {
		case enabled && active:
			return StatusPass, fmt.Sprintf("service %s is enabled and active", name)
		case enabled:
			return StatusFail, fmt.Sprintf("service %s is enabled but not active", name)
		case active:
			return StatusFail, fmt.Sprintf("service %s is active but not enabled", name)
		default:
			return StatusFail, fmt.Sprintf("service %s is not enabled or active", name)
		}
	}, nil
}

// buildServiceDisabled verifies a service is neither enabled nor active
func buildServiceDisabled(h *Host, params map[string]interface{}) (Func, error) {
	name, err := requireString(params, "name")
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) (Status, string) {
		enabled, active, status, evidence := serviceState(ctx, name)
		if status == StatusSkip {
			return status, evidence
		}
		if !enabled && !active {
			return StatusPass, fmt.Sprintf("service %s is disabled", name)
		}
		return StatusFail, fmt.Sprintf("service %s is enabled=%v active=%v (expected disabled)", name, enabled, active)
	}, nil
}

// Account policy rules, each a pure scan over the relevant files

const (
	ruleNoEmptyPasswords  = "no-empty-passwords"
	ruleShadowedPasswords = "shadowed-passwords"
	ruleNoDuplicateUIDs   = "no-duplicate-uids"
	ruleNoDuplicateGIDs   = "no-duplicate-gids"
	ruleOnlyRootUIDZero   = "only-root-uid-zero"
	ruleGroupsExist       = "groups-exist"
)

// buildAccountPolicy verifies one account hygiene rule against the passwd,
// shadow and group databases
func buildAccountPolicy(h *Host, params map[string]interface{}) (Func, error) {
	rule, err := requireString(params, "rule")
	if err != nil {
		return nil, err
	}

	switch rule {
	case ruleNoEmptyPasswords:
		return func(ctx context.Context) (Status, string) {
			data, err := system.ReadHostFile(ctx, "/etc/shadow")
			if err != nil {
				return StatusFail, "could not read /etc/shadow"
			}
			if accounts := emptyPasswordAccounts(string(data)); len(accounts) > 0 {
				return StatusFail, fmt.Sprintf("accounts with empty passwords: %s", strings.Join(accounts, ", "))
			}
			return StatusPass, "no accounts have empty passwords"
		}, nil

	case ruleShadowedPasswords:
		return func(ctx context.Context) (Status, string) {
			data, err := system.ReadHostFile(ctx, "/etc/passwd")
			if err != nil {
				return StatusFail, "could not read /etc/passwd"
			}
			if accounts := unshadowedAccounts(string(data)); len(accounts) > 0 {
				return StatusFail, fmt.Sprintf("accounts without shadowed passwords: %s", strings.Join(accounts, ", "))
			}
			return StatusPass, "all accounts use shadowed passwords"
		}, nil

	case ruleNoDuplicateUIDs:
		return func(ctx context.Context) (Status, string) {
			data, err := system.ReadHostFile(ctx, "/etc/passwd")
			if err != nil {
				return StatusFail, "could not read /etc/passwd"
			}
			if dups := duplicateIDs(string(data)); len(dups) > 0 {
				return StatusFail, fmt.Sprintf("duplicate UIDs: %s", strings.Join(dups, "; "))
			}
			return StatusPass, "no duplicate UIDs"
		}, nil

	case ruleNoDuplicateGIDs:
		return func(ctx context.Context) (Status, string) {
			data, err := system.ReadHostFile(ctx, "/etc/group")
			if err != nil {
				return StatusFail, "could not read /etc/group"
			}
			if dups := duplicateIDs(string(data)); len(dups) > 0 {
				return StatusFail, fmt.Sprintf("duplicate GIDs: %s", strings.Join(dups, "; "))
			}
			return StatusPass, "no duplicate GIDs"
		}, nil

	case ruleOnlyRootUIDZero:
		return func(ctx context.Context) (Status, string) {
			data, err := system.ReadHostFile(ctx, "/etc/passwd")
			if err != nil {
				return StatusFail, "could not read /etc/passwd"
			}
			if extra := nonRootUIDZero(string(data)); len(extra) > 0 {
				return StatusFail, fmt.Sprintf("non-root users with UID 0: %s", strings.Join(extra, ", "))
			}
			return StatusPass, "only root has UID 0"
		}, nil

	case ruleGroupsExist:
		return func(ctx context.Context) (Status, string) {
			passwd, err := system.ReadHostFile(ctx, "/etc/passwd")
			if err != nil {
				return StatusFail, "could not read /etc/passwd"
			}
			group, err := system.ReadHostFile(ctx, "/etc/group")
			if err != nil {
				return StatusFail, "could not read /etc/group"
			}
			if missing := missingGroups(string(passwd), string(group)); len(missing) > 0 {
				return StatusFail, fmt.Sprintf("users with non-existent GIDs: %s", strings.Join(missing, ", "))
			}
			return StatusPass, "all primary groups exist"
		}, nil

	default:
		return nil, fmt.Errorf("unknown account rule %q", rule)
	}
}

func emptyPasswordAccounts(shadow string) []string {
	var accounts []string
	scanner := bufio.NewScanner(strings.NewReader(shadow))
	for scanner.Scan() {
		parts := strings.Split(scanner.Text(), ":")
		if len(parts) >= 2 && parts[0] != "" && parts[1] == "" {
			accounts = append(accounts, parts[0])
		}
	}
	return accounts
}

func unshadowedAccounts(passwd string) []string {
	var accounts []string
	scanner := bufio.NewScanner(strings.NewReader(passwd))
	for scanner.Scan() {
		parts := strings.Split(scanner.Text(), ":")
		if len(parts) >= 2 && parts[0] != "" && parts[1] != "x" {
			accounts = append(accounts, parts[0])
		}
	}
	return accounts
}

// duplicateIDs finds numeric IDs in column 3 shared by several entries.
// Works for both passwd (UID) and group (GID) layouts.
func duplicateIDs(db string) []string {
	byID := map[string][]string{}
	var order []string
	scanner := bufio.NewScanner(strings.NewReader(db))
	for scanner.Scan() {
		parts := strings.Split(scanner.Text(), ":")
		if len(parts) >= 3 && parts[0] != "" {
			id := parts[2]
			if len(byID[id]) == 0 {
				order = append(order, id)
			}
			byID[id] = append(byID[id], parts[0])
		}
	}

	var dups []string
	for _, id := range order {
		if names := byID[id]; len(names) > 1 {
			dups = append(dups, fmt.Sprintf("%s: %s", id, strings.Join(names, ", ")))
		}
	}
	return dups
}

func nonRootUIDZero(passwd string) []string {
	var extra []string
	scanner := bufio.NewScanner(strings.NewReader(passwd))
	for scanner.Scan() {
		parts := strings.Split(scanner.Text(), ":")
		if len(parts) >= 3 && parts[2] == "0" && parts[0] != "root" && parts[0] != "" {
			extra = append(extra, parts[0])
		}
	}
	return extra
}

func missingGroups(passwd, group string) []string {
	gids := map[string]bool{}
	scanner := bufio.NewScanner(strings.NewReader(group))
	for scanner.Scan() {
		parts := strings.Split(scanner.Text(), ":")
		if len(parts) >= 3 {
			gids[parts[2]] = true
		}
	}

	var missing []string
	scanner = bufio.NewScanner(strings.NewReader(passwd))
	for scanner.Scan() {
		parts := strings.Split(scanner.Text(), ":")
		if len(parts) >= 4 && parts[0] != "" && !gids[parts[3]] {
			missing = append(missing, fmt.Sprintf("%s(gid=%s)", parts[0], parts[3]))
		}
	}
	return missing
}

// buildCommand runs an arbitrary probe and verifies exit code and
// optionally a stdout pattern. Container deployments only allow the
// executor's probe set, so unknown tools come back as skip.
func buildCommand(h *Host, params map[string]interface{}) (Func, error) {
	argv, err := stringSlice(params, "argv")
	if err != nil {
		return nil, err
	}
	wantExit := optionalInt(params, "exit", 0)

	var stdoutRe *regexp.Regexp
	if pattern := optionalString(params, "stdout", ""); pattern != "" {
		stdoutRe, err = regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("param \"stdout\": %v", err)
		}
	}

	return func(ctx context.Context) (Status, string) {
		if !toolAvailable(argv[0]) {
			return StatusSkip, skipMissing(argv[0])
		}
		result, err := system.Probe(ctx, system.TimeoutLong, argv...)
		if err != nil {
			return StatusSkip, err.Error()
		}
		if result == nil {
			return StatusFail, fmt.Sprintf("%s produced no result", argv[0])
		}
		if result.TimedOut {
			return StatusFail, fmt.Sprintf("%s timed out", strings.Join(argv, " "))
		}
		if result.ExitCode != wantExit {
			return StatusFail, fmt.Sprintf("%s exited %d (expected %d)", strings.Join(argv, " "), result.ExitCode, wantExit)
		}
		if stdoutRe != nil {
			match := stdoutRe.FindString(result.Stdout)
			if match == "" {
				return StatusFail, fmt.Sprintf("%s output did not match %q", argv[0], stdoutRe.String())
			}
			return StatusPass, fmt.Sprintf("%s: %s", argv[0], strings.TrimSpace(match))
		}
		return StatusPass, fmt.Sprintf("%s exited %d", strings.Join(argv, " "), result.ExitCode)
	}, nil
}

// CompileControl builds every check of a control. All checks must pass for
// the control to pass; compile errors abort the scan before any probe runs.
func CompileControl(h *Host, specs []profile.CheckSpec) ([]Func, error) {
	funcs := make([]Func, 0, len(specs))
	for i, spec := range specs {
		fn, err := Build(h, spec)
		if err != nil {
			return nil, errors.Wrap(err, "check %d", i+1)
		}
		funcs = append(funcs, fn)
	}
	return funcs, nil
}
