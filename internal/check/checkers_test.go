package check

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hardscan/hardscan/internal/profile"
	"github.com/hardscan/hardscan/internal/system"
)

func testHost() *Host {
	return NewHost(&system.OSInfo{System: "linux", Distro: "ubuntu", Family: "debian"})
}

func TestRegistry(t *testing.T) {
	for _, typ := range []string{"sysctl", "kernel-module", "mount-option", "file-permissions",
		"file-exists", "file-absent", "file-content", "sshd-config", "login-defs",
		"package-installed", "package-absent", "service-enabled", "service-disabled",
		"account-policy", "command"} {
		if !Known(typ) {
			t.Errorf("Known(%q) = false, want true", typ)
		}
	}
	if Known("quantum-audit") {
		t.Error("Known(quantum-audit) = true, want false")
	}

	types := Types()
	if len(types) != 15 {
		t.Errorf("len(Types()) = %d, want 15", len(types))
	}
	for i := 1; i < len(types); i++ {
		if types[i-1] >= types[i] {
			t.Errorf("Types() not sorted at %d: %q >= %q", i, types[i-1], types[i])
		}
	}
}

func TestBuildUnknownType(t *testing.T) {
	_, err := Build(testHost(), profile.CheckSpec{Type: "quantum-audit"})
	if err == nil {
		t.Fatal("Build() expected error for unknown type")
	}
	if !strings.Contains(err.Error(), "unknown check type") {
		t.Errorf("error = %v, want unknown check type message", err)
	}
}

func TestBuildParamValidation(t *testing.T) {
	tests := []struct {
		name   string
		typ    string
		params map[string]interface{}
	}{
		{"sysctl missing key", "sysctl", map[string]interface{}{"value": "0"}},
		{"sysctl missing value", "sysctl", map[string]interface{}{"key": "k"}},
		{"kernel-module missing name", "kernel-module", nil},
		{"kernel-module bad state", "kernel-module", map[string]interface{}{"name": "usb-storage", "state": "frozen"}},
		{"mount-option missing options", "mount-option", map[string]interface{}{"path": "/tmp"}},
		{"file-permissions bad mode", "file-permissions", map[string]interface{}{"path": "/etc/passwd", "mode": "rw-r--r--"}},
		{"file-permissions missing mode", "file-permissions", map[string]interface{}{"path": "/etc/passwd"}},
		{"file-content bad pattern", "file-content", map[string]interface{}{"path": "/etc/passwd", "pattern": "("}},
		{"sshd-config value and max", "sshd-config", map[string]interface{}{"key": "maxauthtries", "value": "4", "max": 4}},
		{"sshd-config neither value nor max", "sshd-config", map[string]interface{}{"key": "maxauthtries"}},
		{"sshd-config bad default", "sshd-config", map[string]interface{}{"key": "loglevel", "value": "info", "default": "maybe"}},
		{"login-defs value with min", "login-defs", map[string]interface{}{"key": "PASS_MAX_DAYS", "value": "365", "min": 1}},
		{"login-defs no assertion", "login-defs", map[string]interface{}{"key": "PASS_MAX_DAYS"}},
		{"account-policy unknown rule", "account-policy", map[string]interface{}{"rule": "no-bad-vibes"}},
		{"command missing argv", "command", map[string]interface{}{"exit": 0}},
		{"command bad stdout pattern", "command", map[string]interface{}{"argv": "true", "stdout": "("}},
	}

	h := testHost()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Build(h, profile.CheckSpec{Type: tt.typ, Params: tt.params}); err == nil {
				t.Error("Build() expected param validation error")
			}
		})
	}
}

func TestBuildValidSpecs(t *testing.T) {
	tests := []struct {
		name   string
		typ    string
		params map[string]interface{}
	}{
		{"sysctl", "sysctl", map[string]interface{}{"key": "net.ipv4.ip_forward", "value": 0}},
		{"kernel-module", "kernel-module", map[string]interface{}{"name": "usb-storage"}},
		{"mount-option single", "mount-option", map[string]interface{}{"path": "/tmp", "options": "noexec"}},
		{"mount-option list", "mount-option", map[string]interface{}{"path": "/tmp", "options": []interface{}{"noexec", "nosuid"}}},
		{"file-permissions", "file-permissions", map[string]interface{}{"path": "/etc/shadow", "mode": "0640", "group": 42}},
		{"sshd-config max", "sshd-config", map[string]interface{}{"key": "MaxAuthTries", "max": 4}},
		{"sshd-config default pass", "sshd-config", map[string]interface{}{"key": "loglevel", "value": "info", "default": "pass"}},
		{"login-defs bounds", "login-defs", map[string]interface{}{"key": "pass_max_days", "min": 1, "max": 365}},
		{"account-policy", "account-policy", map[string]interface{}{"rule": "only-root-uid-zero"}},
		{"command", "command", map[string]interface{}{"argv": []interface{}{"uname", "-r"}, "stdout": `\d+\.\d+`}},
	}

	h := testHost()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, err := Build(h, profile.CheckSpec{Type: tt.typ, Params: tt.params})
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if fn == nil {
				t.Fatal("Build() returned nil func")
			}
		})
	}
}

func TestFileExistsCheck(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present")
	if err := os.WriteFile(present, []byte("x"), 0644); err != nil {
		t.Fatalf("fixture: %v", err)
	}

	h := testHost()
	ctx := context.Background()

	fn, err := Build(h, profile.CheckSpec{Type: "file-exists", Params: map[string]interface{}{"path": present}})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if status, _ := fn(ctx); status != StatusPass {
		t.Errorf("file-exists on present file = %s, want pass", status)
	}

	fn, err = Build(h, profile.CheckSpec{Type: "file-absent", Params: map[string]interface{}{"path": present}})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if status, _ := fn(ctx); status != StatusFail {
		t.Errorf("file-absent on present file = %s, want fail", status)
	}

	missing := filepath.Join(dir, "missing")
	fn, _ = Build(h, profile.CheckSpec{Type: "file-exists", Params: map[string]interface{}{"path": missing}})
	if status, _ := fn(ctx); status != StatusFail {
		t.Errorf("file-exists on missing file = %s, want fail", status)
	}
	fn, _ = Build(h, profile.CheckSpec{Type: "file-absent", Params: map[string]interface{}{"path": missing}})
	if status, _ := fn(ctx); status != StatusPass {
		t.Errorf("file-absent on missing file = %s, want pass", status)
	}
}

func TestFilePermissionsCheck(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf")
	if err := os.WriteFile(path, []byte("x"), 0600); err != nil {
		t.Fatalf("fixture: %v", err)
	}

	h := testHost()
	ctx := context.Background()
	uid, gid := os.Getuid(), os.Getgid()

	fn, err := Build(h, profile.CheckSpec{Type: "file-permissions", Params: map[string]interface{}{
		"path": path, "mode": "0600", "owner": uid, "group": gid,
	}})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	status, evidence := fn(ctx)
	if status != StatusPass {
		t.Errorf("strict file = %s (%s), want pass", status, evidence)
	}

	// stricter than required is still compliant
	if err := os.Chmod(path, 0400); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	if status, evidence = fn(ctx); status != StatusPass {
		t.Errorf("stricter file = %s (%s), want pass", status, evidence)
	}

	// looser than required is not
	if err := os.Chmod(path, 0644); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	status, evidence = fn(ctx)
	if status != StatusFail {
		t.Errorf("loose file = %s, want fail", status)
	}
	if !strings.Contains(evidence, "max allowed 0600") {
		t.Errorf("evidence = %q, want max allowed detail", evidence)
	}

	fn, _ = Build(h, profile.CheckSpec{Type: "file-permissions", Params: map[string]interface{}{
		"path": filepath.Join(dir, "missing"), "mode": "0600",
	}})
	if status, _ = fn(ctx); status != StatusNA {
		t.Errorf("missing file = %s, want not-applicable", status)
	}
}

func TestFileContentCheck(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grub")
	content := "GRUB_CMDLINE_LINUX=\"audit=1\"\nGRUB_TIMEOUT=5\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("fixture: %v", err)
	}

	h := testHost()
	ctx := context.Background()

	tests := []struct {
		name   string
		params map[string]interface{}
		want   Status
	}{
		{"pattern present", map[string]interface{}{"path": path, "pattern": `(?m)^GRUB_CMDLINE_LINUX=.*audit=1`}, StatusPass},
		{"pattern missing", map[string]interface{}{"path": path, "pattern": `ipv6\.disable=1`}, StatusFail},
		{"absent pattern found", map[string]interface{}{"path": path, "pattern": `GRUB_TIMEOUT`, "absent": true}, StatusFail},
		{"absent pattern not found", map[string]interface{}{"path": path, "pattern": `selinux=0`, "absent": true}, StatusPass},
		{"absent missing file", map[string]interface{}{"path": filepath.Join(dir, "nope"), "pattern": `x`, "absent": true}, StatusPass},
		{"missing file", map[string]interface{}{"path": filepath.Join(dir, "nope"), "pattern": `x`}, StatusFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, err := Build(h, profile.CheckSpec{Type: "file-content", Params: tt.params})
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if status, evidence := fn(ctx); status != tt.want {
				t.Errorf("status = %s (%s), want %s", status, evidence, tt.want)
			}
		})
	}
}

func TestCommandCheckMissingTool(t *testing.T) {
	fn, err := Build(testHost(), profile.CheckSpec{Type: "command", Params: map[string]interface{}{
		"argv": "hardscan-no-such-binary-xq31",
	}})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	status, evidence := fn(context.Background())
	if status != StatusSkip {
		t.Errorf("status = %s (%s), want skip for missing tool", status, evidence)
	}
}

func TestEmptyPasswordAccounts(t *testing.T) {
	shadow := "root:$6$hash:19000:0:99999:7:::\n" +
		"daemon:*:19000:0:99999:7:::\n" +
		"kiosk::19000:0:99999:7:::\n" +
		"guest::19000:0:99999:7:::\n"

	got := emptyPasswordAccounts(shadow)
	if len(got) != 2 || got[0] != "kiosk" || got[1] != "guest" {
		t.Errorf("emptyPasswordAccounts() = %v, want [kiosk guest]", got)
	}

	if got := emptyPasswordAccounts("root:$6$hash:19000:0:99999:7:::\n"); len(got) != 0 {
		t.Errorf("emptyPasswordAccounts(clean) = %v, want none", got)
	}
}

func TestUnshadowedAccounts(t *testing.T) {
	passwd := "root:x:0:0:root:/root:/bin/bash\n" +
		"legacy:$1$cleartexthash:1001:1001::/home/legacy:/bin/sh\n"

	got := unshadowedAccounts(passwd)
	if len(got) != 1 || got[0] != "legacy" {
		t.Errorf("unshadowedAccounts() = %v, want [legacy]", got)
	}
}

func TestDuplicateIDs(t *testing.T) {
	passwd := "root:x:0:0:root:/root:/bin/bash\n" +
		"alice:x:1000:1000::/home/alice:/bin/bash\n" +
		"bob:x:1000:1001::/home/bob:/bin/bash\n" +
		"carol:x:1002:1002::/home/carol:/bin/bash\n"

	got := duplicateIDs(passwd)
	if len(got) != 1 {
		t.Fatalf("duplicateIDs() = %v, want one entry", got)
	}
	if !strings.Contains(got[0], "1000") || !strings.Contains(got[0], "alice") || !strings.Contains(got[0], "bob") {
		t.Errorf("duplicateIDs()[0] = %q, want 1000 with alice and bob", got[0])
	}

	if got := duplicateIDs("root:x:0:0:r:/root:/bin/bash\n"); len(got) != 0 {
		t.Errorf("duplicateIDs(clean) = %v, want none", got)
	}
}

func TestNonRootUIDZero(t *testing.T) {
	passwd := "root:x:0:0:root:/root:/bin/bash\n" +
		"toor:x:0:0:backdoor:/root:/bin/bash\n" +
		"alice:x:1000:1000::/home/alice:/bin/bash\n"

	got := nonRootUIDZero(passwd)
	if len(got) != 1 || got[0] != "toor" {
		t.Errorf("nonRootUIDZero() = %v, want [toor]", got)
	}
}

func TestMissingGroups(t *testing.T) {
	passwd := "root:x:0:0:root:/root:/bin/bash\n" +
		"alice:x:1000:1000::/home/alice:/bin/bash\n" +
		"ghost:x:1001:4242::/home/ghost:/bin/bash\n"
	group := "root:x:0:\nalice:x:1000:\n"

	got := missingGroups(passwd, group)
	if len(got) != 1 || got[0] != "ghost(gid=4242)" {
		t.Errorf("missingGroups() = %v, want [ghost(gid=4242)]", got)
	}
}

func TestCompileControl(t *testing.T) {
	h := testHost()

	specs := []profile.CheckSpec{
		{Type: "file-exists", Params: map[string]interface{}{"path": "/etc/passwd"}},
		{Type: "sysctl", Params: map[string]interface{}{"key": "net.ipv4.ip_forward", "value": "0"}},
	}
	funcs, err := CompileControl(h, specs)
	if err != nil {
		t.Fatalf("CompileControl() error = %v", err)
	}
	if len(funcs) != 2 {
		t.Errorf("len(funcs) = %d, want 2", len(funcs))
	}

	bad := []profile.CheckSpec{
		{Type: "file-exists", Params: map[string]interface{}{"path": "/etc/passwd"}},
		{Type: "sysctl", Params: map[string]interface{}{"key": "k"}},
	}
	_, err = CompileControl(h, bad)
	if err == nil {
		t.Fatal("CompileControl() expected error for bad second check")
	}
	if !strings.Contains(err.Error(), "check 2") {
		t.Errorf("error = %v, want check index", err)
	}
}
