package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hardscan/hardscan/internal/errors"
)

func writeProfileDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	return dir
}

func TestResolveNoDependencies(t *testing.T) {
	dir := writeProfileDir(t, map[string]string{
		"base.yaml": `name: base
controls:
  - id: common.one
    title: First
    impact: 0.3
    checks:
      - type: file-exists
        params: {path: /etc/passwd}
  - id: common.two
    title: Second
    impact: 0.6
    checks:
      - type: file-exists
        params: {path: /etc/shadow}
`,
	})

	root, err := Load(filepath.Join(dir, "base.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	set, err := Resolve(root)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if set.Name != "base" {
		t.Errorf("set.Name = %q, want base", set.Name)
	}
	if len(set.Profiles) != 1 {
		t.Errorf("len(Profiles) = %d, want 1", len(set.Profiles))
	}
	if len(set.Controls) != 2 {
		t.Fatalf("len(Controls) = %d, want 2", len(set.Controls))
	}
	if set.Controls[0].Origin != root {
		t.Error("Controls[0].Origin is not the root profile")
	}
}

func TestResolveWithDependency(t *testing.T) {
	dir := writeProfileDir(t, map[string]string{
		"base.yaml": `name: base
controls:
  - id: common.one
    title: First
    impact: 0.3
    checks:
      - type: file-exists
        params: {path: /etc/passwd}
  - id: common.two
    title: Second
    impact: 0.3
    checks:
      - type: file-exists
        params: {path: /etc/shadow}
`,
		"top.yaml": `name: top
depends:
  - path: base.yaml
controls:
  - id: common.two
    title: Second, tightened
    impact: 0.9
    checks:
      - type: file-permissions
        params: {path: /etc/shadow, mode: "0600"}
  - id: top.only
    title: Top only
    impact: 0.5
    checks:
      - type: file-exists
        params: {path: /etc/hosts}
`,
	})

	root, err := Load(filepath.Join(dir, "top.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	set, err := Resolve(root)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	// dependencies merge before their dependents
	if len(set.Profiles) != 2 {
		t.Fatalf("len(Profiles) = %d, want 2", len(set.Profiles))
	}
	if set.Profiles[0].Name != "base" || set.Profiles[1].Name != "top" {
		t.Errorf("merge order = %q, %q, want base, top", set.Profiles[0].Name, set.Profiles[1].Name)
	}

	if len(set.Controls) != 3 {
		t.Fatalf("len(Controls) = %d, want 3", len(set.Controls))
	}

	byID := map[string]ResolvedControl{}
	for _, rc := range set.Controls {
		byID[rc.ID] = rc
	}

	// the dependent's redefinition wins but keeps first-seen position
	overridden := byID["common.two"]
	if overridden.Impact != 0.9 {
		t.Errorf("common.two impact = %v, want 0.9 from top", overridden.Impact)
	}
	if overridden.Origin.Name != "top" {
		t.Errorf("common.two origin = %q, want top", overridden.Origin.Name)
	}
	if set.Controls[1].ID != "common.two" {
		t.Errorf("Controls[1].ID = %q, want common.two to keep its slot", set.Controls[1].ID)
	}

	if byID["common.one"].Origin.Name != "base" {
		t.Errorf("common.one origin = %q, want base", byID["common.one"].Origin.Name)
	}
}

func TestResolveCycle(t *testing.T) {
	dir := writeProfileDir(t, map[string]string{
		"a.yaml": `name: a
depends:
  - path: b.yaml
controls:
  - id: a.one
    title: A
    impact: 0.5
    checks:
      - type: file-exists
        params: {path: /etc/passwd}
`,
		"b.yaml": `name: b
depends:
  - path: a.yaml
controls:
  - id: b.one
    title: B
    impact: 0.5
    checks:
      - type: file-exists
        params: {path: /etc/passwd}
`,
	})

	root, err := Load(filepath.Join(dir, "a.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, err := Resolve(root); !errors.Is(err, errors.ErrInvalidProfile) {
		t.Errorf("Resolve() error = %v, want ErrInvalidProfile for cycle", err)
	}
}

func TestResolveNameCollision(t *testing.T) {
	dir := writeProfileDir(t, map[string]string{
		"dep1.yaml": `name: shared
controls:
  - id: s.one
    title: S1
    impact: 0.5
    checks:
      - type: file-exists
        params: {path: /etc/passwd}
`,
		"dep2.yaml": `name: shared
controls:
  - id: s.two
    title: S2
    impact: 0.5
    checks:
      - type: file-exists
        params: {path: /etc/passwd}
`,
		"root.yaml": `name: root
depends:
  - path: dep1.yaml
  - path: dep2.yaml
controls:
  - id: r.one
    title: R
    impact: 0.5
    checks:
      - type: file-exists
        params: {path: /etc/passwd}
`,
	})

	root, err := Load(filepath.Join(dir, "root.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, err := Resolve(root); !errors.Is(err, errors.ErrAlreadyExists) {
		t.Errorf("Resolve() error = %v, want ErrAlreadyExists for name collision", err)
	}
}

func TestResolveDependencyNameMismatch(t *testing.T) {
	dir := writeProfileDir(t, map[string]string{
		"base.yaml": `name: base
controls:
  - id: b.one
    title: B
    impact: 0.5
    checks:
      - type: file-exists
        params: {path: /etc/passwd}
`,
		"top.yaml": `name: top
depends:
  - name: something-else
    path: base.yaml
controls:
  - id: t.one
    title: T
    impact: 0.5
    checks:
      - type: file-exists
        params: {path: /etc/passwd}
`,
	})

	root, err := Load(filepath.Join(dir, "top.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, err := Resolve(root); !errors.Is(err, errors.ErrInvalidProfile) {
		t.Errorf("Resolve() error = %v, want ErrInvalidProfile for name mismatch", err)
	}
}

func TestResolveAll(t *testing.T) {
	dir := writeProfileDir(t, map[string]string{
		"base.yaml": `name: base
controls:
  - id: common.one
    title: Shared dep control
    impact: 0.3
    checks:
      - type: file-exists
        params: {path: /etc/passwd}
`,
		"first.yaml": `name: first
depends:
  - path: base.yaml
controls:
  - id: first.one
    title: F
    impact: 0.5
    checks:
      - type: file-exists
        params: {path: /etc/hosts}
`,
		"second.yaml": `name: second
depends:
  - path: base.yaml
controls:
  - id: second.one
    title: S
    impact: 0.5
    checks:
      - type: file-exists
        params: {path: /etc/fstab}
`,
	})

	first, err := Load(filepath.Join(dir, "first.yaml"))
	if err != nil {
		t.Fatalf("Load(first) error = %v", err)
	}
	second, err := Load(filepath.Join(dir, "second.yaml"))
	if err != nil {
		t.Fatalf("Load(second) error = %v", err)
	}

	set, err := ResolveAll([]*Profile{first, second})
	if err != nil {
		t.Fatalf("ResolveAll() error = %v", err)
	}

	// the shared dependency merges once
	if len(set.Controls) != 3 {
		t.Fatalf("len(Controls) = %d, want 3", len(set.Controls))
	}
	if len(set.Profiles) != 3 {
		t.Errorf("len(Profiles) = %d, want 3", len(set.Profiles))
	}
}

func TestResolveAllControlCollision(t *testing.T) {
	dir := writeProfileDir(t, map[string]string{
		"first.yaml": `name: first
controls:
  - id: dup.ctl
    title: F
    impact: 0.5
    checks:
      - type: file-exists
        params: {path: /etc/hosts}
`,
		"second.yaml": `name: second
controls:
  - id: dup.ctl
    title: S
    impact: 0.5
    checks:
      - type: file-exists
        params: {path: /etc/fstab}
`,
	})

	first, err := Load(filepath.Join(dir, "first.yaml"))
	if err != nil {
		t.Fatalf("Load(first) error = %v", err)
	}
	second, err := Load(filepath.Join(dir, "second.yaml"))
	if err != nil {
		t.Fatalf("Load(second) error = %v", err)
	}

	if _, err := ResolveAll([]*Profile{first, second}); !errors.Is(err, errors.ErrAlreadyExists) {
		t.Errorf("ResolveAll() error = %v, want ErrAlreadyExists", err)
	}

	if _, err := ResolveAll(nil); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("ResolveAll(nil) error = %v, want ErrInvalidInput", err)
	}
}
