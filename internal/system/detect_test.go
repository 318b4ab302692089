package system

import (
	"context"
	"testing"
)

func TestNormalizeDistro(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"ubuntu", "ubuntu", "ubuntu"},
		{"debian", "debian", "debian"},
		{"rhel", "rhel", "rhel"},
		{"redhat variant", "Red Hat Enterprise", "rhel"},
		{"arch", "arch", "arch"},
		{"unknown", "someother", "someother"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeDistro(tt.input)
			if got != tt.want {
				t.Errorf("normalizeDistro(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDistroFamily(t *testing.T) {
	tests := []struct {
		distro string
		want   string
	}{
		{"ubuntu", "debian"},
		{"debian", "debian"},
		{"rhel", "rhel"},
		{"centos", "rhel"},
		{"fedora", "rhel"},
		{"arch", "arch"},
		{"alpine", "alpine"},
		{"someother", "linux"},
	}

	for _, tt := range tests {
		t.Run(tt.distro, func(t *testing.T) {
			got := DistroFamily(tt.distro)
			if got != tt.want {
				t.Errorf("DistroFamily(%q) = %q, want %q", tt.distro, got, tt.want)
			}
		})
	}
}

func TestGetOSInfo(t *testing.T) {
	ctx := context.Background()
	info := GetOSInfo(ctx)

	if info == nil {
		t.Fatal("GetOSInfo() returned nil")
	}
	if info.System == "" {
		t.Error("System is empty")
	}
	if info.Family == "" {
		t.Error("Family is empty")
	}
}

func TestIsServiceEnabledNonexistent(t *testing.T) {
	ctx := context.Background()
	if IsServiceEnabled(ctx, "nonexistent-service-xyz123") {
		t.Error("IsServiceEnabled() = true for nonexistent service, want false")
	}
}
