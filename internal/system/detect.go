package system

import (
	"context"
	"os"
	"runtime"
	"strings"
)

// OSInfo contains information about the operating system
type OSInfo struct {
	System   string `json:"system"`
	Distro   string `json:"distro"`
	Family   string `json:"family"`
	Kernel   string `json:"kernel"`
	Hostname string `json:"hostname"`
}

// GetOSInfo returns detailed OS information
func GetOSInfo(ctx context.Context) *OSInfo {
	info := &OSInfo{
		System: runtime.GOOS,
	}

	// Get kernel version
	if result, _ := RunCommand(ctx, TimeoutShort, "uname", "-r"); result != nil && result.Success {
		info.Kernel = strings.TrimSpace(result.Stdout)
	}

	// Get hostname
	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	}

	// Detect distro
	info.Distro = GetDistro(ctx)
	info.Family = DistroFamily(info.Distro)

	return info
}

// GetDistro detects the Linux distribution
func GetDistro(ctx context.Context) string {
	// Try /etc/os-release
	if data, err := os.ReadFile(HostPath("/etc/os-release")); err == nil {
		lines := strings.Split(string(data), "\n")
		for _, line := range lines {
			if strings.HasPrefix(line, "ID=") {
				distro := strings.TrimPrefix(line, "ID=")
				distro = strings.Trim(distro, "\"")
				return normalizeDistro(distro)
			}
		}
	}

	// Try lsb_release
	if result, _ := RunCommand(ctx, TimeoutShort, "lsb_release", "-si"); result != nil && result.Success {
		return normalizeDistro(strings.TrimSpace(result.Stdout))
	}

	// Fallback to checking specific files
	if FileExists("/etc/debian_version") {
		return "debian"
	}
	if FileExists("/etc/redhat-release") {
		return "rhel"
	}
	if FileExists("/etc/arch-release") {
		return "arch"
	}

	return "unknown"
}

func normalizeDistro(distro string) string {
	distro = strings.ToLower(distro)
	switch {
	case strings.Contains(distro, "ubuntu"):
		return "ubuntu"
	case strings.Contains(distro, "debian"):
		return "debian"
	case strings.Contains(distro, "centos"):
		return "centos"
	case strings.Contains(distro, "rhel"), strings.Contains(distro, "redhat"), strings.Contains(distro, "red hat"):
		return "rhel"
	case strings.Contains(distro, "fedora"):
		return "fedora"
	case strings.Contains(distro, "arch"):
		return "arch"
	case strings.Contains(distro, "alpine"):
		return "alpine"
	default:
		return distro
	}
}

// DistroFamily maps a distro to its package-manager family
func DistroFamily(distro string) string {
	switch distro {
	case "debian", "ubuntu":
		return "debian"
	case "rhel", "centos", "fedora":
		return "rhel"
	case "arch":
		return "arch"
	case "alpine":
		return "alpine"
	default:
		return "linux"
	}
}

// IsServiceEnabled checks if a systemd service is enabled
func IsServiceEnabled(ctx context.Context, serviceName string) bool {
	result, _ := RunCommand(ctx, TimeoutShort, "systemctl", "is-enabled", "--quiet", serviceName)
	return result != nil && result.Success
}
