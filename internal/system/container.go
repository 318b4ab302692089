// Package system reads state from the audited host. Containerized
// deployments mount the host filesystem under /host; every path-taking
// helper routes through HostPath so checks read the host's files, not
// the container's.
package system

import (
	"os"
	"strings"
)

// hostRoot holds the mount point of the audited host's filesystem.
// Empty means native execution.
var hostRoot = detectHostRoot()

func detectHostRoot() string {
	// Explicit override for nonstandard mount points
	if root := strings.TrimSuffix(os.Getenv("HARDSCAN_HOST_ROOT"), "/"); root != "" {
		if _, err := os.Stat(root); err == nil {
			return root
		}
	}
	// The standard deployment mounts the host at /host
	if _, err := os.Stat("/host/proc"); err == nil {
		return "/host"
	}
	return ""
}

// HostPath rewrites an absolute host path to its location under the
// host mount. Native runs and already-rewritten paths pass through.
func HostPath(path string) string {
	if hostRoot == "" || strings.HasPrefix(path, hostRoot+"/") {
		return path
	}
	return hostRoot + path
}

// IsInContainer reports whether the audited host is reached through a
// filesystem mount rather than directly
func IsInContainer() bool {
	return hostRoot != ""
}
