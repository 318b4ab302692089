package util

import (
	"fmt"
	"os"
)

// GetLogDir returns the appropriate log directory based on user privileges
func GetLogDir() string {
	if os.Geteuid() == 0 {
		return "/var/log/hardscan"
	}
	return fmt.Sprintf("/tmp/hardscan-%d", os.Getuid())
}

// GetStateDir returns the appropriate state directory based on user privileges.
// Baselines, daemon status and generated remediation scripts live here.
func GetStateDir() string {
	if os.Geteuid() == 0 {
		return "/root/.hardscan"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hardscan"
	}
	return fmt.Sprintf("%s/.hardscan", home)
}
