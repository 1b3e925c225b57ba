//go:build !windows

package privilege

import "os"

// IsElevated returns true if the agent is running with UID 0 (root).
func IsElevated() bool {
	return os.Geteuid() == 0
}
