//go:build !linux

package notifications

// DaemonAvailable is always true outside Linux, where the OS provides notifications
func DaemonAvailable() bool {
	return true
}
