package follower

import "strings"

// notReadySentinel is the error text adapters use when a pod isn't ready
// to serve logs yet. It's the expected steady state for a just-scheduled
// pod, so the loop silences it instead of logging at debug level.
const notReadySentinel = "HTTP request failed"

// isNotReady reports whether err is the "pod not ready yet" sentinel.
func isNotReady(err error) bool {
	return err != nil && strings.Contains(err.Error(), notReadySentinel)
}
