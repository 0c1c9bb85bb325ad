package test_utils

import "time"

// Receive waits up to timeout for a value on ch. ok is false if nothing
// arrived in time.
func Receive[V any](ch <-chan V, timeout time.Duration) (v V, ok bool) {
	select {
	case v = <-ch:
		return v, true
	case <-time.After(timeout):
		return v, false
	}
}
