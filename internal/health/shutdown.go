package health

import "sync/atomic"

var ready atomic.Bool

func init() {
	ready.Store(true)
}

// SetReady flips the process-wide readiness gate. Graceful shutdown turns it
// off before the listener closes so load balancers drain traffic first.
func SetReady(v bool) {
	ready.Store(v)
}

// IsReady reports whether the process accepts new traffic.
func IsReady() bool {
	return ready.Load()
}
