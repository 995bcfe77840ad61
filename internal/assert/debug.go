//go:build magtrack_debug

package assert

// Enabled reports whether checks are active.
const Enabled = true
