// Package control provides the operator pause and stop controls for a run.
package control

import "sync/atomic"

// Flag is a boolean the operator sets and the control loop polls.
// The zero value is an unset flag.
type Flag struct {
	v atomic.Bool
}

// Set raises the flag.
func (f *Flag) Set() {
	f.v.Store(true)
}

// Clear lowers the flag.
func (f *Flag) Clear() {
	f.v.Store(false)
}

// Store sets the flag to on.
func (f *Flag) Store(on bool) {
	f.v.Store(on)
}

// IsSet reports the current value. Its method value satisfies func() bool.
func (f *Flag) IsSet() bool {
	return f.v.Load()
}

// Controls bundles the two operator flags of a run.
type Controls struct {
	Pause Flag
	Stop  Flag
}
