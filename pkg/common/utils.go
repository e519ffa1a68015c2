// Package common provides the small shared utilities used across the
// key-derivation and orchestration packages.
package common

import "time"

// Now returns the current Unix timestamp.
func Now() uint64 {
	return uint64(time.Now().Unix())
}

// CopyBytes returns a copy of a byte slice.
func CopyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

// Zero overwrites every byte of b with zero. Used to scrub spending-key,
// transparent-private-key, and host-private-key buffers as soon as they are
// no longer needed.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
