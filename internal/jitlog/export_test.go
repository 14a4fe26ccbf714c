package jitlog

import "testing"

// SetMaxLineSize lowers the line limit for the duration of a test.
func SetMaxLineSize(t testing.TB, n int) {
	previous := maxLineSize
	maxLineSize = n
	t.Cleanup(func() { maxLineSize = previous })
}
