package internal

// Panics if given non-nil error.
// Should be used only in case of non-recoverable developer error, such as a broken
// test fixture or a generator fed with data it produced itself.
func PanicOnError(err error) {
	if err != nil {
		panic(err)
	}
}

// Must returns value, panicking on err under the same rules as PanicOnError.
func Must[T any](value T, err error) T {
	PanicOnError(err)
	return value
}
