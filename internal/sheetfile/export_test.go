package sheetfile

// SetMaxArchiveSize overrides the archive budget until the returned func runs.
func SetMaxArchiveSize(n int64) func() {
	prev := maxArchiveSize
	maxArchiveSize = n
	return func() { maxArchiveSize = prev }
}
