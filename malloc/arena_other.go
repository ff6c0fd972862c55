//go:build !linux

package malloc

func (arena *Arena) mapmemory() error {
	return ErrorUnsupported
}

func (arena *Arena) protect(s span) error {
	return ErrorUnsupported
}

func (arena *Arena) remap(s span, fileoffset int64) error {
	return ErrorUnsupported
}

func (arena *Arena) punch(offset, npages int64) error {
	return ErrorUnsupported
}

func (arena *Arena) unmapmemory() error {
	return nil
}
