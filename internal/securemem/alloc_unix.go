//go:build unix

package securemem

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func alloc(size int) ([]byte, bool, error) {
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, false, fmt.Errorf("securemem: mmap: %w", err)
	}
	// RLIMIT_MEMLOCK is often tiny in containers; an unlocked mapping still
	// keeps the secret off the GC heap.
	locked := unix.Mlock(data) == nil
	dontDump(data)
	return data, locked, nil
}

func release(data []byte, locked bool) error {
	if data == nil {
		return nil
	}
	if locked {
		if err := unix.Munlock(data); err != nil {
			_ = unix.Munmap(data)
			return fmt.Errorf("securemem: munlock: %w", err)
		}
	}
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("securemem: munmap: %w", err)
	}
	return nil
}
