//go:build linux

package malloc

import "fmt"
import "unsafe"

import "golang.org/x/sys/unix"

const protrw = unix.PROT_READ | unix.PROT_WRITE

// mapmemory back the arena with an anonymous memory file, so that two
// virtual spans can share the same physical pages.
func (arena *Arena) mapmemory() (err error) {
	arena.fd, err = unix.MemfdCreate("gomesh-arena", unix.MFD_CLOEXEC)
	if err != nil {
		return fmt.Errorf("memfd_create: %v", err)
	}
	if err = unix.Ftruncate(arena.fd, arena.capacity); err != nil {
		unix.Close(arena.fd)
		return fmt.Errorf("ftruncate(%v): %v", arena.capacity, err)
	}
	flags := unix.MAP_SHARED | unix.MAP_NORESERVE
	arena.mapping, err = unix.Mmap(arena.fd, 0, int(arena.capacity), protrw, flags)
	if err != nil {
		unix.Close(arena.fd)
		return fmt.Errorf("mmap(%v): %v", arena.capacity, err)
	}
	arena.base = unsafe.Pointer(&arena.mapping[0])

	flags = unix.MAP_PRIVATE | unix.MAP_ANON | unix.MAP_NORESERVE
	arena.tablemem, err = unix.Mmap(-1, 0, int(arena.npages*4), protrw, flags)
	if err != nil {
		unix.Munmap(arena.mapping)
		unix.Close(arena.fd)
		return fmt.Errorf("mmap pagetable: %v", err)
	}
	ptr := (*uint32)(unsafe.Pointer(&arena.tablemem[0]))
	arena.pagetable = unsafe.Slice(ptr, arena.npages)
	return nil
}

func (arena *Arena) protect(s span) error {
	if err := unix.Mprotect(arena.spanbytes(s), unix.PROT_READ); err != nil {
		return fmt.Errorf("mprotect %v: %v", s, err)
	}
	return nil
}

// remap point the virtual pages of s at fileoffset, read-write.
func (arena *Arena) remap(s span, fileoffset int64) error {
	addr, flags := arena.spanaddr(s), unix.MAP_SHARED|unix.MAP_FIXED
	ret, err := unix.MmapPtr(arena.fd, fileoffset, addr, uintptr(s.size()), protrw, flags)
	if err != nil {
		return fmt.Errorf("remap %v -> %v: %v", s, fileoffset, err)
	} else if ret != addr {
		return fmt.Errorf("remap %v: moved to %p", s, ret)
	}
	return nil
}

// punch release the physical pages behind the file range, they
// read as zero afterwards.
func (arena *Arena) punch(offset, npages int64) error {
	mode := uint32(unix.FALLOC_FL_PUNCH_HOLE | unix.FALLOC_FL_KEEP_SIZE)
	err := unix.Fallocate(arena.fd, mode, offset*PageSize, npages*PageSize)
	if err != nil {
		return fmt.Errorf("punch %v+%v: %v", offset, npages, err)
	}
	return nil
}

// unmapmemory detach base and pagetable before unmapping, so that
// lock-free lookups see an empty arena.
func (arena *Arena) unmapmemory() error {
	arena.base, arena.pagetable = nil, nil
	if err := unix.Munmap(arena.tablemem); err != nil {
		return err
	}
	if err := unix.Munmap(arena.mapping); err != nil {
		return err
	}
	return unix.Close(arena.fd)
}
