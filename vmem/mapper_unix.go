//go:build linux || darwin || freebsd

package vmem

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/givy-go/allocator/internal/xlog"
)

// arenaMapper backs Mapper with a single anonymous mmap reservation sized
// by NewArena's caller (allocator.Init asks for the whole GAS, every node's
// interval combined). Individual Map/Unmap/Discard calls never
// need to pick an OS address themselves (the tracker already assigns
// addresses within the reservation); they translate to
// MADV_WILLNEED/MADV_DONTNEED hints over the relevant sub-range, following
// the same golang.org/x/sys/unix usage the example pack's registry-hive
// editor uses for its own page-level mmap/flush collaborators.
type arenaMapper struct {
	raw   []byte
	base  uintptr
	limit uintptr
}

// NewArena reserves size bytes of anonymous memory and returns a Mapper
// together with a superpage-aligned base address usable for the entire
// range [base, base+size). The reservation pads by one superpage to
// guarantee that alignment is achievable inside the raw mapping.
func NewArena(size uintptr) (Mapper, uintptr, error) {
	raw, err := unix.Mmap(-1, 0, int(size+SuperpageSize), unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, 0, fmt.Errorf("vmem: reserve %d bytes: %w", size, err)
	}
	rawBase := sliceAddr(raw)
	base := alignUp(rawBase, SuperpageSize)
	m := &arenaMapper{raw: raw, base: base, limit: base + size}
	xlog.L().Info().Uint64("base", uint64(base)).Uint64("size", uint64(size)).Msg("reserved GAS arena")
	return m, base, nil
}

func (m *arenaMapper) slice(base, length uintptr) ([]byte, error) {
	if base < m.base || base+length > m.limit {
		return nil, fmt.Errorf("vmem: range [%#x,%#x) outside arena [%#x,%#x)", base, base+length, m.base, m.limit)
	}
	off := base - sliceAddr(m.raw)
	return m.raw[off : off+length], nil
}

func (m *arenaMapper) Map(base uintptr, length uintptr) (uintptr, error) {
	s, err := m.slice(base, length)
	if err != nil {
		return 0, err
	}
	// Best-effort hint; anonymous pages are demand-zeroed by the kernel
	// regardless, so a failure here is not fatal to correctness.
	_ = unix.Madvise(s, unix.MADV_WILLNEED)
	return base, nil
}

func (m *arenaMapper) Unmap(base uintptr, length uintptr) error {
	s, err := m.slice(base, length)
	if err != nil {
		return err
	}
	if err := unix.Madvise(s, unix.MADV_DONTNEED); err != nil {
		return fmt.Errorf("vmem: release [%#x,%#x): %w", base, base+length, err)
	}
	return nil
}

func (m *arenaMapper) Discard(base uintptr, length uintptr) error {
	s, err := m.slice(base, length)
	if err != nil {
		return err
	}
	return unix.Madvise(s, unix.MADV_DONTNEED)
}
