package vmem

import "unsafe"

// sliceAddr returns the address of a byte slice's backing array. Used only
// by the bootstrap arena to compute alignment padding.
func sliceAddr(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
