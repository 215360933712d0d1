// Package host defines the surface of the process the bridge lives in.
//
// The original bridge dereferences raw 32-bit addresses and calls function
// pointers directly. Here that boundary is an explicit interface: every
// component still walks the same anchor chains and calls the same entry
// points by address, but does so through Process, so the whole bridge can
// run against a real host or the in-memory simulator in host/sim.
package host

import "errors"

var (
	// ErrBadAddress is returned for a read or write of memory the host
	// never mapped. Touching an address the host did not expect to exist
	// is a programmer error on a real host; the simulator reports it.
	ErrBadAddress = errors.New("host: unmapped address")

	// ErrBadCall is returned when Call is given an address with no
	// function behind it.
	ErrBadCall = errors.New("host: no function at address")
)

// Process is the raw view of the 32-bit host: typed memory reads, one
// pointer-sized write (the vtable patch), and native function invocation.
// All addresses are absolute in the host image.
type Process interface {
	// ReadPtr reads a pointer-sized (32-bit) value.
	ReadPtr(addr uint32) (uint32, error)
	// ReadU64 reads a 64-bit value (GUIDs).
	ReadU64(addr uint32) (uint64, error)
	// ReadU8 reads one byte.
	ReadU8(addr uint32) (byte, error)
	// WritePtr overwrites a pointer-sized value. The frame hook uses it
	// to patch and restore the present vtable slot.
	WritePtr(addr uint32, val uint32) error

	// Call invokes the native function at addr with the given arguments
	// and returns its raw result.
	Call(addr uint32, args ...uint64) (uint64, error)

	// Bind registers fn as a callable native and returns the address it
	// now answers at. This is the Go rendition of taking the raw function
	// pointer of a callback.
	Bind(fn func(args ...uint64) uint64) uint32
}
