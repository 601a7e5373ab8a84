// Package abi implements the host side of the guest heap-record ABI.
//
// Guest pointers are plain uint32 offsets into linear memory. Every record
// the guest exchanges with the host is a 12-byte, 4-byte-aligned triple
//
//	{data_ptr: u32, length: u32, capacity: u32}
//
// which the guest uses both for boxed vectors (RawBox) and for the vector
// header itself (RawVec). Element size and alignment of a RawVec are supplied
// at the call site: 2/2 for UTF-16 code units, 12/4 for nested records.
//
// Integers are read in the byte order detected by [ProbeByteOrder]. A [View]
// never caches the memory buffer: guest allocation may grow memory and
// invalidate any slice obtained earlier.
package abi
