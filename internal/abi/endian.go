package abi

import (
	"encoding/binary"

	"github.com/ast-ral/divine/domain/errors"
)

// Sentinel is written in native order to identify the host byte order.
const Sentinel uint32 = 0xdeadc0de

// ProbeByteOrder detects the host byte order.
func ProbeByteOrder() (binary.ByteOrder, error) {
	return probe(binary.NativeEndian.PutUint32)
}

func probe(put func([]byte, uint32)) (binary.ByteOrder, error) {
	var scratch [4]byte
	put(scratch[:], Sentinel)

	if binary.LittleEndian.Uint32(scratch[:]) == Sentinel {
		return binary.LittleEndian, nil
	}
	if binary.BigEndian.Uint32(scratch[:]) == Sentinel {
		return binary.BigEndian, nil
	}
	return nil, &errors.EndiannessError{Observed: binary.LittleEndian.Uint32(scratch[:])}
}
