package abi

import (
	"fmt"
	"math"
	"unicode/utf16"
)

// ReadRecord decodes the 12-byte record stored at ptr.
func (v View) ReadRecord(ptr uint32) (RawVec, error) {
	// Fail before any field read if the record does not fit.
	if _, err := v.read(ptr, RecordSize); err != nil {
		return RawVec{}, err
	}

	var rec RawVec
	var err error
	if rec.Ptr, err = v.ReadU32(ptr + PtrOffset); err != nil {
		return RawVec{}, err
	}
	if rec.Len, err = v.ReadU32(ptr + LenOffset); err != nil {
		return RawVec{}, err
	}
	if rec.Cap, err = v.ReadU32(ptr + CapOffset); err != nil {
		return RawVec{}, err
	}
	return rec, nil
}

// WriteRecord encodes rec into the 12-byte record at ptr.
func (v View) WriteRecord(ptr uint32, rec RawVec) error {
	if err := v.WriteU32(ptr+PtrOffset, rec.Ptr); err != nil {
		return err
	}
	if err := v.WriteU32(ptr+LenOffset, rec.Len); err != nil {
		return err
	}
	return v.WriteU32(ptr+CapOffset, rec.Cap)
}

// ElementOffset returns the address of element index of a vector whose data
// starts at base.
func ElementOffset(base, index uint32, elem Elem) (uint32, error) {
	offset := uint64(base) + uint64(index)*uint64(elem.Size)
	if offset > math.MaxUint32 {
		return 0, fmt.Errorf("%w: element %d of vector at %#x", ErrOutOfBounds, index, base)
	}
	return uint32(offset), nil
}

// ReadString decodes a RawVec<u16> into a host string.
// Unpaired surrogates decode to U+FFFD.
func (v View) ReadString(rec RawVec) (string, error) {
	units, err := v.ReadU16s(rec.Ptr, rec.Len)
	if err != nil {
		return "", err
	}
	return string(utf16.Decode(units)), nil
}

// CodeUnits encodes s as UTF-16. Characters outside the basic multilingual
// plane become surrogate pairs, so the result length is the guest-visible
// string length.
func CodeUnits(s string) []uint16 {
	return utf16.Encode([]rune(s))
}
