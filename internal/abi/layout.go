package abi

// Record layout shared by RawBox and RawVec.
const (
	RecordSize  uint32 = 12
	RecordAlign uint32 = 4

	PtrOffset uint32 = 0
	LenOffset uint32 = 4
	CapOffset uint32 = 8
)

// UTF-16 code unit layout.
const (
	CodeUnitSize  uint32 = 2
	CodeUnitAlign uint32 = 2
)

// Elem describes the element layout of a RawVec.
type Elem struct {
	Size  uint32
	Align uint32
}

var (
	// CodeUnitElem is the element layout of a RawVec<u16>.
	CodeUnitElem = Elem{Size: CodeUnitSize, Align: CodeUnitAlign}

	// RecordElem is the element layout of a RawVec of nested records.
	RecordElem = Elem{Size: RecordSize, Align: RecordAlign}
)

// RawVec is the decoded content of a 12-byte record.
type RawVec struct {
	Ptr uint32
	Len uint32
	Cap uint32
}
