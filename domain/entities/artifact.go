package entities

// MaxChunkHexLen is the largest number of hex characters a single chunk may
// carry. Each chunk therefore holds at most MaxChunkHexLen/2 artifact bytes.
const MaxChunkHexLen = 50000

// MaxChunkBytes is the number of artifact bytes encoded by a full chunk.
const MaxChunkBytes = MaxChunkHexLen / 2

// DefaultRecordID is the identifier of the persisted artifact record.
const DefaultRecordID = "divine#"

// HexChunk is one ordered slice of an artifact's hex text.
// Concatenating all chunks of a packaging run in Index order reproduces the
// artifact hex exactly.
type HexChunk struct {
	Text  string `json:"text"`
	Index int    `json:"index"`
}

// StoreRecord is the single persisted document holding the accumulated
// artifact hex. Hex always has even length once a complete upload finished.
type StoreRecord struct {
	Hex string `json:"hex" yaml:"hex" jsonschema:"description=Full artifact as lowercase hex text,pattern=^([0-9a-f]{2})*$"`
}
