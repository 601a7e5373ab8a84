// Package artifact converts compiled guest artifacts to and from the hex
// text used for storage and transport, and splits that text into ordered,
// size-bounded chunks.
//
// Packaging an artifact:
//
//	w := artifact.NewWriter(chunkdir.New("./as_hex"))
//	chunks, err := w.Package(wasmBytes)
//
// Reassembling it:
//
//	hexText := strings.Join(texts, "")
//	wasmBytes, err := artifact.DecodeHex(hexText)
package artifact
