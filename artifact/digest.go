package artifact

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Digest is a 32-byte BLAKE3 keyed hash identifying artifact content.
type Digest [32]byte

// artifactDomainKey separates artifact digests from any other BLAKE3 use.
var artifactDomainKey = [32]byte{
	'd', 'i', 'v', 'i', 'n', 'e', '.', 'a', 'r', 't', 'i', 'f', 'a', 'c', 't', 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Sum computes the digest of an artifact.
func Sum(data []byte) Digest {
	hasher, err := blake3.NewKeyed(artifactDomainKey[:])
	if err != nil {
		// NewKeyed only fails for keys that are not 32 bytes.
		panic("artifact: blake3.NewKeyed: " + err.Error())
	}
	_, _ = hasher.Write(data)

	var d Digest
	copy(d[:], hasher.Sum(nil))
	return d
}

// String returns the lowercase hex form of the digest.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Short returns the first 12 hex characters, for log lines.
func (d Digest) Short() string {
	return d.String()[:12]
}
