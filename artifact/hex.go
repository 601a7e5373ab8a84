package artifact

import (
	"encoding/hex"
	"fmt"
)

// EncodeHex returns the lowercase, two-characters-per-byte hex text of data.
func EncodeHex(data []byte) string {
	return hex.EncodeToString(data)
}

// DecodeHex converts hex text back to bytes. Odd lengths and non-hex
// characters are rejected.
func DecodeHex(text string) ([]byte, error) {
	if len(text)%2 != 0 {
		return nil, fmt.Errorf("hex text has odd length %d", len(text))
	}
	data, err := hex.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return data, nil
}
