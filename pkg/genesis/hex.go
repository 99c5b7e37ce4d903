package genesis

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// decodeHexPrefixed decodes an optionally "0x"-prefixed hex string,
// requiring the result to be exactly wantLen bytes.
func decodeHexPrefixed(s string, wantLen int) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != wantLen {
		return nil, fmt.Errorf("expected %d bytes, got %d", wantLen, len(b))
	}
	return b, nil
}
