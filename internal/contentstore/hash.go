package contentstore

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashText returns the SHA-256 hex digest of the text's UTF-8 bytes.
// Together with the store id it forms the dedup key for ingestion.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
