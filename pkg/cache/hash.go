package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// hashKey maps a key to a 16-character hex file stem. Keys such as
// "snapshot/agents" or URLs never reach the filesystem directly.
func hashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:8])
}
