package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// VerifySHA256 returns an error when data does not hash to expected (hex, case-insensitive).
func VerifySHA256(data []byte, expected string) error {
	actual := SHA256Hex(data)
	if !strings.EqualFold(actual, strings.TrimSpace(expected)) {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", expected, actual)
	}
	return nil
}

// SHA256Hex returns the SHA256 hash of the given data as a hex string.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
