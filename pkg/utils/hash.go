package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

func HashString(input string) string {
	return HashBytes([]byte(input))
}

func HashBytes(input []byte) string {
	sum := sha256.Sum256(input)
	return hex.EncodeToString(sum[:])
}
