package keystore

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

// v3KeyIterations is fixed by the on-disk format: bumping it would make
// every existing keystore file unreadable. TODO: a v4 format should raise
// this and add a per-file iteration count so it can evolve independently.
const v3KeyIterations = 20000

const derivedKeyLen = 32

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, v3KeyIterations, derivedKeyLen, sha256.New)
}
