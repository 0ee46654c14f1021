package keystore

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"
)

// Fernet implements the token format of the Python cryptography package's
// Fernet recipe: AES-128-CBC encryption under one half of the key, a
// SHA-256 HMAC over the whole token under the other half, PKCS#7 padding,
// and a base64url-encoded wire representation.
//
// token := base64url( version(1) || timestamp(8, big-endian) || iv(16) ||
//
//	ciphertext || hmac(32) )
const fernetVersion byte = 0x80

// FernetKey splits a 32-byte key into its signing and encryption halves.
type FernetKey struct {
	signingKey    [16]byte
	encryptionKey [16]byte
}

// NewFernetKey accepts a 32-byte key, the same length PBKDF2 produces here.
func NewFernetKey(key []byte) (*FernetKey, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("fernet key must be 32 bytes, got %d", len(key))
	}
	fk := &FernetKey{}
	copy(fk.signingKey[:], key[:16])
	copy(fk.encryptionKey[:], key[16:])
	return fk, nil
}

// Encrypt produces a Fernet token for plaintext, using now as the embedded
// timestamp (informational only — this package does not enforce TTLs).
func (fk *FernetKey) Encrypt(plaintext []byte, now time.Time) ([]byte, error) {
	block, err := aes.NewCipher(fk.encryptionKey[:])
	if err != nil {
		return nil, err
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	buf := new(bytes.Buffer)
	buf.WriteByte(fernetVersion)
	binary.Write(buf, binary.BigEndian, uint64(now.Unix()))
	buf.Write(iv)
	buf.Write(ciphertext)

	mac := hmac.New(sha256.New, fk.signingKey[:])
	mac.Write(buf.Bytes())
	tag := mac.Sum(nil)
	buf.Write(tag)

	out := make([]byte, base64.URLEncoding.EncodedLen(buf.Len()))
	base64.URLEncoding.Encode(out, buf.Bytes())
	return out, nil
}

// Decrypt validates the token's HMAC in constant time and returns the
// plaintext. A tampered or malformed token returns ErrInvalidToken.
func (fk *FernetKey) Decrypt(token []byte) ([]byte, error) {
	raw := make([]byte, base64.URLEncoding.DecodedLen(len(token)))
	n, err := base64.URLEncoding.Decode(raw, token)
	if err != nil {
		return nil, fmt.Errorf("%w: not valid base64url", ErrInvalidToken)
	}
	raw = raw[:n]

	if len(raw) < 1+8+16+32 {
		return nil, fmt.Errorf("%w: too short", ErrInvalidToken)
	}
	if raw[0] != fernetVersion {
		return nil, fmt.Errorf("%w: unsupported version", ErrInvalidToken)
	}

	body := raw[:len(raw)-32]
	wantTag := raw[len(raw)-32:]

	mac := hmac.New(sha256.New, fk.signingKey[:])
	mac.Write(body)
	gotTag := mac.Sum(nil)

	if !hmac.Equal(gotTag, wantTag) {
		return nil, fmt.Errorf("%w: hmac mismatch", ErrInvalidToken)
	}

	iv := raw[9:25]
	ciphertext := raw[25 : len(raw)-32]
	if len(ciphertext)%aes.BlockSize != 0 || len(ciphertext) == 0 {
		return nil, fmt.Errorf("%w: malformed ciphertext", ErrInvalidToken)
	}

	block, err := aes.NewCipher(fk.encryptionKey[:])
	if err != nil {
		return nil, err
	}
	plainPadded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plainPadded, ciphertext)

	return pkcs7Unpad(plainPadded)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := bytes.Repeat([]byte{byte(padLen)}, padLen)
	return append(data, padding...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty padded data", ErrInvalidToken)
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, fmt.Errorf("%w: bad padding", ErrInvalidToken)
	}
	return data[:len(data)-padLen], nil
}
