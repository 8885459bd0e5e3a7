// Package cryptox holds the cryptographic primitives of the vault:
// passphrase key derivation (argon2id), AES-256-GCM sealing of payloads and
// metadata envelopes, content checksums, and the keyed date digest used to
// address entries in the index without storing dates in the clear.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/mindvault/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	// argon2id parameters: deliberately slow, memory-hard.
	kdfTime    = 1
	kdfMemory  = 64 * 1024
	kdfThreads = 4

	keySize   = 32
	nonceSize = 12
)

// KeyMaterial is the working key set derived from a passphrase. EncKey seals
// payloads and index envelopes; MacKey computes deterministic date digests
// for index addressing. Callers own wiping via Wipe.
type KeyMaterial struct {
	EncKey []byte
	MacKey []byte
}

// DeriveKeys stretches the passphrase with argon2id over the per-vault salt
// and splits the output into the encryption and lookup keys.
func DeriveKeys(passphrase, salt []byte) *KeyMaterial {
	raw := argon2.IDKey(passphrase, salt, kdfTime, kdfMemory, kdfThreads, 2*keySize)
	return &KeyMaterial{EncKey: raw[:keySize], MacKey: raw[keySize:]}
}

// Wipe zeroizes the key material. Safe to call more than once.
func (k *KeyMaterial) Wipe() {
	if k == nil {
		return
	}
	common.WipeByteArray(k.EncKey)
	common.WipeByteArray(k.MacKey)
}

// DateDigest returns the hex HMAC-SHA256 of the date key under MacKey.
// It is deterministic, so the index can look entries up by date while the
// stored digests reveal nothing about the dates themselves.
func DateDigest(k *KeyMaterial, date string) string {
	mac := hmac.New(sha256.New, k.MacKey)
	mac.Write([]byte(date))
	return hex.EncodeToString(mac.Sum(nil))
}

// Checksum returns the hex SHA-256 digest of plaintext content. It gates
// re-embedding and detects post-decryption corruption.
func Checksum(plaintext []byte) string {
	sum := sha256.Sum256(plaintext)
	return hex.EncodeToString(sum[:])
}

// Seal encrypts plaintext under key with AES-256-GCM, prepending the random
// nonce to the ciphertext so the result is a single self-contained blob.
func Seal(plaintext, key []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a blob produced by Seal. A key that does not authenticate
// the ciphertext yields common.ErrAuthentication, never altered content.
func Open(blob, key []byte) ([]byte, error) {
	if len(blob) < nonceSize {
		return nil, fmt.Errorf("%w: blob too short", common.ErrStorageIntegrity)
	}

	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, blob[:nonceSize], blob[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrAuthentication, err)
	}
	return plaintext, nil
}

// SealJSON serializes v to JSON and seals it. Used for index envelopes
// (entry and chunk records) so record fields are unreadable at rest.
func SealJSON(v any, key []byte) ([]byte, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Seal(plaintext, key)
}

// OpenJSON opens a blob produced by SealJSON and unmarshals it into v.
func OpenJSON(blob, key []byte, v any) error {
	plaintext, err := Open(blob, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(plaintext, v)
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
