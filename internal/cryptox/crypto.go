// Package cryptox provides the crypto primitives used by the authentication
// core: random material, constant-time comparison, key derivation, AEAD
// encryption, and keypair generation. All functions are stateless.
//
// A primitive failure (entropy exhaustion, tag mismatch) is terminal for the
// call; callers must not retry automatically.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/box"
	"golang.org/x/crypto/pbkdf2"

	"github.com/cygnus07/zeroLock/internal/common"
)

const gcmTagSize = 16

var ErrDecryptionFailed = errors.New("decryption failed")

// RandomHex returns n cryptographically random bytes encoded as lowercase
// hex, so the result is 2n characters long. Used for salts and session
// identifiers.
func RandomHex(n int) (string, error) {
	return common.MakeRandHexString(n)
}

// SecureToken returns n random bytes as an unpadded base64url string,
// suitable for opaque bearer tokens.
func SecureToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SecureCompare reports whether a and b are equal in constant time.
// Inputs of different lengths compare false without examining content,
// so the comparison leaks neither content nor mismatch position.
func SecureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// DeriveKey derives a key of length bytes from secret using PBKDF2-SHA256.
// The context string acts as domain separation, so independent sub-keys
// (vault key, auth key) can be derived from one shared SRP session key.
func DeriveKey(secret, context string, iterations, length int) []byte {
	return pbkdf2.Key([]byte(secret), []byte(context), iterations, length, sha256.New)
}

// AEADEncrypt encrypts plaintext with AES-256-GCM under key, returning the
// ciphertext, the random 12-byte iv, and the 16-byte authentication tag
// separately. The key must be 16, 24, or 32 bytes.
func AEADEncrypt(plaintext, key []byte) (ciphertext, iv, tag []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, nil, err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, nil, err
	}

	iv = make([]byte, aesgcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, nil, err
	}

	sealed := aesgcm.Seal(nil, iv, plaintext, nil)
	ciphertext = sealed[:len(sealed)-gcmTagSize]
	tag = sealed[len(sealed)-gcmTagSize:]

	return ciphertext, iv, tag, nil
}

// AEADDecrypt reverses AEADEncrypt. It fails with ErrDecryptionFailed if the
// tag does not verify; it never returns unauthenticated plaintext.
func AEADDecrypt(ciphertext, key, iv, tag []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aesgcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	return plaintext, nil
}

// GenerateKeyPair generates a Curve25519 keypair for out-of-band encrypted
// key exchange. Both halves are returned base64-encoded; the private half is
// expected to be encrypted client-side before it is ever stored.
func GenerateKeyPair() (publicKey, privateKey string, err error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", err
	}

	publicKey = base64.StdEncoding.EncodeToString(pub[:])
	privateKey = base64.StdEncoding.EncodeToString(priv[:])

	common.WipeByteArray(priv[:])

	return publicKey, privateKey, nil
}
