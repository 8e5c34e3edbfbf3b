// Package srp implements the server-side orchestration of the SRP-6a
// protocol: registration-parameter derivation, server ephemeral generation,
// session-key derivation, and client-proof verification.
//
// All values cross the package boundary as hex strings, so the server secret
// ephemeral can be held in durable storage between the two login round trips
// and any service instance can complete a handshake another instance began.
package srp

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/cygnus07/zeroLock/internal/cryptox"
)

const (
	// SaltLength is the exact hex length of a registration salt (32 bytes).
	SaltLength = 64

	// Verifier hex-length bounds accepted from clients.
	MinVerifierLength = 256
	MaxVerifierLength = 1024

	ephemeralBytes = 32
)

// VerifyResult is the outcome of a client-proof check. ServerProof and
// SharedKey are set only when Verified is true.
type VerifyResult struct {
	Verified    bool
	ServerProof string
	SharedKey   string
}

// DeriveRegistrationParams generates a fresh random salt and computes the
// verifier v = g^x mod N with x = H(salt | H(identity ":" password)).
//
// In the deployed protocol this derivation happens on the client and only the
// results reach the server; the function exists for client tooling, tests,
// and the password-change primitive.
func DeriveRegistrationParams(identity, password string) (salt, verifier string, err error) {
	salt, err = cryptox.RandomHex(SaltLength / 2)
	if err != nil {
		return "", "", fmt.Errorf("salt generation failed: %w", err)
	}

	v, err := computeVerifier(identity, password, salt)
	if err != nil {
		return "", "", err
	}

	return salt, hex.EncodeToString(v.Bytes()), nil
}

// GenerateServerEphemeral generates the per-handshake server keypair bound to
// the stored verifier: b random, B = (k*v + g^b) mod N. The secret half must
// never be sent to the client; it is persisted server-side between the two
// login round trips.
func GenerateServerEphemeral(verifierHex string) (publicHex, secretHex string, err error) {
	v, err := decodeHexInt(verifierHex)
	if err != nil {
		return "", "", fmt.Errorf("invalid verifier: %w", err)
	}

	bBytes := make([]byte, ephemeralBytes)
	if _, err := rand.Read(bBytes); err != nil {
		return "", "", fmt.Errorf("ephemeral generation failed: %w", err)
	}
	b := new(big.Int).SetBytes(bBytes)

	B := computePublicEphemeral(b, v)
	if new(big.Int).Mod(B, groupN).Sign() == 0 {
		return "", "", fmt.Errorf("degenerate ephemeral B")
	}

	return hex.EncodeToString(B.Bytes()), hex.EncodeToString(b.Bytes()), nil
}

// VerifyClientProof derives the shared session key from both ephemerals and
// the verifier, recomputes the expected client proof, and compares it in
// constant time against the supplied proof.
//
// Every internal failure (bad encodings, degenerate A, any derivation error)
// collapses into Verified == false. Nothing about the failure mode is exposed,
// so a caller cannot use this function as an oracle.
func VerifyClientProof(clientPublicHex, clientProofHex, serverSecretHex, verifierHex, saltHex, identity string) VerifyResult {
	failed := VerifyResult{}

	A, err := decodeHexInt(clientPublicHex)
	if err != nil {
		return failed
	}
	b, err := decodeHexInt(serverSecretHex)
	if err != nil {
		return failed
	}
	v, err := decodeHexInt(verifierHex)
	if err != nil {
		return failed
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return failed
	}

	// A ≡ 0 (mod N) would force the shared secret to zero.
	if new(big.Int).Mod(A, groupN).Sign() == 0 {
		return failed
	}

	B := computePublicEphemeral(b, v)

	// u = H(PAD(A) | PAD(B))
	u := hashInts(pad(A.Bytes()), pad(B.Bytes()))
	if u.Sign() == 0 {
		return failed
	}

	// S = (A * v^u)^b mod N, K = H(S)
	vu := new(big.Int).Exp(v, u, groupN)
	avu := new(big.Int).Mul(A, vu)
	avu.Mod(avu, groupN)
	S := new(big.Int).Exp(avu, b, groupN)

	K := sha256.Sum256(S.Bytes())

	expected := computeClientProof(identity, salt, A, B, K[:])
	if !cryptox.SecureCompare(clientProofHex, hex.EncodeToString(expected)) {
		return failed
	}

	serverProof := computeServerProof(A, expected, K[:])

	return VerifyResult{
		Verified:    true,
		ServerProof: hex.EncodeToString(serverProof),
		SharedKey:   hex.EncodeToString(K[:]),
	}
}

// ValidateParams reports whether client-submitted SRP registration material
// is well-formed: the salt exactly 64 hex characters, the verifier hex of
// 256 to 1024 characters. This is the sole gate before trusting the material,
// and it fails closed on any deviation.
func ValidateParams(salt, verifier string) bool {
	if len(salt) != SaltLength || !isHex(salt) {
		return false
	}
	if len(verifier) < MinVerifierLength || len(verifier) > MaxVerifierLength {
		return false
	}
	return isHex(verifier)
}

// --- internals ---

// computePublicEphemeral computes B = (k*v + g^b) mod N.
func computePublicEphemeral(b, v *big.Int) *big.Int {
	kv := new(big.Int).Mul(groupK, v)
	kv.Mod(kv, groupN)

	gb := new(big.Int).Exp(groupG, b, groupN)

	B := new(big.Int).Add(kv, gb)
	return B.Mod(B, groupN)
}

// computeVerifier computes v = g^x mod N, x = H(salt | H(identity ":" password)).
func computeVerifier(identity, password, saltHex string) (*big.Int, error) {
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return nil, fmt.Errorf("invalid salt: %w", err)
	}

	x := computePrivateKey(identity, password, salt)
	return new(big.Int).Exp(groupG, x, groupN), nil
}

func computePrivateKey(identity, password string, salt []byte) *big.Int {
	inner := sha256.New()
	inner.Write([]byte(identity))
	inner.Write([]byte(":"))
	inner.Write([]byte(password))

	outer := sha256.New()
	outer.Write(salt)
	outer.Write(inner.Sum(nil))

	return new(big.Int).SetBytes(outer.Sum(nil))
}

// computeClientProof computes M1 = H(H(N) xor H(g) | H(I) | salt | A | B | K).
func computeClientProof(identity string, salt []byte, A, B *big.Int, K []byte) []byte {
	hashN := sha256.Sum256(groupN.Bytes())
	hashG := sha256.Sum256(groupG.Bytes())

	nxg := make([]byte, len(hashN))
	for i := range hashN {
		nxg[i] = hashN[i] ^ hashG[i]
	}

	hashI := sha256.Sum256([]byte(identity))

	h := sha256.New()
	h.Write(nxg)
	h.Write(hashI[:])
	h.Write(salt)
	h.Write(A.Bytes())
	h.Write(B.Bytes())
	h.Write(K)

	return h.Sum(nil)
}

// computeServerProof computes M2 = H(A | M1 | K).
func computeServerProof(A *big.Int, M1, K []byte) []byte {
	h := sha256.New()
	h.Write(A.Bytes())
	h.Write(M1)
	h.Write(K)
	return h.Sum(nil)
}

func hashInts(parts ...[]byte) *big.Int {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return new(big.Int).SetBytes(h.Sum(nil))
}

func decodeHexInt(s string) (*big.Int, error) {
	// big-integer hex values may arrive with a stripped leading zero
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("empty value")
	}
	return new(big.Int).SetBytes(b), nil
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
