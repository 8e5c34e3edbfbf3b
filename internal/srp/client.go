package srp

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/cygnus07/zeroLock/internal/cryptox"
)

// Client-side half of the handshake. The server never runs this code in the
// login path; it exists for client tooling, the password-change flow, and
// end-to-end tests of the verification path.

// GenerateClientEphemeral generates the client keypair: a random,
// A = g^a mod N.
func GenerateClientEphemeral() (publicHex, secretHex string, err error) {
	aBytes := make([]byte, ephemeralBytes)
	if _, err := rand.Read(aBytes); err != nil {
		return "", "", fmt.Errorf("ephemeral generation failed: %w", err)
	}
	a := new(big.Int).SetBytes(aBytes)
	A := new(big.Int).Exp(groupG, a, groupN)
	return hex.EncodeToString(A.Bytes()), hex.EncodeToString(a.Bytes()), nil
}

// ComputeClientProof derives the shared session key on the client side from
// the password and the server's challenge, and returns the proof M1 the
// server expects plus the session key.
func ComputeClientProof(identity, password, saltHex, clientSecretHex, serverPublicHex string) (proofHex, keyHex string, err error) {
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return "", "", fmt.Errorf("invalid salt: %w", err)
	}
	a, err := decodeHexInt(clientSecretHex)
	if err != nil {
		return "", "", fmt.Errorf("invalid client secret: %w", err)
	}
	B, err := decodeHexInt(serverPublicHex)
	if err != nil {
		return "", "", fmt.Errorf("invalid server ephemeral: %w", err)
	}
	if new(big.Int).Mod(B, groupN).Sign() == 0 {
		return "", "", fmt.Errorf("degenerate server ephemeral")
	}

	A := new(big.Int).Exp(groupG, a, groupN)
	x := computePrivateKey(identity, password, salt)
	u := hashInts(pad(A.Bytes()), pad(B.Bytes()))

	// S = (B - k*g^x)^(a + u*x) mod N
	gx := new(big.Int).Exp(groupG, x, groupN)
	kgx := new(big.Int).Mul(groupK, gx)
	kgx.Mod(kgx, groupN)

	base := new(big.Int).Sub(B, kgx)
	base.Mod(base, groupN)

	exp := new(big.Int).Mul(u, x)
	exp.Add(exp, a)

	S := new(big.Int).Exp(base, exp, groupN)
	K := sha256.Sum256(S.Bytes())

	M1 := computeClientProof(identity, salt, A, B, K[:])
	return hex.EncodeToString(M1), hex.EncodeToString(K[:]), nil
}

// VerifyServerProof checks the server's M2 = H(A | M1 | K) against the
// client's own transcript, completing mutual authentication.
func VerifyServerProof(clientPublicHex, clientProofHex, sharedKeyHex, serverProofHex string) bool {
	A, err := decodeHexInt(clientPublicHex)
	if err != nil {
		return false
	}
	M1, err := hex.DecodeString(clientProofHex)
	if err != nil {
		return false
	}
	K, err := hex.DecodeString(sharedKeyHex)
	if err != nil {
		return false
	}
	expected := computeServerProof(A, M1, K)
	return cryptox.SecureCompare(hex.EncodeToString(expected), serverProofHex)
}
