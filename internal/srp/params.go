package srp

import (
	"crypto/sha256"
	"math/big"
)

// RFC 5054 2048-bit SRP group parameters.
// N is a safe prime, g the generator, k the SRP-6a multiplier k = H(N | PAD(g)).
var (
	groupN = initN()
	groupG = big.NewInt(2)
	groupK = computeK(groupN, groupG)
)

func initN() *big.Int {
	n := new(big.Int)
	n.SetString(
		"AC6BDB41324A9A9BF166DE5E1389582FAF72B6651987EE07FC3192943DB56050"+
			"A37329CBB4A099ED8193E0757767A13DD52312AB4B03310DCD7F48A9DA04FD50"+
			"E8083969EDB767B0CF6095179A163AB3661A05FBD5FAAAE82918A9962F0B93B8"+
			"55F97993EC975EEAA80D740ADBF4FF747359D041D5C33EA71D281E446B14773B"+
			"CA97B43A23FB801676BD207A436C6481F1D2B9078717461A5B9D32E688F87748"+
			"544523B524B0D57D5EA77A2775D2ECFA032CFBDBF52FB3786160279004E57AE6"+
			"AF874E7303CE53299CCC041C7BC308D82A5698F3A8D0C38271AE35F8E9DBFBB6"+
			"94B5C803D89F7AE435DE236D525F54759B65E372FCD68EF20FA7111F9E4AFF73", 16)
	return n
}

func computeK(N, g *big.Int) *big.Int {
	hash := sha256.New()

	// pad g to the length of N for consistent hashing
	nBytes := N.Bytes()
	gBytes := make([]byte, len(nBytes))
	copy(gBytes[len(gBytes)-len(g.Bytes()):], g.Bytes())

	hash.Write(nBytes)
	hash.Write(gBytes)

	return new(big.Int).SetBytes(hash.Sum(nil))
}

// GroupParameters returns (N, g, k) for client implementations and tests.
func GroupParameters() (N, g, k *big.Int) {
	return groupN, groupG, groupK
}

// pad left-pads b to the byte length of N.
func pad(b []byte) []byte {
	n := len(groupN.Bytes())
	if len(b) >= n {
		return b
	}
	out := make([]byte, n)
	copy(out[n-len(b):], b)
	return out
}
