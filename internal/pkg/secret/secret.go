package secret

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
)

// Alphabet deliberately omits 0, O, 1, l and I so issued secrets survive
// being read aloud or copied by hand.
const Alphabet = "23456789abcdefghjkmnpqrstuvwxyzABCDEFGHJKMNPQRSTUVWXYZ"

// Length is the fixed length of issued secrets
const Length = 16

// Issue produces a cryptographically random shareable secret
func Issue() (string, error) {
	max := big.NewInt(int64(len(Alphabet)))
	buf := make([]byte, Length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		buf[i] = Alphabet[n.Int64()]
	}
	return string(buf), nil
}

// Verify compares an issued secret against a candidate in constant time
func Verify(issued, candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(issued), []byte(candidate)) == 1
}
