package random

import (
	"crypto/rand"
	"math/big"
)

// Random backs colour assignment and lobby code generation.
type Random interface {
	// Intn returns a value in [0, n).
	Intn(n int) int
	// String returns length characters drawn from alphabet.
	String(length int, alphabet string) string
}

type CryptoRandom struct{}

func New() *CryptoRandom { return &CryptoRandom{} }

func (CryptoRandom) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

func (r CryptoRandom) String(length int, alphabet string) string {
	if length <= 0 || alphabet == "" {
		return ""
	}
	out := make([]byte, length)
	for i := range out {
		out[i] = alphabet[r.Intn(len(alphabet))]
	}
	return string(out)
}
