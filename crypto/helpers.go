package crypto

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// ScalarLen is the length of the serialized scalar form: 32 bytes big-endian.
const ScalarLen = 32

// BigToFF function returns the finite field representation of the big.Int
// provided. It uses the field order to represent the provided number.
func BigToFF(field, iv *big.Int) *big.Int {
	z := big.NewInt(0)
	if c := iv.Cmp(field); c == 0 {
		return z
	} else if c != 1 && iv.Cmp(z) != -1 {
		return iv
	}
	return z.Mod(iv, field)
}

// RandScalar samples a uniform scalar in [0, order).
func RandScalar(order *big.Int) (*big.Int, error) {
	s, err := rand.Int(rand.Reader, order)
	if err != nil {
		return nil, fmt.Errorf("failed to sample random scalar: %w", err)
	}
	return s, nil
}

// ScalarToBytes serializes a scalar as 32 bytes big-endian, left-padded with
// zeros.
func ScalarToBytes(s *big.Int) []byte {
	return s.FillBytes(make([]byte, ScalarLen))
}

// ScalarFromBytes parses a 32-byte big-endian scalar and checks it is in
// canonical form, i.e. smaller than the group order.
func ScalarFromBytes(order *big.Int, buf []byte) (*big.Int, error) {
	if len(buf) != ScalarLen {
		return nil, fmt.Errorf("invalid scalar encoding length %d, want %d", len(buf), ScalarLen)
	}
	s := new(big.Int).SetBytes(buf)
	if s.Cmp(order) >= 0 {
		return nil, fmt.Errorf("scalar out of range")
	}
	return s, nil
}
