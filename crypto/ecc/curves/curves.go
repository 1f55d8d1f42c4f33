package curves

import (
	"fmt"

	"github.com/vocdoni/dreip-node/crypto/ecc"
	"github.com/vocdoni/dreip-node/crypto/ecc/bn254"
)

// New creates a new instance of a Curve implementation based on the provided
// type string. The supported types are defined as constants in the curve
// packages. If the type is not supported, it will panic.
func New(curveType string) ecc.Point {
	switch curveType {
	case bn254.CurveType:
		return bn254.New()
	default:
		panic(fmt.Sprintf("unsupported curve type: %s", curveType))
	}
}

// IsValid reports whether the curve type is supported.
func IsValid(curveType string) bool {
	for _, c := range Curves() {
		if c == curveType {
			return true
		}
	}
	return false
}

// Curves returns a list of supported curve types.
func Curves() []string {
	return []string{
		bn254.CurveType,
	}
}
