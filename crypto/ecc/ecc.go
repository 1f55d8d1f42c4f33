package ecc

import "math/big"

// Point defines the group element interface used by the voting protocol.
// Implementations are elliptic curve points of a prime-order group (or
// prime-order subgroup). All mutating methods store their result in the
// receiver.
type Point interface {
	// New returns a new point of the same curve, set to the identity.
	New() Point
	// Order returns the order of the group.
	Order() *big.Int
	// Add sets the receiver to a+b.
	Add(a, b Point)
	// SafeAdd sets the receiver to a+b, holding an internal lock. It allows
	// concurrent accumulation into a shared point.
	SafeAdd(a, b Point)
	// ScalarMult sets the receiver to scalar·a.
	ScalarMult(a Point, scalar *big.Int)
	// ScalarBaseMult sets the receiver to scalar·G, with G the canonical
	// generator of the curve.
	ScalarBaseMult(scalar *big.Int)
	// Neg sets the receiver to -a.
	Neg(a Point)
	// SetZero sets the receiver to the identity element.
	SetZero()
	// Set copies a into the receiver.
	Set(a Point)
	// SetGenerator sets the receiver to the canonical generator.
	SetGenerator()
	// Equal reports whether the receiver and a are the same group element.
	Equal(a Point) bool
	// IsZero reports whether the receiver is the identity element.
	IsZero() bool
	// Marshal returns the fixed-length compressed encoding of the point.
	Marshal() []byte
	// Unmarshal decodes a compressed encoding into the receiver. It fails
	// on non-canonical encodings and on points outside the group.
	Unmarshal(buf []byte) error
	// Point returns the affine coordinates.
	Point() (*big.Int, *big.Int)
	// String returns a printable representation of the point.
	String() string
	// Type returns the curve type identifier.
	Type() string
}
