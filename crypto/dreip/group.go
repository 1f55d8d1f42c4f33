package dreip

import (
	"fmt"
	"math/big"

	"github.com/vocdoni/dreip-node/crypto"
	"github.com/vocdoni/dreip-node/crypto/ecc"
	"github.com/vocdoni/dreip-node/crypto/ecc/curves"
)

// Group is the two-generator group of one election. g1 is the canonical
// curve base. g2 is the election public key Y = x·g1: its discrete log with
// respect to g1 is the election private key, held by the server and
// published only with the results. Keeping x secret while the election runs
// is what makes the per-candidate ciphertexts ElGamal encryptions; releasing
// it at close is what lets anyone open the homomorphic totals.
type Group struct {
	curveType string
	g1        ecc.Point
	g2        ecc.Point
	order     *big.Int
}

// GenerateElection creates fresh election parameters: a private scalar x and
// the group with g2 = Y = x·g1.
func GenerateElection(curveType string) (*Group, *big.Int, error) {
	g1 := curves.New(curveType)
	g1.SetGenerator()
	order := g1.Order()
	x, err := crypto.RandScalar(order)
	if err != nil {
		return nil, nil, err
	}
	if x.Sign() == 0 {
		x = big.NewInt(1) // avoid zero private keys
	}
	g2 := g1.New()
	g2.ScalarMult(g1, x)
	return &Group{
		curveType: curveType,
		g1:        g1,
		g2:        g2,
		order:     order,
	}, x, nil
}

// GroupFromBytes reconstructs an election group from the serialized
// generators, as published in the election's crypto bundle.
func GroupFromBytes(curveType string, g1Bytes, g2Bytes []byte) (*Group, error) {
	g1, err := PointFromBytes(curveType, g1Bytes)
	if err != nil {
		return nil, fmt.Errorf("g1: %w", err)
	}
	g2, err := PointFromBytes(curveType, g2Bytes)
	if err != nil {
		return nil, fmt.Errorf("g2: %w", err)
	}
	return &Group{
		curveType: curveType,
		g1:        g1,
		g2:        g2,
		order:     g1.Order(),
	}, nil
}

// CurveType returns the curve type identifier of the group.
func (g *Group) CurveType() string { return g.curveType }

// Order returns the prime order q of the group.
func (g *Group) Order() *big.Int { return g.order }

// G1 returns a copy of the first generator.
func (g *Group) G1() ecc.Point {
	p := g.g1.New()
	p.Set(g.g1)
	return p
}

// G2 returns a copy of the second generator.
func (g *Group) G2() ecc.Point {
	p := g.g2.New()
	p.Set(g.g2)
	return p
}

// PublicKey returns the election public key Y, which coincides with g2.
func (g *Group) PublicKey() ecc.Point { return g.G2() }

// NewPoint returns a fresh identity point of the group's curve.
func (g *Group) NewPoint() ecc.Point { return g.g1.New() }

// CheckPrivateKey verifies that x opens the group's second generator,
// i.e. g2 = x·g1.
func (g *Group) CheckPrivateKey(x *big.Int) error {
	p := g.NewPoint()
	p.ScalarMult(g.g1, x)
	if !p.Equal(g.g2) {
		return fmt.Errorf("%w: private key does not open g2", ErrProofInvalid)
	}
	return nil
}

// PointFromBytes decodes a compressed point for the given curve, rejecting
// the identity element.
func PointFromBytes(curveType string, buf []byte) (ecc.Point, error) {
	p := curves.New(curveType)
	if err := p.Unmarshal(buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	if p.IsZero() {
		return nil, fmt.Errorf("%w: identity point", ErrInvalidEncoding)
	}
	return p, nil
}

// ScalarFromBytes decodes a canonical 32-byte big-endian scalar of the
// group.
func (g *Group) ScalarFromBytes(buf []byte) (*big.Int, error) {
	s, err := crypto.ScalarFromBytes(g.order, buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return s, nil
}
