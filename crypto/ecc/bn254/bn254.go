package bn254

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	curve "github.com/vocdoni/dreip-node/crypto/ecc"
)

const CurveType = "bn254"

// PointLen is the length of the compressed point encoding.
const PointLen = bn254.SizeOfG1AffineCompressed

var generator bn254.G1Jac

func init() {
	generator.X.SetOne()
	generator.Y.SetUint64(2)
	generator.Z.SetOne()
}

// G1 is the affine representation of a G1 group element.
type G1 struct {
	inner *bn254.G1Affine
	lock  sync.Mutex
}

// New returns a new G1 point set to the point at infinity.
func New() curve.Point {
	return &G1{inner: new(bn254.G1Affine)}
}

func (g *G1) New() curve.Point {
	return &G1{inner: new(bn254.G1Affine)}
}

func (g *G1) Order() *big.Int {
	return fr.Modulus()
}

func (g *G1) Add(a, b curve.Point) {
	temp := new(bn254.G1Affine)
	temp.Add(a.(*G1).inner, b.(*G1).inner)
	*g.inner = *temp
}

func (g *G1) SafeAdd(a, b curve.Point) {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.inner.Add(a.(*G1).inner, b.(*G1).inner)
}

func (g *G1) ScalarMult(a curve.Point, scalar *big.Int) {
	temp := new(bn254.G1Affine)
	temp.ScalarMultiplication(a.(*G1).inner, scalar)
	*g.inner = *temp
}

func (g *G1) ScalarBaseMult(scalar *big.Int) {
	g.inner.ScalarMultiplicationBase(scalar)
}

func (g *G1) Neg(a curve.Point) {
	g.inner.Neg(a.(*G1).inner)
}

func (g *G1) SetZero() {
	g.inner.X.SetZero()
	g.inner.Y.SetZero()
}

func (g *G1) Set(a curve.Point) {
	g.inner.X.Set(&a.(*G1).inner.X)
	g.inner.Y.Set(&a.(*G1).inner.Y)
}

func (g *G1) SetGenerator() {
	g.inner.FromJacobian(&generator)
}

func (g *G1) Equal(a curve.Point) bool {
	return g.inner.Equal(a.(*G1).inner)
}

func (g *G1) IsZero() bool {
	return g.inner.IsInfinity()
}

// Marshal returns the canonical compressed encoding (32 bytes, sign bit in
// the most significant flag bits).
func (g *G1) Marshal() []byte {
	buf := g.inner.Bytes()
	return buf[:]
}

// Unmarshal decodes a compressed encoding. The gnark decoder rejects
// off-curve and out-of-subgroup points; non-canonical field encodings fail
// too. The point at infinity is accepted here and filtered by callers for
// which it is not a valid value.
func (g *G1) Unmarshal(buf []byte) error {
	if len(buf) != PointLen {
		return fmt.Errorf("invalid point encoding length %d, want %d", len(buf), PointLen)
	}
	if _, err := g.inner.SetBytes(buf); err != nil {
		return fmt.Errorf("invalid point encoding: %w", err)
	}
	return nil
}

func (g *G1) Point() (*big.Int, *big.Int) {
	return g.inner.X.BigInt(new(big.Int)), g.inner.Y.BigInt(new(big.Int))
}

func (g *G1) String() string {
	return fmt.Sprintf("%x", g.Marshal())
}

func (g *G1) Type() string {
	return CurveType
}
