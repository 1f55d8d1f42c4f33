package dreip

import (
	"crypto/sha256"
	"encoding/binary"
	"math/big"
)

// Domain separation tags for the Fiat-Shamir transcripts. The per-vote and
// ballot-level proofs hash over disjoint domains so a transcript of one can
// never stand in for the other.
const (
	voteProofDomain   = "dreip-vote-pwf-v1"
	ballotProofDomain = "dreip-ballot-pwf-v1"
	confirmCodeDomain = "dreip-cc-v1"
)

// transcript accumulates a length-prefixed, ordered concatenation of a
// domain tag and canonical element encodings, exactly as hashed by the
// Fiat-Shamir challenge.
type transcript struct {
	buf []byte
}

func newTranscript(domain string) *transcript {
	t := &transcript{}
	t.append([]byte(domain))
	return t
}

func (t *transcript) append(elem []byte) *transcript {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(elem)))
	t.buf = append(t.buf, length[:]...)
	t.buf = append(t.buf, elem...)
	return t
}

func (t *transcript) appendUint64(v uint64) *transcript {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return t.append(b[:])
}

// challenge reduces the transcript to a scalar modulo order. The reduction
// is wide: two tagged SHA-256 invocations produce 512 bits of digest, which
// keeps the modular bias negligible for any order up to 2^256.
func (t *transcript) challenge(order *big.Int) *big.Int {
	lo := sha256.Sum256(append([]byte{0x00}, t.buf...))
	hi := sha256.Sum256(append([]byte{0x01}, t.buf...))
	wide := make([]byte, 0, 64)
	wide = append(wide, lo[:]...)
	wide = append(wide, hi[:]...)
	c := new(big.Int).SetBytes(wide)
	return c.Mod(c, order)
}

// digest returns the raw SHA-256 digest of the transcript, for non-challenge
// uses such as confirmation codes.
func (t *transcript) digest() [32]byte {
	return sha256.Sum256(t.buf)
}
