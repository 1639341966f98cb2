package swpriv

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"math/big"
)

// domain separation tags; two logical PRFs over the same key must differ
// in tag
const (
	tagF     = "f"
	tagAlpha = "alpha"
	tagIndex = "index"
	tagCoef  = "coef"
)

// prf maps a 32-bit input to a uniform integer in [0, limit).  Each
// candidate is drawn from successive HMAC-SHA256 blocks over
// tag || be32(input) || be32(nonce) || be32(block), masked down to the bit
// length of limit and rejection sampled, so there is no modulo bias.
//
// Only the key travels on the wire; limit and tag are re-supplied by
// whichever component rebuilds the prf.
type prf struct {
	key   []byte
	limit *big.Int
	tag   string
}

func newPRF(key []byte, limit *big.Int, tag string) *prf {
	if limit.Sign() <= 0 {
		panic("swpriv: prf limit must be positive")
	}
	return &prf{key: key, limit: limit, tag: tag}
}

func (f *prf) Evaluate(i uint32) *big.Int {
	byteLen := (f.limit.BitLen() + 7) / 8
	if f.limit.BitLen() == 1 {
		// limit is 1
		return new(big.Int)
	}
	mask := byte(0xff >> (byteLen*8 - f.limit.BitLen()))

	var in [4]byte
	binary.BigEndian.PutUint32(in[:], i)

	mac := hmac.New(sha256.New, f.key)
	out := make([]byte, 0, ((byteLen-1)/sha256.Size+1)*sha256.Size)
	for nonce := uint32(0); ; nonce++ {
		out = out[:0]
		for blk := uint32(0); len(out) < byteLen; blk++ {
			mac.Reset()
			mac.Write([]byte(f.tag))
			mac.Write(in[:])

			var ctr [8]byte
			binary.BigEndian.PutUint32(ctr[:4], nonce)
			binary.BigEndian.PutUint32(ctr[4:], blk)
			mac.Write(ctr[:])

			out = mac.Sum(out)
		}
		out = out[:byteLen]
		out[0] &= mask

		x := new(big.Int).SetBytes(out)
		if x.Cmp(f.limit) < 0 {
			return x
		}
	}
}
