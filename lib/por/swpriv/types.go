package swpriv

import (
	"math/big"

	porcommon "github.com/F483/heartbeat/lib/por/common"
	"golang.org/x/xerrors"
)

var _ porcommon.Serializable = (*Tag)(nil)
var _ porcommon.Serializable = (*Challenge)(nil)
var _ porcommon.Serializable = (*Proof)(nil)
var _ porcommon.Serializable = (*State)(nil)
var _ porcommon.Serializable = (*Verifier)(nil)

// Tag is the per-file authenticator vector held by the server, one field
// element per chunk.
type Tag struct {
	Sigma []*big.Int
}

func (t *Tag) Serialize() ([]byte, error) {
	var w wireWriter
	w.PutU32(uint32(len(t.Sigma)))
	for _, s := range t.Sigma {
		w.PutBigInt(s)
	}
	return w.Bytes(), nil
}

func (t *Tag) Deserialize(buf []byte) error {
	r := newWireReader(buf)
	n, err := r.U32()
	if err != nil {
		return err
	}
	// every element is at least a 4-byte length prefix
	if uint64(n)*4 > uint64(r.remaining()) {
		return xerrors.Errorf("tag claims %d elements in %d bytes: %w", n, r.remaining(), porcommon.ErrWireFormat)
	}
	sigma := make([]*big.Int, n)
	for i := range sigma {
		sigma[i], err = r.BigInt()
		if err != nil {
			return err
		}
	}
	if err := r.Close(); err != nil {
		return err
	}
	t.Sigma = sigma
	return nil
}

// Challenge is one round's query: challenge l chunks, selected and weighted
// by two PRFs seeded from Key.  The index PRF range n and the domain tags
// never travel on the wire; they are reconstructed by each side.
type Challenge struct {
	L   uint32
	Key []byte
	B   *big.Int
}

func (c *Challenge) Serialize() ([]byte, error) {
	var w wireWriter
	w.PutU32(c.L)
	w.PutBytes(c.Key)
	w.PutBigInt(c.B)
	return w.Bytes(), nil
}

func (c *Challenge) Deserialize(buf []byte) error {
	r := newWireReader(buf)
	l, err := r.U32()
	if err != nil {
		return err
	}
	key, err := r.Bytes()
	if err != nil {
		return err
	}
	if len(key) != porcommon.KeySize {
		return xerrors.Errorf("challenge key is %d bytes: %w", len(key), porcommon.ErrWireFormat)
	}
	b, err := r.BigInt()
	if err != nil {
		return err
	}
	if err := r.Close(); err != nil {
		return err
	}
	c.L = l
	c.Key = append([]byte(nil), key...)
	c.B = b
	return nil
}

func (c *Challenge) indexPRF(n uint32) *prf {
	return newPRF(c.Key, new(big.Int).SetUint64(uint64(n)), tagIndex)
}

func (c *Challenge) coefPRF() *prf {
	return newPRF(c.Key, c.B, tagCoef)
}

// ChallengedChunks replays the index PRF and returns the l chunk indices
// this challenge touches, in query order.
func (c *Challenge) ChallengedChunks(n uint32) ([]uint32, error) {
	if c.L == 0 {
		return nil, nil
	}
	if n == 0 {
		return nil, xerrors.Errorf("challenge of %d chunks over empty file: %w", c.L, porcommon.ErrShapeMismatch)
	}
	idx := c.indexPRF(n)
	out := make([]uint32, c.L)
	for t := uint32(0); t < c.L; t++ {
		out[t] = uint32(idx.Evaluate(t).Uint64())
	}
	return out, nil
}

// Proof is the aggregated response to a challenge: one field element per
// sector plus the combined authenticator.
type Proof struct {
	Mu    []*big.Int
	Sigma *big.Int
}

func (p *Proof) Serialize() ([]byte, error) {
	var w wireWriter
	w.PutU32(uint32(len(p.Mu)))
	for _, m := range p.Mu {
		w.PutBigInt(m)
	}
	w.PutBigInt(p.Sigma)
	return w.Bytes(), nil
}

func (p *Proof) Deserialize(buf []byte) error {
	r := newWireReader(buf)
	s, err := r.U32()
	if err != nil {
		return err
	}
	if uint64(s)*4 > uint64(r.remaining()) {
		return xerrors.Errorf("proof claims %d elements in %d bytes: %w", s, r.remaining(), porcommon.ErrWireFormat)
	}
	mu := make([]*big.Int, s)
	for j := range mu {
		mu[j], err = r.BigInt()
		if err != nil {
			return err
		}
	}
	sigma, err := r.BigInt()
	if err != nil {
		return err
	}
	if err := r.Close(); err != nil {
		return err
	}
	p.Mu = mu
	p.Sigma = sigma
	return nil
}
