package audit

import (
	"sort"

	"github.com/bits-and-blooms/bitset"
	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
	"golang.org/x/xerrors"

	porcommon "github.com/F483/heartbeat/lib/por/common"
	"github.com/F483/heartbeat/lib/por/swpriv"
)

// Coverage tracks which chunks of an encoded file have been touched by
// challenge rounds so far.  Challenges select chunks pseudorandomly, so a
// single round gives no coverage guarantee; the verifier replays each
// round's index PRF into this set to know when the whole file has been
// sampled at least once.
type Coverage struct {
	n   uint32
	hit *bitset.BitSet
}

func NewCoverage(n uint32) *Coverage {
	return &Coverage{n: n, hit: bitset.New(uint(n))}
}

// Observe replays chal's index PRF and marks every challenged chunk.
func (c *Coverage) Observe(chal *swpriv.Challenge) error {
	idxs, err := chal.ChallengedChunks(c.n)
	if err != nil {
		return err
	}
	for _, i := range idxs {
		if i >= c.n {
			return xerrors.Errorf("challenged chunk %d of %d: %w", i, c.n, porcommon.ErrShapeMismatch)
		}
		c.hit.Set(uint(i))
	}
	return nil
}

func (c *Coverage) Hit(i uint32) bool {
	return c.hit.Test(uint(i))
}

func (c *Coverage) Count() uint32 {
	return uint32(c.hit.Count())
}

func (c *Coverage) Complete() bool {
	return c.Count() == c.n
}

func (c *Coverage) Ratio() float64 {
	if c.n == 0 {
		return 1
	}
	return float64(c.Count()) / float64(c.n)
}

// RoundRecord is the bookkeeping row a verifier keeps per challenge round.
type RoundRecord struct {
	Seq        uint64
	Chunks     uint32
	Passed     bool
	ChalDigest []byte
}

// NewRoundRecord stamps a finished round; the digest pins the record to the
// exact challenge bytes.
func NewRoundRecord(seq uint64, chal *swpriv.Challenge, passed bool) (*RoundRecord, error) {
	buf, err := chal.Serialize()
	if err != nil {
		return nil, err
	}
	sum := blake3.Sum256(buf)
	return &RoundRecord{
		Seq:        seq,
		Chunks:     chal.L,
		Passed:     passed,
		ChalDigest: sum[:20],
	}, nil
}

func (rr *RoundRecord) Serialize() ([]byte, error) {
	return cbor.Marshal(rr)
}

func (rr *RoundRecord) Deserialize(b []byte) error {
	return cbor.Unmarshal(b, rr)
}

// History is a round log, sorted by sequence number.
type History []*RoundRecord

func (h History) Len() int {
	return len(h)
}

func (h History) Less(i, j int) bool {
	return h[i].Seq < h[j].Seq
}

func (h History) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *History) Append(rr *RoundRecord) {
	*h = append(*h, rr)
	sort.Sort(*h)
}

// Failed returns the records of rounds the server did not pass.
func (h History) Failed() History {
	var out History
	for _, rr := range h {
		if !rr.Passed {
			out = append(out, rr)
		}
	}
	return out
}

func (h History) Serialize() ([]byte, error) {
	return cbor.Marshal(h)
}

func (h *History) Deserialize(b []byte) error {
	return cbor.Unmarshal(b, h)
}
