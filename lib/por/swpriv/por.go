package swpriv

import (
	"context"
	"encoding/base64"
	"math/big"
	"runtime"
	"sync"

	"github.com/zeebo/blake3"
	"golang.org/x/sync/semaphore"
	"golang.org/x/xerrors"

	"github.com/F483/heartbeat/lib/crypto/field"
	"github.com/F483/heartbeat/lib/log"
	porcommon "github.com/F483/heartbeat/lib/por/common"
)

var logger = log.Logger("por")

// Verifier is the proof-of-retrievability engine for one verifier identity.
// The private form carries the envelope keys and can run the full protocol;
// the public form (GetPublic) keeps only the field parameters and can
// encode and prove but not issue or check challenges.
//
// Operations never mutate the verifier, so distinct operations on one
// instance may run concurrently.
type Verifier struct {
	p          *big.Int
	sectors    uint32
	sectorSize uint32
	kEnc       []byte
	kMac       []byte
}

// Gen creates a fresh verifier: a random prime modulus of the requested bit
// length and new envelope keys.  The sector size is pinned well under the
// prime's byte length so no sector value can reach p; a malicious server
// could otherwise shrink stored sectors undetectably.
func Gen(primeBits int, sectors uint32) (*Verifier, error) {
	if sectors == 0 {
		return nil, xerrors.Errorf("sectors must be positive: %w", porcommon.ErrInvalidSettings)
	}
	p, err := field.RandPrime(primeBits)
	if err != nil {
		return nil, xerrors.Errorf("modulus: %w", porcommon.ErrRandomness)
	}
	sectorSize := uint32(field.ByteLen(p) / 8)
	if sectorSize == 0 {
		return nil, xerrors.Errorf("prime of %d bits leaves no room for sectors: %w", primeBits, porcommon.ErrInvalidSettings)
	}
	kEnc, err := field.RandBytes(porcommon.KeySize)
	if err != nil {
		return nil, xerrors.Errorf("envelope keys: %w", porcommon.ErrRandomness)
	}
	kMac, err := field.RandBytes(porcommon.KeySize)
	if err != nil {
		return nil, xerrors.Errorf("envelope keys: %w", porcommon.ErrRandomness)
	}
	logger.Debugf("generated verifier: %d bit modulus, %d sectors, %dB sector", p.BitLen(), sectors, sectorSize)
	return &Verifier{p: p, sectors: sectors, sectorSize: sectorSize, kEnc: kEnc, kMac: kMac}, nil
}

// GetPublic strips the envelope keys.
func (v *Verifier) GetPublic() *Verifier {
	return &Verifier{
		p:          new(big.Int).Set(v.p),
		sectors:    v.sectors,
		sectorSize: v.sectorSize,
	}
}

func (v *Verifier) IsPublic() bool {
	return v.kEnc == nil
}

func (v *Verifier) Prime() *big.Int {
	return new(big.Int).Set(v.p)
}

func (v *Verifier) Sectors() uint32 {
	return v.sectors
}

func (v *Verifier) SectorSize() uint32 {
	return v.sectorSize
}

// Fingerprint identifies the verifier's public parameters.
func (v *Verifier) Fingerprint() string {
	var w wireWriter
	w.PutU32(v.sectors)
	w.PutU32(v.sectorSize)
	w.PutBigInt(v.p)
	sum := blake3.Sum256(w.Bytes())
	return base64.StdEncoding.EncodeToString(sum[:20])
}

// Close wipes the envelope keys.
func (v *Verifier) Close() {
	field.Wipe(v.kEnc)
	field.Wipe(v.kMac)
}

// ChunkFile wraps data in a chunked view with this verifier's geometry.
func (v *Verifier) ChunkFile(data []byte) (*ChunkedFile, error) {
	return NewChunkedBytes(data, v.sectors, v.sectorSize)
}

// zeroKey seals the state of a public-form encode; the resulting state is
// structurally valid and opens under the all-zero keys, not under the keys
// of any private verifier.
var zeroKey = make([]byte, porcommon.KeySize)

// Encode tags every chunk of f: sigma_i = f(i) + sum_j alpha(j)*m_ij mod p.
// It returns the tag vector and the sealed state holding the fresh PRF
// keys.  Chunks are independent, so the loop fans out across CPUs when the
// file view supports concurrent reads; cancellation takes effect between
// chunks.
func (v *Verifier) Encode(ctx context.Context, f *ChunkedFile) (*Tag, *State, error) {
	n := f.ChunkCount()

	fKey, err := field.RandBytes(porcommon.KeySize)
	if err != nil {
		return nil, nil, xerrors.Errorf("prf keys: %w", porcommon.ErrRandomness)
	}
	alphaKey, err := field.RandBytes(porcommon.KeySize)
	if err != nil {
		return nil, nil, xerrors.Errorf("prf keys: %w", porcommon.ErrRandomness)
	}
	st := &State{n: n, fKey: fKey, alphaKey: alphaKey}

	prfF := st.f(v.p)
	alphas := v.alphaTable(st)

	logger.Debugf("encode: %d chunks x %d sectors", n, v.sectors)

	sigma := make([]*big.Int, n)
	tagChunk := func(i uint32) error {
		s := prfF.Evaluate(i)
		for j := uint32(0); j < v.sectors; j++ {
			m, err := f.Sector(i, j)
			if err != nil {
				return err
			}
			field.AddMulMod(s, alphas[j], m, v.p)
		}
		sigma[i] = s
		return nil
	}

	if f.concurrent() && n > 1 {
		err = forEachChunk(ctx, n, tagChunk)
	} else {
		err = forEachChunkSerial(ctx, n, tagChunk)
	}
	if err != nil {
		return nil, nil, err
	}

	kEnc, kMac := v.kEnc, v.kMac
	if v.IsPublic() {
		kEnc, kMac = zeroKey, zeroKey
	}
	if err := st.EncryptAndSign(kEnc, kMac); err != nil {
		return nil, nil, err
	}
	return &Tag{Sigma: sigma}, st, nil
}

// GenChallenge opens the sealed state and issues the default challenge:
// l = n draws of the index PRF, coefficients bounded by p.  The indices are
// drawn independently, so a chunk can be drawn more than once and a given
// chunk is not guaranteed to be challenged in one round.
func (v *Verifier) GenChallenge(st *State) (*Challenge, error) {
	if v.IsPublic() {
		return nil, porcommon.ErrCapabilityMissing
	}
	s := st.clone()
	if err := s.CheckAndDecrypt(v.kEnc, v.kMac); err != nil {
		return nil, err
	}
	return v.newChallenge(s.n, s.n, v.p)
}

// GenChallengeParams is GenChallenge with a caller-chosen number of
// challenged chunks l (1 <= l <= n) and coefficient bound B (1 <= B <= p).
func (v *Verifier) GenChallengeParams(st *State, l uint32, B *big.Int) (*Challenge, error) {
	if v.IsPublic() {
		return nil, porcommon.ErrCapabilityMissing
	}
	s := st.clone()
	if err := s.CheckAndDecrypt(v.kEnc, v.kMac); err != nil {
		return nil, err
	}
	if l > s.n || (l == 0 && s.n > 0) {
		return nil, xerrors.Errorf("challenge %d of %d chunks: %w", l, s.n, porcommon.ErrInvalidSettings)
	}
	if B.Sign() <= 0 || B.Cmp(v.p) > 0 {
		return nil, xerrors.Errorf("coefficient bound out of (0, p]: %w", porcommon.ErrInvalidSettings)
	}
	return v.newChallenge(s.n, l, B)
}

func (v *Verifier) newChallenge(n, l uint32, B *big.Int) (*Challenge, error) {
	key, err := field.RandBytes(porcommon.KeySize)
	if err != nil {
		return nil, xerrors.Errorf("challenge key: %w", porcommon.ErrRandomness)
	}
	logger.Debugf("challenge: %d of %d chunks", l, n)
	return &Challenge{L: l, Key: key, B: new(big.Int).Set(B)}, nil
}

// Prove aggregates the challenged sectors and tag entries:
//
//	mu_j  = sum_t coef(t) * m_{idx(t),j}     mod p
//	sigma = sum_t coef(t) * tag.sigma_idx(t) mod p
//
// The per-sector sums are independent and fan out across CPUs when the
// file view supports concurrent reads.
func (v *Verifier) Prove(ctx context.Context, f *ChunkedFile, c *Challenge, tg *Tag) (*Proof, error) {
	n := f.ChunkCount()
	if uint32(len(tg.Sigma)) != n {
		return nil, xerrors.Errorf("tag has %d entries for %d chunks: %w", len(tg.Sigma), n, porcommon.ErrShapeMismatch)
	}
	if err := v.checkChallenge(c); err != nil {
		return nil, err
	}

	idx, coef, err := v.challengePRFs(c, n)
	if err != nil {
		return nil, err
	}

	logger.Debugf("prove: %d chunks challenged, %d sectors", c.L, v.sectors)

	mu := make([]*big.Int, v.sectors)
	sumSector := func(j uint32) error {
		m := new(big.Int)
		for t := uint32(0); t < c.L; t++ {
			sec, err := f.Sector(idx[t], j)
			if err != nil {
				return err
			}
			field.AddMulMod(m, coef[t], sec, v.p)
		}
		mu[j] = m
		return nil
	}

	if f.concurrent() && v.sectors > 1 {
		err = forEachChunk(ctx, v.sectors, sumSector)
	} else {
		err = forEachChunkSerial(ctx, v.sectors, sumSector)
	}
	if err != nil {
		return nil, err
	}

	sigma := new(big.Int)
	for t := uint32(0); t < c.L; t++ {
		ts := tg.Sigma[idx[t]]
		if !field.InRange(ts, v.p) {
			return nil, xerrors.Errorf("tag entry %d out of field range: %w", idx[t], porcommon.ErrWireFormat)
		}
		field.AddMulMod(sigma, coef[t], ts, v.p)
	}

	return &Proof{Mu: mu, Sigma: sigma}, nil
}

// Verify opens the state and checks the proof against the challenge:
//
//	sigma == sum_t coef(t)*f(idx(t)) + sum_j alpha(j)*mu_j  mod p
//
// State authentication failure is an expected protocol outcome and reports
// as (false, nil); every other failure propagates.
func (v *Verifier) Verify(pf *Proof, c *Challenge, st *State) (bool, error) {
	if v.IsPublic() {
		return false, porcommon.ErrCapabilityMissing
	}
	s := st.clone()
	if err := s.CheckAndDecrypt(v.kEnc, v.kMac); err != nil {
		if xerrors.Is(err, porcommon.ErrStateAuth) {
			logger.Debugf("verify: state rejected: %v", err)
			return false, nil
		}
		return false, err
	}
	if uint32(len(pf.Mu)) != v.sectors {
		return false, xerrors.Errorf("proof has %d sectors, want %d: %w", len(pf.Mu), v.sectors, porcommon.ErrShapeMismatch)
	}
	if err := v.checkChallenge(c); err != nil {
		return false, err
	}
	if !field.InRange(pf.Sigma, v.p) {
		return false, xerrors.Errorf("proof sigma out of field range: %w", porcommon.ErrWireFormat)
	}
	for j, m := range pf.Mu {
		if !field.InRange(m, v.p) {
			return false, xerrors.Errorf("proof mu[%d] out of field range: %w", j, porcommon.ErrWireFormat)
		}
	}

	idx, coef, err := v.challengePRFs(c, s.n)
	if err != nil {
		return false, err
	}
	prfF := s.f(v.p)
	alphas := v.alphaTable(s)

	rhs := new(big.Int)
	for t := uint32(0); t < c.L; t++ {
		field.AddMulMod(rhs, coef[t], prfF.Evaluate(idx[t]), v.p)
	}
	for j := uint32(0); j < v.sectors; j++ {
		field.AddMulMod(rhs, alphas[j], pf.Mu[j], v.p)
	}

	return field.Equal(pf.Sigma, rhs), nil
}

func (v *Verifier) checkChallenge(c *Challenge) error {
	if len(c.Key) != porcommon.KeySize {
		return xerrors.Errorf("challenge key is %d bytes: %w", len(c.Key), porcommon.ErrWireFormat)
	}
	if c.L > 0 && (c.B == nil || c.B.Sign() <= 0 || c.B.Cmp(v.p) > 0) {
		return xerrors.Errorf("challenge bound out of (0, p]: %w", porcommon.ErrWireFormat)
	}
	return nil
}

// challengePRFs replays both challenge PRFs up front; idx and coef entries
// are consumed more than once by the callers.
func (v *Verifier) challengePRFs(c *Challenge, n uint32) ([]uint32, []*big.Int, error) {
	idx, err := c.ChallengedChunks(n)
	if err != nil {
		return nil, nil, err
	}
	coef := make([]*big.Int, c.L)
	if c.L > 0 {
		p := c.coefPRF()
		for t := range coef {
			coef[t] = p.Evaluate(uint32(t))
		}
	}
	return idx, coef, nil
}

// alphaTable evaluates the alpha PRF once per sector.
func (v *Verifier) alphaTable(s *State) []*big.Int {
	prfAlpha := s.alpha(v.p)
	alphas := make([]*big.Int, v.sectors)
	for j := range alphas {
		alphas[j] = prfAlpha.Evaluate(uint32(j))
	}
	return alphas
}

// forEachChunk runs fn over [0, n) with a CPU-bounded worker fan-out.  The
// reduction slots written by fn are disjoint, so no ordering is imposed.
func forEachChunk(ctx context.Context, n uint32, fn func(uint32) error) error {
	sem := semaphore.NewWeighted(int64(runtime.NumCPU()))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i := uint32(0); i < n; i++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		mu.Lock()
		failed := firstErr != nil
		mu.Unlock()
		if failed {
			sem.Release(1)
			break
		}
		wg.Add(1)
		go func(i uint32) {
			defer wg.Done()
			defer sem.Release(1)
			if err := fn(i); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

func forEachChunkSerial(ctx context.Context, n uint32, fn func(uint32) error) error {
	for i := uint32(0); i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(i); err != nil {
			return err
		}
	}
	return nil
}

// Serialize emits the private form; a public verifier emits zero-length
// key fields.
func (v *Verifier) Serialize() ([]byte, error) {
	var w wireWriter
	w.PutBytes(v.kEnc)
	w.PutBytes(v.kMac)
	w.PutU32(v.sectors)
	w.PutU32(v.sectorSize)
	w.PutBigInt(v.p)
	return w.Bytes(), nil
}

func (v *Verifier) Deserialize(buf []byte) error {
	r := newWireReader(buf)
	kEnc, err := r.Bytes()
	if err != nil {
		return err
	}
	kMac, err := r.Bytes()
	if err != nil {
		return err
	}
	if len(kEnc) != len(kMac) || (len(kEnc) != 0 && len(kEnc) != porcommon.KeySize) {
		return xerrors.Errorf("stored keys are %d/%d bytes: %w", len(kEnc), len(kMac), porcommon.ErrKeyIncompatible)
	}
	sectors, err := r.U32()
	if err != nil {
		return err
	}
	sectorSize, err := r.U32()
	if err != nil {
		return err
	}
	p, err := r.BigInt()
	if err != nil {
		return err
	}
	if err := r.Close(); err != nil {
		return err
	}
	if sectors == 0 || sectorSize == 0 || p.Sign() <= 0 {
		return xerrors.Errorf("degenerate field parameters: %w", porcommon.ErrWireFormat)
	}

	v.sectors = sectors
	v.sectorSize = sectorSize
	v.p = p
	if len(kEnc) == 0 {
		v.kEnc, v.kMac = nil, nil
	} else {
		v.kEnc = append([]byte(nil), kEnc...)
		v.kMac = append([]byte(nil), kMac...)
	}
	return nil
}
