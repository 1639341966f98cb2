package swpriv

import (
	"math/big"

	"github.com/F483/heartbeat/lib/crypto/field"
	"github.com/F483/heartbeat/lib/crypto/seal"
	"github.com/F483/heartbeat/lib/log"
	porcommon "github.com/F483/heartbeat/lib/por/common"
	"golang.org/x/xerrors"
)

var slogger = log.Logger("seal")

// State carries the two PRF keys for an encoded file.  The server stores it
// between rounds, so the keys only ever leave the verifier inside an
// AES-256-CFB + HMAC-SHA256 envelope:
//
//	u32(sig_len) || sig_region || u32(mac_len) || mac
//	sig_region = u32(n) || u32(iv_len) || iv || u32(enc_len) || enc
//	plaintext of enc = bytes(f_key) || bytes(alpha_key)
//
// The chunk count n stays in the clear so the envelope can be interpreted
// without the keys.
type State struct {
	n        uint32
	fKey     []byte
	alphaKey []byte

	raw    []byte
	sealed bool
}

// N is the chunk count of the encoded file.  It is meaningful on a freshly
// encoded state and after CheckAndDecrypt; a state that came off the wire
// exposes it through PublicN instead.
func (s *State) N() uint32 {
	return s.n
}

func (s *State) Sealed() bool {
	return s.sealed
}

// Wipe zeroes the PRF keys.
func (s *State) Wipe() {
	field.Wipe(s.fKey)
	field.Wipe(s.alphaKey)
}

func (s *State) clone() *State {
	return &State{
		n:        s.n,
		fKey:     append([]byte(nil), s.fKey...),
		alphaKey: append([]byte(nil), s.alphaKey...),
		raw:      append([]byte(nil), s.raw...),
		sealed:   s.sealed,
	}
}

// EncryptAndSign seals the PRF keys under kEnc and MACs the envelope under
// kMac.  A fresh random IV is drawn on every call.
func (s *State) EncryptAndSign(kEnc, kMac []byte) error {
	if len(kEnc) != porcommon.KeySize || len(kMac) != porcommon.KeySize {
		return xerrors.Errorf("envelope keys must be %d bytes: %w", porcommon.KeySize, porcommon.ErrKeyIncompatible)
	}

	var pw wireWriter
	pw.PutBytes(s.fKey)
	pw.PutBytes(s.alphaKey)

	iv, err := field.RandBytes(seal.IVSize)
	if err != nil {
		return xerrors.Errorf("envelope iv: %w", porcommon.ErrRandomness)
	}
	enc, err := seal.Encrypt(kEnc, iv, pw.Bytes())
	if err != nil {
		return err
	}

	var sw wireWriter
	sw.PutU32(s.n)
	sw.PutBytes(iv)
	sw.PutBytes(enc)
	sig := sw.Bytes()

	mac, err := seal.Sign(kMac, sig)
	if err != nil {
		return err
	}

	var w wireWriter
	w.PutBytes(sig)
	w.PutBytes(mac)

	s.raw = w.Bytes()
	s.sealed = true
	return nil
}

// CheckAndDecrypt verifies the envelope MAC and recovers the PRF keys.  Any
// parse error, MAC mismatch or unexpected key length inside the envelope
// reports ErrStateAuth; the raw envelope bytes are left untouched.
func (s *State) CheckAndDecrypt(kEnc, kMac []byte) error {
	if !s.sealed {
		return porcommon.ErrStateNotSealed
	}
	if len(kEnc) != porcommon.KeySize || len(kMac) != porcommon.KeySize {
		return xerrors.Errorf("envelope keys must be %d bytes: %w", porcommon.KeySize, porcommon.ErrKeyIncompatible)
	}

	r := newWireReader(s.raw)
	sig, err := r.Bytes()
	if err != nil {
		return authFailed("envelope framing", err)
	}
	mac, err := r.Bytes()
	if err != nil {
		return authFailed("envelope framing", err)
	}
	if err := r.Close(); err != nil {
		return authFailed("envelope framing", err)
	}
	if len(mac) != seal.MacSize {
		return authFailed("mac length", xerrors.Errorf("%d bytes", len(mac)))
	}
	if !seal.Verify(kMac, sig, mac) {
		return authFailed("mac mismatch", nil)
	}

	sr := newWireReader(sig)
	n, err := sr.U32()
	if err != nil {
		return authFailed("signed region", err)
	}
	iv, err := sr.Bytes()
	if err != nil {
		return authFailed("signed region", err)
	}
	if len(iv) != seal.IVSize {
		return authFailed("iv length", xerrors.Errorf("%d bytes", len(iv)))
	}
	enc, err := sr.Bytes()
	if err != nil {
		return authFailed("signed region", err)
	}
	if err := sr.Close(); err != nil {
		return authFailed("signed region", err)
	}

	plain, err := seal.Decrypt(kEnc, iv, enc)
	if err != nil {
		return authFailed("decrypt", err)
	}

	pr := newWireReader(plain)
	fKey, err := pr.Bytes()
	if err != nil {
		return authFailed("plaintext", err)
	}
	alphaKey, err := pr.Bytes()
	if err != nil {
		return authFailed("plaintext", err)
	}
	if err := pr.Close(); err != nil {
		return authFailed("plaintext", err)
	}
	if len(fKey) != porcommon.KeySize || len(alphaKey) != porcommon.KeySize {
		return authFailed("prf key length", xerrors.Errorf("%d/%d bytes", len(fKey), len(alphaKey)))
	}

	s.n = n
	s.fKey = append([]byte(nil), fKey...)
	s.alphaKey = append([]byte(nil), alphaKey...)
	s.sealed = false
	return nil
}

func authFailed(what string, err error) error {
	if err != nil {
		slogger.Debugf("state auth failed at %s: %v", what, err)
	} else {
		slogger.Debugf("state auth failed at %s", what)
	}
	return xerrors.Errorf("%s: %w", what, porcommon.ErrStateAuth)
}

// PublicN reads the cleartext chunk count out of a sealed envelope without
// the keys.
func (s *State) PublicN() (uint32, error) {
	if !s.sealed {
		return 0, porcommon.ErrStateNotSealed
	}
	r := newWireReader(s.raw)
	sig, err := r.Bytes()
	if err != nil {
		return 0, err
	}
	return newWireReader(sig).U32()
}

func (s *State) Serialize() ([]byte, error) {
	if !s.sealed {
		return nil, porcommon.ErrStateNotSealed
	}
	var w wireWriter
	w.PutBytes(s.raw)
	return w.Bytes(), nil
}

func (s *State) Deserialize(buf []byte) error {
	r := newWireReader(buf)
	raw, err := r.Bytes()
	if err != nil {
		return err
	}
	if err := r.Close(); err != nil {
		return err
	}
	s.raw = append([]byte(nil), raw...)
	s.sealed = true
	s.n = 0
	s.fKey = nil
	s.alphaKey = nil
	return nil
}

// f and alpha rebuild the two tagging PRFs from an open state.
func (s *State) f(p *big.Int) *prf {
	return newPRF(s.fKey, p, tagF)
}

func (s *State) alpha(p *big.Int) *prf {
	return newPRF(s.alphaKey, p, tagAlpha)
}
