package swpriv

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"math/big"

	"github.com/F483/heartbeat/lib/crypto/field"
	porcommon "github.com/F483/heartbeat/lib/por/common"
	"golang.org/x/xerrors"
)

// length-prefixed big-endian framing shared by every serializable type:
//   u32(n)    4 bytes big-endian
//   bytes(b)  u32(len(b)) || b
//   bigint(x) u32(minimal byte length of x) || big-endian(x)

type wireWriter struct {
	buf bytes.Buffer
}

func (w *wireWriter) PutU32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *wireWriter) PutBytes(b []byte) {
	w.PutU32(uint32(len(b)))
	w.buf.Write(b)
}

func (w *wireWriter) PutBigInt(x *big.Int) {
	w.PutBytes(field.Encode(x))
}

func (w *wireWriter) Bytes() []byte {
	return w.buf.Bytes()
}

type wireReader struct {
	buf []byte
	off int
}

func newWireReader(buf []byte) *wireReader {
	return &wireReader{buf: buf}
}

func (r *wireReader) remaining() int {
	return len(r.buf) - r.off
}

func (r *wireReader) U32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, xerrors.Errorf("u32 needs 4 bytes, have %d: %w", r.remaining(), porcommon.ErrWireFormat)
	}
	v := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

// Raw returns the next n bytes as a view into the input buffer.  Callers
// that retain the slice must copy it.
func (r *wireReader) Raw(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, xerrors.Errorf("raw needs %d bytes, have %d: %w", n, r.remaining(), porcommon.ErrWireFormat)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *wireReader) Bytes() ([]byte, error) {
	n, err := r.U32()
	if err != nil {
		return nil, err
	}
	if uint64(n) > uint64(r.remaining()) {
		return nil, xerrors.Errorf("bytes field of %d exceeds %d remaining: %w", n, r.remaining(), porcommon.ErrWireFormat)
	}
	return r.Raw(int(n))
}

func (r *wireReader) BigInt() (*big.Int, error) {
	b, err := r.Bytes()
	if err != nil {
		return nil, err
	}
	return field.Decode(b), nil
}

// Close rejects trailing garbage at the top level of a deserialized object.
func (r *wireReader) Close() error {
	if r.remaining() != 0 {
		return xerrors.Errorf("%d trailing bytes: %w", r.remaining(), porcommon.ErrWireFormat)
	}
	return nil
}

// SerializeBase64 renders v in the codec's base64 encoding mode: standard
// alphabet with padding over the binary serialization.
func SerializeBase64(v porcommon.Serializable) (string, error) {
	b, err := v.Serialize()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// DeserializeBase64 reverses SerializeBase64 into v.
func DeserializeBase64(v porcommon.Serializable, s string) error {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return xerrors.Errorf("base64 decode: %w", porcommon.ErrWireFormat)
	}
	return v.Deserialize(b)
}
