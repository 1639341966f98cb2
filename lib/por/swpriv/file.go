package swpriv

import (
	"bytes"
	"io"
	"math/big"

	"github.com/F483/heartbeat/lib/crypto/field"
	porcommon "github.com/F483/heartbeat/lib/por/common"
	"golang.org/x/xerrors"
)

// ChunkedFile reads a seekable byte source as n chunks of sectors sectors,
// sectorSize bytes each.  It is read-only; when the source also implements
// io.ReaderAt, disjoint sectors may be read concurrently.
type ChunkedFile struct {
	r          io.ReadSeeker
	ra         io.ReaderAt
	size       int64
	sectors    uint32
	sectorSize uint32
}

func NewChunkedFile(r io.ReadSeeker, size int64, sectors, sectorSize uint32) (*ChunkedFile, error) {
	if sectors == 0 || sectorSize == 0 {
		return nil, xerrors.Errorf("chunk geometry %dx%d: %w", sectors, sectorSize, porcommon.ErrInvalidSettings)
	}
	if size < 0 {
		return nil, xerrors.Errorf("negative size %d: %w", size, porcommon.ErrInvalidSettings)
	}
	ra, _ := r.(io.ReaderAt)
	return &ChunkedFile{r: r, ra: ra, size: size, sectors: sectors, sectorSize: sectorSize}, nil
}

// NewChunkedBytes wraps an in-memory buffer.
func NewChunkedBytes(data []byte, sectors, sectorSize uint32) (*ChunkedFile, error) {
	return NewChunkedFile(bytes.NewReader(data), int64(len(data)), sectors, sectorSize)
}

func (cf *ChunkedFile) ChunkCount() uint32 {
	chunk := int64(cf.sectors) * int64(cf.sectorSize)
	return uint32((cf.size + chunk - 1) / chunk)
}

// concurrent reports whether disjoint Sector calls may run in parallel.
func (cf *ChunkedFile) concurrent() bool {
	return cf.ra != nil
}

// Sector reads the bytes [(i*sectors+j)*sectorSize, +sectorSize) of the
// source, zero-padded past EOF, as a big-endian unsigned integer.
func (cf *ChunkedFile) Sector(i, j uint32) (*big.Int, error) {
	if j >= cf.sectors {
		return nil, xerrors.Errorf("sector %d of %d: %w", j, cf.sectors, porcommon.ErrShapeMismatch)
	}
	buf := make([]byte, cf.sectorSize)
	off := (int64(i)*int64(cf.sectors) + int64(j)) * int64(cf.sectorSize)
	if off < cf.size {
		if err := cf.readAt(buf, off); err != nil {
			return nil, err
		}
	}
	return field.Decode(buf), nil
}

func (cf *ChunkedFile) readAt(buf []byte, off int64) error {
	if cf.ra != nil {
		n, err := cf.ra.ReadAt(buf, off)
		if err != nil && err != io.EOF {
			return xerrors.Errorf("read %d bytes at %d: %w", len(buf), off, err)
		}
		zeroTail(buf, n)
		return nil
	}

	if _, err := cf.r.Seek(off, io.SeekStart); err != nil {
		return xerrors.Errorf("seek to %d: %w", off, err)
	}
	n, err := io.ReadFull(cf.r, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return xerrors.Errorf("read %d bytes at %d: %w", len(buf), off, err)
	}
	zeroTail(buf, n)
	return nil
}

func zeroTail(buf []byte, n int) {
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
}
