package swpriv

import (
	"bytes"
	"io"
	"math/big"
	"testing"

	"lukechampine.com/frand"
)

// seekOnly hides bytes.Reader's ReaderAt so the serial path gets exercised.
type seekOnly struct {
	io.ReadSeeker
}

func TestChunkCount(t *testing.T) {
	cases := []struct {
		size uint32
		want uint32
	}{
		{0, 0},
		{1, 1},
		{8, 1},
		{9, 2},
		{16, 2},
		{17, 3},
	}
	for _, c := range cases {
		cf, err := NewChunkedBytes(make([]byte, c.size), 4, 2)
		if err != nil {
			t.Fatal(err)
		}
		if got := cf.ChunkCount(); got != c.want {
			t.Fatalf("size %d: chunk count %d, want %d", c.size, got, c.want)
		}
	}
}

func TestSectorValues(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	cf, err := NewChunkedBytes(data, 2, 2)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		i, j uint32
		want int64
	}{
		{0, 0, 0x0102},
		{0, 1, 0x0304},
		{1, 0, 0x0500}, // zero-padded past EOF
		{1, 1, 0},      // fully past EOF
		{9, 1, 0},
	}
	for _, c := range cases {
		got, err := cf.Sector(c.i, c.j)
		if err != nil {
			t.Fatal(err)
		}
		if got.Cmp(big.NewInt(c.want)) != 0 {
			t.Fatalf("sector (%d,%d) = %v, want %#x", c.i, c.j, got, c.want)
		}
	}

	if _, err := cf.Sector(0, 2); err == nil {
		t.Fatal("sector index past geometry accepted")
	}
}

func TestSectorSeekPath(t *testing.T) {
	data := frand.Bytes(64)
	withRA, err := NewChunkedBytes(data, 4, 3)
	if err != nil {
		t.Fatal(err)
	}
	seeker, err := NewChunkedFile(seekOnly{bytes.NewReader(data)}, int64(len(data)), 4, 3)
	if err != nil {
		t.Fatal(err)
	}
	if withRA.concurrent() == seeker.concurrent() {
		t.Fatal("seekOnly still advertises concurrent reads")
	}

	for i := uint32(0); i < withRA.ChunkCount()+1; i++ {
		for j := uint32(0); j < 4; j++ {
			a, err := withRA.Sector(i, j)
			if err != nil {
				t.Fatal(err)
			}
			b, err := seeker.Sector(i, j)
			if err != nil {
				t.Fatal(err)
			}
			if a.Cmp(b) != 0 {
				t.Fatalf("paths disagree at (%d,%d)", i, j)
			}
		}
	}
}

func TestBadGeometry(t *testing.T) {
	if _, err := NewChunkedBytes(nil, 0, 2); err == nil {
		t.Fatal("zero sectors accepted")
	}
	if _, err := NewChunkedBytes(nil, 2, 0); err == nil {
		t.Fatal("zero sector size accepted")
	}
}
