package field

import (
	"crypto/rand"
	"math/big"

	"golang.org/x/xerrors"
)

// helpers for modular arithmetic over a prime field, with the minimal
// big-endian encoding shared by every wire type

var zero = new(big.Int)

// Encode returns the minimal big-endian encoding of x; zero encodes to an
// empty slice.
func Encode(x *big.Int) []byte {
	return x.Bytes()
}

// Decode interprets buf as a big-endian unsigned integer.
func Decode(buf []byte) *big.Int {
	return new(big.Int).SetBytes(buf)
}

// ByteLen returns the minimal encoded length of x.
func ByteLen(x *big.Int) int {
	return (x.BitLen() + 7) / 8
}

func Equal(x, y *big.Int) bool {
	return x.Cmp(y) == 0
}

// InRange reports whether 0 <= x < limit.
func InRange(x, limit *big.Int) bool {
	return x.Sign() >= 0 && x.Cmp(limit) < 0
}

// AddMulMod sets acc = (acc + a*b) mod p and returns acc.
func AddMulMod(acc, a, b, p *big.Int) *big.Int {
	var t big.Int
	t.Mul(a, b)
	acc.Add(acc, &t)
	return acc.Mod(acc, p)
}

// RandInt samples a uniform integer in [0, limit) from crypto/rand.
func RandInt(limit *big.Int) (*big.Int, error) {
	if limit.Cmp(zero) <= 0 {
		return nil, xerrors.Errorf("random limit must be positive")
	}
	x, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return nil, xerrors.Errorf("sample integer: %w", err)
	}
	return x, nil
}

// RandPrime samples a random prime of the given bit length.
func RandPrime(bits int) (*big.Int, error) {
	if bits < 2 {
		return nil, xerrors.Errorf("prime bit length %d is too small", bits)
	}
	p, err := rand.Prime(rand.Reader, bits)
	if err != nil {
		return nil, xerrors.Errorf("sample prime: %w", err)
	}
	return p, nil
}

// RandBytes fills a fresh buffer of n bytes from crypto/rand.
func RandBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, xerrors.Errorf("sample %d bytes: %w", n, err)
	}
	return buf, nil
}

// Wipe zeroes key material in place.
func Wipe(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
