package seal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"

	"golang.org/x/xerrors"
)

const (
	KeySize = 32 // 256bit, 32B
	IVSize  = 16 // AES block, 16B
	MacSize = 32 // SHA256 digest
)

// Encrypt runs AES-256-CFB over plain under key and iv.
func Encrypt(key, iv, plain []byte) ([]byte, error) {
	stream, err := newStream(key, iv, true)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(plain))
	stream.XORKeyStream(out, plain)
	return out, nil
}

// Decrypt reverses Encrypt.
func Decrypt(key, iv, enc []byte) ([]byte, error) {
	stream, err := newStream(key, iv, false)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(enc))
	stream.XORKeyStream(out, enc)
	return out, nil
}

func newStream(key, iv []byte, encrypt bool) (cipher.Stream, error) {
	if len(key) != KeySize {
		return nil, xerrors.New("keysize must be 32")
	}
	if len(iv) != IVSize {
		return nil, xerrors.New("iv size must be 16")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if encrypt {
		return cipher.NewCFBEncrypter(block, iv), nil
	}
	return cipher.NewCFBDecrypter(block, iv), nil
}

// Sign computes HMAC-SHA256 over data.
func Sign(key, data []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, xerrors.New("keysize must be 32")
	}
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil), nil
}

// Verify recomputes the HMAC over data and compares it to mac in constant
// time.
func Verify(key, data, mac []byte) bool {
	if len(key) != KeySize || len(mac) != MacSize {
		return false
	}
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return hmac.Equal(h.Sum(nil), mac)
}
