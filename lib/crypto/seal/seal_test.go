package seal

import (
	"bytes"
	"testing"

	"lukechampine.com/frand"
)

func TestEncryptDecrypt(t *testing.T) {
	key := frand.Bytes(KeySize)
	iv := frand.Bytes(IVSize)
	plain := frand.Bytes(100)

	enc, err := Encrypt(key, iv, plain)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(enc, plain) {
		t.Fatal("ciphertext equals plaintext")
	}

	dec, err := Decrypt(key, iv, enc)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dec, plain) {
		t.Fatal("roundtrip mismatch")
	}
}

func TestEncryptKeySize(t *testing.T) {
	_, err := Encrypt(make([]byte, 16), make([]byte, IVSize), []byte("x"))
	if err == nil {
		t.Fatal("short key accepted")
	}
	_, err = Encrypt(make([]byte, KeySize), make([]byte, 8), []byte("x"))
	if err == nil {
		t.Fatal("short iv accepted")
	}
}

func TestSignVerify(t *testing.T) {
	key := frand.Bytes(KeySize)
	data := frand.Bytes(200)

	mac, err := Sign(key, data)
	if err != nil {
		t.Fatal(err)
	}
	if len(mac) != MacSize {
		t.Fatalf("mac is %d bytes", len(mac))
	}
	if !Verify(key, data, mac) {
		t.Fatal("valid mac rejected")
	}

	for i := range data {
		data[i] ^= 0x04
		if Verify(key, data, mac) {
			t.Fatalf("flipped byte %d accepted", i)
		}
		data[i] ^= 0x04
	}

	other := frand.Bytes(KeySize)
	if Verify(other, data, mac) {
		t.Fatal("wrong key accepted")
	}
}
