package swpriv

import (
	"bytes"
	"testing"

	porcommon "github.com/F483/heartbeat/lib/por/common"
	"golang.org/x/xerrors"
	"lukechampine.com/frand"
)

func sealedState(t *testing.T, n uint32, kEnc, kMac []byte) *State {
	t.Helper()
	st := &State{
		n:        n,
		fKey:     frand.Bytes(porcommon.KeySize),
		alphaKey: frand.Bytes(porcommon.KeySize),
	}
	if err := st.EncryptAndSign(kEnc, kMac); err != nil {
		t.Fatal(err)
	}
	return st
}

func TestStateSealRoundtrip(t *testing.T) {
	kEnc := frand.Bytes(porcommon.KeySize)
	kMac := frand.Bytes(porcommon.KeySize)
	st := sealedState(t, 17, kEnc, kMac)

	buf, err := st.Serialize()
	if err != nil {
		t.Fatal(err)
	}

	got := new(State)
	if err := got.Deserialize(buf); err != nil {
		t.Fatal(err)
	}
	if !got.Sealed() {
		t.Fatal("deserialized state is not sealed")
	}

	n, err := got.PublicN()
	if err != nil {
		t.Fatal(err)
	}
	if n != 17 {
		t.Fatalf("public n = %d", n)
	}

	if err := got.CheckAndDecrypt(kEnc, kMac); err != nil {
		t.Fatal(err)
	}
	if got.Sealed() {
		t.Fatal("decrypted state still sealed")
	}
	if got.N() != 17 {
		t.Fatalf("n = %d", got.N())
	}
	if !bytes.Equal(got.fKey, st.fKey) || !bytes.Equal(got.alphaKey, st.alphaKey) {
		t.Fatal("recovered keys differ")
	}
}

func TestStateSerializeUnsealed(t *testing.T) {
	st := &State{n: 1, fKey: frand.Bytes(32), alphaKey: frand.Bytes(32)}
	if _, err := st.Serialize(); !xerrors.Is(err, porcommon.ErrStateNotSealed) {
		t.Fatalf("want ErrStateNotSealed, got %v", err)
	}
}

func TestStateTamperAnyByte(t *testing.T) {
	kEnc := frand.Bytes(porcommon.KeySize)
	kMac := frand.Bytes(porcommon.KeySize)
	st := sealedState(t, 5, kEnc, kMac)

	buf, err := st.Serialize()
	if err != nil {
		t.Fatal(err)
	}

	for i := range buf {
		flipped := append([]byte(nil), buf...)
		flipped[i] ^= 0x08

		got := new(State)
		if err := got.Deserialize(flipped); err != nil {
			// outer framing destroyed; also a detection
			continue
		}
		err = got.CheckAndDecrypt(kEnc, kMac)
		if !xerrors.Is(err, porcommon.ErrStateAuth) {
			t.Fatalf("byte %d: flip not detected, got %v", i, err)
		}
	}
}

func TestStateWrongKeys(t *testing.T) {
	kEnc := frand.Bytes(porcommon.KeySize)
	kMac := frand.Bytes(porcommon.KeySize)
	st := sealedState(t, 5, kEnc, kMac)

	err := st.clone().CheckAndDecrypt(kEnc, frand.Bytes(porcommon.KeySize))
	if !xerrors.Is(err, porcommon.ErrStateAuth) {
		t.Fatalf("wrong mac key: got %v", err)
	}

	err = st.clone().CheckAndDecrypt(frand.Bytes(16), kMac)
	if !xerrors.Is(err, porcommon.ErrKeyIncompatible) {
		t.Fatalf("short key: got %v", err)
	}
}

func TestStateWipe(t *testing.T) {
	st := &State{fKey: frand.Bytes(32), alphaKey: frand.Bytes(32)}
	st.Wipe()
	for _, b := range append(append([]byte(nil), st.fKey...), st.alphaKey...) {
		if b != 0 {
			t.Fatal("key material survived wipe")
		}
	}
}
