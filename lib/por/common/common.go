package porcommon

import "golang.org/x/xerrors"

var (
	ErrWireFormat        = xerrors.New("malformed wire bytes")
	ErrStateAuth         = xerrors.New("state authentication failed")
	ErrStateNotSealed    = xerrors.New("state is not sealed")
	ErrKeyIncompatible   = xerrors.New("incompatible key size")
	ErrShapeMismatch     = xerrors.New("shape mismatch")
	ErrCapabilityMissing = xerrors.New("verifier is public")
	ErrRandomness        = xerrors.New("randomness source failed")
	ErrInvalidSettings   = xerrors.New("setting is invalid")
)

const (
	// KeySize is the byte length of every symmetric key in the scheme:
	// the state envelope keys, the PRF keys and the challenge key.
	KeySize = 32
)
