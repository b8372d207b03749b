package engine

import (
	"bytes"
	"crypto"
	"crypto/ecdh"
	"fmt"
	"io"

	"github.com/cloudflare/circl/dh/x448"
)

// montEngine implements key agreement over a Montgomery curve. Keys are raw
// little-endian scalars and u-coordinates of a fixed size.
type montEngine struct {
	family KeyFamily
	size   int
	derive func(priv []byte) ([]byte, error)
	agree  func(priv, pub []byte) ([]byte, error)
}

// X25519 returns the engine for Curve25519 key agreement.
func X25519() ClassicalEngine {
	curve := ecdh.X25519()
	return &montEngine{
		family: FamilyX25519,
		size:   32,
		derive: func(priv []byte) ([]byte, error) {
			sk, err := curve.NewPrivateKey(priv)
			if err != nil {
				return nil, err
			}
			return sk.PublicKey().Bytes(), nil
		},
		agree: func(priv, pub []byte) ([]byte, error) {
			sk, err := curve.NewPrivateKey(priv)
			if err != nil {
				return nil, err
			}
			pk, err := curve.NewPublicKey(pub)
			if err != nil {
				return nil, err
			}
			return sk.ECDH(pk)
		},
	}
}

// X448 returns the engine for Curve448 key agreement.
func X448() ClassicalEngine {
	return &montEngine{
		family: FamilyX448,
		size:   x448.Size,
		derive: func(priv []byte) ([]byte, error) {
			var sk, pk x448.Key
			copy(sk[:], priv)
			defer Zeroize(sk[:])
			x448.KeyGen(&pk, &sk)
			return bytes.Clone(pk[:]), nil
		},
		agree: func(priv, pub []byte) ([]byte, error) {
			var sk, pk, ss x448.Key
			copy(sk[:], priv)
			copy(pk[:], pub)
			defer Zeroize(sk[:])
			if !x448.Shared(&ss, &sk, &pk) {
				return nil, fmt.Errorf("low order point")
			}
			return bytes.Clone(ss[:]), nil
		},
	}
}

type montKey struct {
	family KeyFamily
	priv   []byte
	pub    []byte
}

func (k *montKey) Family() KeyFamily { return k.family }
func (k *montKey) HasPrivate() bool  { return k.priv != nil }

func (k *montKey) PrivateBytes() ([]byte, error) {
	if k.priv == nil {
		return nil, fmt.Errorf("%s: no private key", k.family)
	}
	return bytes.Clone(k.priv), nil
}

func (k *montKey) PublicBytes() ([]byte, error) {
	return bytes.Clone(k.pub), nil
}

func (k *montKey) Public() ClassicalKey {
	return &montKey{family: k.family, pub: k.pub}
}

func (k *montKey) Destroy() {
	Zeroize(k.priv)
	k.priv = nil
}

func (e *montEngine) Family() KeyFamily   { return e.family }
func (e *montEngine) RawKeySupport() bool { return true }

func (e *montEngine) GenerateKey(rand io.Reader) (ClassicalKey, error) {
	priv := make([]byte, e.size)
	defer Zeroize(priv)
	if _, err := io.ReadFull(rand, priv); err != nil {
		return nil, fmt.Errorf("%s: key generation failed: %w", e.family, err)
	}
	return e.NewPrivateKey(priv)
}

func (e *montEngine) NewPrivateKey(b []byte) (ClassicalKey, error) {
	if len(b) != e.size {
		return nil, fmt.Errorf("%s: %w: private key is %d bytes, want %d", e.family, ErrInvalidKey, len(b), e.size)
	}
	pub, err := e.derive(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", e.family, ErrInvalidKey, err)
	}
	return &montKey{family: e.family, priv: bytes.Clone(b), pub: pub}, nil
}

func (e *montEngine) NewPublicKey(b []byte) (ClassicalKey, error) {
	if len(b) != e.size {
		return nil, fmt.Errorf("%s: %w: public key is %d bytes, want %d", e.family, ErrInvalidKey, len(b), e.size)
	}
	return &montKey{family: e.family, pub: bytes.Clone(b)}, nil
}

func (e *montEngine) key(k ClassicalKey) (*montKey, error) {
	mk, ok := k.(*montKey)
	if !ok || mk.family != e.family {
		return nil, fmt.Errorf("%s: %w: unexpected key %T", e.family, ErrInvalidKey, k)
	}
	return mk, nil
}

func (e *montEngine) Encapsulate(rand io.Reader, pub ClassicalKey) ([]byte, []byte, error) {
	k, err := e.key(pub)
	if err != nil {
		return nil, nil, err
	}
	eph, err := e.GenerateKey(rand)
	if err != nil {
		return nil, nil, err
	}
	ek := eph.(*montKey)
	defer Zeroize(ek.priv)

	ss, err := e.agree(ek.priv, k.pub)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: key agreement failed: %w", e.family, err)
	}
	return ek.pub, ss, nil
}

func (e *montEngine) Decapsulate(priv ClassicalKey, ct []byte) ([]byte, error) {
	k, err := e.key(priv)
	if err != nil {
		return nil, err
	}
	if k.priv == nil {
		return nil, fmt.Errorf("%s: no private key", e.family)
	}
	if len(ct) != e.size {
		return nil, fmt.Errorf("%s: %w: %d bytes", e.family, ErrInvalidCiphertext, len(ct))
	}
	ss, err := e.agree(k.priv, ct)
	if err != nil {
		return nil, fmt.Errorf("%s: key agreement failed: %w", e.family, err)
	}
	return ss, nil
}

func (e *montEngine) Sign(io.Reader, ClassicalKey, []byte, crypto.Hash) ([]byte, error) {
	return nil, fmt.Errorf("%s: sign: %w", e.family, ErrNotSupported)
}

func (e *montEngine) Verify(ClassicalKey, []byte, []byte, crypto.Hash) bool {
	return false
}
