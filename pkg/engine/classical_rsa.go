package engine

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"io"
)

// rsaEngine implements RSA PKCS#1 v1.5 signatures. Keys are PKCS#1 DER.
type rsaEngine struct {
	family KeyFamily
	bits   int
}

// RSA3072 returns the engine for 3072-bit RSA.
func RSA3072() ClassicalEngine {
	return &rsaEngine{family: FamilyRSA3072, bits: 3072}
}

type rsaKey struct {
	family KeyFamily
	priv   *rsa.PrivateKey
	pub    *rsa.PublicKey
}

func (k *rsaKey) Family() KeyFamily { return k.family }
func (k *rsaKey) HasPrivate() bool  { return k.priv != nil }

// Destroy drops the private key. The standard library keeps its own
// scalar copies, which are released to the collector.
func (k *rsaKey) Destroy() { k.priv = nil }

func (k *rsaKey) PrivateBytes() ([]byte, error) {
	if k.priv == nil {
		return nil, fmt.Errorf("%s: no private key", k.family)
	}
	return x509.MarshalPKCS1PrivateKey(k.priv), nil
}

func (k *rsaKey) PublicBytes() ([]byte, error) {
	return x509.MarshalPKCS1PublicKey(k.pub), nil
}

func (k *rsaKey) Public() ClassicalKey {
	return &rsaKey{family: k.family, pub: k.pub}
}

func (e *rsaEngine) Family() KeyFamily   { return e.family }
func (e *rsaEngine) RawKeySupport() bool { return false }

func (e *rsaEngine) GenerateKey(rand io.Reader) (ClassicalKey, error) {
	priv, err := rsa.GenerateKey(rand, e.bits)
	if err != nil {
		return nil, fmt.Errorf("%s: key generation failed: %w", e.family, err)
	}
	return &rsaKey{family: e.family, priv: priv, pub: &priv.PublicKey}, nil
}

func (e *rsaEngine) NewPrivateKey(der []byte) (ClassicalKey, error) {
	priv, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", e.family, ErrInvalidKey, err)
	}
	if priv.N.BitLen() != e.bits {
		return nil, fmt.Errorf("%s: %w: modulus is %d bits", e.family, ErrInvalidKey, priv.N.BitLen())
	}
	return &rsaKey{family: e.family, priv: priv, pub: &priv.PublicKey}, nil
}

func (e *rsaEngine) NewPublicKey(der []byte) (ClassicalKey, error) {
	pub, err := x509.ParsePKCS1PublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", e.family, ErrInvalidKey, err)
	}
	if pub.N.BitLen() != e.bits {
		return nil, fmt.Errorf("%s: %w: modulus is %d bits", e.family, ErrInvalidKey, pub.N.BitLen())
	}
	return &rsaKey{family: e.family, pub: pub}, nil
}

func (e *rsaEngine) key(k ClassicalKey) (*rsaKey, error) {
	rk, ok := k.(*rsaKey)
	if !ok || rk.family != e.family {
		return nil, fmt.Errorf("%s: %w: unexpected key %T", e.family, ErrInvalidKey, k)
	}
	return rk, nil
}

func (e *rsaEngine) Encapsulate(io.Reader, ClassicalKey) ([]byte, []byte, error) {
	return nil, nil, fmt.Errorf("%s: encapsulate: %w", e.family, ErrNotSupported)
}

func (e *rsaEngine) Decapsulate(ClassicalKey, []byte) ([]byte, error) {
	return nil, fmt.Errorf("%s: decapsulate: %w", e.family, ErrNotSupported)
}

func (e *rsaEngine) Sign(rand io.Reader, priv ClassicalKey, digest []byte, hash crypto.Hash) ([]byte, error) {
	k, err := e.key(priv)
	if err != nil {
		return nil, err
	}
	if k.priv == nil {
		return nil, fmt.Errorf("%s: no private key", e.family)
	}
	return rsa.SignPKCS1v15(rand, k.priv, hash, digest)
}

func (e *rsaEngine) Verify(pub ClassicalKey, digest, sig []byte, hash crypto.Hash) bool {
	k, err := e.key(pub)
	if err != nil {
		return false
	}
	return rsa.VerifyPKCS1v15(k.pub, hash, digest, sig) == nil
}
