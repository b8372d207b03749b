package engine

import (
	"bytes"
	"crypto"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"fmt"
	"io"
)

// ecEngine implements ECDSA and ECDH over a NIST prime curve.
//
// Private keys are SEC 1 ECPrivateKey DER (with curve parameters and public
// key), public keys are uncompressed points.
type ecEngine struct {
	family KeyFamily
	curve  elliptic.Curve
	dh     ecdh.Curve
}

// P256 returns the engine for NIST P-256.
func P256() ClassicalEngine {
	return &ecEngine{family: FamilyP256, curve: elliptic.P256(), dh: ecdh.P256()}
}

// P384 returns the engine for NIST P-384.
func P384() ClassicalEngine {
	return &ecEngine{family: FamilyP384, curve: elliptic.P384(), dh: ecdh.P384()}
}

// P521 returns the engine for NIST P-521.
func P521() ClassicalEngine {
	return &ecEngine{family: FamilyP521, curve: elliptic.P521(), dh: ecdh.P521()}
}

type ecKey struct {
	family KeyFamily
	priv   *ecdsa.PrivateKey
	pub    *ecdsa.PublicKey
}

func (k *ecKey) Family() KeyFamily { return k.family }
func (k *ecKey) HasPrivate() bool  { return k.priv != nil }

// Destroy drops the private key. The standard library keeps its own
// scalar copies, which are released to the collector.
func (k *ecKey) Destroy() { k.priv = nil }

func (k *ecKey) PrivateBytes() ([]byte, error) {
	if k.priv == nil {
		return nil, fmt.Errorf("%s: no private key", k.family)
	}
	return x509.MarshalECPrivateKey(k.priv)
}

func (k *ecKey) PublicBytes() ([]byte, error) {
	//nolint:staticcheck // elliptic.Marshal is deprecated but produces the uncompressed point directly
	return elliptic.Marshal(k.pub.Curve, k.pub.X, k.pub.Y), nil
}

func (k *ecKey) Public() ClassicalKey {
	return &ecKey{family: k.family, pub: k.pub}
}

func (e *ecEngine) Family() KeyFamily   { return e.family }
func (e *ecEngine) RawKeySupport() bool { return false }

func (e *ecEngine) GenerateKey(rand io.Reader) (ClassicalKey, error) {
	priv, err := ecdsa.GenerateKey(e.curve, rand)
	if err != nil {
		return nil, fmt.Errorf("%s: key generation failed: %w", e.family, err)
	}
	return &ecKey{family: e.family, priv: priv, pub: &priv.PublicKey}, nil
}

func (e *ecEngine) NewPrivateKey(der []byte) (ClassicalKey, error) {
	priv, err := x509.ParseECPrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", e.family, ErrInvalidKey, err)
	}
	if priv.Curve.Params().Name != e.curve.Params().Name {
		return nil, fmt.Errorf("%s: %w: curve %s", e.family, ErrInvalidKey, priv.Curve.Params().Name)
	}
	// ParseECPrivateKey ignores trailing bytes; only the encoding
	// PrivateBytes produces is accepted.
	canonical, err := x509.MarshalECPrivateKey(priv)
	if err != nil || !bytes.Equal(canonical, der) {
		return nil, fmt.Errorf("%s: %w: non-canonical SEC 1 encoding", e.family, ErrInvalidKey)
	}
	return &ecKey{family: e.family, priv: priv, pub: &priv.PublicKey}, nil
}

func (e *ecEngine) NewPublicKey(b []byte) (ClassicalKey, error) {
	//nolint:staticcheck // elliptic.Unmarshal is deprecated for ECDH but we need ECDSA
	x, y := elliptic.Unmarshal(e.curve, b)
	if x == nil {
		return nil, fmt.Errorf("%s: %w: not an uncompressed point", e.family, ErrInvalidKey)
	}
	return &ecKey{family: e.family, pub: &ecdsa.PublicKey{Curve: e.curve, X: x, Y: y}}, nil
}

func (e *ecEngine) key(k ClassicalKey) (*ecKey, error) {
	ek, ok := k.(*ecKey)
	if !ok || ek.family != e.family {
		return nil, fmt.Errorf("%s: %w: unexpected key %T", e.family, ErrInvalidKey, k)
	}
	return ek, nil
}

func (e *ecEngine) Encapsulate(rand io.Reader, pub ClassicalKey) ([]byte, []byte, error) {
	k, err := e.key(pub)
	if err != nil {
		return nil, nil, err
	}
	peer, err := k.pub.ECDH()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", e.family, err)
	}
	eph, err := e.dh.GenerateKey(rand)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: ephemeral key generation failed: %w", e.family, err)
	}
	ss, err := eph.ECDH(peer)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: key agreement failed: %w", e.family, err)
	}
	return eph.PublicKey().Bytes(), ss, nil
}

func (e *ecEngine) Decapsulate(priv ClassicalKey, ct []byte) ([]byte, error) {
	k, err := e.key(priv)
	if err != nil {
		return nil, err
	}
	if k.priv == nil {
		return nil, fmt.Errorf("%s: no private key", e.family)
	}
	peer, err := e.dh.NewPublicKey(ct)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", e.family, ErrInvalidCiphertext, err)
	}
	sk, err := k.priv.ECDH()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.family, err)
	}
	ss, err := sk.ECDH(peer)
	if err != nil {
		return nil, fmt.Errorf("%s: key agreement failed: %w", e.family, err)
	}
	return ss, nil
}

func (e *ecEngine) Sign(rand io.Reader, priv ClassicalKey, digest []byte, _ crypto.Hash) ([]byte, error) {
	k, err := e.key(priv)
	if err != nil {
		return nil, err
	}
	if k.priv == nil {
		return nil, fmt.Errorf("%s: no private key", e.family)
	}
	return ecdsa.SignASN1(rand, k.priv, digest)
}

func (e *ecEngine) Verify(pub ClassicalKey, digest, sig []byte, _ crypto.Hash) bool {
	k, err := e.key(pub)
	if err != nil {
		return false
	}
	return ecdsa.VerifyASN1(k.pub, digest, sig)
}
