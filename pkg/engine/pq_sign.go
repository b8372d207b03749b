package engine

import (
	"encoding"
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign"
	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/cloudflare/circl/sign/mldsa/mldsa87"
	"github.com/cloudflare/circl/sign/slhdsa"
)

// maxContextLen is the FIPS 204 / FIPS 205 limit on context strings.
const maxContextLen = 255

// circlSign adapts a CIRCL sign.Scheme to SignatureEngine.
type circlSign struct {
	name   string
	scheme sign.Scheme
}

// NewCIRCLSignature wraps any CIRCL signature scheme.
func NewCIRCLSignature(name string, scheme sign.Scheme) SignatureEngine {
	return &circlSign{name: name, scheme: scheme}
}

// MLDSA44 returns the FIPS 204 ML-DSA-44 engine.
func MLDSA44() SignatureEngine { return NewCIRCLSignature("ML-DSA-44", mldsa44.Scheme()) }

// MLDSA65 returns the FIPS 204 ML-DSA-65 engine.
func MLDSA65() SignatureEngine { return NewCIRCLSignature("ML-DSA-65", mldsa65.Scheme()) }

// MLDSA87 returns the FIPS 204 ML-DSA-87 engine.
func MLDSA87() SignatureEngine { return NewCIRCLSignature("ML-DSA-87", mldsa87.Scheme()) }

func (s *circlSign) Name() string          { return s.name }
func (s *circlSign) PublicKeySize() int    { return s.scheme.PublicKeySize() }
func (s *circlSign) PrivateKeySize() int   { return s.scheme.PrivateKeySize() }
func (s *circlSign) SignatureSize() int    { return s.scheme.SignatureSize() }
func (s *circlSign) SupportsContext() bool { return s.scheme.SupportsContext() }

func (s *circlSign) opts(ctx []byte) (*sign.SignatureOpts, error) {
	if len(ctx) == 0 {
		return nil, nil
	}
	if !s.scheme.SupportsContext() {
		return nil, fmt.Errorf("%s: %w", s.name, ErrContextNotSupported)
	}
	if len(ctx) > maxContextLen {
		return nil, fmt.Errorf("%s: %w: %d bytes", s.name, ErrContextTooLong, len(ctx))
	}
	return &sign.SignatureOpts{Context: string(ctx)}, nil
}

func (s *circlSign) GenerateKey(rand io.Reader) ([]byte, []byte, error) {
	seed := make([]byte, s.scheme.SeedSize())
	defer Zeroize(seed)
	if _, err := io.ReadFull(rand, seed); err != nil {
		return nil, nil, fmt.Errorf("%s: key generation failed: %w", s.name, err)
	}

	pk, sk := s.scheme.DeriveKey(seed)
	pub, err := pk.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: failed to marshal public key: %w", s.name, err)
	}
	priv, err := sk.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: failed to marshal private key: %w", s.name, err)
	}
	return pub, priv, nil
}

func (s *circlSign) Sign(_ io.Reader, priv, msg, ctx []byte) ([]byte, error) {
	opts, err := s.opts(ctx)
	if err != nil {
		return nil, err
	}
	sk, err := s.scheme.UnmarshalBinaryPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", s.name, ErrInvalidKey, err)
	}
	return s.scheme.Sign(sk, msg, opts), nil
}

func (s *circlSign) Verify(pub, msg, sig, ctx []byte) (bool, error) {
	opts, err := s.opts(ctx)
	if err != nil {
		return false, err
	}
	pk, err := s.scheme.UnmarshalBinaryPublicKey(pub)
	if err != nil {
		return false, fmt.Errorf("%s: %w: %v", s.name, ErrInvalidKey, err)
	}
	return s.scheme.Verify(pk, msg, sig, opts), nil
}

func (s *circlSign) PublicFromPrivate(priv []byte) ([]byte, error) {
	sk, err := s.scheme.UnmarshalBinaryPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", s.name, ErrInvalidKey, err)
	}
	pk, ok := sk.Public().(encoding.BinaryMarshaler)
	if !ok {
		return nil, fmt.Errorf("%s: public key %T is not marshalable", s.name, sk.Public())
	}
	return pk.MarshalBinary()
}

// slhEngine implements FIPS 205 SLH-DSA with the pure (non-prehash) interface.
type slhEngine struct {
	name    string
	id      slhdsa.ID
	n       int
	sigSize int
}

// SLHDSASHA2128s returns the SLH-DSA-SHA2-128s engine.
func SLHDSASHA2128s() SignatureEngine {
	return &slhEngine{name: "SLH-DSA-SHA2-128s", id: slhdsa.SHA2_128s, n: 16, sigSize: 7856}
}

// SLHDSASHA2128f returns the SLH-DSA-SHA2-128f engine.
func SLHDSASHA2128f() SignatureEngine {
	return &slhEngine{name: "SLH-DSA-SHA2-128f", id: slhdsa.SHA2_128f, n: 16, sigSize: 17088}
}

// SLHDSASHA2192f returns the SLH-DSA-SHA2-192f engine.
func SLHDSASHA2192f() SignatureEngine {
	return &slhEngine{name: "SLH-DSA-SHA2-192f", id: slhdsa.SHA2_192f, n: 24, sigSize: 35664}
}

// SLHDSASHA2256f returns the SLH-DSA-SHA2-256f engine.
func SLHDSASHA2256f() SignatureEngine {
	return &slhEngine{name: "SLH-DSA-SHA2-256f", id: slhdsa.SHA2_256f, n: 32, sigSize: 49856}
}

func (s *slhEngine) Name() string          { return s.name }
func (s *slhEngine) PublicKeySize() int    { return 2 * s.n }
func (s *slhEngine) PrivateKeySize() int   { return 4 * s.n }
func (s *slhEngine) SignatureSize() int    { return s.sigSize }
func (s *slhEngine) SupportsContext() bool { return false }

func (s *slhEngine) GenerateKey(rand io.Reader) ([]byte, []byte, error) {
	pk, sk, err := slhdsa.GenerateKey(rand, s.id)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: key generation failed: %w", s.name, err)
	}
	pub, err := pk.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: failed to marshal public key: %w", s.name, err)
	}
	priv, err := sk.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: failed to marshal private key: %w", s.name, err)
	}
	return pub, priv, nil
}

func (s *slhEngine) privateKey(priv []byte) (*slhdsa.PrivateKey, error) {
	if len(priv) != s.PrivateKeySize() {
		return nil, fmt.Errorf("%s: %w: private key is %d bytes", s.name, ErrInvalidKey, len(priv))
	}
	sk := &slhdsa.PrivateKey{ID: s.id}
	if err := sk.UnmarshalBinary(priv); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", s.name, ErrInvalidKey, err)
	}
	return sk, nil
}

func (s *slhEngine) Sign(rand io.Reader, priv, msg, ctx []byte) ([]byte, error) {
	if len(ctx) != 0 {
		return nil, fmt.Errorf("%s: %w", s.name, ErrContextNotSupported)
	}
	sk, err := s.privateKey(priv)
	if err != nil {
		return nil, err
	}
	return sk.Sign(rand, msg, nil)
}

func (s *slhEngine) Verify(pub, msg, sig, ctx []byte) (bool, error) {
	if len(ctx) != 0 {
		return false, fmt.Errorf("%s: %w", s.name, ErrContextNotSupported)
	}
	if len(pub) != s.PublicKeySize() {
		return false, fmt.Errorf("%s: %w: public key is %d bytes", s.name, ErrInvalidKey, len(pub))
	}
	pk := &slhdsa.PublicKey{ID: s.id}
	if err := pk.UnmarshalBinary(pub); err != nil {
		return false, fmt.Errorf("%s: %w: %v", s.name, ErrInvalidKey, err)
	}
	return slhdsa.Verify(pk, slhdsa.NewMessage(msg), sig, nil), nil
}

func (s *slhEngine) PublicFromPrivate(priv []byte) ([]byte, error) {
	sk, err := s.privateKey(priv)
	if err != nil {
		return nil, err
	}
	pk := sk.PublicKey()
	return pk.MarshalBinary()
}
