package engine

import (
	"fmt"
	"io"

	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/frodo/frodo640shake"
	"github.com/cloudflare/circl/kem/kyber/kyber1024"
	"github.com/cloudflare/circl/kem/kyber/kyber512"
	"github.com/cloudflare/circl/kem/kyber/kyber768"
	"github.com/cloudflare/circl/kem/mlkem/mlkem1024"
	"github.com/cloudflare/circl/kem/mlkem/mlkem512"
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
)

// circlKEM adapts a CIRCL kem.Scheme to KEMEngine.
//
// Randomness is drawn from the caller's reader and fed to the scheme's
// deterministic entry points, so a fixed reader reproduces keys and
// ciphertexts exactly.
type circlKEM struct {
	name   string
	scheme kem.Scheme
}

// NewCIRCLKEM wraps any CIRCL KEM scheme.
func NewCIRCLKEM(name string, scheme kem.Scheme) KEMEngine {
	return &circlKEM{name: name, scheme: scheme}
}

// MLKEM512 returns the FIPS 203 ML-KEM-512 engine.
func MLKEM512() KEMEngine { return NewCIRCLKEM("ML-KEM-512", mlkem512.Scheme()) }

// MLKEM768 returns the FIPS 203 ML-KEM-768 engine.
func MLKEM768() KEMEngine { return NewCIRCLKEM("ML-KEM-768", mlkem768.Scheme()) }

// MLKEM1024 returns the FIPS 203 ML-KEM-1024 engine.
func MLKEM1024() KEMEngine { return NewCIRCLKEM("ML-KEM-1024", mlkem1024.Scheme()) }

// Kyber512 returns the round 3 Kyber512 engine.
func Kyber512() KEMEngine { return NewCIRCLKEM("Kyber512", kyber512.Scheme()) }

// Kyber768 returns the round 3 Kyber768 engine.
func Kyber768() KEMEngine { return NewCIRCLKEM("Kyber768", kyber768.Scheme()) }

// Kyber1024 returns the round 3 Kyber1024 engine.
func Kyber1024() KEMEngine { return NewCIRCLKEM("Kyber1024", kyber1024.Scheme()) }

// FrodoKEM640SHAKE returns the FrodoKEM-640-SHAKE engine.
func FrodoKEM640SHAKE() KEMEngine { return NewCIRCLKEM("FrodoKEM-640-SHAKE", frodo640shake.Scheme()) }

func (k *circlKEM) Name() string          { return k.name }
func (k *circlKEM) PublicKeySize() int    { return k.scheme.PublicKeySize() }
func (k *circlKEM) PrivateKeySize() int   { return k.scheme.PrivateKeySize() }
func (k *circlKEM) CiphertextSize() int   { return k.scheme.CiphertextSize() }
func (k *circlKEM) SharedSecretSize() int { return k.scheme.SharedKeySize() }

func (k *circlKEM) GenerateKey(rand io.Reader) ([]byte, []byte, error) {
	seed := make([]byte, k.scheme.SeedSize())
	defer Zeroize(seed)
	if _, err := io.ReadFull(rand, seed); err != nil {
		return nil, nil, fmt.Errorf("%s: key generation failed: %w", k.name, err)
	}

	pk, sk := k.scheme.DeriveKeyPair(seed)
	pub, err := pk.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: failed to marshal public key: %w", k.name, err)
	}
	priv, err := sk.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: failed to marshal private key: %w", k.name, err)
	}
	return pub, priv, nil
}

func (k *circlKEM) Encapsulate(rand io.Reader, pub []byte) ([]byte, []byte, error) {
	pk, err := k.scheme.UnmarshalBinaryPublicKey(pub)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w: %v", k.name, ErrInvalidKey, err)
	}

	seed := make([]byte, k.scheme.EncapsulationSeedSize())
	defer Zeroize(seed)
	if _, err := io.ReadFull(rand, seed); err != nil {
		return nil, nil, fmt.Errorf("%s: encapsulation failed: %w", k.name, err)
	}

	ct, ss, err := k.scheme.EncapsulateDeterministically(pk, seed)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: encapsulation failed: %w", k.name, err)
	}
	return ct, ss, nil
}

func (k *circlKEM) Decapsulate(priv, ct []byte) ([]byte, error) {
	if len(ct) != k.scheme.CiphertextSize() {
		return nil, fmt.Errorf("%s: %w: %d bytes, want %d", k.name, ErrInvalidCiphertext, len(ct), k.scheme.CiphertextSize())
	}
	sk, err := k.scheme.UnmarshalBinaryPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", k.name, ErrInvalidKey, err)
	}
	ss, err := k.scheme.Decapsulate(sk, ct)
	if err != nil {
		return nil, fmt.Errorf("%s: decapsulation failed: %w", k.name, err)
	}
	return ss, nil
}

func (k *circlKEM) PublicFromPrivate(priv []byte) ([]byte, error) {
	sk, err := k.scheme.UnmarshalBinaryPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", k.name, ErrInvalidKey, err)
	}
	return sk.Public().MarshalBinary()
}
