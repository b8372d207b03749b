// Package engine defines the narrow byte-oriented interfaces through which
// hybrid keys consume classical and post-quantum primitives, together with
// the concrete engines backed by the Go standard library and CIRCL.
//
// Engines never interpret composite key layouts. They only see the bytes of
// their own component: fixed-length buffers for post-quantum schemes, raw or
// encoded buffers for classical schemes.
package engine

import (
	"crypto"
	"errors"
	"io"
	"runtime"
)

// KeyFamily identifies a classical key type.
type KeyFamily string

const (
	FamilyP256    KeyFamily = "EC-P256"
	FamilyP384    KeyFamily = "EC-P384"
	FamilyP521    KeyFamily = "EC-P521"
	FamilyX25519  KeyFamily = "X25519"
	FamilyX448    KeyFamily = "X448"
	FamilyRSA3072 KeyFamily = "RSA-3072"
)

// Sentinel errors returned by engines.
var (
	// ErrInvalidKey indicates key bytes the engine could not decode.
	ErrInvalidKey = errors.New("invalid key encoding")

	// ErrInvalidCiphertext indicates a ciphertext of the wrong size or form.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")

	// ErrNotSupported indicates the engine does not implement the operation.
	ErrNotSupported = errors.New("operation not supported by engine")

	// ErrContextNotSupported indicates a context string was given to a scheme without context support.
	ErrContextNotSupported = errors.New("signature context not supported")

	// ErrContextTooLong indicates a context string longer than the scheme allows.
	ErrContextTooLong = errors.New("signature context too long")
)

// ClassicalKey is a reconstructed classical key held by an engine.
type ClassicalKey interface {
	// Family returns the key family.
	Family() KeyFamily

	// HasPrivate reports whether the key carries private material.
	HasPrivate() bool

	// PrivateBytes returns the raw scalar (raw engines) or the
	// algorithm-specific DER encoding (encoded engines).
	PrivateBytes() ([]byte, error)

	// PublicBytes returns the raw public value (raw engines) or the
	// algorithm-specific public encoding (encoded engines).
	PublicBytes() ([]byte, error)

	// Public returns the public half of the key.
	Public() ClassicalKey
}

// Destroyer is implemented by classical keys that can wipe their private
// material. A destroyed key no longer reports HasPrivate.
type Destroyer interface {
	Destroy()
}

// Destroy wipes k's private material when k implements Destroyer.
func Destroy(k ClassicalKey) {
	if d, ok := k.(Destroyer); ok {
		d.Destroy()
	}
}

// ClassicalEngine creates and operates classical keys.
//
// Raw engines import and export fixed-size scalars and points. Encoded
// engines use DER for private keys and a family-specific public encoding
// (uncompressed point for EC, PKCS#1 for RSA).
type ClassicalEngine interface {
	Family() KeyFamily
	RawKeySupport() bool

	GenerateKey(rand io.Reader) (ClassicalKey, error)
	NewPrivateKey(b []byte) (ClassicalKey, error)
	NewPublicKey(b []byte) (ClassicalKey, error)

	// Encapsulate runs an ephemeral key agreement against pub and returns
	// the ephemeral public value as ciphertext.
	Encapsulate(rand io.Reader, pub ClassicalKey) (ct, ss []byte, err error)
	Decapsulate(priv ClassicalKey, ct []byte) ([]byte, error)

	// Sign signs a precomputed digest.
	Sign(rand io.Reader, priv ClassicalKey, digest []byte, hash crypto.Hash) ([]byte, error)
	Verify(pub ClassicalKey, digest, sig []byte, hash crypto.Hash) bool
}

// KEMEngine is a post-quantum key encapsulation mechanism over fixed-length buffers.
type KEMEngine interface {
	Name() string
	PublicKeySize() int
	PrivateKeySize() int
	CiphertextSize() int
	SharedSecretSize() int

	GenerateKey(rand io.Reader) (pub, priv []byte, err error)
	Encapsulate(rand io.Reader, pub []byte) (ct, ss []byte, err error)
	Decapsulate(priv, ct []byte) ([]byte, error)
	PublicFromPrivate(priv []byte) ([]byte, error)
}

// SignatureEngine is a post-quantum signature scheme over fixed-length key buffers.
type SignatureEngine interface {
	Name() string
	PublicKeySize() int
	PrivateKeySize() int
	SignatureSize() int
	SupportsContext() bool

	GenerateKey(rand io.Reader) (pub, priv []byte, err error)
	Sign(rand io.Reader, priv, msg, ctx []byte) ([]byte, error)
	Verify(pub, msg, sig, ctx []byte) (bool, error)
	PublicFromPrivate(priv []byte) ([]byte, error)
}

// PQHandle is the post-quantum half of a key: either a KEMHandle or a
// SignatureHandle. Callers switch on the concrete type.
type PQHandle interface {
	Name() string
	PublicKeySize() int
	PrivateKeySize() int
	GenerateKey(rand io.Reader) (pub, priv []byte, err error)
	PublicFromPrivate(priv []byte) ([]byte, error)

	pqHandle()
}

// KEMHandle wraps a KEM engine.
type KEMHandle struct {
	KEMEngine
}

func (KEMHandle) pqHandle() {}

// SignatureHandle wraps a signature engine.
type SignatureHandle struct {
	SignatureEngine
}

func (SignatureHandle) pqHandle() {}

var (
	_ PQHandle = KEMHandle{}
	_ PQHandle = SignatureHandle{}
)

// Zeroize overwrites b with zeros.
func Zeroize(b []byte) {
	clear(b)
	runtime.KeepAlive(b)
}
