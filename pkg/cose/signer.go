package cose

import (
	"crypto/rand"
	"fmt"
	"io"

	gocose "github.com/veraison/go-cose"

	"github.com/remiblancher/pqhybrid/pkg/crypto"
)

// Signer adapts a composite signature key to gocose.Signer.
// The Sig_structure is signed as the message; the key applies its own
// digest to the classical half.
type Signer struct {
	key       *crypto.CompositeKey
	algorithm gocose.Algorithm
}

var _ gocose.Signer = (*Signer)(nil)

// NewSigner creates a COSE signer from a private signature key.
func NewSigner(k *crypto.CompositeKey) (*Signer, error) {
	alg, err := AlgorithmFor(k.Algorithm())
	if err != nil {
		return nil, err
	}
	if !k.HasPrivate() {
		return nil, fmt.Errorf("failed to create COSE signer: %w", crypto.ErrNoPrivateKey)
	}
	return &Signer{key: k, algorithm: alg}, nil
}

// Algorithm returns the COSE algorithm identifier.
func (s *Signer) Algorithm() gocose.Algorithm {
	return s.algorithm
}

// Sign signs the to-be-signed bytes.
func (s *Signer) Sign(random io.Reader, data []byte) ([]byte, error) {
	if random == nil {
		random = rand.Reader
	}
	return s.key.Sign(random, data, nil)
}
