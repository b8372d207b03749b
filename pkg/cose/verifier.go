package cose

import (
	gocose "github.com/veraison/go-cose"

	"github.com/remiblancher/pqhybrid/pkg/crypto"
)

// Verifier adapts a composite signature key to gocose.Verifier.
type Verifier struct {
	key       *crypto.CompositeKey
	algorithm gocose.Algorithm
}

var _ gocose.Verifier = (*Verifier)(nil)

// NewVerifier creates a COSE verifier. Public and private keys are accepted.
func NewVerifier(k *crypto.CompositeKey) (*Verifier, error) {
	alg, err := AlgorithmFor(k.Algorithm())
	if err != nil {
		return nil, err
	}
	return &Verifier{key: k, algorithm: alg}, nil
}

// Algorithm returns the COSE algorithm identifier.
func (v *Verifier) Algorithm() gocose.Algorithm {
	return v.algorithm
}

// Verify checks signature over the to-be-signed bytes. Failures are the
// errors of CompositeKey.Verify, so errors.Is against crypto.ErrFormat and
// crypto.ErrVerification distinguishes malformed from invalid signatures.
func (v *Verifier) Verify(data, signature []byte) error {
	return v.key.Verify(data, signature, nil)
}
