// Package cose signs and verifies COSE_Sign1 messages (RFC 9052) and CWT
// claim sets (RFC 8392) with composite signature keys.
//
// Plain ML-DSA keys use the identifiers from draft-ietf-cose-dilithium.
// SLH-DSA and hybrid keys have no registered identifiers and use values from
// the private-use range.
package cose

import (
	"fmt"

	gocose "github.com/veraison/go-cose"

	"github.com/remiblancher/pqhybrid/pkg/crypto"
)

// COSE algorithm identifiers.
const (
	AlgMLDSA44 gocose.Algorithm = -48
	AlgMLDSA65 gocose.Algorithm = -49
	AlgMLDSA87 gocose.Algorithm = -50

	AlgSLHDSASHA2128s gocose.Algorithm = -70020
	AlgSLHDSASHA2128f gocose.Algorithm = -70021
	AlgSLHDSASHA2192f gocose.Algorithm = -70023
	AlgSLHDSASHA2256f gocose.Algorithm = -70025

	// Hybrid signatures: classical DER signature followed by the PQ signature,
	// framed as in pkg/crypto.
	AlgP256MLDSA44        gocose.Algorithm = -70101
	AlgRSA3072MLDSA44     gocose.Algorithm = -70102
	AlgP384MLDSA65        gocose.Algorithm = -70103
	AlgP521MLDSA87        gocose.Algorithm = -70104
	AlgP256SLHDSASHA2128f gocose.Algorithm = -70105
	AlgP384SLHDSASHA2192f gocose.Algorithm = -70106
	AlgP521SLHDSASHA2256f gocose.Algorithm = -70107
)

var algorithmsByName = map[string]gocose.Algorithm{
	"mldsa44":               AlgMLDSA44,
	"mldsa65":               AlgMLDSA65,
	"mldsa87":               AlgMLDSA87,
	"slhdsa_sha2_128s":      AlgSLHDSASHA2128s,
	"slhdsa_sha2_128f":      AlgSLHDSASHA2128f,
	"slhdsa_sha2_192f":      AlgSLHDSASHA2192f,
	"slhdsa_sha2_256f":      AlgSLHDSASHA2256f,
	"p256_mldsa44":          AlgP256MLDSA44,
	"rsa3072_mldsa44":       AlgRSA3072MLDSA44,
	"p384_mldsa65":          AlgP384MLDSA65,
	"p521_mldsa87":          AlgP521MLDSA87,
	"p256_slhdsa_sha2_128f": AlgP256SLHDSASHA2128f,
	"p384_slhdsa_sha2_192f": AlgP384SLHDSASHA2192f,
	"p521_slhdsa_sha2_256f": AlgP521SLHDSASHA2256f,
}

var namesByAlgorithm = func() map[gocose.Algorithm]string {
	m := make(map[gocose.Algorithm]string, len(algorithmsByName))
	for name, alg := range algorithmsByName {
		m[alg] = name
	}
	return m
}()

// AlgorithmFor returns the COSE identifier of a signature algorithm.
func AlgorithmFor(d *crypto.AlgorithmDescriptor) (gocose.Algorithm, error) {
	if !d.IsSignature() {
		return 0, fmt.Errorf("%w: %s is not a signature algorithm", crypto.ErrUnsupported, d.Name)
	}
	alg, ok := algorithmsByName[d.Name]
	if !ok {
		return 0, fmt.Errorf("%w: no COSE identifier for %s", crypto.ErrUnsupported, d.Name)
	}
	return alg, nil
}

// DescriptorFor resolves a COSE identifier against a registry.
func DescriptorFor(r *crypto.Registry, alg gocose.Algorithm) (*crypto.AlgorithmDescriptor, error) {
	name, ok := namesByAlgorithm[alg]
	if !ok {
		return nil, fmt.Errorf("%w: COSE algorithm %d", crypto.ErrUnknownAlgorithm, int64(alg))
	}
	return r.Lookup(name)
}

// AlgorithmName returns the registry name for a COSE identifier, or a
// numeric placeholder for identifiers this package does not know.
func AlgorithmName(alg gocose.Algorithm) string {
	if name, ok := namesByAlgorithm[alg]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int64(alg))
}
