// Package crypto implements hybrid composite keys: one classical key and one
// post-quantum key carried together in a single length-prefixed buffer, and
// the KEM and signature compositions built on top of them.
//
// Primitives are consumed through the engine package. This package owns the
// byte layout, its validation, and the way component results are combined.
package crypto

import (
	"encoding/asn1"
	"fmt"
	"strings"
	"sync"

	"github.com/remiblancher/pqhybrid/pkg/engine"
)

// Category classifies an algorithm by operation and composition.
type Category int

const (
	CategoryUnknown Category = iota
	CategorySIG
	CategoryKEM
	CategoryHybridKEMECPrime
	CategoryHybridKEMECMont
	CategoryHybridSIG
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategorySIG:
		return "SIG"
	case CategoryKEM:
		return "KEM"
	case CategoryHybridKEMECPrime:
		return "HYB_KEM_EC_PRIME"
	case CategoryHybridKEMECMont:
		return "HYB_KEM_EC_MONT"
	case CategoryHybridSIG:
		return "HYB_SIG"
	default:
		return "UNKNOWN"
	}
}

// ClassicalInfo describes the classical half of a hybrid algorithm.
// Lengths are maxima: encoded keys and DER signatures may be shorter.
type ClassicalInfo struct {
	Family          engine.KeyFamily
	RawKeySupport   bool
	PubLen          int
	PrivLen         int
	SharedSecretLen int
	SigLen          int
	Engine          engine.ClassicalEngine
}

// AlgorithmDescriptor is the static description of one algorithm.
// Descriptors are created by NewRegistry and never modified afterwards.
type AlgorithmDescriptor struct {
	Name          string
	OID           asn1.ObjectIdentifier
	Category      Category
	BitSecurity   int
	SecurityLevel int // claimed NIST level, 1 to 5
	ReverseShare  bool
	Classical     *ClassicalInfo
	PQ            engine.PQHandle
}

// IsHybrid reports whether the algorithm has a classical component.
func (d *AlgorithmDescriptor) IsHybrid() bool { return d.Classical != nil }

// ComponentCount returns 2 for hybrids and 1 otherwise.
func (d *AlgorithmDescriptor) ComponentCount() int {
	if d.IsHybrid() {
		return 2
	}
	return 1
}

// IsKEM reports whether the algorithm is a key encapsulation mechanism.
func (d *AlgorithmDescriptor) IsKEM() bool {
	switch d.Category {
	case CategoryKEM, CategoryHybridKEMECPrime, CategoryHybridKEMECMont:
		return true
	}
	return false
}

// IsSignature reports whether the algorithm is a signature scheme.
func (d *AlgorithmDescriptor) IsSignature() bool {
	return d.Category == CategorySIG || d.Category == CategoryHybridSIG
}

// KEM returns the post-quantum KEM engine, if the algorithm is a KEM.
func (d *AlgorithmDescriptor) KEM() (engine.KEMEngine, bool) {
	h, ok := d.PQ.(engine.KEMHandle)
	if !ok {
		return nil, false
	}
	return h.KEMEngine, true
}

// Signature returns the post-quantum signature engine, if the algorithm signs.
func (d *AlgorithmDescriptor) Signature() (engine.SignatureEngine, bool) {
	h, ok := d.PQ.(engine.SignatureHandle)
	if !ok {
		return nil, false
	}
	return h.SignatureEngine, true
}

// PrivateKeyLen returns the maximum length of the composite private key.
func (d *AlgorithmDescriptor) PrivateKeyLen() int {
	return PrivateLayout(d).MaxLen()
}

// PublicKeyLen returns the maximum length of the composite public key.
func (d *AlgorithmDescriptor) PublicKeyLen() int {
	return PublicLayout(d).MaxLen()
}

// String returns the algorithm name.
func (d *AlgorithmDescriptor) String() string { return d.Name }

// algorithmSpec is one row of the static algorithm table.
type algorithmSpec struct {
	name      string
	oid       asn1.ObjectIdentifier
	category  Category
	bits      int
	level     int
	reverse   bool
	classical func() *ClassicalInfo
	pq        func() engine.PQHandle
}

func p256() *ClassicalInfo {
	return &ClassicalInfo{Family: engine.FamilyP256, PubLen: 65, PrivLen: 121, SharedSecretLen: 32, SigLen: 72, Engine: engine.P256()}
}

func p384() *ClassicalInfo {
	return &ClassicalInfo{Family: engine.FamilyP384, PubLen: 97, PrivLen: 167, SharedSecretLen: 48, SigLen: 104, Engine: engine.P384()}
}

func p521() *ClassicalInfo {
	return &ClassicalInfo{Family: engine.FamilyP521, PubLen: 133, PrivLen: 223, SharedSecretLen: 66, SigLen: 141, Engine: engine.P521()}
}

func x25519() *ClassicalInfo {
	return &ClassicalInfo{Family: engine.FamilyX25519, RawKeySupport: true, PubLen: 32, PrivLen: 32, SharedSecretLen: 32, Engine: engine.X25519()}
}

func x448() *ClassicalInfo {
	return &ClassicalInfo{Family: engine.FamilyX448, RawKeySupport: true, PubLen: 56, PrivLen: 56, SharedSecretLen: 56, Engine: engine.X448()}
}

func rsa3072() *ClassicalInfo {
	return &ClassicalInfo{Family: engine.FamilyRSA3072, PubLen: 398, PrivLen: 1770, SigLen: 384, Engine: engine.RSA3072()}
}

func kemOf(f func() engine.KEMEngine) func() engine.PQHandle {
	return func() engine.PQHandle { return engine.KEMHandle{KEMEngine: f()} }
}

func sigOf(f func() engine.SignatureEngine) func() engine.PQHandle {
	return func() engine.PQHandle { return engine.SignatureHandle{SignatureEngine: f()} }
}

var (
	oidNIST         = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4}
	oidExperimental = asn1.ObjectIdentifier{2, 999, 1}
)

func arc(base asn1.ObjectIdentifier, ids ...int) asn1.ObjectIdentifier {
	oid := make(asn1.ObjectIdentifier, 0, len(base)+len(ids))
	return append(append(oid, base...), ids...)
}

// algorithmTable lists every supported algorithm. The reverse flag is part of
// each algorithm's wire format and must not be derived from other fields:
// X25519MLKEM768 carries ML-KEM first, every other hybrid carries the
// classical component first.
func algorithmTable() []algorithmSpec {
	return []algorithmSpec{
		// Post-quantum KEMs
		{name: "mlkem512", oid: arc(oidNIST, 4, 1), category: CategoryKEM, bits: 128, level: 1, pq: kemOf(engine.MLKEM512)},
		{name: "mlkem768", oid: arc(oidNIST, 4, 2), category: CategoryKEM, bits: 192, level: 3, pq: kemOf(engine.MLKEM768)},
		{name: "mlkem1024", oid: arc(oidNIST, 4, 3), category: CategoryKEM, bits: 256, level: 5, pq: kemOf(engine.MLKEM1024)},
		{name: "kyber512", oid: arc(oidExperimental, 3, 1), category: CategoryKEM, bits: 128, level: 1, pq: kemOf(engine.Kyber512)},
		{name: "kyber768", oid: arc(oidExperimental, 3, 2), category: CategoryKEM, bits: 192, level: 3, pq: kemOf(engine.Kyber768)},
		{name: "kyber1024", oid: arc(oidExperimental, 3, 3), category: CategoryKEM, bits: 256, level: 5, pq: kemOf(engine.Kyber1024)},
		{name: "frodo640shake", oid: arc(oidExperimental, 3, 4), category: CategoryKEM, bits: 128, level: 1, pq: kemOf(engine.FrodoKEM640SHAKE)},

		// Post-quantum signatures
		{name: "mldsa44", oid: arc(oidNIST, 3, 17), category: CategorySIG, bits: 128, level: 2, pq: sigOf(engine.MLDSA44)},
		{name: "mldsa65", oid: arc(oidNIST, 3, 18), category: CategorySIG, bits: 192, level: 3, pq: sigOf(engine.MLDSA65)},
		{name: "mldsa87", oid: arc(oidNIST, 3, 19), category: CategorySIG, bits: 256, level: 5, pq: sigOf(engine.MLDSA87)},
		{name: "slhdsa_sha2_128s", oid: arc(oidNIST, 3, 20), category: CategorySIG, bits: 128, level: 1, pq: sigOf(engine.SLHDSASHA2128s)},
		{name: "slhdsa_sha2_128f", oid: arc(oidNIST, 3, 21), category: CategorySIG, bits: 128, level: 1, pq: sigOf(engine.SLHDSASHA2128f)},
		{name: "slhdsa_sha2_192f", oid: arc(oidNIST, 3, 23), category: CategorySIG, bits: 192, level: 3, pq: sigOf(engine.SLHDSASHA2192f)},
		{name: "slhdsa_sha2_256f", oid: arc(oidNIST, 3, 25), category: CategorySIG, bits: 256, level: 5, pq: sigOf(engine.SLHDSASHA2256f)},

		// Hybrid KEMs over prime curves
		{name: "p256_mlkem512", oid: arc(oidExperimental, 1, 1), category: CategoryHybridKEMECPrime, bits: 128, level: 1, classical: p256, pq: kemOf(engine.MLKEM512)},
		{name: "p384_mlkem768", oid: arc(oidExperimental, 1, 2), category: CategoryHybridKEMECPrime, bits: 192, level: 3, classical: p384, pq: kemOf(engine.MLKEM768)},
		{name: "p521_mlkem1024", oid: arc(oidExperimental, 1, 3), category: CategoryHybridKEMECPrime, bits: 256, level: 5, classical: p521, pq: kemOf(engine.MLKEM1024)},
		{name: "SecP256r1MLKEM768", oid: arc(oidExperimental, 1, 4), category: CategoryHybridKEMECPrime, bits: 192, level: 3, classical: p256, pq: kemOf(engine.MLKEM768)},
		{name: "SecP384r1MLKEM1024", oid: arc(oidExperimental, 1, 5), category: CategoryHybridKEMECPrime, bits: 256, level: 5, classical: p384, pq: kemOf(engine.MLKEM1024)},
		{name: "p256_frodo640shake", oid: arc(oidExperimental, 1, 6), category: CategoryHybridKEMECPrime, bits: 128, level: 1, classical: p256, pq: kemOf(engine.FrodoKEM640SHAKE)},

		// Hybrid KEMs over Montgomery curves
		{name: "x25519_mlkem512", oid: arc(oidExperimental, 1, 7), category: CategoryHybridKEMECMont, bits: 128, level: 1, classical: x25519, pq: kemOf(engine.MLKEM512)},
		{name: "x448_mlkem768", oid: arc(oidExperimental, 1, 8), category: CategoryHybridKEMECMont, bits: 192, level: 3, classical: x448, pq: kemOf(engine.MLKEM768)},
		{name: "X25519MLKEM768", oid: arc(oidExperimental, 1, 9), category: CategoryHybridKEMECMont, bits: 192, level: 3, reverse: true, classical: x25519, pq: kemOf(engine.MLKEM768)},
		{name: "x25519_frodo640shake", oid: arc(oidExperimental, 1, 10), category: CategoryHybridKEMECMont, bits: 128, level: 1, classical: x25519, pq: kemOf(engine.FrodoKEM640SHAKE)},

		// Hybrid signatures
		{name: "p256_mldsa44", oid: arc(oidExperimental, 2, 1), category: CategoryHybridSIG, bits: 128, level: 2, classical: p256, pq: sigOf(engine.MLDSA44)},
		{name: "rsa3072_mldsa44", oid: arc(oidExperimental, 2, 2), category: CategoryHybridSIG, bits: 128, level: 2, classical: rsa3072, pq: sigOf(engine.MLDSA44)},
		{name: "p384_mldsa65", oid: arc(oidExperimental, 2, 3), category: CategoryHybridSIG, bits: 192, level: 3, classical: p384, pq: sigOf(engine.MLDSA65)},
		{name: "p521_mldsa87", oid: arc(oidExperimental, 2, 4), category: CategoryHybridSIG, bits: 256, level: 5, classical: p521, pq: sigOf(engine.MLDSA87)},
		{name: "p256_slhdsa_sha2_128f", oid: arc(oidExperimental, 2, 5), category: CategoryHybridSIG, bits: 128, level: 1, classical: p256, pq: sigOf(engine.SLHDSASHA2128f)},
		{name: "p384_slhdsa_sha2_192f", oid: arc(oidExperimental, 2, 6), category: CategoryHybridSIG, bits: 192, level: 3, classical: p384, pq: sigOf(engine.SLHDSASHA2192f)},
		{name: "p521_slhdsa_sha2_256f", oid: arc(oidExperimental, 2, 7), category: CategoryHybridSIG, bits: 256, level: 5, classical: p521, pq: sigOf(engine.SLHDSASHA2256f)},
	}
}

// Registry is an immutable set of algorithm descriptors indexed by name and OID.
type Registry struct {
	byName map[string]*AlgorithmDescriptor
	byOID  map[string]*AlgorithmDescriptor
	order  []*AlgorithmDescriptor
}

// NewRegistry builds a registry holding every supported algorithm.
func NewRegistry() *Registry {
	table := algorithmTable()
	r := &Registry{
		byName: make(map[string]*AlgorithmDescriptor, len(table)),
		byOID:  make(map[string]*AlgorithmDescriptor, len(table)),
		order:  make([]*AlgorithmDescriptor, 0, len(table)),
	}
	for _, spec := range table {
		d := &AlgorithmDescriptor{
			Name:          spec.name,
			OID:           spec.oid,
			Category:      spec.category,
			BitSecurity:   spec.bits,
			SecurityLevel: spec.level,
			ReverseShare:  spec.reverse,
			PQ:            spec.pq(),
		}
		if spec.classical != nil {
			d.Classical = spec.classical()
		}
		r.register(d)
	}
	return r
}

func (r *Registry) register(d *AlgorithmDescriptor) {
	key := strings.ToLower(d.Name)
	if _, dup := r.byName[key]; dup {
		panic(fmt.Sprintf("crypto: duplicate algorithm %q", d.Name))
	}
	if _, dup := r.byOID[d.OID.String()]; dup {
		panic(fmt.Sprintf("crypto: duplicate OID %s for %q", d.OID, d.Name))
	}
	if c := d.Classical; c != nil && c.Engine.RawKeySupport() != c.RawKeySupport {
		panic(fmt.Sprintf("crypto: %q: raw key support of %s engine does not match table", d.Name, c.Family))
	}
	r.byName[key] = d
	r.byOID[d.OID.String()] = d
	r.order = append(r.order, d)
}

var defaultRegistry = sync.OnceValue(NewRegistry)

// DefaultRegistry returns a shared registry, built on first use.
func DefaultRegistry() *Registry {
	return defaultRegistry()
}

// Lookup returns the descriptor for an algorithm name (case-insensitive).
func (r *Registry) Lookup(name string) (*AlgorithmDescriptor, error) {
	d, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, name)
	}
	return d, nil
}

// LookupOID returns the descriptor registered under oid.
func (r *Registry) LookupOID(oid asn1.ObjectIdentifier) (*AlgorithmDescriptor, error) {
	d, ok := r.byOID[oid.String()]
	if !ok {
		return nil, fmt.Errorf("%w: OID %s", ErrUnknownAlgorithm, oid)
	}
	return d, nil
}

// Descriptors returns all descriptors in table order.
func (r *Registry) Descriptors() []*AlgorithmDescriptor {
	out := make([]*AlgorithmDescriptor, len(r.order))
	copy(out, r.order)
	return out
}

// Names returns all algorithm names in table order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	for i, d := range r.order {
		names[i] = d.Name
	}
	return names
}
