package crypto

import (
	"bytes"
	"io"

	"github.com/remiblancher/pqhybrid/pkg/engine"
)

// Generate creates a new key pair for the named algorithm.
func (r *Registry) Generate(rand io.Reader, name string) (*CompositeKey, error) {
	d, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return GenerateKey(rand, d)
}

// GenerateKey creates a new key pair for d, drawing all randomness from rand.
func GenerateKey(rand io.Reader, d *AlgorithmDescriptor) (*CompositeKey, error) {
	pqPub, pqPriv, err := d.PQ.GenerateKey(rand)
	if err != nil {
		return nil, engineError("generate", d, componentPQ, err)
	}
	defer engine.Zeroize(pqPriv)

	var (
		classical     engine.ClassicalKey
		clPriv, clPub []byte
	)
	if d.IsHybrid() {
		classical, clPriv, clPub, err = generateClassical(rand, d)
		if err != nil {
			return nil, err
		}
		defer engine.Zeroize(clPriv)
	}

	priv, err := PrivateLayout(d).Concat(clPriv, pqPriv)
	if err != nil {
		return nil, err
	}
	pub, err := PublicLayout(d).Concat(clPub, pqPub)
	if err != nil {
		engine.Zeroize(priv)
		return nil, err
	}

	k := newCompositeKey(d)
	if err := k.setPrivate(priv); err != nil {
		engine.Zeroize(priv)
		return nil, err
	}
	if err := k.setPublic(pub); err != nil {
		engine.Zeroize(priv)
		return nil, err
	}
	k.classical = classical
	return k, nil
}

// ImportPrivate parses a flat composite private key for the named algorithm.
func (r *Registry) ImportPrivate(name string, buf []byte) (*CompositeKey, error) {
	d, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return ImportPrivateKey(d, buf)
}

// ImportPublic parses a flat composite public key for the named algorithm.
func (r *Registry) ImportPublic(name string, buf []byte) (*CompositeKey, error) {
	d, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return ImportPublicKey(d, buf)
}

// ImportPrivateKey parses a flat composite private key. The public key is
// re-derived from the private components, so the result exports both.
// buf is copied.
func ImportPrivateKey(d *AlgorithmDescriptor, buf []byte) (*CompositeKey, error) {
	k := newCompositeKey(d)
	priv := bytes.Clone(buf)
	if err := k.setPrivate(priv); err != nil {
		engine.Zeroize(priv)
		return nil, err
	}

	var clPub []byte
	if d.IsHybrid() {
		classical, pub, err := importClassicalPrivate(d, k.compPriv[0].of(priv))
		if err != nil {
			engine.Zeroize(priv)
			return nil, err
		}
		k.classical = classical
		clPub = pub
	}

	pqPub, err := d.PQ.PublicFromPrivate(k.pqPrivate())
	if err != nil {
		engine.Zeroize(priv)
		return nil, engineError("import", d, componentPQ, err)
	}

	pub, err := PublicLayout(d).Concat(clPub, pqPub)
	if err != nil {
		engine.Zeroize(priv)
		return nil, err
	}
	if err := k.setPublic(pub); err != nil {
		engine.Zeroize(priv)
		return nil, err
	}
	return k, nil
}

// ImportPublicKey parses a flat composite public key. buf is copied.
func ImportPublicKey(d *AlgorithmDescriptor, buf []byte) (*CompositeKey, error) {
	k := newCompositeKey(d)
	if err := k.setPublic(bytes.Clone(buf)); err != nil {
		return nil, err
	}
	if d.IsHybrid() {
		classical, err := importClassicalPublic(d, k.compPub[0].of(k.pubKey))
		if err != nil {
			return nil, err
		}
		k.classical = classical
	}
	return k, nil
}
