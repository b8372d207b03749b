package crypto

import (
	"bytes"
	"fmt"
	"io"

	"github.com/remiblancher/pqhybrid/pkg/engine"
)

// Classical key reconstruction.
//
// Raw engines (Montgomery curves) take scalars and u-coordinates as-is.
// Encoded engines (prime curves, RSA) take DER private keys and their
// family's public encoding; freshly generated encoded keys are re-imported
// once to catch encoder/decoder mismatches before the key is used.

// generateClassical creates the classical half of a hybrid key and returns
// the key together with its private and public encodings.
func generateClassical(rand io.Reader, d *AlgorithmDescriptor) (engine.ClassicalKey, []byte, []byte, error) {
	info := d.Classical
	key, err := info.Engine.GenerateKey(rand)
	if err != nil {
		return nil, nil, nil, engineError("generate", d, componentClassical, err)
	}
	priv, err := key.PrivateBytes()
	if err != nil {
		return nil, nil, nil, engineError("generate", d, componentClassical, err)
	}
	pub, err := key.PublicBytes()
	if err != nil {
		engine.Zeroize(priv)
		return nil, nil, nil, engineError("generate", d, componentClassical, err)
	}
	if len(priv) > info.PrivLen || len(pub) > info.PubLen {
		engine.Zeroize(priv)
		return nil, nil, nil, engineError("generate", d, componentClassical,
			fmt.Errorf("encoded key exceeds %d/%d bytes: %d/%d", info.PrivLen, info.PubLen, len(priv), len(pub)))
	}

	if !info.RawKeySupport {
		if err := selfTestClassical(info, priv, pub); err != nil {
			engine.Zeroize(priv)
			return nil, nil, nil, engineError("generate", d, componentClassical, err)
		}
	}
	return key, priv, pub, nil
}

// selfTestClassical re-imports an encoded private key and checks that it
// yields the same public key.
func selfTestClassical(info *ClassicalInfo, priv, pub []byte) error {
	again, err := info.Engine.NewPrivateKey(priv)
	if err != nil {
		return fmt.Errorf("self-test re-import failed: %w", err)
	}
	againPub, err := again.PublicBytes()
	if err != nil {
		return fmt.Errorf("self-test re-import failed: %w", err)
	}
	if !bytes.Equal(againPub, pub) {
		return fmt.Errorf("self-test re-import produced a different public key")
	}
	return nil
}

// importClassicalPrivate reconstructs the classical key from its private
// bytes and returns it with its re-derived public encoding.
func importClassicalPrivate(d *AlgorithmDescriptor, priv []byte) (engine.ClassicalKey, []byte, error) {
	key, err := d.Classical.Engine.NewPrivateKey(priv)
	if err != nil {
		return nil, nil, engineError("import", d, componentClassical, err)
	}
	pub, err := key.PublicBytes()
	if err != nil {
		return nil, nil, engineError("import", d, componentClassical, err)
	}
	if len(pub) == 0 || len(pub) > d.Classical.PubLen {
		return nil, nil, engineError("import", d, componentClassical,
			fmt.Errorf("derived public key is %d bytes, maximum %d", len(pub), d.Classical.PubLen))
	}
	return key, pub, nil
}

// importClassicalPublic reconstructs a public-only classical key.
func importClassicalPublic(d *AlgorithmDescriptor, pub []byte) (engine.ClassicalKey, error) {
	key, err := d.Classical.Engine.NewPublicKey(pub)
	if err != nil {
		return nil, engineError("import", d, componentClassical, err)
	}
	return key, nil
}

func engineError(op string, d *AlgorithmDescriptor, component string, err error) *EngineError {
	return &EngineError{Op: op, Algorithm: d.Name, Component: component, Err: err}
}
