package crypto

import (
	"fmt"
	"io"

	"github.com/remiblancher/pqhybrid/pkg/engine"
)

// Hybrid KEM composition.
//
// The classical half is an ephemeral key agreement whose ciphertext is the
// ephemeral public value. Ciphertexts and shared secrets are the plain
// concatenation of both halves, post-quantum first when ReverseShare is set.
// No header is added.

func (k *CompositeKey) kemEngine(op string) (engine.KEMEngine, error) {
	h, ok := k.pq.(engine.KEMHandle)
	if !ok {
		return nil, fmt.Errorf("%s [%s]: %w", op, k.desc.Name, ErrUnsupported)
	}
	return h.KEMEngine, nil
}

// EncapsulationSizes returns the ciphertext and shared secret lengths.
func (k *CompositeKey) EncapsulationSizes() (ctLen, ssLen int, err error) {
	if err := k.live(); err != nil {
		return 0, 0, err
	}
	eng, err := k.kemEngine("encapsulate")
	if err != nil {
		return 0, 0, err
	}
	ctLen, ssLen = eng.CiphertextSize(), eng.SharedSecretSize()
	if info := k.desc.Classical; info != nil {
		ctLen += info.PubLen
		ssLen += info.SharedSecretLen
	}
	return ctLen, ssLen, nil
}

// DecapsulationSize returns the shared secret length.
func (k *CompositeKey) DecapsulationSize() (int, error) {
	_, ssLen, err := k.EncapsulationSizes()
	return ssLen, err
}

// EncapsulateInto writes a ciphertext and shared secret into ct and ss.
//
// With ct and ss both nil it only reports the required lengths. Otherwise
// the buffers must be at least that long; short buffers are rejected before
// any engine is called. The returned lengths are the bytes written.
func (k *CompositeKey) EncapsulateInto(rand io.Reader, ct, ss []byte) (ctLen, ssLen int, err error) {
	ctLen, ssLen, err = k.EncapsulationSizes()
	if err != nil {
		return 0, 0, err
	}
	if ct == nil && ss == nil {
		return ctLen, ssLen, nil
	}
	if len(ct) < ctLen || len(ss) < ssLen {
		return 0, 0, formatErrorf("encapsulate", k.desc.Name,
			"output buffers are %d/%d bytes, need %d/%d", len(ct), len(ss), ctLen, ssLen)
	}

	eng, _ := k.kemEngine("encapsulate")
	pqCT, pqSS, err := eng.Encapsulate(rand, k.pqPublic())
	if err != nil {
		return 0, 0, engineError("encapsulate", k.desc, componentPQ, err)
	}
	defer engine.Zeroize(pqSS)

	info := k.desc.Classical
	if info == nil {
		copy(ct, pqCT)
		copy(ss, pqSS)
		return ctLen, ssLen, nil
	}

	clCT, clSS, err := info.Engine.Encapsulate(rand, k.classical)
	if err != nil {
		return 0, 0, engineError("encapsulate", k.desc, componentClassical, err)
	}
	defer engine.Zeroize(clSS)
	if len(clCT) != info.PubLen || len(clSS) != info.SharedSecretLen {
		return 0, 0, engineError("encapsulate", k.desc, componentClassical,
			fmt.Errorf("engine returned %d/%d bytes, want %d/%d", len(clCT), len(clSS), info.PubLen, info.SharedSecretLen))
	}

	k.join(ct, clCT, pqCT)
	k.join(ss, clSS, pqSS)
	return ctLen, ssLen, nil
}

// DecapsulateInto recovers the shared secret of ct into ss.
//
// With ss nil it only reports the shared secret length. The ciphertext
// must have exactly the length EncapsulationSizes reports.
func (k *CompositeKey) DecapsulateInto(ct, ss []byte) (int, error) {
	if err := k.requirePrivate(); err != nil {
		return 0, err
	}
	ctLen, ssLen, err := k.EncapsulationSizes()
	if err != nil {
		return 0, err
	}
	if ss == nil {
		return ssLen, nil
	}
	if len(ct) != ctLen {
		return 0, formatErrorf("decapsulate", k.desc.Name, "ciphertext is %d bytes, want %d", len(ct), ctLen)
	}
	if len(ss) < ssLen {
		return 0, formatErrorf("decapsulate", k.desc.Name, "output buffer is %d bytes, need %d", len(ss), ssLen)
	}

	eng, _ := k.kemEngine("decapsulate")
	info := k.desc.Classical
	if info == nil {
		pqSS, err := eng.Decapsulate(k.pqPrivate(), ct)
		if err != nil {
			return 0, engineError("decapsulate", k.desc, componentPQ, err)
		}
		defer engine.Zeroize(pqSS)
		copy(ss, pqSS)
		return ssLen, nil
	}

	clCT, pqCT := ct[:info.PubLen], ct[info.PubLen:]
	if k.reverseShare {
		pqCT, clCT = ct[:eng.CiphertextSize()], ct[eng.CiphertextSize():]
	}

	clSS, err := info.Engine.Decapsulate(k.classical, clCT)
	if err != nil {
		return 0, engineError("decapsulate", k.desc, componentClassical, err)
	}
	defer engine.Zeroize(clSS)
	if len(clSS) != info.SharedSecretLen {
		return 0, engineError("decapsulate", k.desc, componentClassical,
			fmt.Errorf("engine returned %d bytes, want %d", len(clSS), info.SharedSecretLen))
	}

	pqSS, err := eng.Decapsulate(k.pqPrivate(), pqCT)
	if err != nil {
		return 0, engineError("decapsulate", k.desc, componentPQ, err)
	}
	defer engine.Zeroize(pqSS)

	k.join(ss, clSS, pqSS)
	return ssLen, nil
}

// Encapsulate allocates and returns a fresh ciphertext and shared secret.
func (k *CompositeKey) Encapsulate(rand io.Reader) (ct, ss []byte, err error) {
	ctLen, ssLen, err := k.EncapsulateInto(rand, nil, nil)
	if err != nil {
		return nil, nil, err
	}
	ct, ss = make([]byte, ctLen), make([]byte, ssLen)
	if _, _, err := k.EncapsulateInto(rand, ct, ss); err != nil {
		return nil, nil, err
	}
	return ct, ss, nil
}

// Decapsulate returns the shared secret encapsulated in ct.
func (k *CompositeKey) Decapsulate(ct []byte) ([]byte, error) {
	ssLen, err := k.DecapsulateInto(ct, nil)
	if err != nil {
		return nil, err
	}
	ss := make([]byte, ssLen)
	if _, err := k.DecapsulateInto(ct, ss); err != nil {
		return nil, err
	}
	return ss, nil
}

// join writes classical and pq into dst in share order.
func (k *CompositeKey) join(dst, classical, pq []byte) {
	if k.reverseShare {
		n := copy(dst, pq)
		copy(dst[n:], classical)
		return
	}
	n := copy(dst, classical)
	copy(dst[n:], pq)
}
