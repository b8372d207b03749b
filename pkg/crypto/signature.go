package crypto

import (
	"crypto"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"io"

	"golang.org/x/crypto/cryptobyte"

	"github.com/remiblancher/pqhybrid/pkg/engine"
)

// SignOpts carries optional signing parameters.
type SignOpts struct {
	// Context is passed to the post-quantum scheme as its context string.
	Context []byte
}

func (o *SignOpts) context() []byte {
	if o == nil {
		return nil
	}
	return o.Context
}

// DigestForLevel returns the hash applied to the message before the
// classical signature, chosen from the post-quantum claimed NIST level.
func DigestForLevel(level int) crypto.Hash {
	switch level {
	case 1:
		return crypto.SHA256
	case 2, 3:
		return crypto.SHA384
	default:
		return crypto.SHA512
	}
}

func digest(h crypto.Hash, msg []byte) []byte {
	switch h {
	case crypto.SHA256:
		sum := sha256.Sum256(msg)
		return sum[:]
	case crypto.SHA384:
		sum := sha512.Sum384(msg)
		return sum[:]
	default:
		sum := sha512.Sum512(msg)
		return sum[:]
	}
}

func (k *CompositeKey) signatureEngine(op string) (engine.SignatureEngine, error) {
	h, ok := k.pq.(engine.SignatureHandle)
	if !ok {
		return nil, fmt.Errorf("%s [%s]: %w", op, k.desc.Name, ErrUnsupported)
	}
	return h.SignatureEngine, nil
}

// SignatureSize returns the maximum signature length.
func (k *CompositeKey) SignatureSize() (int, error) {
	if err := k.live(); err != nil {
		return 0, err
	}
	eng, err := k.signatureEngine("sign")
	if err != nil {
		return 0, err
	}
	n := eng.SignatureSize()
	if info := k.desc.Classical; info != nil {
		n += lengthPrefixLen + info.SigLen
	}
	return n, nil
}

// SignInto signs msg into sig and returns the number of bytes written.
//
// With sig nil it returns the maximum signature length. A hybrid signature
// is u32be(L) || classical(L) || pq, where the classical signature covers
// a digest of msg and the post-quantum signature covers msg itself.
func (k *CompositeKey) SignInto(rand io.Reader, sig, msg []byte, opts *SignOpts) (int, error) {
	if err := k.requirePrivate(); err != nil {
		return 0, err
	}
	maxLen, err := k.SignatureSize()
	if err != nil {
		return 0, err
	}
	if sig == nil {
		return maxLen, nil
	}
	if len(sig) < maxLen {
		return 0, formatErrorf("sign", k.desc.Name, "output buffer is %d bytes, need %d", len(sig), maxLen)
	}

	eng, _ := k.signatureEngine("sign")
	info := k.desc.Classical
	if info == nil {
		ps, err := eng.Sign(rand, k.pqPrivate(), msg, opts.context())
		if err != nil {
			return 0, engineError("sign", k.desc, componentPQ, err)
		}
		return copy(sig, ps), nil
	}

	hash := DigestForLevel(k.desc.SecurityLevel)
	cs, err := info.Engine.Sign(rand, k.classical, digest(hash, msg), hash)
	if err != nil {
		return 0, engineError("sign", k.desc, componentClassical, err)
	}
	if len(cs) == 0 || len(cs) > info.SigLen {
		return 0, engineError("sign", k.desc, componentClassical,
			fmt.Errorf("signature is %d bytes, maximum %d", len(cs), info.SigLen))
	}

	ps, err := eng.Sign(rand, k.pqPrivate(), msg, opts.context())
	if err != nil {
		return 0, engineError("sign", k.desc, componentPQ, err)
	}

	b := cryptobyte.NewFixedBuilder(sig[:0])
	b.AddUint32(uint32(len(cs)))
	b.AddBytes(cs)
	b.AddBytes(ps)
	out, err := b.Bytes()
	if err != nil {
		return 0, formatErrorf("sign", k.desc.Name, "%v", err)
	}
	return len(out), nil
}

// Sign returns a signature over msg.
func (k *CompositeKey) Sign(rand io.Reader, msg []byte, opts *SignOpts) ([]byte, error) {
	maxLen, err := k.SignInto(rand, nil, msg, opts)
	if err != nil {
		return nil, err
	}
	sig := make([]byte, maxLen)
	n, err := k.SignInto(rand, sig, msg, opts)
	if err != nil {
		return nil, err
	}
	return sig[:n], nil
}

// Verify checks sig over msg. It returns nil when every component verifies,
// a *FormatError for a malformed signature and a *VerificationError naming
// the first component that failed.
func (k *CompositeKey) Verify(msg, sig []byte, opts *SignOpts) error {
	if err := k.live(); err != nil {
		return err
	}
	eng, err := k.signatureEngine("verify")
	if err != nil {
		return err
	}

	info := k.desc.Classical
	if info == nil {
		if len(sig) != eng.SignatureSize() {
			return formatErrorf("verify", k.desc.Name, "signature is %d bytes, want %d", len(sig), eng.SignatureSize())
		}
		ok, err := eng.Verify(k.pqPublic(), msg, sig, opts.context())
		if err != nil {
			return engineError("verify", k.desc, componentPQ, err)
		}
		if !ok {
			return &VerificationError{Algorithm: k.desc.Name, Component: componentPQ}
		}
		return nil
	}

	s := cryptobyte.String(sig)
	var n uint32
	if !s.ReadUint32(&n) {
		return formatErrorf("verify", k.desc.Name, "signature shorter than its length header")
	}
	if n == 0 || uint64(n) > uint64(info.SigLen) {
		return formatErrorf("verify", k.desc.Name, "classical signature length %d outside 1..%d", n, info.SigLen)
	}
	var cs []byte
	if !s.ReadBytes(&cs, int(n)) {
		return formatErrorf("verify", k.desc.Name, "classical signature length %d exceeds remaining %d bytes", n, len(s))
	}
	ps := []byte(s)
	if len(ps) != eng.SignatureSize() {
		return formatErrorf("verify", k.desc.Name, "post-quantum signature is %d bytes, want %d", len(ps), eng.SignatureSize())
	}

	hash := DigestForLevel(k.desc.SecurityLevel)
	classicalOK := info.Engine.Verify(k.classical, digest(hash, msg), cs, hash)
	pqOK, err := eng.Verify(k.pqPublic(), msg, ps, opts.context())
	if err != nil {
		return engineError("verify", k.desc, componentPQ, err)
	}

	switch {
	case !classicalOK:
		return &VerificationError{Algorithm: k.desc.Name, Component: componentClassical}
	case !pqOK:
		return &VerificationError{Algorithm: k.desc.Name, Component: componentPQ}
	}
	return nil
}
