package crypto

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"testing"
)

var signatureAlgorithms = []string{
	"mldsa44",
	"mldsa87",
	"slhdsa_sha2_128f",
	"p256_mldsa44",
	"p384_mldsa65",
	"p521_mldsa87",
	"p256_slhdsa_sha2_128f",
}

// =============================================================================
// [Unit] Sign / Verify
// =============================================================================

func TestU_HybridSignature_RoundTrip(t *testing.T) {
	msg := []byte("hybrid signatures combine two schemes")

	for _, name := range signatureAlgorithms {
		t.Run(name, func(t *testing.T) {
			k := mustGenerate(t, name)
			sig, err := k.Sign(rand.Reader, msg, nil)
			if err != nil {
				t.Fatalf("Sign() error = %v", err)
			}
			maxLen, _ := k.SignatureSize()
			if len(sig) > maxLen {
				t.Errorf("signature is %d bytes, maximum %d", len(sig), maxLen)
			}
			if err := k.Verify(msg, sig, nil); err != nil {
				t.Errorf("Verify() error = %v", err)
			}
			if err := k.Verify([]byte("other message"), sig, nil); !errors.Is(err, ErrVerification) {
				t.Errorf("Verify(other message) error = %v, want ErrVerification", err)
			}
		})
	}
}

func TestU_HybridSignature_RSA(t *testing.T) {
	if testing.Short() {
		t.Skip("RSA-3072 key generation is slow")
	}
	k := mustGenerate(t, "rsa3072_mldsa44")
	msg := []byte("rsa hybrid")
	sig, err := k.Sign(rand.Reader, msg, nil)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if l := binary.BigEndian.Uint32(sig); l != 384 {
		t.Errorf("classical signature length = %d, want 384", l)
	}
	if err := k.Verify(msg, sig, nil); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestU_HybridSignature_Layout(t *testing.T) {
	k := mustGenerate(t, "p256_mldsa44")
	msg := []byte("layout")
	sig, err := k.Sign(rand.Reader, msg, nil)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	l := int(binary.BigEndian.Uint32(sig))
	if l == 0 || l > 72 {
		t.Fatalf("classical length = %d, want 1..72", l)
	}
	eng, _ := k.Algorithm().Signature()
	if len(sig) != 4+l+eng.SignatureSize() {
		t.Errorf("signature is %d bytes, want %d", len(sig), 4+l+eng.SignatureSize())
	}

	// ML-DSA-44 claims level 2, so the classical half signs SHA-384(msg).
	point := k.PublicComponent(k.ClassicalIndex())
	//nolint:staticcheck // elliptic.Unmarshal is deprecated but convenient for the check
	x, y := elliptic.Unmarshal(elliptic.P256(), point)
	pub := &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}
	digest := sha512.Sum384(msg)
	if !ecdsa.VerifyASN1(pub, digest[:], sig[4:4+l]) {
		t.Error("classical signature should verify over SHA-384 of the message")
	}

	ok, err := eng.Verify(k.PublicComponent(k.PQIndex()), msg, sig[4+l:], nil)
	if err != nil || !ok {
		t.Errorf("post-quantum signature should verify over the raw message: ok=%v err=%v", ok, err)
	}
}

func TestU_DigestForLevel(t *testing.T) {
	tests := []struct {
		level int
		want  crypto.Hash
	}{
		{1, crypto.SHA256},
		{2, crypto.SHA384},
		{3, crypto.SHA384},
		{4, crypto.SHA512},
		{5, crypto.SHA512},
		{0, crypto.SHA512},
		{9, crypto.SHA512},
	}
	for _, tt := range tests {
		if got := DigestForLevel(tt.level); got != tt.want {
			t.Errorf("DigestForLevel(%d) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

// =============================================================================
// [Unit] Tampering
// =============================================================================

func TestU_HybridSignature_BitFlip(t *testing.T) {
	k := mustGenerate(t, "p384_mldsa65")
	msg := []byte("tamper")
	sig, err := k.Sign(rand.Reader, msg, nil)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	l := int(binary.BigEndian.Uint32(sig))

	tests := []struct {
		name      string
		offset    int
		component string
	}{
		{"[Unit] BitFlip: classical signature", 4 + l - 1, "classical"},
		{"[Unit] BitFlip: post-quantum signature", 4 + l + 10, "pq"},
		{"[Unit] BitFlip: last byte", len(sig) - 1, "pq"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := bytes.Clone(sig)
			bad[tt.offset] ^= 0x01
			err := k.Verify(msg, bad, nil)
			var ve *VerificationError
			if !errors.As(err, &ve) {
				t.Fatalf("Verify() error = %v, want *VerificationError", err)
			}
			if ve.Component != tt.component {
				t.Errorf("failing component = %s, want %s", ve.Component, tt.component)
			}
			if errors.Is(err, ErrFormat) {
				t.Error("verification failures must not match ErrFormat")
			}
		})
	}
}

func TestU_HybridSignature_Malformed(t *testing.T) {
	k := mustGenerate(t, "p256_mldsa44")
	msg := []byte("malformed")
	sig, err := k.Sign(rand.Reader, msg, nil)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	l := int(binary.BigEndian.Uint32(sig))

	withLength := func(n uint32) []byte {
		bad := bytes.Clone(sig)
		binary.BigEndian.PutUint32(bad, n)
		return bad
	}

	tests := []struct {
		name string
		sig  []byte
	}{
		{"[Unit] Malformed: empty", nil},
		{"[Unit] Malformed: truncated header", sig[:3]},
		{"[Unit] Malformed: header only", sig[:4]},
		{"[Unit] Malformed: zero classical length", withLength(0)},
		{"[Unit] Malformed: classical length over maximum", withLength(73)},
		{"[Unit] Malformed: classical length past end", withLength(72)[:4+60]},
		{"[Unit] Malformed: no post-quantum signature", sig[:4+l]},
		{"[Unit] Malformed: oversized post-quantum signature", append(bytes.Clone(sig), 0)},
		{"[Unit] Malformed: post-quantum signature one byte short", sig[:len(sig)-1]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := k.Verify(msg, tt.sig, nil)
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("Verify() error = %v, want *FormatError", err)
			}
			if errors.Is(err, ErrVerification) {
				t.Error("format errors must not match ErrVerification")
			}
		})
	}
}

func TestU_Signature_WrongLength(t *testing.T) {
	for _, name := range []string{"mldsa44", "slhdsa_sha2_128f"} {
		t.Run("[Unit] WrongLength: "+name, func(t *testing.T) {
			k := mustGenerate(t, name)
			msg := []byte("fixed length")
			sig, err := k.Sign(rand.Reader, msg, nil)
			if err != nil {
				t.Fatalf("Sign() error = %v", err)
			}
			for _, bad := range [][]byte{sig[:len(sig)-1], sig[:1], append(bytes.Clone(sig), 0)} {
				err := k.Verify(msg, bad, nil)
				if !errors.Is(err, ErrFormat) {
					t.Errorf("Verify(%d bytes) error = %v, want ErrFormat", len(bad), err)
				}
				if errors.Is(err, ErrVerification) {
					t.Errorf("Verify(%d bytes) must not match ErrVerification", len(bad))
				}
			}
		})
	}
}

// =============================================================================
// [Unit] Buffers and Context
// =============================================================================

func TestU_HybridSignature_SizeQuery(t *testing.T) {
	k := mustGenerate(t, "p256_mldsa44")
	n, err := k.SignInto(failingReader{}, nil, []byte("m"), nil)
	if err != nil {
		t.Fatalf("size query error = %v", err)
	}
	eng, _ := k.Algorithm().Signature()
	if n != 4+72+eng.SignatureSize() {
		t.Errorf("size = %d, want %d", n, 4+72+eng.SignatureSize())
	}

	if _, err := k.SignInto(failingReader{}, make([]byte, n-1), []byte("m"), nil); !errors.Is(err, ErrFormat) {
		t.Errorf("short buffer error = %v, want ErrFormat", err)
	}
}

func TestU_HybridSignature_Context(t *testing.T) {
	k := mustGenerate(t, "p256_mldsa44")
	msg := []byte("with context")
	opts := &SignOpts{Context: []byte("app-v1")}

	sig, err := k.Sign(rand.Reader, msg, opts)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if err := k.Verify(msg, sig, opts); err != nil {
		t.Errorf("Verify(same context) error = %v", err)
	}
	err = k.Verify(msg, sig, &SignOpts{Context: []byte("app-v2")})
	var ve *VerificationError
	if !errors.As(err, &ve) || ve.Component != "pq" {
		t.Errorf("Verify(other context) error = %v, want pq *VerificationError", err)
	}

	slh := mustGenerate(t, "slhdsa_sha2_128f")
	if _, err := slh.Sign(rand.Reader, msg, opts); !errors.Is(err, ErrEngine) {
		t.Errorf("SLH-DSA with context error = %v, want ErrEngine", err)
	}
}

func TestU_HybridSignature_Unsupported(t *testing.T) {
	k := mustGenerate(t, "x25519_mlkem512")
	if _, err := k.Sign(rand.Reader, []byte("m"), nil); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Sign() on KEM key error = %v, want ErrUnsupported", err)
	}

	sk := mustGenerate(t, "mldsa44")
	pk, _ := sk.Public()
	defer pk.Free()
	if _, err := pk.Sign(rand.Reader, []byte("m"), nil); !errors.Is(err, ErrNoPrivateKey) {
		t.Errorf("Sign() with public key error = %v, want ErrNoPrivateKey", err)
	}
}

func TestU_HybridSignature_ImportedKeyVerifies(t *testing.T) {
	k := mustGenerate(t, "p521_mldsa87")
	msg := []byte("export then verify")
	sig, err := k.Sign(rand.Reader, msg, nil)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	pub, _ := k.ExportPublic()
	pk, err := DefaultRegistry().ImportPublic("p521_mldsa87", pub)
	if err != nil {
		t.Fatalf("ImportPublic() error = %v", err)
	}
	defer pk.Free()
	if err := pk.Verify(msg, sig, nil); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}
