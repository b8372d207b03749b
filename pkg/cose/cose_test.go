package cose

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gocose "github.com/veraison/go-cose"

	"github.com/remiblancher/pqhybrid/pkg/crypto"
)

// =============================================================================
// Test Helpers
// =============================================================================

func generateKey(t *testing.T, name string) *crypto.CompositeKey {
	t.Helper()
	k, err := crypto.DefaultRegistry().Generate(rand.Reader, name)
	if err != nil {
		t.Fatalf("Generate(%s) error = %v", name, err)
	}
	t.Cleanup(k.Free)
	return k
}

func publicOf(t *testing.T, k *crypto.CompositeKey) *crypto.CompositeKey {
	t.Helper()
	pub, err := k.Public()
	if err != nil {
		t.Fatalf("Public() error = %v", err)
	}
	t.Cleanup(pub.Free)
	return pub
}

// =============================================================================
// [Unit] Algorithm Mapping
// =============================================================================

func TestU_AlgorithmFor_AllSignatureAlgorithms(t *testing.T) {
	reg := crypto.DefaultRegistry()
	for _, d := range reg.Descriptors() {
		alg, err := AlgorithmFor(d)
		if !d.IsSignature() {
			if !errors.Is(err, crypto.ErrUnsupported) {
				t.Errorf("AlgorithmFor(%s) error = %v, want ErrUnsupported", d.Name, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("AlgorithmFor(%s) error = %v", d.Name, err)
			continue
		}
		back, err := DescriptorFor(reg, alg)
		if err != nil || back != d {
			t.Errorf("DescriptorFor(%d) = %v, %v; want %s", int64(alg), back, err, d.Name)
		}
	}
}

func TestU_AlgorithmFor_MLDSAUsesRegisteredValues(t *testing.T) {
	tests := map[string]gocose.Algorithm{
		"mldsa44": -48,
		"mldsa65": -49,
		"mldsa87": -50,
	}
	for name, want := range tests {
		d, _ := crypto.DefaultRegistry().Lookup(name)
		if got, _ := AlgorithmFor(d); got != want {
			t.Errorf("AlgorithmFor(%s) = %d, want %d", name, got, want)
		}
	}
}

func TestU_DescriptorFor_Unknown(t *testing.T) {
	_, err := DescriptorFor(crypto.DefaultRegistry(), gocose.AlgorithmES256)
	if !errors.Is(err, crypto.ErrUnknownAlgorithm) {
		t.Errorf("DescriptorFor(ES256) error = %v, want ErrUnknownAlgorithm", err)
	}
	if AlgorithmName(gocose.AlgorithmES256) != "unknown(-7)" {
		t.Errorf("AlgorithmName(ES256) = %s", AlgorithmName(gocose.AlgorithmES256))
	}
}

// =============================================================================
// [Unit] Sign1
// =============================================================================

func TestU_Sign1_RoundTrip(t *testing.T) {
	for _, name := range []string{"mldsa44", "slhdsa_sha2_128f", "p256_mldsa44", "p384_mldsa65"} {
		t.Run("[Unit] Sign1: "+name, func(t *testing.T) {
			k := generateKey(t, name)
			payload := []byte("hybrid payload")
			cfg := &MessageConfig{KeyID: []byte("kid-1"), ContentType: "text/plain", External: []byte("aad")}

			data, err := Sign1(rand.Reader, payload, k, cfg)
			if err != nil {
				t.Fatalf("Sign1() error = %v", err)
			}

			msg, err := Verify1(data, publicOf(t, k), cfg.External)
			if err != nil {
				t.Fatalf("Verify1() error = %v", err)
			}
			if !bytes.Equal(msg.Payload, payload) {
				t.Errorf("Payload = %q, want %q", msg.Payload, payload)
			}
			if !bytes.Equal(msg.KeyID, cfg.KeyID) || msg.ContentType != "text/plain" {
				t.Errorf("headers = kid %q, content type %q", msg.KeyID, msg.ContentType)
			}
			if msg.AlgorithmName() != name {
				t.Errorf("AlgorithmName() = %s, want %s", msg.AlgorithmName(), name)
			}
		})
	}
}

func TestU_Sign1_HybridSignatureIsComposite(t *testing.T) {
	k := generateKey(t, "p256_mldsa44")
	data, err := Sign1(rand.Reader, []byte("x"), k, nil)
	if err != nil {
		t.Fatalf("Sign1() error = %v", err)
	}
	msg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if msg.Algorithm != AlgP256MLDSA44 {
		t.Errorf("Algorithm = %d, want %d", msg.Algorithm, AlgP256MLDSA44)
	}
	limit, _ := k.SignatureSize()
	if len(msg.Signature) == 0 || len(msg.Signature) > limit {
		t.Errorf("signature length %d outside (0, %d]", len(msg.Signature), limit)
	}
}

func TestU_Verify1_Failures(t *testing.T) {
	k := generateKey(t, "p256_mldsa44")
	data, err := Sign1(rand.Reader, []byte("payload"), k, &MessageConfig{External: []byte("aad")})
	if err != nil {
		t.Fatalf("Sign1() error = %v", err)
	}

	t.Run("[Unit] Verify1: wrong external data", func(t *testing.T) {
		_, err := Verify1(data, k, []byte("other"))
		if !errors.Is(err, crypto.ErrVerification) {
			t.Errorf("Verify1() error = %v, want ErrVerification", err)
		}
	})

	t.Run("[Unit] Verify1: other key", func(t *testing.T) {
		_, err := Verify1(data, generateKey(t, "p256_mldsa44"), []byte("aad"))
		if !errors.Is(err, crypto.ErrVerification) {
			t.Errorf("Verify1() error = %v, want ErrVerification", err)
		}
	})

	t.Run("[Unit] Verify1: algorithm mismatch", func(t *testing.T) {
		_, err := Verify1(data, generateKey(t, "mldsa44"), []byte("aad"))
		if !errors.Is(err, gocose.ErrAlgorithmMismatch) {
			t.Errorf("Verify1() error = %v, want ErrAlgorithmMismatch", err)
		}
	})

	t.Run("[Unit] Verify1: tampered payload", func(t *testing.T) {
		var sign1 gocose.Sign1Message
		if err := sign1.UnmarshalCBOR(data); err != nil {
			t.Fatal(err)
		}
		sign1.Payload = []byte("PAYLOAD")
		tampered, err := sign1.MarshalCBOR()
		if err != nil {
			t.Fatal(err)
		}
		if _, err := Verify1(tampered, k, []byte("aad")); !errors.Is(err, crypto.ErrVerification) {
			t.Errorf("Verify1() error = %v, want ErrVerification", err)
		}
	})

	t.Run("[Unit] Verify1: garbage", func(t *testing.T) {
		if _, err := Verify1([]byte{0xd2, 0x84}, k, nil); !errors.Is(err, ErrInvalidMessage) {
			t.Errorf("Verify1() error = %v, want ErrInvalidMessage", err)
		}
	})
}

func TestU_NewSigner_Rejects(t *testing.T) {
	if _, err := NewSigner(generateKey(t, "p256_mlkem512")); !errors.Is(err, crypto.ErrUnsupported) {
		t.Errorf("NewSigner(KEM) error = %v, want ErrUnsupported", err)
	}
	pub := publicOf(t, generateKey(t, "mldsa44"))
	if _, err := NewSigner(pub); !errors.Is(err, crypto.ErrNoPrivateKey) {
		t.Errorf("NewSigner(public) error = %v, want ErrNoPrivateKey", err)
	}
	if _, err := NewVerifier(pub); err != nil {
		t.Errorf("NewVerifier(public) error = %v", err)
	}
}

// =============================================================================
// [Unit] CWT
// =============================================================================

func TestU_CWT_RoundTrip(t *testing.T) {
	k := generateKey(t, "p256_mldsa44")
	claims := NewClaims()
	claims.Issuer = "pqhybrid"
	claims.Subject = "device-42"
	claims.SetExpiration(time.Hour)
	claims.Custom[-65537] = "tenant-a"

	data, err := IssueCWT(rand.Reader, claims, k, []byte("kid"))
	if err != nil {
		t.Fatalf("IssueCWT() error = %v", err)
	}

	got, err := VerifyCWT(data, k, time.Now())
	if err != nil {
		t.Fatalf("VerifyCWT() error = %v", err)
	}
	if got.Issuer != "pqhybrid" || got.Subject != "device-42" {
		t.Errorf("claims = %+v", got)
	}
	if !got.Expiration.Equal(claims.Expiration) || !got.IssuedAt.Equal(claims.IssuedAt) {
		t.Errorf("times = exp %v iat %v, want %v %v", got.Expiration, got.IssuedAt, claims.Expiration, claims.IssuedAt)
	}
	if !bytes.Equal(got.CWTID, claims.CWTID) || len(got.CWTID) != 16 {
		t.Errorf("CWTID = %x, want %x", got.CWTID, claims.CWTID)
	}
	if got.Custom[-65537] != "tenant-a" {
		t.Errorf("custom claim = %v", got.Custom[-65537])
	}
}

func TestU_CWT_ValidityWindow(t *testing.T) {
	k := generateKey(t, "mldsa44")
	claims := NewClaims()
	claims.NotBefore = time.Now().Add(time.Hour).Truncate(time.Second)
	claims.Expiration = time.Now().Add(2 * time.Hour).Truncate(time.Second)

	data, err := IssueCWT(rand.Reader, claims, k, nil)
	if err != nil {
		t.Fatalf("IssueCWT() error = %v", err)
	}
	if _, err := VerifyCWT(data, k, time.Now()); !errors.Is(err, ErrTokenNotYetValid) {
		t.Errorf("VerifyCWT(now) error = %v, want ErrTokenNotYetValid", err)
	}
	if _, err := VerifyCWT(data, k, time.Now().Add(3*time.Hour)); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("VerifyCWT(+3h) error = %v, want ErrTokenExpired", err)
	}
	if _, err := VerifyCWT(data, k, time.Now().Add(90*time.Minute)); err != nil {
		t.Errorf("VerifyCWT(+90m) error = %v", err)
	}
}

func TestU_VerifyCWT_NotACWT(t *testing.T) {
	k := generateKey(t, "mldsa44")
	data, err := Sign1(rand.Reader, []byte("plain"), k, nil)
	if err != nil {
		t.Fatalf("Sign1() error = %v", err)
	}
	if _, err := VerifyCWT(data, k, time.Now()); err == nil {
		t.Error("VerifyCWT() should reject a message without CWT content type")
	}
}
