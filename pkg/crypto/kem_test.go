package crypto

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"
)

var kemAlgorithms = []string{
	"mlkem512",
	"mlkem768",
	"mlkem1024",
	"kyber512",
	"frodo640shake",
	"p256_mlkem512",
	"p384_mlkem768",
	"p521_mlkem1024",
	"SecP256r1MLKEM768",
	"SecP384r1MLKEM1024",
	"p256_frodo640shake",
	"x25519_mlkem512",
	"x448_mlkem768",
	"X25519MLKEM768",
	"x25519_frodo640shake",
}

// =============================================================================
// [Unit] Encapsulate / Decapsulate
// =============================================================================

func TestU_HybridKEM_RoundTrip(t *testing.T) {
	for _, name := range kemAlgorithms {
		t.Run(name, func(t *testing.T) {
			k := mustGenerate(t, name)
			pk, err := k.Public()
			if err != nil {
				t.Fatalf("Public() error = %v", err)
			}
			defer pk.Free()

			ct, ss, err := pk.Encapsulate(rand.Reader)
			if err != nil {
				t.Fatalf("Encapsulate() error = %v", err)
			}
			ctLen, ssLen, _ := k.EncapsulationSizes()
			if len(ct) != ctLen || len(ss) != ssLen {
				t.Errorf("lengths = %d/%d, want %d/%d", len(ct), len(ss), ctLen, ssLen)
			}

			got, err := k.Decapsulate(ct)
			if err != nil {
				t.Fatalf("Decapsulate() error = %v", err)
			}
			if !bytes.Equal(got, ss) {
				t.Error("decapsulated shared secret differs")
			}
		})
	}
}

func TestU_HybridKEM_ImportedKeyDecapsulates(t *testing.T) {
	for _, name := range []string{"p256_mlkem512", "X25519MLKEM768", "x448_mlkem768"} {
		t.Run(name, func(t *testing.T) {
			k := mustGenerate(t, name)
			ct, ss, err := k.Encapsulate(rand.Reader)
			if err != nil {
				t.Fatalf("Encapsulate() error = %v", err)
			}

			priv, _ := k.ExportPrivate()
			imported, err := DefaultRegistry().ImportPrivate(name, priv)
			if err != nil {
				t.Fatalf("ImportPrivate() error = %v", err)
			}
			defer imported.Free()

			got, err := imported.Decapsulate(ct)
			if err != nil {
				t.Fatalf("Decapsulate() error = %v", err)
			}
			if !bytes.Equal(got, ss) {
				t.Error("imported key should recover the same shared secret")
			}
		})
	}
}

func TestU_HybridKEM_ShareOrder(t *testing.T) {
	tests := []struct {
		name    string
		reverse bool
	}{
		{"X25519MLKEM768", true},
		{"x25519_mlkem512", false},
		{"SecP256r1MLKEM768", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := mustGenerate(t, tt.name)
			d := k.Algorithm()
			eng, ok := d.KEM()
			if !ok {
				t.Fatal("descriptor should expose a KEM engine")
			}

			ct, ss, err := k.Encapsulate(rand.Reader)
			if err != nil {
				t.Fatalf("Encapsulate() error = %v", err)
			}

			pqCT, pqSS := ct[d.Classical.PubLen:], ss[d.Classical.SharedSecretLen:]
			if tt.reverse {
				pqCT, pqSS = ct[:eng.CiphertextSize()], ss[:eng.SharedSecretSize()]
			}

			want, err := eng.Decapsulate(k.PrivateComponent(k.PQIndex()), pqCT)
			if err != nil {
				t.Fatalf("engine Decapsulate() error = %v", err)
			}
			if !bytes.Equal(want, pqSS) {
				t.Errorf("post-quantum shared secret not at the expected position (reverse=%v)", tt.reverse)
			}
		})
	}
}

// =============================================================================
// [Unit] Size Query and Buffer Checks
// =============================================================================

func TestU_HybridKEM_SizeQuery(t *testing.T) {
	k := mustGenerate(t, "p256_mlkem512")

	ct1, ss1, err := k.EncapsulateInto(failingReader{}, nil, nil)
	if err != nil {
		t.Fatalf("size query error = %v", err)
	}
	ct2, ss2, err := k.EncapsulateInto(failingReader{}, nil, nil)
	if err != nil {
		t.Fatalf("size query error = %v", err)
	}
	if ct1 != ct2 || ss1 != ss2 {
		t.Error("size query should be stable across calls")
	}
	if ct1 != 65+768 || ss1 != 32+32 {
		t.Errorf("sizes = %d/%d, want %d/%d", ct1, ss1, 65+768, 64)
	}

	n, err := k.DecapsulateInto(nil, nil)
	if err != nil || n != ss1 {
		t.Errorf("DecapsulateInto(nil) = %d, %v; want %d", n, err, ss1)
	}
}

func TestU_HybridKEM_ShortBufferFailsBeforeEngine(t *testing.T) {
	k := mustGenerate(t, "x25519_mlkem512")
	ctLen, ssLen, _ := k.EncapsulationSizes()

	_, _, err := k.EncapsulateInto(failingReader{}, make([]byte, ctLen-1), make([]byte, ssLen))
	if !errors.Is(err, ErrFormat) {
		t.Errorf("short ciphertext buffer error = %v, want ErrFormat", err)
	}
	_, _, err = k.EncapsulateInto(failingReader{}, make([]byte, ctLen), make([]byte, ssLen-1))
	if !errors.Is(err, ErrFormat) {
		t.Errorf("short secret buffer error = %v, want ErrFormat", err)
	}

	ct, _, err := k.Encapsulate(rand.Reader)
	if err != nil {
		t.Fatalf("Encapsulate() error = %v", err)
	}
	if _, err := k.DecapsulateInto(ct, make([]byte, ssLen-1)); !errors.Is(err, ErrFormat) {
		t.Errorf("short decapsulation buffer error = %v, want ErrFormat", err)
	}
}

func TestU_HybridKEM_CiphertextLength(t *testing.T) {
	k := mustGenerate(t, "p384_mlkem768")
	ct, _, err := k.Encapsulate(rand.Reader)
	if err != nil {
		t.Fatalf("Encapsulate() error = %v", err)
	}
	if len(ct) != 97+1088 {
		t.Fatalf("ciphertext is %d bytes, want %d", len(ct), 97+1088)
	}

	for _, bad := range [][]byte{ct[:len(ct)-1], append(bytes.Clone(ct), 0), nil} {
		if _, err := k.Decapsulate(bad); !errors.Is(err, ErrFormat) {
			t.Errorf("Decapsulate(%d bytes) error = %v, want ErrFormat", len(bad), err)
		}
	}
}

func TestU_HybridKEM_TamperedClassicalCiphertext(t *testing.T) {
	k := mustGenerate(t, "p256_mlkem512")
	ct, _, err := k.Encapsulate(rand.Reader)
	if err != nil {
		t.Fatalf("Encapsulate() error = %v", err)
	}
	ct[0] = 0x05 // not an uncompressed point
	_, err = k.Decapsulate(ct)
	var ee *EngineError
	if !errors.As(err, &ee) || ee.Component != "classical" {
		t.Errorf("error = %v, want classical *EngineError", err)
	}
}

func TestU_HybridKEM_Unsupported(t *testing.T) {
	sig := mustGenerate(t, "p256_mldsa44")
	if _, _, err := sig.Encapsulate(rand.Reader); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Encapsulate() on signature key error = %v, want ErrUnsupported", err)
	}

	k := mustGenerate(t, "mlkem512")
	pk, _ := k.Public()
	defer pk.Free()
	ct, _, _ := pk.Encapsulate(rand.Reader)
	if _, err := pk.Decapsulate(ct); !errors.Is(err, ErrNoPrivateKey) {
		t.Errorf("Decapsulate() with public key error = %v, want ErrNoPrivateKey", err)
	}
}

func TestU_HybridKEM_Deterministic(t *testing.T) {
	k := mustGenerate(t, "x25519_mlkem512")

	ct1, ss1, err := k.Encapsulate(newSeededReader(t, 3))
	if err != nil {
		t.Fatalf("Encapsulate() error = %v", err)
	}
	ct2, ss2, err := k.Encapsulate(newSeededReader(t, 3))
	if err != nil {
		t.Fatalf("Encapsulate() error = %v", err)
	}
	if !bytes.Equal(ct1, ct2) || !bytes.Equal(ss1, ss2) {
		t.Error("same randomness should produce the same encapsulation")
	}
}
