package crypto

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
)

// fastAlgorithms covers every category and classical family except RSA,
// whose key generation is too slow to repeat in every test.
var fastAlgorithms = []string{
	"mlkem512",
	"mlkem768",
	"kyber768",
	"mldsa44",
	"mldsa65",
	"p256_mlkem512",
	"p384_mlkem768",
	"p521_mlkem1024",
	"SecP256r1MLKEM768",
	"x25519_mlkem512",
	"x448_mlkem768",
	"X25519MLKEM768",
	"p256_mldsa44",
	"p384_mldsa65",
	"p521_mldsa87",
}

// =============================================================================
// [Unit] Generate / Export / Import
// =============================================================================

func TestU_CompositeKey_ExportImportIdempotent(t *testing.T) {
	for _, name := range fastAlgorithms {
		t.Run(name, func(t *testing.T) {
			k := mustGenerate(t, name)

			priv, err := k.ExportPrivate()
			if err != nil {
				t.Fatalf("ExportPrivate() error = %v", err)
			}
			pub, err := k.ExportPublic()
			if err != nil {
				t.Fatalf("ExportPublic() error = %v", err)
			}

			imported, err := DefaultRegistry().ImportPrivate(name, priv)
			if err != nil {
				t.Fatalf("ImportPrivate() error = %v", err)
			}
			defer imported.Free()

			priv2, _ := imported.ExportPrivate()
			pub2, _ := imported.ExportPublic()
			if !bytes.Equal(priv, priv2) {
				t.Error("private key changed across export/import")
			}
			if !bytes.Equal(pub, pub2) {
				t.Error("public key re-derived from private key differs from the original")
			}

			pubOnly, err := DefaultRegistry().ImportPublic(name, pub)
			if err != nil {
				t.Fatalf("ImportPublic() error = %v", err)
			}
			defer pubOnly.Free()
			if pubOnly.HasPrivate() {
				t.Error("public import should not carry a private key")
			}
			pub3, _ := pubOnly.ExportPublic()
			if !bytes.Equal(pub, pub3) {
				t.Error("public key changed across export/import")
			}
		})
	}
}

func TestU_CompositeKey_LengthInvariants(t *testing.T) {
	for _, name := range fastAlgorithms {
		t.Run(name, func(t *testing.T) {
			k := mustGenerate(t, name)
			d := k.Algorithm()
			priv, _ := k.ExportPrivate()
			pub, _ := k.ExportPublic()

			if !d.IsHybrid() {
				if len(priv) != d.PQ.PrivateKeySize() || len(pub) != d.PQ.PublicKeySize() {
					t.Errorf("plain key lengths = %d/%d, want %d/%d",
						len(priv), len(pub), d.PQ.PrivateKeySize(), d.PQ.PublicKeySize())
				}
				return
			}

			clPriv := int(binary.BigEndian.Uint32(priv))
			clPub := int(binary.BigEndian.Uint32(pub))
			if len(priv) != 4+clPriv+d.PQ.PrivateKeySize() || clPriv > d.Classical.PrivLen {
				t.Errorf("private key is %d bytes with classical %d", len(priv), clPriv)
			}
			if len(pub) != 4+clPub+d.PQ.PublicKeySize() || clPub > d.Classical.PubLen {
				t.Errorf("public key is %d bytes with classical %d", len(pub), clPub)
			}
			if d.Classical.RawKeySupport && (clPriv != d.Classical.PrivLen || clPub != d.Classical.PubLen) {
				t.Errorf("raw classical lengths = %d/%d, want %d/%d", clPriv, clPub, d.Classical.PrivLen, d.Classical.PubLen)
			}
		})
	}
}

func TestU_CompositeKey_ComponentViews(t *testing.T) {
	k := mustGenerate(t, "X25519MLKEM768")
	pub, _ := k.ExportPublic()

	if k.ComponentCount() != 2 || k.PQIndex() != 1 || k.ClassicalIndex() != 0 {
		t.Fatalf("indexes = count %d pq %d classical %d", k.ComponentCount(), k.PQIndex(), k.ClassicalIndex())
	}
	if !k.ReverseShare() {
		t.Fatal("X25519MLKEM768 should be PQ-first")
	}

	pqLen := k.Algorithm().PQ.PublicKeySize()
	if !bytes.Equal(k.PublicComponent(k.PQIndex()), pub[4:4+pqLen]) {
		t.Error("post-quantum component should be stored first")
	}
	if !bytes.Equal(k.PublicComponent(k.ClassicalIndex()), pub[4+pqLen:]) {
		t.Error("classical component should be stored last")
	}
	if k.PublicComponent(2) != nil || k.PublicComponent(-1) != nil {
		t.Error("out-of-range component should be nil")
	}

	plain := mustGenerate(t, "mlkem512")
	if plain.ComponentCount() != 1 || plain.PQIndex() != 0 || plain.ClassicalIndex() != -1 {
		t.Error("plain key should have a single post-quantum component")
	}
}

func TestU_CompositeKey_ComponentsAreCopies(t *testing.T) {
	k := mustGenerate(t, "p256_mlkem512")
	c := k.PrivateComponent(k.PQIndex())
	clear(c)
	if bytes.Equal(k.PrivateComponent(k.PQIndex()), c) {
		t.Error("mutating a returned component must not change the key")
	}
}

// =============================================================================
// [Unit] Import Errors
// =============================================================================

func TestU_CompositeKey_ImportErrors(t *testing.T) {
	k := mustGenerate(t, "p256_mlkem512")
	priv, _ := k.ExportPrivate()
	pub, _ := k.ExportPublic()

	t.Run("[Unit] Import: truncated private key", func(t *testing.T) {
		_, err := DefaultRegistry().ImportPrivate("p256_mlkem512", priv[:len(priv)-1])
		if !errors.Is(err, ErrFormat) {
			t.Errorf("error = %v, want ErrFormat", err)
		}
	})

	t.Run("[Unit] Import: corrupted classical DER", func(t *testing.T) {
		bad := bytes.Clone(priv)
		bad[4] ^= 0xFF // SEQUENCE tag
		_, err := DefaultRegistry().ImportPrivate("p256_mlkem512", bad)
		var ee *EngineError
		if !errors.As(err, &ee) || ee.Component != "classical" {
			t.Errorf("error = %v, want classical *EngineError", err)
		}
		if errors.Is(err, ErrFormat) {
			t.Error("engine failures must not match ErrFormat")
		}
	})

	t.Run("[Unit] Import: point not on curve", func(t *testing.T) {
		bad := bytes.Clone(pub)
		bad[10] ^= 0x01
		_, err := DefaultRegistry().ImportPublic("p256_mlkem512", bad)
		if !errors.Is(err, ErrEngine) {
			t.Errorf("error = %v, want ErrEngine", err)
		}
	})

	t.Run("[Unit] Import: unknown algorithm", func(t *testing.T) {
		_, err := DefaultRegistry().ImportPrivate("p256_unknown", priv)
		if !errors.Is(err, ErrUnknownAlgorithm) {
			t.Errorf("error = %v, want ErrUnknownAlgorithm", err)
		}
	})

	t.Run("[Unit] Import: wrong algorithm", func(t *testing.T) {
		_, err := DefaultRegistry().ImportPrivate("p384_mlkem768", priv)
		if !errors.Is(err, ErrFormat) {
			t.Errorf("error = %v, want ErrFormat", err)
		}
	})
}

// =============================================================================
// [Unit] Reference Counting
// =============================================================================

func TestU_CompositeKey_FreeZeroizes(t *testing.T) {
	k, err := DefaultRegistry().Generate(rand.Reader, "x25519_mlkem512")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	internal := k.privKey
	classical := k.classical

	if err := k.UpRef(); err != nil {
		t.Fatalf("UpRef() error = %v", err)
	}
	k.Free()
	if _, err := k.ExportPrivate(); err != nil {
		t.Fatalf("key should survive while a reference remains: %v", err)
	}

	k.Free()
	if !bytes.Equal(internal, make([]byte, len(internal))) {
		t.Error("private buffer should be zeroized after the last Free")
	}
	if classical.HasPrivate() {
		t.Error("classical engine key should be destroyed after the last Free")
	}
	if _, err := classical.PrivateBytes(); err == nil {
		t.Error("classical engine key still exports its scalar after Free")
	}
	if _, err := k.ExportPrivate(); !errors.Is(err, ErrKeyReleased) {
		t.Errorf("ExportPrivate() after Free error = %v, want ErrKeyReleased", err)
	}
	if _, _, err := k.Encapsulate(rand.Reader); !errors.Is(err, ErrKeyReleased) {
		t.Errorf("Encapsulate() after Free error = %v, want ErrKeyReleased", err)
	}
	if err := k.UpRef(); !errors.Is(err, ErrKeyReleased) {
		t.Errorf("UpRef() after Free error = %v, want ErrKeyReleased", err)
	}
	if k.HasPrivate() {
		t.Error("released key should not report a private key")
	}
}

func TestU_CompositeKey_ConcurrentUse(t *testing.T) {
	k := mustGenerate(t, "p256_mldsa44")
	msg := []byte("shared across goroutines")

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		if err := k.UpRef(); err != nil {
			t.Fatalf("UpRef() error = %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer k.Free()
			sig, err := k.Sign(rand.Reader, msg, nil)
			if err == nil {
				err = k.Verify(msg, sig, nil)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("concurrent sign/verify error = %v", err)
		}
	}
	if _, err := k.ExportPrivate(); err != nil {
		t.Errorf("key should still be live: %v", err)
	}
}

func TestU_CompositeKey_Public(t *testing.T) {
	k := mustGenerate(t, "p384_mldsa65")
	pk, err := k.Public()
	if err != nil {
		t.Fatalf("Public() error = %v", err)
	}
	defer pk.Free()

	if pk.HasPrivate() {
		t.Error("Public() should drop the private key")
	}
	if _, err := pk.ExportPrivate(); !errors.Is(err, ErrNoPrivateKey) {
		t.Errorf("ExportPrivate() error = %v, want ErrNoPrivateKey", err)
	}

	sig, err := k.Sign(rand.Reader, []byte("m"), nil)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if err := pk.Verify([]byte("m"), sig, nil); err != nil {
		t.Errorf("public key Verify() error = %v", err)
	}
}

// =============================================================================
// [Unit] Determinism
// =============================================================================

func TestU_CompositeKey_DeterministicGeneration(t *testing.T) {
	d := mustLookup(t, "x25519_mlkem512")

	a, err := GenerateKey(newSeededReader(t, 7), d)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	defer a.Free()
	b, err := GenerateKey(newSeededReader(t, 7), d)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	defer b.Free()

	pa, _ := a.ExportPrivate()
	pb, _ := b.ExportPrivate()
	if !bytes.Equal(pa, pb) {
		t.Error("same randomness should produce the same key")
	}
}
