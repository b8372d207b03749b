package service

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"

	"github.com/remiblancher/pqhybrid/internal/api/dto"
	"github.com/remiblancher/pqhybrid/internal/audit"
	"github.com/remiblancher/pqhybrid/pkg/crypto"
)

func newTestService(t *testing.T, maxKeys int) *KeyService {
	t.Helper()
	s := NewKeyService(Config{DefaultAlgorithm: "p256_mlkem512", MaxKeys: maxKeys})
	t.Cleanup(s.Close)
	return s
}

func mustGenerate(t *testing.T, s *KeyService, alg string) *dto.KeyResponse {
	t.Helper()
	resp, err := s.Generate(context.Background(), &dto.KeyGenerateRequest{Algorithm: alg})
	if err != nil {
		t.Fatalf("Generate(%s) error = %v", alg, err)
	}
	return resp
}

// =============================================================================
// [Unit] Keystore
// =============================================================================

func TestU_KeyService_GenerateDefault(t *testing.T) {
	s := newTestService(t, 4)
	resp := mustGenerate(t, s, "")

	if resp.Algorithm.Name != "p256_mlkem512" || resp.Algorithm.Type != "kem" || !resp.Algorithm.Hybrid {
		t.Errorf("Algorithm = %+v", resp.Algorithm)
	}
	if !resp.HasPrivate || resp.ID == "" || resp.PublicKey.Encoding != "pem" {
		t.Errorf("response = %+v", resp)
	}
	if s.Count() != 1 {
		t.Errorf("Count() = %d, want 1", s.Count())
	}
}

func TestU_KeyService_Full(t *testing.T) {
	s := newTestService(t, 1)
	mustGenerate(t, s, "mlkem512")
	if _, err := s.Generate(context.Background(), &dto.KeyGenerateRequest{Algorithm: "mlkem512"}); !errors.Is(err, ErrKeystoreFull) {
		t.Errorf("Generate() error = %v, want ErrKeystoreFull", err)
	}
}

func TestU_KeyService_UnknownAlgorithm(t *testing.T) {
	s := newTestService(t, 4)
	_, err := s.Generate(context.Background(), &dto.KeyGenerateRequest{Algorithm: "p256_nothing"})
	if !errors.Is(err, crypto.ErrUnknownAlgorithm) {
		t.Errorf("Generate() error = %v, want ErrUnknownAlgorithm", err)
	}
}

func TestU_KeyService_DeleteAndGet(t *testing.T) {
	s := newTestService(t, 4)
	resp := mustGenerate(t, s, "mldsa44")
	ctx := context.Background()

	if _, err := s.Get(ctx, resp.ID); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if err := s.Delete(ctx, resp.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, resp.ID); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get() after Delete error = %v, want ErrKeyNotFound", err)
	}
	if err := s.Delete(ctx, resp.ID); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("second Delete() error = %v, want ErrKeyNotFound", err)
	}
}

func TestU_KeyService_DeleteKeepsInflightReference(t *testing.T) {
	s := newTestService(t, 4)
	resp := mustGenerate(t, s, "x25519_mlkem512")
	ctx := context.Background()

	k, err := s.acquire(ctx, resp.ID)
	if err != nil {
		t.Fatalf("acquire() error = %v", err)
	}
	if err := s.Delete(ctx, resp.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	// The in-flight reference keeps the key usable.
	ct, ss, err := k.Encapsulate(s.rand)
	if err != nil {
		t.Fatalf("Encapsulate() on held key error = %v", err)
	}
	got, err := k.Decapsulate(ct)
	if err != nil || string(got) != string(ss) {
		t.Fatalf("Decapsulate() on held key = %v", err)
	}

	k.Free()
	if _, _, err := k.Encapsulate(s.rand); !errors.Is(err, crypto.ErrKeyReleased) {
		t.Errorf("Encapsulate() after last Free error = %v, want ErrKeyReleased", err)
	}
}

func TestU_KeyService_ListOrder(t *testing.T) {
	s := newTestService(t, 8)
	a := mustGenerate(t, s, "mlkem512")
	b := mustGenerate(t, s, "mldsa44")

	list, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list.Keys) != 2 {
		t.Fatalf("List() returned %d keys, want 2", len(list.Keys))
	}
	ids := map[string]bool{list.Keys[0].ID: true, list.Keys[1].ID: true}
	if !ids[a.ID] || !ids[b.ID] {
		t.Errorf("List() ids = %v, want %s and %s", ids, a.ID, b.ID)
	}
}

func TestU_KeyService_ImportPEM(t *testing.T) {
	s := newTestService(t, 4)
	src, err := crypto.DefaultRegistry().Generate(s.rand, "p384_mldsa65")
	if err != nil {
		t.Fatal(err)
	}
	defer src.Free()

	pemPub, err := crypto.EncodePEM(src, false)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := s.Import(context.Background(), &dto.KeyImportRequest{Key: dto.PEM(pemPub)})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if resp.HasPrivate || resp.Algorithm.Name != "p384_mldsa65" {
		t.Errorf("Import() = %+v", resp)
	}

	// The public key verifies a signature made by the source key.
	sig, err := src.Sign(s.rand, []byte("msg"), nil)
	if err != nil {
		t.Fatal(err)
	}
	v, err := s.Verify(context.Background(), resp.ID, &dto.VerifyRequest{
		Message:   dto.Base64([]byte("msg")),
		Signature: dto.Base64(sig),
	})
	if err != nil || !v.Valid {
		t.Errorf("Verify() = %+v, %v", v, err)
	}

	if _, err := s.Sign(context.Background(), resp.ID, &dto.SignRequest{Message: dto.Base64([]byte("x"))}); !errors.Is(err, crypto.ErrNoPrivateKey) {
		t.Errorf("Sign() with public key error = %v, want ErrNoPrivateKey", err)
	}
}

func TestU_KeyService_ImportDER(t *testing.T) {
	s := newTestService(t, 4)
	src, err := crypto.DefaultRegistry().Generate(s.rand, "mlkem768")
	if err != nil {
		t.Fatal(err)
	}
	defer src.Free()

	der, err := crypto.MarshalPKCS8PrivateKey(src)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := s.Import(context.Background(), &dto.KeyImportRequest{Key: dto.Base64(der), Private: true})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if !resp.HasPrivate {
		t.Error("imported PKCS#8 key should have a private component")
	}

	_, err = s.Import(context.Background(), &dto.KeyImportRequest{Key: dto.BinaryData{Data: "%%%"}})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Import(bad base64) error = %v, want ErrInvalidRequest", err)
	}
	_, err = s.Import(context.Background(), &dto.KeyImportRequest{Key: dto.Base64([]byte{0x30, 0x00})})
	if !errors.Is(err, crypto.ErrFormat) {
		t.Errorf("Import(empty SEQUENCE) error = %v, want ErrFormat", err)
	}
}

// =============================================================================
// [Unit] Operations
// =============================================================================

func TestU_KeyService_SignVerify(t *testing.T) {
	s := newTestService(t, 4)
	id := mustGenerate(t, s, "p256_mldsa44").ID
	ctx := context.Background()
	msg := dto.Base64([]byte("hello"))

	sig, err := s.Sign(ctx, id, &dto.SignRequest{Message: msg})
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	raw, _ := base64.StdEncoding.DecodeString(sig.Signature.Data)
	if sig.Size != len(raw) {
		t.Errorf("Size = %d, want %d", sig.Size, len(raw))
	}

	v, err := s.Verify(ctx, id, &dto.VerifyRequest{Message: msg, Signature: sig.Signature})
	if err != nil || !v.Valid {
		t.Fatalf("Verify() = %+v, %v", v, err)
	}

	t.Run("[Unit] Verify: wrong message is invalid, not an error", func(t *testing.T) {
		v, err := s.Verify(ctx, id, &dto.VerifyRequest{Message: dto.Base64([]byte("bye")), Signature: sig.Signature})
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
		if v.Valid || v.Component != "classical" {
			t.Errorf("Verify() = %+v, want invalid classical", v)
		}
	})

	t.Run("[Unit] Verify: truncated signature is a format error", func(t *testing.T) {
		_, err := s.Verify(ctx, id, &dto.VerifyRequest{Message: msg, Signature: dto.Base64(raw[:3])})
		if !errors.Is(err, crypto.ErrFormat) {
			t.Errorf("Verify() error = %v, want ErrFormat", err)
		}
	})

	t.Run("[Unit] Sign: context bound to signature", func(t *testing.T) {
		c := dto.Base64([]byte("ctx"))
		sig, err := s.Sign(ctx, id, &dto.SignRequest{Message: msg, Context: &c})
		if err != nil {
			t.Fatalf("Sign() error = %v", err)
		}
		v, err := s.Verify(ctx, id, &dto.VerifyRequest{Message: msg, Signature: sig.Signature})
		if err != nil || v.Valid || v.Component != "pq" {
			t.Errorf("Verify() without context = %+v, %v; want invalid pq", v, err)
		}
	})
}

func TestU_KeyService_EncapsulateDecapsulate(t *testing.T) {
	s := newTestService(t, 4)
	id := mustGenerate(t, s, "X25519MLKEM768").ID
	ctx := context.Background()

	enc, err := s.Encapsulate(ctx, id)
	if err != nil {
		t.Fatalf("Encapsulate() error = %v", err)
	}
	dec, err := s.Decapsulate(ctx, id, &dto.DecapsulateRequest{Ciphertext: enc.Ciphertext})
	if err != nil {
		t.Fatalf("Decapsulate() error = %v", err)
	}
	if dec.SharedSecret.Data != enc.SharedSecret.Data {
		t.Error("shared secrets differ")
	}

	if _, err := s.Decapsulate(ctx, id, &dto.DecapsulateRequest{Ciphertext: dto.Base64([]byte{1, 2, 3})}); !errors.Is(err, crypto.ErrFormat) {
		t.Errorf("Decapsulate(short) error = %v, want ErrFormat", err)
	}
	if _, err := s.Sign(ctx, id, &dto.SignRequest{Message: dto.Base64([]byte("x"))}); !errors.Is(err, crypto.ErrUnsupported) {
		t.Errorf("Sign() on KEM key error = %v, want ErrUnsupported", err)
	}
}

func TestU_KeyService_COSE(t *testing.T) {
	s := newTestService(t, 4)
	id := mustGenerate(t, s, "p256_mldsa44").ID
	ctx := context.Background()

	signed, err := s.COSESign(ctx, id, &dto.COSESignRequest{Payload: dto.Base64([]byte("payload")), ContentType: "text/plain"})
	if err != nil {
		t.Fatalf("COSESign() error = %v", err)
	}
	if signed.Algorithm != "p256_mldsa44" || signed.AlgorithmID != -70101 {
		t.Errorf("COSESign() = %+v", signed)
	}

	v, err := s.COSEVerify(ctx, id, &dto.COSEVerifyRequest{Message: signed.Message})
	if err != nil || !v.Valid {
		t.Fatalf("COSEVerify() = %+v, %v", v, err)
	}
	if v.ContentType != "text/plain" || v.Payload == nil || v.Payload.Data != dto.Base64([]byte("payload")).Data {
		t.Errorf("COSEVerify() = %+v", v)
	}

	ext := dto.Base64([]byte("aad"))
	v, err = s.COSEVerify(ctx, id, &dto.COSEVerifyRequest{Message: signed.Message, External: &ext})
	if err != nil || v.Valid {
		t.Errorf("COSEVerify() with foreign external data = %+v, %v; want invalid", v, err)
	}
}

func TestU_KeyService_AuditTrail(t *testing.T) {
	w := audit.NewMemoryWriter()
	_ = audit.Init(w)
	defer func() { _ = audit.Close() }()

	s := NewKeyService(Config{MaxKeys: 4})
	id := mustGenerate(t, s, "mldsa44").ID
	ctx := context.Background()
	if _, err := s.Sign(ctx, id, &dto.SignRequest{Message: dto.Base64([]byte("m"))}); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, id); err != nil {
		t.Fatal(err)
	}
	s.Close()

	want := []audit.EventType{audit.EventKeyGenerated, audit.EventSign, audit.EventKeyReleased}
	events := w.Events()
	if len(events) != len(want) {
		t.Fatalf("recorded %d events, want %d", len(events), len(want))
	}
	for i, e := range events {
		if e.EventType != want[i] || e.Object.ID != id {
			t.Errorf("event %d = %s/%s, want %s/%s", i, e.EventType, e.Object.ID, want[i], id)
		}
	}
}

func TestU_KeyService_ConcurrentUseAndDelete(t *testing.T) {
	s := newTestService(t, 4)
	id := mustGenerate(t, s, "mldsa44").ID
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Sign(ctx, id, &dto.SignRequest{Message: dto.Base64([]byte("m"))})
			if err != nil && !errors.Is(err, ErrKeyNotFound) {
				t.Errorf("Sign() error = %v", err)
			}
		}()
	}
	_ = s.Delete(ctx, id)
	wg.Wait()
}

func TestU_KeyService_CanceledContext(t *testing.T) {
	s := newTestService(t, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Generate(ctx, &dto.KeyGenerateRequest{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Generate() error = %v, want context.Canceled", err)
	}
}
