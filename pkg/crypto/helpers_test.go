package crypto

import (
	"crypto/rand"
	"errors"
	"io"
	"testing"

	"golang.org/x/crypto/chacha20"
)

// seededReader is a deterministic randomness source for reproducibility tests.
type seededReader struct {
	c *chacha20.Cipher
}

func newSeededReader(t *testing.T, seed byte) io.Reader {
	t.Helper()
	key := make([]byte, chacha20.KeySize)
	for i := range key {
		key[i] = seed
	}
	c, err := chacha20.NewUnauthenticatedCipher(key, make([]byte, chacha20.NonceSize))
	if err != nil {
		t.Fatalf("chacha20: %v", err)
	}
	return &seededReader{c: c}
}

func (r *seededReader) Read(p []byte) (int, error) {
	clear(p)
	r.c.XORKeyStream(p, p)
	return len(p), nil
}

// failingReader fails every read; used to prove no engine was reached.
type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("randomness must not be consumed")
}

func mustLookup(t *testing.T, name string) *AlgorithmDescriptor {
	t.Helper()
	d, err := DefaultRegistry().Lookup(name)
	if err != nil {
		t.Fatalf("Lookup(%s) error = %v", name, err)
	}
	return d
}

func mustGenerate(t *testing.T, name string) *CompositeKey {
	t.Helper()
	k, err := DefaultRegistry().Generate(rand.Reader, name)
	if err != nil {
		t.Fatalf("Generate(%s) error = %v", name, err)
	}
	t.Cleanup(k.Free)
	return k
}
