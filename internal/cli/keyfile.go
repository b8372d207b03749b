// Package cli holds helpers shared by the pqhybrid commands: key file I/O,
// input and output plumbing, and terminal formatting.
package cli

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/remiblancher/pqhybrid/pkg/crypto"
	"github.com/remiblancher/pqhybrid/pkg/engine"
)

// Stdio is the path that designates standard input or output.
const Stdio = "-"

// LoadKey reads a key file. PEM files may hold a PKCS #8 private key or a
// SubjectPublicKeyInfo; DER files are tried as PKCS #8 first.
func LoadKey(reg *crypto.Registry, path string) (*crypto.CompositeKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	defer engine.Zeroize(data)
	return ParseKey(reg, data)
}

// ParseKey decodes PEM or DER key material.
func ParseKey(reg *crypto.Registry, data []byte) (*crypto.CompositeKey, error) {
	if bytes.Contains(data, []byte("-----BEGIN")) {
		return reg.DecodePEM(data)
	}
	k, err := reg.ParsePKCS8PrivateKey(data)
	if err == nil {
		return k, nil
	}
	if !errors.Is(err, crypto.ErrFormat) {
		return nil, err
	}
	return reg.ParsePKIXPublicKey(data)
}

// SaveKey writes k as PEM to path, or to w when path is "-" or empty.
// Private key files are written with mode 0600.
func SaveKey(w io.Writer, path string, k *crypto.CompositeKey, private bool) error {
	data, err := crypto.EncodePEM(k, private)
	if err != nil {
		return err
	}
	defer engine.Zeroize(data)

	perm := os.FileMode(0644)
	if private {
		perm = 0600
	}
	return WriteOutput(w, path, data, perm)
}

// KeyID returns a short fingerprint of the public key of k: the first
// 16 bytes of the SHA-256 of its SubjectPublicKeyInfo, hex encoded.
func KeyID(k *crypto.CompositeKey) (string, error) {
	der, err := crypto.MarshalPKIXPublicKey(k)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:16]), nil
}

// IsPEM reports whether data starts with a PEM block.
func IsPEM(data []byte) bool {
	block, _ := pem.Decode(data)
	return block != nil
}

// ReadInput reads path, or stdin when path is "-" or empty.
func ReadInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "" || path == Stdio {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// WriteOutput writes data to path, or to stdout when path is "-" or empty.
func WriteOutput(stdout io.Writer, path string, data []byte, perm os.FileMode) error {
	if path == "" || path == Stdio {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
