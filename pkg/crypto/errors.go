package crypto

import (
	"errors"
	"fmt"
)

// Error classes. Failures caused by key material, engines or signatures
// match exactly one of these through errors.Is.
var (
	// ErrFormat indicates structurally invalid input: bad lengths, headers or buffer sizes.
	ErrFormat = errors.New("malformed input")

	// ErrEngine indicates a failure reported by a classical or post-quantum engine.
	ErrEngine = errors.New("engine failure")

	// ErrVerification indicates a well-formed signature that did not verify.
	ErrVerification = errors.New("signature verification failed")
)

// Sentinel errors for key operations.
var (
	// ErrUnknownAlgorithm indicates the algorithm name or OID is not registered.
	ErrUnknownAlgorithm = errors.New("unknown algorithm")

	// ErrUnsupported indicates the operation does not apply to the key's algorithm.
	ErrUnsupported = errors.New("operation not supported for algorithm")

	// ErrKeyReleased indicates the key was used after its last reference was freed.
	ErrKeyReleased = errors.New("key has been released")

	// ErrNoPrivateKey indicates a private operation on a public-only key.
	ErrNoPrivateKey = errors.New("key has no private component")
)

// FormatError reports malformed key material, ciphertext, signature or buffer.
type FormatError struct {
	Op        string // Operation: "split", "concat", "encapsulate", "decapsulate", "sign", "verify", "import"
	Algorithm string
	Reason    string
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	if e.Algorithm != "" {
		return fmt.Sprintf("%s [%s]: malformed input: %s", e.Op, e.Algorithm, e.Reason)
	}
	return fmt.Sprintf("%s: malformed input: %s", e.Op, e.Reason)
}

// Is matches ErrFormat.
func (e *FormatError) Is(target error) bool { return target == ErrFormat }

func formatErrorf(op, alg, format string, args ...any) *FormatError {
	return &FormatError{Op: op, Algorithm: alg, Reason: fmt.Sprintf(format, args...)}
}

// EngineError reports a failure inside a primitive engine.
type EngineError struct {
	Op        string
	Algorithm string
	Component string // "classical" or "pq"
	Err       error
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	return fmt.Sprintf("%s [%s]: %s engine: %v", e.Op, e.Algorithm, e.Component, e.Err)
}

// Unwrap returns the underlying engine error.
func (e *EngineError) Unwrap() error { return e.Err }

// Is matches ErrEngine.
func (e *EngineError) Is(target error) bool { return target == ErrEngine }

// VerificationError reports a signature component that failed to verify.
type VerificationError struct {
	Algorithm string
	Component string // "classical" or "pq"
}

// Error implements the error interface.
func (e *VerificationError) Error() string {
	return fmt.Sprintf("verify [%s]: %s signature verification failed", e.Algorithm, e.Component)
}

// Is matches ErrVerification.
func (e *VerificationError) Is(target error) bool { return target == ErrVerification }

const (
	componentClassical = "classical"
	componentPQ        = "pq"
)
