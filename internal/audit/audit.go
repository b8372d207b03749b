package audit

import (
	"errors"
	"fmt"
	"sync"

	"github.com/remiblancher/pqhybrid/pkg/crypto"
)

var (
	// globalWriter is the default audit writer.
	globalWriter Writer = NopWriter{}
	globalMu     sync.RWMutex

	// enabled tracks whether audit logging is active.
	enabled bool
)

// Failure reasons recorded in Context.Reason.
const (
	ReasonFormat       = "format"
	ReasonVerification = "verification"
	ReasonEngine       = "engine"
	ReasonError        = "error"
)

// Init installs w as the global audit writer. A nil writer disables auditing.
func Init(w Writer) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if w == nil {
		globalWriter = NopWriter{}
		enabled = false
		return nil
	}

	globalWriter = w
	enabled = true
	return nil
}

// InitFile initializes the global audit logger with a file writer.
// An empty path disables auditing.
func InitFile(path string) error {
	if path == "" {
		return Init(nil)
	}

	w, err := NewFileWriter(path)
	if err != nil {
		return err
	}
	return Init(w)
}

// Close closes the global audit writer and disables auditing.
func Close() error {
	globalMu.Lock()
	defer globalMu.Unlock()

	err := globalWriter.Close()
	globalWriter = NopWriter{}
	enabled = false
	return err
}

// Enabled returns whether audit logging is active.
func Enabled() bool {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return enabled
}

// Log writes an audit event to the global writer.
func Log(event *Event) error {
	globalMu.RLock()
	w := globalWriter
	globalMu.RUnlock()

	return w.Write(event)
}

// MustLog writes an audit event and returns an error suitable for
// failing the parent operation.
//
//	if err := audit.MustLog(event); err != nil {
//	    return nil, err
//	}
func MustLog(event *Event) error {
	if err := Log(event); err != nil {
		return fmt.Errorf("audit log failed: %w", err)
	}
	return nil
}

func resultOf(err error) Result {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}

// Classify maps an operation error to a failure reason and, when known,
// the failing component. Malformed input and failed verification are
// always reported under different reasons.
func Classify(err error) (reason, component string) {
	var (
		ve *crypto.VerificationError
		ee *crypto.EngineError
	)
	switch {
	case err == nil:
		return "", ""
	case errors.As(err, &ve):
		return ReasonVerification, ve.Component
	case errors.Is(err, crypto.ErrFormat):
		return ReasonFormat, ""
	case errors.As(err, &ee):
		return ReasonEngine, ee.Component
	default:
		return ReasonError, ""
	}
}

func keyEvent(t EventType, keyID, algorithm string, err error) *Event {
	reason, component := Classify(err)
	return NewEvent(t, resultOf(err)).
		WithObject(Object{Type: "key", ID: keyID}).
		WithContext(Context{
			Algorithm: algorithm,
			Reason:    reason,
			Component: component,
		})
}

// LogKeyGenerated logs a key generation.
func LogKeyGenerated(keyID, algorithm string, err error) error {
	return MustLog(keyEvent(EventKeyGenerated, keyID, algorithm, err))
}

// LogKeyImported logs a key import from path (empty for in-memory imports).
func LogKeyImported(keyID, path, algorithm string, private bool, err error) error {
	event := keyEvent(EventKeyImported, keyID, algorithm, err)
	event.Object.Path = path
	event.Context.Private = private
	return MustLog(event)
}

// LogKeyExported logs a key export to path.
func LogKeyExported(keyID, path, algorithm string, private bool) error {
	event := keyEvent(EventKeyExported, keyID, algorithm, nil)
	event.Object.Path = path
	event.Context.Private = private
	return MustLog(event)
}

// LogKeyReleased logs the release of a key's last reference.
func LogKeyReleased(keyID, algorithm string) error {
	return MustLog(keyEvent(EventKeyReleased, keyID, algorithm, nil))
}

// LogSign logs a signature over a message of size bytes.
func LogSign(keyID, algorithm string, size int, err error) error {
	event := keyEvent(EventSign, keyID, algorithm, err)
	event.Context.Size = size
	return MustLog(event)
}

// LogVerify logs a signature check. A failed check records whether the
// signature was malformed (reason=format) or did not verify
// (reason=verification, with the failing component).
func LogVerify(keyID, algorithm string, size int, err error) error {
	event := keyEvent(EventVerify, keyID, algorithm, err)
	event.Context.Size = size
	return MustLog(event)
}

// LogEncapsulate logs a key encapsulation.
func LogEncapsulate(keyID, algorithm string, err error) error {
	return MustLog(keyEvent(EventEncapsulate, keyID, algorithm, err))
}

// LogDecapsulate logs a decapsulation of a ciphertext of size bytes.
func LogDecapsulate(keyID, algorithm string, size int, err error) error {
	event := keyEvent(EventDecapsulate, keyID, algorithm, err)
	event.Context.Size = size
	return MustLog(event)
}
