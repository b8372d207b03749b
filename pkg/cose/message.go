package cose

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	gocose "github.com/veraison/go-cose"

	"github.com/remiblancher/pqhybrid/pkg/crypto"
)

// ContentTypeCWT marks a Sign1 payload as a CWT claim set.
const ContentTypeCWT = "application/cwt"

// ErrInvalidMessage indicates data that does not decode as a COSE_Sign1
// message with the headers this package needs.
var ErrInvalidMessage = errors.New("invalid COSE_Sign1 message")

// MessageConfig holds the optional header values of a Sign1 message.
type MessageConfig struct {
	KeyID       []byte
	ContentType string

	// External is additional authenticated data bound to the signature
	// but not carried in the message.
	External []byte
}

// Message is a decoded COSE_Sign1 message.
type Message struct {
	Algorithm   gocose.Algorithm
	KeyID       []byte
	ContentType string
	Payload     []byte
	Signature   []byte

	// Claims is set when the payload is a CWT claim set.
	Claims *Claims
}

// AlgorithmName returns the registry name of the signing algorithm.
func (m *Message) AlgorithmName() string {
	return AlgorithmName(m.Algorithm)
}

// Sign1 creates a tagged COSE_Sign1 message over payload.
func Sign1(random io.Reader, payload []byte, k *crypto.CompositeKey, cfg *MessageConfig) ([]byte, error) {
	if cfg == nil {
		cfg = &MessageConfig{}
	}
	signer, err := NewSigner(k)
	if err != nil {
		return nil, err
	}

	headers := gocose.Headers{
		Protected: gocose.ProtectedHeader{
			gocose.HeaderLabelAlgorithm: signer.Algorithm(),
		},
	}
	if len(cfg.KeyID) > 0 {
		headers.Protected[gocose.HeaderLabelKeyID] = cfg.KeyID
	}
	if cfg.ContentType != "" {
		headers.Protected[gocose.HeaderLabelContentType] = cfg.ContentType
	}

	msg := gocose.NewSign1Message()
	msg.Headers = headers
	msg.Payload = payload

	if err := msg.Sign(random, cfg.External, signer); err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}
	return msg.MarshalCBOR()
}

// Parse decodes a tagged COSE_Sign1 message without verifying it.
func Parse(data []byte) (*Message, error) {
	_, msg, err := parseSign1(data)
	return msg, err
}

// Verify1 decodes data and verifies its signature with k. The algorithm
// in the protected header must match the key's algorithm.
func Verify1(data []byte, k *crypto.CompositeKey, external []byte) (*Message, error) {
	sign1, msg, err := parseSign1(data)
	if err != nil {
		return nil, err
	}
	verifier, err := NewVerifier(k)
	if err != nil {
		return nil, err
	}
	if msg.Algorithm != verifier.Algorithm() {
		return nil, fmt.Errorf("%w: message signed with %s, key is %s",
			gocose.ErrAlgorithmMismatch, msg.AlgorithmName(), k.Algorithm().Name)
	}
	if err := sign1.Verify(external, verifier); err != nil {
		return nil, fmt.Errorf("failed to verify message: %w", err)
	}
	return msg, nil
}

func parseSign1(data []byte) (*gocose.Sign1Message, *Message, error) {
	var sign1 gocose.Sign1Message
	if err := cbor.Unmarshal(data, &sign1); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	alg, err := sign1.Headers.Protected.Algorithm()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: algorithm header: %v", ErrInvalidMessage, err)
	}
	msg := &Message{
		Algorithm: alg,
		Payload:   sign1.Payload,
		Signature: sign1.Signature,
	}

	if kid, ok := sign1.Headers.Protected[gocose.HeaderLabelKeyID]; ok {
		b, ok := kid.([]byte)
		if !ok {
			return nil, nil, fmt.Errorf("%w: key id header is not a byte string", ErrInvalidMessage)
		}
		msg.KeyID = b
	}
	if ct, ok := sign1.Headers.Protected[gocose.HeaderLabelContentType]; ok {
		if s, ok := ct.(string); ok {
			msg.ContentType = s
		}
	}

	if msg.ContentType == ContentTypeCWT {
		claims := &Claims{}
		if err := claims.UnmarshalCBOR(msg.Payload); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		msg.Claims = claims
	}
	return &sign1, msg, nil
}
