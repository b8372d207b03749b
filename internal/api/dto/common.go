// Package dto provides Data Transfer Objects for the REST API.
package dto

import (
	"encoding/base64"
	"fmt"
)

// BinaryData represents binary data with encoding metadata.
type BinaryData struct {
	// Data is the encoded content (base64 or PEM).
	Data string `json:"data"`

	// Encoding specifies the encoding format: "base64" (default) or "pem".
	Encoding string `json:"encoding,omitempty"`
}

// Base64 wraps raw bytes as base64 BinaryData.
func Base64(b []byte) BinaryData {
	return BinaryData{Data: base64.StdEncoding.EncodeToString(b), Encoding: "base64"}
}

// PEM wraps PEM text as BinaryData.
func PEM(b []byte) BinaryData {
	return BinaryData{Data: string(b), Encoding: "pem"}
}

// Decode decodes the binary data based on its encoding.
func (b *BinaryData) Decode() ([]byte, error) {
	if b == nil {
		return nil, fmt.Errorf("binary data is nil")
	}
	switch b.Encoding {
	case "base64", "":
		return base64.StdEncoding.DecodeString(b.Data)
	case "pem":
		// PEM data is returned as-is (it's text)
		return []byte(b.Data), nil
	default:
		return nil, fmt.Errorf("unsupported encoding: %s", b.Encoding)
	}
}

// APIError represents a standardized error response.
type APIError struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error message.
	Message string `json:"message"`

	// Details provides additional context about the error.
	Details map[string]string `json:"details,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`

	// Keys is the number of keys held by the keystore.
	Keys int `json:"keys"`
}

// AlgorithmInfo describes one registered algorithm.
type AlgorithmInfo struct {
	Name          string `json:"name"`
	OID           string `json:"oid"`
	Category      string `json:"category"`
	Type          string `json:"type"` // "kem" or "signature"
	Hybrid        bool   `json:"hybrid"`
	SecurityLevel int    `json:"security_level"`
	BitSecurity   int    `json:"bit_security"`

	// PublicKeySize and PrivateKeySize are the maximum composite key lengths.
	PublicKeySize  int  `json:"public_key_size"`
	PrivateKeySize int  `json:"private_key_size"`
	ReverseShare   bool `json:"reverse_share,omitempty"`
}

// AlgorithmListResponse lists the supported algorithms.
type AlgorithmListResponse struct {
	Algorithms []AlgorithmInfo `json:"algorithms"`
}
