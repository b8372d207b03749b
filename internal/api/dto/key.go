package dto

// KeyGenerateRequest represents a key generation request.
type KeyGenerateRequest struct {
	// Algorithm is the algorithm name. Empty selects the configured default.
	Algorithm string `json:"algorithm,omitempty"`
}

// KeyImportRequest imports a PKCS#8 private key or SPKI public key.
type KeyImportRequest struct {
	// Key is PEM text, or base64 DER when Encoding is "base64".
	Key BinaryData `json:"key"`

	// Private tells the server how to parse base64 DER. Ignored for PEM.
	Private bool `json:"private,omitempty"`
}

// KeyResponse describes a key held by the server.
type KeyResponse struct {
	ID         string        `json:"id"`
	Algorithm  AlgorithmInfo `json:"algorithm"`
	HasPrivate bool          `json:"has_private"`

	// PublicKey is the SPKI PEM of the key.
	PublicKey BinaryData `json:"public_key"`

	CreatedAt string `json:"created_at"` // RFC3339
}

// KeyListResponse lists the keys held by the server.
type KeyListResponse struct {
	Keys []KeyResponse `json:"keys"`
}

// SignRequest asks for a signature over Message.
type SignRequest struct {
	Message BinaryData `json:"message"`

	// Context is the optional ML-DSA context string.
	Context *BinaryData `json:"context,omitempty"`
}

// SignResponse carries a composite signature.
type SignResponse struct {
	Signature BinaryData `json:"signature"`
	Size      int        `json:"size"`
}

// VerifyRequest asks for a signature check.
type VerifyRequest struct {
	Message   BinaryData  `json:"message"`
	Signature BinaryData  `json:"signature"`
	Context   *BinaryData `json:"context,omitempty"`
}

// VerifyResponse reports a signature check that was carried out.
// Malformed signatures are rejected with an error response instead.
type VerifyResponse struct {
	Valid bool `json:"valid"`

	// Component names the first failing component ("classical" or "pq").
	Component string `json:"component,omitempty"`
}

// EncapsulateResponse carries a composite ciphertext and shared secret.
type EncapsulateResponse struct {
	Ciphertext   BinaryData `json:"ciphertext"`
	SharedSecret BinaryData `json:"shared_secret"`
}

// DecapsulateRequest carries a composite ciphertext.
type DecapsulateRequest struct {
	Ciphertext BinaryData `json:"ciphertext"`
}

// DecapsulateResponse carries the recovered shared secret.
type DecapsulateResponse struct {
	SharedSecret BinaryData `json:"shared_secret"`
}
