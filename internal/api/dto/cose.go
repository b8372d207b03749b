package dto

// COSESignRequest asks for a COSE_Sign1 message over Payload.
type COSESignRequest struct {
	Payload     BinaryData  `json:"payload"`
	ContentType string      `json:"content_type,omitempty"`
	External    *BinaryData `json:"external,omitempty"`
}

// COSESignResponse carries a tagged COSE_Sign1 message.
type COSESignResponse struct {
	Message   BinaryData `json:"message"`
	Algorithm string     `json:"algorithm"`

	// AlgorithmID is the COSE algorithm identifier in the protected header.
	AlgorithmID int64 `json:"algorithm_id"`
}

// COSEVerifyRequest asks for a COSE_Sign1 check.
type COSEVerifyRequest struct {
	Message  BinaryData  `json:"message"`
	External *BinaryData `json:"external,omitempty"`
}

// COSEVerifyResponse reports the outcome of a COSE_Sign1 check.
type COSEVerifyResponse struct {
	Valid       bool        `json:"valid"`
	Component   string      `json:"component,omitempty"`
	Algorithm   string      `json:"algorithm,omitempty"`
	ContentType string      `json:"content_type,omitempty"`
	Payload     *BinaryData `json:"payload,omitempty"`
}
