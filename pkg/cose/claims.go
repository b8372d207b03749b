package cose

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/remiblancher/pqhybrid/pkg/crypto"
)

// CWT claim keys (RFC 8392).
const (
	ClaimIss int64 = 1
	ClaimSub int64 = 2
	ClaimAud int64 = 3
	ClaimExp int64 = 4
	ClaimNbf int64 = 5
	ClaimIat int64 = 6
	ClaimCti int64 = 7
)

var (
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenNotYetValid = errors.New("token not yet valid")
)

// Claims is a CWT claim set. Times are encoded as Unix seconds.
type Claims struct {
	Issuer     string
	Subject    string
	Audience   string
	Expiration time.Time
	NotBefore  time.Time
	IssuedAt   time.Time
	CWTID      []byte

	// Custom holds private-use claims (negative keys or keys above 7).
	Custom map[int64]any
}

// NewClaims returns claims issued now with a random CWT ID.
func NewClaims() *Claims {
	id := uuid.New()
	return &Claims{
		IssuedAt: time.Now().UTC().Truncate(time.Second),
		CWTID:    id[:],
		Custom:   make(map[int64]any),
	}
}

// SetExpiration sets the expiration time relative to now.
func (c *Claims) SetExpiration(d time.Duration) {
	c.Expiration = time.Now().UTC().Add(d).Truncate(time.Second)
}

// ValidateAt checks the time window of the claims at t.
func (c *Claims) ValidateAt(t time.Time) error {
	if !c.Expiration.IsZero() && !t.Before(c.Expiration) {
		return fmt.Errorf("%w at %s", ErrTokenExpired, c.Expiration.Format(time.RFC3339))
	}
	if !c.NotBefore.IsZero() && t.Before(c.NotBefore) {
		return fmt.Errorf("%w until %s", ErrTokenNotYetValid, c.NotBefore.Format(time.RFC3339))
	}
	return nil
}

// MarshalCBOR encodes the claims with canonical CBOR.
func (c *Claims) MarshalCBOR() ([]byte, error) {
	m := make(map[int64]any, len(c.Custom)+7)
	for k, v := range c.Custom {
		m[k] = v
	}
	if c.Issuer != "" {
		m[ClaimIss] = c.Issuer
	}
	if c.Subject != "" {
		m[ClaimSub] = c.Subject
	}
	if c.Audience != "" {
		m[ClaimAud] = c.Audience
	}
	if !c.Expiration.IsZero() {
		m[ClaimExp] = c.Expiration.Unix()
	}
	if !c.NotBefore.IsZero() {
		m[ClaimNbf] = c.NotBefore.Unix()
	}
	if !c.IssuedAt.IsZero() {
		m[ClaimIat] = c.IssuedAt.Unix()
	}
	if len(c.CWTID) > 0 {
		m[ClaimCti] = c.CWTID
	}

	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR encoder: %w", err)
	}
	return em.Marshal(m)
}

// UnmarshalCBOR decodes a claim set.
func (c *Claims) UnmarshalCBOR(data []byte) error {
	var m map[int64]any
	if err := cbor.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("failed to unmarshal CBOR claims: %w", err)
	}

	*c = Claims{Custom: make(map[int64]any)}
	for k, v := range m {
		switch k {
		case ClaimIss:
			c.Issuer, _ = v.(string)
		case ClaimSub:
			c.Subject, _ = v.(string)
		case ClaimAud:
			c.Audience, _ = v.(string)
		case ClaimExp:
			c.Expiration = timeFromCBOR(v)
		case ClaimNbf:
			c.NotBefore = timeFromCBOR(v)
		case ClaimIat:
			c.IssuedAt = timeFromCBOR(v)
		case ClaimCti:
			c.CWTID, _ = v.([]byte)
		default:
			c.Custom[k] = v
		}
	}
	return nil
}

func timeFromCBOR(v any) time.Time {
	switch t := v.(type) {
	case int64:
		return time.Unix(t, 0).UTC()
	case uint64:
		return time.Unix(int64(t), 0).UTC()
	case float64:
		return time.Unix(int64(t), 0).UTC()
	default:
		return time.Time{}
	}
}

// IssueCWT signs claims as a CWT.
func IssueCWT(random io.Reader, claims *Claims, k *crypto.CompositeKey, keyID []byte) ([]byte, error) {
	payload, err := claims.MarshalCBOR()
	if err != nil {
		return nil, err
	}
	return Sign1(random, payload, k, &MessageConfig{KeyID: keyID, ContentType: ContentTypeCWT})
}

// VerifyCWT verifies a CWT signed by k and checks its validity window at now.
func VerifyCWT(data []byte, k *crypto.CompositeKey, now time.Time) (*Claims, error) {
	msg, err := Verify1(data, k, nil)
	if err != nil {
		return nil, err
	}
	if msg.Claims == nil {
		return nil, fmt.Errorf("content type %q is not a CWT", msg.ContentType)
	}
	if err := msg.Claims.ValidateAt(now); err != nil {
		return nil, err
	}
	return msg.Claims, nil
}
