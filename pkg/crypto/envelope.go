package crypto

import (
	"bytes"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"

	"github.com/remiblancher/pqhybrid/pkg/engine"
)

// PEM block types.
const (
	PEMTypePrivateKey = "PRIVATE KEY"
	PEMTypePublicKey  = "PUBLIC KEY"
)

// ExportPrivate returns a copy of the flat composite private key.
func (k *CompositeKey) ExportPrivate() ([]byte, error) {
	if err := k.requirePrivate(); err != nil {
		return nil, err
	}
	return bytes.Clone(k.privKey), nil
}

// ExportPublic returns a copy of the flat composite public key.
func (k *CompositeKey) ExportPublic() ([]byte, error) {
	if err := k.live(); err != nil {
		return nil, err
	}
	return bytes.Clone(k.pubKey), nil
}

// privateKeyInfo is the PKCS #8 PrivateKeyInfo structure.
type privateKeyInfo struct {
	Version    int
	Algorithm  pkix.AlgorithmIdentifier
	PrivateKey []byte
}

// subjectPublicKeyInfo is the X.509 SubjectPublicKeyInfo structure.
type subjectPublicKeyInfo struct {
	Algorithm pkix.AlgorithmIdentifier
	PublicKey asn1.BitString
}

// MarshalPKCS8PrivateKey wraps the flat private key in a PKCS #8 PrivateKeyInfo.
func MarshalPKCS8PrivateKey(k *CompositeKey) ([]byte, error) {
	priv, err := k.ExportPrivate()
	if err != nil {
		return nil, err
	}
	defer engine.Zeroize(priv)
	return asn1.Marshal(privateKeyInfo{
		Algorithm:  pkix.AlgorithmIdentifier{Algorithm: k.desc.OID},
		PrivateKey: priv,
	})
}

// MarshalPKIXPublicKey wraps the flat public key in a SubjectPublicKeyInfo.
func MarshalPKIXPublicKey(k *CompositeKey) ([]byte, error) {
	pub, err := k.ExportPublic()
	if err != nil {
		return nil, err
	}
	return asn1.Marshal(subjectPublicKeyInfo{
		Algorithm: pkix.AlgorithmIdentifier{Algorithm: k.desc.OID},
		PublicKey: asn1.BitString{Bytes: pub, BitLength: len(pub) * 8},
	})
}

// ParsePKCS8PrivateKey parses a PKCS #8 PrivateKeyInfo holding a composite key.
func (r *Registry) ParsePKCS8PrivateKey(der []byte) (*CompositeKey, error) {
	var info privateKeyInfo
	rest, err := asn1.Unmarshal(der, &info)
	if err != nil {
		return nil, formatErrorf("import", "", "invalid PKCS #8 structure: %v", err)
	}
	if len(rest) != 0 {
		return nil, formatErrorf("import", "", "trailing data after PKCS #8 structure")
	}
	defer engine.Zeroize(info.PrivateKey)
	if info.Version != 0 {
		return nil, formatErrorf("import", "", "unsupported PKCS #8 version %d", info.Version)
	}
	d, err := r.LookupOID(info.Algorithm.Algorithm)
	if err != nil {
		return nil, err
	}
	return ImportPrivateKey(d, info.PrivateKey)
}

// ParsePKIXPublicKey parses a SubjectPublicKeyInfo holding a composite key.
func (r *Registry) ParsePKIXPublicKey(der []byte) (*CompositeKey, error) {
	var info subjectPublicKeyInfo
	rest, err := asn1.Unmarshal(der, &info)
	if err != nil {
		return nil, formatErrorf("import", "", "invalid SubjectPublicKeyInfo: %v", err)
	}
	if len(rest) != 0 {
		return nil, formatErrorf("import", "", "trailing data after SubjectPublicKeyInfo")
	}
	if info.PublicKey.BitLength%8 != 0 {
		return nil, formatErrorf("import", "", "public key bit string is not byte aligned")
	}
	d, err := r.LookupOID(info.Algorithm.Algorithm)
	if err != nil {
		return nil, err
	}
	return ImportPublicKey(d, info.PublicKey.Bytes)
}

// EncodePEM returns the PKCS #8 private key (when private is set) or the
// SubjectPublicKeyInfo of k as PEM.
func EncodePEM(k *CompositeKey, private bool) ([]byte, error) {
	if private {
		der, err := MarshalPKCS8PrivateKey(k)
		if err != nil {
			return nil, err
		}
		defer engine.Zeroize(der)
		return pem.EncodeToMemory(&pem.Block{Type: PEMTypePrivateKey, Bytes: der}), nil
	}
	der, err := MarshalPKIXPublicKey(k)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: PEMTypePublicKey, Bytes: der}), nil
}

// DecodePEM parses the first PEM block in data as a private or public key.
func (r *Registry) DecodePEM(data []byte) (*CompositeKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, formatErrorf("import", "", "no PEM block found")
	}
	switch block.Type {
	case PEMTypePrivateKey:
		defer engine.Zeroize(block.Bytes)
		return r.ParsePKCS8PrivateKey(block.Bytes)
	case PEMTypePublicKey:
		return r.ParsePKIXPublicKey(block.Bytes)
	default:
		return nil, formatErrorf("import", "", "unsupported PEM type %q", block.Type)
	}
}
