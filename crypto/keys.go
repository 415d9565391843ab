package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// PrivateKey wraps an ECDSA P-256 private key.
type PrivateKey struct {
	*ecdsa.PrivateKey
}

// PublicKey wraps an ECDSA P-256 public key.
type PublicKey struct {
	*ecdsa.PublicKey
}

// GeneratePrivateKey creates a new ECDSA key pair on curve P-256, matching
// the curve every principal, mandate signature, and batch root signature in
// this system is signed and verified against.
func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// PubKey returns the public half of the key pair.
func (k *PrivateKey) PubKey() *PublicKey {
	if k == nil {
		return nil
	}
	return &PublicKey{&k.PrivateKey.PublicKey}
}

// EncodePEM renders the private key as a PKCS#8 PEM block.
func (k *PrivateKey) EncodePEM() (string, error) {
	if k == nil || k.PrivateKey == nil {
		return "", fmt.Errorf("crypto: nil private key")
	}
	der, err := x509.MarshalPKCS8PrivateKey(k.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("crypto: marshal private key: %w", err)
	}
	block := &pem.Block{Type: "PRIVATE KEY", Bytes: der}
	return string(pem.EncodeToMemory(block)), nil
}

// EncodePEM renders the public key as a SubjectPublicKeyInfo PEM block.
func (k *PublicKey) EncodePEM() (string, error) {
	if k == nil || k.PublicKey == nil {
		return "", fmt.Errorf("crypto: nil public key")
	}
	der, err := x509.MarshalPKIXPublicKey(k.PublicKey)
	if err != nil {
		return "", fmt.Errorf("crypto: marshal public key: %w", err)
	}
	block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}
	return string(pem.EncodeToMemory(block)), nil
}

// PrivateKeyFromPEM decodes a PKCS#8 PEM-encoded P-256 private key.
func PrivateKeyFromPEM(pemStr string) (*PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, fmt.Errorf("crypto: invalid PEM block")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("crypto: parse private key: %w", err)
	}
	ecKey, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("crypto: private key is not ECDSA")
	}
	if ecKey.Curve != elliptic.P256() {
		return nil, fmt.Errorf("crypto: private key is not on curve P-256")
	}
	return &PrivateKey{ecKey}, nil
}

// PublicKeyFromPEM decodes a SubjectPublicKeyInfo PEM-encoded P-256 public key.
func PublicKeyFromPEM(pemStr string) (*PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, fmt.Errorf("crypto: invalid PEM block")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("crypto: parse public key: %w", err)
	}
	ecKey, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("crypto: public key is not ECDSA")
	}
	if ecKey.Curve != elliptic.P256() {
		return nil, fmt.Errorf("crypto: public key is not on curve P-256")
	}
	return &PublicKey{ecKey}, nil
}

// MatchesPrivateKey reports whether the public key is the counterpart of the
// supplied private key. Principals that carry both a public and a private
// PEM are expected to satisfy this.
func (k *PublicKey) MatchesPrivateKey(priv *PrivateKey) bool {
	if k == nil || k.PublicKey == nil || priv == nil || priv.PrivateKey == nil {
		return false
	}
	pub := priv.PubKey()
	return k.X.Cmp(pub.X) == 0 && k.Y.Cmp(pub.Y) == 0
}
