package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidKey is returned when PEM, key type, or key strength is invalid.
var ErrInvalidKey = errors.New("invalid key")

// minRSABits is the smallest RSA modulus accepted for RS256 signing.
const minRSABits = 2048

// SigningKey pairs a JWT signing method with the material used to sign and verify.
// Build one with NewHMACKey or NewKeyPair; the zero value is unusable.
type SigningKey struct {
	method jwt.SigningMethod
	sign   any
	verify any
}

// Alg returns the JWT "alg" value, or "" for the zero SigningKey.
func (k SigningKey) Alg() string {
	if k.method == nil {
		return ""
	}
	return k.method.Alg()
}

// NewHMACKey returns an HS256/HS384/HS512 key. The secret must be at least as long
// as the hash output (32, 48, or 64 bytes).
func NewHMACKey(alg string, secret []byte) (SigningKey, error) {
	var method *jwt.SigningMethodHMAC
	switch strings.ToUpper(alg) {
	case "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return SigningKey{}, fmt.Errorf("%w: unsupported HMAC algorithm %q", ErrInvalidKey, alg)
	}
	if len(secret) < method.Hash.Size() {
		return SigningKey{}, fmt.Errorf("%w: %s secret must be at least %d bytes", ErrInvalidKey, method.Alg(), method.Hash.Size())
	}
	k := make([]byte, len(secret))
	copy(k, secret)
	return SigningKey{method: method, sign: k, verify: k}, nil
}

// NewKeyPair returns an RS256 or ES256 key from a private/public pair. RSA keys
// must be at least 2048 bits and ECDSA keys must be on P-256. The public key must
// belong to the private key.
func NewKeyPair(privateKey crypto.Signer, publicKey crypto.PublicKey) (SigningKey, error) {
	if privateKey == nil || publicKey == nil {
		return SigningKey{}, ErrInvalidKey
	}
	if eq, ok := privateKey.Public().(interface{ Equal(crypto.PublicKey) bool }); !ok || !eq.Equal(publicKey) {
		return SigningKey{}, fmt.Errorf("%w: public key does not match private key", ErrInvalidKey)
	}
	switch pub := publicKey.(type) {
	case *rsa.PublicKey:
		if pub.N.BitLen() < minRSABits {
			return SigningKey{}, fmt.Errorf("%w: RSA key must be at least %d bits", ErrInvalidKey, minRSABits)
		}
		return SigningKey{method: jwt.SigningMethodRS256, sign: privateKey, verify: pub}, nil
	case *ecdsa.PublicKey:
		if pub.Curve != elliptic.P256() {
			return SigningKey{}, fmt.Errorf("%w: ES256 requires a P-256 key", ErrInvalidKey)
		}
		return SigningKey{method: jwt.SigningMethodES256, sign: privateKey, verify: pub}, nil
	default:
		return SigningKey{}, ErrInvalidKey
	}
}

// LoadPEM reads content from path if s does not look like inline PEM; otherwise returns s as bytes.
// Inline PEM may carry literal "\n" sequences (common in env vars); they are turned into newlines.
func LoadPEM(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidKey
	}
	if strings.HasPrefix(s, "-----BEGIN") {
		return []byte(strings.ReplaceAll(s, `\n`, "\n")), nil
	}
	return os.ReadFile(s)
}

// ParsePrivateKey parses a PEM-encoded private key (RSA or ECDSA). s may be inline PEM or a file path.
func ParsePrivateKey(s string) (crypto.Signer, error) {
	pemBytes, err := LoadPEM(s)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, ErrInvalidKey
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, ErrInvalidKey
		}
		return signer, nil
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	default:
		return nil, ErrInvalidKey
	}
}

// ParsePublicKey parses a PEM-encoded public key (RSA or ECDSA). s may be inline PEM or a file path.
func ParsePublicKey(s string) (crypto.PublicKey, error) {
	pemBytes, err := LoadPEM(s)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, ErrInvalidKey
	}
	switch block.Type {
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	case "PUBLIC KEY":
		return x509.ParsePKIXPublicKey(block.Bytes)
	default:
		return nil, ErrInvalidKey
	}
}

// KeyAlg returns "RS256" for RSA and "ES256" for ECDSA; empty otherwise.
func KeyAlg(pub crypto.PublicKey) string {
	switch pub.(type) {
	case *rsa.PublicKey:
		return "RS256"
	case *ecdsa.PublicKey:
		return "ES256"
	default:
		return ""
	}
}

// LoadSigningKey builds a SigningKey from deployment settings: an HMAC secret for
// HS* algorithms, or PEM private/public keys (inline or file paths) for RS256/ES256.
func LoadSigningKey(alg, secret, privatePEM, publicPEM string) (SigningKey, error) {
	alg = strings.ToUpper(strings.TrimSpace(alg))
	if strings.HasPrefix(alg, "HS") {
		return NewHMACKey(alg, []byte(secret))
	}
	priv, err := ParsePrivateKey(privatePEM)
	if err != nil {
		return SigningKey{}, fmt.Errorf("private key: %w", err)
	}
	pub, err := ParsePublicKey(publicPEM)
	if err != nil {
		return SigningKey{}, fmt.Errorf("public key: %w", err)
	}
	if got := KeyAlg(pub); got != alg {
		return SigningKey{}, fmt.Errorf("%w: key type is %q, configured algorithm is %q", ErrInvalidKey, got, alg)
	}
	return NewKeyPair(priv, pub)
}
