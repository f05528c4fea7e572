package manifest

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// Signer produces and checks the aura seal.
//
// The pipeline only depends on this capability, so the shared-secret MAC can
// be swapped for an asymmetric signature without touching anything else.
type Signer interface {
	// Algorithm names the scheme, e.g. "hmac-sha256".
	Algorithm() string

	// Sign returns the hex-encoded seal over data.
	Sign(data []byte) (string, error)

	// Verify reports whether seal is valid for data.
	Verify(data []byte, seal string) (bool, error)
}

// Algorithm names accepted in configuration.
const (
	AlgHMACSHA256 = "hmac-sha256"
	AlgEd25519    = "ed25519"
)

// ErrEmptyKey is returned when signing key material is missing.
var ErrEmptyKey = errors.New("signing key is empty")

// HMACSigner seals with HMAC-SHA256 over a shared symmetric key.
// A MAC gives integrity between parties holding the key, not non-repudiation.
type HMACSigner struct {
	key []byte
}

// NewHMACSigner copies key and returns a signer. The key must be non-empty.
func NewHMACSigner(key []byte) (*HMACSigner, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &HMACSigner{key: k}, nil
}

// Algorithm implements Signer.
func (s *HMACSigner) Algorithm() string { return AlgHMACSHA256 }

// Sign implements Signer.
func (s *HMACSigner) Sign(data []byte) (string, error) {
	if len(s.key) == 0 {
		return "", ErrEmptyKey
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify implements Signer. Comparison is constant-time.
func (s *HMACSigner) Verify(data []byte, seal string) (bool, error) {
	got, err := hex.DecodeString(seal)
	if err != nil {
		return false, fmt.Errorf("decode seal: %w", err)
	}
	want, err := s.Sign(data)
	if err != nil {
		return false, err
	}
	wantBytes, _ := hex.DecodeString(want)
	return hmac.Equal(got, wantBytes), nil
}

// Ed25519Signer seals with an Ed25519 signature. A signer built from only a
// public key can verify but not sign.
type Ed25519Signer struct {
	private ed25519.PrivateKey
	public  ed25519.PublicKey
}

// NewEd25519Signer accepts a 32-byte seed or a 64-byte private key.
func NewEd25519Signer(key []byte) (*Ed25519Signer, error) {
	var priv ed25519.PrivateKey
	switch len(key) {
	case 0:
		return nil, ErrEmptyKey
	case ed25519.SeedSize:
		priv = ed25519.NewKeyFromSeed(key)
	case ed25519.PrivateKeySize:
		priv = make(ed25519.PrivateKey, len(key))
		copy(priv, key)
	default:
		return nil, fmt.Errorf("ed25519 key must be %d or %d bytes, got %d", ed25519.SeedSize, ed25519.PrivateKeySize, len(key))
	}
	return &Ed25519Signer{private: priv, public: priv.Public().(ed25519.PublicKey)}, nil
}

// NewEd25519Verifier builds a verify-only signer from a public key.
func NewEd25519Verifier(pub []byte) (*Ed25519Signer, error) {
	if len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}
	p := make(ed25519.PublicKey, len(pub))
	copy(p, pub)
	return &Ed25519Signer{public: p}, nil
}

// Algorithm implements Signer.
func (s *Ed25519Signer) Algorithm() string { return AlgEd25519 }

// PublicKey returns the verification key.
func (s *Ed25519Signer) PublicKey() ed25519.PublicKey { return s.public }

// Sign implements Signer.
func (s *Ed25519Signer) Sign(data []byte) (string, error) {
	if len(s.private) == 0 {
		return "", errors.New("ed25519 signer has no private key")
	}
	return hex.EncodeToString(ed25519.Sign(s.private, data)), nil
}

// Verify implements Signer.
func (s *Ed25519Signer) Verify(data []byte, seal string) (bool, error) {
	sig, err := hex.DecodeString(seal)
	if err != nil {
		return false, fmt.Errorf("decode seal: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return false, nil
	}
	return ed25519.Verify(s.public, data, sig), nil
}

// NewSigner builds a Signer for the named algorithm. An empty algorithm
// selects HMAC-SHA256.
func NewSigner(algorithm string, key []byte) (Signer, error) {
	switch algorithm {
	case "", AlgHMACSHA256:
		s, err := NewHMACSigner(key)
		if err != nil {
			return nil, err
		}
		return s, nil
	case AlgEd25519:
		s, err := NewEd25519Signer(key)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown signing algorithm %q", algorithm)
}
