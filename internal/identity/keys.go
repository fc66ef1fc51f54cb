package identity

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sync"

	"github.com/mercuriabank/backend/internal/common/config"
)

// jwk mirrors the RSA public-key JWK shape tokenvalidator parses, built the
// way original_source's core/keys.py build_jwk() does (base64url, no pad).
type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwksDocument struct {
	Keys []jwk `json:"keys"`
}

// KeyManager loads an RSA-2048 signing keypair from disk, generating and
// persisting one on first run. Grounded on original_source's
// core/keys.py _load_or_generate_keys: a missing keypair on disk is the
// expected first-boot case, not an error.
type KeyManager struct {
	keyID          string
	privateKeyPath string
	publicKeyPath  string

	once       sync.Once
	loadErr    error
	privateKey *rsa.PrivateKey
}

func NewKeyManager(cfg config.IdentityConfig) *KeyManager {
	return &KeyManager{
		keyID:          cfg.KeyID,
		privateKeyPath: cfg.PrivateKeyPath,
		publicKeyPath:  cfg.PublicKeyPath,
	}
}

// PrivateKey returns the process's signing key, loading or generating it on
// first use.
func (k *KeyManager) PrivateKey() (*rsa.PrivateKey, error) {
	k.once.Do(func() {
		k.privateKey, k.loadErr = k.loadOrGenerate()
	})
	return k.privateKey, k.loadErr
}

func (k *KeyManager) loadOrGenerate() (*rsa.PrivateKey, error) {
	if key, err := k.readFromDisk(); err == nil {
		return key, nil
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA keypair: %w", err)
	}
	if err := k.writeToDisk(key); err != nil {
		return nil, fmt.Errorf("failed to persist RSA keypair: %w", err)
	}
	return key, nil
}

func (k *KeyManager) readFromDisk() (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(k.privateKeyPath)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("invalid PEM in %s", k.privateKeyPath)
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("key in %s is not RSA", k.privateKeyPath)
	}
	return rsaKey, nil
}

func (k *KeyManager) writeToDisk(key *rsa.PrivateKey) error {
	if err := os.MkdirAll(filepath.Dir(k.privateKeyPath), 0700); err != nil {
		return err
	}

	privateBytes, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return err
	}
	privatePEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privateBytes})
	if err := os.WriteFile(k.privateKeyPath, privatePEM, 0600); err != nil {
		return err
	}

	publicBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return err
	}
	publicPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicBytes})
	return os.WriteFile(k.publicKeyPath, publicPEM, 0644)
}

// JWKS returns the process's signing key represented as a JSON Web Key Set,
// the document the wallet/payments services' tokenvalidator fetches and
// caches.
func (k *KeyManager) JWKS() (*jwksDocument, error) {
	key, err := k.PrivateKey()
	if err != nil {
		return nil, err
	}
	pub := key.PublicKey

	eBytes := big.NewInt(int64(pub.E)).Bytes()
	nBytes := pub.N.Bytes()

	return &jwksDocument{Keys: []jwk{{
		Kty: "RSA",
		Kid: k.keyID,
		Use: "sig",
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(nBytes),
		E:   base64.RawURLEncoding.EncodeToString(eBytes),
	}}}, nil
}
