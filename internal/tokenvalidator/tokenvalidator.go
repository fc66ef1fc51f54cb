// Package tokenvalidator verifies RS256 access tokens issued by the Identity
// service against its published JWKS, replacing the shared HS256 secret the
// wallet/ledger/transaction services used to trust directly. Grounded on
// original_source's libs/shared/src/shared/jwks.py: a mutex-guarded cache
// keyed by kid, refreshed on a miss or after cacheTTL.
package tokenvalidator

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mercuriabank/backend/internal/common/apierr"
	"github.com/mercuriabank/backend/internal/common/config"
)

// jwk mirrors the RSA public-key JWK shape built by the Identity service's
// build_jwk() (original_source's services/identity_service/app/core/keys.py).
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

// Claims is the claim set the Identity service signs: sub, scope, iss, aud,
// iat, exp (original_source's core/security.py create_token).
type Claims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

// Validator fetches and caches JWKS keys and verifies bearer tokens against
// them.
type Validator struct {
	jwksURL  string
	issuer   string
	audience string
	cacheTTL time.Duration
	client   *http.Client

	mu          sync.Mutex
	keysByKid   map[string]*rsa.PublicKey
	lastFetched time.Time
}

func New(cfg config.JWTConfig) *Validator {
	return &Validator{
		jwksURL:  cfg.JWKSURL,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		cacheTTL: cfg.CacheTTL,
		client:   &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

// Validate parses and verifies a bearer token, returning its claims on
// success. sub must decode as a positive integer, matching
// get_current_user_id's isdigit() check in the Python services this
// replaces.
func (v *Validator) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token missing kid header")
		}
		return v.publicKey(kid)
	},
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{"RS256"}),
	)
	if err != nil {
		if apiErr := apierr.As(err); apiErr.Kind == apierr.KindUnavailable {
			return nil, apiErr
		}
		return nil, apierr.Wrap(apierr.KindUnauthenticated, "invalid token", err)
	}
	if !token.Valid {
		return nil, apierr.Unauthenticated("invalid token")
	}
	if sub, err := strconv.ParseInt(claims.Subject, 10, 64); err != nil || sub <= 0 {
		return nil, apierr.Unauthenticated("invalid token")
	}
	return claims, nil
}

// publicKey returns the RSA public key for kid, refreshing the cache on a
// miss or TTL expiry exactly like the Python client this is grounded on.
func (v *Validator) publicKey(kid string) (*rsa.PublicKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if key, ok := v.keysByKid[kid]; ok && time.Since(v.lastFetched) < v.cacheTTL {
		return key, nil
	}

	if err := v.refreshLocked(); err != nil {
		return nil, err
	}

	key, ok := v.keysByKid[kid]
	if !ok {
		return nil, apierr.Unavailable(fmt.Sprintf("unknown signing key %q", kid))
	}
	return key, nil
}

func (v *Validator) refreshLocked() error {
	resp, err := v.client.Get(v.jwksURL)
	if err != nil {
		return apierr.Wrap(apierr.KindUnavailable, "failed to fetch jwks", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apierr.Unavailable(fmt.Sprintf("jwks endpoint returned status %d", resp.StatusCode))
	}

	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return apierr.Wrap(apierr.KindUnavailable, "failed to decode jwks", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		pubKey, err := rsaPublicKeyFromJWK(k)
		if err != nil {
			continue
		}
		keys[k.Kid] = pubKey
	}

	v.keysByKid = keys
	v.lastFetched = time.Now()
	return nil
}

func rsaPublicKeyFromJWK(k jwk) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decode n: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decode e: %w", err)
	}

	n := new(big.Int).SetBytes(nBytes)
	e := new(big.Int).SetBytes(eBytes)

	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}
