package entitlement

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const bearerPrefix = "Bearer "

// Claims is the structured view of a verified token. Raw carries the full
// claim set for collaborators that need more than the subject and expiry.
type Claims struct {
	SubjectID string
	ExpiresAt time.Time
	Raw       map[string]any
}

// VerifierConfig configures bearer token verification. Exactly one of
// HMACSecret (HS256) or PublicKey (EdDSA) must be set. Issuer and Audience
// are enforced when non-empty.
type VerifierConfig struct {
	HMACSecret []byte
	PublicKey  ed25519.PublicKey
	Issuer     string
	Audience   string
	Now        func() time.Time
}

// TokenVerifier checks the signature and expiry of opaque bearer tokens
// and extracts the verified claims. It never issues or refreshes tokens.
type TokenVerifier struct {
	keyFunc jwt.Keyfunc
	methods []string
	issuer  string
	auds    string
	now     func() time.Time
}

// NewTokenVerifier validates the config and builds a verifier.
func NewTokenVerifier(cfg VerifierConfig) (*TokenVerifier, error) {
	hasSecret := len(cfg.HMACSecret) > 0
	hasKey := len(cfg.PublicKey) > 0
	if hasSecret == hasKey {
		return nil, fmt.Errorf("exactly one of HMACSecret or PublicKey must be set")
	}
	if hasKey && len(cfg.PublicKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes", ed25519.PublicKeySize)
	}
	v := &TokenVerifier{
		issuer: cfg.Issuer,
		auds:   cfg.Audience,
		now:    cfg.Now,
	}
	if v.now == nil {
		v.now = time.Now
	}
	if hasSecret {
		secret := append([]byte(nil), cfg.HMACSecret...)
		v.keyFunc = func(*jwt.Token) (any, error) { return secret, nil }
		v.methods = []string{"HS256"}
	} else {
		key := cfg.PublicKey
		v.keyFunc = func(*jwt.Token) (any, error) { return key, nil }
		v.methods = []string{"EdDSA"}
	}
	return v, nil
}

// Verify checks the token and returns its claims. Failures are typed:
// structural and signature problems map to ErrInvalidToken, a passed
// expiry claim to ErrTokenExpired, anything unexpected to ErrUnverifiable.
// The raw token is never included in an error.
func (v *TokenVerifier) Verify(token string) (*Claims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	claims := jwt.MapClaims{}
	// Claim validation is done by hand below so the expiry check uses the
	// verifier clock and maps to its own failure type.
	_, err := jwt.ParseWithClaims(token, claims, v.keyFunc,
		jwt.WithValidMethods(v.methods),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, mapParseError(err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("%w: bad exp claim", ErrInvalidToken)
	}
	if exp == nil {
		return nil, fmt.Errorf("%w: exp claim is required", ErrInvalidToken)
	}
	if !exp.Time.After(v.now()) {
		return nil, fmt.Errorf("%w", ErrTokenExpired)
	}

	if v.issuer != "" {
		iss, err := claims.GetIssuer()
		if err != nil || iss != v.issuer {
			return nil, fmt.Errorf("%w: issuer mismatch", ErrInvalidToken)
		}
	}
	if v.auds != "" {
		auds, err := claims.GetAudience()
		if err != nil || !audienceContains(auds, v.auds) {
			return nil, fmt.Errorf("%w: audience mismatch", ErrInvalidToken)
		}
	}

	subject := subjectClaim(claims)
	if subject == "" {
		return nil, fmt.Errorf("%w: subject claim is required", ErrInvalidToken)
	}

	return &Claims{
		SubjectID: subject,
		ExpiresAt: exp.Time,
		Raw:       map[string]any(claims),
	}, nil
}

// subjectClaim prefers the registered sub claim and falls back to user_id.
func subjectClaim(claims jwt.MapClaims) string {
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub
	}
	if v, ok := claims["user_id"].(string); ok {
		return v
	}
	return ""
}

func audienceContains(auds jwt.ClaimStrings, want string) bool {
	for _, a := range auds {
		if a == want {
			return true
		}
	}
	return false
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w", ErrTokenExpired)
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	default:
		return fmt.Errorf("%w: %v", ErrUnverifiable, err)
	}
}
