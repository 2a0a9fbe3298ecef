package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinHMACSecretBytes is the minimum HS256 signing secret length.
const MinHMACSecretBytes = 32

var (
	// ErrInvalidToken is returned when a token is malformed, unsigned, signed with
	// another algorithm or key, or (for ValidateAccess) expired.
	ErrInvalidToken = errors.New("invalid token")
	// ErrWeakSecret is returned when an HMAC signing secret is shorter than MinHMACSecretBytes.
	ErrWeakSecret = errors.New("signing secret must be at least 32 bytes")
)

// AccessClaims holds JWT claims for the access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	Roles     []string `json:"roles"`
	SessionID string   `json:"sid,omitempty"`
}

// Option configures a TokenProvider.
type Option func(*TokenProvider)

// WithClock overrides the time source used for iat/exp and validation.
func WithClock(now func() time.Time) Option {
	return func(p *TokenProvider) { p.now = now }
}

// TokenProvider issues and validates access JWTs. The signing algorithm is fixed at
// construction; tokens carrying any other alg header are rejected.
type TokenProvider struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	issuer    string
	audience  string
	accessTTL time.Duration
	now       func() time.Time
}

// NewHMACTokenProvider returns an HS256 TokenProvider.
func NewHMACTokenProvider(secret []byte, issuer, audience string, accessTTL time.Duration, opts ...Option) (*TokenProvider, error) {
	if len(secret) < MinHMACSecretBytes {
		return nil, ErrWeakSecret
	}
	key := slices.Clone(secret)
	return newProvider(jwt.SigningMethodHS256, key, key, issuer, audience, accessTTL, opts), nil
}

// NewTokenProvider returns a TokenProvider that signs with the given private key (RS256 or ES256).
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, accessTTL time.Duration, opts ...Option) (*TokenProvider, error) {
	var method jwt.SigningMethod
	switch privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return nil, ErrInvalidKey
	}
	if KeyAlg(publicKey) != method.Alg() {
		return nil, ErrInvalidKey
	}
	return newProvider(method, privateKey, publicKey, issuer, audience, accessTTL, opts), nil
}

func newProvider(method jwt.SigningMethod, signKey, verifyKey any, issuer, audience string, accessTTL time.Duration, opts []Option) *TokenProvider {
	p := &TokenProvider{
		method:    method,
		signKey:   signKey,
		verifyKey: verifyKey,
		issuer:    issuer,
		audience:  audience,
		accessTTL: accessTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Alg returns the configured signing algorithm name.
func (p *TokenProvider) Alg() string { return p.method.Alg() }

// AccessTTL returns the lifetime of issued access tokens.
func (p *TokenProvider) AccessTTL() time.Duration { return p.accessTTL }

// IssueAccess issues a short-lived access JWT for subjectID with its roles. The sid claim
// is omitted when sessionID is empty.
func (p *TokenProvider) IssueAccess(subjectID string, roles []string, sessionID string) (token string, expiresAt time.Time, err error) {
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := p.now().UTC().Truncate(time.Second)
	expiresAt = now.Add(p.accessTTL)
	sorted := slices.Clone(roles)
	slices.Sort(sorted)
	if sorted == nil {
		sorted = []string{}
	}
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   subjectID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Roles:     sorted,
		SessionID: sessionID,
	}
	token, err = jwt.NewWithClaims(p.method, claims).SignedString(p.signKey)
	return token, expiresAt, err
}

func (p *TokenProvider) keyFunc(*jwt.Token) (any, error) {
	return p.verifyKey, nil
}

// VerifyExpiry checks the signature and algorithm of token and returns its exp claim.
// Expiry is not enforced: an expired but authentic token yields its past expiry.
func (p *TokenProvider) VerifyExpiry(token string) (time.Time, error) {
	claims := &AccessClaims{}
	_, err := jwt.ParseWithClaims(token, claims, p.keyFunc,
		jwt.WithValidMethods([]string{p.method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, ErrInvalidToken
	}
	return claims.ExpiresAt.Time, nil
}

// ValidateAccess parses and validates the access token (alg, signature, exp, iss, aud).
func (p *TokenProvider) ValidateAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, p.keyFunc,
		jwt.WithValidMethods([]string{p.method.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
