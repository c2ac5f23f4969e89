package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Algorithm names an HMAC signing algorithm.
type Algorithm string

const (
	// HS256 is HMAC with SHA-256, the default.
	HS256 Algorithm = "HS256"
	// HS384 is HMAC with SHA-384.
	HS384 Algorithm = "HS384"
	// HS512 is HMAC with SHA-512.
	HS512 Algorithm = "HS512"
)

const (
	// TypeRefresh tags refresh tokens.
	TypeRefresh = "refresh"
	// TypeChallenge tags pending-MFA challenge tokens.
	TypeChallenge = "mfa_challenge"
)

// minSecretBytes is the HMAC key floor. RFC 7518 asks for a key at least as
// long as the hash output; 32 bytes covers HS256.
const minSecretBytes = 32

var (
	// ErrExpired is returned when a structurally valid token is past its expiry.
	ErrExpired = jwt.ErrTokenExpired
	// ErrWrongType is returned when a token carries an unexpected type tag.
	ErrWrongType = errors.New("unexpected token type")
	// ErrMissingClaim is returned when a required claim is empty.
	ErrMissingClaim = errors.New("required claim missing")
)

// Config binds a Codec to one secret.
type Config struct {
	Secret       []byte
	Algorithm    Algorithm
	Issuer       string
	Audience     string
	Leeway       time.Duration
	MaxFutureIAT time.Duration
	// Now overrides the time source for signing and validation.
	Now func() time.Time
}

// Codec signs and verifies tokens for a single secret.
//
// Codec is immutable after construction and safe for concurrent use.
type Codec struct {
	config Config
	method jwt.SigningMethod
}

// AccessClaims is the payload of an access token.
type AccessClaims struct {
	UserID      string   `json:"userId"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	SessionID   string   `json:"sessionId"`
	DeviceID    string   `json:"deviceId,omitempty"`
	IPAddress   string   `json:"ipAddress,omitempty"`
	UserAgent   string   `json:"userAgent,omitempty"`
	// Type is empty for access tokens. Any other value is rejected by ParseAccess.
	Type string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token. The registered jti is
// the storage key of the matching refresh record.
type RefreshClaims struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	Type      string `json:"type"`
	jwt.RegisteredClaims
}

// ChallengeClaims is the payload of a pending-MFA challenge token.
type ChallengeClaims struct {
	UserID string `json:"userId"`
	Type   string `json:"type"`
	jwt.RegisteredClaims
}

// NewCodec validates cfg and returns a Codec.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) < minSecretBytes {
		return nil, fmt.Errorf("secret must be at least %d bytes", minSecretBytes)
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = HS256
	}
	method, err := methodFor(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Audience = strings.TrimSpace(cfg.Audience)
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Secret = append([]byte(nil), cfg.Secret...)

	return &Codec{config: cfg, method: method}, nil
}

// ParseAlgorithm maps a configuration string onto a supported Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	alg := Algorithm(strings.ToUpper(strings.TrimSpace(s)))
	if _, err := methodFor(alg); err != nil {
		return "", err
	}
	return alg, nil
}

func methodFor(alg Algorithm) (jwt.SigningMethod, error) {
	switch alg {
	case HS256:
		return jwt.SigningMethodHS256, nil
	case HS384:
		return jwt.SigningMethodHS384, nil
	case HS512:
		return jwt.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", alg)
	}
}

// Registered returns registered claims stamped with the codec's issuer,
// audience and clock.
func (c *Codec) Registered(id string, ttl time.Duration) jwt.RegisteredClaims {
	now := c.config.Now()
	rc := jwt.RegisteredClaims{
		ID:        id,
		Issuer:    c.config.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if c.config.Audience != "" {
		rc.Audience = jwt.ClaimStrings{c.config.Audience}
	}
	return rc
}

// Sign serializes and signs claims.
func (c *Codec) Sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(c.method, claims).SignedString(c.config.Secret)
}

// SignAccess signs an access token valid for ttl.
func (c *Codec) SignAccess(claims AccessClaims, ttl time.Duration) (string, error) {
	claims.Type = ""
	claims.RegisteredClaims = c.Registered(claims.ID, ttl)
	return c.Sign(claims)
}

// SignRefresh signs a refresh token valid for ttl.
func (c *Codec) SignRefresh(claims RefreshClaims, ttl time.Duration) (string, error) {
	claims.Type = TypeRefresh
	claims.RegisteredClaims = c.Registered(claims.ID, ttl)
	return c.Sign(claims)
}

// SignChallenge signs a pending-MFA challenge token valid for ttl.
func (c *Codec) SignChallenge(claims ChallengeClaims, ttl time.Duration) (string, error) {
	claims.Type = TypeChallenge
	claims.RegisteredClaims = c.Registered(claims.ID, ttl)
	return c.Sign(claims)
}

// Parse verifies token and decodes it into claims. Signature, algorithm,
// issuer, audience, expiry and issued-at drift are all checked.
func (c *Codec) Parse(token string, claims jwt.Claims) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithTimeFunc(c.config.Now),
		jwt.WithExpirationRequired(),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}
	if c.config.Audience != "" {
		options = append(options, jwt.WithAudience(c.config.Audience))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != c.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return c.config.Secret, nil
	})
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return jwt.ErrTokenInvalidClaims
	}

	iat, err := claims.GetIssuedAt()
	if err == nil && iat != nil && iat.Time.After(c.config.Now().Add(c.config.MaxFutureIAT)) {
		return errors.New("token iat too far in the future")
	}
	return nil
}

// ParseAccess verifies an access token.
func (c *Codec) ParseAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.Parse(token, claims); err != nil {
		return nil, err
	}
	if claims.Type != "" {
		return nil, ErrWrongType
	}
	if claims.UserID == "" || claims.SessionID == "" {
		return nil, ErrMissingClaim
	}
	return claims, nil
}

// ParseRefresh verifies a refresh token and requires the refresh type tag,
// a jti and a user id.
func (c *Codec) ParseRefresh(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := c.Parse(token, claims); err != nil {
		return nil, err
	}
	if claims.Type != TypeRefresh {
		return nil, ErrWrongType
	}
	if claims.ID == "" || claims.UserID == "" {
		return nil, ErrMissingClaim
	}
	return claims, nil
}

// DecodeUnverified returns the payload of token without checking the
// signature or any claim. The result is for diagnostics only.
func DecodeUnverified(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}
