package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/arpitkhare33/maxshapez-printer-update/internal/config"
	"github.com/arpitkhare33/maxshapez-printer-update/internal/domain/build"
)

// AuthorizationHeader is the header carrying signed tokens.
const AuthorizationHeader = "Authorization"

// bearerPrefix precedes the token in AuthorizationHeader.
const bearerPrefix = "Bearer "

var (
	// errHeaderNameRequired is returned when the static header has no name.
	errHeaderNameRequired = errors.New("header name must be provided")
	// errSecretRequired is returned when the shared secret is empty.
	errSecretRequired = errors.New("shared secret must be provided")
	// errSigningKeyRequired is returned when no signing key is configured.
	errSigningKeyRequired = errors.New("signing key must be provided")
	// errUnexpectedMethod is returned when a token is not signed with HMAC.
	errUnexpectedMethod = errors.New("unexpected signing method")
	// errInvalidToken is returned when a token fails verification.
	errInvalidToken = errors.New("invalid token")
	// errUnknownMode is returned for an unsupported configuration mode.
	errUnknownMode = errors.New("unknown auth mode")
)

// Strategy produces the header that authenticates a single request.
type Strategy interface {
	// Header returns the header name and value to attach to the request.
	Header() (name, value string, err error)
}

// StaticHeader sends the shared secret as-is in a configured header.
type StaticHeader struct {
	// Name is the header the server reads the secret from.
	Name string
	// Secret is the shared secret.
	Secret string
}

// Header implements Strategy.
func (s StaticHeader) Header() (string, string, error) {
	if s.Name == "" {
		return "", "", errHeaderNameRequired
	}

	if s.Secret == "" {
		return "", "", errSecretRequired
	}

	return s.Name, s.Secret, nil
}

// Claims is the payload of a signed token.
type Claims struct {
	// Token is the shared secret.
	Token string `json:"Token"`

	jwt.RegisteredClaims
}

// SignedToken mints an HS256 bearer token embedding the shared secret.
type SignedToken struct {
	// Secret is embedded as the Token claim.
	Secret string
	// SigningKey signs the token; the server verifies with the same key.
	SigningKey []byte
	// TTL sets the exp claim when positive.
	TTL time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Header implements Strategy. Every call mints a fresh token.
func (s SignedToken) Header() (string, string, error) {
	token, err := s.Sign()
	if err != nil {
		return "", "", err
	}

	return AuthorizationHeader, bearerPrefix + token, nil
}

// Sign returns the compact signed token.
func (s SignedToken) Sign() (string, error) {
	if s.Secret == "" {
		return "", errSecretRequired
	}

	if len(s.SigningKey) == 0 {
		return "", errSigningKeyRequired
	}

	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	claims := &Claims{
		Token: s.Secret,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}

	if s.TTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.TTL))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.SigningKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// ParseSignedToken verifies an HS256 token with key and returns its claims.
// A "Bearer " prefix is accepted and stripped.
func ParseSignedToken(token string, key []byte) (*Claims, error) {
	token = strings.TrimPrefix(token, bearerPrefix)

	parsed, err := jwt.ParseWithClaims(token, new(Claims), func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: %v", errUnexpectedMethod, t.Header["alg"])
		}

		return key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errInvalidToken
	}

	return claims, nil
}

// FromConfig returns the metadata strategy selected by cfg.AuthMode.
//
//nolint:ireturn // Callers only need the Strategy behavior.
func FromConfig(cfg *config.Config) (Strategy, error) {
	switch cfg.AuthMode {
	case config.AuthModeHeader, "":
		return StaticHeader{Name: cfg.HeaderName, Secret: cfg.AuthToken}, nil
	case config.AuthModeJWT:
		if cfg.JwtSecret == "" {
			return nil, fmt.Errorf("%w: %w", build.ErrConfig, errSigningKeyRequired)
		}

		return SignedToken{
			Secret:     cfg.AuthToken,
			SigningKey: []byte(cfg.JwtSecret),
			TTL:        cfg.TokenTTL,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %w: %s", build.ErrConfig, errUnknownMode, cfg.AuthMode)
	}
}

// DownloadStrategy returns the fixed static-header strategy the archive
// download endpoint accepts, whatever mode is used for metadata.
func DownloadStrategy(cfg *config.Config) StaticHeader {
	return StaticHeader{Name: cfg.HeaderName, Secret: cfg.AuthToken}
}
