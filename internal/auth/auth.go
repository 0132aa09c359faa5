package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"conversation-service/internal/chat"
)

var (
	ErrMissingToken = fmt.Errorf("missing token: %w", chat.ErrUnauthorized)
	ErrInvalidToken = fmt.Errorf("invalid token: %w", chat.ErrUnauthorized)
)

// Verifier resolves a session credential to the user it was issued for.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

type sessionClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"_id"`
}

// HMACVerifier verifies HS256 session tokens carrying the user id in `_id`.
type HMACVerifier struct {
	secret []byte
	issuer string
}

// NewHMACVerifier constructs a verifier for tokens signed with secret.
func NewHMACVerifier(secret, issuer string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret), issuer: issuer}
}

// Verify validates signature, expiry and issuer and returns the user id.
func (v *HMACVerifier) Verify(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return "", fmt.Errorf("%w: no user id claim", ErrInvalidToken)
	}
	return userID, nil
}

// Issue mints a session token for userID that expires after ttl.
func Issue(secret, issuer, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: userID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// JWKSVerifier verifies tokens issued by an external OpenID provider such as
// Google or Keycloak. The subject claim is the user id.
type JWKSVerifier struct {
	keyfunc jwt.Keyfunc
	issuer  string
	stop    func()
}

// NewJWKSVerifier fetches the key set at jwksURL and keeps it refreshed.
func NewJWKSVerifier(ctx context.Context, jwksURL, issuer string, logger *zap.Logger) (*JWKSVerifier, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   5 * time.Minute,
		RefreshRateLimit:  time.Minute,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logger.Error("JWKS refresh error", zap.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	logger.Info("JWKS loaded", zap.String("jwks_url", jwksURL))
	return &JWKSVerifier{keyfunc: jwks.Keyfunc, issuer: issuer, stop: jwks.EndBackground}, nil
}

// Verify validates the token against the provider keys and returns its subject.
func (v *JWKSVerifier) Verify(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "ES256"}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, v.keyfunc, opts...)
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// Close stops the background key refresh.
func (v *JWKSVerifier) Close() {
	if v.stop != nil {
		v.stop()
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", errors.Join(ErrInvalidToken, errors.New("invalid authorization header"))
	}
	return strings.TrimSpace(parts[1]), nil
}
