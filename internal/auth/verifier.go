package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrUnauthenticated indicates the caller did not present a valid access token.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Verifier issues and validates HS256 access tokens whose subject is the user id.
type Verifier struct {
	secret []byte
	issuer string
	ttl    time.Duration

	NowFunc func() time.Time
}

// NewVerifier constructs a Verifier. The secret must not be empty.
func NewVerifier(secret, issuer string, ttl time.Duration) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("auth: signing secret must be provided")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Verifier{
		secret:  []byte(secret),
		issuer:  issuer,
		ttl:     ttl,
		NowFunc: time.Now,
	}, nil
}

func (v *Verifier) now() time.Time {
	if v.NowFunc != nil {
		return v.NowFunc()
	}
	return time.Now()
}

// Issue signs an access token for userID.
func (v *Verifier) Issue(userID string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errors.New("user id must be provided")
	}

	now := v.now().UTC()
	expires := now.Add(v.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Verify validates the token and returns the user id it was issued for.
func (v *Verifier) Verify(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrUnauthenticated
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}
	return claims.Subject, nil
}
