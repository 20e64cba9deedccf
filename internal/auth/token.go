package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
)

var signingMethod = jwt.SigningMethodHS512

// TokenIssuer mints the opaque bearer tokens handed out at registration.
// Tokens carry only the user id, the issuer and the issue time; they have no
// expiry because session validity is tracked by the last login instead.
type TokenIssuer struct {
	secret []byte
	issuer string
}

func NewTokenIssuer(secret, issuer string) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("token secret is required")
	}
	return &TokenIssuer{secret: []byte(secret), issuer: issuer}, nil
}

func (t *TokenIssuer) Mint(userID uuid.UUID, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:  userID.String(),
		Issuer:   t.issuer,
		IssuedAt: jwt.NewNumericDate(now),
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Subject validates the token signature and returns the user id it was
// minted for.
func (t *TokenIssuer) Subject(token string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(t.issuer),
	)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.FromString(claims.Subject)
}
