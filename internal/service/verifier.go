package service

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/plinth-dev/plinth/internal/domain"
)

// TokenVerifier validates bearer tokens issued by the identity provider.
// Tokens are HS256-signed with the shared JWT secret; the service never
// issues tokens itself.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier creates a verifier for tokens signed with secret.
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Verify parses and validates a token string and returns the identity
// carried in its claims. Any parse, signature or expiry failure reports
// domain.ErrUnauthorized.
func (v *TokenVerifier) Verify(tokenString string) (domain.Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return domain.Identity{}, domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return domain.Identity{}, domain.ErrUnauthorized
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Identity{}, domain.ErrUnauthorized
	}

	identity := domain.Identity{Sub: sub}
	identity.Email, _ = claims["email"].(string)
	identity.FirstName, _ = claims["first_name"].(string)
	identity.LastName, _ = claims["last_name"].(string)
	return identity, nil
}
