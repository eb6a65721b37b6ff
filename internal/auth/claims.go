// Package auth extracts the acting principal from a verified request token
// and carries it through context. Token verification itself happens in the
// request layer; core services receive explicit identifiers.
package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"identity-service/internal/apperr"
)

// Claims is the subset of token claims the identity service acts on.
// Subject is the identity provider's id for the principal, distinct from
// the locally generated user id.
type Claims struct {
	Subject    string
	Email      string
	GivenName  string
	FamilyName string
}

// FromToken reads the claims this service needs from an already-verified
// token. Missing subject or email is a BadRequest: without them no local
// user can be resolved or bootstrapped. Given/family name fall back to the
// email so a default workspace name can always be derived.
func FromToken(token *jwt.Token) (Claims, error) {
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, apperr.New(apperr.KindBadRequest, "token carries no map claims")
	}

	sub, _ := mc["sub"].(string)
	if strings.TrimSpace(sub) == "" {
		return Claims{}, apperr.New(apperr.KindBadRequest, "token missing subject claim")
	}
	email, _ := mc["email"].(string)
	if strings.TrimSpace(email) == "" {
		return Claims{}, apperr.New(apperr.KindBadRequest, "token missing email claim")
	}

	c := Claims{
		Subject: sub,
		Email:   strings.ToLower(strings.TrimSpace(email)),
	}
	if v, _ := mc["given_name"].(string); strings.TrimSpace(v) != "" {
		c.GivenName = strings.TrimSpace(v)
	} else {
		c.GivenName = c.Email
	}
	if v, _ := mc["family_name"].(string); strings.TrimSpace(v) != "" {
		c.FamilyName = strings.TrimSpace(v)
	} else {
		c.FamilyName = c.Email
	}
	return c, nil
}
