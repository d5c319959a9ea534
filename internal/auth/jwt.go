package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of a Clerk session token this server reads. Newer
// tokens carry the active organization under "o", older ones as "org_id".
type Claims struct {
	OrgID      string     `json:"org_id,omitempty"`
	Org        *orgClaims `json:"o,omitempty"`
	Name       string     `json:"name,omitempty"`
	FamilyName string     `json:"family_name,omitempty"`
	Email      string     `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type orgClaims struct {
	ID string `json:"id"`
}

func (c *Claims) organizationID() string {
	if c.OrgID != "" {
		return c.OrgID
	}
	if c.Org != nil {
		return c.Org.ID
	}
	return ""
}

// Verifier checks RS256 session tokens against a single public key.
type Verifier struct {
	key *rsa.PublicKey
}

func NewVerifier(publicKeyPEM string) (*Verifier, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse jwt public key: %w", err)
	}
	return &Verifier{key: key}, nil
}

func (v *Verifier) Verify(token string) (*Identity, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return v.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}

	return &Identity{
		Subject:        claims.Subject,
		OrganizationID: claims.organizationID(),
		Name:           claims.Name,
		FamilyName:     claims.FamilyName,
		Email:          claims.Email,
	}, nil
}
