package auth

import (
	"context"

	apperrors "github.com/supportdesk/support-server-go/internal/errors"
)

// Identity is the verified operator behind a dashboard request.
type Identity struct {
	Subject        string
	OrganizationID string
	Name           string
	FamilyName     string
	Email          string
}

// AuthContext is an identity that is known to belong to an organization.
type AuthContext struct {
	Identity       *Identity
	OrganizationID string
}

type contextKey string

const identityContextKey contextKey = "identity"

func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

func IdentityFrom(ctx context.Context) *Identity {
	if identity, ok := ctx.Value(identityContextKey).(*Identity); ok {
		return identity
	}
	return nil
}

// RequireAuth resolves the caller's organization or fails with UNAUTHORIZED
// (no identity) or NOT_FOUND (identity without an organization).
func RequireAuth(ctx context.Context) (*AuthContext, error) {
	identity := IdentityFrom(ctx)
	if identity == nil {
		return nil, apperrors.Unauthorized("Identity not found")
	}
	if identity.OrganizationID == "" {
		return nil, apperrors.NotFound("Organization")
	}
	return &AuthContext{Identity: identity, OrganizationID: identity.OrganizationID}, nil
}

// RequireOrganizationMatch guards mutations on a resource owned by another tenant.
func RequireOrganizationMatch(resourceOrganizationID, authOrganizationID string) error {
	if resourceOrganizationID != authOrganizationID {
		return apperrors.Unauthorized("Invalid organization ID")
	}
	return nil
}

// ScopeToOrganization reports a foreign resource as missing, so lookups never
// confirm that another tenant's id exists.
func ScopeToOrganization(resourceOrganizationID, authOrganizationID, resource string) error {
	if resourceOrganizationID != authOrganizationID {
		return apperrors.NotFound(resource)
	}
	return nil
}

// Subject is the acting user's id, empty when unknown.
func (a *AuthContext) Subject() string {
	if a == nil || a.Identity == nil {
		return ""
	}
	return a.Identity.Subject
}
