package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/supportdesk/support-server-go/internal/util"
)

const reasonOrganizationNotValid = "Organization not valid"

type OrganizationService struct {
	directory OrganizationDirectory
}

func NewOrganizationService(directory OrganizationDirectory) *OrganizationService {
	return &OrganizationService{directory: directory}
}

// Validate tells the widget whether organizationID can receive chats. Lookup
// failures count as not valid.
func (s *OrganizationService) Validate(ctx context.Context, organizationID string) ValidationResult {
	if err := util.ValidateOrganizationID(organizationID); err != nil {
		return ValidationResult{Valid: false, Reason: reasonOrganizationNotValid}
	}

	exists, err := s.directory.OrganizationExists(ctx, organizationID)
	if err != nil {
		log.Warn().Err(err).Str("organizationId", organizationID).Msg("organization lookup failed")
		return ValidationResult{Valid: false, Reason: reasonOrganizationNotValid}
	}
	if !exists {
		return ValidationResult{Valid: false, Reason: reasonOrganizationNotValid}
	}
	return ValidationResult{Valid: true}
}
