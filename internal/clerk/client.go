// Package clerk talks to the Clerk backend API for organization lookups
// and membership limits.
package clerk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	clerksdk "github.com/clerk/clerk-sdk-go/v2"
	"github.com/clerk/clerk-sdk-go/v2/organization"
	"github.com/rs/zerolog/log"
)

var ErrOrganizationNotFound = errors.New("organization not found")

type Client struct {
	orgs *organization.Client
}

func NewClient(baseURL, secretKey string, timeout time.Duration) *Client {
	cfg := &clerksdk.ClientConfig{}
	cfg.Key = clerksdk.String(secretKey)
	cfg.URL = clerksdk.String(strings.TrimRight(baseURL, "/"))
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &Client{orgs: organization.NewClient(cfg)}
}

func (c *Client) GetOrganization(ctx context.Context, organizationID string) (*clerksdk.Organization, error) {
	start := time.Now()
	org, err := c.orgs.Get(ctx, organizationID)
	if err != nil {
		return nil, c.fail("get organization", organizationID, start, err)
	}
	return org, nil
}

// OrganizationExists reports whether Clerk knows organizationID.
func (c *Client) OrganizationExists(ctx context.Context, organizationID string) (bool, error) {
	_, err := c.GetOrganization(ctx, organizationID)
	if errors.Is(err, ErrOrganizationNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) SetMaxAllowedMemberships(ctx context.Context, organizationID string, max int) error {
	start := time.Now()
	_, err := c.orgs.Update(ctx, organizationID, &organization.UpdateParams{
		MaxAllowedMemberships: clerksdk.Int64(int64(max)),
	})
	if err != nil {
		return c.fail("update organization", organizationID, start, err)
	}
	return nil
}

// fail maps a 404 to ErrOrganizationNotFound and logs everything else.
func (c *Client) fail(op, organizationID string, start time.Time, err error) error {
	var apiErr *clerksdk.APIErrorResponse
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusNotFound {
		return ErrOrganizationNotFound
	}
	log.Error().
		Err(err).
		Str("op", op).
		Str("organizationId", organizationID).
		Dur("elapsed", time.Since(start)).
		Msg("clerk request failed")
	return fmt.Errorf("clerk %s: %w", op, err)
}
