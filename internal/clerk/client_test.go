package clerk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL+"/", "sk_test_123", time.Second)
}

func writeClerkError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"errors":[{"code":"` + code + `","message":"` + code + `"}]}`))
}

func TestClient_OrganizationExists(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/organizations/org_abc123":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"object":"organization","id":"org_abc123","name":"Acme"}`))
		case "/organizations/org_missing":
			writeClerkError(w, http.StatusNotFound, "resource_not_found")
		default:
			writeClerkError(w, http.StatusInternalServerError, "internal_clerk_error")
		}
	})
	ctx := context.Background()

	exists, err := client.OrganizationExists(ctx, "org_abc123")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = client.OrganizationExists(ctx, "org_missing")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = client.OrganizationExists(ctx, "org_broken")
	assert.Error(t, err)
}

func TestClient_SetMaxAllowedMemberships(t *testing.T) {
	t.Run("patches the membership limit", func(t *testing.T) {
		var got map[string]any
		client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPatch, r.Method)
			assert.Equal(t, "/organizations/org_abc123", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"object":"organization","id":"org_abc123","max_allowed_memberships":5}`))
		})

		require.NoError(t, client.SetMaxAllowedMemberships(context.Background(), "org_abc123", 5))
		assert.Equal(t, float64(5), got["max_allowed_memberships"])
	})

	t.Run("unknown organization", func(t *testing.T) {
		client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeClerkError(w, http.StatusNotFound, "resource_not_found")
		})

		err := client.SetMaxAllowedMemberships(context.Background(), "org_missing", 5)
		assert.ErrorIs(t, err, ErrOrganizationNotFound)
	})
}
