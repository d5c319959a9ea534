// Package vapi lists phone numbers and assistants of a tenant's Vapi account.
package vapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultBaseURL = "https://api.vapi.ai"

type PhoneNumber struct {
	ID          string `json:"id"`
	Number      string `json:"number,omitempty"`
	Name        string `json:"name,omitempty"`
	Status      string `json:"status,omitempty"`
	AssistantID string `json:"assistantId,omitempty"`
}

type Assistant struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Model struct {
		Provider string `json:"provider,omitempty"`
		Model    string `json:"model,omitempty"`
	} `json:"model"`
}

type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) ListPhoneNumbers(ctx context.Context, privateAPIKey string) ([]PhoneNumber, error) {
	var numbers []PhoneNumber
	if err := c.get(ctx, "/phone-number", privateAPIKey, &numbers); err != nil {
		return nil, err
	}
	return numbers, nil
}

func (c *Client) ListAssistants(ctx context.Context, privateAPIKey string) ([]Assistant, error) {
	var assistants []Assistant
	if err := c.get(ctx, "/assistant", privateAPIKey, &assistants); err != nil {
		return nil, err
	}
	return assistants, nil
}

func (c *Client) get(ctx context.Context, path, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("vapi request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().
			Str("path", path).
			Int("status", resp.StatusCode).
			Dur("elapsed", time.Since(start)).
			Msg("vapi request failed")
		return fmt.Errorf("vapi request failed with status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode vapi response: %w", err)
	}
	return nil
}
