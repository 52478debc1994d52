package deel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"contractor-sync/internal/config"
	"contractor-sync/internal/matching"

	"golang.org/x/time/rate"
)

// Worker is the person attached to a Deel contract
type Worker struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// Contract is a Deel contract as returned by the REST v2 contracts API
type Contract struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	Type       string `json:"type"`
	Worker     Worker `json:"worker"`
	ExternalID string `json:"external_id"`
}

type contractsPage struct {
	Data []Contract `json:"data"`
	Page struct {
		Cursor string `json:"cursor"`
	} `json:"page"`
}

// Client talks to the Deel REST v2 API
type Client struct {
	baseURL      string
	token        string
	contractType string
	httpClient   *http.Client
	limiter      *rate.Limiter
}

// NewClient creates a Deel API client from configuration
func NewClient(cfg config.DeelConfig) *Client {
	return &Client{
		baseURL:      cfg.BaseURL,
		token:        cfg.APIKey,
		contractType: cfg.ContractType,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		limiter:      rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
	}
}

// ExternalID is the tag written onto a Deel contract to link it back to
// a Harvest user
func ExternalID(harvestUserID string) string {
	return "harvest_" + harvestUserID
}

// ListContracts fetches all contracts of the configured type, following
// cursor pagination until exhausted
func (c *Client) ListContracts(ctx context.Context) ([]Contract, error) {
	var contracts []Contract

	cursor := ""
	for {
		page, err := c.fetchContractsPage(ctx, cursor)
		if err != nil {
			return nil, err
		}
		for _, contract := range page.Data {
			if contract.Type == c.contractType {
				contracts = append(contracts, contract)
			}
		}
		if len(page.Data) == 0 || page.Page.Cursor == "" {
			break
		}
		cursor = page.Page.Cursor
	}

	return contracts, nil
}

// FindContractByExternalID looks up the contract tagged with the given
// Harvest user id. Returns nil when no contract carries the tag.
func (c *Client) FindContractByExternalID(ctx context.Context, harvestUserID string) (*Contract, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := c.baseURL + "/contracts?" + url.Values{"external_id": {ExternalID(harvestUserID)}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build deel request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deel external_id lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("deel external_id lookup returned %d: %s", resp.StatusCode, readErrorBody(resp))
	}

	var page contractsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode deel contracts response: %w", err)
	}
	if len(page.Data) == 0 {
		return nil, nil
	}
	return &page.Data[0], nil
}

// SetExternalID tags a contract with the Harvest user id so future runs
// can resolve the pair without fuzzy matching
func (c *Client) SetExternalID(ctx context.Context, contractID, harvestUserID string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]any{
		"data": map[string]string{"external_id": ExternalID(harvestUserID)},
	})
	if err != nil {
		return fmt.Errorf("failed to encode external_id payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.baseURL+"/contracts/"+contractID, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build deel request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deel external_id update failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("deel external_id update returned %d: %s", resp.StatusCode, readErrorBody(resp))
	}
	return nil
}

func (c *Client) fetchContractsPage(ctx context.Context, cursor string) (*contractsPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := c.baseURL + "/contracts"
	if cursor != "" {
		reqURL += "?" + url.Values{"after_cursor": {cursor}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build deel request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deel contracts request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("deel contracts request returned %d: %s", resp.StatusCode, readErrorBody(resp))
	}

	var page contractsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode deel contracts response: %w", err)
	}
	return &page, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
}

func readErrorBody(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return string(body)
}

// Candidate converts a contract into the shape the match engine scores
func (contract Contract) Candidate() matching.Candidate {
	return matching.Candidate{
		ID:          contract.ID,
		Title:       contract.Title,
		Status:      contract.Status,
		WorkerName:  contract.Worker.FullName,
		WorkerEmail: contract.Worker.Email,
	}
}
