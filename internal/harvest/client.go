package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"contractor-sync/internal/config"
	"contractor-sync/internal/matching"

	"golang.org/x/time/rate"
)

// User is a Harvest account member as returned by the v2 users endpoint
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	IsActive  bool   `json:"is_active"`
}

type usersPage struct {
	Users []User `json:"users"`
	Links struct {
		Next *string `json:"next"`
	} `json:"links"`
}

// Client talks to the Harvest API v2
type Client struct {
	baseURL    string
	accountID  string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a Harvest API client from configuration
func NewClient(cfg config.HarvestConfig) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		accountID:  cfg.AccountID,
		token:      cfg.AccessToken,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
	}
}

// ListActiveUsers fetches all active users, following the links.next
// pagination until exhausted
func (c *Client) ListActiveUsers(ctx context.Context) ([]matching.User, error) {
	var users []matching.User

	next := c.baseURL + "/users?" + url.Values{"is_active": {"true"}}.Encode()
	for next != "" {
		page, err := c.fetchUsersPage(ctx, next)
		if err != nil {
			return nil, err
		}
		for _, u := range page.Users {
			users = append(users, matching.User{
				ID:        strconv.FormatInt(u.ID, 10),
				Email:     u.Email,
				FirstName: u.FirstName,
				LastName:  u.LastName,
			})
		}
		next = ""
		if page.Links.Next != nil {
			next = *page.Links.Next
		}
	}

	return users, nil
}

func (c *Client) fetchUsersPage(ctx context.Context, pageURL string) (*usersPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build harvest request: %w", err)
	}
	req.Header.Set("Harvest-Account-Id", c.accountID)
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("harvest users request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("harvest users request returned %d: %s", resp.StatusCode, string(body))
	}

	var page usersPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode harvest users response: %w", err)
	}
	return &page, nil
}
