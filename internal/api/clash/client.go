package clash

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gladiators/warstats/internal/config"
)

const defaultBaseURL = "https://api.clashroyale.com/v1"

// APIError is a non-200 answer from the upstream. Reason and Message
// come from the error body when it parses.
type APIError struct {
	StatusCode int
	Reason     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("api status %d: %s", e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("api status %d", e.StatusCode)
}

// IsEndpointDisabled reports whether the upstream has turned the
// endpoint off, which it does periodically for the historical war log.
// The caller falls back to the live race snapshot in that case.
func IsEndpointDisabled(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode != http.StatusNotFound {
		return false
	}
	return apiErr.Reason == "notFound" ||
		strings.Contains(strings.ToLower(apiErr.Message), "disabled")
}

type Client struct {
	httpClient *http.Client
	BaseURL    string
	Config     config.ClashAPI
}

func NewClient(cfg config.ClashAPI) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		BaseURL:    defaultBaseURL,
		Config:     cfg,
	}
}

// HasAPIKey reports whether a plausible key is configured. Without one
// the service runs in demo mode on sample data.
func (c *Client) HasAPIKey() bool {
	key := c.Config.APIKey
	return len(key) > 10 && strings.TrimSpace(key) == key
}

func (c *Client) Get(endpoint string, result interface{}) error {
	req, err := http.NewRequest("GET", c.BaseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.Config.APIKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Gladiators-War-Stats/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		var parsed struct {
			Reason  string `json:"reason"`
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &parsed) == nil {
			apiErr.Reason = parsed.Reason
			apiErr.Message = parsed.Message
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}

	return nil
}

// clanPath builds the clan endpoint path, escaping the leading '#'.
func (c *Client) clanPath(suffix string) string {
	return "/clans/" + url.PathEscape("#"+c.Config.ClanTag) + suffix
}
