package clash

import (
	"fmt"

	"github.com/gladiators/warstats/internal/models"
)

type API struct {
	client *Client
}

func NewAPI(client *Client) *API {
	return &API{client: client}
}

// DemoMode reports whether the API is running without a usable key.
func (a *API) DemoMode() bool {
	return !a.client.HasAPIKey()
}

func (a *API) GetClan() (*models.ClanResponse, error) {
	var clan models.ClanResponse
	if err := a.client.Get(a.client.clanPath(""), &clan); err != nil {
		return nil, fmt.Errorf("fetching clan: %w", err)
	}
	return &clan, nil
}

// GetWarLog fetches the historical war log. Callers should check
// IsEndpointDisabled on failure: the upstream periodically turns this
// endpoint off.
func (a *API) GetWarLog() ([]models.RawWarRecord, error) {
	var response struct {
		Items []models.RawWarRecord `json:"items"`
	}
	if err := a.client.Get(a.client.clanPath("/warlog"), &response); err != nil {
		return nil, fmt.Errorf("fetching war log: %w", err)
	}
	return response.Items, nil
}

func (a *API) GetCurrentRiverRace() (*models.RiverRaceResponse, error) {
	var race models.RiverRaceResponse
	if err := a.client.Get(a.client.clanPath("/currentriverrace"), &race); err != nil {
		return nil, fmt.Errorf("fetching current river race: %w", err)
	}
	return &race, nil
}
