package publisher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jgoulah/gridmeter/internal/config"
	"github.com/jgoulah/gridmeter/pkg/models"
)

// HAPayload matches the Home Assistant backfill service call data
type HAPayload struct {
	EntityID    string       `json:"entity_id"`
	State       string       `json:"state"`
	LastChanged string       `json:"last_changed"`
	LastUpdated string       `json:"last_updated"`
	Attributes  HAAttributes `json:"attributes"`
}

// HAAttributes are attached to every backfilled state
type HAAttributes struct {
	UnitOfMeasurement string `json:"unit_of_measurement"`
	UsageMethod       string `json:"usage_method"`
	UsageMethodID     int    `json:"usage_method_id"`
	Service           string `json:"service,omitempty"`
}

// StatsResult is the AppDaemon generate_statistics response
type StatsResult struct {
	Inserted   int `json:"inserted"`
	Updated    int `json:"updated"`
	TotalHours int `json:"total_hours"`
}

func validateHA(haCfg config.HAConfig) error {
	if !haCfg.Enabled {
		return nil
	}
	if haCfg.URL == "" {
		return fmt.Errorf("Home Assistant URL is required when enabled")
	}
	if haCfg.Token == "" {
		return fmt.Errorf("Home Assistant token is required when enabled")
	}
	if haCfg.EntityID == "" && len(haCfg.MethodEntities) == 0 {
		return fmt.Errorf("Home Assistant entity_id is required when enabled")
	}
	return nil
}

// BuildHAPayload maps a reading to the backfill payload for its method's entity
func BuildHAPayload(haCfg config.HAConfig, reading models.UsageData) (HAPayload, error) {
	entity := haCfg.EntityFor(reading.Method)
	if entity == "" {
		return HAPayload{}, fmt.Errorf("no Home Assistant entity configured for %s", reading.Method)
	}

	// Determine timestamp to use for last_changed and last_updated
	var timestamp string
	if !reading.StartTime.IsZero() {
		timestamp = reading.StartTime.Format(time.RFC3339)
	} else {
		timestamp = reading.Date.Format(time.RFC3339)
	}

	return HAPayload{
		EntityID:    entity,
		State:       fmt.Sprintf("%.2f", reading.KWh),
		LastChanged: timestamp,
		LastUpdated: timestamp,
		Attributes: HAAttributes{
			UnitOfMeasurement: "kWh",
			UsageMethod:       reading.Method.String(),
			UsageMethodID:     reading.Method.Int(),
			Service:           reading.Service,
		},
	}, nil
}

// PublishHA sends a usage reading to Home Assistant via HTTP API
func (p *Publisher) PublishHA(reading models.UsageData) error {
	if !p.haConfig.Enabled {
		return fmt.Errorf("Home Assistant publishing is not enabled in config")
	}

	payload, err := BuildHAPayload(p.haConfig, reading)
	if err != nil {
		return err
	}

	// AppDaemon API endpoint
	apiURL := fmt.Sprintf("%s/api/appdaemon/backfill_state", p.haConfig.URL)
	_, err = p.postJSON(p.httpClient, apiURL, payload)
	return err
}

// GenerateStatistics asks AppDaemon to compile statistics for entity from backfilled states
func (p *Publisher) GenerateStatistics(entity string) (*StatsResult, error) {
	if !p.haConfig.Enabled {
		return nil, fmt.Errorf("Home Assistant is not enabled in config")
	}

	apiURL := fmt.Sprintf("%s/api/appdaemon/generate_statistics", p.haConfig.URL)
	client := &http.Client{Timeout: 60 * time.Second} // Longer timeout for statistics generation

	respBody, err := p.postJSON(client, apiURL, map[string]string{"entity_id": entity})
	if err != nil {
		return nil, err
	}

	var result StatsResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return &result, nil
}

func (p *Publisher) postJSON(client *http.Client, apiURL string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequest("POST", apiURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+p.haConfig.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: status %d, response: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
