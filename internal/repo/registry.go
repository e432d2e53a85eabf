package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/miradorstack/mirador-risk/internal/cache"
	"github.com/miradorstack/mirador-risk/internal/models"
)

// RegistryClient reads the equipment master and failure log from the fleet registry's JSON API.
type RegistryClient struct {
	baseURL       string
	equipmentPath string
	failuresPath  string
	httpClient    *http.Client
	cache         cache.Provider
	cacheTTL      time.Duration
}

// NewRegistryClient constructs a client targeting the configured registry instance.
func NewRegistryClient(baseURL, equipmentPath, failuresPath string, timeout time.Duration, cacheProvider cache.Provider, cacheTTL time.Duration) *RegistryClient {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if cacheTTL < 0 {
		cacheTTL = 0
	}
	return &RegistryClient{
		baseURL:       strings.TrimRight(baseURL, "/"),
		equipmentPath: equipmentPath,
		failuresPath:  failuresPath,
		httpClient:    &http.Client{Timeout: timeout},
		cache:         cacheProvider,
		cacheTTL:      cacheTTL,
	}
}

type registryEquipment struct {
	EquipmentID   string `json:"equipment_id"`
	EquipmentType string `json:"equipment_type"`
	Location      string `json:"location"`
}

type registryFailure struct {
	DowntimeID       string   `json:"downtime_id"`
	EquipmentID      string   `json:"equipment_id"`
	FailureDate      string   `json:"failure_date"`
	DowntimeHours    *float64 `json:"downtime_hours"`
	RepairCost       *float64 `json:"repair_cost"`
	FailureType      string   `json:"failure_type"`
	FailureComponent string   `json:"failure_component"`
}

// Load implements Source.
func (c *RegistryClient) Load(ctx context.Context) (Tables, error) {
	equipment, err := c.FetchEquipment(ctx)
	if err != nil {
		return Tables{}, err
	}
	failures, err := c.FetchFailures(ctx)
	if err != nil {
		return Tables{}, err
	}
	return Tables{Equipment: equipment, Failures: failures}, nil
}

// FetchEquipment returns the equipment master.
func (c *RegistryClient) FetchEquipment(ctx context.Context) ([]EquipmentRow, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var response struct {
		Equipment []registryEquipment `json:"equipment"`
	}
	if err := c.getJSON(ctx, c.resolvePath(c.equipmentPath), &response); err != nil {
		return nil, fmt.Errorf("registry equipment request failed: %w", err)
	}

	rows := make([]EquipmentRow, 0, len(response.Equipment))
	for i, e := range response.Equipment {
		rows = append(rows, EquipmentRow{
			Row:           i + 1,
			EquipmentID:   e.EquipmentID,
			EquipmentType: e.EquipmentType,
			Location:      e.Location,
		})
	}
	return rows, nil
}

// FetchFailures returns the failure-event log.
func (c *RegistryClient) FetchFailures(ctx context.Context) ([]FailureRow, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var response struct {
		Failures []registryFailure `json:"failures"`
	}
	if err := c.getJSON(ctx, c.resolvePath(c.failuresPath), &response); err != nil {
		return nil, fmt.Errorf("registry failures request failed: %w", err)
	}

	rows := make([]FailureRow, 0, len(response.Failures))
	for i, f := range response.Failures {
		if f.DowntimeHours == nil {
			return nil, &models.DataError{Table: FailureTable, Column: "downtime_hours", Row: i + 1, Err: errors.New("missing value")}
		}
		if f.RepairCost == nil {
			return nil, &models.DataError{Table: FailureTable, Column: "repair_cost", Row: i + 1, Err: errors.New("missing value")}
		}
		rows = append(rows, FailureRow{
			Row:              i + 1,
			DowntimeID:       f.DowntimeID,
			EquipmentID:      f.EquipmentID,
			FailureDate:      f.FailureDate,
			DowntimeHours:    *f.DowntimeHours,
			RepairCost:       *f.RepairCost,
			FailureType:      f.FailureType,
			FailureComponent: f.FailureComponent,
		})
	}
	return rows, nil
}

func (c *RegistryClient) ready() error {
	if c == nil {
		return fmt.Errorf("registry client not initialised")
	}
	if c.baseURL == "" {
		return fmt.Errorf("registry base URL not configured")
	}
	return nil
}

func (c *RegistryClient) resolvePath(p string) string {
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

// getJSON decodes endpoint into out, serving from the cache when a fresh copy exists.
func (c *RegistryClient) getJSON(ctx context.Context, endpoint string, out any) error {
	key := "registry:" + endpoint
	if cached, err := c.cache.Get(ctx, key); err == nil {
		if err := json.Unmarshal(cached, out); err == nil {
			return nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registry returned %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if c.cacheTTL > 0 {
		_ = c.cache.Set(ctx, key, body, c.cacheTTL)
	}
	return nil
}
