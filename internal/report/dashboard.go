package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/signagehq/sentinel/internal/models"
)

const dashboardTimeout = 10 * time.Second

// SyncDashboard pushes the full ops state to the backend so the admin UI
// can render fleet health without reading the state file. Callers treat a
// failure as non-fatal; the dashboard is a convenience mirror.
func SyncDashboard(ctx context.Context, baseURL, token string, state *models.OpsState) error {
	body, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal ops state: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, dashboardTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/v1/health/ops-status", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create dashboard request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("post dashboard sync: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("dashboard sync status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
