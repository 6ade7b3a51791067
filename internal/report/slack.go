package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/signagehq/sentinel/internal/models"
	"github.com/signagehq/sentinel/internal/pkg/metrics"
)

const slackTimeout = 10 * time.Second

var statusEmoji = map[models.SystemStatus]string{
	models.StatusHealthy:  ":large_green_circle:",
	models.StatusDegraded: ":large_yellow_circle:",
	models.StatusCritical: ":red_circle:",
}

// BuildSlackMessage assembles the Block Kit payload for one alert. Critical
// incidents get top billing (up to 5); warnings are only listed (up to 3)
// when there are no criticals to show.
func BuildSlackMessage(decision Decision, prev, current models.SystemStatus, state *models.OpsState, staleAgents []string, now time.Time) map[string]any {
	open := state.OpenIncidents()
	var criticals, warnings []models.Incident
	for _, inc := range open {
		if inc.Severity == models.SeverityCritical {
			criticals = append(criticals, inc)
		} else {
			warnings = append(warnings, inc)
		}
	}
	autoFixed := 0
	for _, result := range state.AgentResults {
		autoFixed += result.IssuesFixed
	}

	header := fmt.Sprintf("%s Fleet status: %s", statusEmoji[current], current)
	if decision.Kind == AlertRecovery {
		header = fmt.Sprintf("%s Fleet recovered: %s", statusEmoji[current], current)
	}

	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{"type": "plain_text", "text": header, "emoji": true},
		},
		{
			"type": "section",
			"text": map[string]any{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*%s* → *%s*\nOpen incidents: *%d* (%d critical, %d warning)\nAuto-fixed last cycle: *%d*",
					prev, current, len(open), len(criticals), len(warnings), autoFixed),
			},
		},
	}

	if len(criticals) > 0 {
		var lines []string
		for i, inc := range criticals {
			if i == 5 {
				lines = append(lines, fmt.Sprintf("_...and %d more_", len(criticals)-5))
				break
			}
			lines = append(lines, fmt.Sprintf(":red_circle: `%s` %s", inc.Type, inc.Message))
		}
		blocks = append(blocks, map[string]any{
			"type": "section",
			"text": map[string]any{"type": "mrkdwn", "text": "*Critical incidents*\n" + strings.Join(lines, "\n")},
		})
	} else if len(warnings) > 0 {
		var lines []string
		for i, inc := range warnings {
			if i == 3 {
				lines = append(lines, fmt.Sprintf("_...and %d more_", len(warnings)-3))
				break
			}
			lines = append(lines, fmt.Sprintf(":large_yellow_circle: `%s` %s", inc.Type, inc.Message))
		}
		blocks = append(blocks, map[string]any{
			"type": "section",
			"text": map[string]any{"type": "mrkdwn", "text": "*Warnings*\n" + strings.Join(lines, "\n")},
		})
	}

	if len(staleAgents) > 0 {
		blocks = append(blocks, map[string]any{
			"type": "section",
			"text": map[string]any{
				"type": "mrkdwn",
				"text": ":hourglass: *Stale agents:* " + strings.Join(staleAgents, ", "),
			},
		})
	}

	blocks = append(blocks, map[string]any{
		"type": "context",
		"elements": []map[string]any{
			{"type": "mrkdwn", "text": "sentinel ops | " + now.UTC().Format(time.RFC3339)},
		},
	})

	return map[string]any{
		"text":   header,
		"blocks": blocks,
	}
}

// SendSlack posts the payload to the incoming webhook.
func SendSlack(ctx context.Context, webhookURL string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, slackTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("post slack webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("slack webhook status %d: %s", resp.StatusCode, string(respBody))
	}
	metrics.AlertsSentTotal.WithLabelValues("slack").Inc()
	return nil
}
