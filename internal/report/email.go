package report

import (
	"fmt"
	"html"
	"net/smtp"
	"strings"
	"time"

	"github.com/signagehq/sentinel/internal/config"
	"github.com/signagehq/sentinel/internal/models"
	"github.com/signagehq/sentinel/internal/pkg/metrics"
)

// emailMaxIncidents caps the incident table; the full list lives in the
// state document and the archive.
const emailMaxIncidents = 20

var statusColor = map[models.SystemStatus]string{
	models.StatusHealthy:  "#2ecc71",
	models.StatusDegraded: "#f39c12",
	models.StatusCritical: "#e74c3c",
}

// BuildEmailHTML renders the alert email body: a color-coded status banner
// and a table of open incidents, criticals first.
func BuildEmailHTML(prev, current models.SystemStatus, state *models.OpsState, now time.Time) string {
	open := state.OpenIncidents()
	ordered := make([]models.Incident, 0, len(open))
	for _, inc := range open {
		if inc.Severity == models.SeverityCritical {
			ordered = append(ordered, inc)
		}
	}
	for _, inc := range open {
		if inc.Severity != models.SeverityCritical {
			ordered = append(ordered, inc)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<div style="font-family:sans-serif;max-width:700px">`)
	fmt.Fprintf(&b, `<div style="background:%s;color:#fff;padding:16px;border-radius:6px 6px 0 0">`,
		statusColor[current])
	fmt.Fprintf(&b, `<h2 style="margin:0">Fleet status: %s</h2>`, current)
	fmt.Fprintf(&b, `<p style="margin:4px 0 0">was %s, %d open incidents, %s</p></div>`,
		prev, len(ordered), now.UTC().Format("2006-01-02 15:04 UTC"))

	if len(ordered) > 0 {
		b.WriteString(`<table style="width:100%;border-collapse:collapse;font-size:14px">`)
		b.WriteString(`<tr style="text-align:left;border-bottom:2px solid #ddd">` +
			`<th style="padding:6px">Severity</th><th style="padding:6px">Type</th>` +
			`<th style="padding:6px">Message</th><th style="padding:6px">Since</th></tr>`)
		for i, inc := range ordered {
			if i == emailMaxIncidents {
				fmt.Fprintf(&b, `<tr><td colspan="4" style="padding:6px">...and %d more</td></tr>`,
					len(ordered)-emailMaxIncidents)
				break
			}
			color := statusColor[models.StatusDegraded]
			if inc.Severity == models.SeverityCritical {
				color = statusColor[models.StatusCritical]
			}
			fmt.Fprintf(&b,
				`<tr style="border-bottom:1px solid #eee">`+
					`<td style="padding:6px;color:%s;font-weight:bold">%s</td>`+
					`<td style="padding:6px"><code>%s</code></td>`+
					`<td style="padding:6px">%s</td>`+
					`<td style="padding:6px">%s</td></tr>`,
				color, inc.Severity, inc.Type,
				html.EscapeString(inc.Message),
				inc.Detected.UTC().Format("Jan 2 15:04"))
		}
		b.WriteString(`</table>`)
	} else {
		b.WriteString(`<p style="padding:12px">No open incidents.</p>`)
	}
	b.WriteString(`<p style="color:#888;font-size:12px;padding:8px">sentinel ops reporter</p></div>`)
	return b.String()
}

// SendEmail delivers the alert over SMTP. Skipped silently (nil) when the
// host or recipients are not configured.
func SendEmail(cfg *config.Config, subject, htmlBody string) error {
	if cfg.SMTPHost == "" || cfg.SMTPTo == "" {
		return nil
	}
	recipients := strings.Split(cfg.SMTPTo, ",")
	for i := range recipients {
		recipients[i] = strings.TrimSpace(recipients[i])
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", cfg.SMTPFrom)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/html; charset=utf-8\r\n\r\n")
	msg.WriteString(htmlBody)

	addr := fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort)
	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPHost)
	}
	if err := smtp.SendMail(addr, auth, cfg.SMTPFrom, recipients, []byte(msg.String())); err != nil {
		return fmt.Errorf("send alert email: %w", err)
	}
	metrics.AlertsSentTotal.WithLabelValues("email").Inc()
	return nil
}
