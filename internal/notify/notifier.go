// Package notify pushes scan and drift alerts to Discord, Slack and
// generic webhooks.
package notify

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hardscan/hardscan/internal/baseline"
	"github.com/hardscan/hardscan/internal/config"
	"github.com/hardscan/hardscan/internal/scan"
)

const webhookTimeout = 10 * time.Second

// AlertPayload is the provider-independent alert body
type AlertPayload struct {
	Timestamp string                 `json:"timestamp"`
	Hostname  string                 `json:"hostname"`
	RunID     string                 `json:"run_id,omitempty"`
	Profile   string                 `json:"profile,omitempty"`
	Status    string                 `json:"status"` // worst severity, or "ok"
	Score     float64                `json:"score"`
	Grade     string                 `json:"grade,omitempty"`
	Title     string                 `json:"title"`
	Summary   string                 `json:"summary"`
	Issues    []AlertIssue           `json:"issues,omitempty"`
	Positives []string               `json:"positives,omitempty"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
}

// AlertIssue is a single finding inside an alert
type AlertIssue struct {
	Code      string `json:"code,omitempty"`
	Severity  string `json:"severity"`
	ControlID string `json:"control_id,omitempty"`
	Message   string `json:"message"`
}

// NotifyResult records where an alert went
type NotifyResult struct {
	Success bool          `json:"success"`
	Sent    []string      `json:"sent"`
	Failed  []NotifyError `json:"failed,omitempty"`
	Skipped string        `json:"skipped,omitempty"`
}

type NotifyError struct {
	Provider string `json:"provider"`
	Error    string `json:"error"`
}

// Notifier fans alerts out to the configured webhook providers. It
// remembers the last alert it sent so unchanged findings can be
// suppressed for the configured window.
type Notifier struct {
	config *config.NotifyConfig
	client *http.Client

	mu              sync.Mutex
	lastFingerprint string
	lastSentAt      time.Time
}

// NewNotifier creates a notifier from the notification config
func NewNotifier(cfg *config.NotifyConfig) *Notifier {
	return &Notifier{
		config: cfg,
		client: &http.Client{Timeout: webhookTimeout},
	}
}

// FromResult builds an alert from a scan result. The worst failed
// severity becomes the alert status; a clean scan reports "ok".
func FromResult(r *scan.Result) *AlertPayload {
	alert := &AlertPayload{
		Timestamp: r.Timestamp,
		Hostname:  hostnameOf(r),
		RunID:     r.RunID,
		Profile:   r.Profile,
		Status:    "ok",
		Score:     r.Summary.Score,
		Grade:     r.Summary.Grade,
	}

	worst := 0
	for _, fc := range r.Failed {
		alert.Issues = append(alert.Issues, AlertIssue{
			Severity:  fc.Severity,
			ControlID: fc.ID,
			Message:   fc.Title,
		})
		if rank := scan.SeverityRank(fc.Severity); rank > worst {
			worst = rank
			alert.Status = fc.Severity
		}
	}

	// fully passing sections make good news
	names := make([]string, 0, len(r.Sections))
	for name := range r.Sections {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := r.Sections[name]
		if s.Total > 0 && s.Passed == s.Total {
			alert.Positives = append(alert.Positives, fmt.Sprintf("%s: %d/%d controls passing", name, s.Passed, s.Total))
		}
	}

	if len(r.Failed) == 0 {
		alert.Title = fmt.Sprintf("Compliance scan passed: grade %s", r.Summary.Grade)
		alert.Summary = fmt.Sprintf("%s scored %s/100 against %s. All %d evaluated controls passed.",
			alert.Hostname, formatScore(r.Summary.Score), r.Profile, r.Summary.Passed)
	} else {
		alert.Title = fmt.Sprintf("Compliance scan: grade %s, %d failed", r.Summary.Grade, r.Summary.Failed)
		alert.Summary = fmt.Sprintf("%s scored %s/100 against %s. %d of %d controls failed.",
			alert.Hostname, formatScore(r.Summary.Score), r.Profile, r.Summary.Failed, r.Summary.Total)
	}

	return alert
}

// FromDiff builds a drift alert. Regressions drive the status; drift
// without regressions alerts at medium.
func FromDiff(d *baseline.DiffResult, hostname string) *AlertPayload {
	alert := &AlertPayload{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Hostname:  hostname,
		Status:    "ok",
		Title:     fmt.Sprintf("Baseline drift: %d change(s)", d.DriftCount),
		Summary: fmt.Sprintf("Host %s drifted from its baseline of %s: %d change(s), %d regression(s).",
			hostname, d.BaselineTimestamp, d.DriftCount, d.Regressions),
	}

	if d.DriftCount > 0 {
		alert.Status = scan.SeverityMedium
	}

	worst := 0
	for _, drift := range d.Drifts {
		alert.Issues = append(alert.Issues, AlertIssue{
			Code:      drift.Code,
			Severity:  drift.Severity,
			ControlID: drift.ControlID,
			Message:   drift.Message,
		})
		if drift.Kind == baseline.DriftRegressed {
			if rank := scan.SeverityRank(drift.Severity); rank > worst {
				worst = rank
				alert.Status = drift.Severity
			}
		}
	}

	return alert
}

// ShouldNotify checks whether any provider would receive an alert
func (n *Notifier) ShouldNotify(hasIssues bool) bool {
	if !n.config.Enabled {
		return false
	}
	if n.config.OnlyOnIssues && !hasIssues {
		return false
	}
	return n.config.Discord.Enabled || n.config.Slack.Enabled || n.config.GenericWebhook.Enabled
}

// Send delivers an alert to all configured webhooks
func (n *Notifier) Send(ctx context.Context, alert *AlertPayload) *NotifyResult {
	result := &NotifyResult{
		Success: true,
		Sent:    []string{},
		Failed:  []NotifyError{},
	}

	if !n.config.Enabled {
		result.Skipped = "notifications disabled"
		return result
	}

	if !n.meetsSeverityThreshold(alert.Status) {
		result.Skipped = fmt.Sprintf("severity %s below threshold %s", alert.Status, n.config.MinSeverity)
		return result
	}

	if n.suppressed(alert) {
		result.Skipped = "unchanged findings within suppression window"
		return result
	}

	if n.config.Discord.Enabled && n.config.Discord.WebhookURL != "" {
		if err := n.sendDiscord(ctx, alert); err != nil {
			result.Failed = append(result.Failed, NotifyError{Provider: "discord", Error: err.Error()})
			result.Success = false
		} else {
			result.Sent = append(result.Sent, "discord")
		}
	}

	if n.config.Slack.Enabled && n.config.Slack.WebhookURL != "" {
		if err := n.sendSlack(ctx, alert); err != nil {
			result.Failed = append(result.Failed, NotifyError{Provider: "slack", Error: err.Error()})
			result.Success = false
		} else {
			result.Sent = append(result.Sent, "slack")
		}
	}

	if n.config.GenericWebhook.Enabled && n.config.GenericWebhook.URL != "" {
		if err := n.sendGenericWebhook(ctx, alert); err != nil {
			result.Failed = append(result.Failed, NotifyError{Provider: "webhook", Error: err.Error()})
			result.Success = false
		} else {
			result.Sent = append(result.Sent, "webhook")
		}
	}

	if len(result.Sent) > 0 {
		n.mu.Lock()
		n.lastFingerprint = fingerprint(alert)
		n.lastSentAt = time.Now()
		n.mu.Unlock()
	}

	return result
}

func (n *Notifier) meetsSeverityThreshold(status string) bool {
	severityOrder := map[string]int{
		scan.SeverityLow:      1,
		scan.SeverityMedium:   2,
		scan.SeverityHigh:     3,
		scan.SeverityCritical: 4,
	}

	statusLevel := severityOrder[strings.ToLower(status)]
	thresholdLevel := severityOrder[strings.ToLower(n.config.MinSeverity)]

	// "ok" alerts only go out when all-clear notifications are wanted
	if statusLevel == 0 {
		return !n.config.OnlyOnIssues
	}

	return statusLevel >= thresholdLevel
}

// suppressed reports whether an identical alert went out inside the
// suppression window
func (n *Notifier) suppressed(alert *AlertPayload) bool {
	if n.config.SuppressMinutes <= 0 {
		return false
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.lastFingerprint == "" || n.lastFingerprint != fingerprint(alert) {
		return false
	}
	window := time.Duration(n.config.SuppressMinutes) * time.Minute
	return time.Since(n.lastSentAt) < window
}

// fingerprint hashes the findings, ignoring timestamps, so repeated
// scans with identical findings collapse to one alert
func fingerprint(alert *AlertPayload) string {
	h := sha256.New()
	io.WriteString(h, alert.Status)
	for _, issue := range alert.Issues {
		io.WriteString(h, "\n"+issue.Code+"|"+issue.Severity+"|"+issue.ControlID+"|"+issue.Message)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Discord webhook payload
type discordPayload struct {
	Username  string         `json:"username,omitempty"`
	AvatarURL string         `json:"avatar_url,omitempty"`
	Content   string         `json:"content,omitempty"`
	Embeds    []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Fields      []discordField `json:"fields,omitempty"`
	Footer      *discordFooter `json:"footer,omitempty"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordFooter struct {
	Text string `json:"text"`
}

func (n *Notifier) sendDiscord(ctx context.Context, alert *AlertPayload) error {
	color := 0x2ECC71 // green
	emoji := ":white_check_mark:"
	switch strings.ToLower(alert.Status) {
	case scan.SeverityCritical:
		color = 0xE74C3C // red
		emoji = ":red_circle:"
	case scan.SeverityHigh:
		color = 0xE67E22 // orange
		emoji = ":orange_circle:"
	case scan.SeverityMedium:
		color = 0xF1C40F // yellow
		emoji = ":yellow_circle:"
	}

	description := alert.Summary
	if len(alert.Issues) > 0 {
		description += "\n\n**Failed Controls:**"
		for i, issue := range alert.Issues {
			if i >= 5 { // Discord embeds get unwieldy past 5
				description += fmt.Sprintf("\n... and %d more", len(alert.Issues)-5)
				break
			}
			description += fmt.Sprintf("\n• [%s] %s", strings.ToUpper(issue.Severity), issue.Message)
		}
	}

	fields := []discordField{
		{Name: "Status", Value: fmt.Sprintf("%s %s", emoji, strings.ToUpper(alert.Status)), Inline: true},
		{Name: "Score", Value: fmt.Sprintf("%s/100", formatScore(alert.Score)), Inline: true},
		{Name: "Host", Value: alert.Hostname, Inline: true},
	}

	if len(alert.Positives) > 0 {
		posText := ""
		for i, p := range alert.Positives {
			if i >= 3 {
				posText += fmt.Sprintf("\n... and %d more", len(alert.Positives)-3)
				break
			}
			posText += fmt.Sprintf(":white_check_mark: %s\n", p)
		}
		fields = append(fields, discordField{Name: "Passing Sections", Value: posText, Inline: false})
	}

	payload := discordPayload{
		Username:  n.config.Discord.Username,
		AvatarURL: n.config.Discord.AvatarURL,
		Embeds: []discordEmbed{
			{
				Title:       alert.Title,
				Description: description,
				Color:       color,
				Timestamp:   alert.Timestamp,
				Fields:      fields,
				Footer:      &discordFooter{Text: "Hardscan"},
			},
		},
	}

	return n.postJSON(ctx, n.config.Discord.WebhookURL, payload)
}

// Slack webhook payload
type slackPayload struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

type slackAttachment struct {
	Color      string       `json:"color"`
	Title      string       `json:"title"`
	Text       string       `json:"text"`
	Fields     []slackField `json:"fields,omitempty"`
	Footer     string       `json:"footer,omitempty"`
	FooterIcon string       `json:"footer_icon,omitempty"`
	Ts         int64        `json:"ts,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

func (n *Notifier) sendSlack(ctx context.Context, alert *AlertPayload) error {
	color := "good" // green
	emoji := ":white_check_mark:"
	switch strings.ToLower(alert.Status) {
	case scan.SeverityCritical:
		color = "danger"
		emoji = ":red_circle:"
	case scan.SeverityHigh:
		color = "warning"
		emoji = ":large_orange_circle:"
	case scan.SeverityMedium:
		color = "warning"
		emoji = ":large_yellow_circle:"
	}

	text := alert.Summary
	if len(alert.Issues) > 0 {
		text += "\n\n*Failed Controls:*"
		for i, issue := range alert.Issues {
			if i >= 5 {
				text += fmt.Sprintf("\n... and %d more", len(alert.Issues)-5)
				break
			}
			text += fmt.Sprintf("\n• [%s] %s", strings.ToUpper(issue.Severity), issue.Message)
		}
	}

	fields := []slackField{
		{Title: "Status", Value: fmt.Sprintf("%s %s", emoji, strings.ToUpper(alert.Status)), Short: true},
		{Title: "Score", Value: fmt.Sprintf("%s/100", formatScore(alert.Score)), Short: true},
		{Title: "Host", Value: alert.Hostname, Short: true},
	}

	payload := slackPayload{
		Channel:   n.config.Slack.Channel,
		Username:  n.config.Slack.Username,
		IconEmoji: ":shield:",
		Text:      fmt.Sprintf("*%s*", alert.Title),
		Attachments: []slackAttachment{
			{
				Color:  color,
				Title:  alert.Title,
				Text:   text,
				Fields: fields,
				Footer: "Hardscan",
			},
		},
	}

	return n.postJSON(ctx, n.config.Slack.WebhookURL, payload)
}

func (n *Notifier) sendGenericWebhook(ctx context.Context, alert *AlertPayload) error {
	method := n.config.GenericWebhook.Method
	if method == "" {
		method = "POST"
	}

	body, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, n.config.GenericWebhook.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range n.config.GenericWebhook.Headers {
		req.Header.Set(k, v)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

func (n *Notifier) postJSON(ctx context.Context, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// TestWebhook sends a synthetic alert to verify provider configuration
func (n *Notifier) TestWebhook(ctx context.Context, provider string) error {
	testAlert := &AlertPayload{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Hostname:  "test-host",
		Status:    "ok",
		Score:     95,
		Grade:     "A",
		Title:     "Test Notification",
		Summary:   "This is a test notification from hardscan to verify webhook configuration.",
		Positives: []string{"Webhook configuration verified", "Connection successful"},
	}

	switch provider {
	case "discord":
		return n.sendDiscord(ctx, testAlert)
	case "slack":
		return n.sendSlack(ctx, testAlert)
	case "webhook":
		return n.sendGenericWebhook(ctx, testAlert)
	default:
		return fmt.Errorf("unknown provider: %s", provider)
	}
}

func hostnameOf(r *scan.Result) string {
	if r.Host == nil || r.Host.Hostname == "" {
		return "unknown"
	}
	return r.Host.Hostname
}

func formatScore(score float64) string {
	return strings.TrimSuffix(strings.TrimSuffix(fmt.Sprintf("%.1f", score), "0"), ".")
}
