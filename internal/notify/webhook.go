// Package notify sends Discord/Telegram alerts for simulation anomalies
// (spec SPEC_FULL 2.10): a round finishing with orphanRate or reorgRate
// above configured sanity thresholds, or a worker reporting a Partial
// result. Adapted from the teacher's pool-event webhook notifier — same
// retry-with-backoff POST idiom, new message content.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bawdyanarchist/minesim/internal/config"
	"github.com/bawdyanarchist/minesim/internal/metrics"
	"github.com/bawdyanarchist/minesim/internal/telemetry"
)

// Retry configuration for webhook delivery.
const (
	MaxRetries     = 3
	RetryBaseDelay = 2 * time.Second
)

// Notifier sends alerts to configured Discord/Telegram webhooks.
type Notifier struct {
	cfg    *config.NotifyConfig
	client *http.Client
}

// NewNotifier creates a new notifier from cfg.
func NewNotifier(cfg *config.NotifyConfig) *Notifier {
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// NotifyAnomalousRound fires when a round's orphanRate or reorgRate exceeds
// the configured thresholds (spec 7 resource/anomaly alerting row).
func (n *Notifier) NotifyAnomalousRound(roundID string, summary metrics.RoundSummary) {
	if !n.cfg.Enabled {
		return
	}
	if summary.OrphanRate.Mean <= n.cfg.OrphanRateMax && summary.ReorgRate.Mean <= n.cfg.ReorgRateMax {
		return
	}

	title := "Anomalous round detected"
	fields := []DiscordField{
		{Name: "Round", Value: roundID, Inline: true},
		{Name: "Orphan rate", Value: fmt.Sprintf("%.4f", summary.OrphanRate.Mean), Inline: true},
		{Name: "Reorg rate", Value: fmt.Sprintf("%.4f", summary.ReorgRate.Mean), Inline: true},
	}
	n.send(title, fmt.Sprintf("Round `%s` exceeded its orphan/reorg sanity thresholds.", roundID), 0xFF0000, fields)
}

// NotifyPartialResult fires when a round was canceled mid-flight, typically
// because the WORKER_RAM cap tripped (spec 5/7 resource row).
func (n *Notifier) NotifyPartialResult(roundID string, cause error) {
	if !n.cfg.Enabled {
		return
	}

	reason := "unknown"
	if cause != nil {
		reason = cause.Error()
	}
	fields := []DiscordField{
		{Name: "Round", Value: roundID, Inline: true},
		{Name: "Reason", Value: reason, Inline: false},
	}
	n.send("Round canceled (partial result)", fmt.Sprintf("Round `%s` was canceled before completing.", roundID), 0xFFA500, fields)
}

func (n *Notifier) send(title, description string, color int, fields []DiscordField) {
	if n.cfg.DiscordURL != "" {
		go n.sendDiscordMessageWithRetry(title, description, color, fields)
	}
	if n.cfg.TelegramBotToken != "" && n.cfg.TelegramChatID != "" {
		go n.sendTelegramMessageWithRetry(title, description, fields)
	}
}

// DiscordEmbed represents a Discord embed object.
type DiscordEmbed struct {
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color,omitempty"`
	Fields      []DiscordField `json:"fields,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
}

// DiscordField represents a field in a Discord embed.
type DiscordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// DiscordMessage represents a Discord webhook message.
type DiscordMessage struct {
	Embeds []DiscordEmbed `json:"embeds,omitempty"`
}

// sendDiscordMessageWithRetry posts msg to the Discord webhook with
// exponential backoff retry.
func (n *Notifier) sendDiscordMessageWithRetry(title, description string, color int, fields []DiscordField) {
	msg := DiscordMessage{Embeds: []DiscordEmbed{{
		Title:       title,
		Description: description,
		Color:       color,
		Fields:      fields,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}}}

	body, err := json.Marshal(msg)
	if err != nil {
		telemetry.Log().Warnf("notify: failed to marshal Discord message: %v", err)
		return
	}

	var lastErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		if attempt > 0 {
			delay := RetryBaseDelay * time.Duration(1<<uint(attempt-1))
			time.Sleep(delay)
		}

		resp, err := n.client.Post(n.cfg.DiscordURL, "application/json", bytes.NewReader(body))
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()

		if resp.StatusCode < 400 {
			return
		}
		if resp.StatusCode == 429 {
			time.Sleep(5 * time.Second)
			continue
		}
		lastErr = fmt.Errorf("status %d", resp.StatusCode)
	}

	if lastErr != nil {
		telemetry.Log().Warnf("notify: failed to send Discord notification after %d retries: %v", MaxRetries, lastErr)
	}
}

// TelegramMessage represents a Telegram bot message.
type TelegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// sendTelegramMessageWithRetry posts text to the Telegram bot API with
// exponential backoff retry.
func (n *Notifier) sendTelegramMessageWithRetry(title, description string, fields []DiscordField) {
	text := fmt.Sprintf("*%s*\n\n%s\n", title, description)
	for _, f := range fields {
		text += fmt.Sprintf("%s: `%s`\n", f.Name, f.Value)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.cfg.TelegramBotToken)
	msg := TelegramMessage{ChatID: n.cfg.TelegramChatID, Text: text, ParseMode: "Markdown"}

	body, err := json.Marshal(msg)
	if err != nil {
		telemetry.Log().Warnf("notify: failed to marshal Telegram message: %v", err)
		return
	}

	var lastErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		if attempt > 0 {
			delay := RetryBaseDelay * time.Duration(1<<uint(attempt-1))
			time.Sleep(delay)
		}

		resp, err := n.client.Post(url, "application/json", bytes.NewReader(body))
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()

		if resp.StatusCode < 400 {
			return
		}
		if resp.StatusCode == 429 {
			time.Sleep(5 * time.Second)
			continue
		}
		lastErr = fmt.Errorf("status %d", resp.StatusCode)
	}

	if lastErr != nil {
		telemetry.Log().Warnf("notify: failed to send Telegram notification after %d retries: %v", MaxRetries, lastErr)
	}
}
