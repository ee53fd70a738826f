package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"

	"watchkeeper/internal/config"
	"watchkeeper/internal/models"
)

const (
	defaultTelegramURL = "https://api.telegram.org"

	colorGreen = 0x2ECC71
	colorRed   = 0xE74C3C
)

// FromConfig builds the active channels. Inactive entries are skipped.
func FromConfig(cfgs []config.ChannelConfig, client *http.Client) []Channel {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	var channels []Channel
	for _, c := range cfgs {
		if !c.Active {
			continue
		}
		switch c.Kind {
		case models.ChannelTelegram:
			channels = append(channels, NewTelegram(c.Name, c.Token, c.ChatID, c.DND, client))
		case models.ChannelWebhook:
			channels = append(channels, NewWebhook(c.Name, c.URL, client))
		}
	}
	return channels
}

// Telegram posts a short text line through the Bot API.
type Telegram struct {
	name    string
	token   string
	chatID  string
	silent  bool
	baseURL string
	client  *http.Client
}

func NewTelegram(name, token, chatID string, silent bool, client *http.Client) *Telegram {
	return &Telegram{
		name:    name,
		token:   token,
		chatID:  chatID,
		silent:  silent,
		baseURL: defaultTelegramURL,
		client:  client,
	}
}

func (t *Telegram) Name() string { return t.name }

type telegramMessage struct {
	ChatID              string `json:"chat_id"`
	Text                string `json:"text"`
	DisableNotification bool   `json:"disable_notification,omitempty"`
}

func (t *Telegram) Send(ctx context.Context, msg Message) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	body := telegramMessage{
		ChatID:              t.chatID,
		Text:                FormatText(msg),
		DisableNotification: t.silent,
	}
	if err := postJSON(ctx, t.client, url, body); err != nil {
		// Transport errors echo the URL, which carries the bot token.
		return errors.New(strings.ReplaceAll(err.Error(), t.token, "<token>"))
	}
	return nil
}

// Webhook posts a Discord-style embed card.
type Webhook struct {
	name   string
	url    string
	client *http.Client
}

func NewWebhook(name, url string, client *http.Client) *Webhook {
	return &Webhook{name: name, url: url, client: client}
}

func (w *Webhook) Name() string { return w.name }

type webhookEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp"`
}

type webhookPayload struct {
	Username string         `json:"username"`
	Embeds   []webhookEmbed `json:"embeds"`
}

func (w *Webhook) Send(ctx context.Context, msg Message) error {
	payload := webhookPayload{
		Username: "watchkeeper",
		Embeds: []webhookEmbed{{
			Title:       Title(msg.Kind),
			Description: msg.Detail,
			Color:       Color(msg.Kind),
			Timestamp:   msg.Time.UTC().Format(time.RFC3339),
		}},
	}
	return postJSON(ctx, w.client, w.url, payload)
}

// Title is the human heading for a status kind.
func Title(kind models.StatusKind) string {
	switch kind {
	case models.KindUp:
		return "Worker is up"
	case models.KindDown:
		return "Worker is down"
	case models.KindWarning:
		return "Warning"
	default:
		return string(kind)
	}
}

// Color is the embed accent for a status kind.
func Color(kind models.StatusKind) int {
	if kind == models.KindUp {
		return colorGreen
	}
	return colorRed
}

// FormatText renders msg as a single chat line.
func FormatText(msg Message) string {
	icon := "🔴"
	if msg.Kind == models.KindUp {
		icon = "🟢"
	} else if msg.Kind == models.KindWarning {
		icon = "🟠"
	}
	host, _ := os.Hostname()
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", icon, Title(msg.Kind))
	if host != "" {
		fmt.Fprintf(&b, " [%s]", host)
	}
	if msg.Detail != "" {
		b.WriteString("\n")
		b.WriteString(msg.Detail)
	}
	return b.String()
}

func postJSON(ctx context.Context, client *http.Client, url string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "encode payload")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, "send")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return errors.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}
