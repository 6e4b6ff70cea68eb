// Package whatsapp sends outbound messages through the WhatsApp Cloud
// API and downloads inbound media.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/helpline1930/helpline/internal/conversation"
	"github.com/helpline1930/helpline/internal/flow"
)

// Client-side limits from the Cloud API message reference.
const (
	maxButtonTitle  = 20
	maxRowTitle     = 24
	maxRowDesc      = 72
	maxInteractives = 3
)

type doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Gateway is a WhatsApp Cloud API client. Without a token and phone
// number id it runs in dry-run mode: sends are logged instead of
// delivered, which keeps local development off the network.
type Gateway struct {
	http         doer
	token        string
	phoneNumber  string
	graphVersion string
	mediaDir     string
}

// Opts holds parameters for creating a Gateway.
type Opts struct {
	Token         string
	PhoneNumberID string
	GraphVersion  string
	MediaDir      string
	HTTPClient    doer // defaults to a 10s-timeout http.Client
}

// NewGateway creates a Gateway.
func NewGateway(opts Opts) (*Gateway, error) {
	if opts.GraphVersion == "" {
		return nil, fmt.Errorf("whatsapp: graph version is required")
	}
	if opts.MediaDir == "" {
		return nil, fmt.Errorf("whatsapp: media dir is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Gateway{
		http:         client,
		token:        opts.Token,
		phoneNumber:  opts.PhoneNumberID,
		graphVersion: opts.GraphVersion,
		mediaDir:     opts.MediaDir,
	}, nil
}

// DryRun reports whether the gateway has no credentials to send with.
func (g *Gateway) DryRun() bool {
	return g.token == "" || g.phoneNumber == ""
}

func (g *Gateway) messagesURL() string {
	return fmt.Sprintf("https://graph.facebook.com/%s/%s/messages", g.graphVersion, g.phoneNumber)
}

func (g *Gateway) post(ctx context.Context, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("whatsapp: encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.messagesURL(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("whatsapp: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp: send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("whatsapp: send: status %d: %s", resp.StatusCode, detail)
	}
	return nil
}

// SendText delivers a plain text message.
func (g *Gateway) SendText(ctx context.Context, to, body string) error {
	if g.DryRun() {
		log.Printf("whatsapp: dry-run text to %s: %s", to, body)
		return nil
	}
	return g.post(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]any{"body": body},
	})
}

// SendButtons delivers an interactive reply-button message. The Cloud
// API allows at most three buttons; extra options are dropped, so the
// caller should switch to SendList beyond that.
func (g *Gateway) SendButtons(ctx context.Context, to, body string, options []flow.Option) error {
	if len(options) > maxInteractives {
		options = options[:maxInteractives]
	}
	buttons := make([]map[string]any, 0, len(options))
	for _, o := range options {
		buttons = append(buttons, map[string]any{
			"type": "reply",
			"reply": map[string]any{
				"id":    o.ID,
				"title": clip(o.Label, maxButtonTitle),
			},
		})
	}
	if g.DryRun() {
		log.Printf("whatsapp: dry-run buttons to %s: %s %v", to, body, options)
		return nil
	}
	return g.post(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "interactive",
		"interactive": map[string]any{
			"type":   "button",
			"body":   map[string]any{"text": body},
			"action": map[string]any{"buttons": buttons},
		},
	})
}

// SendList delivers an interactive list message.
func (g *Gateway) SendList(ctx context.Context, to, body, buttonLabel string, sections []conversation.ListSection) error {
	out := make([]map[string]any, 0, len(sections))
	for _, s := range sections {
		rows := make([]map[string]any, 0, len(s.Rows))
		for _, r := range s.Rows {
			row := map[string]any{
				"id":    r.ID,
				"title": clip(r.Label, maxRowTitle),
			}
			if r.Description != "" {
				row["description"] = clip(r.Description, maxRowDesc)
			}
			rows = append(rows, row)
		}
		out = append(out, map[string]any{"title": clip(s.Title, maxRowTitle), "rows": rows})
	}
	if buttonLabel == "" {
		buttonLabel = "Choose"
	}
	if g.DryRun() {
		log.Printf("whatsapp: dry-run list to %s: %s (%d sections)", to, body, len(sections))
		return nil
	}
	return g.post(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "interactive",
		"interactive": map[string]any{
			"type":   "list",
			"body":   map[string]any{"text": body},
			"action": map[string]any{"button": clip(buttonLabel, maxButtonTitle), "sections": out},
		},
	})
}

// MediaURL resolves a media id to its short-lived download URL.
func (g *Gateway) MediaURL(ctx context.Context, mediaID string) (string, error) {
	if g.DryRun() {
		return "", nil
	}
	url := fmt.Sprintf("https://graph.facebook.com/%s/%s", g.graphVersion, mediaID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("whatsapp: build media lookup: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.token)

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("whatsapp: media lookup %s: %w", mediaID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("whatsapp: media lookup %s: status %d", mediaID, resp.StatusCode)
	}

	var payload struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("whatsapp: media lookup %s: %w", mediaID, err)
	}
	return payload.URL, nil
}

// DownloadMedia fetches an inbound media object and stores it under the
// media directory. It returns the public /media/... path regardless of
// download success, so the record keeps a stable reference even when the
// fetch is retried later.
func (g *Gateway) DownloadMedia(ctx context.Context, mediaID, mediaURL string) (string, error) {
	filename := mediaID + ".jpg"
	public := "/media/" + filename

	if g.DryRun() || mediaURL == "" {
		return public, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return public, fmt.Errorf("whatsapp: build media request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.token)

	resp, err := g.http.Do(req)
	if err != nil {
		return public, fmt.Errorf("whatsapp: download media %s: %w", mediaID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return public, fmt.Errorf("whatsapp: download media %s: status %d", mediaID, resp.StatusCode)
	}

	if err := os.MkdirAll(g.mediaDir, 0o755); err != nil {
		return public, fmt.Errorf("whatsapp: media dir: %w", err)
	}
	f, err := os.Create(filepath.Join(g.mediaDir, filename))
	if err != nil {
		return public, fmt.Errorf("whatsapp: write media %s: %w", mediaID, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return public, fmt.Errorf("whatsapp: write media %s: %w", mediaID, err)
	}
	return public, nil
}

// clip truncates s to at most n characters of display text.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
