package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/ppdb-admissions-api/pkg/config"
)

// ErrNotConfigured is returned when the gateway URL or session is missing.
var ErrNotConfigured = errors.New("whatsapp gateway not configured")

// Client sends text messages through a WAHA gateway.
type Client struct {
	baseURL string
	session string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

type sendTextRequest struct {
	Session string `json:"session"`
	ChatID  string `json:"chatId"`
	Text    string `json:"text"`
}

// NewClient builds a gateway client from configuration.
func NewClient(cfg config.WhatsAppConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		session: cfg.Session,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// SendText delivers text to the given phone number.
func (c *Client) SendText(ctx context.Context, phone, text string) error {
	if c.baseURL == "" || c.session == "" {
		return ErrNotConfigured
	}
	phone = NormalizePhone(phone)
	if phone == "" {
		return errors.New("phone number is required")
	}

	body, err := json.Marshal(sendTextRequest{
		Session: c.session,
		ChatID:  phone + "@c.us",
		Text:    text,
	})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/sendText", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway responded %d", resp.StatusCode)
	}
	c.logger.Debug("whatsapp message sent", zap.String("chat_id", phone+"@c.us"))
	return nil
}

// NormalizePhone strips formatting and rewrites a leading 0 or +62 to 62.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if strings.HasPrefix(digits, "0") {
		digits = "62" + digits[1:]
	}
	return digits
}
