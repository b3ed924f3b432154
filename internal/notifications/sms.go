package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/permitkit/permitflow/internal/config"
)

// SMSMessage is one outbound text message.
type SMSMessage struct {
	To   string
	Body string
}

// SMSProvider sends text messages.
type SMSProvider interface {
	Send(ctx context.Context, msg SMSMessage) error
}

// GatewaySMSProvider posts messages to an HTTP SMS gateway.
type GatewaySMSProvider struct {
	cfg    *config.SMSConfig
	client *http.Client
}

// NewGatewaySMSProvider creates an SMS provider for the configured gateway.
func NewGatewaySMSProvider(cfg *config.SMSConfig) SMSProvider {
	return &GatewaySMSProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts msg to the gateway. When SMS is disabled in config it is a
// silent no-op.
func (p *GatewaySMSProvider) Send(ctx context.Context, msg SMSMessage) error {
	if !p.cfg.Enabled {
		return nil
	}
	if msg.To == "" {
		return fmt.Errorf("no recipient specified")
	}

	payload, err := json.Marshal(map[string]string{
		"from": p.cfg.From,
		"to":   msg.To,
		"body": msg.Body,
	})
	if err != nil {
		return fmt.Errorf("failed to encode SMS payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.GatewayURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build SMS request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("SMS gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("SMS gateway returned %s", resp.Status)
	}
	return nil
}
