package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/converzap/converzap/outbound"
	"github.com/converzap/converzap/pkg/config"
)

// HTTPGateway entrega acciones a la plataforma de mensajería vía su API
// HTTP. Un 5xx o un error de red son transitorios (la cola reintenta); un
// 4xx es un rechazo definitivo.
type HTTPGateway struct {
	cfg        config.GatewayConfig
	httpClient *http.Client
}

var _ outbound.Gateway = (*HTTPGateway)(nil)

func NewHTTPGateway(cfg config.GatewayConfig) *HTTPGateway {
	return &HTTPGateway{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type sendMessageRequest struct {
	ContactID string `json:"contact_id"`
	Text      string `json:"text"`
}

type sendMediaRequest struct {
	ContactID string `json:"contact_id"`
	MediaURL  string `json:"media_url"`
	MediaType string `json:"media_type"`
	Caption   string `json:"caption,omitempty"`
	Filename  string `json:"filename,omitempty"`
}

func (g *HTTPGateway) Send(ctx context.Context, action *outbound.OutboundAction) error {
	var endpoint string
	var payload any

	switch action.Kind {
	case outbound.KindMessage:
		if action.Message == nil {
			return outbound.ErrInvalidAction().WithDetail("action_id", action.ID.String())
		}
		endpoint = g.cfg.BaseURL + "/v1/messages"
		payload = sendMessageRequest{
			ContactID: action.ContactID.String(),
			Text:      action.Message.Text,
		}
	case outbound.KindMedia:
		if action.Media == nil {
			return outbound.ErrInvalidAction().WithDetail("action_id", action.ID.String())
		}
		endpoint = g.cfg.BaseURL + "/v1/media"
		payload = sendMediaRequest{
			ContactID: action.ContactID.String(),
			MediaURL:  action.Media.MediaURL,
			MediaType: action.Media.MediaType,
			Caption:   action.Media.Caption,
			Filename:  action.Media.Filename,
		}
	default:
		return outbound.ErrInvalidAction().
			WithDetail("action_id", action.ID.String()).
			WithDetail("kind", string(action.Kind))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return outbound.ErrInvalidAction().WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return outbound.ErrDeliveryFailed().WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return outbound.ErrDeliveryFailed().WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return outbound.ErrGatewayRejected().
			WithDetail("status", resp.StatusCode).
			WithDetail("response", string(respBody))
	}
	return outbound.ErrDeliveryFailed().
		WithDetail("status", resp.StatusCode).
		WithDetail("response", fmt.Sprintf("%.200s", string(respBody)))
}
