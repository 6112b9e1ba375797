package httpcall

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/converzap/converzap/execution"
)

// maxResponseBytes limita cuánto body entra al contexto de una ejecución
const maxResponseBytes = 256 * 1024

// Client adapter HTTP para nodos HTTP. Parsea el body como JSON cuando el
// Content-Type lo permite para que quede navegable por interpolación.
type Client struct {
	httpClient *http.Client
}

var _ execution.HTTPCaller = (*Client)(nil)

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (c *Client) Request(ctx context.Context, method, url string, headers map[string]string, body map[string]any, timeout time.Duration) (*execution.HTTPCallResult, error) {
	var bodyReader io.Reader
	if len(body) > 0 {
		bodyJSON, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewBuffer(bodyJSON)
	}

	reqCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if bodyReader != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	log.Printf("🌐 HTTP Request: %s %s", method, url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	result := &execution.HTTPCallResult{
		Status: resp.StatusCode,
		Body:   string(bodyBytes),
	}

	// Best effort: un body JSON queda navegable por rutas con puntos
	var parsed any
	if json.Unmarshal(bodyBytes, &parsed) == nil {
		result.JSON = parsed
	}

	log.Printf("   📥 Response: %d (%d bytes)", resp.StatusCode, len(bodyBytes))
	return result, nil
}
