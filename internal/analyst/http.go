// internal/analyst/http.go
package analyst

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/signalnine/ipaugur/internal/protocol"
)

// messagesAPIVersion is sent as a header; Bedrock takes it in the body instead
const messagesAPIVersion = "2023-06-01"

// HTTPInvoker calls a Messages-API compatible endpoint over plain HTTP
// (a local gateway or a test double standing in for Bedrock)
type HTTPInvoker struct {
	url    string
	model  string
	apiKey string
	client *http.Client
}

// NewHTTPInvoker creates an invoker for baseURL + "/messages"
func NewHTTPInvoker(baseURL, model, apiKey string) *HTTPInvoker {
	return &HTTPInvoker{
		url:    strings.TrimSuffix(baseURL, "/") + "/messages",
		model:  model,
		apiKey: apiKey,
		client: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 5 * time.Second,
				}).DialContext,
			},
		},
	}
}

// Invoke posts the request and returns content[0].text
func (h *HTTPInvoker) Invoke(ctx context.Context, req protocol.ModelRequest) (string, error) {
	req.Model = h.model
	req.AnthropicVersion = ""

	body, err := marshalRequest(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", h.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", contentTypeJSON)
	httpReq.Header.Set("Accept", contentTypeJSON)
	httpReq.Header.Set("anthropic-version", messagesAPIVersion)
	if h.apiKey != "" {
		httpReq.Header.Set("x-api-key", h.apiKey)
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvoke, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrInvoke, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: API error %d: %s", ErrInvoke, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	return ExtractText(respBody)
}

func marshalRequest(req protocol.ModelRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode model request: %w", err)
	}
	return body, nil
}
