package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/platewise/receipt-scan/internal/models"
)

const (
	defaultVisionAPIURL  = "https://api.anthropic.com/v1/messages"
	defaultVisionModel   = "claude-3-5-sonnet-20241022"
	visionAPIVersion     = "2023-06-01"
	visionMaxTokens      = 2048
	defaultVisionTimeout = 60 * time.Second

	// VisionAPIKeyEnv names the env var holding the API key. The key is
	// read at call time rather than cached so it can be rotated without a
	// restart.
	VisionAPIKeyEnv = "VISION_API_KEY"
)

var (
	// ErrMissingAPIKey means the vision API key env var is unset.
	ErrMissingAPIKey = errors.New("vision api key is not configured")
	// ErrNoJSONArray means the model's reply contained no recognizable
	// JSON array.
	ErrNoJSONArray = errors.New("no JSON array in response")
)

// UpstreamError is an error envelope returned by the vision API itself
// (auth failure, rate limit, overload). The upstream message is carried
// verbatim.
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string {
	return e.Message
}

// VisionService extracts structured receipt line items from a receipt
// photograph via a multimodal completion API. One outbound call per scan,
// no retries; failures propagate to the caller.
type VisionService struct {
	apiURL     string
	model      string
	httpClient *http.Client
}

// NewVisionService creates a vision client. Empty apiURL or model fall
// back to the defaults.
func NewVisionService(apiURL, model string, timeout time.Duration) *VisionService {
	if apiURL == "" {
		apiURL = defaultVisionAPIURL
	}
	if model == "" {
		model = defaultVisionModel
	}
	if timeout <= 0 {
		timeout = defaultVisionTimeout
	}
	return &VisionService{
		apiURL: apiURL,
		model:  model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

const extractionPrompt = `Extract every food and grocery line item from this supermarket receipt.

Rules:
- Include only food, drink and supplement items. Skip cleaning, laundry and household products.
- Respond with a JSON array only. Each element must have exactly these fields:
  {"name": string, "quantity": number, "unit": string, "price": number, "category": string}
- category must be one of: meat, dairy, grains, vegetables, fruit, pantry, beverage, supplement, other
- Parse quantity and unit out of pack-size text on the line: "2x500g" means quantity 1000 and unit "g".
- For egg cartons and other multipacks counted in pieces, quantity is the piece count (a dozen eggs is quantity 12, unit "each").
- If no quantity is printed, use quantity 1 and unit "each".
- Respond with the raw JSON array and nothing else: no prose, no markdown fences, no comments.`

// visionRequest is the messages-API request body: one user turn holding
// the base64 image block and the extraction instruction.
type visionRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []visionMessage `json:"messages"`
}

type visionMessage struct {
	Role    string        `json:"role"`
	Content []visionBlock `json:"content"`
}

type visionBlock struct {
	Type   string             `json:"type"`
	Source *visionImageSource `json:"source,omitempty"`
	Text   string             `json:"text,omitempty"`
}

type visionImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type visionResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Extract sends the receipt image to the vision model and parses its reply
// into line items.
func (s *VisionService) Extract(ctx context.Context, imageBytes []byte, mimeType string) ([]models.ReceiptItem, error) {
	apiKey := os.Getenv(VisionAPIKeyEnv)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	reqBody := visionRequest{
		Model:     s.model,
		MaxTokens: visionMaxTokens,
		Messages: []visionMessage{
			{
				Role: "user",
				Content: []visionBlock{
					{
						Type: "image",
						Source: &visionImageSource{
							Type:      "base64",
							MediaType: mimeType,
							Data:      base64.StdEncoding.EncodeToString(imageBytes),
						},
					},
					{
						Type: "text",
						Text: extractionPrompt,
					},
				},
			},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal vision request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create vision request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", visionAPIVersion)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read vision response: %w", err)
	}

	var parsed visionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode vision response: %w", err)
	}

	// The upstream's own message is propagated verbatim so rate limits and
	// auth failures are distinguishable from parse errors.
	if parsed.Error != nil {
		return nil, &UpstreamError{Message: parsed.Error.Message}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{Message: fmt.Sprintf("vision api returned status %d", resp.StatusCode)}
	}
	if len(parsed.Content) == 0 {
		return nil, ErrNoJSONArray
	}

	return parseItemArray(parsed.Content[0].Text)
}

// parseItemArray locates the JSON array inside the model's reply text and
// decodes it. The reply is expected to be the bare array, but the model
// sometimes wraps it in prose or code fences, so the span from the first
// "[" to the last "]" is taken. Nested brackets inside surrounding prose
// defeat this; that fragility is a documented property of the parsing
// step, not something to paper over silently.
func parseItemArray(reply string) ([]models.ReceiptItem, error) {
	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start == -1 || end <= start {
		return nil, ErrNoJSONArray
	}

	var items []models.ReceiptItem
	if err := json.Unmarshal([]byte(reply[start:end+1]), &items); err != nil {
		return nil, fmt.Errorf("failed to parse extracted items: %w", err)
	}
	return items, nil
}
