package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"mathgenie/internal/models"
)

// Model abstracts the upstream generative model so the service can be
// tested without network access.
type Model interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Provider() string
}

// GeminiClient calls the Gemini generateContent REST API.
type GeminiClient struct {
	apiKey    string
	model     string
	endpoint  string
	maxTokens int
	client    *http.Client
}

// NewGeminiClient builds a client for the given key, model name and
// API endpoint base (e.g. https://generativelanguage.googleapis.com/v1beta).
func NewGeminiClient(apiKey, model, endpoint string, maxTokens int) *GeminiClient {
	return &GeminiClient{
		apiKey:    apiKey,
		model:     model,
		endpoint:  strings.TrimRight(endpoint, "/"),
		maxTokens: maxTokens,
		// Timeouts come from the request context; the generation
		// deadline is owned by the service layer.
		client: &http.Client{},
	}
}

func (c *GeminiClient) Provider() string {
	return "Gemini"
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
	Config   *geminiConfig   `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateContent sends the prompt and returns the raw model text.
// Quota exhaustion surfaces as a QUOTA_EXCEEDED AppError so handlers
// can map it to HTTP 402.
func (c *GeminiClient) GenerateContent(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		Config:   &geminiConfig{MaxOutputTokens: c.maxTokens},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.endpoint, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("malformed model response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if isQuotaStatus(resp.StatusCode, parsed) {
			return "", models.NewQuotaError("AI API quota exhausted; check the API key or add credits")
		}
		msg := resp.Status
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return "", fmt.Errorf("model request failed: %s", msg)
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("model returned no candidates")
	}

	var out strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		out.WriteString(part.Text)
	}
	return out.String(), nil
}

func isQuotaStatus(code int, parsed geminiResponse) bool {
	if code == http.StatusTooManyRequests || code == http.StatusPaymentRequired {
		return true
	}
	return parsed.Error != nil && parsed.Error.Status == "RESOURCE_EXHAUSTED"
}
