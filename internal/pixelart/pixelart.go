// Package pixelart calls an APICore/OpenAI-compatible image generation
// API to render an emoji as pixel art.
package pixelart

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Generator produces a PNG for an emoji. Implemented by *Client; the
// work service accepts the interface so tests can substitute a fake.
type Generator interface {
	Generate(ctx context.Context, emoji string) ([]byte, error)
}

var _ Generator = (*Client)(nil)

// Client talks to the image generation HTTP API.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// NewClient builds a Client for the given provider endpoint.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

type generateRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
}

type generateResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate renders the emoji and returns the decoded PNG bytes.
func (c *Client) Generate(ctx context.Context, emoji string) ([]byte, error) {
	payload, err := json.Marshal(generateRequest{
		Model:          c.model,
		Prompt:         buildPrompt(emoji),
		N:              1,
		Size:           "1024x1024",
		ResponseFormat: "b64_json",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/images/generations", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode generation response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if result.Error != nil && result.Error.Message != "" {
			return nil, fmt.Errorf("provider rejected generation: %s", result.Error.Message)
		}
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	if len(result.Data) == 0 || result.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("provider returned no image")
	}

	img, err := base64.StdEncoding.DecodeString(result.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image data: %w", err)
	}
	return img, nil
}

// buildPrompt renders the fixed pixel-art prompt for an emoji.
func buildPrompt(emoji string) string {
	return fmt.Sprintf("Create a minimalist 8-bit pixel art icon of %s, centered on a plain white background. "+
		"Use a limited retro palette with pixelated details, sharp edges and clean blocky forms. "+
		"The icon should be simple, iconic and clearly recognizable in pixel art style, "+
		"inspired by classic arcade game aesthetics.", emoji)
}
