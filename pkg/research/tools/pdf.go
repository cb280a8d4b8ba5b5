package tools

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
)

const (
	DefaultOCREndpoint = "https://api.mistral.ai/v1/ocr"
	DefaultOCRModel    = "mistral-ocr-latest"
)

// ErrMissingOCRKey is returned by NewMistralOCR for a blank key.
var ErrMissingOCRKey = errors.New("MISTRAL_API_KEY is not set")

// MistralOCR extracts the text of PDF documents through the Mistral OCR API.
type MistralOCR struct {
	APIKey   string
	Endpoint string
	Model    string

	client *http.Client
}

type ocrPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

type ocrResponse struct {
	Pages []ocrPage `json:"pages"`
}

func NewMistralOCR(apiKey string, client *http.Client) (*MistralOCR, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingOCRKey
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &MistralOCR{
		APIKey:   apiKey,
		Endpoint: DefaultOCREndpoint,
		Model:    DefaultOCRModel,
		client:   client,
	}, nil
}

// ReadPDF returns the markdown of every page of the document at url.
func (m *MistralOCR) ReadPDF(ctx context.Context, url string) (string, error) {
	url = strings.Replace(url, "http://", "https://", 1)

	reqBody := map[string]any{
		"model": m.Model,
		"document": map[string]string{
			"type":         "document_url",
			"document_url": url,
		},
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.APIKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make OCR request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read OCR response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OCR request failed with status: %s, body: %s", resp.Status, string(body))
	}

	var parsed ocrResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to unmarshal OCR response: %w", err)
	}

	var sb strings.Builder
	for _, page := range parsed.Pages {
		sb.WriteString(fmt.Sprintf("- Page %d -\n", page.Index))
		sb.WriteString(page.Markdown)
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String()), nil
}
