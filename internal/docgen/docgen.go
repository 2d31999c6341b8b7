// Package docgen provides the client for the external document-generation
// service that renders POA PDFs from case data.
package docgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Generator produces POA PDFs for a case.
type Generator interface {
	// GeneratePOA renders a power-of-attorney PDF and returns the artifact URL.
	GeneratePOA(ctx context.Context, caseID, poaType, reason string) (string, error)
}

// HTTPGenerator calls the hosted PDF service over HTTP.
type HTTPGenerator struct {
	baseURL string
	client  *http.Client
}

// NewHTTPGenerator creates a PDF service client for the given base URL.
func NewHTTPGenerator(baseURL string) *HTTPGenerator {
	return &HTTPGenerator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type generateRequest struct {
	CaseID  string `json:"caseId"`
	POAType string `json:"poaType"`
	Reason  string `json:"reason,omitempty"`
}

type generateResponse struct {
	URL   string `json:"url"`
	Error string `json:"error,omitempty"`
}

// GeneratePOA renders a power-of-attorney PDF and returns the artifact URL.
func (g *HTTPGenerator) GeneratePOA(ctx context.Context, caseID, poaType, reason string) (string, error) {
	body, err := json.Marshal(generateRequest{CaseID: caseID, POAType: poaType, Reason: reason})
	if err != nil {
		return "", fmt.Errorf("marshal POA request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/poa", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build POA request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call PDF service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("PDF service returned %d: %s", resp.StatusCode, string(data))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode PDF service response: %w", err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("PDF service returned no artifact URL")
	}
	return out.URL, nil
}
