// Package ocr provides the client for the external OCR pipeline that extracts
// structured data from uploaded case documents.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Service triggers OCR processing for a document.
type Service interface {
	// Trigger enqueues OCR for the given document. Processing is asynchronous;
	// only submission failures are reported.
	Trigger(ctx context.Context, documentID, expectedType string) error
}

// HTTPService calls the hosted OCR pipeline over HTTP.
type HTTPService struct {
	baseURL string
	client  *http.Client
}

// NewHTTPService creates an OCR client for the given base URL.
func NewHTTPService(baseURL string) *HTTPService {
	return &HTTPService{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type triggerRequest struct {
	DocumentID   string `json:"documentId"`
	ExpectedType string `json:"expectedType,omitempty"`
}

// Trigger enqueues OCR for the given document.
func (s *HTTPService) Trigger(ctx context.Context, documentID, expectedType string) error {
	body, err := json.Marshal(triggerRequest{DocumentID: documentID, ExpectedType: expectedType})
	if err != nil {
		return fmt.Errorf("marshal OCR request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/ocr/trigger", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build OCR request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("call OCR service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("OCR service returned %d: %s", resp.StatusCode, string(data))
	}
	return nil
}
