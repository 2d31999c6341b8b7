package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTrigger(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ocr/trigger" {
			t.Errorf("Expected /ocr/trigger path, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewHTTPService(srv.URL)
	if err := s.Trigger(context.Background(), "doc-1", "passport"); err != nil {
		t.Fatalf("Failed to trigger OCR: %v", err)
	}
	if got["documentId"] != "doc-1" || got["expectedType"] != "passport" {
		t.Errorf("Unexpected request payload: %v", got)
	}
}

func TestTriggerServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "queue full", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewHTTPService(srv.URL)
	if err := s.Trigger(context.Background(), "doc-1", ""); err == nil {
		t.Errorf("Expected error for non-2xx response")
	}
}
