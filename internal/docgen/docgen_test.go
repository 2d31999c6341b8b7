package docgen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGeneratePOA(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/poa" {
			t.Errorf("Expected /poa path, got %s", r.URL.Path)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req["caseId"] != "case-1" || req["poaType"] != "single" {
			t.Errorf("Unexpected request payload: %v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://artifacts.test/poa.pdf"})
	}))
	defer srv.Close()

	g := NewHTTPGenerator(srv.URL)
	url, err := g.GeneratePOA(context.Background(), "case-1", "single", "initial filing")
	if err != nil {
		t.Fatalf("Failed to generate POA: %v", err)
	}
	if url != "https://artifacts.test/poa.pdf" {
		t.Errorf("Unexpected artifact URL: %q", url)
	}
}

func TestGeneratePOAServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "renderer unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	g := NewHTTPGenerator(srv.URL)
	if _, err := g.GeneratePOA(context.Background(), "case-1", "single", ""); err == nil {
		t.Errorf("Expected error for non-200 response")
	} else if !strings.Contains(err.Error(), "502") {
		t.Errorf("Expected status in error, got %v", err)
	}
}

func TestGeneratePOAEmptyURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	g := NewHTTPGenerator(srv.URL)
	if _, err := g.GeneratePOA(context.Background(), "case-1", "single", ""); err == nil {
		t.Errorf("Expected error when service returns no URL")
	}
}
