package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/romanwi-dev/pl-descent-navigator/internal/domain"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()

	Error(w, http.StatusBadRequest, "something broke")

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
	var got map[string]string
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["error"] != "something broke" {
		t.Errorf("Expected error message, got %v", got)
	}
}

// pingRepo stubs just the health-check surface of the repository.
type pingRepo struct {
	domainlessRepo
	err error
}

func (p *pingRepo) Ping(context.Context) error { return p.err }

func TestHealthz(t *testing.T) {
	h := NewHealthHandler(&pingRepo{})
	w := httptest.NewRecorder()

	h.HandleHealthz(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestHealthzDatabaseDown(t *testing.T) {
	h := NewHealthHandler(&pingRepo{err: errors.New("db gone")})
	w := httptest.NewRecorder()

	h.HandleHealthz(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
	var got map[string]string
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["status"] != "degraded" {
		t.Errorf("Expected degraded status, got %v", got)
	}
}

// domainlessRepo provides panicking defaults so the stub only needs Ping.
type domainlessRepo struct{}

func (domainlessRepo) CreateConversation(context.Context, *domain.Conversation) error {
	panic("not implemented")
}
func (domainlessRepo) GetConversation(context.Context, string) (*domain.Conversation, error) {
	panic("not implemented")
}
func (domainlessRepo) AppendMessage(context.Context, *domain.Message) error {
	panic("not implemented")
}
func (domainlessRepo) ListRecentMessages(context.Context, string, int) ([]domain.Message, error) {
	panic("not implemented")
}
func (domainlessRepo) GetCase(context.Context, string) (*domain.Case, error) {
	panic("not implemented")
}
func (domainlessRepo) GetCaseBundle(context.Context, string) (*domain.CaseBundle, error) {
	panic("not implemented")
}
func (domainlessRepo) UpsertCase(context.Context, *domain.Case) error { panic("not implemented") }
func (domainlessRepo) UpsertIntake(context.Context, *domain.IntakeData) error {
	panic("not implemented")
}
func (domainlessRepo) GetMasterData(context.Context, string) (*domain.MasterData, error) {
	panic("not implemented")
}
func (domainlessRepo) UpsertMasterData(context.Context, *domain.MasterData) error {
	panic("not implemented")
}
func (domainlessRepo) UpdateMasterDataFields(context.Context, string, map[string]any) error {
	panic("not implemented")
}
func (domainlessRepo) UpdateMasterDataNotes(context.Context, string, string) error {
	panic("not implemented")
}
func (domainlessRepo) GetDocument(context.Context, string) (*domain.Document, error) {
	panic("not implemented")
}
func (domainlessRepo) InsertDocument(context.Context, *domain.Document) error {
	panic("not implemented")
}
func (domainlessRepo) InsertTask(context.Context, *domain.Task) error { panic("not implemented") }
func (domainlessRepo) InsertPOARecord(context.Context, *domain.POARecord) error {
	panic("not implemented")
}
func (domainlessRepo) InsertArchiveSearch(context.Context, *domain.ArchiveSearch) error {
	panic("not implemented")
}
func (domainlessRepo) GetOBYDraftByCase(context.Context, string) (*domain.OBYDraft, error) {
	panic("not implemented")
}
func (domainlessRepo) InsertOBYDraft(context.Context, *domain.OBYDraft) error {
	panic("not implemented")
}
func (domainlessRepo) UpdateOBYDraft(context.Context, *domain.OBYDraft) error {
	panic("not implemented")
}
func (domainlessRepo) InsertWSCLetter(context.Context, *domain.WSCLetter) error {
	panic("not implemented")
}
func (domainlessRepo) AppendAudit(context.Context, *domain.AuditEntry) error {
	panic("not implemented")
}
func (domainlessRepo) ListAuditEntries(context.Context, int) ([]domain.AuditEntry, error) {
	panic("not implemented")
}
func (domainlessRepo) Ping(context.Context) error { panic("not implemented") }
func (domainlessRepo) Close() error               { panic("not implemented") }
