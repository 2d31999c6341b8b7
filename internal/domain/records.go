package domain

import (
	"time"
)

// Document is an uploaded case document (passport scan, civil act, etc).
type Document struct {
	ID           string    `json:"id"`
	CaseID       string    `json:"case_id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	Status       string    `json:"status"`
	PersonType   string    `json:"person_type,omitempty"`
	OCRConfirmed bool      `json:"ocr_confirmed"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// Task is a case work item.
type Task struct {
	ID          string    `json:"id"`
	CaseID      string    `json:"case_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Priority    string    `json:"priority"`
	Category    string    `json:"category,omitempty"`
	Status      string    `json:"status"`
	DueDate     string    `json:"due_date,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Task statuses and priorities.
const (
	TaskStatusPending  = "pending"
	TaskPriorityHigh   = "high"
	TaskPriorityMedium = "medium"
)

// POARecord tracks a generated power-of-attorney document.
type POARecord struct {
	ID          string    `json:"id"`
	CaseID      string    `json:"case_id"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	ArtifactURL string    `json:"artifact_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// OBYDraft is a draft of the OBY citizenship application form. It carries a
// snapshot of the master record at draft time plus the list of fields the
// agent auto-populated. At most one draft exists per case.
type OBYDraft struct {
	ID                  string         `json:"id"`
	CaseID              string         `json:"case_id"`
	MasterSnapshot      map[string]any `json:"master_snapshot"`
	AutoPopulatedFields []string       `json:"auto_populated_fields,omitempty"`
	Status              string         `json:"status"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// WSCLetter is a letter received from the voivodeship office (WSC).
type WSCLetter struct {
	ID         string    `json:"id"`
	CaseID     string    `json:"case_id"`
	Reference  string    `json:"reference"`
	Summary    string    `json:"summary"`
	Deadline   string    `json:"deadline,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// ArchiveSearch is a request to search Polish archives for documents.
type ArchiveSearch struct {
	ID              string    `json:"id"`
	CaseID          string    `json:"case_id"`
	PersonType      string    `json:"person_type"`
	DocumentTypes   []string  `json:"document_types"`
	ArchiveLocation string    `json:"archive_location,omitempty"`
	Status          string    `json:"status"`
	Priority        string    `json:"priority"`
	CreatedAt       time.Time `json:"created_at"`
}

// AuditEntry is one append-only audit log record. Audit entries exist for
// traceability only and never drive control flow.
type AuditEntry struct {
	ID        int64          `json:"id"`
	CaseID    string         `json:"case_id,omitempty"`
	Action    string         `json:"action"`
	Detail    string         `json:"detail"`
	Actor     string         `json:"actor"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
