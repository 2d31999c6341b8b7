// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/romanwi-dev/pl-descent-navigator/internal/domain"
)

// Repository defines the persistence operations needed by the agent core and
// its supporting endpoints. Storage layout is owned by the implementation.
type Repository interface {
	// CreateConversation inserts a new conversation record.
	CreateConversation(ctx context.Context, conv *domain.Conversation) error

	// GetConversation retrieves a conversation by ID. Returns (nil, nil) if absent.
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)

	// AppendMessage appends a message to a conversation's log.
	AppendMessage(ctx context.Context, msg *domain.Message) error

	// ListRecentMessages returns up to limit most recent messages for a
	// conversation, ordered oldest first.
	ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)

	// GetCase retrieves a case by ID. Returns (nil, nil) if absent.
	GetCase(ctx context.Context, caseID string) (*domain.Case, error)

	// GetCaseBundle fetches a case and all of its related records.
	GetCaseBundle(ctx context.Context, caseID string) (*domain.CaseBundle, error)

	// UpsertCase creates or updates a case record.
	UpsertCase(ctx context.Context, c *domain.Case) error

	// UpsertIntake creates or replaces intake data for a case.
	UpsertIntake(ctx context.Context, intake *domain.IntakeData) error

	// GetMasterData retrieves the master record for a case. Returns (nil, nil) if absent.
	GetMasterData(ctx context.Context, caseID string) (*domain.MasterData, error)

	// UpsertMasterData creates or replaces the master record for a case.
	UpsertMasterData(ctx context.Context, master *domain.MasterData) error

	// UpdateMasterDataFields applies a partial update, merging the given
	// fields into the case's master record.
	UpdateMasterDataFields(ctx context.Context, caseID string, fields map[string]any) error

	// UpdateMasterDataNotes replaces the notes field of a case's master record.
	UpdateMasterDataNotes(ctx context.Context, caseID string, notes string) error

	// GetDocument retrieves a document by ID. Returns (nil, nil) if absent.
	GetDocument(ctx context.Context, documentID string) (*domain.Document, error)

	// InsertDocument inserts a document record.
	InsertDocument(ctx context.Context, doc *domain.Document) error

	// InsertTask inserts a task record.
	InsertTask(ctx context.Context, task *domain.Task) error

	// InsertPOARecord inserts a power-of-attorney record.
	InsertPOARecord(ctx context.Context, poa *domain.POARecord) error

	// InsertArchiveSearch inserts an archive search request.
	InsertArchiveSearch(ctx context.Context, search *domain.ArchiveSearch) error

	// GetOBYDraftByCase retrieves the OBY draft for a case. Returns (nil, nil) if absent.
	GetOBYDraftByCase(ctx context.Context, caseID string) (*domain.OBYDraft, error)

	// InsertOBYDraft inserts a new OBY draft.
	InsertOBYDraft(ctx context.Context, draft *domain.OBYDraft) error

	// UpdateOBYDraft updates an existing OBY draft in place.
	UpdateOBYDraft(ctx context.Context, draft *domain.OBYDraft) error

	// InsertWSCLetter inserts a WSC letter record.
	InsertWSCLetter(ctx context.Context, letter *domain.WSCLetter) error

	// AppendAudit appends an audit log entry.
	AppendAudit(ctx context.Context, entry *domain.AuditEntry) error

	// ListAuditEntries returns up to limit most recent audit entries, newest first.
	ListAuditEntries(ctx context.Context, limit int) ([]domain.AuditEntry, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
