package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/romanwi-dev/pl-descent-navigator/internal/domain"
	"github.com/romanwi-dev/pl-descent-navigator/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS cases (
		case_id TEXT PRIMARY KEY,
		client_name TEXT NOT NULL,
		status TEXT NOT NULL,
		stage TEXT NOT NULL,
		country TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS intake_data (
		case_id TEXT PRIMARY KEY,
		fields_json TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS master_data (
		case_id TEXT PRIMARY KEY,
		fields_json TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		document_id TEXT PRIMARY KEY,
		case_id TEXT NOT NULL,
		name TEXT NOT NULL,
		type TEXT,
		status TEXT NOT NULL,
		person_type TEXT,
		ocr_confirmed INTEGER DEFAULT 0,
		uploaded_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_case ON documents(case_id);

	CREATE TABLE IF NOT EXISTS tasks (
		task_id TEXT PRIMARY KEY,
		case_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		priority TEXT NOT NULL,
		category TEXT,
		status TEXT NOT NULL,
		due_date TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_case ON tasks(case_id);

	CREATE TABLE IF NOT EXISTS poa_records (
		poa_id TEXT PRIMARY KEY,
		case_id TEXT NOT NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		artifact_url TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_poa_case ON poa_records(case_id);

	CREATE TABLE IF NOT EXISTS oby_drafts (
		draft_id TEXT PRIMARY KEY,
		case_id TEXT NOT NULL UNIQUE,
		master_snapshot_json TEXT NOT NULL,
		auto_populated_json TEXT,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS wsc_letters (
		letter_id TEXT PRIMARY KEY,
		case_id TEXT NOT NULL,
		reference TEXT,
		summary TEXT,
		deadline TEXT,
		received_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_wsc_case ON wsc_letters(case_id);

	CREATE TABLE IF NOT EXISTS archive_searches (
		search_id TEXT PRIMARY KEY,
		case_id TEXT NOT NULL,
		person_type TEXT NOT NULL,
		document_types_json TEXT NOT NULL,
		archive_location TEXT,
		status TEXT NOT NULL,
		priority TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_archive_case ON archive_searches(case_id);

	CREATE TABLE IF NOT EXISTS conversations (
		conversation_id TEXT PRIMARY KEY,
		case_id TEXT NOT NULL,
		agent_type TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_case ON conversations(case_id);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		tool_calls_json TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);

	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		case_id TEXT,
		action TEXT NOT NULL,
		detail TEXT NOT NULL,
		actor TEXT NOT NULL,
		metadata_json TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_case ON audit_log(case_id, id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// CreateConversation inserts a new conversation record.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *domain.Conversation) error {
	query := `INSERT INTO conversations (conversation_id, case_id, agent_type, created_at) VALUES (?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, conv.ID, conv.CaseID, conv.AgentType, conv.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

// GetConversation retrieves a conversation by ID.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	query := `SELECT conversation_id, case_id, agent_type, created_at FROM conversations WHERE conversation_id = ?`
	row := s.db.QueryRowContext(ctx, query, id)

	var conv domain.Conversation
	var createdAt int64
	err := row.Scan(&conv.ID, &conv.CaseID, &conv.AgentType, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	conv.CreatedAt = time.Unix(createdAt, 0)
	return &conv, nil
}

// AppendMessage appends a message to a conversation's log. Retries once on a
// transient SQLite lock conflict since message writes race with concurrent
// tool-call side effects.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *domain.Message) error {
	var toolCallsJSON interface{}
	if len(msg.ToolCalls) > 0 {
		data, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return fmt.Errorf("marshal tool calls: %w", err)
		}
		toolCallsJSON = string(data)
	}

	query := `INSERT INTO messages (conversation_id, role, content, tool_calls_json, created_at) VALUES (?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, query, msg.ConversationID, msg.Role, msg.Content, toolCallsJSON, msg.CreatedAt.Unix())
	if shared.IsSQLiteConflictError(err) {
		time.Sleep(100 * time.Millisecond)
		res, err = s.db.ExecContext(ctx, query, msg.ConversationID, msg.Role, msg.Content, toolCallsJSON, msg.CreatedAt.Unix())
	}
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if id, idErr := res.LastInsertId(); idErr == nil {
		msg.ID = id
	}
	return nil
}

// ListRecentMessages returns up to limit most recent messages, oldest first.
func (s *SQLiteStore) ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	// Select the tail of the log, then flip back to insertion order.
	query := `
		SELECT id, conversation_id, role, content, tool_calls_json, created_at
		FROM (
			SELECT id, conversation_id, role, content, tool_calls_json, created_at
			FROM messages WHERE conversation_id = ?
			ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer closeRows(rows, "messages")

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		var toolCallsJSON sql.NullString
		var createdAt int64
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &toolCallsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		if toolCallsJSON.Valid && toolCallsJSON.String != "" {
			if err := json.Unmarshal([]byte(toolCallsJSON.String), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("unmarshal tool calls: %w", err)
			}
		}
		msg.CreatedAt = time.Unix(createdAt, 0)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

// GetCase retrieves a case by ID.
func (s *SQLiteStore) GetCase(ctx context.Context, caseID string) (*domain.Case, error) {
	query := `SELECT case_id, client_name, status, stage, country, created_at, updated_at FROM cases WHERE case_id = ?`
	row := s.db.QueryRowContext(ctx, query, caseID)

	var c domain.Case
	var country sql.NullString
	var createdAt, updatedAt int64
	err := row.Scan(&c.ID, &c.ClientName, &c.Status, &c.Stage, &country, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan case: %w", err)
	}
	c.Country = country.String
	c.CreatedAt = time.Unix(createdAt, 0)
	c.UpdatedAt = time.Unix(updatedAt, 0)
	return &c, nil
}

// GetCaseBundle fetches a case and all of its related records.
func (s *SQLiteStore) GetCaseBundle(ctx context.Context, caseID string) (*domain.CaseBundle, error) {
	c, err := s.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("case %s not found", caseID)
	}

	bundle := &domain.CaseBundle{Case: c}

	if bundle.Intake, err = s.getIntake(ctx, caseID); err != nil {
		return nil, err
	}
	if bundle.Master, err = s.GetMasterData(ctx, caseID); err != nil {
		return nil, err
	}
	if bundle.Documents, err = s.listDocuments(ctx, caseID); err != nil {
		return nil, err
	}
	if bundle.Tasks, err = s.listTasks(ctx, caseID); err != nil {
		return nil, err
	}
	if bundle.POARecords, err = s.listPOARecords(ctx, caseID); err != nil {
		return nil, err
	}
	if bundle.OBYDrafts, err = s.listOBYDrafts(ctx, caseID); err != nil {
		return nil, err
	}
	if bundle.WSCLetters, err = s.listWSCLetters(ctx, caseID); err != nil {
		return nil, err
	}
	return bundle, nil
}

// UpsertCase creates or updates a case record.
func (s *SQLiteStore) UpsertCase(ctx context.Context, c *domain.Case) error {
	query := `
	INSERT INTO cases (case_id, client_name, status, stage, country, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(case_id) DO UPDATE SET
		client_name = excluded.client_name,
		status = excluded.status,
		stage = excluded.stage,
		country = excluded.country,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.ClientName, c.Status, c.Stage, c.Country,
		c.CreatedAt.Unix(), c.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert case: %w", err)
	}
	return nil
}

// UpsertIntake creates or replaces intake data for a case.
func (s *SQLiteStore) UpsertIntake(ctx context.Context, intake *domain.IntakeData) error {
	fieldsJSON, err := json.Marshal(intake.Fields)
	if err != nil {
		return fmt.Errorf("marshal intake fields: %w", err)
	}
	query := `
	INSERT INTO intake_data (case_id, fields_json, created_at) VALUES (?, ?, ?)
	ON CONFLICT(case_id) DO UPDATE SET fields_json = excluded.fields_json`
	if _, err := s.db.ExecContext(ctx, query, intake.CaseID, string(fieldsJSON), intake.CreatedAt.Unix()); err != nil {
		return fmt.Errorf("upsert intake: %w", err)
	}
	return nil
}

func (s *SQLiteStore) getIntake(ctx context.Context, caseID string) (*domain.IntakeData, error) {
	query := `SELECT case_id, fields_json, created_at FROM intake_data WHERE case_id = ?`
	row := s.db.QueryRowContext(ctx, query, caseID)

	var intake domain.IntakeData
	var fieldsJSON string
	var createdAt int64
	err := row.Scan(&intake.CaseID, &fieldsJSON, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan intake: %w", err)
	}
	if err := json.Unmarshal([]byte(fieldsJSON), &intake.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal intake fields: %w", err)
	}
	intake.CreatedAt = time.Unix(createdAt, 0)
	return &intake, nil
}

// GetMasterData retrieves the master record for a case.
func (s *SQLiteStore) GetMasterData(ctx context.Context, caseID string) (*domain.MasterData, error) {
	query := `SELECT case_id, fields_json, notes, updated_at FROM master_data WHERE case_id = ?`
	row := s.db.QueryRowContext(ctx, query, caseID)

	var master domain.MasterData
	var fieldsJSON string
	var updatedAt int64
	err := row.Scan(&master.CaseID, &fieldsJSON, &master.Notes, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan master data: %w", err)
	}
	if err := json.Unmarshal([]byte(fieldsJSON), &master.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal master fields: %w", err)
	}
	master.UpdatedAt = time.Unix(updatedAt, 0)
	return &master, nil
}

// UpsertMasterData creates or replaces the master record for a case.
func (s *SQLiteStore) UpsertMasterData(ctx context.Context, master *domain.MasterData) error {
	fieldsJSON, err := json.Marshal(master.Fields)
	if err != nil {
		return fmt.Errorf("marshal master fields: %w", err)
	}
	query := `
	INSERT INTO master_data (case_id, fields_json, notes, updated_at) VALUES (?, ?, ?, ?)
	ON CONFLICT(case_id) DO UPDATE SET
		fields_json = excluded.fields_json,
		notes = excluded.notes,
		updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query, master.CaseID, string(fieldsJSON), master.Notes, time.Now().Unix()); err != nil {
		return fmt.Errorf("upsert master data: %w", err)
	}
	return nil
}

// UpdateMasterDataFields merges the given fields into the case's master record.
func (s *SQLiteStore) UpdateMasterDataFields(ctx context.Context, caseID string, fields map[string]any) error {
	master, err := s.GetMasterData(ctx, caseID)
	if err != nil {
		return err
	}
	if master == nil {
		master = &domain.MasterData{CaseID: caseID, Fields: map[string]any{}}
	}
	if master.Fields == nil {
		master.Fields = map[string]any{}
	}
	for k, v := range fields {
		master.Fields[k] = v
	}
	return s.UpsertMasterData(ctx, master)
}

// UpdateMasterDataNotes replaces the notes field of a case's master record.
func (s *SQLiteStore) UpdateMasterDataNotes(ctx context.Context, caseID string, notes string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE master_data SET notes = ?, updated_at = ? WHERE case_id = ?`,
		notes, time.Now().Unix(), caseID,
	)
	if err != nil {
		return fmt.Errorf("update master notes: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		// No master record yet; create one carrying just the notes.
		return s.UpsertMasterData(ctx, &domain.MasterData{
			CaseID: caseID,
			Fields: map[string]any{},
			Notes:  notes,
		})
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *SQLiteStore) GetDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	query := `SELECT document_id, case_id, name, type, status, person_type, ocr_confirmed, uploaded_at FROM documents WHERE document_id = ?`
	row := s.db.QueryRowContext(ctx, query, documentID)

	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return doc, nil
}

// InsertDocument inserts a document record.
func (s *SQLiteStore) InsertDocument(ctx context.Context, doc *domain.Document) error {
	query := `INSERT INTO documents (document_id, case_id, name, type, status, person_type, ocr_confirmed, uploaded_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		doc.ID, doc.CaseID, doc.Name, doc.Type, doc.Status, doc.PersonType,
		boolToInt(doc.OCRConfirmed), doc.UploadedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *SQLiteStore) listDocuments(ctx context.Context, caseID string) ([]domain.Document, error) {
	query := `SELECT document_id, case_id, name, type, status, person_type, ocr_confirmed, uploaded_at FROM documents WHERE case_id = ? ORDER BY uploaded_at`
	rows, err := s.db.QueryContext(ctx, query, caseID)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer closeRows(rows, "documents")

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// InsertTask inserts a task record.
func (s *SQLiteStore) InsertTask(ctx context.Context, task *domain.Task) error {
	query := `INSERT INTO tasks (task_id, case_id, title, description, priority, category, status, due_date, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		task.ID, task.CaseID, task.Title, task.Description, task.Priority,
		task.Category, task.Status, task.DueDate, task.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (s *SQLiteStore) listTasks(ctx context.Context, caseID string) ([]domain.Task, error) {
	query := `SELECT task_id, case_id, title, description, priority, category, status, due_date, created_at FROM tasks WHERE case_id = ? ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query, caseID)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer closeRows(rows, "tasks")

	var tasks []domain.Task
	for rows.Next() {
		var task domain.Task
		var description, category, dueDate sql.NullString
		var createdAt int64
		if err := rows.Scan(&task.ID, &task.CaseID, &task.Title, &description, &task.Priority, &category, &task.Status, &dueDate, &createdAt); err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		task.Description = description.String
		task.Category = category.String
		task.DueDate = dueDate.String
		task.CreatedAt = time.Unix(createdAt, 0)
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

// InsertPOARecord inserts a power-of-attorney record.
func (s *SQLiteStore) InsertPOARecord(ctx context.Context, poa *domain.POARecord) error {
	query := `INSERT INTO poa_records (poa_id, case_id, type, status, artifact_url, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, poa.ID, poa.CaseID, poa.Type, poa.Status, poa.ArtifactURL, poa.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert poa record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) listPOARecords(ctx context.Context, caseID string) ([]domain.POARecord, error) {
	query := `SELECT poa_id, case_id, type, status, artifact_url, created_at FROM poa_records WHERE case_id = ? ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query, caseID)
	if err != nil {
		return nil, fmt.Errorf("query poa records: %w", err)
	}
	defer closeRows(rows, "poa records")

	var records []domain.POARecord
	for rows.Next() {
		var poa domain.POARecord
		var artifactURL sql.NullString
		var createdAt int64
		if err := rows.Scan(&poa.ID, &poa.CaseID, &poa.Type, &poa.Status, &artifactURL, &createdAt); err != nil {
			return nil, fmt.Errorf("scan poa row: %w", err)
		}
		poa.ArtifactURL = artifactURL.String
		poa.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, poa)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate poa records: %w", err)
	}
	return records, nil
}

// InsertArchiveSearch inserts an archive search request.
func (s *SQLiteStore) InsertArchiveSearch(ctx context.Context, search *domain.ArchiveSearch) error {
	typesJSON, err := json.Marshal(search.DocumentTypes)
	if err != nil {
		return fmt.Errorf("marshal document types: %w", err)
	}
	query := `INSERT INTO archive_searches (search_id, case_id, person_type, document_types_json, archive_location, status, priority, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		search.ID, search.CaseID, search.PersonType, string(typesJSON),
		search.ArchiveLocation, search.Status, search.Priority, search.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert archive search: %w", err)
	}
	return nil
}

// GetOBYDraftByCase retrieves the OBY draft for a case.
func (s *SQLiteStore) GetOBYDraftByCase(ctx context.Context, caseID string) (*domain.OBYDraft, error) {
	query := `SELECT draft_id, case_id, master_snapshot_json, auto_populated_json, status, created_at, updated_at FROM oby_drafts WHERE case_id = ?`
	row := s.db.QueryRowContext(ctx, query, caseID)

	draft, err := scanOBYDraft(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan oby draft: %w", err)
	}
	return draft, nil
}

// InsertOBYDraft inserts a new OBY draft.
func (s *SQLiteStore) InsertOBYDraft(ctx context.Context, draft *domain.OBYDraft) error {
	snapshotJSON, autoJSON, err := marshalOBYDraft(draft)
	if err != nil {
		return err
	}
	query := `INSERT INTO oby_drafts (draft_id, case_id, master_snapshot_json, auto_populated_json, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		draft.ID, draft.CaseID, snapshotJSON, autoJSON, draft.Status,
		draft.CreatedAt.Unix(), draft.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert oby draft: %w", err)
	}
	return nil
}

// UpdateOBYDraft updates an existing OBY draft in place.
func (s *SQLiteStore) UpdateOBYDraft(ctx context.Context, draft *domain.OBYDraft) error {
	snapshotJSON, autoJSON, err := marshalOBYDraft(draft)
	if err != nil {
		return err
	}
	query := `UPDATE oby_drafts SET master_snapshot_json = ?, auto_populated_json = ?, status = ?, updated_at = ? WHERE draft_id = ?`
	res, err := s.db.ExecContext(ctx, query, snapshotJSON, autoJSON, draft.Status, time.Now().Unix(), draft.ID)
	if err != nil {
		return fmt.Errorf("update oby draft: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("oby draft %s not found", draft.ID)
	}
	return nil
}

func (s *SQLiteStore) listOBYDrafts(ctx context.Context, caseID string) ([]domain.OBYDraft, error) {
	draft, err := s.GetOBYDraftByCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, nil
	}
	return []domain.OBYDraft{*draft}, nil
}

// InsertWSCLetter inserts a WSC letter record.
func (s *SQLiteStore) InsertWSCLetter(ctx context.Context, letter *domain.WSCLetter) error {
	query := `INSERT INTO wsc_letters (letter_id, case_id, reference, summary, deadline, received_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		letter.ID, letter.CaseID, letter.Reference, letter.Summary, letter.Deadline, letter.ReceivedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert wsc letter: %w", err)
	}
	return nil
}

func (s *SQLiteStore) listWSCLetters(ctx context.Context, caseID string) ([]domain.WSCLetter, error) {
	query := `SELECT letter_id, case_id, reference, summary, deadline, received_at FROM wsc_letters WHERE case_id = ? ORDER BY received_at`
	rows, err := s.db.QueryContext(ctx, query, caseID)
	if err != nil {
		return nil, fmt.Errorf("query wsc letters: %w", err)
	}
	defer closeRows(rows, "wsc letters")

	var letters []domain.WSCLetter
	for rows.Next() {
		var letter domain.WSCLetter
		var reference, summary, deadline sql.NullString
		var receivedAt int64
		if err := rows.Scan(&letter.ID, &letter.CaseID, &reference, &summary, &deadline, &receivedAt); err != nil {
			return nil, fmt.Errorf("scan wsc letter row: %w", err)
		}
		letter.Reference = reference.String
		letter.Summary = summary.String
		letter.Deadline = deadline.String
		letter.ReceivedAt = time.Unix(receivedAt, 0)
		letters = append(letters, letter)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wsc letters: %w", err)
	}
	return letters, nil
}

// AppendAudit appends an audit log entry.
func (s *SQLiteStore) AppendAudit(ctx context.Context, entry *domain.AuditEntry) error {
	var metadataJSON interface{}
	if len(entry.Metadata) > 0 {
		data, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
		metadataJSON = string(data)
	}

	var caseID interface{}
	if entry.CaseID != "" {
		caseID = entry.CaseID
	}

	query := `INSERT INTO audit_log (case_id, action, detail, actor, metadata_json, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, query, caseID, entry.Action, entry.Detail, entry.Actor, metadataJSON, entry.CreatedAt.Unix())
	if shared.IsSQLiteConflictError(err) {
		time.Sleep(100 * time.Millisecond)
		res, err = s.db.ExecContext(ctx, query, caseID, entry.Action, entry.Detail, entry.Actor, metadataJSON, entry.CreatedAt.Unix())
	}
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	if id, idErr := res.LastInsertId(); idErr == nil {
		entry.ID = id
	}
	return nil
}

// ListAuditEntries returns up to limit most recent audit entries, newest first.
func (s *SQLiteStore) ListAuditEntries(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	query := `SELECT id, case_id, action, detail, actor, metadata_json, created_at FROM audit_log ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer closeRows(rows, "audit log")

	var entries []domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		var caseID, metadataJSON sql.NullString
		var createdAt int64
		if err := rows.Scan(&entry.ID, &caseID, &entry.Action, &entry.Detail, &entry.Actor, &metadataJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		entry.CaseID = caseID.String
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &entry.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal audit metadata: %w", err)
			}
		}
		entry.CreatedAt = time.Unix(createdAt, 0)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit log: %w", err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var docType, personType sql.NullString
	var ocrConfirmed int
	var uploadedAt int64
	err := row.Scan(&doc.ID, &doc.CaseID, &doc.Name, &docType, &doc.Status, &personType, &ocrConfirmed, &uploadedAt)
	if err != nil {
		return nil, err
	}
	doc.Type = docType.String
	doc.PersonType = personType.String
	doc.OCRConfirmed = ocrConfirmed != 0
	doc.UploadedAt = time.Unix(uploadedAt, 0)
	return &doc, nil
}

func scanOBYDraft(row rowScanner) (*domain.OBYDraft, error) {
	var draft domain.OBYDraft
	var snapshotJSON string
	var autoJSON sql.NullString
	var createdAt, updatedAt int64
	err := row.Scan(&draft.ID, &draft.CaseID, &snapshotJSON, &autoJSON, &draft.Status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(snapshotJSON), &draft.MasterSnapshot); err != nil {
		return nil, fmt.Errorf("unmarshal master snapshot: %w", err)
	}
	if autoJSON.Valid && autoJSON.String != "" {
		if err := json.Unmarshal([]byte(autoJSON.String), &draft.AutoPopulatedFields); err != nil {
			return nil, fmt.Errorf("unmarshal auto-populated fields: %w", err)
		}
	}
	draft.CreatedAt = time.Unix(createdAt, 0)
	draft.UpdatedAt = time.Unix(updatedAt, 0)
	return &draft, nil
}

func marshalOBYDraft(draft *domain.OBYDraft) (string, interface{}, error) {
	snapshotJSON, err := json.Marshal(draft.MasterSnapshot)
	if err != nil {
		return "", nil, fmt.Errorf("marshal master snapshot: %w", err)
	}
	var autoJSON interface{}
	if len(draft.AutoPopulatedFields) > 0 {
		data, err := json.Marshal(draft.AutoPopulatedFields)
		if err != nil {
			return "", nil, fmt.Errorf("marshal auto-populated fields: %w", err)
		}
		autoJSON = string(data)
	}
	return string(snapshotJSON), autoJSON, nil
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "rows", what, "error", err)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
