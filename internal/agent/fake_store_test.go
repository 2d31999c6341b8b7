package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/romanwi-dev/pl-descent-navigator/internal/domain"
)

// fakeStore is an in-memory Repository for agent tests.
type fakeStore struct {
	mu sync.Mutex

	conversations map[string]*domain.Conversation
	messages      map[string][]domain.Message
	cases         map[string]*domain.Case
	bundles       map[string]*domain.CaseBundle
	master        map[string]*domain.MasterData
	documents     map[string]*domain.Document
	tasks         []domain.Task
	poaRecords    []domain.POARecord
	archives      []domain.ArchiveSearch
	obyDrafts     map[string]*domain.OBYDraft
	wscLetters    []domain.WSCLetter
	audit         []domain.AuditEntry
	nextMessageID int64

	bundleErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		conversations: make(map[string]*domain.Conversation),
		messages:      make(map[string][]domain.Message),
		cases:         make(map[string]*domain.Case),
		bundles:       make(map[string]*domain.CaseBundle),
		master:        make(map[string]*domain.MasterData),
		documents:     make(map[string]*domain.Document),
		obyDrafts:     make(map[string]*domain.OBYDraft),
	}
}

func (f *fakeStore) CreateConversation(_ context.Context, conv *domain.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *conv
	f.conversations[conv.ID] = &c
	return nil
}

func (f *fakeStore) GetConversation(_ context.Context, id string) (*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.conversations[id]
	if !ok {
		return nil, nil
	}
	c := *conv
	return &c, nil
}

func (f *fakeStore) AppendMessage(_ context.Context, msg *domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextMessageID++
	m := *msg
	m.ID = f.nextMessageID
	f.messages[msg.ConversationID] = append(f.messages[msg.ConversationID], m)
	return nil
}

func (f *fakeStore) ListRecentMessages(_ context.Context, conversationID string, limit int) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.messages[conversationID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (f *fakeStore) GetCase(_ context.Context, caseID string) (*domain.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cases[caseID]
	if !ok {
		return nil, nil
	}
	out := *c
	return &out, nil
}

func (f *fakeStore) GetCaseBundle(_ context.Context, caseID string) (*domain.CaseBundle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bundleErr != nil {
		return nil, f.bundleErr
	}
	bundle, ok := f.bundles[caseID]
	if !ok {
		return nil, fmt.Errorf("case %s not found", caseID)
	}
	return bundle, nil
}

func (f *fakeStore) UpsertCase(_ context.Context, c *domain.Case) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := *c
	f.cases[c.ID] = &out
	return nil
}

func (f *fakeStore) UpsertIntake(_ context.Context, _ *domain.IntakeData) error {
	return nil
}

func (f *fakeStore) GetMasterData(_ context.Context, caseID string) (*domain.MasterData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.master[caseID]
	if !ok {
		return nil, nil
	}
	out := *m
	return &out, nil
}

func (f *fakeStore) UpsertMasterData(_ context.Context, master *domain.MasterData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := *master
	f.master[master.CaseID] = &m
	return nil
}

func (f *fakeStore) UpdateMasterDataFields(_ context.Context, caseID string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.master[caseID]
	if !ok {
		m = &domain.MasterData{CaseID: caseID, Fields: make(map[string]any)}
		f.master[caseID] = m
	}
	if m.Fields == nil {
		m.Fields = make(map[string]any)
	}
	for k, v := range fields {
		m.Fields[k] = v
	}
	return nil
}

func (f *fakeStore) UpdateMasterDataNotes(_ context.Context, caseID string, notes string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.master[caseID]
	if !ok {
		m = &domain.MasterData{CaseID: caseID}
		f.master[caseID] = m
	}
	m.Notes = notes
	return nil
}

func (f *fakeStore) GetDocument(_ context.Context, documentID string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.documents[documentID]
	if !ok {
		return nil, nil
	}
	out := *doc
	return &out, nil
}

func (f *fakeStore) InsertDocument(_ context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := *doc
	f.documents[doc.ID] = &d
	return nil
}

func (f *fakeStore) InsertTask(_ context.Context, task *domain.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, *task)
	return nil
}

func (f *fakeStore) InsertPOARecord(_ context.Context, poa *domain.POARecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.poaRecords = append(f.poaRecords, *poa)
	return nil
}

func (f *fakeStore) InsertArchiveSearch(_ context.Context, search *domain.ArchiveSearch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archives = append(f.archives, *search)
	return nil
}

func (f *fakeStore) GetOBYDraftByCase(_ context.Context, caseID string) (*domain.OBYDraft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	draft, ok := f.obyDrafts[caseID]
	if !ok {
		return nil, nil
	}
	out := *draft
	return &out, nil
}

func (f *fakeStore) InsertOBYDraft(_ context.Context, draft *domain.OBYDraft) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := *draft
	f.obyDrafts[draft.CaseID] = &d
	return nil
}

func (f *fakeStore) UpdateOBYDraft(_ context.Context, draft *domain.OBYDraft) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := *draft
	f.obyDrafts[draft.CaseID] = &d
	return nil
}

func (f *fakeStore) InsertWSCLetter(_ context.Context, letter *domain.WSCLetter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wscLetters = append(f.wscLetters, *letter)
	return nil
}

func (f *fakeStore) AppendAudit(_ context.Context, entry *domain.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := *entry
	e.ID = int64(len(f.audit) + 1)
	f.audit = append(f.audit, e)
	return nil
}

func (f *fakeStore) ListAuditEntries(_ context.Context, limit int) ([]domain.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.AuditEntry, 0, limit)
	for i := len(f.audit) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.audit[i])
	}
	return out, nil
}

func (f *fakeStore) Ping(_ context.Context) error { return nil }

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) auditActions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.audit))
	for _, entry := range f.audit {
		out = append(out, entry.Action)
	}
	return out
}
