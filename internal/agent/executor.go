package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/romanwi-dev/pl-descent-navigator/internal/docgen"
	"github.com/romanwi-dev/pl-descent-navigator/internal/domain"
	"github.com/romanwi-dev/pl-descent-navigator/internal/ocr"
	"github.com/romanwi-dev/pl-descent-navigator/internal/store"
	"github.com/sourcegraph/conc/iter"
)

// Executor performs the backend side effects requested by model tool calls.
// A batch is dispatched concurrently; every call is isolated, so one bad
// argument payload or failing collaborator never aborts its siblings.
type Executor struct {
	repo  store.Repository
	pdf   docgen.Generator
	ocr   ocr.Service
	tools map[string]*toolSpec
	order []string
}

// NewExecutor creates a tool executor over the given collaborators.
func NewExecutor(repo store.Repository, pdf docgen.Generator, ocrSvc ocr.Service) *Executor {
	e := &Executor{repo: repo, pdf: pdf, ocr: ocrSvc}
	e.tools, e.order = buildToolRegistry(e)
	return e
}

// ExecuteBatch runs all tool calls concurrently and returns one result per
// call, positionally aligned (result i carries call i's identifier).
func (e *Executor) ExecuteBatch(ctx context.Context, actor, caseID string, calls []domain.ToolCall) []domain.ToolResult {
	if len(calls) == 0 {
		return nil
	}
	return iter.Map(calls, func(call *domain.ToolCall) domain.ToolResult {
		return e.Execute(ctx, actor, caseID, *call)
	})
}

// Execute runs a single tool call. Failures of any kind (unknown tool, bad
// arguments, handler error, panic) are captured into the returned result.
func (e *Executor) Execute(ctx context.Context, actor, caseID string, call domain.ToolCall) (result domain.ToolResult) {
	result = domain.ToolResult{ToolCallID: call.ID, Name: call.Name}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Tool handler panicked", "tool", call.Name, "panic", r)
			result.Success = false
			result.Message = fmt.Sprintf("tool %s failed: %v", call.Name, r)
			result.Data = nil
		}
	}()

	spec, ok := e.tools[call.Name]
	if !ok {
		result.Message = fmt.Sprintf("unknown tool %q", call.Name)
		return result
	}

	var raw any
	if err := json.Unmarshal([]byte(call.Arguments), &raw); err != nil {
		result.Message = fmt.Sprintf("invalid tool arguments: %v", err)
		return result
	}
	args, ok := raw.(map[string]any)
	if !ok {
		result.Message = "tool arguments must be a JSON object"
		return result
	}
	if err := spec.schema.Validate(raw); err != nil {
		result.Message = fmt.Sprintf("tool arguments failed validation: %v", err)
		return result
	}

	inv := invocation{caseID: caseID, actor: actor, args: args}
	if id := strArg(args, "caseId"); id != "" {
		inv.caseID = id
	}

	message, data, err := spec.run(ctx, inv)
	if err != nil {
		result.Message = err.Error()
		return result
	}
	result.Success = true
	result.Message = message
	result.Data = data
	return result
}

func (e *Executor) runGeneratePOAPDF(ctx context.Context, inv invocation) (string, map[string]any, error) {
	poaType := strArg(inv.args, "poaType")
	reason := strArg(inv.args, "reason")

	url, err := e.pdf.GeneratePOA(ctx, inv.caseID, poaType, reason)
	if err != nil {
		return "", nil, fmt.Errorf("generate POA PDF: %w", err)
	}

	poa := &domain.POARecord{
		ID:          uuid.NewString(),
		CaseID:      inv.caseID,
		Type:        poaType,
		Status:      "generated",
		ArtifactURL: url,
		CreatedAt:   time.Now(),
	}
	if err := e.repo.InsertPOARecord(ctx, poa); err != nil {
		return "", nil, fmt.Errorf("record POA artifact: %w", err)
	}

	e.audit(ctx, inv, "poa_generated", fmt.Sprintf("Generated %s POA PDF", poaType), map[string]any{
		"poa_id": poa.ID,
		"reason": reason,
	})
	return fmt.Sprintf("Generated %s POA document", poaType), map[string]any{
		"artifactUrl": url,
		"poaId":       poa.ID,
	}, nil
}

func (e *Executor) runCreateTask(ctx context.Context, inv invocation) (string, map[string]any, error) {
	task := &domain.Task{
		ID:          uuid.NewString(),
		CaseID:      inv.caseID,
		Title:       strArg(inv.args, "title"),
		Description: strArg(inv.args, "description"),
		Priority:    strArg(inv.args, "priority"),
		Category:    strArg(inv.args, "category"),
		Status:      domain.TaskStatusPending,
		DueDate:     strArg(inv.args, "dueDate"),
		CreatedAt:   time.Now(),
	}
	if err := e.repo.InsertTask(ctx, task); err != nil {
		return "", nil, fmt.Errorf("create task: %w", err)
	}
	return fmt.Sprintf("Created %s-priority task %q", task.Priority, task.Title), map[string]any{
		"taskId": task.ID,
	}, nil
}

func (e *Executor) runTriggerOCR(ctx context.Context, inv invocation) (string, map[string]any, error) {
	documentID := strArg(inv.args, "documentId")
	expectedType := strArg(inv.args, "expectedType")

	doc, err := e.repo.GetDocument(ctx, documentID)
	if err != nil {
		return "", nil, fmt.Errorf("look up document: %w", err)
	}
	if doc == nil {
		return "", nil, fmt.Errorf("document %s not found", documentID)
	}

	if err := e.ocr.Trigger(ctx, documentID, expectedType); err != nil {
		return "", nil, fmt.Errorf("trigger OCR: %w", err)
	}
	return fmt.Sprintf("OCR queued for document %q", doc.Name), nil, nil
}

func (e *Executor) runUpdateMasterData(ctx context.Context, inv invocation) (string, map[string]any, error) {
	fields, _ := inv.args["fields"].(map[string]any)
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("fields must be a non-empty object")
	}

	if err := e.repo.UpdateMasterDataFields(ctx, inv.caseID, fields); err != nil {
		return "", nil, fmt.Errorf("update master data: %w", err)
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	joined := strings.Join(names, ", ")

	e.audit(ctx, inv, "master_data_updated", "Updated master data fields: "+joined, map[string]any{
		"fields": names,
		"reason": strArg(inv.args, "reason"),
	})
	return "Updated master data fields: " + joined, nil, nil
}

func (e *Executor) runGenerateArchiveRequest(ctx context.Context, inv invocation) (string, map[string]any, error) {
	search := &domain.ArchiveSearch{
		ID:              uuid.NewString(),
		CaseID:          inv.caseID,
		PersonType:      strArg(inv.args, "personType"),
		DocumentTypes:   strSliceArg(inv.args, "documentTypes"),
		ArchiveLocation: strArg(inv.args, "archiveLocation"),
		Status:          domain.TaskStatusPending,
		Priority:        domain.TaskPriorityMedium,
		CreatedAt:       time.Now(),
	}
	if err := e.repo.InsertArchiveSearch(ctx, search); err != nil {
		return "", nil, fmt.Errorf("create archive request: %w", err)
	}

	e.audit(ctx, inv, "archive_request_created",
		fmt.Sprintf("Archive search filed for %s: %s", search.PersonType, strings.Join(search.DocumentTypes, ", ")),
		map[string]any{"search_id": search.ID, "archive_location": search.ArchiveLocation},
	)
	return fmt.Sprintf("Archive search request filed for %s", search.PersonType), map[string]any{
		"searchId": search.ID,
	}, nil
}

func (e *Executor) runCreateOBYDraft(ctx context.Context, inv invocation) (string, map[string]any, error) {
	master, err := e.repo.GetMasterData(ctx, inv.caseID)
	if err != nil {
		return "", nil, fmt.Errorf("load master data: %w", err)
	}
	if master == nil {
		return "", nil, fmt.Errorf("master data required to draft OBY form for case %s", inv.caseID)
	}

	autoFields := strSliceArg(inv.args, "autoPopulatedFields")

	existing, err := e.repo.GetOBYDraftByCase(ctx, inv.caseID)
	if err != nil {
		return "", nil, fmt.Errorf("check existing OBY draft: %w", err)
	}

	if existing != nil {
		existing.MasterSnapshot = master.Fields
		existing.AutoPopulatedFields = autoFields
		if err := e.repo.UpdateOBYDraft(ctx, existing); err != nil {
			return "", nil, fmt.Errorf("update OBY draft: %w", err)
		}
		e.audit(ctx, inv, "oby_draft_updated", "Refreshed OBY draft from master data", map[string]any{
			"draft_id":       existing.ID,
			"auto_populated": autoFields,
		})
		return "Updated existing OBY draft", map[string]any{"draftId": existing.ID, "updated": true}, nil
	}

	now := time.Now()
	draft := &domain.OBYDraft{
		ID:                  uuid.NewString(),
		CaseID:              inv.caseID,
		MasterSnapshot:      master.Fields,
		AutoPopulatedFields: autoFields,
		Status:              "draft",
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := e.repo.InsertOBYDraft(ctx, draft); err != nil {
		return "", nil, fmt.Errorf("create OBY draft: %w", err)
	}
	e.audit(ctx, inv, "oby_draft_created", "Created OBY draft from master data", map[string]any{
		"draft_id":       draft.ID,
		"auto_populated": autoFields,
	})
	return "Created OBY draft", map[string]any{"draftId": draft.ID, "updated": false}, nil
}

func (e *Executor) runDraftWSCResponse(ctx context.Context, inv invocation) (string, map[string]any, error) {
	strategy := strArg(inv.args, "strategy")
	letterID := strArg(inv.args, "wscLetterId")
	keyPoints := strSliceArg(inv.args, "keyPoints")

	e.audit(ctx, inv, "wsc_response_drafted",
		fmt.Sprintf("WSC response strategy %q; key points: %s", strategy, strings.Join(keyPoints, "; ")),
		map[string]any{"wsc_letter_id": letterID},
	)

	if letterID != "" {
		summary := fmt.Sprintf("WSC letter %s: respond with %q strategy", letterID, strategy)
		if len(keyPoints) > 0 {
			summary += " — " + strings.Join(keyPoints, "; ")
		}
		master, err := e.repo.GetMasterData(ctx, inv.caseID)
		if err != nil {
			return "", nil, fmt.Errorf("load master data: %w", err)
		}
		notes := summary
		if master != nil && master.Notes != "" {
			notes = master.Notes + "\n" + summary
		}
		if err := e.repo.UpdateMasterDataNotes(ctx, inv.caseID, notes); err != nil {
			return "", nil, fmt.Errorf("record strategy on master notes: %w", err)
		}
	}
	return fmt.Sprintf("Recorded %q WSC response strategy", strategy), nil, nil
}

func (e *Executor) runGenerateCivilActsRequest(ctx context.Context, inv invocation) (string, map[string]any, error) {
	actType := strArg(inv.args, "actType")
	personType := strArg(inv.args, "personType")

	title := fmt.Sprintf("Apply for Polish %s certificate", actType)
	if personType != "" {
		title += " (" + personType + ")"
	}
	task := &domain.Task{
		ID:          uuid.NewString(),
		CaseID:      inv.caseID,
		Title:       title,
		Description: fmt.Sprintf("Prepare and submit the civil registry application for the %s act.", actType),
		Priority:    domain.TaskPriorityHigh,
		Category:    "civil_acts",
		Status:      domain.TaskStatusPending,
		CreatedAt:   time.Now(),
	}
	if err := e.repo.InsertTask(ctx, task); err != nil {
		return "", nil, fmt.Errorf("create civil acts task: %w", err)
	}

	e.audit(ctx, inv, "civil_acts_request_created", title, map[string]any{
		"task_id":     task.ID,
		"act_type":    actType,
		"person_type": personType,
	})
	return title, map[string]any{"taskId": task.ID}, nil
}

// audit appends a tool-outcome audit entry. Audit is traceability, not
// control flow; failures are logged and swallowed.
func (e *Executor) audit(ctx context.Context, inv invocation, action, detail string, metadata map[string]any) {
	entry := &domain.AuditEntry{
		CaseID:    inv.caseID,
		Action:    action,
		Detail:    detail,
		Actor:     inv.actor,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
	if err := e.repo.AppendAudit(ctx, entry); err != nil {
		slog.Warn("Failed to append audit entry", "action", action, "case_id", inv.caseID, "error", err)
	}
}

func strArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func strSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
