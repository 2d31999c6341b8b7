package agent

import (
	"fmt"
	"time"

	"github.com/romanwi-dev/pl-descent-navigator/internal/domain"
)

// BuildContext assembles the action-specific case snapshot embedded into the
// prompt. It is a pure function of the bundle and the action: security audits
// get a static capability inventory, every other action projects the case
// records it needs plus a small KPI block.
func BuildContext(action string, bundle *domain.CaseBundle) (map[string]any, error) {
	if action == ActionSecurityAudit {
		return securityAuditContext(), nil
	}
	if bundle == nil || bundle.Case == nil {
		return nil, fmt.Errorf("case data required for action %q", action)
	}

	ctx := map[string]any{
		"case": map[string]any{
			"id":         bundle.Case.ID,
			"clientName": bundle.Case.ClientName,
			"status":     bundle.Case.Status,
			"stage":      bundle.Case.Stage,
			"country":    bundle.Case.Country,
		},
	}

	if includesIntake(action) {
		if bundle.Intake != nil {
			ctx["intake"] = bundle.Intake.Fields
		}
		if bundle.Master != nil {
			ctx["masterData"] = map[string]any{
				"fields": bundle.Master.Fields,
				"notes":  bundle.Master.Notes,
			}
		}
	}

	if includesDocuments(action) {
		ctx["documents"] = redactedDocuments(bundle.Documents)
	}

	if includesTasks(action) {
		ctx["tasks"] = taskSummaries(bundle.Tasks)
	}

	if includesWSC(action) {
		ctx["wscLetters"] = wscSummaries(bundle.WSCLetters)
	}

	ctx["kpi"] = kpiBlock(bundle)
	return ctx, nil
}

func includesIntake(action string) bool {
	switch action {
	case ActionEligibilityAnalysis, ActionComprehensiveAnalysis, ActionAutoPopulateOBY:
		return true
	}
	return false
}

func includesDocuments(action string) bool {
	return action == ActionDocumentReview || action == ActionComprehensiveAnalysis
}

func includesTasks(action string) bool {
	return action == ActionTaskSuggestions || action == ActionComprehensiveAnalysis
}

func includesWSC(action string) bool {
	return action == ActionWSCResponse || action == ActionComprehensiveAnalysis
}

// redactedDocuments keeps inventory metadata only; document contents and
// personal identifiers never enter the prompt.
func redactedDocuments(docs []domain.Document) []map[string]any {
	out := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		out = append(out, map[string]any{
			"id":           doc.ID,
			"name":         doc.Name,
			"type":         doc.Type,
			"status":       doc.Status,
			"personType":   doc.PersonType,
			"ocrConfirmed": doc.OCRConfirmed,
		})
	}
	return out
}

func taskSummaries(tasks []domain.Task) []map[string]any {
	out := make([]map[string]any, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, map[string]any{
			"title":    task.Title,
			"priority": task.Priority,
			"status":   task.Status,
			"category": task.Category,
			"dueDate":  task.DueDate,
		})
	}
	return out
}

func wscSummaries(letters []domain.WSCLetter) []map[string]any {
	out := make([]map[string]any, 0, len(letters))
	for _, letter := range letters {
		out = append(out, map[string]any{
			"id":        letter.ID,
			"reference": letter.Reference,
			"summary":   letter.Summary,
			"deadline":  letter.Deadline,
		})
	}
	return out
}

func kpiBlock(bundle *domain.CaseBundle) map[string]any {
	verified := 0
	for _, doc := range bundle.Documents {
		if doc.OCRConfirmed {
			verified++
		}
	}
	openTasks := 0
	for _, task := range bundle.Tasks {
		if task.Status == domain.TaskStatusPending {
			openTasks++
		}
	}
	return map[string]any{
		"documentsTotal":    len(bundle.Documents),
		"documentsVerified": verified,
		"openTasks":         openTasks,
		"wscLetters":        len(bundle.WSCLetters),
		"obyDrafts":         len(bundle.OBYDrafts),
		"caseAgeDays":       int(time.Since(bundle.Case.CreatedAt).Hours() / 24),
	}
}

// securityAuditContext is the static capability inventory returned for the
// security_audit action; no case data is read.
func securityAuditContext() map[string]any {
	return map[string]any{
		"service": "descent-navigator-agent",
		"actions": []string{
			ActionEligibilityAnalysis,
			ActionDocumentReview,
			ActionTaskSuggestions,
			ActionComprehensiveAnalysis,
			ActionAutoPopulateOBY,
			ActionWSCResponse,
			ActionSecurityAudit,
		},
		"tools": []string{
			"generate_poa_pdf",
			"create_task",
			"trigger_ocr",
			"update_master_data",
			"generate_archive_request",
			"create_oby_draft",
			"draft_wsc_response",
			"generate_civil_acts_request",
		},
		"dataAccess": []string{
			"case records (read)",
			"intake and master data (read, partial update)",
			"documents (read, OCR trigger)",
			"tasks and archive searches (insert)",
			"OBY drafts (insert, update)",
			"audit log (append only)",
		},
	}
}
