package domain

import (
	"time"
)

// Case represents a Polish citizenship application case.
type Case struct {
	ID         string    `json:"id"`
	ClientName string    `json:"client_name"`
	Status     string    `json:"status"`
	Stage      string    `json:"stage"`
	Country    string    `json:"country"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IntakeData holds the structured intake form answers for a case.
type IntakeData struct {
	CaseID    string         `json:"case_id"`
	Fields    map[string]any `json:"fields"`
	CreatedAt time.Time      `json:"created_at"`
}

// MasterData is the consolidated applicant record for a case. Fields is a
// semi-structured document updated incrementally; Notes carries free-text
// annotations (e.g. WSC response strategy summaries).
type MasterData struct {
	CaseID    string         `json:"case_id"`
	Fields    map[string]any `json:"fields"`
	Notes     string         `json:"notes"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// CaseBundle is the request-scoped projection of a case and its related
// records, fetched once per agent request and folded into the prompt context.
// It is never persisted as its own entity.
type CaseBundle struct {
	Case       *Case
	Intake     *IntakeData
	Master     *MasterData
	Documents  []Document
	Tasks      []Task
	POARecords []POARecord
	OBYDrafts  []OBYDraft
	WSCLetters []WSCLetter
}
