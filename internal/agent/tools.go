package agent

import (
	"context"
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"
	openai "github.com/sashabaranov/go-openai"
)

// toolSpec binds one advertised tool to its compiled argument validator and
// its handler. The registry is built once at startup and never mutated; the
// executor looks specs up by name, so registry and dispatch cannot drift.
type toolSpec struct {
	name        string
	description string
	paramsJSON  string
	schema      *jsonschema.Schema
	run         func(ctx context.Context, inv invocation) (string, map[string]any, error)
}

// invocation carries the resolved inputs of one tool call.
type invocation struct {
	caseID string
	actor  string
	args   map[string]any
}

func buildToolRegistry(e *Executor) (map[string]*toolSpec, []string) {
	specs := []*toolSpec{
		{
			name:        "generate_poa_pdf",
			description: "Generate a power-of-attorney PDF for the case and return the artifact URL.",
			paramsJSON: `{
				"type": "object",
				"properties": {
					"caseId": {"type": "string"},
					"poaType": {"type": "string", "enum": ["single", "married", "minor"]},
					"reason": {"type": "string"}
				},
				"required": ["poaType"],
				"additionalProperties": false
			}`,
			run: e.runGeneratePOAPDF,
		},
		{
			name:        "create_task",
			description: "Create a pending work item for the case.",
			paramsJSON: `{
				"type": "object",
				"properties": {
					"caseId": {"type": "string"},
					"title": {"type": "string", "minLength": 1},
					"priority": {"type": "string", "enum": ["low", "medium", "high", "urgent"]},
					"description": {"type": "string"},
					"category": {"type": "string"},
					"dueDate": {"type": "string"}
				},
				"required": ["title", "priority"],
				"additionalProperties": false
			}`,
			run: e.runCreateTask,
		},
		{
			name:        "trigger_ocr",
			description: "Queue OCR extraction for an uploaded document.",
			paramsJSON: `{
				"type": "object",
				"properties": {
					"documentId": {"type": "string", "minLength": 1},
					"expectedType": {"type": "string"}
				},
				"required": ["documentId"],
				"additionalProperties": false
			}`,
			run: e.runTriggerOCR,
		},
		{
			name:        "update_master_data",
			description: "Apply a partial update to the case's master data record.",
			paramsJSON: `{
				"type": "object",
				"properties": {
					"caseId": {"type": "string"},
					"fields": {"type": "object", "minProperties": 1},
					"reason": {"type": "string"}
				},
				"required": ["fields"],
				"additionalProperties": false
			}`,
			run: e.runUpdateMasterData,
		},
		{
			name:        "generate_archive_request",
			description: "File a Polish archive search request for ancestral documents.",
			paramsJSON: `{
				"type": "object",
				"properties": {
					"caseId": {"type": "string"},
					"personType": {"type": "string"},
					"documentTypes": {"type": "array", "items": {"type": "string"}, "minItems": 1},
					"archiveLocation": {"type": "string"}
				},
				"required": ["personType", "documentTypes"],
				"additionalProperties": false
			}`,
			run: e.runGenerateArchiveRequest,
		},
		{
			name:        "create_oby_draft",
			description: "Create or update the OBY citizenship application draft from master data.",
			paramsJSON: `{
				"type": "object",
				"properties": {
					"caseId": {"type": "string"},
					"autoPopulatedFields": {"type": "array", "items": {"type": "string"}}
				},
				"additionalProperties": false
			}`,
			run: e.runCreateOBYDraft,
		},
		{
			name:        "draft_wsc_response",
			description: "Record a response strategy for a voivodeship office (WSC) letter.",
			paramsJSON: `{
				"type": "object",
				"properties": {
					"caseId": {"type": "string"},
					"strategy": {"type": "string", "minLength": 1},
					"wscLetterId": {"type": "string"},
					"keyPoints": {"type": "array", "items": {"type": "string"}}
				},
				"required": ["strategy"],
				"additionalProperties": false
			}`,
			run: e.runDraftWSCResponse,
		},
		{
			name:        "generate_civil_acts_request",
			description: "Create the work item for a Polish civil registry certificate application.",
			paramsJSON: `{
				"type": "object",
				"properties": {
					"caseId": {"type": "string"},
					"actType": {"type": "string", "enum": ["birth", "marriage", "death"]},
					"personType": {"type": "string"}
				},
				"required": ["actType"],
				"additionalProperties": false
			}`,
			run: e.runGenerateCivilActsRequest,
		},
	}

	registry := make(map[string]*toolSpec, len(specs))
	order := make([]string, 0, len(specs))
	for _, spec := range specs {
		spec.schema = jsonschema.MustCompileString(spec.name+".json", spec.paramsJSON)
		registry[spec.name] = spec
		order = append(order, spec.name)
	}
	return registry, order
}

// Definitions returns the tool declarations advertised to the model, in
// registry order.
func (e *Executor) Definitions() []openai.Tool {
	tools := make([]openai.Tool, 0, len(e.order))
	for _, name := range e.order {
		spec := e.tools[name]
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.name,
				Description: spec.description,
				Parameters:  json.RawMessage(spec.paramsJSON),
			},
		})
	}
	return tools
}
