package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
	openai "github.com/sashabaranov/go-openai"

	"github.com/romanwi-dev/pl-descent-navigator/internal/api"
	"github.com/romanwi-dev/pl-descent-navigator/internal/config"
	"github.com/romanwi-dev/pl-descent-navigator/internal/domain"
	"github.com/romanwi-dev/pl-descent-navigator/internal/identity"
	"github.com/romanwi-dev/pl-descent-navigator/internal/store"
)

const (
	// replyPreviewLength bounds the reply excerpt stored in the audit log.
	replyPreviewLength = 200

	defaultAuditListLimit = 50
	maxAuditListLimit     = 500
	transcriptLimit       = 200
)

// Handler serves the agent HTTP surface: the chat orchestrator plus the
// transcript and audit read endpoints.
type Handler struct {
	repo          store.Repository
	model         ModelClient
	executor      *Executor
	rateLimiter   *RateLimiter
	requestSchema *jsonschema.Schema
	cfg           *config.Config
}

// NewHandler creates the agent handler.
func NewHandler(repo store.Repository, model ModelClient, executor *Executor, cfg *config.Config) *Handler {
	return &Handler{
		repo:          repo,
		model:         model,
		executor:      executor,
		rateLimiter:   NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration),
		requestSchema: jsonschema.MustCompileString("chat_request.json", chatRequestSchema),
		cfg:           cfg,
	}
}

// RegisterRoutes mounts the agent endpoints on the given router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.HandleChat)
	r.Get("/conversations/{id}/messages", h.HandleConversationMessages)
	r.Get("/audit", h.HandleAudit)
}

// HandleChat handles POST /api/agent/chat requests.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	actor := identity.ActorFromContext(r.Context())

	if !h.rateLimiter.Allow(actor) {
		api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxRequestBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		api.Error(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	// Schema validation is the gate: nothing below runs, and no side effect
	// occurs, until the raw body has passed.
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.requestSchema.Validate(raw); err != nil {
		api.Error(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	var req ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	slog.Info("agent chat request",
		"actor", actor,
		"action", req.Action,
		"case_id", req.CaseID,
		"stream", req.Stream,
		"prompt_length", len(req.Prompt),
	)

	conv, newConversation, err := h.resolveConversation(r.Context(), &req)
	if err != nil {
		if errors.Is(err, errConversationNotFound) {
			api.Error(w, http.StatusNotFound, "conversation not found")
			return
		}
		slog.Error("failed to resolve conversation", "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to resolve conversation")
		return
	}

	caseID := req.CaseID
	if caseID == "" && conv != nil {
		caseID = conv.CaseID
	}

	var history []domain.Message
	if conv != nil {
		history, err = h.repo.ListRecentMessages(r.Context(), conv.ID, h.cfg.HistoryLimit)
		if err != nil {
			slog.Error("failed to load conversation history", "error", err, "conversation_id", conv.ID)
			api.Error(w, http.StatusInternalServerError, "failed to load conversation history")
			return
		}
	}

	// Case fetch failure is a hard error that aborts the request; the only
	// action that never touches the case is the security audit.
	var bundle *domain.CaseBundle
	if req.Action != ActionSecurityAudit && caseID != "" {
		bundle, err = h.repo.GetCaseBundle(r.Context(), caseID)
		if err != nil {
			slog.Error("failed to load case data", "error", err, "case_id", caseID)
			api.Error(w, http.StatusBadGateway, "failed to load case data")
			return
		}
	}

	caseContext, err := BuildContext(req.Action, bundle)
	if err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	messages, err := assembleMessages(req.Action, req.Prompt, caseContext, history)
	if err != nil {
		slog.Error("failed to assemble messages", "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to assemble model request")
		return
	}

	modelReq := openai.ChatCompletionRequest{
		Model:    h.cfg.OpenAI.Model,
		Messages: messages,
	}
	if toolEligibleActions[req.Action] {
		modelReq.Tools = h.executor.Definitions()
		modelReq.ToolChoice = "auto"
	}

	reqID := chiMiddleware.GetReqID(r.Context())
	if req.Stream {
		h.streamChat(w, r, &req, modelReq, conv, newConversation, caseID, actor, reqID)
		return
	}
	h.completeChat(w, r, &req, modelReq, conv, caseID, actor, reqID)
}

var errConversationNotFound = errors.New("conversation not found")

// resolveConversation looks up the referenced conversation, or lazily creates
// one when the request names a case without a conversation. Requests with
// neither proceed without persistence.
func (h *Handler) resolveConversation(ctx context.Context, req *ChatRequest) (*domain.Conversation, bool, error) {
	if req.ConversationID != "" {
		conv, err := h.repo.GetConversation(ctx, req.ConversationID)
		if err != nil {
			return nil, false, err
		}
		if conv == nil {
			return nil, false, errConversationNotFound
		}
		return conv, false, nil
	}

	if req.CaseID == "" {
		return nil, false, nil
	}

	conv := &domain.Conversation{
		ID:        uuid.NewString(),
		CaseID:    req.CaseID,
		AgentType: req.Action,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.repo.CreateConversation(ctx, conv); err != nil {
		return nil, false, err
	}
	return conv, true, nil
}

// assembleMessages builds the model message list: system prompt, replayed
// history, then a synthetic user message embedding the serialized case
// context ahead of the literal prompt text.
func assembleMessages(action, prompt string, caseContext map[string]any, history []domain.Message) ([]openai.ChatCompletionMessage, error) {
	contextJSON, err := json.Marshal(caseContext)
	if err != nil {
		return nil, fmt.Errorf("serialize case context: %w", err)
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: SelectPrompt(action),
	})
	for _, msg := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: string(contextJSON) + "\n\n" + prompt,
	})
	return messages, nil
}

// completeChat is the non-streaming branch: one model call, tool execution,
// persistence, single JSON response.
func (h *Handler) completeChat(w http.ResponseWriter, r *http.Request, req *ChatRequest, modelReq openai.ChatCompletionRequest, conv *domain.Conversation, caseID, actor, reqID string) {
	resp, err := h.model.Complete(r.Context(), modelReq)
	if err != nil {
		slog.Error("model call failed", "error", err, "request_id", reqID)
		api.Error(w, http.StatusBadGateway, "model call failed")
		return
	}
	if len(resp.Choices) == 0 {
		slog.Error("model returned no choices", "request_id", reqID)
		api.Error(w, http.StatusBadGateway, "model returned an empty completion")
		return
	}

	choice := resp.Choices[0].Message
	content := choice.Content
	toolCalls := convertToolCalls(choice.ToolCalls)

	var results []domain.ToolResult
	if len(toolCalls) > 0 && caseID != "" {
		results = h.executor.ExecuteBatch(r.Context(), actor, caseID, toolCalls)
	}

	h.persistExchange(r.Context(), conv, req.Prompt, content, toolCalls)
	h.auditRequest(r.Context(), conv, caseID, req.Action, actor, content, reqID, len(toolCalls))

	out := ChatResponse{
		Response:    content,
		ToolResults: results,
	}
	if out.ToolResults == nil {
		out.ToolResults = []domain.ToolResult{}
	}
	if conv != nil {
		out.ConversationID = &conv.ID
	}
	api.JSON(w, http.StatusOK, out)
}

// streamChat is the SSE branch. The upstream stream is opened before any
// response byte is written, so upstream failures still produce a clean JSON
// error. After the first SSE frame, errors can only end the stream early;
// the terminal sentinel is withheld so clients can tell completion from
// truncation.
func (h *Handler) streamChat(w http.ResponseWriter, r *http.Request, req *ChatRequest, modelReq openai.ChatCompletionRequest, conv *domain.Conversation, newConversation bool, caseID, actor, reqID string) {
	upstream, err := h.model.Stream(r.Context(), modelReq)
	if err != nil {
		slog.Error("model stream failed to open", "error", err, "request_id", reqID)
		api.Error(w, http.StatusBadGateway, "model call failed")
		return
	}
	defer func() { _ = upstream.Close() }()

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if newConversation && conv != nil {
		if err := writeEvent(w, flusher, map[string]any{"conversationId": conv.ID}); err != nil {
			slog.Warn("client dropped before stream start", "error", err, "request_id", reqID)
			return
		}
	}

	relay := newStreamRelay(func(delta string) error {
		return writeEvent(w, flusher, map[string]any{"delta": delta})
	})

	consumeErr := relay.Consume(upstream)

	// Content already delivered stays delivered; persistence runs even when
	// the stream or the client failed partway.
	persistCtx := context.WithoutCancel(r.Context())
	toolCalls := relay.ToolCalls()
	h.persistExchange(persistCtx, conv, req.Prompt, relay.Content(), toolCalls)

	if consumeErr != nil {
		// No terminal sentinel: the client must see this stream as truncated.
		slog.Error("model stream aborted", "error", consumeErr, "request_id", reqID)
		h.auditRequest(persistCtx, conv, caseID, req.Action, actor, relay.Content(), reqID, len(toolCalls))
		return
	}

	if len(toolCalls) > 0 && caseID != "" {
		results := h.executor.ExecuteBatch(r.Context(), actor, caseID, toolCalls)
		if err := writeEvent(w, flusher, map[string]any{"toolResults": results}); err != nil {
			slog.Warn("client dropped before tool results", "error", err, "request_id", reqID)
			h.auditRequest(persistCtx, conv, caseID, req.Action, actor, relay.Content(), reqID, len(toolCalls))
			return
		}
	}

	h.auditRequest(persistCtx, conv, caseID, req.Action, actor, relay.Content(), reqID, len(toolCalls))

	if err := writeSSE(w, streamDonePayload); err != nil {
		slog.Warn("failed to write terminal sentinel", "error", err, "request_id", reqID)
		return
	}
	flusher.Flush()
}

// persistExchange appends the user and assistant messages. Persistence is
// best-effort after delivery; failures are logged, never surfaced.
func (h *Handler) persistExchange(ctx context.Context, conv *domain.Conversation, prompt, content string, toolCalls []domain.ToolCall) {
	if conv == nil {
		return
	}
	now := time.Now().UTC()
	userMsg := &domain.Message{
		ConversationID: conv.ID,
		Role:           domain.RoleUser,
		Content:        prompt,
		CreatedAt:      now,
	}
	if err := h.repo.AppendMessage(ctx, userMsg); err != nil {
		slog.Warn("failed to persist user message", "error", err, "conversation_id", conv.ID)
	}
	assistantMsg := &domain.Message{
		ConversationID: conv.ID,
		Role:           domain.RoleAssistant,
		Content:        content,
		ToolCalls:      toolCalls,
		CreatedAt:      now,
	}
	if err := h.repo.AppendMessage(ctx, assistantMsg); err != nil {
		slog.Warn("failed to persist assistant message", "error", err, "conversation_id", conv.ID)
	}
}

// auditRequest writes the per-request audit entry when a case is associated.
func (h *Handler) auditRequest(ctx context.Context, conv *domain.Conversation, caseID, action, actor, reply, requestID string, toolsInvoked int) {
	if caseID == "" {
		return
	}
	metadata := map[string]any{
		"action":        action,
		"tools_invoked": toolsInvoked,
		"request_id":    requestID,
	}
	if conv != nil {
		metadata["conversation_id"] = conv.ID
	}
	entry := &domain.AuditEntry{
		CaseID:    caseID,
		Action:    "agent_chat",
		Detail:    truncate(reply, replyPreviewLength),
		Actor:     actor,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.repo.AppendAudit(ctx, entry); err != nil {
		slog.Warn("failed to write audit entry", "error", err, "case_id", caseID)
	}
}

// HandleConversationMessages handles GET /api/agent/conversations/{id}/messages,
// returning the transcript oldest first.
func (h *Handler) HandleConversationMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	conv, err := h.repo.GetConversation(r.Context(), id)
	if err != nil {
		slog.Error("failed to load conversation", "error", err, "conversation_id", id)
		api.Error(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	if conv == nil {
		api.Error(w, http.StatusNotFound, "conversation not found")
		return
	}

	messages, err := h.repo.ListRecentMessages(r.Context(), id, transcriptLimit)
	if err != nil {
		slog.Error("failed to load messages", "error", err, "conversation_id", id)
		api.Error(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	if messages == nil {
		messages = []domain.Message{}
	}

	api.JSON(w, http.StatusOK, map[string]any{
		"conversation": conv,
		"messages":     messages,
	})
}

// HandleAudit handles GET /api/agent/audit, returning recent audit entries
// newest first.
func (h *Handler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	limit := defaultAuditListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			api.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxAuditListLimit)
	}

	entries, err := h.repo.ListAuditEntries(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list audit entries", "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to list audit entries")
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	api.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func convertToolCalls(calls []openai.ToolCall) []domain.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]domain.ToolCall, 0, len(calls))
	for _, tc := range calls {
		out = append(out, domain.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out
}

func writeEvent(w io.Writer, flusher http.Flusher, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal stream event: %w", err)
	}
	if err := writeSSE(w, string(data)); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func writeSSE(w io.Writer, data string) error {
	_, err := fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
