package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/llm"
	"github.com/ekaya-inc/ekaya-ask/pkg/services"
)

// maxAskBodyBytes bounds the request body of the ask endpoints.
const maxAskBodyBytes = 64 << 10

// AskRequest is the body of POST /api/tenants/{tid}/ask.
type AskRequest struct {
	Question string `json:"question"`
}

// AskHandler exposes the answer pipeline and the tenant schema over HTTP.
type AskHandler struct {
	answers services.AnswerService
	tenants services.TenantRegistry
	schemas services.SchemaRegistry
	logger  *zap.Logger
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(answers services.AnswerService, tenants services.TenantRegistry, schemas services.SchemaRegistry, logger *zap.Logger) *AskHandler {
	return &AskHandler{
		answers: answers,
		tenants: tenants,
		schemas: schemas,
		logger:  logger,
	}
}

// RegisterRoutes registers the ask handler's routes on the given mux.
func (h *AskHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/tenants/{tid}/ask", h.Ask)
	mux.HandleFunc("POST /api/tenants/{tid}/ask/stream", h.AskStream)
	mux.HandleFunc("GET /api/tenants/{tid}/schema", h.Schema)
	mux.HandleFunc("POST /api/tenants/{tid}/schema/refresh", h.RefreshSchema)
}

// decodeAskRequest reads and checks the request body. On failure it writes
// the error response and returns false.
func (h *AskHandler) decodeAskRequest(w http.ResponseWriter, r *http.Request) (AskRequest, bool) {
	var req AskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAskBodyBytes)).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return req, false
	}

	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_question", "Question is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return req, false
	}
	return req, true
}

// Ask handles POST /api/tenants/{tid}/ask
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := ParseTenantID(w, r, h.logger)
	if !ok {
		return
	}
	req, ok := h.decodeAskRequest(w, r)
	if !ok {
		return
	}

	answer, err := h.answers.Process(r.Context(), req.Question, tenantID)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	response := ApiResponse{Success: true, Data: answer}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// AskStream handles POST /api/tenants/{tid}/ask/stream
// This endpoint uses Server-Sent Events (SSE) to stream the answer text.
// The last event is "done" carrying the full Answer, or "error".
func (h *AskHandler) AskStream(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := ParseTenantID(w, r, h.logger)
	if !ok {
		return
	}
	req, ok := h.decodeAskRequest(w, r)
	if !ok {
		return
	}

	// Reject unknown tenants before committing to an event stream.
	if _, err := h.tenants.Get(tenantID); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("SSE not supported")
		if err := ErrorResponse(w, http.StatusInternalServerError, "sse_unsupported", "SSE not supported"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	eventChan := make(chan llm.StreamEvent, 100)

	// Run the pipeline in background
	go func() {
		defer close(eventChan)
		if _, err := h.answers.ProcessStream(ctx, req.Question, tenantID, eventChan); err != nil {
			if ctx.Err() != nil {
				return
			}
			h.logger.Error("Answer stream error",
				zap.String("tenant_id", tenantID),
				zap.Error(err))
			llm.SendEvent(ctx, eventChan, llm.StreamEvent{Type: llm.StreamEventError, Content: "Failed to answer question"})
		}
	}()

	// Stream events to client
	for event := range eventChan {
		data, err := json.Marshal(event)
		if err != nil {
			h.logger.Error("Failed to marshal event", zap.Error(err))
			continue
		}

		// Write SSE formatted data
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()

		// Stop on done or error
		if event.Type == llm.StreamEventDone || event.Type == llm.StreamEventError {
			break
		}
	}
}

// Schema handles GET /api/tenants/{tid}/schema
// Returns the cached snapshot, discovering it first when stale.
func (h *AskHandler) Schema(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := ParseTenantID(w, r, h.logger)
	if !ok {
		return
	}

	tenant, err := h.tenants.Get(tenantID)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	snapshot := h.schemas.GetSchema(r.Context(), tenant)

	response := ApiResponse{Success: true, Data: snapshot}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// RefreshSchema handles POST /api/tenants/{tid}/schema/refresh
// Drops the cached snapshot and rediscovers it.
func (h *AskHandler) RefreshSchema(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := ParseTenantID(w, r, h.logger)
	if !ok {
		return
	}

	tenant, err := h.tenants.Get(tenantID)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	h.schemas.Invalidate(tenant.ID)
	snapshot := h.schemas.GetSchema(r.Context(), tenant)

	h.logger.Info("Schema refreshed",
		zap.String("tenant_id", tenant.ID),
		zap.Int("tables", len(snapshot.Tables)),
		zap.Bool("fallback", snapshot.Fallback))

	response := ApiResponse{Success: true, Data: snapshot, Message: "Schema refreshed"}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
