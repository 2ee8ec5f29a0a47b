package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mkorchagin/context-assistant/internal/core/domain"
	"github.com/mkorchagin/context-assistant/internal/core/ports"
	"github.com/mkorchagin/context-assistant/internal/observability/metrics"
)

// Config carries the traffic control knobs for the public API surface.
type Config struct {
	Service          string
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxInFlight      int
	BackpressureWait time.Duration
}

type Router struct {
	chat    ports.ChatService
	indexer ports.DocumentIndexer
	ingest  ports.DocumentIngestor
	repo    ports.StoredDocumentRepository

	metrics *metrics.APIMetrics
	cfg     Config
	log     *slog.Logger
}

func NewRouter(
	chat ports.ChatService,
	indexer ports.DocumentIndexer,
	ingest ports.DocumentIngestor,
	repo ports.StoredDocumentRepository,
	apiMetrics *metrics.APIMetrics,
	cfg Config,
	log *slog.Logger,
) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		chat:    chat,
		indexer: indexer,
		ingest:  ingest,
		repo:    repo,
		metrics: apiMetrics,
		cfg:     cfg,
		log:     log,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/chat", rt.chatTurn)
	mux.HandleFunc("/v1/documents", rt.documents)
	mux.HandleFunc("/v1/documents/text", rt.indexText)
	mux.HandleFunc("/v1/documents/", rt.documentByID)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	handler := http.Handler(mux)
	handler = backpressureMiddleware(handler, rt.cfg.MaxInFlight, rt.cfg.BackpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.cfg.Service, handler)
	}
	handler = accessLogMiddleware(rt.log, handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// chatTurn runs one conversational turn and streams its deltas as
// server-sent events.
func (rt *Router) chatTurn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		ConversationID string `json:"conversation_id"`
		Message        string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.ConversationID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "conversation_id is required"})
		return
	}

	deltas, err := rt.chat.Turn(r.Context(), req.ConversationID, req.Message)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	if err := streamDeltas(w, deltas, rt.observeDelta); err != nil {
		rt.log.Warn("chat stream aborted",
			"request_id", requestIDFromContext(r.Context()),
			"conversation_id", req.ConversationID,
			"error", err,
		)
	}
}

func (rt *Router) documents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rt.listDocuments(w, r)
	case http.MethodPost:
		rt.uploadDocument(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs := rt.indexer.ListDocuments(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs, "count": len(docs)})
}

// uploadDocument accepts a multipart file and queues it for async
// extraction and indexing.
func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingest.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

// indexText indexes raw text synchronously, bypassing the upload queue.
func (rt *Router) indexText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Title    string            `json:"title"`
		Content  string            `json:"content"`
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	doc, err := rt.indexer.IndexDocument(r.Context(), req.Title, req.Content, req.Metadata)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

func (rt *Router) documentByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		rt.getStoredDocument(w, r, id)
	case http.MethodDelete:
		rt.removeDocument(w, r, id)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

// getStoredDocument reports the ingestion status of an uploaded file.
func (rt *Router) getStoredDocument(w http.ResponseWriter, r *http.Request, id string) {
	if rt.repo == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "document tracking is not enabled"})
		return
	}
	doc, err := rt.repo.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) removeDocument(w http.ResponseWriter, r *http.Request, id string) {
	removed, err := rt.indexer.RemoveDocument(r.Context(), id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	if !removed {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "document not found: " + id})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": true, "id": id})
}

// observeDelta feeds stream events into the turn level metrics.
func (rt *Router) observeDelta(delta domain.Delta) {
	if rt.metrics == nil {
		return
	}
	switch delta.Type {
	case domain.DeltaUsage:
		if delta.Usage != nil {
			rt.metrics.RecordTokenUsage(rt.cfg.Service, delta.Usage.InputTokens, delta.Usage.OutputTokens)
		}
	case domain.DeltaComplete:
		if delta.Complete != nil {
			status := "completed"
			if delta.Complete.HitLimit {
				status = "iteration_limit"
			}
			rt.metrics.RecordTurn(
				rt.cfg.Service,
				status,
				delta.Complete.Iterations,
				delta.Complete.ToolCalls,
				delta.Complete.ContextChunks,
			)
		}
	case domain.DeltaError:
		rt.metrics.RecordTurn(rt.cfg.Service, "error", 0, 0, 0)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
