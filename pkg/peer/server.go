package peer

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Gertschi2011/kiana-ledger/pkg/core"
)

// BlockListing is the summary shape served by the block listing endpoint
// and consumed by Client.Pull on the other side.
type BlockListing struct {
	ID      string `json:"id"`
	Origin  string `json:"origin"`
	Hash    string `json:"hash"`
	BlockID int    `json:"block_id"`
}

// RecordListing is the summary shape served by the record listing endpoint.
type RecordListing struct {
	ID    string `json:"id"`
	Topic string `json:"topic"`
	Hash  string `json:"hash"`
}

type blockListResponse struct {
	Blocks []BlockListing `json:"blocks"`
}

type blockResponse struct {
	Block *core.ChainEntry `json:"block"`
}

type recordListResponse struct {
	Records []RecordListing `json:"records"`
}

type recordResponse struct {
	Record *core.Record `json:"record"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// ServerConfig wires the collaborators of the peer HTTP surface.
type ServerConfig struct {
	Ledger  core.Ledger
	Repo    core.Repository
	Logger  *slog.Logger
	Metrics *Metrics
}

// Server exposes the ledger and record store to pulling peers.
type Server struct {
	ledger  core.Ledger
	repo    core.Repository
	logger  *slog.Logger
	metrics *Metrics
}

// NewServer builds a peer server around a ledger and a record store.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		ledger:  cfg.Ledger,
		repo:    cfg.Repo,
		logger:  logger,
		metrics: cfg.Metrics,
	}
}

// Router builds the HTTP routing tree for the peer surface.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(s.requestID)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Get("/blocks", s.handleBlocks)
	r.Get("/block/by-id/{id}", s.handleBlockByID)

	r.Get("/records", s.handleRecords)
	r.Get("/record/by-id/{id}", s.handleRecordByID)

	return r
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		id, _ := r.Context().Value(requestIDKey).(string)
		s.logger.Info("peer request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start),
			"request_id", id)
		s.metrics.CountRequest(r.URL.Path, strconv.Itoa(sw.status))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBlocks(w http.ResponseWriter, r *http.Request) {
	entries, err := s.ledger.Entries(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	listings := make([]BlockListing, 0, len(entries))
	for _, e := range entries {
		listings = append(listings, BlockListing{
			ID:      e.ID,
			Origin:  e.Origin,
			Hash:    e.Hash,
			BlockID: e.BlockID,
		})
	}
	writeJSON(w, http.StatusOK, blockListResponse{Blocks: listings})
}

func (s *Server) handleBlockByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entries, err := s.ledger.Entries(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	for _, e := range entries {
		if e.ID == id {
			writeJSON(w, http.StatusOK, blockResponse{Block: e})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, errorResponse{
		Error: "block not found: " + id,
		Code:  string(core.CodeNotFound),
	})
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.repo.List(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	listings := make([]RecordListing, 0, len(records))
	for _, rec := range records {
		listings = append(listings, RecordListing{
			ID:    rec.ID,
			Topic: rec.Topic,
			Hash:  rec.Hash,
		})
	}
	writeJSON(w, http.StatusOK, recordListResponse{Records: listings})
}

func (s *Server) handleRecordByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.repo.Load(r.Context(), id, true)
	if err != nil {
		if core.CodeOf(err) == core.CodeNotFound {
			writeJSON(w, http.StatusNotFound, errorResponse{
				Error: "record not found: " + id,
				Code:  string(core.CodeNotFound),
			})
			return
		}
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recordResponse{Record: rec})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	id, _ := r.Context().Value(requestIDKey).(string)
	s.logger.Error("peer handler failed", "path", r.URL.Path, "error", err, "request_id", id)
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Error: "internal error",
		Code:  string(core.CodeOf(err)),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
