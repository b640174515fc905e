// Package server is the thin HTTP surface around the extraction pipeline:
// a multipart upload endpoint, a listing endpoint, and an XLSX export.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/receiptpilot/receipt-scanner/internal/entity"
	"github.com/receiptpilot/receipt-scanner/internal/export"
	"github.com/receiptpilot/receipt-scanner/internal/repository"
)

// Processor runs the extraction pipeline for one stored upload.
type Processor interface {
	Process(ctx context.Context, receiptID uuid.UUID, path string) (*entity.ExtractedReceipt, error)
}

type Server struct {
	uploadDir string
	receipts  repository.ReceiptRepository
	proc      Processor
	exporter  *export.Service
	logger    *slog.Logger
}

func New(uploadDir string, receipts repository.ReceiptRepository, proc Processor, exporter *export.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		uploadDir: uploadDir,
		receipts:  receipts,
		proc:      proc,
		exporter:  exporter,
		logger:    logger,
	}
}

// Handler returns the routed HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/receipts/upload", s.handleUpload)
	mux.HandleFunc("GET /api/receipts", s.handleList)
	mux.HandleFunc("GET /api/receipts/{id}", s.handleGet)
	mux.HandleFunc("GET /api/receipts/export", s.handleExport)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return s.withRequestLogging(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
