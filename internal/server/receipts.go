package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/receiptpilot/receipt-scanner/internal/common"
)

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDateWindow(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	recs, err := s.receipts.List(r.Context(), from, to)
	if err != nil {
		s.logger.Error("failed to list receipts", "error", err)
		s.writeError(w, common.HTTPStatus(err), "Error listing receipts")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"receipts": recs})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid receipt id")
		return
	}

	rec, err := s.receipts.GetByID(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to get receipt", "receipt_id", id, "error", err)
		s.writeError(w, common.HTTPStatus(err), "Error fetching receipt")
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDateWindow(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := s.exporter.ExportReceiptsXLSX(r.Context(), from, to)
	if err != nil {
		s.logger.Error("export failed", "error", err)
		s.writeError(w, common.HTTPStatus(err), "Error exporting receipts")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="receipts.xlsx"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("failed to write export body", "error", err)
	}
}

// parseDateWindow reads optional ?from= and ?to= query params (YYYY-MM-DD).
func parseDateWindow(r *http.Request) (from, to *time.Time, err error) {
	if v := r.URL.Query().Get("from"); v != "" {
		t, perr := time.Parse("2006-01-02", v)
		if perr != nil {
			return nil, nil, fmt.Errorf("invalid 'from' date, use YYYY-MM-DD")
		}
		from = &t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, perr := time.Parse("2006-01-02", v)
		if perr != nil {
			return nil, nil, fmt.Errorf("invalid 'to' date, use YYYY-MM-DD")
		}
		// make the window inclusive of the whole day
		t = t.Add(24*time.Hour - time.Nanosecond)
		to = &t
	}
	return from, to, nil
}
