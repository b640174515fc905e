package server

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/receiptpilot/receipt-scanner/constants"
	"github.com/receiptpilot/receipt-scanner/internal/entity"
)

const maxUploadBytes = 32 << 20 // 32 MB

type uploadedReceipt struct {
	ID         uuid.UUID `json:"id"`
	Filename   string    `json:"filename"`
	UploadDate time.Time `json:"uploadDate"`
}

type uploadResponse struct {
	Message string          `json:"message"`
	Receipt uploadedReceipt `json:"receipt"`
}

// handleUpload accepts one multipart file, stores it, runs the extraction
// pipeline, and answers with the stored receipt identity. Partial
// extraction (fields missing) is still success; only a missing file (400)
// or a scan/storage failure (500) is reported as an error.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer func() { _ = file.Close() }()

	mime := header.Header.Get("Content-Type")
	if !constants.IsAllowedMIME(mime) {
		s.writeError(w, http.StatusBadRequest, "Only PDF and image files are allowed")
		return
	}
	if constants.MapExtToFormat(filepath.Ext(header.Filename)) == "" {
		s.writeError(w, http.StatusBadRequest, "Unsupported file extension")
		return
	}

	rec := &entity.Receipt{
		ID:         uuid.New(),
		Filename:   header.Filename,
		MIMEType:   mime,
		SizeBytes:  header.Size,
		UploadDate: time.Now().UTC(),
	}
	rec.Path = filepath.Join(s.uploadDir,
		fmt.Sprintf("%s%s", rec.ID, filepath.Ext(header.Filename)))

	if err := s.storeFile(file, rec.Path); err != nil {
		s.logger.Error("failed to store upload", "path", rec.Path, "error", err)
		s.writeError(w, http.StatusInternalServerError, "Error uploading file")
		return
	}

	if err := s.receipts.Create(r.Context(), rec); err != nil {
		s.logger.Error("failed to create receipt row", "receipt_id", rec.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "Error uploading file")
		return
	}

	if _, err := s.proc.Process(r.Context(), rec.ID, rec.Path); err != nil {
		s.logger.Error("receipt processing failed", "receipt_id", rec.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "Error uploading file")
		return
	}

	s.writeJSON(w, http.StatusOK, uploadResponse{
		Message: "File uploaded successfully",
		Receipt: uploadedReceipt{
			ID:         rec.ID,
			Filename:   rec.Filename,
			UploadDate: rec.UploadDate,
		},
	})
}

func (s *Server) storeFile(src io.Reader, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer func() { _ = out.Close() }()
	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return out.Close()
}
