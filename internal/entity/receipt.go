package entity

import (
	"time"

	"github.com/google/uuid"
)

// RawScan is the OCR engine's output for one document, prior to any
// structured extraction. Confidence is on the engine's 0..100 scale.
type RawScan struct {
	Text       string
	Confidence float32
}

// LineItem is one purchased item parsed out of the receipt text.
// Name may be empty when a line carried nothing but amounts.
type LineItem struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// ExtractedReceipt is the pipeline's sole output: the four field results
// plus the raw scan the fields were derived from. Nil pointers mean the
// field was not found; that is a valid outcome, not an error.
type ExtractedReceipt struct {
	Merchant   *string    `json:"merchant"`
	Date       *string    `json:"date"` // YYYY-MM-DD
	Total      *float64   `json:"total"`
	Items      []LineItem `json:"items"`
	RawText    string     `json:"raw_text"`
	Confidence float32    `json:"confidence"`
}

// Receipt represents a stored upload and, once processed, its extraction.
type Receipt struct {
	ID          uuid.UUID         `json:"id"`
	Filename    string            `json:"filename"`
	Path        string            `json:"path"`
	MIMEType    string            `json:"mime_type"`
	SizeBytes   int64             `json:"size_bytes"`
	UploadDate  time.Time         `json:"upload_date"`
	ProcessedAt *time.Time        `json:"processed_at,omitempty"`
	Extraction  *ExtractedReceipt `json:"extraction,omitempty"`
}
