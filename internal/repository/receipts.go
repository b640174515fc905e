package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/receiptpilot/receipt-scanner/internal/common"
	"github.com/receiptpilot/receipt-scanner/internal/entity"
)

// ReceiptRepository stores uploads and their extraction results.
type ReceiptRepository interface {
	Create(ctx context.Context, rec *entity.Receipt) error
	SaveExtraction(ctx context.Context, id uuid.UUID, x *entity.ExtractedReceipt) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Receipt, error)
	List(ctx context.Context, from, to *time.Time) ([]*entity.Receipt, error)
}

type receiptRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewReceiptRepository(db *DB, logger *slog.Logger) ReceiptRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &receiptRepository{db: db, logger: logger}
}

func (r *receiptRepository) Create(ctx context.Context, rec *entity.Receipt) error {
	_, err := r.db.ExecContext(ctx, r.db.rebind(
		`INSERT INTO receipts (id, filename, path, mime_type, size_bytes, upload_date)
		 VALUES (?, ?, ?, ?, ?, ?)`),
		rec.ID.String(), rec.Filename, rec.Path, rec.MIMEType, rec.SizeBytes,
		rec.UploadDate.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		r.logger.Error("failed to create receipt", "receipt_id", rec.ID, "error", err)
		return fmt.Errorf("%w: insert receipt: %v", common.ErrDatabase, err)
	}
	return nil
}

func (r *receiptRepository) SaveExtraction(ctx context.Context, id uuid.UUID, x *entity.ExtractedReceipt) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", common.ErrDatabase, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, r.db.rebind(
		`UPDATE receipts
		 SET merchant = ?, tx_date = ?, total = ?, confidence = ?, raw_text = ?, processed_at = ?
		 WHERE id = ?`),
		x.Merchant, x.Date, x.Total, x.Confidence, x.RawText,
		time.Now().UTC().Format(time.RFC3339Nano), id.String(),
	)
	if err != nil {
		return fmt.Errorf("%w: update receipt: %v", common.ErrDatabase, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: receipt %s", common.ErrNotFound, id)
	}

	if _, err := tx.ExecContext(ctx, r.db.rebind(
		`DELETE FROM line_items WHERE receipt_id = ?`), id.String()); err != nil {
		return fmt.Errorf("%w: clear line items: %v", common.ErrDatabase, err)
	}
	for i, item := range x.Items {
		if _, err := tx.ExecContext(ctx, r.db.rebind(
			`INSERT INTO line_items (receipt_id, line_index, name, price) VALUES (?, ?, ?, ?)`),
			id.String(), i, item.Name, item.Price); err != nil {
			return fmt.Errorf("%w: insert line item %d: %v", common.ErrDatabase, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", common.ErrDatabase, err)
	}
	return nil
}

func (r *receiptRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Receipt, error) {
	row := r.db.QueryRowContext(ctx, r.db.rebind(
		`SELECT id, filename, path, mime_type, size_bytes, upload_date,
		        merchant, tx_date, total, confidence, raw_text, processed_at
		 FROM receipts WHERE id = ?`), id.String())
	rec, err := scanReceipt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: receipt %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get receipt: %v", common.ErrDatabase, err)
	}
	if rec.Extraction != nil {
		items, err := r.listItems(ctx, id)
		if err != nil {
			return nil, err
		}
		rec.Extraction.Items = items
	}
	return rec, nil
}

func (r *receiptRepository) List(ctx context.Context, from, to *time.Time) ([]*entity.Receipt, error) {
	q := `SELECT id, filename, path, mime_type, size_bytes, upload_date,
	             merchant, tx_date, total, confidence, raw_text, processed_at
	      FROM receipts`
	var args []any
	var conds []string
	if from != nil {
		conds = append(conds, "upload_date >= ?")
		args = append(args, from.UTC().Format(time.RFC3339Nano))
	}
	if to != nil {
		conds = append(conds, "upload_date <= ?")
		args = append(args, to.UTC().Format(time.RFC3339Nano))
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY upload_date"

	rows, err := r.db.QueryContext(ctx, r.db.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list receipts: %v", common.ErrDatabase, err)
	}
	defer func() { _ = rows.Close() }()

	var recs []*entity.Receipt
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan row: %v", common.ErrDatabase, err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate rows: %v", common.ErrDatabase, err)
	}

	for _, rec := range recs {
		if rec.Extraction == nil {
			continue
		}
		items, err := r.listItems(ctx, rec.ID)
		if err != nil {
			return nil, err
		}
		rec.Extraction.Items = items
	}
	return recs, nil
}

func (r *receiptRepository) listItems(ctx context.Context, id uuid.UUID) ([]entity.LineItem, error) {
	rows, err := r.db.QueryContext(ctx, r.db.rebind(
		`SELECT name, price FROM line_items WHERE receipt_id = ? ORDER BY line_index`),
		id.String())
	if err != nil {
		return nil, fmt.Errorf("%w: list items: %v", common.ErrDatabase, err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]entity.LineItem, 0)
	for rows.Next() {
		var it entity.LineItem
		if err := rows.Scan(&it.Name, &it.Price); err != nil {
			return nil, fmt.Errorf("%w: scan item: %v", common.ErrDatabase, err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (*entity.Receipt, error) {
	var (
		idStr, uploadStr          string
		merchant, txDate, rawText sql.NullString
		total                     sql.NullFloat64
		confidence                sql.NullFloat64
		processedAt               sql.NullString
		rec                       entity.Receipt
	)
	if err := row.Scan(&idStr, &rec.Filename, &rec.Path, &rec.MIMEType, &rec.SizeBytes,
		&uploadStr, &merchant, &txDate, &total, &confidence, &rawText, &processedAt); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse id: %w", err)
	}
	rec.ID = id
	if rec.UploadDate, err = time.Parse(time.RFC3339Nano, uploadStr); err != nil {
		return nil, fmt.Errorf("parse upload_date: %w", err)
	}

	if processedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, processedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse processed_at: %w", err)
		}
		rec.ProcessedAt = &t

		x := &entity.ExtractedReceipt{
			RawText:    rawText.String,
			Confidence: float32(confidence.Float64),
			Items:      []entity.LineItem{},
		}
		if merchant.Valid {
			m := merchant.String
			x.Merchant = &m
		}
		if txDate.Valid {
			d := txDate.String
			x.Date = &d
		}
		if total.Valid {
			t := total.Float64
			x.Total = &t
		}
		rec.Extraction = x
	}
	return &rec, nil
}
