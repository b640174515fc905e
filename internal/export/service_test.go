package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/receiptpilot/receipt-scanner/internal/entity"
	"github.com/receiptpilot/receipt-scanner/internal/repository"
)

func newTestRepo(t *testing.T) repository.ReceiptRepository {
	t.Helper()
	db, err := repository.Open(context.Background(), repository.Config{DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(nil) })
	require.NoError(t, db.Migrate(context.Background()))
	return repository.NewReceiptRepository(db, nil)
}

func seedProcessedReceipt(t *testing.T, repo repository.ReceiptRepository, uploaded time.Time) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	rec := &entity.Receipt{
		ID:         uuid.New(),
		Filename:   "receipt.png",
		Path:       "/data/uploads/receipt.png",
		MIMEType:   "image/png",
		SizeBytes:  1024,
		UploadDate: uploaded,
	}
	require.NoError(t, repo.Create(ctx, rec))

	merchant := "Acme Corp"
	date := "2023-05-12"
	total := 5.75
	require.NoError(t, repo.SaveExtraction(ctx, rec.ID, &entity.ExtractedReceipt{
		Merchant:   &merchant,
		Date:       &date,
		Total:      &total,
		Items:      []entity.LineItem{{Name: "Coffee", Price: 3.50}, {Name: "Muffin", Price: 2.25}},
		RawText:    "Acme Corp",
		Confidence: 87.5,
	}))
	return rec.ID
}

func TestExportReceiptsXLSX_RowsAndHeaders(t *testing.T) {
	repo := newTestRepo(t)
	seedProcessedReceipt(t, repo, time.Date(2023, 5, 12, 9, 30, 0, 0, time.UTC))
	svc := NewService(repo, nil)

	data, err := svc.ExportReceiptsXLSX(context.Background(), nil, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Receipts")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, []string{
		"Upload Date", "Filename", "Merchant", "Receipt Date", "Total", "Items", "OCR Confidence",
	}, rows[0])

	row := rows[1]
	assert.Equal(t, "2023-05-12 09:30", row[0])
	assert.Equal(t, "receipt.png", row[1])
	assert.Equal(t, "Acme Corp", row[2])
	assert.Equal(t, "2023-05-12", row[3])
	assert.Equal(t, "5.75", row[4])
	assert.Equal(t, "2", row[5])
	assert.Equal(t, "87.5", row[6])
}

func TestExportReceiptsXLSX_WindowFiltersRows(t *testing.T) {
	repo := newTestRepo(t)
	seedProcessedReceipt(t, repo, time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC))
	seedProcessedReceipt(t, repo, time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := NewService(repo, nil)

	from := time.Date(2023, 5, 20, 0, 0, 0, 0, time.UTC)
	to := time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC)
	data, err := svc.ExportReceiptsXLSX(context.Background(), &from, &to)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Receipts")
	require.NoError(t, err)
	require.Len(t, rows, 2, "header plus the one in-window receipt")
	assert.Equal(t, "2023-06-01 12:00", rows[1][0])
}

func TestExportReceiptsXLSX_EmptyHasHeaderOnly(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewService(repo, nil)

	data, err := svc.ExportReceiptsXLSX(context.Background(), nil, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Receipts")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
