package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/receiptpilot/receipt-scanner/internal/common"
	"github.com/receiptpilot/receipt-scanner/internal/entity"
)

func newTestRepo(t *testing.T) ReceiptRepository {
	t.Helper()
	db, err := Open(context.Background(), Config{DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(nil) })
	require.NoError(t, db.Migrate(context.Background()))
	return NewReceiptRepository(db, nil)
}

func newReceipt(uploaded time.Time) *entity.Receipt {
	id := uuid.New()
	return &entity.Receipt{
		ID:         id,
		Filename:   "receipt.png",
		Path:       "/data/uploads/" + id.String() + ".png",
		MIMEType:   "image/png",
		SizeBytes:  2048,
		UploadDate: uploaded,
	}
}

func TestReceipts_CreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rec := newReceipt(time.Now().UTC())
	require.NoError(t, repo.Create(ctx, rec))

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Filename, got.Filename)
	assert.Equal(t, rec.Path, got.Path)
	assert.Equal(t, rec.MIMEType, got.MIMEType)
	assert.Equal(t, rec.SizeBytes, got.SizeBytes)
	assert.True(t, got.UploadDate.Equal(rec.UploadDate))
	assert.Nil(t, got.ProcessedAt)
	assert.Nil(t, got.Extraction)
}

func TestReceipts_GetUnknownIsNotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.GetByID(context.Background(), uuid.New())
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestReceipts_SaveExtractionRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rec := newReceipt(time.Now().UTC())
	require.NoError(t, repo.Create(ctx, rec))

	merchant := "Acme Corp"
	date := "2023-05-12"
	total := 5.75
	x := &entity.ExtractedReceipt{
		Merchant: &merchant,
		Date:     &date,
		Total:    &total,
		Items: []entity.LineItem{
			{Name: "Coffee", Price: 3.50},
			{Name: "Muffin", Price: 2.25},
		},
		RawText:    "Acme Corp\nCoffee 3.50\nMuffin 2.25\nTotal: $5.75",
		Confidence: 87.5,
	}
	require.NoError(t, repo.SaveExtraction(ctx, rec.ID, x))

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ProcessedAt)
	require.NotNil(t, got.Extraction)
	assert.Equal(t, "Acme Corp", *got.Extraction.Merchant)
	assert.Equal(t, "2023-05-12", *got.Extraction.Date)
	assert.InDelta(t, 5.75, *got.Extraction.Total, 1e-9)
	assert.InDelta(t, 87.5, float64(got.Extraction.Confidence), 1e-3)
	assert.Equal(t, x.RawText, got.Extraction.RawText)
	require.Len(t, got.Extraction.Items, 2)
	assert.Equal(t, entity.LineItem{Name: "Coffee", Price: 3.50}, got.Extraction.Items[0])
	assert.Equal(t, entity.LineItem{Name: "Muffin", Price: 2.25}, got.Extraction.Items[1])
}

func TestReceipts_SaveExtractionNilFields(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rec := newReceipt(time.Now().UTC())
	require.NoError(t, repo.Create(ctx, rec))

	x := &entity.ExtractedReceipt{
		Items:      []entity.LineItem{},
		RawText:    "illegible",
		Confidence: 20,
	}
	require.NoError(t, repo.SaveExtraction(ctx, rec.ID, x))

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Extraction)
	assert.Nil(t, got.Extraction.Merchant)
	assert.Nil(t, got.Extraction.Date)
	assert.Nil(t, got.Extraction.Total)
	assert.Empty(t, got.Extraction.Items)
}

func TestReceipts_SaveExtractionReplacesItems(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rec := newReceipt(time.Now().UTC())
	require.NoError(t, repo.Create(ctx, rec))

	first := &entity.ExtractedReceipt{
		Items:   []entity.LineItem{{Name: "Coffee", Price: 3.50}, {Name: "Muffin", Price: 2.25}},
		RawText: "v1",
	}
	require.NoError(t, repo.SaveExtraction(ctx, rec.ID, first))

	second := &entity.ExtractedReceipt{
		Items:   []entity.LineItem{{Name: "Juice", Price: 4.10}},
		RawText: "v2",
	}
	require.NoError(t, repo.SaveExtraction(ctx, rec.ID, second))

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, got.Extraction.Items, 1)
	assert.Equal(t, "Juice", got.Extraction.Items[0].Name)
	assert.Equal(t, "v2", got.Extraction.RawText)
}

func TestReceipts_SaveExtractionUnknownReceipt(t *testing.T) {
	repo := newTestRepo(t)
	err := repo.SaveExtraction(context.Background(), uuid.New(), &entity.ExtractedReceipt{Items: []entity.LineItem{}})
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestReceipts_ListWindow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2023, 5, 10, 12, 0, 0, 0, time.UTC)
	early := newReceipt(base.AddDate(0, 0, -2))
	mid := newReceipt(base)
	late := newReceipt(base.AddDate(0, 0, 2))
	for _, rec := range []*entity.Receipt{early, mid, late} {
		require.NoError(t, repo.Create(ctx, rec))
	}

	all, err := repo.List(ctx, nil, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, early.ID, all[0].ID, "ordered by upload date")

	from := base.AddDate(0, 0, -1)
	to := base.AddDate(0, 0, 1)
	windowed, err := repo.List(ctx, &from, &to)
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, mid.ID, windowed[0].ID)

	fromOnly, err := repo.List(ctx, &from, nil)
	require.NoError(t, err)
	require.Len(t, fromOnly, 2)
}
