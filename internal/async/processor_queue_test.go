package async

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/receiptpilot/receipt-scanner/internal/entity"
	"github.com/receiptpilot/receipt-scanner/internal/extract"
	"github.com/receiptpilot/receipt-scanner/internal/ner"
	"github.com/receiptpilot/receipt-scanner/internal/pipeline"
	"github.com/receiptpilot/receipt-scanner/internal/repository"
)

type fixedScanner struct {
	mu    sync.Mutex
	calls int
}

func (f *fixedScanner) Scan(_ context.Context, _ string) (entity.RawScan, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return entity.RawScan{
		Text:       "Acme Corp\nCoffee 3.50\nTotal: $3.50\n",
		Confidence: 80,
	}, nil
}

type noopClassifier struct{}

func (noopClassifier) Classify(context.Context, string) ([]ner.Entity, error) {
	return nil, nil
}

func TestProcessorQueue_DrainsAllJobs(t *testing.T) {
	db, err := repository.Open(context.Background(), repository.Config{DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(nil) })
	require.NoError(t, db.Migrate(context.Background()))
	repo := repository.NewReceiptRepository(db, nil)

	sc := &fixedScanner{}
	proc := pipeline.NewProcessor(
		pipeline.New(sc, extract.NewMerchantExtractor(noopClassifier{}, nil), nil),
		repo, nil,
	)
	q := NewProcessorQueue(proc, nil, WithWorkers(2), WithQueueSize(8))

	const n = 5
	ids := make([]uuid.UUID, 0, n)
	for i := 0; i < n; i++ {
		rec := &entity.Receipt{
			ID:         uuid.New(),
			Filename:   "receipt.png",
			Path:       "/data/uploads/receipt.png",
			MIMEType:   "image/png",
			SizeBytes:  512,
			UploadDate: time.Now().UTC(),
		}
		require.NoError(t, repo.Create(context.Background(), rec))
		ids = append(ids, rec.ID)
		require.NoError(t, q.Enqueue(context.Background(), Job{
			ReceiptID:   rec.ID,
			Path:        rec.Path,
			SubmittedAt: time.Now().UTC(),
		}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	assert.Equal(t, n, sc.calls)
	for _, id := range ids {
		rec, err := repo.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.NotNil(t, rec.ProcessedAt, "receipt %s should be processed", id)
	}
}

func TestProcessorQueue_EnqueueAfterShutdownIsRejected(t *testing.T) {
	db, err := repository.Open(context.Background(), repository.Config{DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(nil) })
	require.NoError(t, db.Migrate(context.Background()))
	repo := repository.NewReceiptRepository(db, nil)

	sc := &fixedScanner{}
	proc := pipeline.NewProcessor(
		pipeline.New(sc, extract.NewMerchantExtractor(noopClassifier{}, nil), nil),
		repo, nil,
	)
	q := NewProcessorQueue(proc, nil, WithWorkers(1))
	q.Shutdown(context.Background())

	err = q.Enqueue(context.Background(), Job{ReceiptID: uuid.New(), Path: "/x"})
	require.ErrorIs(t, err, ErrQueueClosed)
	assert.Equal(t, 0, sc.calls)
}
