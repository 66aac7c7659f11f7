package pipeline_test

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/sales-analytics/internal/config"
	"github.com/dvloznov/sales-analytics/internal/domain"
	"github.com/dvloznov/sales-analytics/internal/logger"
	"github.com/dvloznov/sales-analytics/internal/metrics"
	"github.com/dvloznov/sales-analytics/internal/pipeline"
	"github.com/dvloznov/sales-analytics/internal/salesdata"
	"github.com/dvloznov/sales-analytics/internal/store"
	"github.com/dvloznov/sales-analytics/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockStatusStore is a mock implementation of pipeline.StatusStore.
type MockStatusStore struct {
	LoadFunc func(ctx context.Context) (domain.PipelineStatus, bool, error)
	SaveFunc func(ctx context.Context, s domain.PipelineStatus) error
}

func (m *MockStatusStore) LoadPipelineStatus(ctx context.Context) (domain.PipelineStatus, bool, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx)
	}
	return domain.PipelineStatus{}, false, nil
}

func (m *MockStatusStore) SavePipelineStatus(ctx context.Context, s domain.PipelineStatus) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, s)
	}
	return nil
}

// MockSink is a mock implementation of pipeline.Sink.
type MockSink struct {
	mu       sync.Mutex
	Appended []domain.Transaction

	AppendFunc   func(ctx context.Context, tx domain.Transaction) error
	LatestIDFunc func(ctx context.Context) (int64, error)
}

func (m *MockSink) AppendTransaction(ctx context.Context, tx domain.Transaction) error {
	if m.AppendFunc != nil {
		if err := m.AppendFunc(ctx, tx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Appended = append(m.Appended, tx)
	return nil
}

func (m *MockSink) LatestTransactionID(ctx context.Context) (int64, error) {
	if m.LatestIDFunc != nil {
		return m.LatestIDFunc(ctx)
	}
	return 0, nil
}

func (m *MockSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Appended)
}

type fixedSwitch bool

func (s fixedSwitch) Get(ctx context.Context) bool { return bool(s) }

func newRepo() *salesdata.Repository {
	return salesdata.NewRepository(memory.New(), config.Default().Data, logger.NewWithWriter(io.Discard))
}

func newGenerator(sink pipeline.Sink, flag pipeline.Switch, opts ...pipeline.Option) *pipeline.Generator {
	cfg := config.Default().Generator
	cfg.Interval = 5 * time.Millisecond
	cfg.PausePoll = 5 * time.Millisecond
	opts = append([]pipeline.Option{pipeline.WithRand(rand.New(rand.NewSource(42)))}, opts...)
	return pipeline.NewGenerator(cfg, sink, flag, metrics.New(), logger.NewWithWriter(io.Discard), opts...)
}

func TestStatusFlag_DefaultsToActive(t *testing.T) {
	tests := []struct {
		name  string
		store *MockStatusStore
	}{
		{"never set", &MockStatusStore{}},
		{"store unreadable", &MockStatusStore{
			LoadFunc: func(ctx context.Context) (domain.PipelineStatus, bool, error) {
				return domain.PipelineStatus{}, false, errors.New("store down")
			},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := pipeline.NewStatusFlag(tt.store, logger.NewWithWriter(io.Discard))
			assert.True(t, flag.Get(context.Background()))
			_, found := flag.Status(context.Background())
			assert.False(t, found)
		})
	}
}

func TestStatusFlag_SetThenGet(t *testing.T) {
	ctx := context.Background()
	flag := pipeline.NewStatusFlag(newRepo(), logger.NewWithWriter(io.Discard))

	off, err := flag.Set(ctx, false)
	require.NoError(t, err)
	assert.False(t, off.Active)
	assert.False(t, flag.Get(ctx))

	on, err := flag.Set(ctx, true)
	require.NoError(t, err)
	assert.True(t, flag.Get(ctx))
	assert.True(t, on.UpdatedAt.After(off.UpdatedAt), "updated_at must advance")

	status, found := flag.Status(ctx)
	require.True(t, found)
	assert.True(t, status.Active)
}

func TestStatusFlag_UpdatedAtNeverMovesBackwards(t *testing.T) {
	ctx := context.Background()
	future := time.Now().Add(time.Hour)
	repo := newRepo()
	require.NoError(t, repo.SavePipelineStatus(ctx, domain.PipelineStatus{Active: true, UpdatedAt: future}))

	flag := pipeline.NewStatusFlag(repo, logger.NewWithWriter(io.Discard))
	status, err := flag.Set(ctx, false)
	require.NoError(t, err)
	assert.True(t, status.UpdatedAt.After(future))
}

func TestStatusFlag_SetFailure(t *testing.T) {
	store := &MockStatusStore{
		SaveFunc: func(ctx context.Context, s domain.PipelineStatus) error {
			return errors.New("write refused")
		},
	}
	flag := pipeline.NewStatusFlag(store, logger.NewWithWriter(io.Discard))

	_, err := flag.Set(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "StatusFlag.Set")
}

func TestSynthesize_WithinConfiguredRanges(t *testing.T) {
	cfg := config.Default().Generator
	gen := newGenerator(&MockSink{}, fixedSwitch(true))
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 500; i++ {
		tx := gen.Synthesize(ts)
		assert.Equal(t, ts, tx.Timestamp)
		assert.Contains(t, cfg.Catalog, tx.ProductID)
		assert.Contains(t, cfg.Regions, tx.Region)
		assert.Contains(t, cfg.Channels, tx.Channel)
		assert.GreaterOrEqual(t, tx.Quantity, int64(cfg.MinQuantity))
		assert.LessOrEqual(t, tx.Quantity, int64(cfg.MaxQuantity))
		assert.GreaterOrEqual(t, tx.PricePerUnit, cfg.MinPrice)
		assert.LessOrEqual(t, tx.PricePerUnit, cfg.MaxPrice)
		assert.LessOrEqual(t, tx.CostPerUnit, tx.PricePerUnit)
		assert.InDelta(t, float64(tx.Quantity)*tx.PricePerUnit, tx.TotalPrice, 0.01)
		assert.InDelta(t, float64(tx.Quantity)*tx.CostPerUnit, tx.TotalCost, 0.01)
	}
}

func TestStep_ResumesAfterLatestID(t *testing.T) {
	sink := &MockSink{
		LatestIDFunc: func(ctx context.Context) (int64, error) { return 41, nil },
	}
	gen := newGenerator(sink, fixedSwitch(true))

	first, err := gen.Step(context.Background())
	require.NoError(t, err)
	second, err := gen.Step(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(42), first.TransactionID)
	assert.Equal(t, int64(43), second.TransactionID)
}

func TestStep_ResumesAfterLegacyID(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	repo := salesdata.NewRepository(s, config.Default().Data, logger.NewWithWriter(io.Discard))
	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(ctx, store.TableSales, store.Record{"transaction_id": int64(3), "timestamp": ts}))
	require.NoError(t, s.Append(ctx, store.TableSales, store.Record{"TransactionID": int64(50), "Timestamp": ts.Add(time.Hour)}))

	gen := newGenerator(repo, fixedSwitch(true))
	tx, err := gen.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(51), tx.TransactionID)
}

func TestStep_FailedAppendDoesNotConsumeID(t *testing.T) {
	fail := true
	sink := &MockSink{
		AppendFunc: func(ctx context.Context, tx domain.Transaction) error {
			if fail {
				return errors.New("insert failed")
			}
			return nil
		},
	}
	gen := newGenerator(sink, fixedSwitch(true))

	_, err := gen.Step(context.Background())
	require.Error(t, err)

	fail = false
	tx, err := gen.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), tx.TransactionID)
}

func TestSeed_EmptyStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)
	repo := newRepo()
	gen := newGenerator(repo, fixedSwitch(true), pipeline.WithClock(func() time.Time { return now }))

	n, err := gen.Seed(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	txs := repo.FetchRecentTransactions(ctx, 0)
	require.Len(t, txs, 10)
	assert.Equal(t, now, txs[0].Timestamp.UTC(), "newest seeded record ends at now")
	assert.Equal(t, now.Add(-9*time.Minute), txs[9].Timestamp.UTC())
	assert.Equal(t, int64(10), txs[0].TransactionID)
}

func TestSeed_SkipsPopulatedStore(t *testing.T) {
	ctx := context.Background()
	repo := newRepo()
	require.NoError(t, repo.AppendTransaction(ctx, domain.Transaction{
		TransactionID: 7, Timestamp: time.Now(), ProductID: "Beanie Hat", Quantity: 1,
		PricePerUnit: 10, TotalPrice: 10, Region: "North", Channel: "Webstore",
	}))

	gen := newGenerator(repo, fixedSwitch(true))
	n, err := gen.Seed(ctx, 50)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, repo.FetchRecentTransactions(ctx, 0), 1)
}

func TestRun_ProducesWhileActiveAndStopsOnCancel(t *testing.T) {
	sink := &MockSink{}
	gen := newGenerator(sink, fixedSwitch(true))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gen.Run(ctx) }()

	require.Eventually(t, func() bool { return sink.count() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_PausedWritesNothing(t *testing.T) {
	sink := &MockSink{}
	gen := newGenerator(sink, fixedSwitch(false))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, gen.Run(ctx))
	assert.Zero(t, sink.count())
}
