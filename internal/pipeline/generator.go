package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/dvloznov/sales-analytics/internal/analytics"
	"github.com/dvloznov/sales-analytics/internal/config"
	"github.com/dvloznov/sales-analytics/internal/domain"
	"github.com/dvloznov/sales-analytics/internal/metrics"
	"github.com/rs/zerolog"
)

// Sink is where generated transactions go.
type Sink interface {
	AppendTransaction(ctx context.Context, tx domain.Transaction) error
	LatestTransactionID(ctx context.Context) (int64, error)
}

// Switch tells the generator whether to produce.
type Switch interface {
	Get(ctx context.Context) bool
}

// Generator produces synthetic sales on a fixed cadence.
type Generator struct {
	cfg     config.GeneratorConfig
	sink    Sink
	flag    Switch
	metrics *metrics.Metrics
	log     zerolog.Logger

	mu     sync.Mutex
	rng    *rand.Rand
	now    func() time.Time
	nextID int64
	primed bool
}

// Option customizes a Generator.
type Option func(*Generator)

// WithRand makes generation deterministic.
func WithRand(rng *rand.Rand) Option {
	return func(g *Generator) { g.rng = rng }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// NewGenerator creates a Generator. m may be nil.
func NewGenerator(cfg config.GeneratorConfig, sink Sink, flag Switch, m *metrics.Metrics, log zerolog.Logger, opts ...Option) *Generator {
	g := &Generator{
		cfg:     cfg,
		sink:    sink,
		flag:    flag,
		metrics: m,
		log:     log,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Synthesize draws one transaction at ts. The id is left zero.
func (g *Generator) Synthesize(ts time.Time) domain.Transaction {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.synthesize(ts)
}

func (g *Generator) synthesize(ts time.Time) domain.Transaction {
	c := g.cfg
	qty := int64(c.MinQuantity + g.rng.Intn(c.MaxQuantity-c.MinQuantity+1))
	price := analytics.Round2(c.MinPrice + g.rng.Float64()*(c.MaxPrice-c.MinPrice))
	rate := c.MinCostRate + g.rng.Float64()*(c.MaxCostRate-c.MinCostRate)
	cost := analytics.Round2(price * rate)

	return domain.Transaction{
		Timestamp:    ts,
		ProductID:    c.Catalog[g.rng.Intn(len(c.Catalog))],
		Quantity:     qty,
		PricePerUnit: price,
		CostPerUnit:  cost,
		TotalPrice:   analytics.Round2(float64(qty) * price),
		TotalCost:    analytics.Round2(float64(qty) * cost),
		Region:       c.Regions[g.rng.Intn(len(c.Regions))],
		Channel:      c.Channels[g.rng.Intn(len(c.Channels))],
	}
}

// prime resumes id assignment after the highest stored id. Callers hold g.mu.
func (g *Generator) prime(ctx context.Context) error {
	if g.primed {
		return nil
	}
	latest, err := g.sink.LatestTransactionID(ctx)
	if err != nil {
		return fmt.Errorf("prime: %w", err)
	}
	g.nextID = latest + 1
	g.primed = true
	return nil
}

// append writes one transaction at ts with the next id. Callers hold g.mu.
func (g *Generator) append(ctx context.Context, ts time.Time) (domain.Transaction, error) {
	tx := g.synthesize(ts)
	tx.TransactionID = g.nextID

	if err := g.sink.AppendTransaction(ctx, tx); err != nil {
		g.metrics.TransactionFailed()
		return domain.Transaction{}, err
	}
	g.nextID++
	g.metrics.TransactionGenerated()
	return tx, nil
}

// Step writes a single transaction stamped now, regardless of the flag.
func (g *Generator) Step(ctx context.Context) (domain.Transaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.prime(ctx); err != nil {
		return domain.Transaction{}, fmt.Errorf("Step: %w", err)
	}
	tx, err := g.append(ctx, g.now())
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("Step: %w", err)
	}
	return tx, nil
}

// Seed fills an empty store with n transactions spaced SeedStep apart and
// ending now. It writes nothing when the store already holds transactions.
func (g *Generator) Seed(ctx context.Context, n int) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.prime(ctx); err != nil {
		return 0, fmt.Errorf("Seed: %w", err)
	}
	if g.nextID > 1 {
		return 0, nil
	}

	end := g.now()
	written := 0
	for i := 0; i < n; i++ {
		ts := end.Add(-time.Duration(n-1-i) * g.cfg.SeedStep)
		if _, err := g.append(ctx, ts); err != nil {
			return written, fmt.Errorf("Seed: record %d: %w", i, err)
		}
		written++
	}

	g.log.Info().Int("count", written).Msg("Seeded empty sales table")
	return written, nil
}

// Run produces one transaction per Interval while the flag is active and
// polls every PausePoll while it is not. It returns when ctx is done.
func (g *Generator) Run(ctx context.Context) error {
	g.log.Info().
		Dur("interval", g.cfg.Interval).
		Dur("pause_poll", g.cfg.PausePoll).
		Msg("Transaction generator started")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			g.log.Info().Msg("Transaction generator stopped")
			return nil
		case <-timer.C:
		}

		wait := g.cfg.Interval
		if g.flag.Get(ctx) {
			tx, err := g.Step(ctx)
			if err != nil {
				g.log.Error().Err(err).Msg("Failed to write synthetic transaction")
			} else {
				g.log.Debug().
					Int64("transaction_id", tx.TransactionID).
					Str("product_id", tx.ProductID).
					Float64("total_price", tx.TotalPrice).
					Msg("Synthetic transaction written")
			}
		} else {
			g.metrics.GeneratorPaused()
			wait = g.cfg.PausePoll
		}
		timer.Reset(wait)
	}
}
