package analytics

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/sales-analytics/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tx(product, region, channel string, day int, qty int64, price, cost float64) domain.Transaction {
	return domain.Transaction{
		Timestamp:    time.Date(2024, 6, day, 10, 0, 0, 0, time.UTC),
		ProductID:    product,
		Quantity:     qty,
		PricePerUnit: price,
		CostPerUnit:  cost,
		TotalPrice:   float64(qty) * price,
		TotalCost:    float64(qty) * cost,
		Region:       region,
		Channel:      channel,
	}
}

func sampleSet() []domain.Transaction {
	return []domain.Transaction{
		tx("Beanie Hat", "North", "Webstore", 1, 2, 10, 6),
		tx("Silk Scarf", "South", "Shop A", 1, 1, 40, 30),
		tx("Beanie Hat", "North", "Shop B", 2, 3, 10, 6),
		tx("Ankle Boots", "East", "Webstore", 3, 1, 120, 70),
	}
}

func TestComputeKPIs(t *testing.T) {
	k := ComputeKPIs(sampleSet())

	assert.InDelta(t, 210.0, k.TotalRevenue, 1e-9)
	assert.InDelta(t, 130.0, k.TotalCost, 1e-9)
	assert.InDelta(t, 80.0, k.GrossProfit, 1e-9)
	assert.InDelta(t, 80.0/210.0*100, k.ProfitMargin, 1e-9)
	assert.Equal(t, 4, k.Transactions)
	assert.Equal(t, int64(7), k.UnitsSold)
}

func TestComputeKPIs_ZeroRevenue(t *testing.T) {
	for name, txs := range map[string][]domain.Transaction{
		"empty":     nil,
		"free item": {tx("Gift", "North", "Webstore", 1, 1, 0, 0)},
	} {
		t.Run(name, func(t *testing.T) {
			k := ComputeKPIs(txs)
			assert.Equal(t, 0.0, k.ProfitMargin)
			assert.False(t, math.IsNaN(k.ProfitMargin) || math.IsInf(k.ProfitMargin, 0))
		})
	}
}

func TestComputeKPIs_NonFiniteInputIgnored(t *testing.T) {
	bad := tx("Beanie Hat", "North", "Webstore", 1, 1, 10, 6)
	bad.TotalPrice = math.NaN()
	bad.TotalCost = math.Inf(1)

	k := ComputeKPIs([]domain.Transaction{bad})
	assert.Equal(t, 0.0, k.TotalRevenue)
	assert.Equal(t, 0.0, k.ProfitMargin)
}

func TestDailyTrend(t *testing.T) {
	trend := DailyTrend(sampleSet())
	require.Len(t, trend, 3)

	assert.Equal(t, civil.Date{Year: 2024, Month: time.June, Day: 1}, trend[0].Date)
	assert.InDelta(t, 60.0, trend[0].Revenue, 1e-9)
	assert.InDelta(t, 60.0-42.0, trend[0].Profit, 1e-9)

	assert.Equal(t, 2, trend[1].Date.Day)
	assert.InDelta(t, 30.0, trend[1].Revenue, 1e-9)
	assert.InDelta(t, 12.0, trend[1].Profit, 1e-9)

	assert.Equal(t, 3, trend[2].Date.Day)
}

func TestDailyTrend_UsesNaiveDate(t *testing.T) {
	// 23:30 at UTC-5 is already the next day in UTC; bucketing keeps the
	// timestamp's own calendar date.
	loc := time.FixedZone("EST", -5*3600)
	late := domain.Transaction{
		Timestamp:  time.Date(2024, 6, 1, 23, 30, 0, 0, loc),
		ProductID:  "Beanie Hat",
		Quantity:   1,
		TotalPrice: 10,
	}

	trend := DailyTrend([]domain.Transaction{late})
	require.Len(t, trend, 1)
	assert.Equal(t, 1, trend[0].Date.Day)
}

func TestBreakdowns(t *testing.T) {
	channels := ChannelBreakdown(sampleSet())
	require.Len(t, channels, 3)
	assert.Equal(t, ChannelTotal{Channel: "Shop A", TotalPrice: 40}, channels[0])
	assert.Equal(t, ChannelTotal{Channel: "Shop B", TotalPrice: 30}, channels[1])
	assert.Equal(t, ChannelTotal{Channel: "Webstore", TotalPrice: 140}, channels[2])

	regions := RegionBreakdown(sampleSet())
	require.Len(t, regions, 3)
	assert.Equal(t, "East", regions[0].Region)
	assert.InDelta(t, 50.0, regions[1].TotalPrice, 1e-9)
}

func TestProductStats(t *testing.T) {
	stats := ProductStats(sampleSet())
	require.Len(t, stats, 3)

	assert.Equal(t, "Ankle Boots", stats[0].ProductID)
	assert.Equal(t, "Beanie Hat", stats[1].ProductID)
	assert.InDelta(t, 50.0, stats[1].TotalSales, 1e-9)
	assert.InDelta(t, 20.0, stats[1].TotalProfit, 1e-9)
	assert.InDelta(t, 40.0, stats[1].Margin, 1e-9)
	assert.Equal(t, int64(5), stats[1].UnitsSold)
}

// Revenue partitions: every breakdown must sum back to the KPI total.
func TestPartitionSums(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	products := []string{"A", "B", "C", "D", "E", "F", "G"}
	regions := []string{"North", "South", "East", "West", "Central"}
	channels := []string{"Webstore", "Shop A", "Shop B"}

	for round := 0; round < 20; round++ {
		var txs []domain.Transaction
		n := rng.Intn(300)
		for i := 0; i < n; i++ {
			price := Round2(10 + rng.Float64()*490)
			txs = append(txs, tx(
				products[rng.Intn(len(products))],
				regions[rng.Intn(len(regions))],
				channels[rng.Intn(len(channels))],
				1+rng.Intn(28),
				int64(1+rng.Intn(9)),
				price,
				Round2(price*0.6),
			))
		}

		total := ComputeKPIs(txs).TotalRevenue

		var byProduct, byRegion, byChannel, byDay float64
		for _, s := range ProductStats(txs) {
			byProduct += s.TotalSales
			assert.False(t, math.IsNaN(s.Margin) || math.IsInf(s.Margin, 0))
		}
		for _, r := range RegionBreakdown(txs) {
			byRegion += r.TotalPrice
		}
		for _, c := range ChannelBreakdown(txs) {
			byChannel += c.TotalPrice
		}
		for _, p := range DailyTrend(txs) {
			byDay += p.Revenue
		}

		assert.InDelta(t, total, byProduct, 1e-6)
		assert.InDelta(t, total, byRegion, 1e-6)
		assert.InDelta(t, total, byChannel, 1e-6)
		assert.InDelta(t, total, byDay, 1e-6)
	}
}

func TestProductStats_ZeroRevenueMargin(t *testing.T) {
	stats := ProductStats([]domain.Transaction{tx("Gift", "North", "Webstore", 1, 2, 0, 0)})
	require.Len(t, stats, 1)
	assert.Equal(t, 0.0, stats[0].Margin)
}

func TestBestSellers(t *testing.T) {
	var txs []domain.Transaction
	// Seven products; "B" and "C" tie on revenue.
	for _, p := range []struct {
		id    string
		price float64
	}{{"A", 100}, {"C", 80}, {"B", 80}, {"D", 60}, {"E", 40}, {"F", 20}, {"G", 10}} {
		txs = append(txs, tx(p.id, "North", "Webstore", 1, 1, p.price, 1))
	}

	best := BestSellers(txs, 5)
	require.Len(t, best, 5)

	ids := make([]string, len(best))
	for i, b := range best {
		ids[i] = b.ProductID
	}
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, ids)

	for i := 1; i < len(best); i++ {
		assert.GreaterOrEqual(t, best[i-1].TotalSales, best[i].TotalSales)
	}
}

func TestBestSellers_FewerThanN(t *testing.T) {
	assert.Len(t, BestSellers(sampleSet(), 5), 3)
	assert.Empty(t, BestSellers(nil, 5))
}

func TestLiveness(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	fresh := []domain.Transaction{{Timestamp: now.Add(-10 * time.Second)}}
	stale := []domain.Transaction{{Timestamp: now.Add(-time.Minute)}}

	tests := []struct {
		name   string
		status domain.PipelineStatus
		found  bool
		txs    []domain.Transaction
		want   string
	}{
		{"flag active beats stale data", domain.PipelineStatus{Active: true}, true, stale, PipelineActive},
		{"flag paused beats fresh data", domain.PipelineStatus{Active: false}, true, fresh, PipelineInactive},
		{"no flag, fresh data", domain.PipelineStatus{}, false, fresh, PipelineActive},
		{"no flag, stale data", domain.PipelineStatus{}, false, stale, PipelineInactive},
		{"no flag, no data", domain.PipelineStatus{}, false, nil, PipelineInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Liveness(tt.status, tt.found, tt.txs, now, 30*time.Second))
		})
	}
}

func TestForecast(t *testing.T) {
	var trend []TrendPoint
	for d := 1; d <= 10; d++ {
		trend = append(trend, TrendPoint{
			Date:    civil.Date{Year: 2024, Month: time.June, Day: d},
			Revenue: float64(d * 100),
		})
	}

	points := Forecast(trend, 7, 3, 0.02)
	require.Len(t, points, 3)

	// Mean of days 4..10 is 700.
	assert.Equal(t, civil.Date{Year: 2024, Month: time.June, Day: 11}, points[0].Date)
	assert.InDelta(t, 714.0, points[0].Revenue, 1e-9)
	assert.InDelta(t, 728.0, points[1].Revenue, 1e-9)
	assert.InDelta(t, 742.0, points[2].Revenue, 1e-9)
	assert.Equal(t, 13, points[2].Date.Day)
}

func TestForecast_ShortOrEmptyTrend(t *testing.T) {
	assert.Nil(t, Forecast(nil, 7, 3, 0.02))

	short := []TrendPoint{{Date: civil.Date{Year: 2024, Month: time.June, Day: 1}, Revenue: 50}}
	points := Forecast(short, 7, 1, 0)
	require.Len(t, points, 1)
	assert.InDelta(t, 50.0, points[0].Revenue, 1e-9)
}
