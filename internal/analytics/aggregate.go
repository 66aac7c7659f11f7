// Package analytics holds the pure aggregation functions behind the dashboard.
// None of them touch the store; they take an already fetched transaction set.
package analytics

import (
	"sort"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/sales-analytics/internal/domain"
	"github.com/shopspring/decimal"
)

// KPIs are the headline numbers of the dashboard.
type KPIs struct {
	TotalRevenue float64 `json:"total_revenue"`
	TotalCost    float64 `json:"total_cost"`
	GrossProfit  float64 `json:"gross_profit"`
	ProfitMargin float64 `json:"profit_margin"`
	Transactions int     `json:"transactions"`
	UnitsSold    int64   `json:"units_sold"`
}

// TrendPoint is one calendar day of the revenue trend.
type TrendPoint struct {
	Date    civil.Date `json:"Date"`
	Revenue float64    `json:"Revenue"`
	Profit  float64    `json:"Profit"`
}

// ChannelTotal is revenue per sales channel.
type ChannelTotal struct {
	Channel    string  `json:"Channel"`
	TotalPrice float64 `json:"TotalPrice"`
}

// RegionTotal is revenue per region.
type RegionTotal struct {
	Region     string  `json:"Region"`
	TotalPrice float64 `json:"TotalPrice"`
}

// ProductStat is the per-product summary.
type ProductStat struct {
	ProductID   string  `json:"ProductID"`
	TotalSales  float64 `json:"TotalSales"`
	TotalProfit float64 `json:"Totalprofit"`
	UnitsSold   int64   `json:"UnitsSold"`
	Margin      float64 `json:"Margin"`
}

// ComputeKPIs sums revenue and cost over txs.
func ComputeKPIs(txs []domain.Transaction) KPIs {
	revenue, cost := decimal.Zero, decimal.Zero
	var units int64
	for _, tx := range txs {
		revenue = revenue.Add(money(tx.TotalPrice))
		cost = cost.Add(money(tx.TotalCost))
		units += tx.Quantity
	}
	profit := revenue.Sub(cost)

	return KPIs{
		TotalRevenue: revenue.InexactFloat64(),
		TotalCost:    cost.InexactFloat64(),
		GrossProfit:  profit.InexactFloat64(),
		ProfitMargin: percentOf(profit, revenue),
		Transactions: len(txs),
		UnitsSold:    units,
	}
}

// DailyTrend buckets txs by the calendar date of their timestamp, taken in
// the timestamp's own location. Points are ascending by date.
func DailyTrend(txs []domain.Transaction) []TrendPoint {
	type bucket struct{ revenue, cost decimal.Decimal }
	buckets := make(map[civil.Date]*bucket)

	for _, tx := range txs {
		day := civil.DateOf(tx.Timestamp)
		b, ok := buckets[day]
		if !ok {
			b = &bucket{revenue: decimal.Zero, cost: decimal.Zero}
			buckets[day] = b
		}
		b.revenue = b.revenue.Add(money(tx.TotalPrice))
		b.cost = b.cost.Add(money(tx.TotalCost))
	}

	out := make([]TrendPoint, 0, len(buckets))
	for day, b := range buckets {
		out = append(out, TrendPoint{
			Date:    day,
			Revenue: b.revenue.InexactFloat64(),
			Profit:  b.revenue.Sub(b.cost).InexactFloat64(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// sumBy totals revenue per key, returned in ascending key order.
func sumBy(txs []domain.Transaction, key func(domain.Transaction) string) ([]string, map[string]decimal.Decimal) {
	sums := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		k := key(tx)
		sums[k] = sums[k].Add(money(tx.TotalPrice))
	}
	keys := make([]string, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, sums
}

// ChannelBreakdown sums revenue per channel.
func ChannelBreakdown(txs []domain.Transaction) []ChannelTotal {
	keys, sums := sumBy(txs, func(tx domain.Transaction) string { return tx.Channel })
	out := make([]ChannelTotal, len(keys))
	for i, k := range keys {
		out[i] = ChannelTotal{Channel: k, TotalPrice: sums[k].InexactFloat64()}
	}
	return out
}

// RegionBreakdown sums revenue per region.
func RegionBreakdown(txs []domain.Transaction) []RegionTotal {
	keys, sums := sumBy(txs, func(tx domain.Transaction) string { return tx.Region })
	out := make([]RegionTotal, len(keys))
	for i, k := range keys {
		out[i] = RegionTotal{Region: k, TotalPrice: sums[k].InexactFloat64()}
	}
	return out
}

// ProductStats summarizes each product, highest revenue first with ties
// broken by product id.
func ProductStats(txs []domain.Transaction) []ProductStat {
	type acc struct {
		revenue, cost decimal.Decimal
		units         int64
	}
	accs := make(map[string]*acc)
	for _, tx := range txs {
		a, ok := accs[tx.ProductID]
		if !ok {
			a = &acc{revenue: decimal.Zero, cost: decimal.Zero}
			accs[tx.ProductID] = a
		}
		a.revenue = a.revenue.Add(money(tx.TotalPrice))
		a.cost = a.cost.Add(money(tx.TotalCost))
		a.units += tx.Quantity
	}

	type ranked struct {
		stat    ProductStat
		revenue decimal.Decimal
	}
	rows := make([]ranked, 0, len(accs))
	for id, a := range accs {
		profit := a.revenue.Sub(a.cost)
		rows = append(rows, ranked{
			stat: ProductStat{
				ProductID:   id,
				TotalSales:  a.revenue.InexactFloat64(),
				TotalProfit: profit.InexactFloat64(),
				UnitsSold:   a.units,
				Margin:      percentOf(profit, a.revenue),
			},
			revenue: a.revenue,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].revenue.Cmp(rows[j].revenue); c != 0 {
			return c > 0
		}
		return rows[i].stat.ProductID < rows[j].stat.ProductID
	})

	out := make([]ProductStat, len(rows))
	for i, r := range rows {
		out[i] = r.stat
	}
	return out
}

// BestSellers returns at most n products ranked as in ProductStats.
func BestSellers(txs []domain.Transaction, n int) []ProductStat {
	stats := ProductStats(txs)
	if n >= 0 && len(stats) > n {
		stats = stats[:n]
	}
	return stats
}
