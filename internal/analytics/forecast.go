package analytics

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// ForecastPoint is a projected day of revenue.
type ForecastPoint struct {
	Date    civil.Date `json:"date"`
	Revenue float64    `json:"revenue"`
}

// Forecast projects horizon days past the last trend point. The base is the
// mean revenue of the last window points; day i is base × (1 + i × growth).
func Forecast(trend []TrendPoint, window, horizon int, growth float64) []ForecastPoint {
	if len(trend) == 0 || window <= 0 || horizon <= 0 {
		return nil
	}
	if window > len(trend) {
		window = len(trend)
	}

	recent := trend[len(trend)-window:]
	sum := decimal.Zero
	for _, p := range recent {
		sum = sum.Add(money(p.Revenue))
	}
	avg := sum.Div(decimal.NewFromInt(int64(window)))

	last := trend[len(trend)-1].Date
	rate := money(growth)
	out := make([]ForecastPoint, horizon)
	for i := 1; i <= horizon; i++ {
		factor := decimal.NewFromInt(1).Add(rate.Mul(decimal.NewFromInt(int64(i))))
		out[i-1] = ForecastPoint{
			Date:    last.AddDays(i),
			Revenue: avg.Mul(factor).Round(2).InexactFloat64(),
		}
	}
	return out
}
