package analytics

import (
	"time"

	"github.com/dvloznov/sales-analytics/internal/domain"
)

// Pipeline liveness labels.
const (
	PipelineActive   = "Active"
	PipelineInactive = "Inactive"
)

// Liveness labels the generator pipeline. A stored status flag decides when
// one exists (found). Otherwise the pipeline counts as active while the newest
// transaction is younger than threshold.
func Liveness(status domain.PipelineStatus, found bool, txs []domain.Transaction, now time.Time, threshold time.Duration) string {
	if found {
		if status.Active {
			return PipelineActive
		}
		return PipelineInactive
	}

	var newest time.Time
	for _, tx := range txs {
		if tx.Timestamp.After(newest) {
			newest = tx.Timestamp
		}
	}
	if newest.IsZero() {
		return PipelineInactive
	}
	if now.Sub(newest) < threshold {
		return PipelineActive
	}
	return PipelineInactive
}
