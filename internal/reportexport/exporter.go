// Package reportexport turns export jobs into dashboard snapshots stored in
// Cloud Storage.
package reportexport

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/dvloznov/sales-analytics/internal/gcsuploader"
	"github.com/dvloznov/sales-analytics/internal/jobs"
	"github.com/dvloznov/sales-analytics/internal/metrics"
	"github.com/dvloznov/sales-analytics/internal/reporting"
	"github.com/rs/zerolog"
)

// DashboardSource builds the dashboard being exported.
type DashboardSource interface {
	Dashboard(ctx context.Context) (reporting.Dashboard, error)
}

// Report is the exported document.
type Report struct {
	JobID       string              `json:"job_id"`
	RequestedBy string              `json:"requested_by,omitempty"`
	ExportedAt  time.Time           `json:"exported_at"`
	Dashboard   reporting.Dashboard `json:"dashboard"`
}

// Exporter is a jobs.JobHandler for export jobs.
type Exporter struct {
	source  DashboardSource
	objects gcsuploader.ObjectStore
	prefix  string
	metrics *metrics.Metrics
	now     func() time.Time
	log     zerolog.Logger
}

// NewExporter creates an Exporter writing under prefix. m may be nil.
func NewExporter(source DashboardSource, objects gcsuploader.ObjectStore, prefix string, m *metrics.Metrics, log zerolog.Logger) *Exporter {
	return &Exporter{
		source:  source,
		objects: objects,
		prefix:  prefix,
		metrics: m,
		now:     time.Now,
		log:     log,
	}
}

// ObjectName is prefix/YYYY/MM/DD/<jobID>.json.
func ObjectName(prefix string, at time.Time, jobID string) string {
	return path.Join(prefix, at.UTC().Format("2006/01/02"), jobID+".json")
}

// Handle exports one job. It matches jobs.JobHandler.
func (e *Exporter) Handle(ctx context.Context, job jobs.Job) error {
	export, ok := job.(*jobs.ExportReportJob)
	if !ok {
		return fmt.Errorf("Handle: unexpected job type: %T", job)
	}

	if err := e.export(ctx, export); err != nil {
		e.metrics.ReportExported(string(jobs.JobStatusFailed))
		e.log.Error().Err(err).Str("job_id", export.JobID).Msg("Report export failed")
		return err
	}

	e.metrics.ReportExported(string(jobs.JobStatusCompleted))
	e.log.Info().
		Str("job_id", export.JobID).
		Str("gcs_uri", export.GCSURI).
		Msg("Report exported")
	return nil
}

func (e *Exporter) export(ctx context.Context, job *jobs.ExportReportJob) error {
	dashboard, err := e.source.Dashboard(ctx)
	if err != nil {
		return fmt.Errorf("export: build dashboard: %w", err)
	}

	now := e.now()
	data, err := json.MarshalIndent(Report{
		JobID:       job.JobID,
		RequestedBy: job.RequestedBy,
		ExportedAt:  now,
		Dashboard:   dashboard,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("export: marshal report: %w", err)
	}

	if job.ObjectName == "" {
		job.ObjectName = ObjectName(e.prefix, now, job.JobID)
	}

	uri, err := e.objects.UploadBytes(ctx, job.Bucket, job.ObjectName, "application/json", data)
	if err != nil {
		return fmt.Errorf("export: upload: %w", err)
	}
	job.GCSURI = uri
	return nil
}
