package reportexport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dvloznov/sales-analytics/internal/analytics"
	"github.com/dvloznov/sales-analytics/internal/gcsuploader"
	"github.com/dvloznov/sales-analytics/internal/jobs"
	"github.com/dvloznov/sales-analytics/internal/logger"
	"github.com/dvloznov/sales-analytics/internal/metrics"
	"github.com/dvloznov/sales-analytics/internal/reporting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockObjectStore is a mock implementation of gcsuploader.ObjectStore.
type MockObjectStore struct {
	UploadBytesFunc func(ctx context.Context, bucket, object, contentType string, data []byte) (string, error)
	objects         map[string][]byte
}

func (m *MockObjectStore) UploadBytes(ctx context.Context, bucket, object, contentType string, data []byte) (string, error) {
	if m.UploadBytesFunc != nil {
		return m.UploadBytesFunc(ctx, bucket, object, contentType, data)
	}
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	uri := gcsuploader.GCSURI(bucket, object)
	m.objects[uri] = data
	return uri, nil
}

func (m *MockObjectStore) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	data, ok := m.objects[gcsURI]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

type dashboardFunc func(ctx context.Context) (reporting.Dashboard, error)

func (f dashboardFunc) Dashboard(ctx context.Context) (reporting.Dashboard, error) { return f(ctx) }

func sampleDashboard(ctx context.Context) (reporting.Dashboard, error) {
	return reporting.Dashboard{
		KPI: reporting.KPIBlock{
			KPIs:           analytics.KPIs{TotalRevenue: 120.5},
			PipelineStatus: analytics.PipelineActive,
		},
	}, nil
}

func TestObjectName(t *testing.T) {
	at := time.Date(2024, 5, 7, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "reports/2024/05/07/abc.json", ObjectName("reports", at, "abc"))
	assert.Equal(t, "2024/05/07/abc.json", ObjectName("", at, "abc"))
}

func TestHandle_UploadsReport(t *testing.T) {
	objects := &MockObjectStore{}
	e := NewExporter(dashboardFunc(sampleDashboard), objects, "reports", metrics.New(), logger.NewWithWriter(io.Discard))
	e.now = func() time.Time { return time.Date(2024, 5, 7, 10, 0, 0, 0, time.UTC) }

	job := &jobs.ExportReportJob{JobID: "job-1", RequestedBy: "admin", Bucket: "sales-reports"}
	require.NoError(t, e.Handle(context.Background(), job))

	assert.Equal(t, "reports/2024/05/07/job-1.json", job.ObjectName)
	assert.Equal(t, "gs://sales-reports/reports/2024/05/07/job-1.json", job.GCSURI)

	data, err := objects.FetchFromGCS(context.Background(), job.GCSURI)
	require.NoError(t, err)

	var report Report
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, "job-1", report.JobID)
	assert.Equal(t, "admin", report.RequestedBy)
	assert.Equal(t, 120.5, report.Dashboard.KPI.TotalRevenue)
}

func TestHandle_Failures(t *testing.T) {
	tests := []struct {
		name    string
		source  DashboardSource
		objects *MockObjectStore
		job     jobs.Job
	}{
		{
			name: "no data",
			source: dashboardFunc(func(ctx context.Context) (reporting.Dashboard, error) {
				return reporting.Dashboard{}, reporting.ErrNoData
			}),
			objects: &MockObjectStore{},
			job:     &jobs.ExportReportJob{JobID: "j", Bucket: "b"},
		},
		{
			name:   "upload refused",
			source: dashboardFunc(sampleDashboard),
			objects: &MockObjectStore{
				UploadBytesFunc: func(ctx context.Context, bucket, object, contentType string, data []byte) (string, error) {
					return "", errors.New("permission denied")
				},
			},
			job: &jobs.ExportReportJob{JobID: "j", Bucket: "b"},
		},
		{
			name:    "wrong job type",
			source:  dashboardFunc(sampleDashboard),
			objects: &MockObjectStore{},
			job:     otherJob{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExporter(tt.source, tt.objects, "reports", nil, logger.NewWithWriter(io.Discard))
			assert.Error(t, e.Handle(context.Background(), tt.job))
			assert.Empty(t, tt.objects.objects)
		})
	}
}

type otherJob struct{}

func (otherJob) GetID() string             { return "other" }
func (otherJob) GetType() jobs.JobType     { return "other" }
func (otherJob) GetStatus() jobs.JobStatus { return jobs.JobStatusPending }

func TestHandle_CountsOutcomes(t *testing.T) {
	m := metrics.New()
	ok := NewExporter(dashboardFunc(sampleDashboard), &MockObjectStore{}, "reports", m, logger.NewWithWriter(io.Discard))
	refused := NewExporter(dashboardFunc(sampleDashboard), &MockObjectStore{
		UploadBytesFunc: func(ctx context.Context, bucket, object, contentType string, data []byte) (string, error) {
			return "", errors.New("permission denied")
		},
	}, "reports", m, logger.NewWithWriter(io.Discard))

	require.NoError(t, ok.Handle(context.Background(), &jobs.ExportReportJob{JobID: "a", Bucket: "b"}))
	require.Error(t, refused.Handle(context.Background(), &jobs.ExportReportJob{JobID: "c", Bucket: "b"}))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	assert.Contains(t, body, `report_exports_total{outcome="completed"} 1`)
	assert.Contains(t, body, `report_exports_total{outcome="failed"} 1`)
}
