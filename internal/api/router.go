// Package api wires the HTTP handlers into a ServeMux.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/sales-analytics/internal/api/handlers"
	"github.com/dvloznov/sales-analytics/internal/api/middleware"
	"github.com/dvloznov/sales-analytics/internal/metrics"
	"github.com/rs/zerolog"
)

// Routes holds everything the router dispatches to.
type Routes struct {
	Dashboard *handlers.DashboardHandler
	Inventory *handlers.InventoryHandler
	Pipeline  *handlers.PipelineHandler
	Auth      *handlers.AuthHandler
	Reports   *handlers.ReportsHandler
	Sessions  middleware.SessionLookup
	Metrics   *metrics.Metrics
}

// NewRouter registers every endpoint on a new ServeMux.
func NewRouter(rt Routes) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/dashboard-data", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			rt.Dashboard.GetDashboard(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/best-sellers", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			rt.Dashboard.GetBestSellers(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/forecast", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			rt.Dashboard.GetForecast(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/inventory", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			rt.Inventory.ListInventory(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/inventory/restock", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			rt.Inventory.Restock(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/pipeline/status", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			rt.Pipeline.GetStatus(w, r)
		case http.MethodPost:
			rt.Pipeline.SetStatus(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			rt.Auth.Login(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	requireToken := middleware.RequireToken(rt.Sessions)

	mux.Handle("/api/logout", requireToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			rt.Auth.Logout(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})))

	mux.Handle("/api/reports", requireToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			rt.Reports.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})))

	mux.Handle("/api/reports/export", requireToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			rt.Reports.Export(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})))

	mux.Handle("/api/reports/", requireToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		rest := strings.TrimPrefix(r.URL.Path, "/api/reports/")
		jobID, download := strings.CutSuffix(rest, "/download")
		if jobID == "" || strings.Contains(jobID, "/") {
			middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
			return
		}
		if download {
			rt.Reports.Download(w, r, jobID)
			return
		}
		rt.Reports.GetJob(w, r, jobID)
	})))

	mux.Handle("/metrics", rt.Metrics.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return mux
}

// Wrap applies the standard middleware chain around h.
func Wrap(h http.Handler, m *metrics.Metrics, log zerolog.Logger) http.Handler {
	return middleware.Recovery(log)(
		middleware.Metrics(m)(
			middleware.Logger(log)(
				middleware.RequestID(
					middleware.CORS(h),
				),
			),
		),
	)
}
