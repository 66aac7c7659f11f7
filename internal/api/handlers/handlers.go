package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dvloznov/sales-analytics/internal/analytics"
	"github.com/dvloznov/sales-analytics/internal/api/middleware"
	"github.com/dvloznov/sales-analytics/internal/auth"
	"github.com/dvloznov/sales-analytics/internal/domain"
	"github.com/dvloznov/sales-analytics/internal/metrics"
	"github.com/dvloznov/sales-analytics/internal/reporting"
	"github.com/rs/zerolog"
)

// Reporter serves the read-side views.
type Reporter interface {
	Dashboard(ctx context.Context) (reporting.Dashboard, error)
	Inventory(ctx context.Context) []domain.InventoryRow
	BestSellers(ctx context.Context) []analytics.ProductStat
	Forecast(ctx context.Context) ([]analytics.ForecastPoint, error)
}

// Restocker appends to the restock ledger.
type Restocker interface {
	AddRestock(ctx context.Context, productID string, quantity int64) (domain.RestockEntry, error)
}

// PipelineSwitch reads and writes the generator flag.
type PipelineSwitch interface {
	Status(ctx context.Context) (domain.PipelineStatus, bool)
	Set(ctx context.Context, active bool) (domain.PipelineStatus, error)
}

// Authenticator checks demo credentials and ends sessions.
type Authenticator interface {
	Login(username, password string) (auth.Session, error)
	Logout(token string)
}

// DashboardHandler handles the dashboard and its derived views.
type DashboardHandler struct {
	reports Reporter
	log     zerolog.Logger
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(reports Reporter, log zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{
		reports: reports,
		log:     log,
	}
}

// GetDashboard handles GET /api/dashboard-data
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.reports.Dashboard(r.Context())
	if err != nil {
		if !errors.Is(err, reporting.ErrNoData) {
			h.log.Error().Err(err).Msg("Failed to build dashboard")
		}
		middleware.WriteError(w, http.StatusInternalServerError, "No data available")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, dashboard)
}

type bestSeller struct {
	Name      string  `json:"name"`
	Revenue   float64 `json:"revenue"`
	Profit    float64 `json:"profit"`
	UnitsSold int64   `json:"units_sold"`
	Margin    float64 `json:"margin"`
}

// GetBestSellers handles GET /api/best-sellers
func (h *DashboardHandler) GetBestSellers(w http.ResponseWriter, r *http.Request) {
	stats := h.reports.BestSellers(r.Context())

	out := make([]bestSeller, len(stats))
	for i, s := range stats {
		out[i] = bestSeller{
			Name:      s.ProductID,
			Revenue:   s.TotalSales,
			Profit:    s.TotalProfit,
			UnitsSold: s.UnitsSold,
			Margin:    s.Margin,
		}
	}
	middleware.WriteJSON(w, http.StatusOK, out)
}

// GetForecast handles GET /api/forecast
func (h *DashboardHandler) GetForecast(w http.ResponseWriter, r *http.Request) {
	points, err := h.reports.Forecast(r.Context())
	if err != nil {
		if errors.Is(err, reporting.ErrNoData) {
			middleware.WriteJSON(w, http.StatusOK, []analytics.ForecastPoint{})
			return
		}
		h.log.Error().Err(err).Msg("Failed to build forecast")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to build forecast")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, points)
}

// InventoryHandler handles inventory endpoints.
type InventoryHandler struct {
	reports   Reporter
	restocker Restocker
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// NewInventoryHandler creates a new inventory handler. m may be nil.
func NewInventoryHandler(reports Reporter, restocker Restocker, m *metrics.Metrics, log zerolog.Logger) *InventoryHandler {
	return &InventoryHandler{
		reports:   reports,
		restocker: restocker,
		metrics:   m,
		log:       log,
	}
}

// ListInventory handles GET /api/inventory
func (h *InventoryHandler) ListInventory(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.reports.Inventory(r.Context()))
}

// Restock handles POST /api/inventory/restock
func (h *InventoryHandler) Restock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"product_id"`
		Quantity  int64  `json:"quantity"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.metrics.RestockRejected()
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	entry, err := h.restocker.AddRestock(r.Context(), req.ProductID, req.Quantity)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			h.metrics.RestockRejected()
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error().Err(err).Str("product_id", req.ProductID).Msg("Failed to record restock")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to record restock")
		return
	}

	h.metrics.Restocked(entry.ProductID, entry.Quantity)
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// PipelineHandler handles the generator on/off switch.
type PipelineHandler struct {
	flag PipelineSwitch
	log  zerolog.Logger
}

// NewPipelineHandler creates a new pipeline handler.
func NewPipelineHandler(flag PipelineSwitch, log zerolog.Logger) *PipelineHandler {
	return &PipelineHandler{
		flag: flag,
		log:  log,
	}
}

type pipelineResponse struct {
	Active    bool       `json:"active"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// GetStatus handles GET /api/pipeline/status. A flag that was never set
// reports active with a null updated_at.
func (h *PipelineHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, found := h.flag.Status(r.Context())
	if !found {
		middleware.WriteJSON(w, http.StatusOK, pipelineResponse{Active: true})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, pipelineResponse{Active: status.Active, UpdatedAt: &status.UpdatedAt})
}

// SetStatus handles POST /api/pipeline/status
func (h *PipelineHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active *bool `json:"active"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Active == nil {
		middleware.WriteError(w, http.StatusBadRequest, "active is required")
		return
	}

	status, err := h.flag.Set(r.Context(), *req.Active)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to update pipeline status")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update pipeline status")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, pipelineResponse{Active: status.Active, UpdatedAt: &status.UpdatedAt})
}

// AuthHandler handles the demo login.
type AuthHandler struct {
	auth Authenticator
	log  zerolog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(auth Authenticator, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		auth: auth,
		log:  log,
	}
}

// Login handles POST /api/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"message": "Invalid request body",
		})
		return
	}

	session, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		h.log.Warn().Str("username", req.Username).Msg("Rejected login")
		middleware.WriteJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"success": false,
			"message": "Invalid credentials",
		})
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"token":   session.Token,
		"user":    session.User,
	})
}

// Logout handles POST /api/logout. It runs behind RequireToken, so the token
// in the context is a live session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.auth.Logout(middleware.TokenFromContext(r.Context()))
	h.log.Info().Str("user", middleware.UserFromContext(r.Context())).Msg("Session ended")

	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}
