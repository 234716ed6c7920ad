package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"oilwatch-backend/internal/engine"
)

// EngineService is the surface the handlers need. Satisfied by
// *service.Service.
type EngineService interface {
	RecomputeHealth(ctx context.Context, equipmentID, oilInstanceID string) (engine.HealthResult, error)
	EquipmentHealth(ctx context.Context, equipmentID string) (*engine.Equipment, error)
	RefreshAlerts(ctx context.Context, equipmentID string) ([]engine.Alert, error)
	EquipmentTrends(ctx context.Context, equipmentID string) (map[string]engine.TrendSeries, error)
	LogEvent(ctx context.Context, equipmentID string, event engine.EquipmentEvent) (engine.HealthResult, error)
	ReplaceOil(ctx context.Context, equipmentID, oilInstanceID, oilType string) (string, engine.HealthResult, error)
}

type Handler struct {
	Service EngineService
	Timeout time.Duration
}

type errorResponse struct {
	Ok      bool   `json:"ok"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type healthResponse struct {
	Ok              bool     `json:"ok"`
	OilInstanceID   string   `json:"oilInstanceId,omitempty"`
	OilHealth       *float64 `json:"oilHealth,omitempty"`
	EquipmentHealth float64  `json:"equipmentHealth"`
	ComputedAt      string   `json:"computedAt"`
}

type alertPayload struct {
	ID            string   `json:"id"`
	EquipmentID   string   `json:"equipmentId"`
	ParameterName string   `json:"parameterName"`
	Severity      string   `json:"severity"`
	Value         float64  `json:"value"`
	Unit          string   `json:"unit"`
	Message       string   `json:"message"`
	Solutions     []string `json:"solutions"`
	CreatedAt     string   `json:"createdAt"`
	DedupeKey     string   `json:"dedupeKey"`
}

type trendDatasetPayload struct {
	ParameterLabel string     `json:"parameterLabel"`
	Unit           string     `json:"unit"`
	Values         []*float64 `json:"values"`
}

type trendSeriesPayload struct {
	CategoryName string                `json:"categoryName"`
	Labels       []string              `json:"labels"`
	Datasets     []trendDatasetPayload `json:"datasets"`
}

type recomputeRequest struct {
	OilInstanceID string `json:"oilInstanceId"`
}

type eventRequest struct {
	Type           string  `json:"type"`
	ImpactOnHealth float64 `json:"impactOnHealth"`
}

type replaceOilRequest struct {
	OilInstanceID string `json:"oilInstanceId"`
	OilType       string `json:"oilType"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/equipment/{id}", func(r chi.Router) {
		r.Get("/health", h.handleGetHealth)
		r.Post("/health/recompute", h.handleRecompute)
		r.Get("/alerts", h.handleAlerts)
		r.Get("/trends", h.handleTrends)
		r.Post("/events", h.handleLogEvent)
		r.Post("/oil/replace", h.handleReplaceOil)
	})
}

func (h *Handler) handleGetHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()
	eq, err := h.Service.EquipmentHealth(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	type instancePayload struct {
		ID               string  `json:"id"`
		OilType          string  `json:"oilType"`
		HealthScore      float64 `json:"healthScore"`
		LastHealthUpdate string  `json:"lastHealthUpdate,omitempty"`
	}
	instances := make([]instancePayload, 0, len(eq.OilInstances))
	for _, instance := range eq.OilInstances {
		payload := instancePayload{ID: instance.ID, OilType: instance.OilTypeID, HealthScore: instance.HealthScore}
		if instance.LastHealthUpdate != nil {
			payload.LastHealthUpdate = instance.LastHealthUpdate.UTC().Format(time.RFC3339)
		}
		instances = append(instances, payload)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":           true,
		"equipmentId":  eq.ID,
		"healthScore":  eq.HealthScore,
		"oilInstances": instances,
	})
}

func (h *Handler) handleRecompute(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()
	var req recomputeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "invalid JSON body"})
			return
		}
	}
	result, err := h.Service.RecomputeHealth(ctx, chi.URLParam(r, "id"), req.OilInstanceID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, healthPayload(result))
}

func (h *Handler) handleAlerts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()
	alerts, err := h.Service.RefreshAlerts(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	payloads := make([]alertPayload, 0, len(alerts))
	for _, alert := range alerts {
		payloads = append(payloads, alertPayload{
			ID:            alert.ID,
			EquipmentID:   alert.EquipmentID,
			ParameterName: alert.ParameterName,
			Severity:      string(alert.Severity),
			Value:         alert.Value,
			Unit:          alert.Unit,
			Message:       alert.Message,
			Solutions:     alert.Solutions,
			CreatedAt:     alert.CreatedAt.UTC().Format(time.RFC3339),
			DedupeKey:     alert.DedupeKey,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "alerts": payloads})
}

func (h *Handler) handleTrends(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()
	trends, err := h.Service.EquipmentTrends(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	payloads := map[string]trendSeriesPayload{}
	for category, series := range trends {
		datasets := make([]trendDatasetPayload, 0, len(series.Datasets))
		for _, dataset := range series.Datasets {
			datasets = append(datasets, trendDatasetPayload{
				ParameterLabel: dataset.ParameterLabel,
				Unit:           dataset.Unit,
				Values:         dataset.Values,
			})
		}
		payloads[category] = trendSeriesPayload{
			CategoryName: series.CategoryName,
			Labels:       series.Labels,
			Datasets:     datasets,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "trends": payloads})
}

func (h *Handler) handleLogEvent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Type == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "type is required"})
		return
	}
	result, err := h.Service.LogEvent(ctx, chi.URLParam(r, "id"), engine.EquipmentEvent{
		Type:           req.Type,
		ImpactOnHealth: req.ImpactOnHealth,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, healthPayload(result))
}

func (h *Handler) handleReplaceOil(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()
	var req replaceOilRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OilInstanceID == "" || req.OilType == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "oilInstanceId and oilType are required"})
		return
	}
	newID, result, err := h.Service.ReplaceOil(ctx, chi.URLParam(r, "id"), req.OilInstanceID, req.OilType)
	if err != nil {
		h.writeError(w, err)
		return
	}
	payload := healthPayload(result)
	payload.OilInstanceID = newID
	writeJSON(w, http.StatusOK, payload)
}

func healthPayload(result engine.HealthResult) healthResponse {
	payload := healthResponse{
		Ok:              true,
		EquipmentHealth: result.EquipmentHealth,
		ComputedAt:      result.ComputedAt.UTC().Format(time.RFC3339),
	}
	if result.OilInstanceID != "" {
		payload.OilInstanceID = result.OilInstanceID
		oilHealth := result.OilHealth
		payload.OilHealth = &oilHealth
	}
	return payload
}

func (h *Handler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(r.Context(), timeout)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if engine.IsPrecondition(err) {
		writeJSON(w, http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorResponse{Code: "INTERNAL", Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
