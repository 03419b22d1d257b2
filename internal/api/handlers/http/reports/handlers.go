package reports

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jcuenca6779/urbandrive/internal/domain"
	"github.com/jcuenca6779/urbandrive/pkg/validator"
)

//go:generate mockgen -source=handlers.go -destination=mocks/mock.go
type ReportService interface {
	Report(ctx context.Context, req domain.CreateIncidentRequest) (*domain.Incident, error)
	Validate(ctx context.Context, incidentID, userID int64) (domain.ValidationResponse, error)
	ListActive(ctx context.Context, skip, limit int) ([]*domain.Incident, error)
	Nearby(ctx context.Context, req domain.NearbyRequest) (domain.IncidentFeatureCollection, error)
}

type Handler struct {
	logger  *slog.Logger
	Reports ReportService
}

func NewHandler(logger *slog.Logger, reports ReportService) *Handler {
	return &Handler{
		logger:  logger,
		Reports: reports,
	}
}

func (h *Handler) ReportCreate(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("ReportCreate", slog.String("remote", r.RemoteAddr))

	var req domain.CreateIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		l.Warn("invalid JSON", slog.String("error", err.Error()))
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if err := validator.ValidateStruct(&req); err != nil {
		l.Warn("invalid report payload", slog.String("error", err.Error()))
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	l.Info("creating report",
		slog.String("tipo", req.Type),
		slog.Float64("lat", req.Lat),
		slog.Float64("lng", req.Lng),
		slog.Int64("usuario_id", req.OwnerID),
	)

	inc, err := h.Reports.Report(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	l.Info("report created", slog.Int64("id", inc.ID), slog.String("severidad", string(inc.Severity)))
	h.writeJSON(w, http.StatusCreated, inc)
}

func (h *Handler) ReportList(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("ReportList", slog.String("query", r.URL.RawQuery), slog.String("remote", r.RemoteAddr))

	skip := parseInt(r.URL.Query().Get("skip"), 0)
	limit := parseInt(r.URL.Query().Get("limit"), 50)
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		l.Warn("limit capped", slog.Int("requested", limit))
		limit = 100
	}

	incidents, err := h.Reports.ListActive(r.Context(), skip, limit)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if incidents == nil {
		incidents = []*domain.Incident{}
	}

	l.Info("reports listed", slog.Int("count", len(incidents)))
	h.writeJSON(w, http.StatusOK, incidents)
}

func (h *Handler) ReportNearby(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("ReportNearby", slog.String("query", r.URL.RawQuery), slog.String("remote", r.RemoteAddr))

	q := r.URL.Query()

	lat, errLat := strconv.ParseFloat(q.Get("latitud"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("longitud"), 64)
	if errLat != nil || errLng != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "latitud and longitud are required"})
		return
	}

	radius := 5.0
	if s := q.Get("radio_km"); s != "" {
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid radio_km"})
			return
		}
		radius = parsed
	}

	req := domain.NearbyRequest{Lat: lat, Lng: lng, RadiusKM: radius}
	if err := validator.ValidateStruct(&req); err != nil {
		l.Warn("invalid nearby query", slog.String("error", err.Error()))
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	collection, err := h.Reports.Nearby(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, collection)
}

func (h *Handler) ReportValidate(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("ReportValidate", slog.String("remote", r.RemoteAddr))

	idStr := chi.URLParam(r, "id")
	incidentID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || incidentID <= 0 {
		l.Warn("invalid report id", slog.String("id", idStr))
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid report id"})
		return
	}

	var req domain.ValidationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		l.Warn("invalid JSON", slog.String("error", err.Error()))
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if err := validator.ValidateStruct(&req); err != nil {
		l.Warn("invalid validation payload", slog.String("error", err.Error()))
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	resp, err := h.Reports.Validate(r.Context(), incidentID, req.UserID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	l.Info("report validated",
		slog.Int64("incidente_id", incidentID),
		slog.Int64("usuario_id", req.UserID),
		slog.Bool("verificado", resp.Verified),
	)
	h.writeJSON(w, http.StatusOK, resp)
}
