package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jcuenca6779/urbandrive/internal/domain"
)

type incidentService struct {
	repo       IncidentRepository
	publisher  EventPublisher
	classifier SeverityClassifier
	logger     *slog.Logger
}

func NewIncidentService(
	repo IncidentRepository,
	publisher EventPublisher,
	classifier SeverityClassifier,
	logger *slog.Logger,
) IncidentService {
	return &incidentService{
		repo:       repo,
		publisher:  publisher,
		classifier: classifier,
		logger:     logger,
	}
}

func (s *incidentService) Report(ctx context.Context, req domain.CreateIncidentRequest) (*domain.Incident, error) {
	s.logger.Info("classifying incident severity",
		slog.String("tipo", req.Type),
		slog.Int64("usuario_id", req.OwnerID),
	)

	severity := s.classifier.Classify(ctx, req.Type, req.Description)

	inc := &domain.Incident{
		Type:        req.Type,
		Description: req.Description,
		Lat:         req.Lat,
		Lng:         req.Lng,
		Severity:    severity,
		State:       domain.IncidentPending,
		OwnerID:     req.OwnerID,
	}

	if err := s.repo.Create(ctx, inc); err != nil {
		return nil, err
	}

	s.logger.Info("incident created",
		slog.Int64("id", inc.ID),
		slog.String("severidad", string(inc.Severity)),
	)

	// Fire-and-forget: the incident is committed either way.
	ev := domain.ReportCreatedEvent(inc.OwnerID, inc.ID, inc.Type, inc.Severity)
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Error("publish reporte_creado failed, incident was saved",
			slog.Int64("incidente_id", inc.ID),
			slog.Any("error", err),
		)
	}

	return inc, nil
}

func (s *incidentService) Validate(ctx context.Context, incidentID, userID int64) (domain.ValidationResponse, error) {
	res, err := s.repo.SubmitValidation(ctx, incidentID, userID)
	if err != nil {
		return domain.ValidationResponse{}, err
	}

	if res.JustVerified {
		s.logger.Info("report verified",
			slog.Int64("incidente_id", res.IncidentID),
			slog.Int("validaciones", res.ValidationsCount),
			slog.Int64("owner_id", res.OwnerID),
		)

		// XP bonus goes to the report's creator, not the validator. Publish
		// failure must not roll back or fail the validation.
		ev := domain.ReportVerifiedEvent(res.OwnerID, res.IncidentID, res.IncidentType, res.Severity, res.ValidationsCount)
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.logger.Error("publish reporte_verificado failed, validation was saved",
				slog.Int64("incidente_id", res.IncidentID),
				slog.Any("error", err),
			)
		}
	}

	verified := res.State == domain.IncidentVerified

	var msg string
	switch {
	case res.JustVerified:
		msg = fmt.Sprintf("Reporte verificado con %d validaciones", res.ValidationsCount)
	case verified:
		msg = fmt.Sprintf("El reporte ya está verificado con %d validaciones", res.ValidationsCount)
	default:
		msg = fmt.Sprintf("Validación registrada. Total: %d/%d", res.ValidationsCount, domain.VerificationQuorum)
	}

	s.logger.Info("validation processed",
		slog.Int64("incidente_id", incidentID),
		slog.Int64("usuario_id", userID),
		slog.Int("validaciones", res.ValidationsCount),
		slog.Bool("verificado", verified),
	)

	return domain.ValidationResponse{
		IncidentID:       res.IncidentID,
		UserID:           userID,
		ValidationsCount: res.ValidationsCount,
		State:            res.State,
		Verified:         verified,
		Message:          msg,
	}, nil
}

func (s *incidentService) ListActive(ctx context.Context, skip, limit int) ([]*domain.Incident, error) {
	return s.repo.ListActive(ctx, skip, limit)
}

func (s *incidentService) Nearby(ctx context.Context, req domain.NearbyRequest) (domain.IncidentFeatureCollection, error) {
	collection := domain.IncidentFeatureCollection{
		Type:     "FeatureCollection",
		Features: []domain.IncidentFeature{},
	}

	minLat, maxLat, minLng, maxLng := boundingBox(req.Lat, req.Lng, req.RadiusKM)

	candidates, err := s.repo.ListActiveInBox(ctx, minLat, maxLat, minLng, maxLng)
	if err != nil {
		return collection, err
	}

	for _, inc := range candidates {
		dist := haversine(req.Lat, req.Lng, inc.Lat, inc.Lng)
		if dist > req.RadiusKM {
			continue
		}

		props := map[string]any{
			"id":                 inc.ID,
			"tipo":               inc.Type,
			"descripcion":        inc.Description,
			"severidad":          string(inc.Severity),
			"estado":             string(inc.State),
			"usuario_id":         inc.OwnerID,
			"validaciones_count": inc.ValidationsCount,
			"distancia_km":       roundKM(dist),
		}

		collection.Features = append(collection.Features, domain.IncidentFeature{
			Type: "Feature",
			Geometry: domain.PointGeometry{
				Type:        "Point",
				Coordinates: []float64{inc.Lng, inc.Lat}, // GeoJSON is [lng, lat]
			},
			Properties: props,
		})
	}

	sortFeaturesByDistance(collection.Features)

	s.logger.Info("nearby incidents resolved",
		slog.Int("candidates", len(candidates)),
		slog.Int("matched", len(collection.Features)),
		slog.Float64("radio_km", req.RadiusKM),
	)

	return collection, nil
}
