package service

import (
	"context"

	"github.com/jcuenca6779/urbandrive/internal/domain"
)

//go:generate mockgen -source=service.go -destination=mocks/mock.go

// IncidentService covers the traffic surface: reporting, reads, validation.
type IncidentService interface {
	Report(ctx context.Context, req domain.CreateIncidentRequest) (*domain.Incident, error)
	Validate(ctx context.Context, incidentID, userID int64) (domain.ValidationResponse, error)
	ListActive(ctx context.Context, skip, limit int) ([]*domain.Incident, error)
	Nearby(ctx context.Context, req domain.NearbyRequest) (domain.IncidentFeatureCollection, error)
}

// GamificationReader covers the reward read surface.
type GamificationReader interface {
	Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
	Profile(ctx context.Context, userID int64) (domain.UserProfile, error)
}

type IncidentRepository interface {
	Create(ctx context.Context, incident *domain.Incident) error
	Get(ctx context.Context, id int64) (*domain.Incident, error)
	ListActive(ctx context.Context, skip, limit int) ([]*domain.Incident, error)
	ListActiveInBox(ctx context.Context, minLat, maxLat, minLng, maxLng float64) ([]*domain.Incident, error)
	SubmitValidation(ctx context.Context, incidentID, userID int64) (domain.ValidationResult, error)
}

// EventPublisher is the fire-and-forget side of the broker. Errors are
// logged by callers, never surfaced to the request path.
type EventPublisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// SeverityClassifier is the external severity oracle. Implementations must
// fall back to a default severity instead of failing.
type SeverityClassifier interface {
	Classify(ctx context.Context, incidentType, description string) domain.Severity
}

type GameStore interface {
	AddXP(ctx context.Context, userID int64, xp int64) (int64, error)
	AddCoins(ctx context.Context, userID int64, coins int64) (int64, error)
	AddBadge(ctx context.Context, userID int64, badge string) error
	Badges(ctx context.Context, userID int64) ([]string, error)
	Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
	Profile(ctx context.Context, userID int64) (domain.UserProfile, error)
}

type Service struct {
	Incidents IncidentService
	Game      GamificationReader
}

func NewService(incidents IncidentService, game GamificationReader) *Service {
	return &Service{
		Incidents: incidents,
		Game:      game,
	}
}
