package postgres

import (
	"context"

	"github.com/jcuenca6779/urbandrive/internal/domain"
)

type IncidentRepository interface {
	Create(ctx context.Context, incident *domain.Incident) error
	Get(ctx context.Context, id int64) (*domain.Incident, error)
	ListActive(ctx context.Context, skip, limit int) ([]*domain.Incident, error)
	ListActiveInBox(ctx context.Context, minLat, maxLat, minLng, maxLng float64) ([]*domain.Incident, error)
	SubmitValidation(ctx context.Context, incidentID, userID int64) (domain.ValidationResult, error)
}

func (p *Postgres) Incidents() IncidentRepository { return p.Incident }
