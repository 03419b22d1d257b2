package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jcuenca6779/urbandrive/internal/domain"
	"github.com/jcuenca6779/urbandrive/pkg/e"
)

// Active incidents are everything a driver should still see on the map.
var activeStates = []string{
	string(domain.IncidentPending),
	string(domain.IncidentValidated),
	string(domain.IncidentVerified),
}

type IncidentRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewIncidentRepo(pool *pgxpool.Pool, logger *slog.Logger) *IncidentRepo {
	return &IncidentRepo{pool: pool, logger: logger}
}

func (r *IncidentRepo) Create(ctx context.Context, incident *domain.Incident) error {
	const op = "postgres.Incident.Create"

	const query = `
		INSERT INTO incidentes (tipo, descripcion, latitud, longitud, severidad, estado, usuario_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, validaciones_count, created_at
	`

	if incident.State == "" {
		incident.State = domain.IncidentPending
	}

	err := r.pool.QueryRow(ctx, query,
		incident.Type,
		incident.Description,
		incident.Lat,
		incident.Lng,
		incident.Severity,
		incident.State,
		incident.OwnerID,
	).Scan(&incident.ID, &incident.ValidationsCount, &incident.CreatedAt)
	if err != nil {
		r.logger.Error("db insert failed",
			slog.String("op", op),
			slog.Any("error", err),
		)
		return e.WrapError(ctx, op, err)
	}

	return nil
}

func (r *IncidentRepo) Get(ctx context.Context, id int64) (*domain.Incident, error) {
	const op = "postgres.Incident.Get"

	const query = `
		SELECT id, tipo, descripcion, latitud, longitud, severidad, estado,
			   usuario_id, validaciones_count, created_at, updated_at
		FROM incidentes
		WHERE id = $1
	`

	var inc domain.Incident
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&inc.ID,
		&inc.Type,
		&inc.Description,
		&inc.Lat,
		&inc.Lng,
		&inc.Severity,
		&inc.State,
		&inc.OwnerID,
		&inc.ValidationsCount,
		&inc.CreatedAt,
		&inc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, e.ErrNotFound)
		}
		r.logger.Error("db queryrow scan failed", slog.String("op", op), slog.Any("error", err), slog.Int64("id", id))
		return nil, e.WrapError(ctx, op, err)
	}

	return &inc, nil
}

func (r *IncidentRepo) ListActive(ctx context.Context, skip, limit int) ([]*domain.Incident, error) {
	const op = "postgres.Incident.ListActive"

	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	const query = `
		SELECT id, tipo, descripcion, latitud, longitud, severidad, estado,
			   usuario_id, validaciones_count, created_at, updated_at
		FROM incidentes
		WHERE estado = ANY($1)
		ORDER BY created_at DESC
		OFFSET $2 LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, activeStates, skip, limit)
	if err != nil {
		r.logger.Error("db query failed", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	defer rows.Close()

	return scanIncidents(ctx, op, rows, r.logger)
}

func (r *IncidentRepo) ListActiveInBox(ctx context.Context, minLat, maxLat, minLng, maxLng float64) ([]*domain.Incident, error) {
	const op = "postgres.Incident.ListActiveInBox"

	const query = `
		SELECT id, tipo, descripcion, latitud, longitud, severidad, estado,
			   usuario_id, validaciones_count, created_at, updated_at
		FROM incidentes
		WHERE estado = ANY($1)
		  AND latitud BETWEEN $2 AND $3
		  AND longitud BETWEEN $4 AND $5
	`

	rows, err := r.pool.Query(ctx, query, activeStates, minLat, maxLat, minLng, maxLng)
	if err != nil {
		r.logger.Error("db query failed", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	defer rows.Close()

	return scanIncidents(ctx, op, rows, r.logger)
}

// SubmitValidation runs the whole validation state machine in one transaction.
// The FOR UPDATE lock on the incident row serializes concurrent validations,
// so exactly one caller can observe the count crossing the quorum.
func (r *IncidentRepo) SubmitValidation(ctx context.Context, incidentID, userID int64) (domain.ValidationResult, error) {
	const op = "postgres.Incident.SubmitValidation"

	res := domain.ValidationResult{IncidentID: incidentID, UserID: userID}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error("begin tx failed", slog.String("op", op), slog.Any("error", err))
		return res, e.WrapError(ctx, op, err)
	}
	defer tx.Rollback(ctx)

	const lockQuery = `
		SELECT usuario_id, tipo, severidad, estado, validaciones_count
		FROM incidentes
		WHERE id = $1
		FOR UPDATE
	`

	var (
		state domain.IncidentState
		count int
	)
	err = tx.QueryRow(ctx, lockQuery, incidentID).Scan(
		&res.OwnerID,
		&res.IncidentType,
		&res.Severity,
		&state,
		&count,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return res, fmt.Errorf("%s: %w", op, e.ErrNotFound)
		}
		r.logger.Error("lock incident failed", slog.String("op", op), slog.Any("error", err), slog.Int64("id", incidentID))
		return res, e.WrapError(ctx, op, err)
	}

	if res.OwnerID == userID {
		return res, fmt.Errorf("%s: %w", op, e.ErrSelfValidation)
	}

	var exists bool
	const dupQuery = `
		SELECT EXISTS (
			SELECT 1 FROM validaciones_incidentes
			WHERE incidente_id = $1 AND usuario_id = $2
		)
	`
	if err := tx.QueryRow(ctx, dupQuery, incidentID, userID).Scan(&exists); err != nil {
		r.logger.Error("duplicate check failed", slog.String("op", op), slog.Any("error", err))
		return res, e.WrapError(ctx, op, err)
	}
	if exists {
		return res, fmt.Errorf("%s: %w", op, e.ErrDuplicateValidation)
	}

	// Re-validating an already verified report is a successful no-op.
	if state == domain.IncidentVerified {
		res.ValidationsCount = count
		res.State = state
		return res, nil
	}

	const insertQuery = `
		INSERT INTO validaciones_incidentes (incidente_id, usuario_id)
		VALUES ($1, $2)
	`
	if _, err := tx.Exec(ctx, insertQuery, incidentID, userID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// The unique constraint backstops the duplicate check under
			// concurrent submissions from the same user.
			return res, fmt.Errorf("%s: %w", op, e.ErrDuplicateValidation)
		}
		r.logger.Error("insert validation failed", slog.String("op", op), slog.Any("error", err))
		return res, e.WrapError(ctx, op, err)
	}

	newCount := count + 1
	newState := state
	if newState == domain.IncidentPending {
		newState = domain.IncidentValidated
	}
	if newCount >= domain.VerificationQuorum {
		newState = domain.IncidentVerified
		res.JustVerified = true
	}

	const updateQuery = `
		UPDATE incidentes
		SET validaciones_count = $2, estado = $3, updated_at = now()
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, updateQuery, incidentID, newCount, newState); err != nil {
		r.logger.Error("update incident failed", slog.String("op", op), slog.Any("error", err))
		return res, e.WrapError(ctx, op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error("commit failed", slog.String("op", op), slog.Any("error", err))
		return domain.ValidationResult{IncidentID: incidentID, UserID: userID}, e.WrapError(ctx, op, err)
	}

	res.ValidationsCount = newCount
	res.State = newState
	return res, nil
}

func scanIncidents(ctx context.Context, op string, rows pgx.Rows, logger *slog.Logger) ([]*domain.Incident, error) {
	var incidents []*domain.Incident
	for rows.Next() {
		var inc domain.Incident
		if err := rows.Scan(
			&inc.ID,
			&inc.Type,
			&inc.Description,
			&inc.Lat,
			&inc.Lng,
			&inc.Severity,
			&inc.State,
			&inc.OwnerID,
			&inc.ValidationsCount,
			&inc.CreatedAt,
			&inc.UpdatedAt,
		); err != nil {
			logger.Error("row scan failed", slog.String("op", op), slog.Any("error", err))
			return nil, e.WrapError(ctx, op, err)
		}
		incidents = append(incidents, &inc)
	}
	if err := rows.Err(); err != nil {
		logger.Error("rows err", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}

	return incidents, nil
}
