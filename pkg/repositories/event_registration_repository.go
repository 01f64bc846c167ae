package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/idaholab/Deep-Lynx-sub010/pkg/apperrors"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/database"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/models"
)

const eventRegistrationColumns = `id, app_name, app_url, event_type, data_source_id, container_id, active, created_at`

// EventRegistrationRepository defines data access for webhook listener
// registrations.
type EventRegistrationRepository interface {
	// Create inserts a new registration.
	Create(ctx context.Context, registration *models.EventRegistration) error

	// Retrieve fetches a registration by id.
	Retrieve(ctx context.Context, id uuid.UUID) (*models.EventRegistration, error)

	// List returns all registrations.
	List(ctx context.Context) ([]*models.EventRegistration, error)

	// ListMatching returns active registrations for an event type scoped to
	// the given source. Data-source events match on data_source_id, container
	// events on container_id.
	ListMatching(ctx context.Context, eventType models.EventType, sourceType models.EventSourceType, sourceID uuid.UUID) ([]*models.EventRegistration, error)

	// SetActive enables or disables a registration without deleting it.
	SetActive(ctx context.Context, id uuid.UUID, active bool) error

	// Delete removes a registration.
	Delete(ctx context.Context, id uuid.UUID) error
}

type eventRegistrationRepository struct {
	db *database.DB
}

// NewEventRegistrationRepository creates an event registration repository
// backed by the given pool.
func NewEventRegistrationRepository(db *database.DB) EventRegistrationRepository {
	return &eventRegistrationRepository{db: db}
}

func (r *eventRegistrationRepository) Create(ctx context.Context, registration *models.EventRegistration) error {
	if registration.ID == uuid.Nil {
		registration.ID = uuid.New()
	}

	query := `
		INSERT INTO event_registrations (id, app_name, app_url, event_type, data_source_id, container_id, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		registration.ID,
		registration.AppName,
		registration.AppURL,
		registration.EventType,
		registration.DataSourceID,
		registration.ContainerID,
		registration.Active,
	).Scan(&registration.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create event registration: %w", err)
	}

	return nil
}

func (r *eventRegistrationRepository) Retrieve(ctx context.Context, id uuid.UUID) (*models.EventRegistration, error) {
	query := fmt.Sprintf(`SELECT %s FROM event_registrations WHERE id = $1`, eventRegistrationColumns)

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get event registration: %w", err)
	}

	registration, err := pgx.CollectOneRow(rows, scanEventRegistration)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get event registration: %w", err)
	}

	return registration, nil
}

func (r *eventRegistrationRepository) List(ctx context.Context) ([]*models.EventRegistration, error) {
	query := fmt.Sprintf(`SELECT %s FROM event_registrations ORDER BY created_at`, eventRegistrationColumns)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list event registrations: %w", err)
	}

	registrations, err := pgx.CollectRows(rows, scanEventRegistration)
	if err != nil {
		return nil, fmt.Errorf("failed to list event registrations: %w", err)
	}

	return registrations, nil
}

func (r *eventRegistrationRepository) ListMatching(ctx context.Context, eventType models.EventType, sourceType models.EventSourceType, sourceID uuid.UUID) ([]*models.EventRegistration, error) {
	scopeColumn := "container_id"
	if sourceType == models.SourceDataSource {
		scopeColumn = "data_source_id"
	}

	query := fmt.Sprintf(`
		SELECT %s FROM event_registrations
		WHERE event_type = $1 AND %s = $2 AND active`, eventRegistrationColumns, scopeColumn)

	rows, err := r.db.Query(ctx, query, eventType, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to match event registrations: %w", err)
	}

	registrations, err := pgx.CollectRows(rows, scanEventRegistration)
	if err != nil {
		return nil, fmt.Errorf("failed to match event registrations: %w", err)
	}

	return registrations, nil
}

func (r *eventRegistrationRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	result, err := r.db.Exec(ctx, `UPDATE event_registrations SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("failed to update event registration: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *eventRegistrationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM event_registrations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event registration: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func scanEventRegistration(row pgx.CollectableRow) (*models.EventRegistration, error) {
	var reg models.EventRegistration
	err := row.Scan(
		&reg.ID,
		&reg.AppName,
		&reg.AppURL,
		&reg.EventType,
		&reg.DataSourceID,
		&reg.ContainerID,
		&reg.Active,
		&reg.CreatedAt,
	)
	return &reg, err
}

// Ensure eventRegistrationRepository implements EventRegistrationRepository at compile time.
var _ EventRegistrationRepository = (*eventRegistrationRepository)(nil)
