package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/idaholab/Deep-Lynx-sub010/pkg/apperrors"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/database"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/models"
)

// ContainerRepository defines data access for containers.
type ContainerRepository interface {
	// Create inserts a new container. Names are unique; duplicates return
	// apperrors.ErrConflict.
	Create(ctx context.Context, container *models.Container) error

	// Retrieve fetches a container by id.
	Retrieve(ctx context.Context, id uuid.UUID) (*models.Container, error)

	// List retrieves all unarchived containers.
	List(ctx context.Context) ([]*models.Container, error)

	// Archive soft-deletes a container.
	Archive(ctx context.Context, id uuid.UUID) error
}

type containerRepository struct {
	db *database.DB
}

// NewContainerRepository creates a container repository backed by the given pool.
func NewContainerRepository(db *database.DB) ContainerRepository {
	return &containerRepository{db: db}
}

func (r *containerRepository) Create(ctx context.Context, container *models.Container) error {
	if container.ID == uuid.Nil {
		container.ID = uuid.New()
	}

	query := `
		INSERT INTO containers (id, name, description, archived, created_at)
		VALUES ($1, $2, $3, false, NOW())
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query, container.ID, container.Name, container.Description).
		Scan(&container.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create container: %w", err)
	}

	return nil
}

func (r *containerRepository) Retrieve(ctx context.Context, id uuid.UUID) (*models.Container, error) {
	query := `SELECT id, name, description, archived, created_at FROM containers WHERE id = $1`

	var c models.Container
	err := r.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.Description, &c.Archived, &c.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get container: %w", err)
	}

	return &c, nil
}

func (r *containerRepository) List(ctx context.Context) ([]*models.Container, error) {
	query := `
		SELECT id, name, description, archived, created_at
		FROM containers
		WHERE NOT archived
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	defer rows.Close()

	var containers []*models.Container
	for rows.Next() {
		var c models.Container
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Archived, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan container: %w", err)
		}
		containers = append(containers, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating containers: %w", err)
	}

	return containers, nil
}

func (r *containerRepository) Archive(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `UPDATE containers SET archived = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to archive container: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Ensure containerRepository implements ContainerRepository at compile time.
var _ ContainerRepository = (*containerRepository)(nil)
