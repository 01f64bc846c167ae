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

// MetatypeRepository defines data access for metatypes, their keys, and
// relationship pairs.
type MetatypeRepository interface {
	// Create inserts a new metatype. Names are unique per container.
	Create(ctx context.Context, metatype *models.Metatype) error

	// Retrieve fetches a metatype by id.
	Retrieve(ctx context.Context, id uuid.UUID) (*models.Metatype, error)

	// List retrieves unarchived metatypes for a container.
	List(ctx context.Context, containerID uuid.UUID) ([]*models.Metatype, error)

	// Archive soft-deletes a metatype.
	Archive(ctx context.Context, id uuid.UUID) error

	// CreateKey inserts a property definition on a metatype.
	CreateKey(ctx context.Context, key *models.MetatypeKey) error

	// ListKeys retrieves the unarchived keys of a metatype.
	ListKeys(ctx context.Context, metatypeID uuid.UUID) ([]*models.MetatypeKey, error)

	// ArchiveKey soft-deletes a metatype key.
	ArchiveKey(ctx context.Context, id uuid.UUID) error

	// CreatePair inserts a relationship pair between two metatypes.
	CreatePair(ctx context.Context, pair *models.MetatypeRelationshipPair) error

	// RetrievePair fetches a relationship pair by id.
	RetrievePair(ctx context.Context, id uuid.UUID) (*models.MetatypeRelationshipPair, error)

	// ListPairs retrieves unarchived relationship pairs for a container.
	ListPairs(ctx context.Context, containerID uuid.UUID) ([]*models.MetatypeRelationshipPair, error)

	// ArchivePair soft-deletes a relationship pair.
	ArchivePair(ctx context.Context, id uuid.UUID) error
}

type metatypeRepository struct {
	db *database.DB
}

// NewMetatypeRepository creates a metatype repository backed by the given pool.
func NewMetatypeRepository(db *database.DB) MetatypeRepository {
	return &metatypeRepository{db: db}
}

func (r *metatypeRepository) Create(ctx context.Context, metatype *models.Metatype) error {
	if metatype.ID == uuid.Nil {
		metatype.ID = uuid.New()
	}

	query := `
		INSERT INTO metatypes (id, container_id, name, description, archived, created_at)
		VALUES ($1, $2, $3, $4, false, NOW())
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query, metatype.ID, metatype.ContainerID, metatype.Name, metatype.Description).
		Scan(&metatype.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create metatype: %w", err)
	}

	return nil
}

func (r *metatypeRepository) Retrieve(ctx context.Context, id uuid.UUID) (*models.Metatype, error) {
	query := `SELECT id, container_id, name, description, archived, created_at FROM metatypes WHERE id = $1`

	var m models.Metatype
	err := r.db.QueryRow(ctx, query, id).Scan(&m.ID, &m.ContainerID, &m.Name, &m.Description, &m.Archived, &m.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get metatype: %w", err)
	}

	return &m, nil
}

func (r *metatypeRepository) List(ctx context.Context, containerID uuid.UUID) ([]*models.Metatype, error) {
	query := `
		SELECT id, container_id, name, description, archived, created_at
		FROM metatypes
		WHERE container_id = $1 AND NOT archived
		ORDER BY name`

	rows, err := r.db.Query(ctx, query, containerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list metatypes: %w", err)
	}
	defer rows.Close()

	var metatypes []*models.Metatype
	for rows.Next() {
		var m models.Metatype
		if err := rows.Scan(&m.ID, &m.ContainerID, &m.Name, &m.Description, &m.Archived, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan metatype: %w", err)
		}
		metatypes = append(metatypes, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating metatypes: %w", err)
	}

	return metatypes, nil
}

func (r *metatypeRepository) Archive(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `UPDATE metatypes SET archived = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to archive metatype: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *metatypeRepository) CreateKey(ctx context.Context, key *models.MetatypeKey) error {
	if key.ID == uuid.Nil {
		key.ID = uuid.New()
	}

	query := `
		INSERT INTO metatype_keys (id, metatype_id, name, property_name, description,
			required, data_type, options, default_value, validation, archived)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, false)`

	_, err := r.db.Exec(ctx, query,
		key.ID,
		key.MetatypeID,
		key.Name,
		key.PropertyName,
		key.Description,
		key.Required,
		key.DataType,
		key.Options,
		key.DefaultValue,
		key.Validation,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create metatype key: %w", err)
	}

	return nil
}

func (r *metatypeRepository) ListKeys(ctx context.Context, metatypeID uuid.UUID) ([]*models.MetatypeKey, error) {
	query := `
		SELECT id, metatype_id, name, property_name, description, required,
			data_type, options, default_value, validation, archived
		FROM metatype_keys
		WHERE metatype_id = $1 AND NOT archived
		ORDER BY property_name`

	rows, err := r.db.Query(ctx, query, metatypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list metatype keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.MetatypeKey
	for rows.Next() {
		var k models.MetatypeKey
		err := rows.Scan(
			&k.ID,
			&k.MetatypeID,
			&k.Name,
			&k.PropertyName,
			&k.Description,
			&k.Required,
			&k.DataType,
			&k.Options,
			&k.DefaultValue,
			&k.Validation,
			&k.Archived,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan metatype key: %w", err)
		}
		keys = append(keys, &k)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating metatype keys: %w", err)
	}

	return keys, nil
}

func (r *metatypeRepository) ArchiveKey(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `UPDATE metatype_keys SET archived = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to archive metatype key: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *metatypeRepository) CreatePair(ctx context.Context, pair *models.MetatypeRelationshipPair) error {
	if pair.ID == uuid.Nil {
		pair.ID = uuid.New()
	}

	query := `
		INSERT INTO metatype_relationship_pairs (id, container_id, name,
			origin_metatype_id, destination_metatype_id, relationship_type, archived, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, NOW())
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		pair.ID,
		pair.ContainerID,
		pair.Name,
		pair.OriginMetatypeID,
		pair.DestinationMetatypeID,
		pair.RelationshipType,
	).Scan(&pair.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create relationship pair: %w", err)
	}

	return nil
}

func (r *metatypeRepository) RetrievePair(ctx context.Context, id uuid.UUID) (*models.MetatypeRelationshipPair, error) {
	query := `
		SELECT id, container_id, name, origin_metatype_id, destination_metatype_id,
			relationship_type, archived, created_at
		FROM metatype_relationship_pairs
		WHERE id = $1`

	var p models.MetatypeRelationshipPair
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.ContainerID,
		&p.Name,
		&p.OriginMetatypeID,
		&p.DestinationMetatypeID,
		&p.RelationshipType,
		&p.Archived,
		&p.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get relationship pair: %w", err)
	}

	return &p, nil
}

func (r *metatypeRepository) ListPairs(ctx context.Context, containerID uuid.UUID) ([]*models.MetatypeRelationshipPair, error) {
	query := `
		SELECT id, container_id, name, origin_metatype_id, destination_metatype_id,
			relationship_type, archived, created_at
		FROM metatype_relationship_pairs
		WHERE container_id = $1 AND NOT archived
		ORDER BY name`

	rows, err := r.db.Query(ctx, query, containerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list relationship pairs: %w", err)
	}
	defer rows.Close()

	var pairs []*models.MetatypeRelationshipPair
	for rows.Next() {
		var p models.MetatypeRelationshipPair
		err := rows.Scan(
			&p.ID,
			&p.ContainerID,
			&p.Name,
			&p.OriginMetatypeID,
			&p.DestinationMetatypeID,
			&p.RelationshipType,
			&p.Archived,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan relationship pair: %w", err)
		}
		pairs = append(pairs, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating relationship pairs: %w", err)
	}

	return pairs, nil
}

func (r *metatypeRepository) ArchivePair(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `UPDATE metatype_relationship_pairs SET archived = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to archive relationship pair: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Ensure metatypeRepository implements MetatypeRepository at compile time.
var _ MetatypeRepository = (*metatypeRepository)(nil)
