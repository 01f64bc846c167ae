package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/idaholab/Deep-Lynx-sub010/pkg/apperrors"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/database"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/models"
)

// QueueRepository is the durable task queue backing event delivery. Tasks
// survive restarts; the processor deletes a task only after its delivery
// cycle, so a crash before deletion means redelivery on the next boot rather
// than a lost batch.
type QueueRepository interface {
	// Push enqueues a batch of events as a single task.
	Push(ctx context.Context, events []models.Event, priority int) (*models.Task, error)

	// List returns pending tasks in priority then insertion order.
	List(ctx context.Context, limit int) ([]*models.Task, error)

	// Delete removes a processed task.
	Delete(ctx context.Context, id int64) error
}

type queueRepository struct {
	db *database.DB
}

// NewQueueRepository creates a queue repository backed by the given pool.
func NewQueueRepository(db *database.DB) QueueRepository {
	return &queueRepository{db: db}
}

func (r *queueRepository) Push(ctx context.Context, events []models.Event, priority int) (*models.Task, error) {
	payload, err := json.Marshal(events)
	if err != nil {
		return nil, fmt.Errorf("failed to encode events: %w", err)
	}

	query := `
		INSERT INTO queue_tasks (task, priority, added)
		VALUES ($1, $2, NOW())
		RETURNING id, added`

	task := models.Task{Task: payload, Priority: priority}
	if err := r.db.QueryRow(ctx, query, payload, priority).Scan(&task.ID, &task.Added); err != nil {
		return nil, fmt.Errorf("failed to push task: %w", err)
	}

	return &task, nil
}

func (r *queueRepository) List(ctx context.Context, limit int) ([]*models.Task, error) {
	query := `
		SELECT id, task, priority, added, lock
		FROM queue_tasks
		ORDER BY priority DESC, added
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	tasks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Task, error) {
		var t models.Task
		err := row.Scan(&t.ID, &t.Task, &t.Priority, &t.Added, &t.Lock)
		return &t, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	return tasks, nil
}

func (r *queueRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM queue_tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Ensure queueRepository implements QueueRepository at compile time.
var _ QueueRepository = (*queueRepository)(nil)
