package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/idaholab/Deep-Lynx-sub010/pkg/apperrors"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/models"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/repositories"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/retry"
)

// EventEmitter queues events for asynchronous delivery. Emission is durable:
// once Emit returns nil the event sits in the database queue and survives a
// restart.
type EventEmitter interface {
	Emit(ctx context.Context, events ...models.Event) error
}

type eventEmitter struct {
	queue  repositories.QueueRepository
	logger *zap.Logger
}

// NewEventEmitter creates an emitter backed by the durable queue.
func NewEventEmitter(queue repositories.QueueRepository, logger *zap.Logger) EventEmitter {
	return &eventEmitter{
		queue:  queue,
		logger: logger.Named("event-emitter"),
	}
}

var _ EventEmitter = (*eventEmitter)(nil)

func (e *eventEmitter) Emit(ctx context.Context, events ...models.Event) error {
	if len(events) == 0 {
		return nil
	}

	for _, event := range events {
		if !event.Type.Valid() {
			return fmt.Errorf("%w: %q", apperrors.ErrUnknownEventType, event.Type)
		}
	}

	task, err := e.queue.Push(ctx, events, 1)
	if err != nil {
		return fmt.Errorf("failed to queue events: %w", err)
	}

	e.logger.Debug("Queued events",
		zap.Int64("task_id", task.ID),
		zap.Int("count", len(events)))

	return nil
}

// EventProcessor drains the queue and delivers events to matching webhook
// registrations.
//
// Delivery semantics are deliberate: a task is deleted after its delivery
// cycle completes, whether or not every webhook accepted the payload. A crash
// mid-cycle redelivers the whole task on the next boot (at-least-once across
// restarts); a listener that stays down through its delivery attempts misses
// that event rather than wedging the queue.
type EventProcessor struct {
	queue         repositories.QueueRepository
	registrations repositories.EventRegistrationRepository
	client        *http.Client
	retryCfg      *retry.Config
	pollInterval  time.Duration
	batchSize     int
	logger        *zap.Logger
}

// NewEventProcessor creates a queue processor. deliveryTimeout bounds each
// webhook POST.
func NewEventProcessor(
	queue repositories.QueueRepository,
	registrations repositories.EventRegistrationRepository,
	pollInterval time.Duration,
	deliveryTimeout time.Duration,
	logger *zap.Logger,
) *EventProcessor {
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	if deliveryTimeout <= 0 {
		deliveryTimeout = 10 * time.Second
	}

	return &EventProcessor{
		queue:         queue,
		registrations: registrations,
		client:        &http.Client{Timeout: deliveryTimeout},
		retryCfg:      retry.DefaultConfig(),
		pollInterval:  pollInterval,
		batchSize:     100,
		logger:        logger.Named("event-processor"),
	}
}

// Run polls the queue until ctx is cancelled.
func (p *EventProcessor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	p.logger.Info("Event processor started", zap.Duration("poll_interval", p.pollInterval))

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Event processor stopped")
			return
		case <-ticker.C:
			if err := p.ProcessOnce(ctx); err != nil {
				p.logger.Error("Queue processing cycle failed", zap.Error(err))
			}
		}
	}
}

// ProcessOnce drains one batch of tasks.
func (p *EventProcessor) ProcessOnce(ctx context.Context) error {
	tasks, err := p.queue.List(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to list queue tasks: %w", err)
	}

	for _, task := range tasks {
		p.processTask(ctx, task)

		if err := p.queue.Delete(ctx, task.ID); err != nil {
			p.logger.Error("Failed to delete processed task",
				zap.Int64("task_id", task.ID),
				zap.Error(err))
		}
	}

	return nil
}

func (p *EventProcessor) processTask(ctx context.Context, task *models.Task) {
	events, err := task.Events()
	if err != nil {
		p.logger.Error("Discarding undecodable task",
			zap.Int64("task_id", task.ID),
			zap.Error(err))
		return
	}

	for _, event := range events {
		matches, err := p.registrations.ListMatching(ctx, event.Type, event.SourceType, event.SourceID)
		if err != nil {
			p.logger.Error("Failed to match registrations",
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
			continue
		}

		for _, registration := range matches {
			if err := p.deliver(ctx, registration, event); err != nil {
				p.logger.Warn("Webhook delivery failed",
					zap.String("app_name", registration.AppName),
					zap.String("app_url", registration.AppURL),
					zap.String("event_type", string(event.Type)),
					zap.Error(err))
			}
		}
	}
}

func (p *EventProcessor) deliver(ctx context.Context, registration *models.EventRegistration, event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return retry.DoIfTransient(ctx, p.retryCfg, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, registration.AppURL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to build webhook request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to post webhook: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return fmt.Errorf("webhook returned status %d", resp.StatusCode)
		}

		return nil
	})
}

// mustJSON encodes a value built from in-memory maps and slices; failure is a
// programming error.
func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
