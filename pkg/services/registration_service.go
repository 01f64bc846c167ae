package services

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/idaholab/Deep-Lynx-sub010/pkg/apperrors"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/models"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/repositories"
)

// RegistrationService manages webhook listener registrations.
type RegistrationService interface {
	Create(ctx context.Context, registration *models.EventRegistration) (*models.EventRegistration, error)
	Retrieve(ctx context.Context, id uuid.UUID) (*models.EventRegistration, error)
	List(ctx context.Context) ([]*models.EventRegistration, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type registrationService struct {
	registrations repositories.EventRegistrationRepository
	logger        *zap.Logger
}

// NewRegistrationService creates a registration service.
func NewRegistrationService(registrations repositories.EventRegistrationRepository, logger *zap.Logger) RegistrationService {
	return &registrationService{
		registrations: registrations,
		logger:        logger.Named("registration-service"),
	}
}

var _ RegistrationService = (*registrationService)(nil)

func (s *registrationService) Create(ctx context.Context, registration *models.EventRegistration) (*models.EventRegistration, error) {
	if registration.AppName == "" {
		return nil, fmt.Errorf("%w: app_name is required", apperrors.ErrValidation)
	}
	if !registration.EventType.Valid() {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownEventType, registration.EventType)
	}

	parsed, err := url.Parse(registration.AppURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: app_url must be an absolute URL", apperrors.ErrValidation)
	}

	// A registration listens on exactly one scope.
	if (registration.DataSourceID == nil) == (registration.ContainerID == nil) {
		return nil, fmt.Errorf("%w: exactly one of data_source_id and container_id must be set", apperrors.ErrValidation)
	}

	registration.Active = true
	if err := s.registrations.Create(ctx, registration); err != nil {
		return nil, err
	}

	s.logger.Info("Registered event listener",
		zap.String("registration_id", registration.ID.String()),
		zap.String("app_name", registration.AppName),
		zap.String("event_type", string(registration.EventType)))

	return registration, nil
}

func (s *registrationService) Retrieve(ctx context.Context, id uuid.UUID) (*models.EventRegistration, error) {
	return s.registrations.Retrieve(ctx, id)
}

func (s *registrationService) List(ctx context.Context) ([]*models.EventRegistration, error) {
	return s.registrations.List(ctx)
}

func (s *registrationService) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return s.registrations.SetActive(ctx, id, active)
}

func (s *registrationService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.registrations.Delete(ctx, id)
}
