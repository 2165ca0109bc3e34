package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"ticktr/internal/registry"
	"ticktr/internal/status"
	"ticktr/models"
	"ticktr/monitoring"
)

type ManagerService struct {
	Store registry.ManagerStore

	monitor *monitoring.Monitor
	logger  *zap.Logger
}

func NewManagerService(store registry.ManagerStore, monitor *monitoring.Monitor, logger *zap.Logger) *ManagerService {
	return &ManagerService{
		Store:   store,
		monitor: monitor,
		logger:  logger,
	}
}

// Bootstrap creates the manager singleton bound to authority. It succeeds
// once per store.
func (s *ManagerService) Bootstrap(ctx context.Context, authority models.Identity) (_ *models.Manager, err error) {
	defer func() {
		finish(s.logger, s.monitor, "bootstrap", err, zap.String("authority", authority.String()))
	}()

	if authority.IsZero() {
		return nil, fmt.Errorf("%w: empty authority", status.ErrInvalidAuthority)
	}

	m := models.NewManager(authority)
	if err := s.Store.InitManager(ctx, m); err != nil {
		if errors.Is(err, registry.ErrManagerExists) {
			return nil, status.ErrAlreadyInitialized
		}
		return nil, err
	}

	s.logger.Info("manager initialized",
		zap.String("address", m.Address.String()),
		zap.String("authority", m.Authority.String()),
	)
	return m, nil
}

func (s *ManagerService) Load(ctx context.Context) (*models.Manager, error) {
	m, err := s.Store.LoadManager(ctx)
	if errors.Is(err, registry.ErrManagerNotFound) {
		return nil, status.ErrManagerNotInitialized
	}
	return m, err
}

// Ensure loads the manager, bootstrapping it with authority when none exists
// yet. An existing manager bound to another authority is returned unchanged.
func (s *ManagerService) Ensure(ctx context.Context, authority models.Identity) (*models.Manager, error) {
	m, err := s.Load(ctx)
	if err == nil {
		if !authority.IsZero() && m.Authority != authority {
			s.logger.Warn("manager already bound to another authority",
				zap.String("configured", authority.String()),
				zap.String("stored", m.Authority.String()),
			)
		}
		return m, nil
	}
	if !errors.Is(err, status.ErrManagerNotInitialized) || authority.IsZero() {
		return nil, err
	}

	m, err = s.Bootstrap(ctx, authority)
	if errors.Is(err, status.ErrAlreadyInitialized) {
		return s.Load(ctx)
	}
	return m, err
}
