package services

import (
	"go.uber.org/zap"

	"ticktr/internal/notify"
	"ticktr/internal/registry"
	"ticktr/monitoring"
)

// Lifecycle bundles the services that run against one store.
type Lifecycle struct {
	Managers *ManagerService
	Events   *EventService
	Tickets  *TicketService
}

func NewLifecycle(store registry.Store, maxMintAttempts int, monitor *monitoring.Monitor, publisher notify.Publisher, logger *zap.Logger) *Lifecycle {
	guard := NewCapacityGuard(store, maxMintAttempts, monitor, logger)

	return &Lifecycle{
		Managers: NewManagerService(store, monitor, logger),
		Events:   NewEventService(store, monitor, publisher, logger),
		Tickets:  NewTicketService(store, guard, monitor, publisher, logger),
	}
}
