package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"ticktr/internal/registry"
	"ticktr/internal/status"
	"ticktr/models"
	"ticktr/monitoring"
)

const DefaultMaxMintAttempts = 32

// NextTicketNumber returns the number the next mint would take.
func NextTicketNumber(numMinted, capacity uint64) (uint64, error) {
	if numMinted >= capacity {
		return 0, fmt.Errorf("%w: %d of %d minted", status.ErrMaximumTicketsReached, numMinted, capacity)
	}
	if numMinted == math.MaxUint64 {
		return 0, status.ErrNumericOverflow
	}
	return numMinted + 1, nil
}

// CapacityGuard hands out ticket numbers. A number is committed by a
// compare-and-swap on the event's mint counter, so no two mints get the
// same number and the counter never passes the capacity.
type CapacityGuard struct {
	Registry    registry.Registry
	MaxAttempts int

	monitor *monitoring.Monitor
	logger  *zap.Logger
}

func NewCapacityGuard(reg registry.Registry, maxAttempts int, monitor *monitoring.Monitor, logger *zap.Logger) *CapacityGuard {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxMintAttempts
	}
	return &CapacityGuard{
		Registry:    reg,
		MaxAttempts: maxAttempts,
		monitor:     monitor,
		logger:      logger,
	}
}

// Reserve commits the next ticket number of eventID and returns it together
// with the event as of the commit. Each conflict re-reads the event; once
// MaxAttempts conflicts are seen it gives up with ErrMintConflict.
func (g *CapacityGuard) Reserve(ctx context.Context, eventID string) (uint64, *models.Event, error) {
	for attempt := 1; attempt <= g.MaxAttempts; attempt++ {
		collection, err := g.Registry.FetchCollection(ctx, eventID)
		if err != nil {
			return 0, nil, eventLookupError(eventID, err)
		}

		event, err := eventFromCollection(collection)
		if err != nil {
			return 0, nil, err
		}

		number, err := NextTicketNumber(event.NumMinted, event.Capacity)
		if err != nil {
			return 0, event, err
		}

		err = g.Registry.AdvanceMinted(ctx, eventID, event.NumMinted)
		if err == nil {
			event.NumMinted = number
			return number, event, nil
		}
		if !errors.Is(err, registry.ErrMintConflict) {
			return 0, nil, eventLookupError(eventID, err)
		}

		g.monitor.TrackMintConflict()
		g.logger.Debug("mint counter moved, retrying",
			zap.String("event_id", eventID),
			zap.Uint64("expected", event.NumMinted),
			zap.Int("attempt", attempt),
		)
	}

	return 0, nil, fmt.Errorf("%w: event %s after %d attempts", status.ErrMintConflict, eventID, g.MaxAttempts)
}

func eventLookupError(eventID string, err error) error {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return fmt.Errorf("%w: %s", status.ErrEventNotFound, eventID)
	case errors.Is(err, registry.ErrCounterOverflow):
		return fmt.Errorf("%w: mint counter of event %s", status.ErrNumericOverflow, eventID)
	}
	return err
}
