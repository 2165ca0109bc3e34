package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ticktr/internal/registry"
	"ticktr/models"
	"ticktr/monitoring"
)

const (
	issuer = models.Identity("issuer")
	gate   = models.Identity("gate-1")
	holder = models.Identity("holder")
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, channel string, message map[string]any) error {
	args := m.Called(channel, message["type"])
	return args.Error(0)
}

// conflictingRegistry loses every compare-and-swap.
type conflictingRegistry struct {
	registry.Registry
	calls atomic.Int32
}

func (r *conflictingRegistry) AdvanceMinted(ctx context.Context, collectionID string, expected uint64) error {
	r.calls.Add(1)
	return registry.ErrMintConflict
}

// saturatedRegistry reports the mint counter at its integer limit.
type saturatedRegistry struct {
	registry.Registry
}

func (r *saturatedRegistry) AdvanceMinted(ctx context.Context, collectionID string, expected uint64) error {
	return registry.ErrCounterOverflow
}

// failingAssetRegistry rejects every asset creation.
type failingAssetRegistry struct {
	registry.Registry
}

func (r *failingAssetRegistry) CreateAsset(ctx context.Context, in registry.AssetInput) (*registry.Asset, error) {
	return nil, errors.New("disk full")
}

type testEnv struct {
	store     *registry.MemoryStore
	monitor   *monitoring.Monitor
	publisher *mockPublisher
	managers  *ManagerService
	events    *EventService
	tickets   *TicketService
	manager   *models.Manager
}

func setupTestServices(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		store:     registry.NewMemoryStore(),
		monitor:   monitoring.NewMonitor(prometheus.NewRegistry()),
		publisher: &mockPublisher{},
	}
	env.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)
	env.useRegistry(env.store)

	env.managers = NewManagerService(env.store, env.monitor, zap.NewNop())
	m, err := env.managers.Bootstrap(context.Background(), issuer)
	require.NoError(t, err)
	env.manager = m

	return env
}

// useRegistry rebuilds the event and ticket services on reg.
func (env *testEnv) useRegistry(reg registry.Registry) {
	logger := zap.NewNop()
	guard := NewCapacityGuard(reg, DefaultMaxMintAttempts, env.monitor, logger)
	env.events = NewEventService(reg, env.monitor, env.publisher, logger)
	env.tickets = NewTicketService(reg, guard, env.monitor, env.publisher, logger)
}

func (env *testEnv) createEvent(t *testing.T, capacity uint64) *models.Event {
	t.Helper()

	event, err := env.events.CreateEvent(context.Background(), env.manager, issuer, models.CreateEventArgs{
		Name:     "Mor Lam Festival",
		URI:      "https://example.com/events/mor-lam.json",
		City:     "Vientiane",
		Venue:    "National Cultural Hall",
		Artist:   "Various",
		Date:     "2026-12-31",
		Time:     "19:00",
		Capacity: capacity,
	})
	require.NoError(t, err)
	return event
}

func ticketArgs(seat string) models.CreateTicketArgs {
	return models.CreateTicketArgs{
		Name:           "General Admission",
		URI:            "https://example.com/tickets/ga.json",
		Hall:           "Main",
		Section:        "A",
		Row:            "1",
		Seat:           seat,
		Price:          150000,
		VenueAuthority: gate,
		Owner:          holder,
	}
}
