package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticktr/internal/notify"
	"ticktr/internal/registry"
	"ticktr/internal/status"
	"ticktr/models"
)

func TestTicketService_CreateTicketUntilSoldOut(t *testing.T) {
	env := setupTestServices(t)
	ctx := context.Background()
	event := env.createEvent(t, 2)

	t1, err := env.tickets.CreateTicket(ctx, env.manager, issuer, event, ticketArgs("1"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), t1.TicketNumber)
	assert.Equal(t, uint64(1), event.NumMinted)

	t2, err := env.tickets.CreateTicket(ctx, env.manager, issuer, event, ticketArgs("2"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), t2.TicketNumber)
	assert.Equal(t, uint64(2), event.NumMinted)

	_, err = env.tickets.CreateTicket(ctx, env.manager, issuer, event, ticketArgs("3"))
	assert.ErrorIs(t, err, status.ErrMaximumTicketsReached)

	fetched, err := env.events.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), fetched.NumMinted)
	assert.True(t, fetched.SoldOut())

	env.publisher.AssertCalled(t, "Publish", notify.EventChannel(event.ID), notify.TypeTicketMinted)
}

func TestTicketService_CreateTicketFields(t *testing.T) {
	env := setupTestServices(t)
	ctx := context.Background()
	event := env.createEvent(t, 10)

	ticket, err := env.tickets.CreateTicket(ctx, env.manager, issuer, event, ticketArgs("12"))
	require.NoError(t, err)

	assert.Equal(t, event.ID, ticket.EventID)
	assert.Equal(t, models.Identity(event.ID), ticket.UpdateAuthority)
	assert.Equal(t, holder, ticket.Owner)
	assert.Equal(t, gate, ticket.VenueAuthority)
	assert.Equal(t, "Main", ticket.Hall)
	assert.Equal(t, "A", ticket.Section)
	assert.Equal(t, "1", ticket.Row)
	assert.Equal(t, "12", ticket.Seat)
	assert.Equal(t, uint64(150000), ticket.Price)
	assert.Equal(t, models.Unscanned, ticket.ScanState)
	assert.Equal(t, models.Capabilities{Authority: env.manager.Address}, ticket.Capabilities)

	n, err := env.store.GetAdapterDataLength(ctx, ticket.ID, gate.String())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)

	number, ok, err := env.store.GetAttribute(ctx, ticket.ID, models.AttrTicketNumber)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", number)

	fetched, err := env.tickets.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket, fetched)
}

func TestTicketService_CreateTicketOwnerDefaultsToCaller(t *testing.T) {
	env := setupTestServices(t)
	event := env.createEvent(t, 1)

	args := ticketArgs("1")
	args.Owner = ""
	ticket, err := env.tickets.CreateTicket(context.Background(), env.manager, issuer, event, args)
	require.NoError(t, err)
	assert.Equal(t, issuer, ticket.Owner)
}

func TestTicketService_CreateTicketRejected(t *testing.T) {
	env := setupTestServices(t)
	ctx := context.Background()
	event := env.createEvent(t, 2)

	_, err := env.tickets.CreateTicket(ctx, env.manager, "intruder", event, ticketArgs("1"))
	assert.ErrorIs(t, err, status.ErrInvalidAuthority)

	_, err = env.tickets.CreateTicket(ctx, env.manager, gate, event, ticketArgs("1"))
	assert.ErrorIs(t, err, status.ErrInvalidAuthority)

	args := ticketArgs("1")
	args.VenueAuthority = ""
	_, err = env.tickets.CreateTicket(ctx, env.manager, issuer, event, args)
	assert.ErrorIs(t, err, status.ErrInvalidAuthority)

	_, err = env.tickets.CreateTicket(ctx, env.manager, issuer, &models.Event{ID: "missing"}, ticketArgs("1"))
	assert.ErrorIs(t, err, status.ErrEventNotFound)

	_, err = env.tickets.CreateTicket(ctx, env.manager, issuer, nil, ticketArgs("1"))
	assert.ErrorIs(t, err, status.ErrEventNotFound)

	fetched, err := env.events.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), fetched.NumMinted)
}

func TestTicketService_CreateTicketBurnsNumberOnAssetFailure(t *testing.T) {
	env := setupTestServices(t)
	ctx := context.Background()
	event := env.createEvent(t, 3)

	env.useRegistry(&failingAssetRegistry{Registry: env.store})
	_, err := env.tickets.CreateTicket(ctx, env.manager, issuer, event, ticketArgs("1"))
	assert.Error(t, err)
	assert.Equal(t, uint64(1), event.NumMinted)

	env.useRegistry(env.store)
	ticket, err := env.tickets.CreateTicket(ctx, env.manager, issuer, event, ticketArgs("1"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), ticket.TicketNumber)
}

func TestTicketService_CreateTicketStaleHandle(t *testing.T) {
	env := setupTestServices(t)
	ctx := context.Background()
	event := env.createEvent(t, 1)
	stale := *event

	_, err := env.tickets.CreateTicket(ctx, env.manager, issuer, event, ticketArgs("1"))
	require.NoError(t, err)

	_, err = env.tickets.CreateTicket(ctx, env.manager, issuer, &stale, ticketArgs("2"))
	assert.ErrorIs(t, err, status.ErrMaximumTicketsReached)
	assert.Equal(t, uint64(1), stale.NumMinted)
}

func TestTicketService_CreateTicketConcurrentAtLastSeat(t *testing.T) {
	env := setupTestServices(t)
	ctx := context.Background()
	event := env.createEvent(t, 2)

	_, err := env.tickets.CreateTicket(ctx, env.manager, issuer, event, ticketArgs("1"))
	require.NoError(t, err)

	var wins, soldOut atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handle := &models.Event{ID: event.ID}
			_, err := env.tickets.CreateTicket(ctx, env.manager, issuer, handle, ticketArgs("2"))
			if err == nil {
				wins.Add(1)
			} else if assert.ErrorIs(t, err, status.ErrMaximumTicketsReached) {
				soldOut.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(1), soldOut.Load())

	fetched, err := env.events.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), fetched.NumMinted)
}

func TestTicketService_ScanTicket(t *testing.T) {
	env := setupTestServices(t)
	ctx := context.Background()
	event := env.createEvent(t, 2)

	ticket, err := env.tickets.CreateTicket(ctx, env.manager, issuer, event, ticketArgs("1"))
	require.NoError(t, err)

	require.NoError(t, env.tickets.ScanTicket(ctx, env.manager, gate, event, ticket))
	assert.True(t, ticket.IsScanned())
	assert.True(t, ticket.IsFrozen())

	fetched, err := env.tickets.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Scanned, fetched.ScanState)
	assert.True(t, fetched.Capabilities.Frozen)
	assert.False(t, fetched.Capabilities.Transferable)
	assert.False(t, fetched.Capabilities.Burnable)

	n, err := env.store.GetAdapterDataLength(ctx, ticket.ID, gate.String())
	require.NoError(t, err)
	assert.Equal(t, uint64(len(models.ScanMarker)), n)

	err = env.tickets.ScanTicket(ctx, env.manager, gate, event, ticket)
	assert.ErrorIs(t, err, status.ErrAlreadyScanned)

	fetched, err = env.tickets.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.True(t, fetched.IsFrozen())

	env.publisher.AssertCalled(t, "Publish", notify.EventChannel(event.ID), notify.TypeTicketScanned)
}

func TestTicketService_ScanTicketStaleHandle(t *testing.T) {
	env := setupTestServices(t)
	ctx := context.Background()
	event := env.createEvent(t, 1)

	ticket, err := env.tickets.CreateTicket(ctx, env.manager, issuer, event, ticketArgs("1"))
	require.NoError(t, err)
	stale := *ticket

	require.NoError(t, env.tickets.ScanTicket(ctx, env.manager, gate, event, ticket))

	err = env.tickets.ScanTicket(ctx, env.manager, gate, event, &stale)
	assert.ErrorIs(t, err, status.ErrAlreadyScanned)
	assert.Equal(t, models.Unscanned, stale.ScanState)
}

func TestTicketService_ScanTicketRejected(t *testing.T) {
	env := setupTestServices(t)
	ctx := context.Background()
	event := env.createEvent(t, 2)
	other := env.createEvent(t, 2)

	ticket, err := env.tickets.CreateTicket(ctx, env.manager, issuer, event, ticketArgs("1"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		manager *models.Manager
		caller  models.Identity
		event   *models.Event
		ticket  *models.Ticket
		wantErr error
	}{
		{"Issuer is not the venue", env.manager, issuer, event, ticket, status.ErrInvalidAuthority},
		{"Other gate", env.manager, "gate-2", event, ticket, status.ErrInvalidAuthority},
		{"Wrong event", env.manager, gate, other, ticket, status.ErrInvalidAuthority},
		{"Unknown ticket", env.manager, gate, event, &models.Ticket{ID: "missing"}, status.ErrTicketNotFound},
		{"No ticket", env.manager, gate, event, nil, status.ErrTicketNotFound},
		{"No event", env.manager, gate, nil, ticket, status.ErrEventNotFound},
		{"No manager", nil, gate, event, ticket, status.ErrManagerNotInitialized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.tickets.ScanTicket(ctx, tt.manager, tt.caller, tt.event, tt.ticket)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	fetched, err := env.tickets.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Unscanned, fetched.ScanState)
	assert.False(t, fetched.IsFrozen())
}

func TestTicketService_ScanTicketUnboundOwner(t *testing.T) {
	env := setupTestServices(t)
	ctx := context.Background()
	event := env.createEvent(t, 1)

	asset, err := env.store.CreateAsset(ctx, registry.AssetInput{
		CollectionID: event.ID,
		Attributes: registry.NewAttributes(
			models.AttrTicketNumber, "1",
			models.AttrPrice, "0",
		),
		Capabilities: models.TicketCapabilities(env.manager),
		AdapterSlots: []string{gate.String()},
	})
	require.NoError(t, err)

	err = env.tickets.ScanTicket(ctx, env.manager, gate, event, &models.Ticket{ID: asset.ID})
	assert.ErrorIs(t, err, status.ErrInvalidAuthority)
}

func TestTicketService_ScanTicketConcurrent(t *testing.T) {
	env := setupTestServices(t)
	ctx := context.Background()
	event := env.createEvent(t, 1)

	ticket, err := env.tickets.CreateTicket(ctx, env.manager, issuer, event, ticketArgs("1"))
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handle := &models.Ticket{ID: ticket.ID}
			err := env.tickets.ScanTicket(ctx, env.manager, gate, event, handle)
			if err == nil {
				wins.Add(1)
			} else {
				assert.ErrorIs(t, err, status.ErrAlreadyScanned)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestTicketService_GetTicketMalformed(t *testing.T) {
	env := setupTestServices(t)
	ctx := context.Background()
	event := env.createEvent(t, 1)

	_, err := env.tickets.GetTicket(ctx, "missing")
	assert.ErrorIs(t, err, status.ErrTicketNotFound)

	asset, err := env.store.CreateAsset(ctx, registry.AssetInput{
		CollectionID: event.ID,
		Owner:        holder,
		Attributes: registry.NewAttributes(
			models.AttrTicketNumber, "one",
			models.AttrPrice, "0",
		),
		AdapterSlots: []string{gate.String()},
	})
	require.NoError(t, err)

	_, err = env.tickets.GetTicket(ctx, asset.ID)
	assert.ErrorIs(t, err, status.ErrMalformedAttribute)
}
