package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"ticktr/internal/notify"
	"ticktr/internal/registry"
	"ticktr/internal/status"
	"ticktr/models"
	"ticktr/monitoring"
)

type TicketService struct {
	Registry registry.Registry
	Guard    *CapacityGuard

	monitor   *monitoring.Monitor
	publisher notify.Publisher
	logger    *zap.Logger
}

func NewTicketService(reg registry.Registry, guard *CapacityGuard, monitor *monitoring.Monitor, publisher notify.Publisher, logger *zap.Logger) *TicketService {
	return &TicketService{
		Registry:  reg,
		Guard:     guard,
		monitor:   monitor,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateTicket mints the next numbered ticket of event. The event handle's
// NumMinted is refreshed to the committed counter. If the asset cannot be
// stored after the number was committed, that number stays used.
func (s *TicketService) CreateTicket(ctx context.Context, manager *models.Manager, caller models.Identity, event *models.Event, args models.CreateTicketArgs) (_ *models.Ticket, err error) {
	defer func() {
		fields := []zap.Field{zap.String("caller", caller.String())}
		if event != nil {
			fields = append(fields, zap.String("event_id", event.ID))
		}
		finish(s.logger, s.monitor, "create_ticket", err, fields...)
	}()

	if err := RequireAuthority(caller, manager); err != nil {
		return nil, err
	}
	if event == nil {
		return nil, status.ErrEventNotFound
	}
	if args.VenueAuthority.IsZero() {
		return nil, fmt.Errorf("%w: empty venue authority", status.ErrInvalidAuthority)
	}

	number, current, err := s.Guard.Reserve(ctx, event.ID)
	if current != nil {
		event.NumMinted = current.NumMinted
	}
	if err != nil {
		return nil, err
	}

	owner := args.Owner
	if owner.IsZero() {
		owner = caller
	}

	asset, err := s.Registry.CreateAsset(ctx, registry.AssetInput{
		CollectionID: event.ID,
		Name:         args.Name,
		URI:          args.URI,
		Owner:        owner,
		Attributes: registry.NewAttributes(
			models.AttrTicketNumber, strconv.FormatUint(number, 10),
			models.AttrHall, args.Hall,
			models.AttrSection, args.Section,
			models.AttrRow, args.Row,
			models.AttrSeat, args.Seat,
			models.AttrPrice, strconv.FormatUint(args.Price, 10),
		),
		Capabilities: models.TicketCapabilities(manager),
		AdapterSlots: []string{args.VenueAuthority.String()},
	})
	if err != nil {
		s.logger.Error("ticket number burned",
			zap.String("event_id", event.ID),
			zap.Uint64("ticket_number", number),
			zap.Error(err),
		)
		return nil, fmt.Errorf("create asset for ticket %d: %w", number, err)
	}

	ticket, err := ticketFromAsset(asset)
	if err != nil {
		return nil, err
	}

	s.monitor.TrackMint(event.ID, current.Remaining())
	s.logger.Info("ticket minted",
		zap.String("event_id", event.ID),
		zap.String("ticket_id", ticket.ID),
		zap.Uint64("ticket_number", number),
	)
	publish(ctx, s.publisher, s.logger, event.ID, map[string]any{
		"type":          notify.TypeTicketMinted,
		"event_id":      event.ID,
		"ticket_id":     ticket.ID,
		"ticket_number": number,
		"remaining":     current.Remaining(),
	})
	return ticket, nil
}

// ScanTicket consumes ticket at the gate. Only the venue authority recorded
// in the ticket may scan it, and only once; the scan freezes the ticket.
// On success the ticket handle is updated to the scanned state.
func (s *TicketService) ScanTicket(ctx context.Context, manager *models.Manager, caller models.Identity, event *models.Event, ticket *models.Ticket) (err error) {
	defer func() {
		fields := []zap.Field{zap.String("caller", caller.String())}
		if ticket != nil {
			fields = append(fields, zap.String("ticket_id", ticket.ID))
		}
		finish(s.logger, s.monitor, "scan_ticket", err, fields...)
	}()

	if manager == nil {
		return status.ErrManagerNotInitialized
	}
	if event == nil {
		return status.ErrEventNotFound
	}
	if ticket == nil {
		return status.ErrTicketNotFound
	}

	current, err := s.GetTicket(ctx, ticket.ID)
	if err != nil {
		return err
	}
	if err := RequireBoundOwner(current); err != nil {
		return err
	}
	if err := RequireTicketOfEvent(current, event); err != nil {
		return err
	}
	if err := RequireVenueAuthority(caller, current); err != nil {
		return err
	}

	slot := current.VenueAuthority.String()
	n, err := s.Registry.GetAdapterDataLength(ctx, current.ID, slot)
	if err != nil {
		return scanError(current.ID, err)
	}
	if n > 0 {
		return fmt.Errorf("%w: %s", status.ErrAlreadyScanned, current.ID)
	}

	err = s.Registry.WriteAdapterData(ctx, current.ID, slot, []byte(models.ScanMarker),
		registry.IfEmpty(),
		registry.WithCapabilityFlag(manager.Address, registry.CapabilityFrozen, true),
	)
	if err != nil {
		return scanError(current.ID, err)
	}

	*ticket = *current
	ticket.ScanState = models.Scanned
	ticket.Capabilities.Frozen = true

	s.logger.Info("ticket scanned",
		zap.String("event_id", event.ID),
		zap.String("ticket_id", ticket.ID),
		zap.Uint64("ticket_number", ticket.TicketNumber),
	)
	publish(ctx, s.publisher, s.logger, event.ID, map[string]any{
		"type":          notify.TypeTicketScanned,
		"event_id":      event.ID,
		"ticket_id":     ticket.ID,
		"ticket_number": ticket.TicketNumber,
	})
	return nil
}

func (s *TicketService) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	asset, err := s.Registry.FetchAsset(ctx, id)
	if errors.Is(err, registry.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", status.ErrTicketNotFound, id)
	} else if err != nil {
		return nil, err
	}
	return ticketFromAsset(asset)
}

func scanError(ticketID string, err error) error {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return fmt.Errorf("%w: %s", status.ErrTicketNotFound, ticketID)
	case errors.Is(err, registry.ErrSlotOccupied):
		return fmt.Errorf("%w: %s", status.ErrAlreadyScanned, ticketID)
	case errors.Is(err, registry.ErrSlotNotFound), errors.Is(err, registry.ErrUnauthorizedSigner):
		return fmt.Errorf("%w: ticket %s: %v", status.ErrInvalidAuthority, ticketID, err)
	default:
		return err
	}
}

// ticketFromAsset parses the ticket attributes. A ticket has exactly one
// adapter slot, keyed by its venue authority; a non-empty slot means the
// ticket was scanned.
func ticketFromAsset(a *registry.Asset) (*models.Ticket, error) {
	number, err := uintAttribute(a, models.AttrTicketNumber)
	if err != nil {
		return nil, err
	}
	price, err := uintAttribute(a, models.AttrPrice)
	if err != nil {
		return nil, err
	}

	keys := a.AdapterKeys()
	if len(keys) != 1 {
		return nil, fmt.Errorf("%w: ticket %s has %d scan slots", status.ErrMalformedAttribute, a.ID, len(keys))
	}
	venue := keys[0]

	scanState := models.Unscanned
	if len(a.AdapterData[venue]) > 0 {
		scanState = models.Scanned
	}

	hall, _ := a.Attributes.Get(models.AttrHall)
	section, _ := a.Attributes.Get(models.AttrSection)
	row, _ := a.Attributes.Get(models.AttrRow)
	seat, _ := a.Attributes.Get(models.AttrSeat)

	return &models.Ticket{
		ID:              a.ID,
		EventID:         a.CollectionID,
		Name:            a.Name,
		URI:             a.URI,
		TicketNumber:    number,
		Hall:            hall,
		Section:         section,
		Row:             row,
		Seat:            seat,
		Price:           price,
		Owner:           a.Owner,
		VenueAuthority:  models.Identity(venue),
		UpdateAuthority: models.Identity(a.CollectionID),
		ScanState:       scanState,
		Capabilities:    a.Capabilities,
	}, nil
}

func uintAttribute(a *registry.Asset, key string) (uint64, error) {
	raw, ok := a.Attributes.Get(key)
	if !ok {
		return 0, fmt.Errorf("%w: %s on ticket %s", status.ErrMissingAttribute, key, a.ID)
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q on ticket %s", status.ErrMalformedAttribute, key, raw, a.ID)
	}
	return v, nil
}
