package services

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"ticktr/internal/notify"
	"ticktr/internal/registry"
	"ticktr/internal/status"
	"ticktr/models"
	"ticktr/monitoring"
)

type EventService struct {
	Registry registry.Registry

	monitor   *monitoring.Monitor
	publisher notify.Publisher
	logger    *zap.Logger
}

func NewEventService(reg registry.Registry, monitor *monitoring.Monitor, publisher notify.Publisher, logger *zap.Logger) *EventService {
	return &EventService{
		Registry:  reg,
		monitor:   monitor,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateEvent stores a new event with nothing minted. Only the manager
// authority may create events.
func (s *EventService) CreateEvent(ctx context.Context, manager *models.Manager, caller models.Identity, args models.CreateEventArgs) (_ *models.Event, err error) {
	defer func() {
		finish(s.logger, s.monitor, "create_event", err, zap.String("caller", caller.String()))
	}()

	if err := RequireAuthority(caller, manager); err != nil {
		return nil, err
	}
	if args.Capacity == 0 {
		return nil, status.ErrInvalidCapacity
	}

	collection, err := s.Registry.CreateCollection(ctx, registry.CollectionInput{
		Name:            args.Name,
		URI:             args.URI,
		UpdateAuthority: manager.Address,
		Attributes: registry.NewAttributes(
			models.AttrCity, args.City,
			models.AttrVenue, args.Venue,
			models.AttrArtist, args.Artist,
			models.AttrDate, args.Date,
			models.AttrTime, args.Time,
			models.AttrCapacity, strconv.FormatUint(args.Capacity, 10),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	event, err := eventFromCollection(collection)
	if err != nil {
		return nil, err
	}

	s.monitor.TrackCapacity(event.ID, event.Remaining())
	s.logger.Info("event created",
		zap.String("event_id", event.ID),
		zap.String("name", event.Name),
		zap.Uint64("capacity", event.Capacity),
	)
	publish(ctx, s.publisher, s.logger, event.ID, map[string]any{
		"type":     notify.TypeEventCreated,
		"event_id": event.ID,
		"capacity": event.Capacity,
	})
	return event, nil
}

func (s *EventService) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	collection, err := s.Registry.FetchCollection(ctx, id)
	if err != nil {
		return nil, eventLookupError(id, err)
	}
	return eventFromCollection(collection)
}

// eventFromCollection parses the event attributes. The capacity attribute is
// required; every other display attribute defaults to empty.
func eventFromCollection(c *registry.Collection) (*models.Event, error) {
	raw, ok := c.Attributes.Get(models.AttrCapacity)
	if !ok {
		return nil, fmt.Errorf("%w: %s on event %s", status.ErrMissingAttribute, models.AttrCapacity, c.ID)
	}
	capacity, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q on event %s", status.ErrMalformedCapacity, raw, c.ID)
	}

	city, _ := c.Attributes.Get(models.AttrCity)
	venue, _ := c.Attributes.Get(models.AttrVenue)
	artist, _ := c.Attributes.Get(models.AttrArtist)
	date, _ := c.Attributes.Get(models.AttrDate)
	eventTime, _ := c.Attributes.Get(models.AttrTime)

	return &models.Event{
		ID:              c.ID,
		Name:            c.Name,
		URI:             c.URI,
		City:            city,
		Venue:           venue,
		Artist:          artist,
		Date:            date,
		Time:            eventTime,
		Capacity:        capacity,
		NumMinted:       c.NumMinted,
		UpdateAuthority: c.UpdateAuthority,
	}, nil
}
