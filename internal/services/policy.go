package services

import (
	"fmt"

	"ticktr/internal/status"
	"ticktr/models"
)

// RequireAuthority passes only for the manager's issuing authority.
func RequireAuthority(caller models.Identity, manager *models.Manager) error {
	if manager == nil {
		return status.ErrManagerNotInitialized
	}
	if caller.IsZero() || caller != manager.Authority {
		return fmt.Errorf("%w: %q is not the manager authority", status.ErrInvalidAuthority, caller)
	}
	return nil
}

// RequireVenueAuthority passes only for the venue authority recorded in the
// ticket at mint.
func RequireVenueAuthority(caller models.Identity, ticket *models.Ticket) error {
	if ticket.VenueAuthority.IsZero() || caller != ticket.VenueAuthority {
		return fmt.Errorf("%w: %q is not the venue authority of ticket %s", status.ErrInvalidAuthority, caller, ticket.ID)
	}
	return nil
}

func RequireTicketOfEvent(ticket *models.Ticket, event *models.Event) error {
	if string(ticket.UpdateAuthority) != event.ID {
		return fmt.Errorf("%w: ticket %s does not belong to event %s", status.ErrInvalidAuthority, ticket.ID, event.ID)
	}
	return nil
}

func RequireBoundOwner(ticket *models.Ticket) error {
	if ticket.Owner.IsZero() {
		return fmt.Errorf("%w: ticket %s has no owner", status.ErrInvalidAuthority, ticket.ID)
	}
	return nil
}
