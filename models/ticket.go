package models

// Ticket attribute keys.
const (
	AttrTicketNumber = "Ticket Number"
	AttrHall         = "Hall"
	AttrSection      = "Section"
	AttrRow          = "Row"
	AttrSeat         = "Seat"
	AttrPrice        = "Price"
)

// ScanMarker is written into a ticket's scan-record slot when it is scanned.
const ScanMarker = "Scanned"

type ScanState string

const (
	Unscanned ScanState = "unscanned"
	Scanned   ScanState = "scanned"
)

type CreateTicketArgs struct {
	Name           string   `json:"name"`
	URI            string   `json:"uri"`
	Hall           string   `json:"hall"`
	Section        string   `json:"section"`
	Row            string   `json:"row"`
	Seat           string   `json:"seat"`
	Price          uint64   `json:"price"`
	VenueAuthority Identity `json:"venue_authority"`
	Owner          Identity `json:"owner,omitempty"` // defaults to the minting caller
}

// Capabilities is the fixed capability set attached to every ticket at mint.
// Transfer and burn stay disabled for the ticket's lifetime; Frozen flips
// once, together with the scan.
type Capabilities struct {
	Authority    Identity `json:"authority"`
	Frozen       bool     `json:"frozen"`
	Transferable bool     `json:"transferable"`
	Burnable     bool     `json:"burnable"`
}

// TicketCapabilities returns the capability set every new ticket carries.
func TicketCapabilities(manager *Manager) Capabilities {
	return Capabilities{Authority: manager.Address}
}

type Ticket struct {
	ID              string       `json:"id"`
	EventID         string       `json:"event_id"`
	Name            string       `json:"name"`
	URI             string       `json:"uri"`
	TicketNumber    uint64       `json:"ticket_number"`
	Hall            string       `json:"hall"`
	Section         string       `json:"section"`
	Row             string       `json:"row"`
	Seat            string       `json:"seat"`
	Price           uint64       `json:"price"`
	Owner           Identity     `json:"owner"`
	VenueAuthority  Identity     `json:"venue_authority"`
	UpdateAuthority Identity     `json:"update_authority"`
	ScanState       ScanState    `json:"scan_state"` // unscanned, scanned
	Capabilities    Capabilities `json:"capabilities"`
}

func (t *Ticket) IsScanned() bool {
	return t.ScanState == Scanned
}

func (t *Ticket) IsFrozen() bool {
	return t.Capabilities.Frozen
}
