package models

// Event attribute keys.
const (
	AttrCity     = "City"
	AttrVenue    = "Venue"
	AttrArtist   = "Artist"
	AttrDate     = "Date"
	AttrTime     = "Time"
	AttrCapacity = "Capacity"
)

type CreateEventArgs struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	City     string `json:"city"`
	Venue    string `json:"venue"`
	Artist   string `json:"artist"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Capacity uint64 `json:"capacity"`
}

type Event struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	URI             string   `json:"uri"`
	City            string   `json:"city"`
	Venue           string   `json:"venue"`
	Artist          string   `json:"artist"`
	Date            string   `json:"date"`
	Time            string   `json:"time"`
	Capacity        uint64   `json:"capacity"`
	NumMinted       uint64   `json:"num_minted"`
	UpdateAuthority Identity `json:"update_authority"`
}

// Remaining returns how many tickets can still be minted.
func (e *Event) Remaining() uint64 {
	if e.NumMinted >= e.Capacity {
		return 0
	}
	return e.Capacity - e.NumMinted
}

func (e *Event) SoldOut() bool {
	return e.NumMinted >= e.Capacity
}
