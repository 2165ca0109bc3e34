package models

import "time"

// ManagerSeed is the seed of the manager's derived address.
const ManagerSeed = "manager"

type Manager struct {
	Address   Identity  `json:"address"`
	Authority Identity  `json:"authority"`
	CreatedAt time.Time `json:"created_at"`
}

// NewManager binds authority to the manager singleton.
func NewManager(authority Identity) *Manager {
	return &Manager{
		Address:   DeriveAddress(ManagerSeed),
		Authority: authority,
		CreatedAt: time.Now().UTC(),
	}
}
