package registry

import (
	"context"
	"errors"

	"ticktr/models"
)

var (
	ErrNotFound            = errors.New("registry: entity not found")
	ErrMintConflict        = errors.New("registry: num minted changed concurrently")
	ErrCounterOverflow     = errors.New("registry: num minted at the store's integer limit")
	ErrSlotNotFound        = errors.New("registry: adapter slot not found")
	ErrSlotOccupied        = errors.New("registry: adapter slot already written")
	ErrUnauthorizedSigner  = errors.New("registry: signer does not hold the capability")
	ErrImmutableCapability = errors.New("registry: capability flag is immutable")
	ErrManagerExists       = errors.New("registry: manager already exists")
	ErrManagerNotFound     = errors.New("registry: manager not found")
)

// Capability names a flag in an asset's capability set.
type Capability string

const (
	CapabilityFrozen       Capability = "frozen"
	CapabilityTransferable Capability = "transferable"
	CapabilityBurnable     Capability = "burnable"
)

// Mutable reports whether the flag may be changed after the asset exists.
func (c Capability) Mutable() bool {
	return c == CapabilityFrozen
}

// Collection groups assets; events are stored as collections.
type Collection struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	URI             string          `json:"uri"`
	UpdateAuthority models.Identity `json:"update_authority"`
	NumMinted       uint64          `json:"num_minted"`
	Attributes      Attributes      `json:"attributes"`
}

type CollectionInput struct {
	Name            string
	URI             string
	UpdateAuthority models.Identity
	Attributes      Attributes
}

// Asset is a single item of a collection; tickets are stored as assets.
// The collection is the asset's update authority.
type Asset struct {
	ID           string              `json:"id"`
	CollectionID string              `json:"collection_id"`
	Name         string              `json:"name"`
	URI          string              `json:"uri"`
	Owner        models.Identity     `json:"owner"`
	Attributes   Attributes          `json:"attributes"`
	Capabilities models.Capabilities `json:"capabilities"`
	AdapterData  map[string][]byte   `json:"adapter_data"`
}

// AdapterKeys returns the keys of the asset's adapter slots.
func (a *Asset) AdapterKeys() []string {
	keys := make([]string, 0, len(a.AdapterData))
	for k := range a.AdapterData {
		keys = append(keys, k)
	}
	return keys
}

type AssetInput struct {
	CollectionID string
	Name         string
	URI          string
	Owner        models.Identity
	Attributes   Attributes
	Capabilities models.Capabilities
	// AdapterSlots are created empty; only these keys can ever be written.
	AdapterSlots []string
}

// WriteOption changes how WriteAdapterData applies.
type WriteOption func(*WriteOptions)

type WriteOptions struct {
	IfEmpty   bool
	Flag      Capability
	FlagValue bool
	Signer    models.Identity
}

// IfEmpty rejects the write with ErrSlotOccupied unless the slot is empty.
func IfEmpty() WriteOption {
	return func(o *WriteOptions) {
		o.IfEmpty = true
	}
}

// WithCapabilityFlag sets a capability flag in the same atomic unit as the
// data write. signer must be the asset's capability authority.
func WithCapabilityFlag(signer models.Identity, flag Capability, value bool) WriteOption {
	return func(o *WriteOptions) {
		o.Flag = flag
		o.FlagValue = value
		o.Signer = signer
	}
}

// ApplyWriteOptions folds opts and validates the requested flag change.
func ApplyWriteOptions(opts ...WriteOption) (WriteOptions, error) {
	var o WriteOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.Flag != "" && !o.Flag.Mutable() {
		return o, ErrImmutableCapability
	}
	return o, nil
}

// Registry is the external asset/attribute registry the ticket lifecycle
// runs against.
type Registry interface {
	// CreateCollection stores a new collection with NumMinted = 0
	CreateCollection(ctx context.Context, in CollectionInput) (*Collection, error)

	// CreateAsset stores a new asset in an existing collection
	CreateAsset(ctx context.Context, in AssetInput) (*Asset, error)

	FetchCollection(ctx context.Context, id string) (*Collection, error)

	FetchAsset(ctx context.Context, id string) (*Asset, error)

	// GetAttribute looks up key on a collection or an asset
	GetAttribute(ctx context.Context, id, key string) (string, bool, error)

	// GetAdapterDataLength returns the length of the data in an adapter slot
	GetAdapterDataLength(ctx context.Context, assetID, key string) (uint64, error)

	// WriteAdapterData replaces the data of an existing adapter slot
	WriteAdapterData(ctx context.Context, assetID, key string, data []byte, opts ...WriteOption) error

	// AdvanceMinted increments NumMinted by one if it still equals expected,
	// otherwise it fails with ErrMintConflict
	AdvanceMinted(ctx context.Context, collectionID string, expected uint64) error
}

// ManagerStore keeps the manager singleton.
type ManagerStore interface {
	// InitManager stores m unless a manager exists (ErrManagerExists)
	InitManager(ctx context.Context, m *models.Manager) error

	LoadManager(ctx context.Context) (*models.Manager, error)
}

// Store is everything a backend provides.
type Store interface {
	Registry
	ManagerStore
}
