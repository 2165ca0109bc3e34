package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"ticktr/models"
)

// MemoryStore is a Store kept in process memory. A single mutex serializes
// every write, which makes each method one atomic unit.
type MemoryStore struct {
	mu          sync.RWMutex
	manager     *models.Manager
	collections map[string]*Collection
	assets      map[string]*Asset
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]*Collection),
		assets:      make(map[string]*Asset),
	}
}

func (s *MemoryStore) InitManager(ctx context.Context, m *models.Manager) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.manager != nil {
		return ErrManagerExists
	}
	cp := *m
	s.manager = &cp
	return nil
}

func (s *MemoryStore) LoadManager(ctx context.Context) (*models.Manager, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.manager == nil {
		return nil, ErrManagerNotFound
	}
	cp := *s.manager
	return &cp, nil
}

func (s *MemoryStore) CreateCollection(ctx context.Context, in CollectionInput) (*Collection, error) {
	c := &Collection{
		ID:              uuid.NewString(),
		Name:            in.Name,
		URI:             in.URI,
		UpdateAuthority: in.UpdateAuthority,
		Attributes:      in.Attributes.Clone(),
	}

	s.mu.Lock()
	s.collections[c.ID] = c
	s.mu.Unlock()

	return cloneCollection(c), nil
}

func (s *MemoryStore) CreateAsset(ctx context.Context, in AssetInput) (*Asset, error) {
	a := &Asset{
		ID:           uuid.NewString(),
		CollectionID: in.CollectionID,
		Name:         in.Name,
		URI:          in.URI,
		Owner:        in.Owner,
		Attributes:   in.Attributes.Clone(),
		Capabilities: in.Capabilities,
		AdapterData:  make(map[string][]byte, len(in.AdapterSlots)),
	}
	for _, key := range in.AdapterSlots {
		a.AdapterData[key] = []byte{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[in.CollectionID]; !ok {
		return nil, fmt.Errorf("collection %s: %w", in.CollectionID, ErrNotFound)
	}
	s.assets[a.ID] = a

	return cloneAsset(a), nil
}

func (s *MemoryStore) FetchCollection(ctx context.Context, id string) (*Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[id]
	if !ok {
		return nil, fmt.Errorf("collection %s: %w", id, ErrNotFound)
	}
	return cloneCollection(c), nil
}

func (s *MemoryStore) FetchAsset(ctx context.Context, id string) (*Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assets[id]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	return cloneAsset(a), nil
}

func (s *MemoryStore) GetAttribute(ctx context.Context, id, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.collections[id]; ok {
		v, found := c.Attributes.Get(key)
		return v, found, nil
	}
	if a, ok := s.assets[id]; ok {
		v, found := a.Attributes.Get(key)
		return v, found, nil
	}
	return "", false, fmt.Errorf("%s: %w", id, ErrNotFound)
}

func (s *MemoryStore) GetAdapterDataLength(ctx context.Context, assetID, key string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assets[assetID]
	if !ok {
		return 0, fmt.Errorf("asset %s: %w", assetID, ErrNotFound)
	}
	data, ok := a.AdapterData[key]
	if !ok {
		return 0, ErrSlotNotFound
	}
	return uint64(len(data)), nil
}

func (s *MemoryStore) WriteAdapterData(ctx context.Context, assetID, key string, data []byte, opts ...WriteOption) error {
	o, err := ApplyWriteOptions(opts...)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assets[assetID]
	if !ok {
		return fmt.Errorf("asset %s: %w", assetID, ErrNotFound)
	}
	current, ok := a.AdapterData[key]
	if !ok {
		return ErrSlotNotFound
	}
	if o.IfEmpty && len(current) > 0 {
		return ErrSlotOccupied
	}
	if o.Flag != "" && o.Signer != a.Capabilities.Authority {
		return ErrUnauthorizedSigner
	}

	a.AdapterData[key] = append([]byte(nil), data...)
	if o.Flag == CapabilityFrozen {
		a.Capabilities.Frozen = o.FlagValue
	}
	return nil
}

func (s *MemoryStore) AdvanceMinted(ctx context.Context, collectionID string, expected uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collectionID]
	if !ok {
		return fmt.Errorf("collection %s: %w", collectionID, ErrNotFound)
	}
	if c.NumMinted != expected {
		return ErrMintConflict
	}
	c.NumMinted++
	return nil
}

func cloneCollection(c *Collection) *Collection {
	cp := *c
	cp.Attributes = c.Attributes.Clone()
	return &cp
}

func cloneAsset(a *Asset) *Asset {
	cp := *a
	cp.Attributes = a.Attributes.Clone()
	cp.AdapterData = make(map[string][]byte, len(a.AdapterData))
	for k, v := range a.AdapterData {
		cp.AdapterData[k] = append([]byte{}, v...)
	}
	return &cp
}
