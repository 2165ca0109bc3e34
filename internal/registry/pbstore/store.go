package pbstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"

	"ticktr/internal/registry"
	"ticktr/models"
)

// Collection names created by the ticktr migrations.
const (
	ManagersCollection    = "ticktr_managers"
	CollectionsCollection = "ticktr_collections"
	AssetsCollection      = "ticktr_assets"
)

// Store implements registry.Store on PocketBase records. Read-modify-write
// operations run inside RunInTransaction, which PocketBase executes on its
// single writer connection.
type Store struct {
	App core.App
}

func New(app core.App) *Store {
	return &Store{App: app}
}

func (s *Store) InitManager(ctx context.Context, m *models.Manager) error {
	return s.App.RunInTransaction(func(txApp core.App) error {
		_, err := txApp.FindFirstRecordByFilter(ManagersCollection, "seed = {:seed}", dbx.Params{"seed": models.ManagerSeed})
		if err == nil {
			return registry.ErrManagerExists
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		collection, err := txApp.FindCollectionByNameOrId(ManagersCollection)
		if err != nil {
			return err
		}

		record := core.NewRecord(collection)
		record.Set("seed", models.ManagerSeed)
		record.Set("address", string(m.Address))
		record.Set("authority", string(m.Authority))
		record.Set("created_at", m.CreatedAt)
		return txApp.SaveWithContext(ctx, record)
	})
}

func (s *Store) LoadManager(ctx context.Context) (*models.Manager, error) {
	record, err := s.App.FindFirstRecordByFilter(ManagersCollection, "seed = {:seed}", dbx.Params{"seed": models.ManagerSeed})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, registry.ErrManagerNotFound
	} else if err != nil {
		return nil, err
	}

	return &models.Manager{
		Address:   models.Identity(record.GetString("address")),
		Authority: models.Identity(record.GetString("authority")),
		CreatedAt: record.GetDateTime("created_at").Time(),
	}, nil
}

func (s *Store) CreateCollection(ctx context.Context, in registry.CollectionInput) (*registry.Collection, error) {
	collection, err := s.App.FindCollectionByNameOrId(CollectionsCollection)
	if err != nil {
		return nil, err
	}

	attrs := in.Attributes.Clone()
	if attrs == nil {
		attrs = registry.Attributes{}
	}

	record := core.NewRecord(collection)
	record.Set("name", in.Name)
	record.Set("uri", in.URI)
	record.Set("update_authority", string(in.UpdateAuthority))
	record.Set("num_minted", 0)
	record.Set("attributes", attrs)
	if err := s.App.SaveWithContext(ctx, record); err != nil {
		return nil, err
	}

	return &registry.Collection{
		ID:              record.Id,
		Name:            in.Name,
		URI:             in.URI,
		UpdateAuthority: in.UpdateAuthority,
		Attributes:      in.Attributes.Clone(),
	}, nil
}

func (s *Store) CreateAsset(ctx context.Context, in registry.AssetInput) (*registry.Asset, error) {
	if _, err := s.findRecord(CollectionsCollection, in.CollectionID); err != nil {
		return nil, err
	}

	collection, err := s.App.FindCollectionByNameOrId(AssetsCollection)
	if err != nil {
		return nil, err
	}

	attrs := in.Attributes.Clone()
	if attrs == nil {
		attrs = registry.Attributes{}
	}
	slots := make(map[string]string, len(in.AdapterSlots))
	for _, key := range in.AdapterSlots {
		slots[key] = ""
	}

	record := core.NewRecord(collection)
	record.Set("collection", in.CollectionID)
	record.Set("name", in.Name)
	record.Set("uri", in.URI)
	record.Set("owner", string(in.Owner))
	record.Set("attributes", attrs)
	record.Set("capability_authority", string(in.Capabilities.Authority))
	record.Set("frozen", in.Capabilities.Frozen)
	record.Set("transferable", in.Capabilities.Transferable)
	record.Set("burnable", in.Capabilities.Burnable)
	record.Set("adapter_data", slots)
	if err := s.App.SaveWithContext(ctx, record); err != nil {
		return nil, err
	}

	return assetFromRecord(record)
}

func (s *Store) FetchCollection(ctx context.Context, id string) (*registry.Collection, error) {
	record, err := s.findRecord(CollectionsCollection, id)
	if err != nil {
		return nil, err
	}
	return collectionFromRecord(record)
}

func (s *Store) FetchAsset(ctx context.Context, id string) (*registry.Asset, error) {
	record, err := s.findRecord(AssetsCollection, id)
	if err != nil {
		return nil, err
	}
	return assetFromRecord(record)
}

func (s *Store) GetAttribute(ctx context.Context, id, key string) (string, bool, error) {
	for _, name := range []string{CollectionsCollection, AssetsCollection} {
		record, err := s.App.FindRecordById(name, id)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		} else if err != nil {
			return "", false, err
		}

		var attrs registry.Attributes
		if err := record.UnmarshalJSONField("attributes", &attrs); err != nil {
			return "", false, fmt.Errorf("%s: decode attributes: %w", id, err)
		}
		v, ok := attrs.Get(key)
		return v, ok, nil
	}
	return "", false, fmt.Errorf("%s: %w", id, registry.ErrNotFound)
}

func (s *Store) GetAdapterDataLength(ctx context.Context, assetID, key string) (uint64, error) {
	record, err := s.findRecord(AssetsCollection, assetID)
	if err != nil {
		return 0, err
	}

	slots, err := adapterSlots(record)
	if err != nil {
		return 0, err
	}
	data, ok := slots[key]
	if !ok {
		return 0, registry.ErrSlotNotFound
	}
	return uint64(len(data)), nil
}

func (s *Store) WriteAdapterData(ctx context.Context, assetID, key string, data []byte, opts ...registry.WriteOption) error {
	o, err := registry.ApplyWriteOptions(opts...)
	if err != nil {
		return err
	}

	return s.App.RunInTransaction(func(txApp core.App) error {
		record, err := txApp.FindRecordById(AssetsCollection, assetID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("asset %s: %w", assetID, registry.ErrNotFound)
		} else if err != nil {
			return err
		}

		slots, err := adapterSlots(record)
		if err != nil {
			return err
		}
		current, ok := slots[key]
		if !ok {
			return registry.ErrSlotNotFound
		}
		if o.IfEmpty && len(current) > 0 {
			return registry.ErrSlotOccupied
		}
		if o.Flag != "" && string(o.Signer) != record.GetString("capability_authority") {
			return registry.ErrUnauthorizedSigner
		}

		slots[key] = string(data)
		record.Set("adapter_data", slots)
		if o.Flag != "" {
			record.Set(string(o.Flag), o.FlagValue)
		}
		return txApp.SaveWithContext(ctx, record)
	})
}

// AdvanceMinted is a single conditional UPDATE; zero affected rows means
// the counter moved or the collection does not exist.
func (s *Store) AdvanceMinted(ctx context.Context, collectionID string, expected uint64) error {
	res, err := s.App.NonconcurrentDB().
		NewQuery("UPDATE {{" + CollectionsCollection + "}} SET [[num_minted]] = [[num_minted]] + 1 WHERE [[id]] = {:id} AND [[num_minted]] = {:expected}").
		WithContext(ctx).
		Bind(dbx.Params{"id": collectionID, "expected": expected}).
		Execute()
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	if _, err := s.findRecord(CollectionsCollection, collectionID); err != nil {
		return err
	}
	return registry.ErrMintConflict
}

func (s *Store) findRecord(collection, id string) (*core.Record, error) {
	record, err := s.App.FindRecordById(collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", collection, id, registry.ErrNotFound)
	}
	return record, err
}

func collectionFromRecord(record *core.Record) (*registry.Collection, error) {
	var attrs registry.Attributes
	if err := record.UnmarshalJSONField("attributes", &attrs); err != nil {
		return nil, fmt.Errorf("collection %s: decode attributes: %w", record.Id, err)
	}

	numMinted := record.GetInt("num_minted")
	if numMinted < 0 {
		return nil, fmt.Errorf("collection %s: negative num_minted %d", record.Id, numMinted)
	}

	return &registry.Collection{
		ID:              record.Id,
		Name:            record.GetString("name"),
		URI:             record.GetString("uri"),
		UpdateAuthority: models.Identity(record.GetString("update_authority")),
		NumMinted:       uint64(numMinted),
		Attributes:      attrs,
	}, nil
}

func assetFromRecord(record *core.Record) (*registry.Asset, error) {
	var attrs registry.Attributes
	if err := record.UnmarshalJSONField("attributes", &attrs); err != nil {
		return nil, fmt.Errorf("asset %s: decode attributes: %w", record.Id, err)
	}
	slots, err := adapterSlots(record)
	if err != nil {
		return nil, err
	}

	a := &registry.Asset{
		ID:           record.Id,
		CollectionID: record.GetString("collection"),
		Name:         record.GetString("name"),
		URI:          record.GetString("uri"),
		Owner:        models.Identity(record.GetString("owner")),
		Attributes:   attrs,
		Capabilities: models.Capabilities{
			Authority:    models.Identity(record.GetString("capability_authority")),
			Frozen:       record.GetBool("frozen"),
			Transferable: record.GetBool("transferable"),
			Burnable:     record.GetBool("burnable"),
		},
		AdapterData: make(map[string][]byte, len(slots)),
	}
	for k, v := range slots {
		a.AdapterData[k] = []byte(v)
	}
	return a, nil
}

func adapterSlots(record *core.Record) (map[string]string, error) {
	slots := map[string]string{}
	if err := record.UnmarshalJSONField("adapter_data", &slots); err != nil {
		return nil, fmt.Errorf("asset %s: decode adapter data: %w", record.Id, err)
	}
	return slots, nil
}
