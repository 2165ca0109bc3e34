package redisstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"ticktr/internal/registry"
	"ticktr/models"
)

//go:embed scripts/advance_minted.lua
var advanceMintedSource string

//go:embed scripts/write_adapter_data.lua
var writeAdapterDataSource string

var (
	advanceMintedScript    = redis.NewScript(advanceMintedSource)
	writeAdapterDataScript = redis.NewScript(writeAdapterDataSource)
)

const managerKey = "ticktr:manager"

func collectionKey(id string) string {
	return fmt.Sprintf("ticktr:collection:%s", id)
}

func assetKey(id string) string {
	return fmt.Sprintf("ticktr:asset:%s", id)
}

func adapterKey(id string) string {
	return fmt.Sprintf("ticktr:asset:%s:adapter", id)
}

// Store implements registry.Store on Redis hashes. Multi-step updates run
// as Lua scripts so each one is atomic on the server.
type Store struct {
	Redis *redis.Client
}

func New(redisClient *redis.Client) *Store {
	return &Store{Redis: redisClient}
}

func (s *Store) InitManager(ctx context.Context, m *models.Manager) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	ok, err := s.Redis.SetNX(ctx, managerKey, string(data), 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return registry.ErrManagerExists
	}
	return nil
}

func (s *Store) LoadManager(ctx context.Context) (*models.Manager, error) {
	data, err := s.Redis.Get(ctx, managerKey).Result()
	if err == redis.Nil {
		return nil, registry.ErrManagerNotFound
	} else if err != nil {
		return nil, err
	}

	var m models.Manager
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("decode manager: %w", err)
	}
	return &m, nil
}

func (s *Store) CreateCollection(ctx context.Context, in registry.CollectionInput) (*registry.Collection, error) {
	attrs, err := json.Marshal(in.Attributes)
	if err != nil {
		return nil, err
	}

	c := &registry.Collection{
		ID:              uuid.NewString(),
		Name:            in.Name,
		URI:             in.URI,
		UpdateAuthority: in.UpdateAuthority,
		Attributes:      in.Attributes.Clone(),
	}

	err = s.Redis.HSet(ctx, collectionKey(c.ID),
		"name", c.Name,
		"uri", c.URI,
		"update_authority", string(c.UpdateAuthority),
		"num_minted", "0",
		"attributes", string(attrs),
	).Err()
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) CreateAsset(ctx context.Context, in registry.AssetInput) (*registry.Asset, error) {
	n, err := s.Redis.Exists(ctx, collectionKey(in.CollectionID)).Result()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("collection %s: %w", in.CollectionID, registry.ErrNotFound)
	}

	attrs, err := json.Marshal(in.Attributes)
	if err != nil {
		return nil, err
	}

	a := &registry.Asset{
		ID:           uuid.NewString(),
		CollectionID: in.CollectionID,
		Name:         in.Name,
		URI:          in.URI,
		Owner:        in.Owner,
		Attributes:   in.Attributes.Clone(),
		Capabilities: in.Capabilities,
		AdapterData:  make(map[string][]byte, len(in.AdapterSlots)),
	}

	slots := make([]any, 0, 2*len(in.AdapterSlots))
	for _, key := range in.AdapterSlots {
		a.AdapterData[key] = []byte{}
		slots = append(slots, key, "")
	}

	_, err = s.Redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, assetKey(a.ID),
			"collection", a.CollectionID,
			"name", a.Name,
			"uri", a.URI,
			"owner", string(a.Owner),
			"attributes", string(attrs),
			"capability_authority", string(a.Capabilities.Authority),
			"frozen", flag(a.Capabilities.Frozen),
			"transferable", flag(a.Capabilities.Transferable),
			"burnable", flag(a.Capabilities.Burnable),
		)
		if len(slots) > 0 {
			pipe.HSet(ctx, adapterKey(a.ID), slots...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) FetchCollection(ctx context.Context, id string) (*registry.Collection, error) {
	fields, err := s.Redis.HGetAll(ctx, collectionKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("collection %s: %w", id, registry.ErrNotFound)
	}

	numMinted, err := strconv.ParseUint(fields["num_minted"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("collection %s: num_minted %q: %w", id, fields["num_minted"], err)
	}
	attrs, err := decodeAttributes(fields["attributes"])
	if err != nil {
		return nil, fmt.Errorf("collection %s: %w", id, err)
	}

	return &registry.Collection{
		ID:              id,
		Name:            fields["name"],
		URI:             fields["uri"],
		UpdateAuthority: models.Identity(fields["update_authority"]),
		NumMinted:       numMinted,
		Attributes:      attrs,
	}, nil
}

// FetchAsset reads the asset hash and its adapter hash inside one
// MULTI/EXEC so the scan marker and the frozen flag are seen together.
func (s *Store) FetchAsset(ctx context.Context, id string) (*registry.Asset, error) {
	var fieldsCmd, slotsCmd *redis.MapStringStringCmd
	_, err := s.Redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		fieldsCmd = pipe.HGetAll(ctx, assetKey(id))
		slotsCmd = pipe.HGetAll(ctx, adapterKey(id))
		return nil
	})
	if err != nil {
		return nil, err
	}

	fields := fieldsCmd.Val()
	if len(fields) == 0 {
		return nil, fmt.Errorf("asset %s: %w", id, registry.ErrNotFound)
	}
	attrs, err := decodeAttributes(fields["attributes"])
	if err != nil {
		return nil, fmt.Errorf("asset %s: %w", id, err)
	}

	a := &registry.Asset{
		ID:           id,
		CollectionID: fields["collection"],
		Name:         fields["name"],
		URI:          fields["uri"],
		Owner:        models.Identity(fields["owner"]),
		Attributes:   attrs,
		Capabilities: models.Capabilities{
			Authority:    models.Identity(fields["capability_authority"]),
			Frozen:       fields["frozen"] == "1",
			Transferable: fields["transferable"] == "1",
			Burnable:     fields["burnable"] == "1",
		},
		AdapterData: make(map[string][]byte),
	}
	for k, v := range slotsCmd.Val() {
		a.AdapterData[k] = []byte(v)
	}
	return a, nil
}

func (s *Store) GetAttribute(ctx context.Context, id, key string) (string, bool, error) {
	for _, hashKey := range []string{collectionKey(id), assetKey(id)} {
		raw, err := s.Redis.HGet(ctx, hashKey, "attributes").Result()
		if err == redis.Nil {
			continue
		} else if err != nil {
			return "", false, err
		}

		attrs, err := decodeAttributes(raw)
		if err != nil {
			return "", false, fmt.Errorf("%s: %w", id, err)
		}
		v, ok := attrs.Get(key)
		return v, ok, nil
	}
	return "", false, fmt.Errorf("%s: %w", id, registry.ErrNotFound)
}

func (s *Store) GetAdapterDataLength(ctx context.Context, assetID, key string) (uint64, error) {
	data, err := s.Redis.HGet(ctx, adapterKey(assetID), key).Result()
	if err == nil {
		return uint64(len(data)), nil
	}
	if err != redis.Nil {
		return 0, err
	}

	n, err := s.Redis.Exists(ctx, assetKey(assetID)).Result()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("asset %s: %w", assetID, registry.ErrNotFound)
	}
	return 0, registry.ErrSlotNotFound
}

func (s *Store) WriteAdapterData(ctx context.Context, assetID, key string, data []byte, opts ...registry.WriteOption) error {
	o, err := registry.ApplyWriteOptions(opts...)
	if err != nil {
		return err
	}

	ifEmpty := "0"
	if o.IfEmpty {
		ifEmpty = "1"
	}

	keys := []string{assetKey(assetID), adapterKey(assetID)}
	args := []any{
		key,               // ARGV[1]: slot key
		string(data),      // ARGV[2]: data
		ifEmpty,           // ARGV[3]: require empty slot
		string(o.Flag),    // ARGV[4]: capability flag
		flag(o.FlagValue), // ARGV[5]: flag value
		string(o.Signer),  // ARGV[6]: signer
	}

	code, err := writeAdapterDataScript.Run(ctx, s.Redis, keys, args...).Text()
	if err != nil {
		return fmt.Errorf("write_adapter_data script: %w", err)
	}

	switch code {
	case "OK":
		return nil
	case "NOT_FOUND":
		return fmt.Errorf("asset %s: %w", assetID, registry.ErrNotFound)
	case "NO_SLOT":
		return registry.ErrSlotNotFound
	case "OCCUPIED":
		return registry.ErrSlotOccupied
	case "UNAUTHORIZED":
		return registry.ErrUnauthorizedSigner
	default:
		return fmt.Errorf("write_adapter_data script: unexpected result %q", code)
	}
}

func (s *Store) AdvanceMinted(ctx context.Context, collectionID string, expected uint64) error {
	keys := []string{collectionKey(collectionID)}
	code, err := advanceMintedScript.Run(ctx, s.Redis, keys, strconv.FormatUint(expected, 10)).Text()
	if err != nil {
		return fmt.Errorf("advance_minted script: %w", err)
	}

	switch code {
	case "OK":
		return nil
	case "CONFLICT":
		return registry.ErrMintConflict
	case "NOT_FOUND":
		return fmt.Errorf("collection %s: %w", collectionID, registry.ErrNotFound)
	case "OVERFLOW":
		return fmt.Errorf("collection %s: %w", collectionID, registry.ErrCounterOverflow)
	default:
		return fmt.Errorf("advance_minted script: unexpected result %q", code)
	}
}

func decodeAttributes(raw string) (registry.Attributes, error) {
	if raw == "" {
		return nil, nil
	}
	var attrs registry.Attributes
	if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
		return nil, errors.Join(errors.New("decode attributes"), err)
	}
	return attrs, nil
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
