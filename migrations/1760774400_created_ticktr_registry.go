package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"

	"ticktr/internal/registry/pbstore"
)

func init() {
	m.Register(func(app core.App) error {
		managers := core.NewBaseCollection(pbstore.ManagersCollection)
		managers.Fields.Add(
			&core.TextField{Name: "seed", Required: true},
			&core.TextField{Name: "address", Required: true},
			&core.TextField{Name: "authority", Required: true},
			&core.DateField{Name: "created_at"},
		)
		managers.AddIndex("idx_ticktr_managers_seed", true, "seed", "")
		if err := app.Save(managers); err != nil {
			return err
		}

		collections := core.NewBaseCollection(pbstore.CollectionsCollection)
		collections.Fields.Add(
			&core.TextField{Name: "name"},
			&core.TextField{Name: "uri", Max: 2048},
			&core.TextField{Name: "update_authority", Required: true},
			&core.NumberField{Name: "num_minted", OnlyInt: true},
			&core.JSONField{Name: "attributes"},
		)
		if err := app.Save(collections); err != nil {
			return err
		}

		assets := core.NewBaseCollection(pbstore.AssetsCollection)
		assets.Fields.Add(
			&core.RelationField{Name: "collection", CollectionId: collections.Id, MaxSelect: 1, Required: true},
			&core.TextField{Name: "name"},
			&core.TextField{Name: "uri", Max: 2048},
			&core.TextField{Name: "owner"},
			&core.JSONField{Name: "attributes"},
			&core.TextField{Name: "capability_authority"},
			&core.BoolField{Name: "frozen"},
			&core.BoolField{Name: "transferable"},
			&core.BoolField{Name: "burnable"},
			&core.JSONField{Name: "adapter_data"},
		)
		assets.AddIndex("idx_ticktr_assets_collection", false, "collection", "")
		return app.Save(assets)
	}, func(app core.App) error {
		for _, name := range []string{pbstore.AssetsCollection, pbstore.CollectionsCollection, pbstore.ManagersCollection} {
			collection, err := app.FindCollectionByNameOrId(name)
			if err != nil {
				return err
			}
			if err := app.Delete(collection); err != nil {
				return err
			}
		}
		return nil
	})
}
