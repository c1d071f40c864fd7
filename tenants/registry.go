package tenants

import (
	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// registryFile is the on-disk shape of the systems registry. Systems are
// deploy-time configuration: the product lines rarely change, so they ship as
// a TOML file applied to the repo at startup.
type registryFile struct {
	Systems []registrySystem `toml:"systems"`
}

type registrySystem struct {
	Slug         string `toml:"slug"`
	DisplayName  string `toml:"display_name"`
	Icon         string `toml:"icon"`
	Color        string `toml:"color"`
	DisplayOrder int    `toml:"display_order"`
}

// LoadSystemsRegistry parses a systems registry file and upserts every entry.
func LoadSystemsRegistry(path string, repo Repo) error {
	var file registryFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return errors.Wrap(err, "[LoadSystemsRegistry] decode")
	}

	for _, s := range file.Systems {
		slug, err := ValidateSlug(s.Slug)
		if err != nil {
			return errors.Wrap(err, "[LoadSystemsRegistry] system slug")
		}
		existing, err := repo.GetSystem(slug)
		system := &System{
			ID:           uuid.NewString(),
			Slug:         slug,
			DisplayName:  s.DisplayName,
			Icon:         s.Icon,
			Color:        s.Color,
			DisplayOrder: s.DisplayOrder,
		}
		if err == nil && existing != nil {
			system.ID = existing.ID
		}
		if err := repo.UpsertSystem(system); err != nil {
			return errors.Wrapf(err, "[LoadSystemsRegistry] upsert %q", slug)
		}
	}
	return nil
}
