package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/energyiot/core/model"
	"github.com/kilianp07/energyiot/core/store"
)

// Seed holds trigger and action group definitions loaded into the store at
// startup.
type Seed struct {
	Triggers []model.Trigger     `json:"triggers"`
	Groups   []model.ActionGroup `json:"groups"`
}

// LoadSeed reads a YAML or JSON seed file. Documents are decoded with the
// JSON tags of the model types.
func LoadSeed(path string) (Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, err
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Seed{}, fmt.Errorf("parse seed %s: %w", path, err)
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return Seed{}, fmt.Errorf("parse seed %s: %w", path, err)
	}
	var s Seed
	if err := json.Unmarshal(js, &s); err != nil {
		return Seed{}, fmt.Errorf("decode seed %s: %w", path, err)
	}
	for i, t := range s.Triggers {
		if t.ID == "" {
			return Seed{}, fmt.Errorf("seed trigger %d: id is required", i)
		}
	}
	return s, nil
}

// Apply upserts the seed into st. Stored tokens are kept when the seed
// leaves them empty.
func (s Seed) Apply(ctx context.Context, st store.Store) error {
	for _, t := range s.Triggers {
		if err := st.SaveTrigger(ctx, t); err != nil {
			return fmt.Errorf("seed trigger %s: %w", t.ID, err)
		}
	}
	for _, g := range s.Groups {
		if g.Token == "" {
			cur, err := st.GetActionGroup(ctx, g.ID)
			if err != nil {
				return fmt.Errorf("seed group %s: %w", g.ID, err)
			}
			if cur != nil {
				g.Token = cur.Token
			}
		}
		if err := st.SaveActionGroup(ctx, g); err != nil {
			return fmt.Errorf("seed group %s: %w", g.ID, err)
		}
	}
	return nil
}
