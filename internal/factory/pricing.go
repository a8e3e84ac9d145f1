package factory

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Pricing overrides catalog prices and copy without touching effects.
//
//	upgrades:
//	  - track: Assembly
//	    name: Conveyor Belt
//	    cost: 75
//	    refund: 30
type Pricing struct {
	Upgrades []PriceOverride `yaml:"upgrades"`
}

type PriceOverride struct {
	Track       string `yaml:"track"`
	Name        string `yaml:"name"`
	Cost        *int64 `yaml:"cost,omitempty"`
	Refund      *int64 `yaml:"refund,omitempty"`
	Description string `yaml:"description,omitempty"`
}

func LoadPricing(path string) (Pricing, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Pricing{}, fmt.Errorf("read pricing: %w", err)
	}
	return ParsePricing(raw)
}

func ParsePricing(raw []byte) (Pricing, error) {
	var p Pricing
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Pricing{}, fmt.Errorf("parse pricing: %w", err)
	}
	return p, nil
}

// WithPricing returns a new catalog with the overrides applied. Every
// override must name an existing upgrade.
func (c *Catalog) WithPricing(p Pricing) (*Catalog, error) {
	specs := make([]TrackSpec, len(c.specs))
	for i, ts := range c.specs {
		ups := make([]UpgradeSpec, len(ts.Upgrades))
		copy(ups, ts.Upgrades)
		specs[i] = TrackSpec{Name: ts.Name, Flavor: ts.Flavor, Upgrades: ups}
	}
	for _, o := range p.Upgrades {
		us, err := findSpec(specs, o.Track, o.Name)
		if err != nil {
			return nil, err
		}
		if o.Cost != nil {
			us.Cost = *o.Cost
		}
		if o.Refund != nil {
			us.Refund = *o.Refund
		}
		if d := strings.TrimSpace(o.Description); d != "" {
			us.Description = d
		}
	}
	return NewCatalog(specs...)
}

func findSpec(specs []TrackSpec, track, name string) (*UpgradeSpec, error) {
	for i := range specs {
		if !strings.EqualFold(specs[i].Name, strings.TrimSpace(track)) {
			continue
		}
		for j := range specs[i].Upgrades {
			if strings.EqualFold(specs[i].Upgrades[j].Name, strings.TrimSpace(name)) {
				return &specs[i].Upgrades[j], nil
			}
		}
	}
	return nil, fmt.Errorf("%w: pricing override for %s/%s", ErrNotFound, track, name)
}
