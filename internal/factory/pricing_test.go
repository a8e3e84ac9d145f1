package factory

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const samplePricing = `
upgrades:
  - track: assembly
    name: conveyor belt
    cost: 75
    refund: 30
  - track: Lottery
    name: Golden Ticket
    description: "A very shiny ticket."
`

func TestWithPricingOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	if err := os.WriteFile(path, []byte(samplePricing), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	p, err := LoadPricing(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	priced, err := DefaultCatalog().WithPricing(p)
	if err != nil {
		t.Fatalf("with pricing: %v", err)
	}

	u, err := priced.Resolve(TrackAssembly, "Conveyor Belt")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if u.Cost() != 75 || u.RefundValue() != 30 {
		t.Fatalf("cost=%d refund=%d", u.Cost(), u.RefundValue())
	}
	g, _ := priced.Resolve(TrackLottery, "Golden Ticket")
	if g.Description() != "A very shiny ticket." || g.Cost() != 10_000 {
		t.Fatalf("golden ticket=%q cost=%d", g.Description(), g.Cost())
	}

	orig, _ := DefaultCatalog().Resolve(TrackAssembly, "Conveyor Belt")
	if orig.Cost() != 50 {
		t.Fatalf("default catalog changed: cost=%d", orig.Cost())
	}
}

func TestWithPricingRejectsUnknownAndInvalid(t *testing.T) {
	if _, err := DefaultCatalog().WithPricing(Pricing{Upgrades: []PriceOverride{{Track: "Assembly", Name: "Hamster Wheel"}}}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown override err=%v", err)
	}
	neg := int64(-1)
	if _, err := DefaultCatalog().WithPricing(Pricing{Upgrades: []PriceOverride{{Track: "Assembly", Name: "Conveyor Belt", Cost: &neg}}}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("negative override err=%v", err)
	}
	if _, err := ParsePricing([]byte("upgrades: [")); err == nil {
		t.Fatalf("expected parse error")
	}
}
