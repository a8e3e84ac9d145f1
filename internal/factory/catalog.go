package factory

import (
	"fmt"
	"strings"
	"sync"
)

// Lookup is what an engine needs from a catalog.
type Lookup interface {
	Resolve(track, upgrade string) (*Upgrade, error)
	Tracks() []*Track
}

// Catalog is a read-only registry of track templates. Every query hands out
// fresh, unowned copies so ownership only ever lives on engine-held upgrades.
type Catalog struct {
	specs []TrackSpec
}

var defaultCatalog = sync.OnceValue(func() *Catalog {
	c, err := NewCatalog(defaultTracks()...)
	if err != nil {
		panic(fmt.Sprintf("factory: default catalog: %v", err))
	}
	return c
})

// DefaultCatalog is the process-wide catalog, built on first use.
func DefaultCatalog() *Catalog {
	return defaultCatalog()
}

// NewCatalog validates the specs and returns an isolated catalog.
func NewCatalog(specs ...TrackSpec) (*Catalog, error) {
	trackNames := make(map[string]struct{}, len(specs))
	kinds := make(map[Kind]string)
	for _, ts := range specs {
		name := strings.TrimSpace(ts.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: track name is required", ErrInvalidArgument)
		}
		key := strings.ToLower(name)
		if _, dup := trackNames[key]; dup {
			return nil, fmt.Errorf("%w: duplicate track %q", ErrInvalidArgument, name)
		}
		trackNames[key] = struct{}{}
		for _, us := range ts.Upgrades {
			if us.Kind == "" || us.Kind == KindAbsent {
				return nil, fmt.Errorf("%w: upgrade %q needs a kind", ErrInvalidArgument, us.Name)
			}
			if prev, dup := kinds[us.Kind]; dup {
				return nil, fmt.Errorf("%w: kind %q used by %q and %q", ErrInvalidArgument, us.Kind, prev, us.Name)
			}
			kinds[us.Kind] = us.Name
			if us.Effect == nil {
				return nil, fmt.Errorf("%w: upgrade %q has no effect", ErrInvalidArgument, us.Name)
			}
			if us.Cost < 0 || us.Refund < 0 {
				return nil, fmt.Errorf("%w: upgrade %q has a negative price", ErrInvalidArgument, us.Name)
			}
		}
		if _, err := buildTrack(ts); err != nil {
			return nil, err
		}
	}
	out := make([]TrackSpec, len(specs))
	for i, ts := range specs {
		ups := make([]UpgradeSpec, len(ts.Upgrades))
		copy(ups, ts.Upgrades)
		out[i] = TrackSpec{Name: strings.TrimSpace(ts.Name), Flavor: ts.Flavor, Upgrades: ups}
	}
	return &Catalog{specs: out}, nil
}

func buildTrack(ts TrackSpec) (*Track, error) {
	ups := make([]*Upgrade, 0, len(ts.Upgrades))
	for _, us := range ts.Upgrades {
		ups = append(ups, us.build(strings.TrimSpace(ts.Name)))
	}
	return newTrack(strings.TrimSpace(ts.Name), ts.Flavor, ups)
}

// Tracks returns a fresh unowned snapshot of every track.
func (c *Catalog) Tracks() []*Track {
	out := make([]*Track, 0, len(c.specs))
	for _, ts := range c.specs {
		t, err := buildTrack(ts)
		if err != nil {
			// Specs were validated in NewCatalog.
			panic(err)
		}
		out = append(out, t)
	}
	return out
}

func (c *Catalog) Track(name string) (*Track, error) {
	name = strings.TrimSpace(name)
	for _, ts := range c.specs {
		if strings.EqualFold(ts.Name, name) {
			return buildTrack(ts)
		}
	}
	return nil, fmt.Errorf("%w: track %q", ErrNotFound, name)
}

// Resolve returns a clean, unowned copy of the named upgrade.
func (c *Catalog) Resolve(track, upgrade string) (*Upgrade, error) {
	t, err := c.Track(track)
	if err != nil {
		return nil, err
	}
	u, err := t.Upgrade(upgrade)
	if err != nil {
		return nil, err
	}
	if u.IsAbsent() {
		return nil, fmt.Errorf("%w: %q is not a purchasable upgrade", ErrNotFound, AbsentName)
	}
	return u, nil
}

// UpgradeCount is the number of upgrade templates across all tracks.
func (c *Catalog) UpgradeCount() int {
	n := 0
	for _, ts := range c.specs {
		n += len(ts.Upgrades)
	}
	return n
}
