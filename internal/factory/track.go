package factory

import (
	"fmt"
	"sort"
	"strings"
)

// Track is an ordered, leveled progression of upgrades sharing a theme.
type Track struct {
	name     string
	flavor   string
	upgrades []*Upgrade
}

// TrackSpec is a track template for NewCatalog.
type TrackSpec struct {
	Name     string
	Flavor   string
	Upgrades []UpgradeSpec
}

func newTrack(name, flavor string, upgrades []*Upgrade) (*Track, error) {
	levels := make(map[int]struct{}, len(upgrades))
	names := make(map[string]struct{}, len(upgrades))
	for _, u := range upgrades {
		if u.level < 1 {
			return nil, fmt.Errorf("%w: track %q: upgrade %q has level %d", ErrInvalidArgument, name, u.name, u.level)
		}
		if u.name == AbsentName {
			return nil, fmt.Errorf("%w: track %q: %q is reserved", ErrInvalidArgument, name, AbsentName)
		}
		if _, dup := levels[u.level]; dup {
			return nil, fmt.Errorf("%w: track %q: duplicate level %d", ErrInvalidArgument, name, u.level)
		}
		key := strings.ToLower(u.name)
		if _, dup := names[key]; dup {
			return nil, fmt.Errorf("%w: track %q: duplicate upgrade %q", ErrInvalidArgument, name, u.name)
		}
		levels[u.level] = struct{}{}
		names[key] = struct{}{}
	}
	sorted := make([]*Upgrade, len(upgrades))
	copy(sorted, upgrades)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].level < sorted[j].level })
	return &Track{name: name, flavor: flavor, upgrades: sorted}, nil
}

func (t *Track) Name() string   { return t.name }
func (t *Track) Flavor() string { return t.flavor }

// Upgrades returns the members in ascending level order.
func (t *Track) Upgrades() []*Upgrade {
	out := make([]*Upgrade, len(t.upgrades))
	copy(out, t.upgrades)
	return out
}

// Upgrade finds a member by name. AbsentName always yields a fresh sentinel.
func (t *Track) Upgrade(name string) (*Upgrade, error) {
	if name == AbsentName {
		return AbsentUpgrade(), nil
	}
	for _, u := range t.upgrades {
		if strings.EqualFold(u.name, strings.TrimSpace(name)) {
			return u, nil
		}
	}
	return nil, fmt.Errorf("%w: upgrade %q on track %q", ErrNotFound, name, t.name)
}

func (t *Track) UpgradeAtLevel(level int) (*Upgrade, error) {
	for _, u := range t.upgrades {
		if u.level == level {
			return u, nil
		}
	}
	return nil, fmt.Errorf("%w: no level %d upgrade on track %q", ErrNotFound, level, t.name)
}

func (t *Track) indexOf(u *Upgrade) (int, error) {
	for i, m := range t.upgrades {
		if m.sameIdentity(u) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q is not on track %q", ErrInvalidArgument, u.name, t.name)
}

// Next returns the upgrade after u, or the first upgrade when u is absent.
// Stepping past the top returns an absent upgrade.
func (t *Track) Next(u *Upgrade) (*Upgrade, error) {
	if u == nil {
		return nil, fmt.Errorf("%w: nil upgrade", ErrInvalidArgument)
	}
	if u.IsAbsent() {
		if len(t.upgrades) == 0 {
			return AbsentUpgrade(), nil
		}
		return t.upgrades[0], nil
	}
	i, err := t.indexOf(u)
	if err != nil {
		return nil, err
	}
	if i+1 >= len(t.upgrades) {
		return AbsentUpgrade(), nil
	}
	return t.upgrades[i+1], nil
}

// Previous returns the upgrade before u. Absent in, absent out.
func (t *Track) Previous(u *Upgrade) (*Upgrade, error) {
	if u == nil {
		return nil, fmt.Errorf("%w: nil upgrade", ErrInvalidArgument)
	}
	if u.IsAbsent() {
		return AbsentUpgrade(), nil
	}
	i, err := t.indexOf(u)
	if err != nil {
		return nil, err
	}
	if i == 0 {
		return AbsentUpgrade(), nil
	}
	return t.upgrades[i-1], nil
}

func (t *Track) IsMax(name string) bool {
	if name == AbsentName || len(t.upgrades) == 0 {
		return false
	}
	return strings.EqualFold(t.upgrades[len(t.upgrades)-1].name, name)
}

func (t *Track) IsLowest(name string) bool {
	if name == AbsentName || len(t.upgrades) == 0 {
		return false
	}
	return strings.EqualFold(t.upgrades[0].name, name)
}

// OwnsAny reports whether the track has been started.
func (t *Track) OwnsAny() bool {
	for _, u := range t.upgrades {
		if u.owned {
			return true
		}
	}
	return false
}

// Highest returns the highest-level owned member, or an absent upgrade.
func (t *Track) Highest() *Upgrade {
	for i := len(t.upgrades) - 1; i >= 0; i-- {
		if t.upgrades[i].owned {
			return t.upgrades[i]
		}
	}
	return AbsentUpgrade()
}
