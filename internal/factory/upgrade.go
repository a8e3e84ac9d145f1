package factory

import (
	"fmt"
	"strings"
)

// Kind is the stable identity of an upgrade. Conditional effects look other
// upgrades up by Kind, never by name.
type Kind string

// AbsentName is the sentinel name for "no upgrade chosen" on a track.
const AbsentName = "No Upgrade"

const KindAbsent Kind = "absent"

// Effect mutates a production state on behalf of one owned upgrade.
type Effect func(s *State) error

// Upgrade is one purchasable effect. Identity fields are fixed at catalog
// build time; only the owned flag changes, and only on engine-held copies.
type Upgrade struct {
	kind          Kind
	name          string
	track         string
	description   string
	level         int
	cost          int64
	refund        int64
	deterministic bool
	effect        Effect

	owned bool
}

func (u *Upgrade) Kind() Kind          { return u.kind }
func (u *Upgrade) Name() string        { return u.name }
func (u *Upgrade) Track() string       { return u.track }
func (u *Upgrade) Description() string { return u.description }
func (u *Upgrade) Level() int          { return u.level }
func (u *Upgrade) Cost() int64         { return u.cost }
func (u *Upgrade) RefundValue() int64  { return u.refund }
func (u *Upgrade) Owned() bool         { return u.owned }

// HasRandomChance is a display hint for forecasts. The engine ignores it.
func (u *Upgrade) HasRandomChance() bool { return !u.deterministic }

func (u *Upgrade) IsAbsent() bool { return u.kind == KindAbsent }

// Apply runs the upgrade's effect against s.
func (u *Upgrade) Apply(s *State) error {
	if u.IsAbsent() {
		return fmt.Errorf("%w: cannot apply absent upgrade", ErrInvariantViolation)
	}
	if u.effect == nil {
		return fmt.Errorf("%w: upgrade %q has no effect", ErrInvariantViolation, u.name)
	}
	return u.effect(s)
}

func (u *Upgrade) String() string {
	return u.track + "/" + u.name
}

// sameIdentity matches on (track, name), which is how ownership is keyed.
func (u *Upgrade) sameIdentity(other *Upgrade) bool {
	return strings.EqualFold(u.track, other.track) && strings.EqualFold(u.name, other.name)
}

func (u *Upgrade) clone() *Upgrade {
	c := *u
	c.owned = false
	return &c
}

// AbsentUpgrade returns a fresh sentinel for an empty track position.
func AbsentUpgrade() *Upgrade {
	return &Upgrade{
		kind:          KindAbsent,
		name:          AbsentName,
		description:   "Nothing selected.",
		deterministic: true,
	}
}

// UpgradeSpec describes an upgrade template for NewCatalog.
type UpgradeSpec struct {
	Kind          Kind
	Name          string
	Description   string
	Level         int
	Cost          int64
	Refund        int64
	Deterministic bool
	Effect        Effect
}

func (spec UpgradeSpec) build(track string) *Upgrade {
	return &Upgrade{
		kind:          spec.Kind,
		name:          spec.Name,
		track:         track,
		description:   spec.Description,
		level:         spec.Level,
		cost:          spec.Cost,
		refund:        spec.Refund,
		deterministic: spec.Deterministic,
		effect:        spec.Effect,
	}
}
