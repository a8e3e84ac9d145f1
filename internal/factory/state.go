package factory

import (
	"math"
	"strings"
)

// Bound names one of the advisory forecast values on a State.
type Bound int

const (
	BoundHighestBase Bound = iota + 1
	BoundHighestWorking
	BoundLowestWorking
)

type lane struct {
	base    int64
	working int64
}

// Wipe records a wipe that actually fired during a cycle.
type Wipe struct {
	Kind     Kind    `json:"kind"`
	Fraction float64 `json:"fraction"`
	Coins    int64   `json:"coins"`
}

// State is the scratch space for one production cycle. It is created by the
// engine, handed to every owned upgrade in purchase order and then dropped.
//
// Three lanes run side by side: the actual outcome, the best case and the
// worst case. Deterministic primitives move all three; random gains always
// move the best lane and wipes always move the worst one, so
// LowestPossibleWorking <= Working <= HighestPossibleWorking holds after
// every step.
type State struct {
	seed     int64
	starting int64

	actual lane
	best   lane
	worst  lane

	possibleWipe float64
	wipes        []Wipe

	owned   []*Upgrade
	rng     RandomSource
	current *Upgrade
}

func newState(seed int64, owned []*Upgrade, rng RandomSource) *State {
	if rng == nil {
		rng = DefaultRandom()
	}
	start := lane{base: seed, working: seed}
	return &State{
		seed:     seed,
		starting: seed,
		actual:   start,
		best:     start,
		worst:    start,
		owned:    owned,
		rng:      rng,
	}
}

// Seed is the engine balance the cycle started from. Unlike Starting it never moves.
func (s *State) Seed() int64 { return s.seed }

func (s *State) Starting() int64 { return s.starting }

func (s *State) Base() int64 { return s.actual.base }

func (s *State) Working() int64 { return s.actual.working }

func (s *State) HighestPossibleBase() int64 { return s.best.base }

func (s *State) HighestPossibleWorking() int64 { return s.best.working }

func (s *State) LowestPossibleWorking() int64 { return s.worst.working }

// PossibleWipeFraction is the largest share of this cycle's produced coins
// that the registered wipes could destroy together.
func (s *State) PossibleWipeFraction() float64 { return s.possibleWipe }

// Produced is what the cycle made above the (possibly raised) starting value.
func (s *State) Produced() int64 { return s.actual.working - s.starting }

// Delta is how far the engine balance moves when this state is committed.
func (s *State) Delta() int64 { return s.actual.working - s.seed }

func (s *State) Wipes() []Wipe {
	out := make([]Wipe, len(s.wipes))
	copy(out, s.wipes)
	return out
}

// Owned returns the owning engine's upgrades in purchase order.
func (s *State) Owned() []*Upgrade {
	out := make([]*Upgrade, len(s.owned))
	copy(out, s.owned)
	return out
}

func (s *State) Owns(kind Kind) bool {
	for _, u := range s.owned {
		if u.kind == kind {
			return true
		}
	}
	return false
}

func (s *State) OwnsTrack(track string) bool {
	for _, u := range s.owned {
		if strings.EqualFold(u.track, track) {
			return true
		}
	}
	return false
}

func (s *State) OwnedCount() int { return len(s.owned) }

// OwnedTrackCount counts distinct tracks with at least one owned upgrade.
func (s *State) OwnedTrackCount() int {
	seen := make(map[string]struct{}, len(s.owned))
	for _, u := range s.owned {
		seen[strings.ToLower(u.track)] = struct{}{}
	}
	return len(seen)
}

// OwnsLevelOutside reports whether an upgrade of the given level is owned on
// any track other than track.
func (s *State) OwnsLevelOutside(level int, track string) bool {
	for _, u := range s.owned {
		if u.level == level && !strings.EqualFold(u.track, track) {
			return true
		}
	}
	return false
}

func (s *State) lanes() [3]*lane {
	return [3]*lane{&s.actual, &s.best, &s.worst}
}

// RaiseBase grows base production and realizes the same amount this cycle.
func (s *State) RaiseBase(delta int64) {
	for _, l := range s.lanes() {
		l.base = addSat(l.base, delta)
		l.working = addSat(l.working, delta)
	}
}

// ScaleBase is RaiseBase by a fraction of each lane's current base.
func (s *State) ScaleBase(fraction float64) {
	for _, l := range s.lanes() {
		d := round(float64(l.base) * fraction)
		l.base = addSat(l.base, d)
		l.working = addSat(l.working, d)
	}
}

func (s *State) RaiseWorking(delta int64) {
	for _, l := range s.lanes() {
		l.working = addSat(l.working, delta)
	}
}

func (s *State) ScaleWorking(fraction float64) {
	for _, l := range s.lanes() {
		l.working = addSat(l.working, round(float64(l.working)*fraction))
	}
}

// ScaleProduced adds a fraction of the coins produced so far this cycle.
func (s *State) ScaleProduced(fraction float64) {
	for _, l := range s.lanes() {
		l.working = addSat(l.working, round(float64(subSat(l.working, s.starting))*fraction))
	}
}

// RaiseStarting lifts the zero point used for produced coins and wipes. It
// lives only as long as this state; the next cycle starts from the committed
// balance again.
func (s *State) RaiseStarting(delta int64) {
	s.starting = addSat(s.starting, delta)
}

// RegisterBound widens a forecast bound. It never touches base or working.
func (s *State) RegisterBound(b Bound, value int64) {
	switch b {
	case BoundHighestBase:
		if value > s.best.base {
			s.best.base = value
		}
	case BoundHighestWorking:
		if value > s.best.working {
			s.best.working = value
		}
	case BoundLowestWorking:
		if value < s.worst.working {
			s.worst.working = value
		}
	}
}

func (s *State) draw(probability float64) bool {
	return s.rng.Float64() < probability
}

// chance draws once and applies fn to the actual lane on a hit. The best lane
// always takes the gain and the worst lane only when it is certain.
func (s *State) chance(probability float64, fn func(l *lane)) bool {
	hit := s.draw(probability)
	if probability <= 0 {
		return false
	}
	fn(&s.best)
	if probability >= 1 {
		fn(&s.worst)
	}
	if hit {
		fn(&s.actual)
	}
	return hit
}

func (s *State) ChanceRaiseWorking(probability float64, delta int64) bool {
	return s.chance(probability, func(l *lane) { l.working = addSat(l.working, delta) })
}

func (s *State) ChanceScaleWorking(probability, fraction float64) bool {
	return s.chance(probability, func(l *lane) {
		l.working = addSat(l.working, round(float64(l.working)*fraction))
	})
}

func (s *State) ChanceRaiseBase(probability float64, delta int64) bool {
	return s.chance(probability, func(l *lane) {
		l.base = addSat(l.base, delta)
		l.working = addSat(l.working, delta)
	})
}

func (s *State) ChanceScaleBase(probability, fraction float64) bool {
	return s.chance(probability, func(l *lane) {
		d := round(float64(l.base) * fraction)
		l.base = addSat(l.base, d)
		l.working = addSat(l.working, d)
	})
}

// MaybeWipe destroys fraction of the coins produced this cycle with the given
// probability. The worst case is registered whether or not the wipe fires.
func (s *State) MaybeWipe(fraction, probability float64) bool {
	fraction = math.Max(0, math.Min(1, fraction))
	hit := s.draw(probability)
	if probability <= 0 || fraction == 0 {
		return false
	}

	worst := s.worst
	s.wipeLane(&worst, fraction)
	s.RegisterBound(BoundLowestWorking, worst.working)
	if probability >= 1 {
		s.wipeLane(&s.best, fraction)
	}
	s.possibleWipe += (1 - s.possibleWipe) * fraction

	if !hit {
		return false
	}
	lost := s.wipeLane(&s.actual, fraction)
	w := Wipe{Fraction: fraction, Coins: lost}
	if s.current != nil {
		w.Kind = s.current.kind
	}
	s.wipes = append(s.wipes, w)
	return true
}

func (s *State) wipeLane(l *lane, fraction float64) int64 {
	produced := subSat(l.working, s.starting)
	if produced <= 0 {
		return 0
	}
	lost := round(float64(produced) * fraction)
	l.working = subSat(l.working, lost)
	return lost
}

// Lane arithmetic saturates at the int64 range. A long-running factory with
// compounding upgrades reaches the ceiling and stays there.

// 2^63 as a float64; int64 conversion is undefined at or beyond it.
const twoTo63 = float64(1 << 63)

func round(v float64) int64 {
	v = math.Round(v)
	switch {
	case math.IsNaN(v):
		return 0
	case v >= twoTo63:
		return math.MaxInt64
	case v < -twoTo63:
		return math.MinInt64
	}
	return int64(v)
}

func addSat(a, b int64) int64 {
	sum := a + b
	switch {
	case b > 0 && sum < a:
		return math.MaxInt64
	case b < 0 && sum > a:
		return math.MinInt64
	}
	return sum
}

func subSat(a, b int64) int64 {
	if b == math.MinInt64 {
		if a >= 0 {
			return math.MaxInt64
		}
		return a - b
	}
	return addSat(a, -b)
}
