package factory

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// StartingBalance is the balance of a factory that has never produced.
const StartingBalance = int64(1)

// Ledger is the player's spendable wallet, a separate pool from the factory
// balance. Withdraw must fail with ErrInsufficientFunds when it cannot cover
// the amount.
type Ledger interface {
	Deposit(ctx context.Context, amount int64) error
	Withdraw(ctx context.Context, amount int64) error
}

type Option func(*Engine)

// WithRandom sets the source used by Process. Tests pass a FixedRandom.
func WithRandom(r RandomSource) Option {
	return func(e *Engine) {
		if r != nil {
			e.rng = r
		}
	}
}

func WithBalance(balance int64) Option {
	return func(e *Engine) { e.balance = balance }
}

// Engine is one player's factory: the purchased upgrades in purchase order
// and the coins they have produced. An Engine is not safe for concurrent use;
// callers serialize access per player.
type Engine struct {
	lookup  Lookup
	owned   []*Upgrade
	balance int64
	rng     RandomSource
}

func NewEngine(lookup Lookup, opts ...Option) *Engine {
	e := &Engine{
		lookup:  lookup,
		balance: StartingBalance,
		rng:     DefaultRandom(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Balance() int64 { return e.balance }

// Owned returns the owned upgrades in purchase order.
func (e *Engine) Owned() []*Upgrade {
	out := make([]*Upgrade, len(e.owned))
	copy(out, e.owned)
	return out
}

func (e *Engine) run(rng RandomSource) (*State, error) {
	owned := e.Owned()
	s := newState(e.balance, owned, rng)
	for i, u := range owned {
		s.current = u
		if err := u.Apply(s); err != nil {
			return nil, fmt.Errorf("apply %s at position %d: %w", u, i, err)
		}
	}
	s.current = nil
	return s, nil
}

// Process runs one production cycle and commits the result. If any effect
// fails the balance is left untouched.
func (e *Engine) Process() (*State, error) {
	s, err := e.run(e.rng)
	if err != nil {
		return nil, err
	}
	e.balance = s.Working()
	return s, nil
}

// Preview runs a cycle without committing. Chance events below certainty do
// not fire, so repeated previews agree with each other.
func (e *Engine) Preview() (*State, error) {
	return e.run(noLuck{})
}

// PreviewRate is the balance change the next cycle would commit on a
// no-luck run.
func (e *Engine) PreviewRate() (int64, error) {
	s, err := e.Preview()
	if err != nil {
		return 0, err
	}
	return s.Delta(), nil
}

// Forecast is the projected balance change for the next cycle.
type Forecast struct {
	Rate        int64   `json:"rate"`
	Low         int64   `json:"low"`
	High        int64   `json:"high"`
	HighestBase int64   `json:"highest_base"`
	WipeRisk    float64 `json:"wipe_risk"`
}

func (e *Engine) Forecast() (Forecast, error) {
	s, err := e.Preview()
	if err != nil {
		return Forecast{}, err
	}
	return Forecast{
		Rate:        s.Delta(),
		Low:         s.LowestPossibleWorking() - s.Seed(),
		High:        s.HighestPossibleWorking() - s.Seed(),
		HighestBase: s.HighestPossibleBase(),
		WipeRisk:    s.PossibleWipeFraction(),
	}, nil
}

func (e *Engine) indexOf(track, name string) int {
	for i, u := range e.owned {
		if strings.EqualFold(u.track, track) && strings.EqualFold(u.name, name) {
			return i
		}
	}
	return -1
}

// Purchase resolves an upgrade through the catalog and buys it.
func (e *Engine) Purchase(track, name string) (*Upgrade, error) {
	u, err := e.lookup.Resolve(track, name)
	if err != nil {
		return nil, err
	}
	if err := e.PurchaseUpgrade(u); err != nil {
		return nil, err
	}
	return u, nil
}

// PurchaseUpgrade buys an already resolved upgrade and appends it to the
// pipeline. On failure nothing changes.
func (e *Engine) PurchaseUpgrade(u *Upgrade) error {
	if u == nil || u.IsAbsent() {
		return fmt.Errorf("%w: nothing to purchase", ErrInvalidArgument)
	}
	if e.indexOf(u.track, u.name) >= 0 {
		return fmt.Errorf("%w: %s", ErrAlreadyOwned, u)
	}
	if u.cost > e.balance {
		return fmt.Errorf("%w: %s costs %d, balance is %d", ErrInsufficientFunds, u, u.cost, e.balance)
	}
	attached := u.clone()
	attached.owned = true
	e.owned = append(e.owned, attached)
	e.balance -= u.cost
	u.owned = true
	return nil
}

// Refund sells back an owned upgrade for its refund value.
func (e *Engine) Refund(track, name string) (*Upgrade, error) {
	i := e.indexOf(track, name)
	if i < 0 {
		if _, err := e.lookup.Resolve(track, name); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s/%s", ErrNotOwned, track, name)
	}
	return e.removeAt(i), nil
}

func (e *Engine) RefundUpgrade(u *Upgrade) error {
	if u == nil || u.IsAbsent() {
		return fmt.Errorf("%w: nothing to refund", ErrNotOwned)
	}
	i := e.indexOf(u.track, u.name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotOwned, u)
	}
	e.removeAt(i)
	u.owned = false
	return nil
}

func (e *Engine) removeAt(i int) *Upgrade {
	u := e.owned[i]
	e.owned = append(e.owned[:i:i], e.owned[i+1:]...)
	u.owned = false
	e.balance = addSat(e.balance, u.refund)
	return u
}

func (e *Engine) HasUpgrade(name string) bool {
	for _, u := range e.owned {
		if strings.EqualFold(u.name, name) {
			return true
		}
	}
	return false
}

func (e *Engine) HasTrackUpgrade(track, name string) bool {
	return e.indexOf(track, name) >= 0
}

// CurrentTracks is a fresh catalog snapshot with this engine's ownership
// overlaid, for display.
func (e *Engine) CurrentTracks() []*Track {
	tracks := e.lookup.Tracks()
	for _, t := range tracks {
		for _, u := range t.upgrades {
			u.owned = e.indexOf(u.track, u.name) >= 0
		}
	}
	return tracks
}

// Swap exchanges u with whatever currently sits at newIndex. Later cycles
// apply effects in the new order.
func (e *Engine) Swap(u *Upgrade, newIndex int) error {
	if newIndex < 0 || newIndex >= len(e.owned) {
		return fmt.Errorf("%w: index %d out of range [0, %d)", ErrInvalidArgument, newIndex, len(e.owned))
	}
	if u == nil {
		return fmt.Errorf("%w: nothing to swap", ErrInvalidArgument)
	}
	i := e.indexOf(u.track, u.name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotOwned, u)
	}
	e.owned[i], e.owned[newIndex] = e.owned[newIndex], e.owned[i]
	return nil
}

// Withdraw moves coins from the factory into the ledger.
func (e *Engine) Withdraw(ctx context.Context, amount int64, ledger Ledger) error {
	if amount < 1 {
		return fmt.Errorf("%w: withdraw amount must be at least 1", ErrInvalidArgument)
	}
	if amount > e.balance {
		return fmt.Errorf("%w: factory holds %d, asked for %d", ErrInsufficientFunds, e.balance, amount)
	}
	if err := ledger.Deposit(ctx, amount); err != nil {
		return err
	}
	e.balance -= amount
	return nil
}

// Deposit moves coins from the ledger into the factory.
func (e *Engine) Deposit(ctx context.Context, amount int64, ledger Ledger) error {
	if amount <= 0 {
		return fmt.Errorf("%w: deposit amount must be positive", ErrInvalidArgument)
	}
	if amount > math.MaxInt64-e.balance {
		return fmt.Errorf("%w: deposit of %d would overflow the factory balance", ErrInvalidArgument, amount)
	}
	if err := ledger.Withdraw(ctx, amount); err != nil {
		return err
	}
	e.balance += amount
	return nil
}

// Ref names an owned upgrade for persistence.
type Ref struct {
	Track string `json:"track"`
	Name  string `json:"name"`
}

// Record is everything needed to rebuild an engine.
type Record struct {
	Balance int64 `json:"balance"`
	Owned   []Ref `json:"owned"`
}

func (e *Engine) Snapshot() Record {
	rec := Record{Balance: e.balance, Owned: make([]Ref, 0, len(e.owned))}
	for _, u := range e.owned {
		rec.Owned = append(rec.Owned, Ref{Track: u.track, Name: u.name})
	}
	return rec
}

// Restore rebuilds an engine by resolving each owned pair in stored order.
// Nothing is charged.
func Restore(lookup Lookup, rec Record, opts ...Option) (*Engine, error) {
	e := NewEngine(lookup, opts...)
	e.balance = rec.Balance
	for _, ref := range rec.Owned {
		u, err := lookup.Resolve(ref.Track, ref.Name)
		if err != nil {
			return nil, fmt.Errorf("restore %s/%s: %w", ref.Track, ref.Name, err)
		}
		if e.indexOf(u.track, u.name) >= 0 {
			return nil, fmt.Errorf("restore %s: %w", u, ErrAlreadyOwned)
		}
		u = u.clone()
		u.owned = true
		e.owned = append(e.owned, u)
	}
	return e, nil
}
