package factory

import (
	"context"
	"fmt"
	"testing"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog(
		TrackSpec{
			Name:   "Test",
			Flavor: "Upgrades with easy numbers.",
			Upgrades: []UpgradeSpec{
				{Kind: "flat", Name: "Flat", Level: 1, Deterministic: true, Effect: raiseBase(20)},
				{Kind: "scale", Name: "Scale", Level: 2, Deterministic: true, Effect: scaleWorking(0.3)},
				{Kind: "wipe", Name: "Wipe", Level: 3, Cost: 10, Refund: 4, Effect: func(s *State) error {
					s.MaybeWipe(0.5, 0.25)
					return nil
				}},
				{Kind: "pricey", Name: "Pricey", Level: 4, Cost: 600, Refund: 300, Deterministic: true, Effect: raiseBase(1)},
			},
		},
		TrackSpec{
			Name:   "Faulty",
			Flavor: "Effects that fail.",
			Upgrades: []UpgradeSpec{
				{Kind: "broken", Name: "Broken", Level: 1, Deterministic: true, Effect: func(s *State) error {
					return fmt.Errorf("%w: broken on purpose", ErrInvariantViolation)
				}},
			},
		},
	)
	if err != nil {
		t.Fatalf("build test catalog: %v", err)
	}
	return c
}

type fakeLedger struct {
	balance int64
}

func (l *fakeLedger) Deposit(_ context.Context, amount int64) error {
	l.balance += amount
	return nil
}

func (l *fakeLedger) Withdraw(_ context.Context, amount int64) error {
	if amount > l.balance {
		return fmt.Errorf("%w: wallet holds %d", ErrInsufficientFunds, l.balance)
	}
	l.balance -= amount
	return nil
}

func mustPurchase(t *testing.T, e *Engine, track, name string) *Upgrade {
	t.Helper()
	u, err := e.Purchase(track, name)
	if err != nil {
		t.Fatalf("purchase %s/%s: %v", track, name, err)
	}
	return u
}

func ownedNames(e *Engine) []string {
	var out []string
	for _, u := range e.Owned() {
		out = append(out, u.Name())
	}
	return out
}
