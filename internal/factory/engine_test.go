package factory

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
)

func TestNewEngineStartsAtStartingBalance(t *testing.T) {
	e := NewEngine(testCatalog(t))
	if e.Balance() != StartingBalance || len(e.Owned()) != 0 {
		t.Fatalf("balance=%d owned=%d", e.Balance(), len(e.Owned()))
	}
}

func TestProcessWithoutUpgradesKeepsBalance(t *testing.T) {
	for _, balance := range []int64{0, 1, 100, 987_654} {
		e := NewEngine(testCatalog(t), WithBalance(balance))
		s, err := e.Process()
		if err != nil {
			t.Fatalf("process: %v", err)
		}
		if e.Balance() != balance || s.Working() != s.Starting() {
			t.Fatalf("balance %d became %d", balance, e.Balance())
		}
	}
}

func TestPurchaseDebitsCostAndAppends(t *testing.T) {
	e := NewEngine(testCatalog(t), WithBalance(100))
	mustPurchase(t, e, "Test", "Scale")
	u := mustPurchase(t, e, "test", "wipe")
	if e.Balance() != 90 {
		t.Fatalf("balance=%d want 90", e.Balance())
	}
	owned := e.Owned()
	if len(owned) != 2 || owned[1].Name() != "Wipe" || !owned[1].Owned() {
		t.Fatalf("owned=%v", ownedNames(e))
	}
	if !u.Owned() {
		t.Fatalf("returned upgrade should be marked owned")
	}
	if !e.HasUpgrade("wipe") || !e.HasTrackUpgrade("Test", "Scale") || e.HasUpgrade("Flat") {
		t.Fatalf("membership mismatch: %v", ownedNames(e))
	}
}

func TestPurchaseInsufficientFundsChangesNothing(t *testing.T) {
	e := NewEngine(testCatalog(t), WithBalance(100))
	_, err := e.Purchase("Test", "Pricey")
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err=%v want ErrInsufficientFunds", err)
	}
	if e.Balance() != 100 || len(e.Owned()) != 0 {
		t.Fatalf("balance=%d owned=%v", e.Balance(), ownedNames(e))
	}
}

func TestPurchaseRejectsDuplicatesAndUnknowns(t *testing.T) {
	e := NewEngine(testCatalog(t), WithBalance(100))
	mustPurchase(t, e, "Test", "Wipe")
	if _, err := e.Purchase("Test", "Wipe"); !errors.Is(err, ErrAlreadyOwned) {
		t.Fatalf("duplicate err=%v", err)
	}
	if _, err := e.Purchase("Test", "Missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown err=%v", err)
	}
	if err := e.PurchaseUpgrade(AbsentUpgrade()); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("absent err=%v", err)
	}
	if e.Balance() != 90 || len(e.Owned()) != 1 {
		t.Fatalf("balance=%d owned=%v", e.Balance(), ownedNames(e))
	}
}

func TestPurchaseUpgradeReference(t *testing.T) {
	c := testCatalog(t)
	e := NewEngine(c, WithBalance(50))
	u, err := c.Resolve("Test", "Wipe")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := e.PurchaseUpgrade(u); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if !u.Owned() || e.Balance() != 40 {
		t.Fatalf("owned=%v balance=%d", u.Owned(), e.Balance())
	}
	if err := e.RefundUpgrade(u); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if u.Owned() || e.Balance() != 44 {
		t.Fatalf("owned=%v balance=%d", u.Owned(), e.Balance())
	}
}

func TestRefundCreditsRefundValue(t *testing.T) {
	e := NewEngine(testCatalog(t), WithBalance(100))
	mustPurchase(t, e, "Test", "Flat")
	mustPurchase(t, e, "Test", "Wipe")
	mustPurchase(t, e, "Test", "Scale")

	u, err := e.Refund("Test", "Wipe")
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if u.Owned() {
		t.Fatalf("refunded upgrade still owned")
	}
	if e.Balance() != 94 {
		t.Fatalf("balance=%d want 94 (refund value, not cost)", e.Balance())
	}
	if got := ownedNames(e); !reflect.DeepEqual(got, []string{"Flat", "Scale"}) {
		t.Fatalf("owned=%v", got)
	}

	if _, err := e.Refund("Test", "Wipe"); !errors.Is(err, ErrNotOwned) {
		t.Fatalf("second refund err=%v", err)
	}
	if _, err := e.Refund("Test", "Missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown refund err=%v", err)
	}
	if err := e.RefundUpgrade(AbsentUpgrade()); !errors.Is(err, ErrNotOwned) {
		t.Fatalf("absent refund err=%v", err)
	}
	if e.Balance() != 94 {
		t.Fatalf("failed refunds changed balance to %d", e.Balance())
	}
}

func TestProcessAppliesInPurchaseOrder(t *testing.T) {
	e := NewEngine(testCatalog(t), WithBalance(100))
	mustPurchase(t, e, "Test", "Flat")
	mustPurchase(t, e, "Test", "Scale")

	s, err := e.Process()
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if s.Base() != 120 || s.Working() != 156 || e.Balance() != 156 {
		t.Fatalf("base=%d working=%d balance=%d", s.Base(), s.Working(), e.Balance())
	}
}

func TestSwapReordersPipeline(t *testing.T) {
	e := NewEngine(testCatalog(t), WithBalance(100))
	mustPurchase(t, e, "Test", "Flat")
	scale := mustPurchase(t, e, "Test", "Scale")

	before, err := e.PreviewRate()
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if before != 56 {
		t.Fatalf("flat then scale: rate=%d want 56", before)
	}

	if err := e.Swap(scale, 0); err != nil {
		t.Fatalf("swap: %v", err)
	}
	if got := ownedNames(e); !reflect.DeepEqual(got, []string{"Scale", "Flat"}) {
		t.Fatalf("owned=%v", got)
	}
	after, err := e.PreviewRate()
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if after != 50 {
		t.Fatalf("scale then flat: rate=%d want 50", after)
	}
}

func TestSwapRejectsBadInput(t *testing.T) {
	c := testCatalog(t)
	e := NewEngine(c, WithBalance(100))
	flat := mustPurchase(t, e, "Test", "Flat")
	mustPurchase(t, e, "Test", "Scale")

	for _, idx := range []int{-1, 2, 10} {
		if err := e.Swap(flat, idx); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("swap to %d err=%v", idx, err)
		}
	}
	stranger, _ := c.Resolve("Test", "Wipe")
	if err := e.Swap(stranger, 1); !errors.Is(err, ErrNotOwned) {
		t.Fatalf("swap stranger err=%v", err)
	}
	if got := ownedNames(e); !reflect.DeepEqual(got, []string{"Flat", "Scale"}) {
		t.Fatalf("owned=%v", got)
	}
}

func TestPreviewNeverCommits(t *testing.T) {
	e := NewEngine(testCatalog(t), WithBalance(100))
	mustPurchase(t, e, "Test", "Flat")
	mustPurchase(t, e, "Test", "Wipe")
	mustPurchase(t, e, "Test", "Scale")

	first, err := e.PreviewRate()
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	for i := 0; i < 5; i++ {
		got, err := e.PreviewRate()
		if err != nil || got != first {
			t.Fatalf("preview %d=%d err=%v want %d", i, got, err, first)
		}
	}
	if e.Balance() != 90 {
		t.Fatalf("preview moved balance to %d", e.Balance())
	}
}

func TestPreviewMatchesDeterministicProcess(t *testing.T) {
	e := NewEngine(DefaultCatalog(), WithBalance(100_000))
	for _, ref := range []Ref{
		{TrackAssembly, "Robotic Arms"},
		{TrackResearch, "R&D Lab"},
		{TrackEfficiency, "Six Sigma"},
		{TrackSynergy, "Vertical Integration"},
		{TrackResearch, "Patent Portfolio"},
	} {
		mustPurchase(t, e, ref.Track, ref.Name)
	}
	before := e.Balance()
	rate, err := e.PreviewRate()
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if _, err := e.Process(); err != nil {
		t.Fatalf("process: %v", err)
	}
	if got := e.Balance() - before; got != rate {
		t.Fatalf("committed %d, previewed %d", got, rate)
	}
}

func TestProcessIsAtomicOnEffectFailure(t *testing.T) {
	e := NewEngine(testCatalog(t), WithBalance(100))
	mustPurchase(t, e, "Test", "Flat")
	mustPurchase(t, e, "Faulty", "Broken")

	s, err := e.Process()
	if !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("err=%v want ErrInvariantViolation", err)
	}
	if s != nil {
		t.Fatalf("failed cycle returned a state")
	}
	if e.Balance() != 100 {
		t.Fatalf("failed cycle committed balance %d", e.Balance())
	}
	if _, err := e.PreviewRate(); !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("preview err=%v", err)
	}
}

func TestWipeUpgradeWithFixedDraws(t *testing.T) {
	tests := []struct {
		name string
		draw float64
		want int64
	}{
		// 100 + 20 = 120, half of the 20 produced is wiped.
		{name: "hit", draw: 0.1, want: 110},
		{name: "miss", draw: 0.25, want: 120},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := NewEngine(testCatalog(t), WithBalance(110), WithRandom(NewFixedRandom(tc.draw)))
			mustPurchase(t, e, "Test", "Flat")
			mustPurchase(t, e, "Test", "Wipe")
			s, err := e.Process()
			if err != nil {
				t.Fatalf("process: %v", err)
			}
			if s.Working() != tc.want {
				t.Fatalf("working=%d want %d", s.Working(), tc.want)
			}
			if s.LowestPossibleWorking() != 110 {
				t.Fatalf("lowest=%d want 110", s.LowestPossibleWorking())
			}
		})
	}
}

func TestProcessStaysWithinBounds(t *testing.T) {
	var refs []Ref
	for _, tr := range DefaultCatalog().Tracks() {
		for _, u := range tr.Upgrades() {
			refs = append(refs, Ref{Track: tr.Name(), Name: u.Name()})
		}
	}
	for seed := uint64(1); seed <= 200; seed++ {
		e, err := Restore(DefaultCatalog(), Record{Balance: 10_000, Owned: refs}, WithRandom(NewSeededRandom(seed)))
		if err != nil {
			t.Fatalf("restore: %v", err)
		}
		for cycle := 0; cycle < 3; cycle++ {
			s, err := e.Process()
			if err != nil {
				t.Fatalf("seed %d: process: %v", seed, err)
			}
			if s.LowestPossibleWorking() > s.Working() || s.Working() > s.HighestPossibleWorking() {
				t.Fatalf("seed %d cycle %d: %d not in [%d, %d]", seed, cycle, s.Working(), s.LowestPossibleWorking(), s.HighestPossibleWorking())
			}
			if s.HighestPossibleBase() < s.Base() {
				t.Fatalf("seed %d: base %d above highest %d", seed, s.Base(), s.HighestPossibleBase())
			}
		}
	}
}

func TestForecast(t *testing.T) {
	e := NewEngine(testCatalog(t), WithBalance(110))
	mustPurchase(t, e, "Test", "Flat")
	mustPurchase(t, e, "Test", "Wipe")
	f, err := e.Forecast()
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	want := Forecast{Rate: 20, Low: 10, High: 20, HighestBase: 120, WipeRisk: 0.5}
	if f != want {
		t.Fatalf("forecast=%+v want %+v", f, want)
	}
}

func TestStartingRaiseIsCycleScoped(t *testing.T) {
	e := NewEngine(DefaultCatalog(), WithBalance(10_000), WithRandom(NewFixedRandom(0)))
	mustPurchase(t, e, TrackAssembly, "Conveyor Belt")
	mustPurchase(t, e, TrackInsurance, "Offshore Account")

	s, err := e.Process()
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	// 3950 + 5, then the 5 produced are locked into the starting value.
	if s.Starting() != 3_955 || s.Working() != 3_955 || s.Seed() != 3_950 {
		t.Fatalf("starting=%d working=%d seed=%d", s.Starting(), s.Working(), s.Seed())
	}
	next, err := e.Process()
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if next.Seed() != 3_955 || next.Starting() != 3_960 {
		t.Fatalf("next cycle seed=%d starting=%d", next.Seed(), next.Starting())
	}
}

func TestWithdrawAndDeposit(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(testCatalog(t), WithBalance(100))
	wallet := &fakeLedger{balance: 30}

	if err := e.Withdraw(ctx, 0, wallet); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("withdraw 0 err=%v", err)
	}
	if err := e.Withdraw(ctx, 101, wallet); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("overdraw err=%v", err)
	}
	if err := e.Withdraw(ctx, 40, wallet); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if e.Balance() != 60 || wallet.balance != 70 {
		t.Fatalf("after withdraw factory=%d wallet=%d", e.Balance(), wallet.balance)
	}

	if err := e.Deposit(ctx, 0, wallet); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("deposit 0 err=%v", err)
	}
	if err := e.Deposit(ctx, -5, wallet); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("deposit negative err=%v", err)
	}
	if err := e.Deposit(ctx, 71, wallet); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("wallet overdraw err=%v", err)
	}
	if e.Balance() != 60 || wallet.balance != 70 {
		t.Fatalf("failed deposit moved coins: factory=%d wallet=%d", e.Balance(), wallet.balance)
	}
	if err := e.Deposit(ctx, 70, wallet); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if e.Balance() != 130 || wallet.balance != 0 {
		t.Fatalf("after deposit factory=%d wallet=%d", e.Balance(), wallet.balance)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	c := testCatalog(t)
	e := NewEngine(c, WithBalance(100))
	mustPurchase(t, e, "Test", "Scale")
	mustPurchase(t, e, "Test", "Flat")

	rec := e.Snapshot()
	restored, err := Restore(c, rec)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.Balance() != e.Balance() || !reflect.DeepEqual(ownedNames(restored), ownedNames(e)) {
		t.Fatalf("restored balance=%d owned=%v", restored.Balance(), ownedNames(restored))
	}
	a, _ := e.PreviewRate()
	b, _ := restored.PreviewRate()
	if a != b {
		t.Fatalf("rates differ: %d vs %d", a, b)
	}

	if _, err := Restore(c, Record{Owned: []Ref{{"Test", "Gone"}}}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("restore unknown err=%v", err)
	}
	if _, err := Restore(c, Record{Owned: []Ref{{"Test", "Flat"}, {"test", "flat"}}}); !errors.Is(err, ErrAlreadyOwned) {
		t.Fatalf("restore duplicate err=%v", err)
	}
}

func TestCurrentTracksOverlaysOwnership(t *testing.T) {
	c := testCatalog(t)
	e := NewEngine(c, WithBalance(100))
	mustPurchase(t, e, "Test", "Scale")

	tracks := e.CurrentTracks()
	for _, tr := range tracks {
		for _, u := range tr.Upgrades() {
			want := tr.Name() == "Test" && u.Name() == "Scale"
			if u.Owned() != want {
				t.Fatalf("%s owned=%v", u, u.Owned())
			}
		}
	}
	if c.Tracks()[0].OwnsAny() {
		t.Fatalf("overlay leaked into the catalog")
	}
}

func TestCompoundingBalanceNeverWraps(t *testing.T) {
	var rec Record
	rec.Balance = 1_000
	for _, tr := range DefaultCatalog().Tracks() {
		for _, u := range tr.Upgrades() {
			if !u.HasRandomChance() {
				rec.Owned = append(rec.Owned, Ref{Track: u.Track(), Name: u.Name()})
			}
		}
	}
	e, err := Restore(DefaultCatalog(), rec)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	prev := e.Balance()
	for cycle := 1; cycle <= 200; cycle++ {
		if _, err := e.Process(); err != nil {
			t.Fatalf("cycle %d: %v", cycle, err)
		}
		if e.Balance() < prev {
			t.Fatalf("cycle %d: balance went from %d to %d", cycle, prev, e.Balance())
		}
		prev = e.Balance()
	}
	if prev != math.MaxInt64 {
		t.Fatalf("expected balance to settle at the ceiling, got %d", prev)
	}
	f, err := e.Forecast()
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if f.Low > f.Rate || f.Rate > f.High || f.Rate != 0 {
		t.Fatalf("forecast at ceiling out of order: %+v", f)
	}
}

func TestDepositRejectsOverflow(t *testing.T) {
	e := NewEngine(testCatalog(t), WithBalance(math.MaxInt64-5))
	ledger := &fakeLedger{balance: 100}
	err := e.Deposit(context.Background(), 10, ledger)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if e.Balance() != math.MaxInt64-5 || ledger.balance != 100 {
		t.Fatalf("failed deposit moved coins: factory=%d ledger=%d", e.Balance(), ledger.balance)
	}
}
