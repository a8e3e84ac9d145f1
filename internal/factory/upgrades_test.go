package factory

import "testing"

func TestCatalogUpgradeEffects(t *testing.T) {
	a := func(name string) Ref { return Ref{Track: TrackAssembly, Name: name} }
	ef := func(name string) Ref { return Ref{Track: TrackEfficiency, Name: name} }
	re := func(name string) Ref { return Ref{Track: TrackResearch, Name: name} }
	sp := func(name string) Ref { return Ref{Track: TrackSpeculation, Name: name} }
	sy := func(name string) Ref { return Ref{Track: TrackSynergy, Name: name} }
	in := func(name string) Ref { return Ref{Track: TrackInsurance, Name: name} }
	lo := func(name string) Ref { return Ref{Track: TrackLottery, Name: name} }

	tests := []struct {
		name     string
		owned    []Ref
		draws    []float64
		wantWork int64
		wantBase int64
	}{
		{name: "conveyor belt", owned: []Ref{a("Conveyor Belt")}, wantWork: 1005, wantBase: 1005},
		{name: "twin conveyors", owned: []Ref{a("Twin Conveyors")}, wantWork: 1025, wantBase: 1025},
		{name: "robotic arms", owned: []Ref{a("Robotic Arms")}, wantWork: 1120, wantBase: 1120},
		{name: "lights-out line", owned: []Ref{a("Lights-Out Line")}, wantWork: 1600, wantBase: 1600},
		{name: "time study", owned: []Ref{ef("Time Study")}, wantWork: 1050, wantBase: 1000},
		{name: "lean process", owned: []Ref{ef("Lean Process")}, wantWork: 1100, wantBase: 1000},
		{name: "six sigma", owned: []Ref{ef("Six Sigma")}, wantWork: 1200, wantBase: 1000},
		{name: "kaizen", owned: []Ref{ef("Kaizen")}, wantWork: 1300, wantBase: 1000},
		{name: "night classes", owned: []Ref{re("Night Classes")}, wantWork: 1010, wantBase: 1010},
		{name: "rd lab", owned: []Ref{re("R&D Lab")}, wantWork: 1030, wantBase: 1030},
		{name: "patent portfolio", owned: []Ref{a("Conveyor Belt"), re("Patent Portfolio")}, wantWork: 1008, wantBase: 1005},
		{name: "singularity", owned: []Ref{re("Singularity")}, wantWork: 1020, wantBase: 1000},
		{name: "penny stocks hit", owned: []Ref{sp("Penny Stocks")}, draws: []float64{0.2}, wantWork: 1080, wantBase: 1000},
		{name: "penny stocks miss", owned: []Ref{sp("Penny Stocks")}, draws: []float64{0.7}, wantWork: 1000, wantBase: 1000},
		{name: "margin account wiped", owned: []Ref{sp("Margin Account")}, draws: []float64{0.1}, wantWork: 1250, wantBase: 1000},
		{name: "margin account safe", owned: []Ref{sp("Margin Account")}, draws: []float64{0.5}, wantWork: 1500, wantBase: 1000},
		{name: "pyramid scheme wiped", owned: []Ref{a("Conveyor Belt"), sp("Pyramid Scheme")}, draws: []float64{0.01}, wantWork: 1000, wantBase: 1005},
		{name: "pyramid scheme safe", owned: []Ref{a("Conveyor Belt"), sp("Pyramid Scheme")}, draws: []float64{0.5}, wantWork: 1010, wantBase: 1005},
		{name: "cross-training", owned: []Ref{sy("Cross-Training")}, wantWork: 1003, wantBase: 1003},
		{name: "supply chain alone", owned: []Ref{sy("Supply Chain")}, wantWork: 1010, wantBase: 1000},
		{name: "supply chain with assembly", owned: []Ref{a("Conveyor Belt"), sy("Supply Chain")}, wantWork: 1156, wantBase: 1005},
		{name: "vertical integration", owned: []Ref{a("Conveyor Belt"), ef("Time Study"), sy("Vertical Integration")}, wantWork: 1213, wantBase: 1005},
		{name: "monopoly alone", owned: []Ref{sy("Monopoly")}, wantWork: 1100, wantBase: 1000},
		{name: "monopoly with kaizen", owned: []Ref{ef("Kaizen"), sy("Monopoly")}, wantWork: 1950, wantBase: 1000},
		{name: "safe deposit shields pyramid", owned: []Ref{a("Conveyor Belt"), in("Safe Deposit Box"), sp("Pyramid Scheme")}, draws: []float64{0.01}, wantWork: 1003, wantBase: 1005},
		{name: "hedge fund after safe trade", owned: []Ref{a("Conveyor Belt"), sp("Day Trading"), in("Hedge Fund")}, draws: []float64{0.5}, wantWork: 1056, wantBase: 1005},
		{name: "hedge fund after wipe", owned: []Ref{a("Conveyor Belt"), sp("Day Trading"), in("Hedge Fund")}, draws: []float64{0.05}, wantWork: 1045, wantBase: 1005},
		{name: "scratch cards", owned: []Ref{lo("Scratch Cards")}, draws: []float64{0.01}, wantWork: 1250, wantBase: 1000},
		{name: "golden ticket", owned: []Ref{lo("Golden Ticket")}, draws: []float64{0.001}, wantWork: 2000, wantBase: 2000},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e, err := Restore(DefaultCatalog(), Record{Balance: 1000, Owned: tc.owned}, WithRandom(NewFixedRandom(tc.draws...)))
			if err != nil {
				t.Fatalf("restore: %v", err)
			}
			s, err := e.Process()
			if err != nil {
				t.Fatalf("process: %v", err)
			}
			if s.Working() != tc.wantWork || s.Base() != tc.wantBase {
				t.Fatalf("working=%d base=%d want %d/%d", s.Working(), s.Base(), tc.wantWork, tc.wantBase)
			}
		})
	}
}

func TestHasRandomChance(t *testing.T) {
	c := DefaultCatalog()
	for _, tc := range []struct {
		track, name string
		want        bool
	}{
		{TrackAssembly, "Conveyor Belt", false},
		{TrackInsurance, "Hedge Fund", false},
		{TrackSpeculation, "Penny Stocks", true},
		{TrackLottery, "Golden Ticket", true},
	} {
		u, err := c.Resolve(tc.track, tc.name)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if u.HasRandomChance() != tc.want {
			t.Fatalf("%s HasRandomChance=%v", u, u.HasRandomChance())
		}
	}
}

func TestWipeIsAttributedToUpgrade(t *testing.T) {
	e, err := Restore(DefaultCatalog(), Record{Balance: 1000, Owned: []Ref{{TrackSpeculation, "Margin Account"}}}, WithRandom(NewFixedRandom(0)))
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	s, err := e.Process()
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	w := s.Wipes()
	if len(w) != 1 || w[0].Kind != KindMarginAccount || w[0].Coins != 250 {
		t.Fatalf("wipes=%+v", w)
	}
}
