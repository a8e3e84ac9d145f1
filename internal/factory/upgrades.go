package factory

const (
	TrackAssembly    = "Assembly"
	TrackEfficiency  = "Efficiency"
	TrackResearch    = "Research"
	TrackSpeculation = "Speculation"
	TrackSynergy     = "Synergy"
	TrackInsurance   = "Insurance"
	TrackLottery     = "Lottery"
)

const (
	KindConveyorBelt  Kind = "conveyor_belt"
	KindTwinConveyors Kind = "twin_conveyors"
	KindRoboticArms   Kind = "robotic_arms"
	KindLightsOutLine Kind = "lights_out_line"

	KindTimeStudy   Kind = "time_study"
	KindLeanProcess Kind = "lean_process"
	KindSixSigma    Kind = "six_sigma"
	KindKaizen      Kind = "kaizen"

	KindNightClasses    Kind = "night_classes"
	KindRDLab           Kind = "rd_lab"
	KindPatentPortfolio Kind = "patent_portfolio"
	KindSingularity     Kind = "singularity"

	KindPennyStocks   Kind = "penny_stocks"
	KindDayTrading    Kind = "day_trading"
	KindMarginAccount Kind = "margin_account"
	KindPyramidScheme Kind = "pyramid_scheme"

	KindCrossTraining       Kind = "cross_training"
	KindSupplyChain         Kind = "supply_chain"
	KindVerticalIntegration Kind = "vertical_integration"
	KindMonopoly            Kind = "monopoly"

	KindPiggyBank       Kind = "piggy_bank"
	KindSafeDepositBox  Kind = "safe_deposit_box"
	KindOffshoreAccount Kind = "offshore_account"
	KindHedgeFund       Kind = "hedge_fund"

	KindScratchCards Kind = "scratch_cards"
	KindGoldenTicket Kind = "golden_ticket"
)

func raiseBase(delta int64) Effect {
	return func(s *State) error {
		s.RaiseBase(delta)
		return nil
	}
}

func scaleWorking(fraction float64) Effect {
	return func(s *State) error {
		s.ScaleWorking(fraction)
		return nil
	}
}

func scaleBase(fraction float64) Effect {
	return func(s *State) error {
		s.ScaleBase(fraction)
		return nil
	}
}

// lockProduced moves the starting value up by a share of what has been
// produced so far, shielding it from later wipes this cycle.
func lockProduced(fraction float64) Effect {
	return func(s *State) error {
		if p := s.Produced(); p > 0 {
			s.RaiseStarting(round(float64(p) * fraction))
		}
		return nil
	}
}

func defaultTracks() []TrackSpec {
	return []TrackSpec{
		{
			Name:   TrackAssembly,
			Flavor: "More machines, more coins.",
			Upgrades: []UpgradeSpec{
				{Kind: KindConveyorBelt, Name: "Conveyor Belt", Level: 1, Cost: 50, Refund: 25, Deterministic: true,
					Description: "Adds 5 coins to base production.", Effect: raiseBase(5)},
				{Kind: KindTwinConveyors, Name: "Twin Conveyors", Level: 2, Cost: 400, Refund: 200, Deterministic: true,
					Description: "Adds 25 coins to base production.", Effect: raiseBase(25)},
				{Kind: KindRoboticArms, Name: "Robotic Arms", Level: 3, Cost: 2_500, Refund: 1_250, Deterministic: true,
					Description: "Adds 120 coins to base production.", Effect: raiseBase(120)},
				{Kind: KindLightsOutLine, Name: "Lights-Out Line", Level: 4, Cost: 15_000, Refund: 7_500, Deterministic: true,
					Description: "Adds 600 coins to base production.", Effect: raiseBase(600)},
			},
		},
		{
			Name:   TrackEfficiency,
			Flavor: "Squeeze more out of every shift.",
			Upgrades: []UpgradeSpec{
				{Kind: KindTimeStudy, Name: "Time Study", Level: 1, Cost: 150, Refund: 75, Deterministic: true,
					Description: "Raises this cycle's output by 5%.", Effect: scaleWorking(0.05)},
				{Kind: KindLeanProcess, Name: "Lean Process", Level: 2, Cost: 1_000, Refund: 500, Deterministic: true,
					Description: "Raises this cycle's output by 10%.", Effect: scaleWorking(0.10)},
				{Kind: KindSixSigma, Name: "Six Sigma", Level: 3, Cost: 6_000, Refund: 3_000, Deterministic: true,
					Description: "Raises this cycle's output by 20%.", Effect: scaleWorking(0.20)},
				{Kind: KindKaizen, Name: "Kaizen", Level: 4, Cost: 30_000, Refund: 15_000, Deterministic: true,
					Description: "Raises this cycle's output by 30%.", Effect: scaleWorking(0.30)},
			},
		},
		{
			Name:   TrackResearch,
			Flavor: "Compound knowledge, compound coins.",
			Upgrades: []UpgradeSpec{
				{Kind: KindNightClasses, Name: "Night Classes", Level: 1, Cost: 300, Refund: 150, Deterministic: true,
					Description: "Multiplies base production by 1.01.", Effect: scaleBase(0.01)},
				{Kind: KindRDLab, Name: "R&D Lab", Level: 2, Cost: 2_000, Refund: 1_000, Deterministic: true,
					Description: "Multiplies base production by 1.03.", Effect: scaleBase(0.03)},
				{Kind: KindPatentPortfolio, Name: "Patent Portfolio", Level: 3, Cost: 8_000, Refund: 4_000, Deterministic: true,
					Description: "Adds 50% of the coins produced so far this cycle.",
					Effect: func(s *State) error {
						s.ScaleProduced(0.5)
						return nil
					}},
				{Kind: KindSingularity, Name: "Singularity", Level: 4, Cost: 40_000, Refund: 20_000, Deterministic: true,
					Description: "Raises this cycle's output by 2% for every upgrade you own.",
					Effect: func(s *State) error {
						s.ScaleWorking(0.02 * float64(s.OwnedCount()))
						return nil
					}},
			},
		},
		{
			Name:   TrackSpeculation,
			Flavor: "High risk, high reward.",
			Upgrades: []UpgradeSpec{
				{Kind: KindPennyStocks, Name: "Penny Stocks", Level: 1, Cost: 100, Refund: 40,
					Description: "50% chance to raise this cycle's output by 8%.",
					Effect: func(s *State) error {
						s.ChanceScaleWorking(0.5, 0.08)
						return nil
					}},
				{Kind: KindDayTrading, Name: "Day Trading", Level: 2, Cost: 800, Refund: 300,
					Description: "Adds 40 coins, but has a 10% chance to wipe 20% of ALL produced coins.",
					Effect: func(s *State) error {
						s.RaiseWorking(40)
						s.MaybeWipe(0.20, 0.10)
						return nil
					}},
				{Kind: KindMarginAccount, Name: "Margin Account", Level: 3, Cost: 5_000, Refund: 1_500,
					Description: "Raises this cycle's output by 50%, but has a 15% chance to wipe 50% of ALL produced coins.",
					Effect: func(s *State) error {
						s.ScaleWorking(0.5)
						s.MaybeWipe(0.50, 0.15)
						return nil
					}},
				{Kind: KindPyramidScheme, Name: "Pyramid Scheme", Level: 4, Cost: 25_000, Refund: 5_000,
					Description: "Doubles the coins produced this cycle, but has a 5% chance to wipe ALL of them.",
					Effect: func(s *State) error {
						s.ScaleProduced(1.0)
						s.MaybeWipe(1.0, 0.05)
						return nil
					}},
			},
		},
		{
			Name:   TrackSynergy,
			Flavor: "The whole is greater than the sum of its parts.",
			Upgrades: []UpgradeSpec{
				{Kind: KindCrossTraining, Name: "Cross-Training", Level: 1, Cost: 250, Refund: 125, Deterministic: true,
					Description: "Adds 3 coins to base production for every upgrade you own.",
					Effect: func(s *State) error {
						s.RaiseBase(3 * int64(s.OwnedCount()))
						return nil
					}},
				{Kind: KindSupplyChain, Name: "Supply Chain", Level: 2, Cost: 1_500, Refund: 750, Deterministic: true,
					Description: "Raises output by 15% if you own any Assembly upgrade, otherwise adds 10 coins.",
					Effect: func(s *State) error {
						if s.OwnsTrack(TrackAssembly) {
							s.ScaleWorking(0.15)
						} else {
							s.RaiseWorking(10)
						}
						return nil
					}},
				{Kind: KindVerticalIntegration, Name: "Vertical Integration", Level: 3, Cost: 7_000, Refund: 3_500, Deterministic: true,
					Description: "Raises output by 5% for every track you have started.",
					Effect: func(s *State) error {
						s.ScaleWorking(0.05 * float64(s.OwnedTrackCount()))
						return nil
					}},
				{Kind: KindMonopoly, Name: "Monopoly", Level: 4, Cost: 35_000, Refund: 17_500, Deterministic: true,
					Description: "Raises output by 50% if you own a level 4 upgrade on another track, otherwise by 10%.",
					Effect: func(s *State) error {
						if s.OwnsLevelOutside(4, TrackSynergy) {
							s.ScaleWorking(0.5)
						} else {
							s.ScaleWorking(0.1)
						}
						return nil
					}},
			},
		},
		{
			Name:   TrackInsurance,
			Flavor: "Sleep well at night.",
			Upgrades: []UpgradeSpec{
				{Kind: KindPiggyBank, Name: "Piggy Bank", Level: 1, Cost: 200, Refund: 150, Deterministic: true,
					Description: "Shields 25% of the coins produced so far from wipes later this cycle.", Effect: lockProduced(0.25)},
				{Kind: KindSafeDepositBox, Name: "Safe Deposit Box", Level: 2, Cost: 1_200, Refund: 900, Deterministic: true,
					Description: "Shields 50% of the coins produced so far from wipes later this cycle.", Effect: lockProduced(0.50)},
				{Kind: KindOffshoreAccount, Name: "Offshore Account", Level: 3, Cost: 6_000, Refund: 4_500, Deterministic: true,
					Description: "Shields all coins produced so far from wipes later this cycle.", Effect: lockProduced(1.0)},
				{Kind: KindHedgeFund, Name: "Hedge Fund", Level: 4, Cost: 20_000, Refund: 15_000, Deterministic: true,
					Description: "Shields all coins produced so far; with any Speculation upgrade owned, also adds 25% of the shielded amount.",
					Effect: func(s *State) error {
						locked := s.Produced()
						if locked <= 0 {
							return nil
						}
						s.RaiseStarting(locked)
						if s.OwnsTrack(TrackSpeculation) {
							s.RaiseWorking(round(float64(locked) * 0.25))
						}
						return nil
					}},
			},
		},
		{
			Name:   TrackLottery,
			Flavor: "Somebody has to win.",
			Upgrades: []UpgradeSpec{
				{Kind: KindScratchCards, Name: "Scratch Cards", Level: 1, Cost: 500, Refund: 100,
					Description: "5% chance to add 250 coins.",
					Effect: func(s *State) error {
						s.ChanceRaiseWorking(0.05, 250)
						return nil
					}},
				{Kind: KindGoldenTicket, Name: "Golden Ticket", Level: 2, Cost: 10_000, Refund: 1_000,
					Description: "1% chance to double base production.",
					Effect: func(s *State) error {
						s.ChanceScaleBase(0.01, 1.0)
						return nil
					}},
			},
		},
	}
}
