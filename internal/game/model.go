package game

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"coinfactory/internal/factory"
)

const (
	DefaultStarterWallet = int64(1_000)

	DirectionDeposit  = "deposit"
	DirectionWithdraw = "withdraw"
)

var (
	ErrDuplicateIdempotency = errors.New("duplicate idempotency key")
	ErrFactoryNotFound      = errors.New("factory not found")
	ErrWalletNotFound       = errors.New("wallet not found")
	ErrTxConflict           = errors.New("transaction conflict, please retry")
	ErrInvalidUser          = errors.New("invalid user id")
)

var userIDRE = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

func ValidateUserID(userID string) error {
	if !userIDRE.MatchString(strings.TrimSpace(userID)) {
		return ErrInvalidUser
	}
	return nil
}

func normalizeDirection(direction string) (string, error) {
	switch d := strings.ToLower(strings.TrimSpace(direction)); d {
	case DirectionDeposit, DirectionWithdraw:
		return d, nil
	default:
		return "", fmt.Errorf("%w: direction must be deposit or withdraw", factory.ErrInvalidArgument)
	}
}

func upgradeView(u *factory.Upgrade, position int) UpgradeView {
	return UpgradeView{
		Position:    position,
		Kind:        string(u.Kind()),
		Track:       u.Track(),
		Name:        u.Name(),
		Description: u.Description(),
		Level:       u.Level(),
		Cost:        u.Cost(),
		RefundValue: u.RefundValue(),
		Owned:       u.Owned(),
		Random:      u.HasRandomChance(),
	}
}

func pipelineView(owned []*factory.Upgrade) []UpgradeView {
	out := make([]UpgradeView, 0, len(owned))
	for i, u := range owned {
		out = append(out, upgradeView(u, i))
	}
	return out
}

// trackViews renders tracks for display, including the next upgrade a player
// can buy on each one.
func trackViews(tracks []*factory.Track) []TrackView {
	out := make([]TrackView, 0, len(tracks))
	for _, t := range tracks {
		v := TrackView{
			Name:    t.Name(),
			Flavor:  t.Flavor(),
			Started: t.OwnsAny(),
		}
		for _, u := range t.Upgrades() {
			uv := upgradeView(u, -1)
			uv.IsMax = t.IsMax(u.Name())
			v.Upgrades = append(v.Upgrades, uv)
		}
		next, err := t.Next(t.Highest())
		if err == nil && !next.IsAbsent() {
			nv := upgradeView(next, -1)
			v.Next = &nv
		}
		out = append(out, v)
	}
	return out
}

func cycleResult(id string, s *factory.State, balance int64) CycleResult {
	out := CycleResult{
		CycleID:  id,
		Seed:     s.Seed(),
		Starting: s.Starting(),
		Base:     s.Base(),
		Working:  s.Working(),
		Produced: s.Produced(),
		Delta:    s.Delta(),
		Balance:  balance,
		Wipes:    s.Wipes(),
	}
	for _, w := range out.Wipes {
		out.WipedCoins += w.Coins
	}
	return out
}

// LoadCatalog returns the default catalog, repriced by pricingFile when one is
// configured.
func LoadCatalog(pricingFile string) (*factory.Catalog, error) {
	cat := factory.DefaultCatalog()
	if strings.TrimSpace(pricingFile) == "" {
		return cat, nil
	}
	pricing, err := factory.LoadPricing(pricingFile)
	if err != nil {
		return nil, err
	}
	return cat.WithPricing(pricing)
}
