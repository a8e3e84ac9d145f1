package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"coinfactory/internal/factory"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE SCHEMA IF NOT EXISTS game;

CREATE TABLE IF NOT EXISTS game.wallets (
	user_id    TEXT PRIMARY KEY,
	balance    BIGINT NOT NULL CHECK (balance >= 0),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS game.factories (
	user_id    TEXT PRIMARY KEY,
	balance    BIGINT NOT NULL CHECK (balance >= 0),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS game.factory_upgrades (
	user_id  TEXT NOT NULL REFERENCES game.factories (user_id) ON DELETE CASCADE,
	position INT NOT NULL,
	track    TEXT NOT NULL,
	name     TEXT NOT NULL,
	PRIMARY KEY (user_id, position)
);

CREATE TABLE IF NOT EXISTS game.factory_cycles (
	id          UUID PRIMARY KEY,
	user_id     TEXT NOT NULL,
	seed        BIGINT NOT NULL,
	working     BIGINT NOT NULL,
	wiped_coins BIGINT NOT NULL DEFAULT 0,
	ran_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS factory_cycles_user_idx ON game.factory_cycles (user_id, ran_at DESC);

CREATE TABLE IF NOT EXISTS game.ledger_entries (
	id          BIGSERIAL PRIMARY KEY,
	tx_group_id UUID NOT NULL,
	user_id     TEXT NOT NULL,
	account     TEXT NOT NULL,
	delta       BIGINT NOT NULL,
	metadata    JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS game.idempotency_keys (
	user_id    TEXT NOT NULL,
	key        TEXT NOT NULL,
	action     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, key)
);
`

type Service struct {
	db            *pgxpool.Pool
	log           *slog.Logger
	catalog       factory.Lookup
	rng           factory.RandomSource
	starterWallet int64
}

func NewService(db *pgxpool.Pool, logger *slog.Logger, catalog factory.Lookup, starterWallet int64) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if catalog == nil {
		catalog = factory.DefaultCatalog()
	}
	if starterWallet < 0 {
		starterWallet = DefaultStarterWallet
	}
	return &Service{
		db:            db,
		log:           logger,
		catalog:       catalog,
		rng:           factory.DefaultRandom(),
		starterWallet: starterWallet,
	}
}

func (s *Service) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// EnsurePlayer creates the wallet and an empty factory on first contact.
func (s *Service) EnsurePlayer(ctx context.Context, userID string) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO game.wallets (user_id, balance)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, s.starterWallet)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
		INSERT INTO game.factories (user_id, balance)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, factory.StartingBalance)
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		s.log.Info("factory created", "user_id", userID)
	}
	return nil
}

func (s *Service) Factory(ctx context.Context, userID string) (FactoryView, error) {
	out := FactoryView{UserID: userID}
	err := s.read(ctx, userID, func(tx pgx.Tx, e *factory.Engine) error {
		forecast, err := e.Forecast()
		if err != nil {
			return err
		}
		wallet, err := newWalletLedger(tx, userID).Balance(ctx)
		if err != nil {
			return err
		}
		out.Balance = e.Balance()
		out.WalletBalance = wallet
		out.Forecast = forecast
		out.Pipeline = pipelineView(e.Owned())
		return nil
	})
	return out, err
}

func (s *Service) Tracks(ctx context.Context, userID string) ([]TrackView, error) {
	var out []TrackView
	err := s.read(ctx, userID, func(_ pgx.Tx, e *factory.Engine) error {
		out = trackViews(e.CurrentTracks())
		return nil
	})
	return out, err
}

func (s *Service) CycleHistory(ctx context.Context, userID string, limit int) ([]CycleLogRow, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT id::text, seed, working, working - seed, wiped_coins, ran_at
		FROM game.factory_cycles
		WHERE user_id = $1
		ORDER BY ran_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[CycleLogRow])
}

// Collect runs one production cycle for the player and commits it.
func (s *Service) Collect(ctx context.Context, userID, idem string) (CycleResult, error) {
	var out CycleResult
	err := s.mutate(ctx, userID, idem, "collect", func(tx pgx.Tx, e *factory.Engine) error {
		res, err := s.runCycleTx(ctx, tx, userID, e)
		out = res
		return err
	})
	return out, err
}

func (s *Service) runCycleTx(ctx context.Context, tx pgx.Tx, userID string, e *factory.Engine) (CycleResult, error) {
	st, err := e.Process()
	if err != nil {
		if errors.Is(err, factory.ErrInvariantViolation) {
			s.log.Error("cycle aborted", "user_id", userID, "err", err)
		}
		return CycleResult{}, err
	}
	id := uuid.NewString()
	out := cycleResult(id, st, e.Balance())
	if _, err := tx.Exec(ctx, `
		INSERT INTO game.factory_cycles (id, user_id, seed, working, wiped_coins)
		VALUES ($1, $2, $3, $4, $5)
	`, id, userID, out.Seed, out.Working, out.WipedCoins); err != nil {
		return CycleResult{}, err
	}
	for _, w := range out.Wipes {
		s.log.Info("factory wipe", "user_id", userID, "kind", w.Kind, "fraction", w.Fraction, "coins", w.Coins)
	}
	return out, nil
}

// RunCycleTick processes every factory once. A failing factory is logged and
// skipped so one bad pipeline cannot stall everyone else.
func (s *Service) RunCycleTick(ctx context.Context) (processed int, err error) {
	rows, err := s.db.Query(ctx, `SELECT user_id FROM game.factories ORDER BY user_id`)
	if err != nil {
		return 0, err
	}
	userIDs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return 0, err
	}
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		err := s.mutate(ctx, userID, "", "cycle", func(tx pgx.Tx, e *factory.Engine) error {
			_, err := s.runCycleTx(ctx, tx, userID, e)
			return err
		})
		if err != nil {
			s.log.Error("factory cycle failed", "user_id", userID, "err", err)
			continue
		}
		processed++
	}
	return processed, nil
}

func (s *Service) Purchase(ctx context.Context, in UpgradeInput) (UpgradeResult, error) {
	var out UpgradeResult
	err := s.mutate(ctx, in.UserID, in.IdempotencyKey, "purchase", func(_ pgx.Tx, e *factory.Engine) error {
		u, err := e.Purchase(in.Track, in.Upgrade)
		if err != nil {
			return err
		}
		out.Upgrade = upgradeView(u, len(e.Owned())-1)
		out.Amount = u.Cost()
		out.Balance = e.Balance()
		return nil
	})
	if err == nil {
		s.log.Info("upgrade purchased", "user_id", in.UserID, "upgrade", out.Upgrade.Track+"/"+out.Upgrade.Name, "cost", out.Amount)
	}
	return out, err
}

func (s *Service) Refund(ctx context.Context, in UpgradeInput) (UpgradeResult, error) {
	var out UpgradeResult
	err := s.mutate(ctx, in.UserID, in.IdempotencyKey, "refund", func(_ pgx.Tx, e *factory.Engine) error {
		u, err := e.Refund(in.Track, in.Upgrade)
		if err != nil {
			return err
		}
		out.Upgrade = upgradeView(u, -1)
		out.Amount = u.RefundValue()
		out.Balance = e.Balance()
		return nil
	})
	return out, err
}

// Swap moves an owned upgrade to index, trading places with its occupant.
func (s *Service) Swap(ctx context.Context, in SwapInput) ([]UpgradeView, error) {
	var out []UpgradeView
	err := s.mutate(ctx, in.UserID, in.IdempotencyKey, "swap", func(_ pgx.Tx, e *factory.Engine) error {
		u, err := s.catalog.Resolve(in.Track, in.Upgrade)
		if err != nil {
			return err
		}
		if err := e.Swap(u, in.Index); err != nil {
			return err
		}
		out = pipelineView(e.Owned())
		return nil
	})
	return out, err
}

// Transfer moves coins between the wallet and the factory.
func (s *Service) Transfer(ctx context.Context, in TransferInput) (TransferResult, error) {
	var out TransferResult
	direction, err := normalizeDirection(in.Direction)
	if err != nil {
		return out, err
	}
	out.Direction = direction
	out.Amount = in.Amount
	err = s.mutate(ctx, in.UserID, in.IdempotencyKey, "transfer_"+direction, func(tx pgx.Tx, e *factory.Engine) error {
		wallet := newWalletLedger(tx, in.UserID)
		var err error
		if direction == DirectionDeposit {
			err = e.Deposit(ctx, in.Amount, wallet)
		} else {
			err = e.Withdraw(ctx, in.Amount, wallet)
		}
		if err != nil {
			return err
		}
		out.Balance = e.Balance()
		out.WalletBalance, err = wallet.Balance(ctx)
		return err
	})
	return out, err
}

// ReplaySync applies writes an offline client queued, in order. Each command
// succeeds or fails on its own.
func (s *Service) ReplaySync(ctx context.Context, userID string, commands []ReplayCommand) ([]ReplayResult, error) {
	results := make([]ReplayResult, 0, len(commands))
	for _, cmd := range commands {
		res := ReplayResult{Action: cmd.Action, IdempotencyKey: cmd.IdempotencyKey, Status: "ok"}
		var err error
		switch strings.ToLower(strings.TrimSpace(cmd.Action)) {
		case "purchase":
			_, err = s.Purchase(ctx, UpgradeInput{UserID: userID, Track: cmd.Track, Upgrade: cmd.Upgrade, IdempotencyKey: cmd.IdempotencyKey})
		case "refund":
			_, err = s.Refund(ctx, UpgradeInput{UserID: userID, Track: cmd.Track, Upgrade: cmd.Upgrade, IdempotencyKey: cmd.IdempotencyKey})
		case "swap":
			_, err = s.Swap(ctx, SwapInput{UserID: userID, Track: cmd.Track, Upgrade: cmd.Upgrade, Index: cmd.Index, IdempotencyKey: cmd.IdempotencyKey})
		case DirectionDeposit, DirectionWithdraw:
			_, err = s.Transfer(ctx, TransferInput{UserID: userID, Direction: cmd.Action, Amount: cmd.Amount, IdempotencyKey: cmd.IdempotencyKey})
		case "collect":
			_, err = s.Collect(ctx, userID, cmd.IdempotencyKey)
		default:
			err = fmt.Errorf("%w: unknown action %q", factory.ErrInvalidArgument, cmd.Action)
		}
		switch {
		case errors.Is(err, ErrDuplicateIdempotency):
			res.Status = "duplicate"
		case err != nil:
			res.Status = "failed"
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *Service) read(ctx context.Context, userID string, fn func(tx pgx.Tx, e *factory.Engine) error) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	e, err := s.loadEngineTx(ctx, tx, userID, false)
	if err != nil {
		return err
	}
	if err := fn(tx, e); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// mutate loads the player's engine under a row lock, runs fn and persists the
// result in one serializable transaction, retrying on serialization failures.
func (s *Service) mutate(ctx context.Context, userID, idem, action string, fn func(tx pgx.Tx, e *factory.Engine) error) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	const maxAttempts = 8
	retryDelay := 75 * time.Millisecond
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := s.mutateOnce(ctx, userID, idem, action, fn)
		if err == nil {
			return nil
		}
		if !isSerializationError(err) {
			return err
		}
		if attempt == maxAttempts-1 {
			break
		}
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return err
		}
		if retryDelay < 1200*time.Millisecond {
			retryDelay *= 2
		}
	}
	return ErrTxConflict
}

func (s *Service) mutateOnce(ctx context.Context, userID, idem, action string, fn func(tx pgx.Tx, e *factory.Engine) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if idem != "" {
		if err := claimIdempotency(ctx, tx, userID, idem, action); err != nil {
			return err
		}
	}
	e, err := s.loadEngineTx(ctx, tx, userID, true)
	if err != nil {
		return err
	}
	if err := fn(tx, e); err != nil {
		return err
	}
	if err := saveEngineTx(ctx, tx, userID, e); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Service) loadEngineTx(ctx context.Context, tx pgx.Tx, userID string, forUpdate bool) (*factory.Engine, error) {
	query := `SELECT balance FROM game.factories WHERE user_id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}
	var rec factory.Record
	if err := tx.QueryRow(ctx, query, userID).Scan(&rec.Balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFactoryNotFound
		}
		return nil, err
	}
	rows, err := tx.Query(ctx, `
		SELECT track, name
		FROM game.factory_upgrades
		WHERE user_id = $1
		ORDER BY position
	`, userID)
	if err != nil {
		return nil, err
	}
	rec.Owned, err = pgx.CollectRows(rows, pgx.RowToStructByPos[factory.Ref])
	if err != nil {
		return nil, err
	}
	return factory.Restore(s.catalog, rec, factory.WithRandom(s.rng))
}

// saveEngineTx rewrites the factory row and its ordered pipeline.
func saveEngineTx(ctx context.Context, tx pgx.Tx, userID string, e *factory.Engine) error {
	rec := e.Snapshot()
	if _, err := tx.Exec(ctx, `
		UPDATE game.factories
		SET balance = $1, updated_at = now()
		WHERE user_id = $2
	`, rec.Balance, userID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM game.factory_upgrades WHERE user_id = $1`, userID); err != nil {
		return err
	}
	if len(rec.Owned) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(rec.Owned))
	for i, ref := range rec.Owned {
		rows = append(rows, []any{userID, i, ref.Track, ref.Name})
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"game", "factory_upgrades"},
		[]string{"user_id", "position", "track", "name"},
		pgx.CopyFromRows(rows),
	)
	return err
}

func claimIdempotency(ctx context.Context, tx pgx.Tx, userID, key, action string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("idempotency key is required")
	}
	cmd, err := tx.Exec(ctx, `
		INSERT INTO game.idempotency_keys (user_id, key, action, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id, key) DO NOTHING
	`, userID, key, action)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDuplicateIdempotency
	}
	return nil
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
