package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"coinfactory/internal/factory"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// walletLedger is the player's wallet seen through an open transaction. It
// satisfies factory.Ledger so the engine can move coins in and out.
type walletLedger struct {
	tx     pgx.Tx
	userID string
}

var _ factory.Ledger = (*walletLedger)(nil)

func newWalletLedger(tx pgx.Tx, userID string) *walletLedger {
	return &walletLedger{tx: tx, userID: userID}
}

func (l *walletLedger) Balance(ctx context.Context) (int64, error) {
	var balance int64
	err := l.tx.QueryRow(ctx, `
		SELECT balance
		FROM game.wallets
		WHERE user_id = $1
		FOR UPDATE
	`, l.userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrWalletNotFound
	}
	return balance, err
}

func (l *walletLedger) Deposit(ctx context.Context, amount int64) error {
	tag, err := l.tx.Exec(ctx, `
		UPDATE game.wallets
		SET balance = balance + $1, updated_at = now()
		WHERE user_id = $2
	`, amount, l.userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWalletNotFound
	}
	return appendLedgerEntries(ctx, l.tx, l.userID, "factory_withdraw", amount)
}

func (l *walletLedger) Withdraw(ctx context.Context, amount int64) error {
	balance, err := l.Balance(ctx)
	if err != nil {
		return err
	}
	if amount > balance {
		return fmt.Errorf("%w: wallet holds %d, asked for %d", factory.ErrInsufficientFunds, balance, amount)
	}
	if _, err := l.tx.Exec(ctx, `
		UPDATE game.wallets
		SET balance = balance - $1, updated_at = now()
		WHERE user_id = $2
	`, amount, l.userID); err != nil {
		return err
	}
	return appendLedgerEntries(ctx, l.tx, l.userID, "factory_deposit", -amount)
}

// appendLedgerEntries writes a balanced pair: the wallet moves by walletDelta
// and the factory by the opposite amount.
func appendLedgerEntries(ctx context.Context, tx pgx.Tx, userID, action string, walletDelta int64) error {
	txID := uuid.NewString()
	meta, _ := json.Marshal(map[string]any{"action": action})
	_, err := tx.Exec(ctx, `
		INSERT INTO game.ledger_entries (tx_group_id, user_id, account, delta, metadata)
		VALUES
		($1, $2, 'wallet', $3, $5::jsonb),
		($1, $2, 'factory', $4, $5::jsonb)
	`, txID, userID, walletDelta, -walletDelta, string(meta))
	return err
}
