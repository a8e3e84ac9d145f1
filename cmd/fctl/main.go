package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	cl "coinfactory/internal/cli"
	"coinfactory/internal/config"
	"coinfactory/internal/game"
	"coinfactory/internal/syncq"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "fctl",
		Short:        "Coin factory CLI client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "factory API base URL")

	root.AddCommand(
		newSignupCmd(&apiBase),
		newLoginCmd(&apiBase),
		newLogoutCmd(),
		newStatusCmd(&apiBase),
		newTracksCmd(&apiBase),
		newCyclesCmd(&apiBase),
		newCollectCmd(&apiBase),
		newBuyCmd(&apiBase),
		newRefundCmd(&apiBase),
		newSwapCmd(&apiBase),
		newTransferCmd(&apiBase, game.DirectionDeposit, "Move coins from your wallet into the factory"),
		newTransferCmd(&apiBase, game.DirectionWithdraw, "Move coins from the factory into your wallet"),
		newSyncCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func requireSession() (cl.Session, error) {
	sess, err := cl.LoadSession()
	if err != nil {
		return cl.Session{}, fmt.Errorf("login required: %w", err)
	}
	return sess, nil
}

func newSignupCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "signup",
		Short: "Create a factory account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			password, err := promptPassword("Password")
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			session, err := newClient(apiBase).Signup(ctx, email, password)
			if err != nil {
				return err
			}
			if strings.TrimSpace(session.AccessToken) == "" {
				printWarn("Signup created. Verify email, then run `fctl login`.")
				return nil
			}
			if err := cl.SaveSession(cl.Session{
				AccessToken:  session.AccessToken,
				RefreshToken: session.RefreshToken,
				Email:        session.User.Email,
				UserID:       session.User.ID,
			}); err != nil {
				return err
			}
			printSuccess("Signup complete. Your factory is open.")
			return nil
		},
	}
}

func newLoginCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Login to the factory",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			password, err := promptPassword("Password")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			session, err := newClient(apiBase).Login(ctx, email, password)
			if err != nil {
				return err
			}
			if err := cl.SaveSession(cl.Session{
				AccessToken:  session.AccessToken,
				RefreshToken: session.RefreshToken,
				Email:        session.User.Email,
				UserID:       session.User.ID,
			}); err != nil {
				return err
			}
			printSuccess("Login successful.")
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear local session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newStatusCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Aliases: []string{"dash"},
		Short:   "Show balances, forecast and pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			view, err := newClient(apiBase).Factory(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			renderFactory(view)
			return nil
		},
	}
}

func newTracksCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tracks",
		Short: "List upgrade tracks and what to buy next",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			tracks, err := newClient(apiBase).Tracks(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			renderTracks(tracks)
			return nil
		},
	}
}

func newCyclesCmd(apiBase *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "cycles",
		Short: "Show recent production cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			rows, err := newClient(apiBase).Cycles(ctx, sess.AccessToken, limit)
			if err != nil {
				return err
			}
			renderCycles(rows)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of cycles to show")
	return cmd
}

func newCollectCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Run one production cycle now",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			idem := uuid.NewString()
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			res, err := newClient(apiBase).Collect(ctx, sess.AccessToken, idem)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{Action: "collect", IdempotencyKey: idem})
			}
			renderCycle(res)
			return nil
		},
	}
}

func newBuyCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "buy [track] [upgrade]",
		Short: "Buy an upgrade and append it to the pipeline",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			track, upgrade, err := upgradeFromArgsOrPrompt(args)
			if err != nil {
				return err
			}
			idem := uuid.NewString()
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			res, err := newClient(apiBase).BuyUpgrade(ctx, sess.AccessToken, track, upgrade, idem)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{Action: "purchase", Track: track, Upgrade: upgrade, IdempotencyKey: idem})
			}
			printSuccess(fmt.Sprintf("Bought %s/%s for %s. Factory balance: %s",
				res.Upgrade.Track, res.Upgrade.Name, coins(res.Amount), coins(res.Balance)))
			return nil
		},
	}
}

func newRefundCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "refund [track] [upgrade]",
		Short: "Sell an owned upgrade back for its refund value",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			track, upgrade, err := upgradeFromArgsOrPrompt(args)
			if err != nil {
				return err
			}
			idem := uuid.NewString()
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			res, err := newClient(apiBase).RefundUpgrade(ctx, sess.AccessToken, track, upgrade, idem)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{Action: "refund", Track: track, Upgrade: upgrade, IdempotencyKey: idem})
			}
			printSuccess(fmt.Sprintf("Refunded %s/%s for %s. Factory balance: %s",
				res.Upgrade.Track, res.Upgrade.Name, coins(res.Amount), coins(res.Balance)))
			return nil
		},
	}
}

func newSwapCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "swap [track] [upgrade] [index]",
		Short: "Move an owned upgrade to another pipeline position",
		Args:  cobra.MaximumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			track, upgrade, err := upgradeFromArgsOrPrompt(args)
			if err != nil {
				return err
			}
			index, err := int64FromArgOrPrompt(args, 2, "Index", 0)
			if err != nil {
				return err
			}
			idem := uuid.NewString()
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			pipeline, err := newClient(apiBase).SwapUpgrade(ctx, sess.AccessToken, track, upgrade, int(index), idem)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{Action: "swap", Track: track, Upgrade: upgrade, Index: int(index), IdempotencyKey: idem})
			}
			renderPipeline(pipeline)
			return nil
		},
	}
}

func newTransferCmd(apiBase *string, direction, short string) *cobra.Command {
	return &cobra.Command{
		Use:   direction + " [amount]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			amount, err := int64FromArgOrPrompt(args, 0, "Amount", 1)
			if err != nil {
				return err
			}
			idem := uuid.NewString()
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			res, err := newClient(apiBase).Transfer(ctx, sess.AccessToken, direction, amount, idem)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{Action: direction, Amount: amount, IdempotencyKey: idem})
			}
			printSuccess(fmt.Sprintf("%s %s. Factory: %s  Wallet: %s",
				transferVerb(res.Direction), coins(res.Amount), coins(res.Balance), coins(res.WalletBalance)))
			return nil
		},
	}
}

func newSyncCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay locally queued offline writes",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			queue, err := syncq.Load()
			if err != nil {
				return err
			}
			if len(queue) == 0 {
				printInfo("Sync queue is empty.")
				return nil
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			results, err := newClient(apiBase).SyncReplay(ctx, sess.AccessToken, queue)
			if err != nil {
				return err
			}
			for _, r := range results {
				if r.Status == "failed" {
					printError(fmt.Sprintf("Sync failed for %s (%s): %s", r.Action, r.IdempotencyKey, r.Error))
				}
			}
			remaining := syncq.Retain(queue, results)
			if err := syncq.Save(remaining); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Sync complete: replayed=%d remaining=%d", len(queue)-len(remaining), len(remaining)))
			return nil
		},
	}
}

func queueOnNetworkError(err error, q syncq.Command) error {
	if err == nil {
		return nil
	}
	if !cl.IsOffline(err) {
		var apiErr *cl.APIError
		if errors.As(err, &apiErr) {
			return errors.New(apiErr.Message)
		}
		return err
	}
	q.QueuedAt = time.Now().UTC()
	if qerr := syncq.Push(q); qerr != nil {
		return fmt.Errorf("request failed and could not be queued: %w", errors.Join(err, qerr))
	}
	printWarn(fmt.Sprintf("API unreachable; queued %s. Run `fctl sync` when back online.", q.Action))
	return nil
}

func upgradeFromArgsOrPrompt(args []string) (track, upgrade string, err error) {
	if len(args) > 0 {
		track = strings.TrimSpace(args[0])
	} else if track, err = promptRequired("Track"); err != nil {
		return "", "", err
	}
	if len(args) > 1 {
		upgrade = strings.TrimSpace(args[1])
	} else if upgrade, err = promptRequired("Upgrade"); err != nil {
		return "", "", err
	}
	return track, upgrade, nil
}

func int64FromArgOrPrompt(args []string, idx int, label string, min int64) (int64, error) {
	if len(args) > idx {
		v, err := strconv.ParseInt(strings.TrimSpace(args[idx]), 10, 64)
		if err != nil || v < min {
			return 0, fmt.Errorf("invalid %s", strings.ToLower(label))
		}
		return v, nil
	}
	return promptInt64(label, min)
}
