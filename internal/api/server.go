package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"coinfactory/internal/auth"
	"coinfactory/internal/factory"
	"coinfactory/internal/game"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type contextKey string

const userContextKey contextKey = "user"

type UserContext struct {
	UserID string
	Email  string
	Token  string
}

// FactoryService is the slice of game.Service the HTTP layer needs.
type FactoryService interface {
	EnsurePlayer(ctx context.Context, userID string) error
	Factory(ctx context.Context, userID string) (game.FactoryView, error)
	Tracks(ctx context.Context, userID string) ([]game.TrackView, error)
	CycleHistory(ctx context.Context, userID string, limit int) ([]game.CycleLogRow, error)
	Collect(ctx context.Context, userID, idem string) (game.CycleResult, error)
	Purchase(ctx context.Context, in game.UpgradeInput) (game.UpgradeResult, error)
	Refund(ctx context.Context, in game.UpgradeInput) (game.UpgradeResult, error)
	Swap(ctx context.Context, in game.SwapInput) ([]game.UpgradeView, error)
	Transfer(ctx context.Context, in game.TransferInput) (game.TransferResult, error)
	ReplaySync(ctx context.Context, userID string, commands []game.ReplayCommand) ([]game.ReplayResult, error)
}

type Authenticator interface {
	SignUp(ctx context.Context, email, password string) (auth.Session, error)
	Login(ctx context.Context, email, password string) (auth.Session, error)
	VerifyAccessToken(ctx context.Context, accessToken string) (auth.SupabaseUser, error)
}

var (
	_ FactoryService = (*game.Service)(nil)
	_ Authenticator  = (*auth.SupabaseClient)(nil)
)

type Server struct {
	log  *slog.Logger
	auth Authenticator
	game FactoryService
	mux  *chi.Mux
}

func New(logger *slog.Logger, authClient Authenticator, svc FactoryService) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		log:  logger,
		auth: authClient,
		game: svc,
		mux:  chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/signup", s.handleSignup)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Route("/factory", func(r chi.Router) {
				r.Get("/", s.handleFactory)
				r.Get("/tracks", s.handleTracks)
				r.Get("/cycles", s.handleCycles)
				r.Post("/collect", s.handleCollect)
				r.Post("/upgrades/buy", s.handleBuyUpgrade)
				r.Post("/upgrades/refund", s.handleRefundUpgrade)
				r.Post("/upgrades/swap", s.handleSwapUpgrade)
				r.Post("/deposit", s.handleTransfer(game.DirectionDeposit))
				r.Post("/withdraw", s.handleTransfer(game.DirectionWithdraw))
			})
			r.Post("/sync/replay", s.handleSyncReplay)
		})
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		user, err := s.auth.VerifyAccessToken(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, fmt.Sprintf("invalid token: %v", err))
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, UserContext{
			UserID: user.ID,
			Email:  user.Email,
			Token:  token,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(ctx context.Context) (UserContext, error) {
	v := ctx.Value(userContextKey)
	user, ok := v.(UserContext)
	if !ok || user.UserID == "" {
		return UserContext{}, errors.New("missing auth context")
	}
	return user, nil
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	session, err := s.auth.SignUp(r.Context(), strings.TrimSpace(in.Email), strings.TrimSpace(in.Password))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if session.User.ID != "" {
		if err := s.game.EnsurePlayer(r.Context(), session.User.ID); err != nil {
			writeDomainError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	session, err := s.auth.Login(r.Context(), strings.TrimSpace(in.Email), strings.TrimSpace(in.Password))
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err := s.game.EnsurePlayer(r.Context(), session.User.ID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleFactory(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	out, err := s.game.Factory(r.Context(), user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	out, err := s.game.Tracks(r.Context(), user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks": out})
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}
	out, err := s.game.CycleHistory(r.Context(), user.UserID, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cycles": out})
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	out, err := s.game.Collect(r.Context(), user.UserID, idempotencyKey(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type upgradeRequest struct {
	Track   string `json:"track"`
	Upgrade string `json:"upgrade"`
}

func (s *Server) handleBuyUpgrade(w http.ResponseWriter, r *http.Request) {
	s.handleUpgrade(w, r, s.game.Purchase)
}

func (s *Server) handleRefundUpgrade(w http.ResponseWriter, r *http.Request) {
	s.handleUpgrade(w, r, s.game.Refund)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request, op func(context.Context, game.UpgradeInput) (game.UpgradeResult, error)) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in upgradeRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := op(r.Context(), game.UpgradeInput{
		UserID:         user.UserID,
		Track:          in.Track,
		Upgrade:        in.Upgrade,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSwapUpgrade(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Track   string `json:"track"`
		Upgrade string `json:"upgrade"`
		Index   int    `json:"index"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.Swap(r.Context(), game.SwapInput{
		UserID:         user.UserID,
		Track:          in.Track,
		Upgrade:        in.Upgrade,
		Index:          in.Index,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pipeline": out})
}

func (s *Server) handleTransfer(direction string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := userFromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		var in struct {
			Amount int64 `json:"amount"`
		}
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		out, err := s.game.Transfer(r.Context(), game.TransferInput{
			UserID:         user.UserID,
			Direction:      direction,
			Amount:         in.Amount,
			IdempotencyKey: idempotencyKey(r),
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleSyncReplay(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Commands []game.ReplayCommand `json:"commands"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.ReplaySync(r.Context(), user.UserID, in.Commands)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.log.Info("sync replayed", "user_id", user.UserID, "commands", len(in.Commands))
	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, factory.ErrInsufficientFunds):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, factory.ErrInvalidArgument), errors.Is(err, game.ErrInvalidUser):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, factory.ErrNotFound), errors.Is(err, game.ErrFactoryNotFound), errors.Is(err, game.ErrWalletNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, factory.ErrNotOwned), errors.Is(err, factory.ErrAlreadyOwned):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, game.ErrDuplicateIdempotency), errors.Is(err, game.ErrTxConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func idempotencyKey(r *http.Request) string {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" {
		return key
	}
	return uuid.NewString()
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
