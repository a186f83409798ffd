package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/btorressz/idxflow-orderflow/internal/app/dto"
	"github.com/btorressz/idxflow-orderflow/internal/domain/model"
	"github.com/btorressz/idxflow-orderflow/internal/domain/service"
	"github.com/btorressz/idxflow-orderflow/internal/domain/useCases"
	"github.com/btorressz/idxflow-orderflow/internal/lib/logger/sl"
)

// maxEpochSeconds is the longest epoch a time.Duration can hold.
const maxEpochSeconds = math.MaxInt64 / int64(time.Second)

// Server represents an HTTP server with all routes configured
type Server struct {
	log         *slog.Logger
	staking     useCases.StakingService
	history     useCases.History
	broadcaster useCases.Broadcaster
	metrics     http.Handler
	router      *mux.Router
	server      *http.Server
}

// NewServer creates a new HTTP server with configured routes.
// history, broadcaster and metricsHandler may be nil, in which case their
// routes are not served.
func NewServer(log *slog.Logger, addr string, staking useCases.StakingService, history useCases.History, broadcaster useCases.Broadcaster, metricsHandler http.Handler) *Server {
	router := mux.NewRouter()

	server := &Server{
		log:         log.With(slog.String("component", "http")),
		staking:     staking,
		history:     history,
		broadcaster: broadcaster,
		metrics:     metricsHandler,
		router:      router,
		server: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	server.registerRoutes()

	return server
}

// registerRoutes configures all HTTP routes
func (s *Server) registerRoutes() {
	s.router.Use(s.logRequests)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	s.router.HandleFunc("/initialize", s.handleInitialize).Methods(http.MethodPost)
	s.router.HandleFunc("/reward-rate", s.handleRewardRate).Methods(http.MethodPost)

	s.router.HandleFunc("/accounts/{owner}", s.handleCreateAccount).Methods(http.MethodPost)
	s.router.HandleFunc("/accounts/{owner}", s.handleGetAccount).Methods(http.MethodGet)
	s.router.HandleFunc("/accounts/{owner}/volume", s.handleAmount(s.staking.RecordSwapVolume)).Methods(http.MethodPost)
	s.router.HandleFunc("/accounts/{owner}/stake", s.handleAmount(s.staking.StakeTokens)).Methods(http.MethodPost)
	s.router.HandleFunc("/accounts/{owner}/unstake", s.handleAmount(s.staking.UnstakeTokens)).Methods(http.MethodPost)
	s.router.HandleFunc("/accounts/{owner}/claim", s.handleClaim).Methods(http.MethodPost)
	s.router.HandleFunc("/accounts/{owner}/rewards", s.handleRewards).Methods(http.MethodGet)
	s.router.HandleFunc("/accounts/{owner}/fee-discount", s.handleFeeDiscount).Methods(http.MethodGet)

	if s.history != nil {
		s.router.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
		s.router.HandleFunc("/swaps", s.handleSwaps).Methods(http.MethodGet)
	}
	if s.broadcaster != nil {
		s.router.HandleFunc("/ws", s.broadcaster.Handler())
	}
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request served",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("took", time.Since(start)),
		)
	})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	g, err := s.staking.GlobalState(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, dto.FromGlobalState(g))
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var req dto.InitializeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.EpochDurationSeconds > maxEpochSeconds {
		s.writeError(w, fmt.Errorf("%w: epoch duration exceeds %d seconds", service.ErrInvalidParameter, maxEpochSeconds))
		return
	}
	g, err := s.staking.Initialize(r.Context(), useCases.InitParams{
		Authority:     req.Authority,
		RewardRate:    req.RewardRate,
		EpochDuration: time.Duration(req.EpochDurationSeconds) * time.Second,
		MinVolume:     req.MinVolume,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, dto.FromGlobalState(g))
}

func (s *Server) handleRewardRate(w http.ResponseWriter, r *http.Request) {
	var req dto.RewardRateRequest
	if !s.decode(w, r, &req) {
		return
	}
	g, err := s.staking.UpdateRewardRate(r.Context(), req.Caller, req.RewardRate)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, dto.FromGlobalState(g))
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := s.staking.CreateUserAccount(r.Context(), mux.Vars(r)["owner"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, dto.FromAccount(acct))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := s.staking.Account(r.Context(), mux.Vars(r)["owner"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, dto.FromAccount(acct))
}

type amountOp func(ctx context.Context, owner string, amount uint64) (*model.UserAccount, error)

// handleAmount serves the routes that apply an amount to an account
func (s *Server) handleAmount(op amountOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.AmountRequest
		if !s.decode(w, r, &req) {
			return
		}
		acct, err := op(r.Context(), mux.Vars(r)["owner"], req.Amount)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, dto.FromAccount(acct))
	}
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	owner := mux.Vars(r)["owner"]
	reward, err := s.staking.ClaimRewards(r.Context(), owner)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, dto.ClaimDTO{Owner: owner, Reward: reward})
}

func (s *Server) handleRewards(w http.ResponseWriter, r *http.Request) {
	owner := mux.Vars(r)["owner"]
	pending, err := s.staking.PendingReward(r.Context(), owner)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, dto.RewardsDTO{Owner: owner, Pending: pending})
}

func (s *Server) handleFeeDiscount(w http.ResponseWriter, r *http.Request) {
	owner := mux.Vars(r)["owner"]
	discount, err := s.staking.FeeDiscount(r.Context(), owner)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, dto.FeeDiscountDTO{Owner: owner, DiscountPercent: discount})
}

// handleEvents lists archived ledger events, filtered by the optional
// RFC 3339 "since" query parameter
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	since, err := parseSince(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	events, err := s.history.EventsSince(r.Context(), since)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if events == nil {
		events = []*model.LedgerEvent{}
	}
	s.writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleSwaps(w http.ResponseWriter, r *http.Request) {
	since, err := parseSince(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	swaps, err := s.history.SwapsSince(r.Context(), since)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, dto.FromModels(swaps))
}

func parseSince(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return time.Time{}, nil
	}
	since, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: since must be an RFC 3339 time: %w", service.ErrInvalidParameter, err)
	}
	return since, nil
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, dto.ErrorDTO{Error: "malformed request body: " + err.Error(), Kind: "bad_request"})
		return false
	}
	return true
}

// StatusFor maps a staking error to the HTTP status reported to clients
func StatusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, service.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrAlreadyInitialized),
		errors.Is(err, service.ErrNotInitialized),
		errors.Is(err, service.ErrAccountAlreadyExists),
		errors.Is(err, service.ErrAlreadyClaimed):
		return http.StatusConflict
	case errors.Is(err, service.ErrNotEligible),
		errors.Is(err, service.ErrInsufficientStake),
		errors.Is(err, service.ErrArithmeticOverflow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrExternalTransferFailed):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrHistoryUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", sl.Err(err))
	}
	s.writeJSON(w, status, dto.ErrorDTO{Error: err.Error(), Kind: service.ErrorKind(err)})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("failed to encode response", sl.Err(err))
	}
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
