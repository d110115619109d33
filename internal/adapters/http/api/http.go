// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/podium/internal/domain/grant"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	LeaderboardDependencies
	BonusDependencies
	ReadinessChecker
	StatsProvider
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = model.LeaderboardEntry

// Result is the coordinator's answer to a bonus request.
type Result = grant.Result

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	leaderboardHandler *LeaderboardHandler
	bonusHandler       *BonusHandler
	limiter            *RateLimiter
	logger             logger.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithRateLimiter limits POST /leaderboard/bonus per client.
func WithRateLimiter(rl *RateLimiter) ServerOption {
	return func(s *Server) { s.limiter = rl }
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...ServerOption) *Server {
	s := &Server{logger: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler(deps)
	s.statsHandler = NewStatsHandler(deps)
	s.leaderboardHandler = NewLeaderboardHandler(deps, s.logger)
	s.bonusHandler = NewBonusHandler(deps, s.logger)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	bonus := s.bonusHandler.HandlePostBonus
	if s.limiter != nil {
		bonus = s.limiter.Limit(bonus, "bonus")
	}

	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/readyz", MetricsMiddleware(s.healthHandler.HandleReady, "readyz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/leaderboard/bonus", MetricsMiddleware(bonus, "bonus"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeKindError maps err to a status and writes it. Server-side failures
// expose only their kind; the full error goes to the log.
func writeKindError(ctx context.Context, w http.ResponseWriter, log logger.Logger, err error) {
	status, code := statusFor(err)
	switch {
	case status >= http.StatusInternalServerError:
		log.Error(ctx, "request failed", logger.String("code", code), logger.Error(err))
		msg := http.StatusText(status)
		if kind := model.KindOf(err); kind != nil {
			msg = kind.Error()
		}
		writeJSON(w, status, errorResponse{Code: code, Message: msg})
		return
	case status == http.StatusConflict:
		log.Debug(ctx, "request rejected", logger.String("code", code), logger.Error(err))
	default:
		log.Info(ctx, "request rejected", logger.String("code", code), logger.Error(err))
	}
	writeError(w, status, code, err)
}
