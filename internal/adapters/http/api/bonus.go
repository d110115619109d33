package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/pkg/logger"
)

const maxBonusBody = 1 << 16

// BonusDependencies defines the interface for bonus grants.
type BonusDependencies interface {
	GrantBonus(ctx context.Context, playerID, sessionID, streamID string) (Result, error)
}

// BonusHandler handles bonus requests.
type BonusHandler struct {
	deps   BonusDependencies
	logger logger.Logger
}

// NewBonusHandler creates a new bonus handler.
func NewBonusHandler(deps BonusDependencies, log logger.Logger) *BonusHandler {
	return &BonusHandler{deps: deps, logger: log}
}

// bonusRequest mirrors the OpenAPI schema for POST /leaderboard/bonus.
// A missing or null streamId names no stream.
type bonusRequest struct {
	PlayerID  string `json:"playerId"`
	SessionID string `json:"sessionId"`
	StreamID  string `json:"streamId,omitempty"`
}

type bonusResponse struct {
	Granted   bool   `json:"granted"`
	Amount    int64  `json:"amount"`
	GrantID   string `json:"grantId"`
	PlayerID  string `json:"playerId"`
	SessionID string `json:"sessionId"`
	StreamID  string `json:"streamId,omitempty"`
}

// HandlePostBonus handles POST /leaderboard/bonus requests.
func (h *BonusHandler) HandlePostBonus(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_bonus"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req bonusRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBonusBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", model.WrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := h.deps.GrantBonus(r.Context(), req.PlayerID, req.SessionID, req.StreamID)
	if err != nil {
		writeKindError(r.Context(), w, h.logger.With(
			logger.String("playerId", req.PlayerID),
			logger.String("state", res.State.String()),
		), model.Wrap(op, err))
		return
	}

	h.logger.Info(r.Context(), "bonus granted",
		logger.String("grantId", res.Grant.ID),
		logger.String("key", res.Key.String()),
		logger.Int64("amount", res.Amount),
	)
	writeJSON(w, http.StatusOK, bonusResponse{
		Granted:   true,
		Amount:    res.Amount,
		GrantID:   res.Grant.ID,
		PlayerID:  res.Key.PlayerID,
		SessionID: res.Key.SessionID,
		StreamID:  res.Key.StreamID,
	})
}
