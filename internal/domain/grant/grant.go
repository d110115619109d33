// Package grant coordinates the one-time bonus grant.
//
// The coordinator checks eligibility against the current ranking, reserves the
// grant key in the ledger and then applies the additive score update. The
// ranking check is only a time-of-check filter; the ledger reservation alone
// guarantees a key is granted at most once. When the score update fails after a
// successful reservation the reservation is released so a corrected retry can
// succeed.
package grant

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/podium/internal/domain/ledger"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/ranking"
	"github.com/okian/podium/pkg/logger"
	"github.com/okian/podium/pkg/metrics"
	"github.com/okian/podium/pkg/tracing"
)

// Defaults.
const (
	DefaultEligibleTopN   = 3
	DefaultTimeout        = 5 * time.Second
	DefaultReleaseTimeout = 2 * time.Second
)

// Aggregator computes player totals across streams.
type Aggregator interface {
	Aggregate(ctx context.Context, streams []string) (map[string]model.PlayerAggregate, error)
}

// ScoreUpdater applies the additive bonus to a score record.
type ScoreUpdater interface {
	AddToScore(ctx context.Context, stream, playerID, sessionID string, delta int64) (int64, error)
}

// Compensator retries releases asynchronously.
// Schedule returns false when the job could not be accepted.
type Compensator interface {
	Schedule(job model.ReleaseJob) bool
}

// Request asks for a bonus. An empty StreamID names no stream.
type Request struct {
	PlayerID  string
	SessionID string
	StreamID  string
	Amount    int64
}

// Result describes where a request ended.
type Result struct {
	State  State
	Key    model.GrantKey
	Amount int64
	Grant  model.BonusGrant
}

// Coordinator runs the grant state machine. It holds no lock across steps.
type Coordinator struct {
	agg    Aggregator
	ledger ledger.Ledger
	scores ScoreUpdater

	streams        []string
	defaultStream  string
	topN           int
	timeout        time.Duration
	releaseTimeout time.Duration
	compensator    Compensator
	log            logger.Logger
	now            func() time.Time
	newID          func() string
	tracer         trace.Tracer
}

// New returns a Coordinator.
func New(agg Aggregator, l ledger.Ledger, scores ScoreUpdater, opts ...Option) *Coordinator {
	c := &Coordinator{
		agg:            agg,
		ledger:         l,
		scores:         scores,
		topN:           DefaultEligibleTopN,
		timeout:        DefaultTimeout,
		releaseTimeout: DefaultReleaseTimeout,
		log:            logger.Nop(),
		now:            time.Now,
		newID:          uuid.NewString,
		tracer:         tracing.Tracer("grant"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.defaultStream == "" && len(c.streams) > 0 {
		c.defaultStream = c.streams[0]
	}
	return c
}

// Streams returns the known streams.
func (c *Coordinator) Streams() []string { return slices.Clone(c.streams) }

// DefaultStream returns the stream updated for requests that name none.
func (c *Coordinator) DefaultStream() string { return c.defaultStream }

// GrantBonus runs one request to a terminal state. The returned error carries
// a model kind for every state except GRANTED.
func (c *Coordinator) GrantBonus(ctx context.Context, req Request) (res Result, err error) {
	const op = "grant.bonus"
	start := time.Now()

	ctx, span := c.tracer.Start(ctx, op)
	defer func() {
		span.SetAttributes(attribute.String("podium.grant.state", res.State.String()))
		if err != nil && res.State != StateRejectedAlreadyGranted && res.State != StateRejectedNotEligible {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		metrics.RecordGrantOutcome(res.State.String())
		metrics.RecordGrantLatency(float64(time.Since(start).Milliseconds()))
	}()

	req.PlayerID = strings.TrimSpace(req.PlayerID)
	req.SessionID = strings.TrimSpace(req.SessionID)
	req.StreamID = strings.TrimSpace(req.StreamID)
	res = Result{
		State:  StateRequested,
		Key:    model.GrantKey{PlayerID: req.PlayerID, SessionID: req.SessionID, StreamID: req.StreamID},
		Amount: req.Amount,
	}

	if verr := c.validate(req); verr != nil {
		res.State = StateRejectedInvalid
		return res, model.WrapKind(op, model.ErrInputValidation, verr)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	log := c.log.With(
		logger.String("player_id", req.PlayerID),
		logger.String("session_id", req.SessionID),
		logger.String("stream_id", req.StreamID),
	)

	// 1. eligibility; best effort only
	aggs, err := c.agg.Aggregate(ctx, c.streams)
	if err != nil {
		res.State = StateFailedDataSource
		log.Warn(ctx, "eligibility check failed", logger.Error(err))
		return res, model.WrapKind(op, model.ErrDataSource, err)
	}
	if !ranking.Contains(ranking.TopN(aggs, c.topN), req.PlayerID) {
		res.State = StateRejectedNotEligible
		log.Debug(ctx, "player not eligible", logger.Int("top_n", c.topN))
		return res, model.NewKind(op, model.ErrNotEligible)
	}
	res.State = StateEligibleChecked

	// 2. reservation; the only exactly-once guard
	g := model.BonusGrant{
		ID:        c.newID(),
		PlayerID:  req.PlayerID,
		SessionID: req.SessionID,
		StreamID:  req.StreamID,
		Amount:    req.Amount,
		GrantedAt: c.now().UTC(),
	}
	reserveStart := time.Now()
	outcome, err := c.ledger.Reserve(ctx, g)
	metrics.RecordLedgerReserveLatency(float64(time.Since(reserveStart).Milliseconds()))
	if err != nil {
		// the row may or may not exist; releasing by grant id only removes
		// this call's own record, never a concurrent winner's
		res.State = StateFailedDataSource
		log.Error(ctx, "ledger reservation failed", logger.Error(err))
		c.compensate(ctx, res.Key, g.ID, "reservation outcome unknown")
		return res, model.WrapKind(op, model.ErrDataSource, err)
	}
	if outcome == ledger.AlreadyGranted {
		res.State = StateRejectedAlreadyGranted
		log.Debug(ctx, "bonus already granted")
		return res, model.NewKind(op, model.ErrAlreadyGranted)
	}
	res.State = StateReserved
	res.Grant = g

	// 3. additive update
	stream := req.StreamID
	if stream == "" {
		stream = c.defaultStream
	}
	updateStart := time.Now()
	n, err := c.scores.AddToScore(ctx, stream, req.PlayerID, req.SessionID, req.Amount)
	metrics.RecordScoreUpdateLatency(float64(time.Since(updateStart).Milliseconds()))
	if err != nil {
		res.State = StateFailedDataSource
		log.Error(ctx, "score update failed after reservation", logger.Error(err), logger.String("stream", stream))
		c.compensate(ctx, res.Key, g.ID, "score update failed: "+err.Error())
		return res, model.WrapKind(op, model.ErrDataSource, err)
	}
	if n == 0 {
		res.State = StateFailedScoreRowMissing
		log.Warn(ctx, "no score row to update", logger.String("stream", stream))
		c.compensate(ctx, res.Key, g.ID, "score row missing")
		return res, model.NewKind(op, model.ErrScoreRowMissing)
	}

	res.State = StateGranted
	log.Info(ctx, "bonus granted", logger.Int64("amount", req.Amount), logger.String("grant_id", g.ID))
	return res, nil
}

func (c *Coordinator) validate(req Request) error {
	switch {
	case req.PlayerID == "":
		return ErrMissingPlayer
	case req.SessionID == "":
		return ErrMissingSession
	case req.Amount <= 0:
		return ErrNonPositiveBonus
	case req.StreamID != "" && !slices.Contains(c.streams, req.StreamID):
		return ErrUnknownStream
	}
	return nil
}

// compensate releases the reservation grantID holds on key, even when ctx is
// already cancelled or expired.
// A failed release is handed to the compensator; without one the key stays
// reserved and an error is logged.
func (c *Coordinator) compensate(ctx context.Context, key model.GrantKey, grantID, reason string) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.releaseTimeout)
	defer cancel()

	err := c.ledger.Release(rctx, key, grantID)
	if err == nil {
		metrics.RecordCompensation("released")
		return
	}

	fields := []logger.Field{logger.Error(err), logger.String("key", key.String()), logger.String("grant_id", grantID), logger.String("reason", reason)}
	if c.compensator != nil && c.compensator.Schedule(model.ReleaseJob{
		Key:        key,
		GrantID:    grantID,
		Attempt:    1,
		Reason:     reason,
		EnqueuedAt: c.now(),
	}) {
		metrics.RecordCompensation("queued")
		c.log.Warn(ctx, "release failed, queued for retry", fields...)
		return
	}
	metrics.RecordCompensation("dropped")
	c.log.Error(ctx, "release failed, reservation left in place", fields...)
}
