// Package model contains domain models passed between layers.
package model

import (
	"net/url"
	"strings"
	"time"
)

// ScoreRecord is one row of a score stream.
// Only the score store creates or mutates it; the bonus grant is the single
// additive update applied after creation.
type ScoreRecord struct {
	PlayerID   string    `yaml:"playerId"`
	PlayerName string    `yaml:"playerName"`
	SessionID  string    `yaml:"sessionId"`
	StreamID   string    `yaml:"-"` // game type; implied by the stream holding the record
	Value      int64     `yaml:"value"`
	RecordedAt time.Time `yaml:"recordedAt"`
}

// PlayerSum is a stream-local grouped sum for one player.
type PlayerSum struct {
	PlayerName string
	Total      int64
}

// PlayerAggregate is a player's total across every aggregated stream.
// Derived per request, never stored.
type PlayerAggregate struct {
	PlayerID   string
	PlayerName string
	Total      int64
}

// LeaderboardEntry is a ranked aggregate.
type LeaderboardEntry struct {
	Rank       int    `json:"rank"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Total      int64  `json:"total"`
}

// GrantKey identifies one allowable bonus grant.
// An empty StreamID stands for a grant that names no stream.
type GrantKey struct {
	PlayerID  string
	SessionID string
	StreamID  string
}

// String renders the key with each part escaped, so distinct keys never collide.
func (k GrantKey) String() string {
	return strings.Join([]string{
		url.QueryEscape(k.PlayerID),
		url.QueryEscape(k.SessionID),
		url.QueryEscape(k.StreamID),
	}, ":")
}

// BonusGrant is the persisted, append-only record of a granted bonus.
type BonusGrant struct {
	ID        string    `json:"id"`
	PlayerID  string    `json:"playerId"`
	SessionID string    `json:"sessionId"`
	StreamID  string    `json:"streamId,omitempty"`
	Amount    int64     `json:"amount"`
	GrantedAt time.Time `json:"grantedAt"`
}

// Key returns the idempotency key of the grant.
func (g BonusGrant) Key() GrantKey {
	return GrantKey{PlayerID: g.PlayerID, SessionID: g.SessionID, StreamID: g.StreamID}
}
