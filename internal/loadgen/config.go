// Package loadgen fires concurrent bonus requests for a single grant key at a
// running service and checks that exactly one of them wins.
package loadgen

import (
	"errors"
	"time"
)

// Defaults.
const (
	DefaultConcurrency = 50
	DefaultTimeout     = 10 * time.Second
	leaderboardLimit   = 100
)

// ErrVerification is returned when the service breaks the exactly-once contract.
var ErrVerification = errors.New("verification failed")

// Config holds configuration for a race run.
type Config struct {
	BaseURL     string        // Base URL of the service
	PlayerID    string        // Player asking for the bonus
	SessionID   string        // Session the bonus is tied to
	StreamID    string        // Optional stream; empty sends no streamId
	Concurrency int           // Number of simultaneous requests
	Timeout     time.Duration // HTTP request timeout
	Verbose     bool          // Log every response
}

// BonusRequest is the POST /leaderboard/bonus body.
type BonusRequest struct {
	PlayerID  string `json:"playerId"`
	SessionID string `json:"sessionId"`
	StreamID  string `json:"streamId,omitempty"`
}

// BonusResponse is the 200 body of POST /leaderboard/bonus.
type BonusResponse struct {
	Granted bool   `json:"granted"`
	Amount  int64  `json:"amount"`
	GrantID string `json:"grantId"`
}

// Entry represents a leaderboard entry.
type Entry struct {
	Rank       int    `json:"rank"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Total      int64  `json:"total"`
}

// Stats holds run statistics.
type Stats struct {
	Requests    int
	Granted     int
	Conflicts   int
	Failed      int         // transport failures
	OtherStatus map[int]int // any status besides 200 and 409
	Amount      int64       // amount reported by the winning response
	GrantID     string
	TotalBefore int64
	TotalAfter  int64
	StartTime   time.Time
	Duration    time.Duration
}
