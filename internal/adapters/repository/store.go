// Package repository defines the score store interface and its in-memory implementation.
package repository

import (
	"context"

	"github.com/okian/podium/internal/domain/model"
)

// Store provides read/write access to the score streams.
// Each stream holds the append-only score records of one game type.
type Store interface {
	// SumByPlayer returns the grouped sum of every record in stream, keyed by player id.
	SumByPlayer(ctx context.Context, stream string) (map[string]model.PlayerSum, error)

	// AddToScore adds delta to the earliest record matching (playerID, sessionID) in stream.
	// Returns the number of rows affected: 1 on success, 0 when no record matches.
	AddToScore(ctx context.Context, stream, playerID, sessionID string, delta int64) (int64, error)

	// Append writes a new record to rec.StreamID.
	Append(ctx context.Context, rec model.ScoreRecord) error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error

	Close() error
}
