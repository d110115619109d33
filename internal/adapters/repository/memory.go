package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/podium/internal/domain/model"
)

// MemoryStore keeps score streams in process memory.
// Records keep insertion order, which breaks ties between equal RecordedAt values.
type MemoryStore struct {
	mu      sync.RWMutex
	streams map[string][]*model.ScoreRecord
	closed  bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store accepting the streams named by WithStreams.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{streams: make(map[string][]*model.ScoreRecord)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SumByPlayer implements Store.
func (s *MemoryStore) SumByPlayer(ctx context.Context, stream string) (map[string]model.PlayerSum, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.stream(stream)
	if err != nil {
		return nil, err
	}

	out := make(map[string]model.PlayerSum)
	for _, r := range records {
		sum := out[r.PlayerID]
		sum.Total += r.Value
		// highest name wins, like MAX(player_name) in SQL
		if r.PlayerName > sum.PlayerName {
			sum.PlayerName = r.PlayerName
		}
		out[r.PlayerID] = sum
	}
	return out, nil
}

// AddToScore implements Store.
func (s *MemoryStore) AddToScore(ctx context.Context, stream, playerID, sessionID string, delta int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.stream(stream)
	if err != nil {
		return 0, err
	}

	var target *model.ScoreRecord
	for _, r := range records {
		if r.PlayerID != playerID || r.SessionID != sessionID {
			continue
		}
		if target == nil || r.RecordedAt.Before(target.RecordedAt) {
			target = r
		}
	}
	if target == nil {
		return 0, nil
	}
	target.Value += delta
	return 1, nil
}

// Append implements Store.
func (s *MemoryStore) Append(ctx context.Context, rec model.ScoreRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.stream(rec.StreamID)
	if err != nil {
		return err
	}
	r := rec
	s.streams[rec.StreamID] = append(records, &r)
	return nil
}

// Records returns a copy of the records held in stream.
func (s *MemoryStore) Records(stream string) []model.ScoreRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ScoreRecord, 0, len(s.streams[stream]))
	for _, r := range s.streams[stream] {
		out = append(out, *r)
	}
	return out
}

// Ping implements Store.
func (s *MemoryStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// stream must be called with s.mu held.
func (s *MemoryStore) stream(name string) ([]*model.ScoreRecord, error) {
	if s.closed {
		return nil, ErrClosed
	}
	records, ok := s.streams[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStream, name)
	}
	return records, nil
}
