package repository

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/okian/podium/internal/domain/model"
	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML layout used to preload score streams:
//
//	streams:
//	  scores:
//	    - {playerId: P1, playerName: Ada, sessionId: S1, value: 50}
type SeedFile struct {
	Streams map[string][]model.ScoreRecord `yaml:"streams"`
}

// LoadSeed reads and validates a seed file.
func LoadSeed(path string) (SeedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return SeedFile{}, fmt.Errorf("read seed %s: %w", path, err)
	}
	var f SeedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return SeedFile{}, fmt.Errorf("%w: %s: %w", ErrInvalidSeed, path, err)
	}
	for stream, records := range f.Streams {
		for i, r := range records {
			if r.PlayerID == "" || r.SessionID == "" {
				return SeedFile{}, fmt.Errorf("%w: %s[%d]: playerId and sessionId are required", ErrInvalidSeed, stream, i)
			}
		}
	}
	return f, nil
}

// Seed appends every record of f to store, returning how many were written.
// Records without a timestamp get now, in file order.
func Seed(ctx context.Context, store Store, f SeedFile, now time.Time) (int, error) {
	n := 0
	for stream, records := range f.Streams {
		for i, r := range records {
			r.StreamID = stream
			if r.RecordedAt.IsZero() {
				r.RecordedAt = now.Add(time.Duration(i) * time.Millisecond)
			}
			if err := store.Append(ctx, r); err != nil {
				return n, fmt.Errorf("seed %s[%d]: %w", stream, i, err)
			}
			n++
		}
	}
	return n, nil
}
