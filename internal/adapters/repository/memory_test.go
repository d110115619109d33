package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/podium/internal/domain/model"
)

func rec(stream, player, session string, value int64, at time.Time) model.ScoreRecord {
	return model.ScoreRecord{
		PlayerID:   player,
		PlayerName: "name-" + player,
		SessionID:  session,
		StreamID:   stream,
		Value:      value,
		RecordedAt: at,
	}
}

func TestMemoryStore_SumByPlayer(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(WithStreams("scores", "emoji_scores"))
	now := time.Now()

	for _, r := range []model.ScoreRecord{
		rec("scores", "P1", "S1", 50, now),
		rec("scores", "P1", "S2", 25, now),
		rec("scores", "P2", "S1", 10, now),
		rec("emoji_scores", "P1", "S1", 30, now),
	} {
		if err := store.Append(ctx, r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	sums, err := store.SumByPlayer(ctx, "scores")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sums) != 2 {
		t.Fatalf("expected 2 players, got %d", len(sums))
	}
	if sums["P1"].Total != 75 {
		t.Errorf("expected P1 total 75, got %d", sums["P1"].Total)
	}
	if sums["P1"].PlayerName != "name-P1" {
		t.Errorf("expected player name, got %q", sums["P1"].PlayerName)
	}

	emoji, err := store.SumByPlayer(ctx, "emoji_scores")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emoji["P1"].Total != 30 {
		t.Errorf("expected emoji total 30, got %d", emoji["P1"].Total)
	}

	empty := NewMemoryStore(WithStreams("scores"))
	sums, err = empty.SumByPlayer(ctx, "scores")
	if err != nil || len(sums) != 0 {
		t.Errorf("expected empty sums for empty stream, got %v, %v", sums, err)
	}
}

func TestMemoryStore_UnknownStream(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(WithStreams("scores"))

	if _, err := store.SumByPlayer(ctx, "nope"); !errors.Is(err, ErrUnknownStream) {
		t.Errorf("expected ErrUnknownStream from SumByPlayer, got %v", err)
	}
	if _, err := store.AddToScore(ctx, "nope", "P1", "S1", 1); !errors.Is(err, ErrUnknownStream) {
		t.Errorf("expected ErrUnknownStream from AddToScore, got %v", err)
	}
	if err := store.Append(ctx, rec("nope", "P1", "S1", 1, time.Now())); !errors.Is(err, ErrUnknownStream) {
		t.Errorf("expected ErrUnknownStream from Append, got %v", err)
	}
}

func TestMemoryStore_AddToScore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(WithStreams("scores"))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// later record inserted first; the earlier one must receive the bonus
	_ = store.Append(ctx, rec("scores", "P1", "S1", 5, base.Add(time.Minute)))
	_ = store.Append(ctx, rec("scores", "P1", "S1", 7, base))
	_ = store.Append(ctx, rec("scores", "P1", "S2", 1, base))

	n, err := store.AddToScore(ctx, "scores", "P1", "S1", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row affected, got %d", n)
	}

	records := store.Records("scores")
	if records[0].Value != 5 || records[1].Value != 17 || records[2].Value != 1 {
		t.Errorf("bonus applied to wrong record: %+v", records)
	}

	n, err = store.AddToScore(ctx, "scores", "P1", "missing", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 rows affected for missing session, got %d", n)
	}
}

func TestMemoryStore_Closed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(WithStreams("scores"))

	if err := store.Ping(ctx); err != nil {
		t.Fatalf("ping open store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := store.Ping(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, err := store.SumByPlayer(ctx, "scores"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from SumByPlayer, got %v", err)
	}
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := NewMemoryStore(WithStreams("scores"))

	if _, err := store.SumByPlayer(ctx, "scores"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestMemoryStore_ConcurrentAddToScore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(WithStreams("scores"))
	_ = store.Append(ctx, rec("scores", "P1", "S1", 0, time.Now()))

	const workers = 20
	const perWorker = 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if _, err := store.AddToScore(ctx, "scores", "P1", "S1", 1); err != nil {
					t.Errorf("add: %v", err)
				}
			}
		}()
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			_ = store.Append(ctx, rec("scores", fmt.Sprintf("X%d", w), "S", 1, time.Now()))
			_, _ = store.SumByPlayer(ctx, "scores")
		}(w)
	}
	wg.Wait()

	sums, err := store.SumByPlayer(ctx, "scores")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sums["P1"].Total != workers*perWorker {
		t.Errorf("expected %d, got %d", workers*perWorker, sums["P1"].Total)
	}
	if len(sums) != workers+1 {
		t.Errorf("expected %d players, got %d", workers+1, len(sums))
	}
}
