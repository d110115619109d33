package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/podium/internal/adapters/repository"
	service "github.com/okian/podium/internal/app"
	"github.com/okian/podium/internal/config"
	"github.com/okian/podium/internal/domain/grant"
	"github.com/okian/podium/internal/domain/ledger"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func memoryConfig() *config.Config {
	cfg := config.New()
	cfg.ScoreStore = config.StoreMemory
	cfg.Ledger = config.LedgerMemory
	cfg.ReleaseWorkers = 1
	return cfg
}

func seededStore(t *testing.T) *repository.MemoryStore {
	t.Helper()
	store := repository.NewMemoryStore(repository.WithStreams("scores", "emoji_scores"))
	now := time.Now()
	for _, r := range []model.ScoreRecord{
		{PlayerID: "P1", PlayerName: "Ada", SessionID: "S1", StreamID: "scores", Value: 60, RecordedAt: now},
		{PlayerID: "P1", PlayerName: "Ada", SessionID: "S1", StreamID: "emoji_scores", Value: 40, RecordedAt: now},
		{PlayerID: "P2", PlayerName: "Bob", SessionID: "S2", StreamID: "scores", Value: 90, RecordedAt: now},
		{PlayerID: "P3", PlayerName: "Cy", SessionID: "S3", StreamID: "emoji_scores", Value: 80, RecordedAt: now},
		{PlayerID: "P4", PlayerName: "Di", SessionID: "S4", StreamID: "scores", Value: 70, RecordedAt: now},
	} {
		if err := store.Append(context.Background(), r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	return store
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should expose the default streams and limits", func() {
			So(svc.Streams(), ShouldResemble, []string{"scores", "emoji_scores"})
			def, maxLimit := svc.Limits()
			So(def, ShouldEqual, 10)
			So(maxLimit, ShouldEqual, 100)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a memory-backed service", t, func() {
		svc := service.New(service.WithConfig(memoryConfig()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		Convey("When it is used before Start", func() {
			_, err := svc.Leaderboard(ctx, nil, 0)
			_, gerr := svc.GrantBonus(ctx, "P1", "S1", "")

			Convey("Then calls fail as a data source error", func() {
				So(errors.Is(err, model.ErrDataSource), ShouldBeTrue)
				So(errors.Is(gerr, model.ErrDataSource), ShouldBeTrue)
				So(errors.Is(svc.Ready(ctx), model.ErrDataSource), ShouldBeTrue)
			})
		})

		Convey("When starting and stopping the service", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil) // idempotent
			So(svc.Ready(ctx), ShouldBeNil)

			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats["defaultStream"], ShouldEqual, "scores")
			So(stats["releaseWorkers"], ShouldEqual, 1)
			So(stats["ledgerEntries"], ShouldEqual, int64(0))

			svc.Stop()
			svc.Stop()

			Convey("Then it should be marked as stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})

	Convey("Given a config asking for a sql ledger over a memory store", t, func() {
		cfg := memoryConfig()
		cfg.Ledger = config.LedgerSQL
		svc := service.New(service.WithConfig(cfg))

		Convey("Then Start refuses it", func() {
			err := svc.Start(context.Background())
			So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

func TestService_Leaderboard(t *testing.T) {
	Convey("Given a started service over two streams", t, func() {
		ctx := context.Background()
		svc := service.New(
			service.WithConfig(memoryConfig()),
			service.WithScoreStore(seededStore(t)),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When reading the full leaderboard", func() {
			entries, err := svc.Leaderboard(ctx, nil, 0)

			Convey("Then totals are merged across streams and ranked", func() {
				So(err, ShouldBeNil)
				So(entries, ShouldHaveLength, 4)
				So(entries[0], ShouldResemble, model.LeaderboardEntry{Rank: 1, PlayerID: "P1", PlayerName: "Ada", Total: 100})
				So(entries[1].PlayerID, ShouldEqual, "P2")
				So(entries[2].PlayerID, ShouldEqual, "P3")
				So(entries[3].Rank, ShouldEqual, 4)
			})
		})

		Convey("When reading a single stream with a limit", func() {
			entries, err := svc.Leaderboard(ctx, []string{"emoji_scores"}, 1)

			So(err, ShouldBeNil)
			So(entries, ShouldHaveLength, 1)
			So(entries[0].PlayerID, ShouldEqual, "P3")
			So(entries[0].Total, ShouldEqual, 80)
		})

		Convey("When a limit above the maximum is requested", func() {
			entries, err := svc.Leaderboard(ctx, nil, 10_000)

			So(err, ShouldBeNil)
			So(entries, ShouldHaveLength, 4)
		})

		Convey("When an unknown stream is requested", func() {
			_, err := svc.Leaderboard(ctx, []string{"chess"}, 0)

			So(errors.Is(err, model.ErrInputValidation), ShouldBeTrue)
			So(errors.Is(err, grant.ErrUnknownStream), ShouldBeTrue)
		})
	})
}

func TestService_GrantBonus(t *testing.T) {
	Convey("Given a started service with an injected ledger", t, func() {
		ctx := context.Background()
		store := seededStore(t)
		l := ledger.NewInMemoryLedger()
		svc := service.New(
			service.WithConfig(memoryConfig()),
			service.WithScoreStore(store),
			service.WithLedger(l),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When the leader asks twice", func() {
			first, err := svc.GrantBonus(ctx, "P1", "S1", "")
			So(err, ShouldBeNil)
			So(first.State, ShouldEqual, grant.StateGranted)
			So(first.Amount, ShouldEqual, 10)

			_, err = svc.GrantBonus(ctx, "P1", "S1", "")

			Convey("Then only the first is granted and the default stream took the bonus", func() {
				So(errors.Is(err, model.ErrAlreadyGranted), ShouldBeTrue)
				So(l.Size(), ShouldEqual, 1)
				So(store.Records("scores")[0].Value, ShouldEqual, 70)

				entries, err := svc.Leaderboard(ctx, nil, 1)
				So(err, ShouldBeNil)
				So(entries[0].Total, ShouldEqual, 110)
			})
		})

		Convey("When a player outside the top three asks", func() {
			res, err := svc.GrantBonus(ctx, "P4", "S4", "")

			So(errors.Is(err, model.ErrNotEligible), ShouldBeTrue)
			So(res.State, ShouldEqual, grant.StateRejectedNotEligible)
			So(l.Size(), ShouldEqual, 0)
		})

		Convey("When the same player asks for a named stream", func() {
			res, err := svc.GrantBonus(ctx, "P1", "S1", "emoji_scores")

			So(err, ShouldBeNil)
			So(res.Key.StreamID, ShouldEqual, "emoji_scores")
			So(store.Records("emoji_scores")[0].Value, ShouldEqual, 50)
		})
	})
}
