package loadgen_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/podium/internal/adapters/http/api"
	"github.com/okian/podium/internal/adapters/repository"
	service "github.com/okian/podium/internal/app"
	"github.com/okian/podium/internal/config"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/loadgen"
	"github.com/okian/podium/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()

	store := repository.NewMemoryStore(repository.WithStreams("scores", "emoji_scores"))
	now := time.Now()
	for _, r := range []model.ScoreRecord{
		{PlayerID: "P1", PlayerName: "Ada", SessionID: "S1", StreamID: "scores", Value: 100, RecordedAt: now},
		{PlayerID: "P1", PlayerName: "Ada", SessionID: "S1", StreamID: "emoji_scores", Value: 5, RecordedAt: now},
		{PlayerID: "P2", PlayerName: "Bob", SessionID: "S2", StreamID: "scores", Value: 50, RecordedAt: now},
	} {
		if err := store.Append(ctx, r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	cfg := config.New()
	cfg.ScoreStore = config.StoreMemory
	cfg.Ledger = config.LedgerMemory
	cfg.ReleaseWorkers = 1
	svc := service.New(service.WithConfig(cfg), service.WithScoreStore(store))
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(svc.Stop)

	mux := http.NewServeMux()
	api.NewServer(svc).Register(ctx, mux)
	srv := httptest.NewServer(api.RequestID(mux))
	t.Cleanup(srv.Close)
	return srv
}

func TestRun(t *testing.T) {
	Convey("Given a running service", t, func() {
		srv := startServer(t)
		ctx := context.Background()
		cfg := &loadgen.Config{BaseURL: srv.URL, PlayerID: "P1", SessionID: "S1", Concurrency: 24}

		Convey("When the race is run", func() {
			stats, err := loadgen.Run(ctx, cfg)

			Convey("Then exactly one request wins", func() {
				So(err, ShouldBeNil)
				So(stats.Granted, ShouldEqual, 1)
				So(stats.Conflicts, ShouldEqual, 23)
				So(stats.Amount, ShouldEqual, 10)
				So(stats.TotalAfter-stats.TotalBefore, ShouldEqual, 10)
			})

			Convey("And a rerun sees only conflicts", func() {
				stats, err := loadgen.Run(ctx, cfg)

				So(err, ShouldBeNil)
				So(stats.Granted, ShouldEqual, 0)
				So(stats.Conflicts, ShouldEqual, 24)
				So(stats.TotalAfter, ShouldEqual, stats.TotalBefore)
			})
		})

		Convey("When the race targets a named stream", func() {
			cfg.StreamID = "emoji_scores"
			stats, err := loadgen.Run(ctx, cfg)

			So(err, ShouldBeNil)
			So(stats.TotalBefore, ShouldEqual, 5)
			So(stats.TotalAfter, ShouldEqual, 15)
		})

		Convey("When the player is not on the leaderboard", func() {
			cfg.PlayerID = "ghost"
			_, err := loadgen.Run(ctx, cfg)

			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "ghost")
		})
	})

	Convey("Given a service that grants every request", t, func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {})
		mux.HandleFunc("/leaderboard", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"entries":[{"rank":1,"playerId":"P1","total":100}]}`))
		})
		mux.HandleFunc("/leaderboard/bonus", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"granted":true,"amount":10}`))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		Convey("Then the run fails verification", func() {
			_, err := loadgen.Run(context.Background(), &loadgen.Config{
				BaseURL: srv.URL, PlayerID: "P1", SessionID: "S1", Concurrency: 4,
			})
			So(errors.Is(err, loadgen.ErrVerification), ShouldBeTrue)
		})
	})

	Convey("Given a config without a player", t, func() {
		_, err := loadgen.Run(context.Background(), &loadgen.Config{BaseURL: "http://127.0.0.1:0"})
		So(err, ShouldNotBeNil)
	})
}
