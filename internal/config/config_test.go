package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/podium/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Streams, convey.ShouldResemble, []string{"scores", "emoji_scores"})
			convey.So(cfg.EligibleTopN, convey.ShouldEqual, 3)
			convey.So(cfg.BonusAmount, convey.ShouldEqual, 10)
			convey.So(cfg.GrantTimeout, convey.ShouldEqual, 5*time.Second)
			convey.So(cfg.ScoreStore, convey.ShouldEqual, config.StoreSQLite)
			convey.So(cfg.Ledger, convey.ShouldEqual, config.LedgerSQL)
			convey.So(cfg.MetricsEnabled, convey.ShouldBeTrue)
			convey.So(cfg.MetricsRefreshInterval, convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with broken fields", t, func() {
		cases := []struct {
			name   string
			mutate func(*config.Config)
			want   string
		}{
			{"no streams", func(c *config.Config) { c.Streams = nil }, "at least one stream"},
			{"foreign default stream", func(c *config.Config) { c.DefaultStream = "chess" }, `default_stream "chess"`},
			{"zero top n", func(c *config.Config) { c.EligibleTopN = 0 }, "eligible_top_n"},
			{"negative bonus", func(c *config.Config) { c.BonusAmount = -1 }, "bonus_amount"},
			{"limits inverted", func(c *config.Config) { c.MaxLeaderboardLimit = 5 }, "leaderboard limits"},
			{"unknown store", func(c *config.Config) { c.ScoreStore = "mongo" }, `unknown score_store "mongo"`},
			{"sql ledger on memory store", func(c *config.Config) { c.ScoreStore = config.StoreMemory }, "ledger sql requires"},
			{"redis without addr", func(c *config.Config) { c.Ledger = config.LedgerRedis; c.RedisAddr = "" }, "redis_addr"},
			{"zero metrics refresh", func(c *config.Config) { c.MetricsRefreshInterval = 0 }, "metrics_refresh_interval"},
		}

		for _, tc := range cases {
			convey.Convey("When "+tc.name, func() {
				cfg := config.New()
				tc.mutate(cfg)
				err := cfg.Validate()

				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, tc.want)
			})
		}
	})
}
