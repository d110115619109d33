package config_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/okian/podium/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.Streams, convey.ShouldResemble, []string{"scores", "emoji_scores"})
				convey.So(cfg.ReleaseWorkers, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("PODIUM_ADDR", ":8080")
			_ = os.Setenv("PODIUM_STREAMS", "scores, emoji_scores ,chess")
			_ = os.Setenv("PODIUM_BONUS_AMOUNT", "25")
			_ = os.Setenv("PODIUM_GRANT_TIMEOUT", "750ms")
			_ = os.Setenv("PODIUM_SCORE_STORE", "memory")
			_ = os.Setenv("PODIUM_LEDGER", "memory")
			_ = os.Setenv("PODIUM_METRICS_ENABLED", "false")
			_ = os.Setenv("PODIUM_METRICS_REFRESH_INTERVAL", "2s")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.MetricsEnabled, convey.ShouldBeFalse)
				convey.So(cfg.MetricsRefreshInterval, convey.ShouldEqual, 2*time.Second)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Streams, convey.ShouldResemble, []string{"scores", "emoji_scores", "chess"})
				convey.So(cfg.BonusAmount, convey.ShouldEqual, 25)
				convey.So(cfg.GrantTimeout, convey.ShouldEqual, 750*time.Millisecond)
				convey.So(cfg.ScoreStore, convey.ShouldEqual, config.StoreMemory)
				convey.So(cfg.Ledger, convey.ShouldEqual, config.LedgerMemory)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
streams: [scores, emoji_scores]
default_stream: emoji_scores
eligible_top_n: 5
release_backoff: 1s
ledger: redis
redis_addr: "cache:6379"
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("PODIUM_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.DefaultStream, convey.ShouldEqual, "emoji_scores")
				convey.So(cfg.EligibleTopN, convey.ShouldEqual, 5)
				convey.So(cfg.ReleaseBackoff, convey.ShouldEqual, time.Second)
				convey.So(cfg.Ledger, convey.ShouldEqual, config.LedgerRedis)
				convey.So(cfg.RedisAddr, convey.ShouldEqual, "cache:6379")
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
eligible_top_n: 5
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("PODIUM_CONFIG", tmpFile)
			_ = os.Setenv("PODIUM_ADDR", ":8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")   // env
				convey.So(cfg.EligibleTopN, convey.ShouldEqual, 5) // file
				convey.So(cfg.BonusAmount, convey.ShouldEqual, 10) // default
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("PODIUM_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("PODIUM_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("PODIUM_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "podium-config-*.yaml")
	if err != nil {
		panic(err)
	}
	defer func() { _ = tmpFile.Close() }()

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}

func clearConfigEnvVars() {
	for _, k := range []string{
		"PODIUM_CONFIG", "PODIUM_ADDR", "PODIUM_STREAMS", "PODIUM_BONUS_AMOUNT",
		"PODIUM_GRANT_TIMEOUT", "PODIUM_SCORE_STORE", "PODIUM_LEDGER",
		"PODIUM_METRICS_ENABLED", "PODIUM_METRICS_REFRESH_INTERVAL",
	} {
		_ = os.Unsetenv(k)
	}
}
