package loadgen

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/podium/pkg/logger"
)

// Run executes one race and verifies the result.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if cfg.PlayerID == "" || cfg.SessionID == "" {
		return nil, fmt.Errorf("player and session are required")
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	log := logger.Get().Named("bonus-race")
	stats := &Stats{StartTime: time.Now(), OtherStatus: map[int]int{}}
	client := newHTTPClient(cfg.Timeout)

	log.Info(ctx, "starting bonus race",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("player", cfg.PlayerID),
		logger.String("session", cfg.SessionID),
		logger.String("stream", cfg.StreamID),
		logger.Int("concurrency", cfg.Concurrency),
	)

	if err := checkReady(ctx, client, cfg); err != nil {
		return nil, fmt.Errorf("service readiness check failed: %w", err)
	}

	before, err := playerTotal(ctx, client, cfg)
	if err != nil {
		return nil, err
	}
	stats.TotalBefore = before

	for i, o := range fireGrants(ctx, client, cfg) {
		stats.Requests++
		switch {
		case o.err != nil:
			stats.Failed++
			log.Warn(ctx, "request failed", logger.Int("request", i), logger.Error(o.err))
			continue
		case o.status == http.StatusOK:
			stats.Granted++
			var res BonusResponse
			if err := json.Unmarshal(o.body, &res); err == nil {
				stats.Amount, stats.GrantID = res.Amount, res.GrantID
			}
		case o.status == http.StatusConflict:
			stats.Conflicts++
		default:
			stats.OtherStatus[o.status]++
		}
		if cfg.Verbose {
			log.Debug(ctx, "response", logger.Int("request", i), logger.Int("status", o.status), logger.String("body", string(o.body)))
		}
	}

	after, err := playerTotal(ctx, client, cfg)
	if err != nil {
		return stats, err
	}
	stats.TotalAfter = after
	stats.Duration = time.Since(stats.StartTime)

	displayFinalStats(ctx, log, stats)
	if err := verify(stats); err != nil {
		return stats, err
	}
	log.Info(ctx, "exactly one grant observed")
	return stats, nil
}

func checkReady(ctx context.Context, client *HTTPClient, cfg *Config) error {
	resp, err := client.Get(ctx, cfg.BaseURL+"/readyz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("readyz returned status %d", resp.StatusCode)
	}
	return nil
}

func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	log.Info(ctx, "final statistics",
		logger.Int("requests", stats.Requests),
		logger.Int("granted", stats.Granted),
		logger.Int("conflicts", stats.Conflicts),
		logger.Int("failed", stats.Failed),
		logger.Any("otherStatus", stats.OtherStatus),
		logger.Int64("totalBefore", stats.TotalBefore),
		logger.Int64("totalAfter", stats.TotalAfter),
		logger.Int64("amount", stats.Amount),
		logger.Duration("duration", stats.Duration),
	)
}
