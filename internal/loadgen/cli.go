package loadgen

import (
	"fmt"
	"os"

	"github.com/okian/podium/pkg/logger"
)

// SetupLogging initializes the global logger.
func SetupLogging(format string, verbose bool) error {
	if err := logger.Init(logger.WithFormat(format)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the bonus race tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`podium bonus race
=================

Fires concurrent bonus requests for one (player, session, stream) key and
checks that exactly one is granted and the leaderboard total moved once.

Usage:
  go run ./cmd/bonus-race [options]

Options:
  -url string          Base URL of the service (default "http://localhost:9080")
  -player string       Player id (required)
  -session string      Session id (required)
  -stream string       Stream id; empty sends no streamId
  -n int               Concurrent requests (default 50)
  -timeout duration    HTTP request timeout (default 10s)
  -log-format string   text or json (default "text")
  -verbose             Log every response
  -help                Show this help message

Examples:
  go run ./cmd/bonus-race -player P1 -session S1
  go run ./cmd/bonus-race -player P1 -session S1 -stream emoji_scores -n 200
`)
}
