package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/okian/podium/internal/loadgen"
	"github.com/okian/podium/pkg/logger"
)

const runTimeout = 2 * time.Minute

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		player    = flag.String("player", "", "Player id")
		session   = flag.String("session", "", "Session id")
		stream    = flag.String("stream", "", "Stream id (optional)")
		n         = flag.Int("n", loadgen.DefaultConcurrency, "Concurrent requests")
		timeout   = flag.Duration("timeout", loadgen.DefaultTimeout, "HTTP request timeout")
		logFormat = flag.String("log-format", logger.FormatText, "Log format: text or json")
		verbose   = flag.Bool("verbose", false, "Log every response")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadgen.ShowHelp()
		return
	}

	if err := loadgen.SetupLogging(*logFormat, *verbose); err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	_, err := loadgen.Run(ctx, &loadgen.Config{
		BaseURL:     *baseURL,
		PlayerID:    *player,
		SessionID:   *session,
		StreamID:    *stream,
		Concurrency: *n,
		Timeout:     *timeout,
		Verbose:     *verbose,
	})
	if err != nil {
		logger.Get().Error(ctx, "bonus race failed", logger.Error(err))
		if errors.Is(err, loadgen.ErrVerification) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}
