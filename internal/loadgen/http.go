package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with JSON body.
func (c *HTTPClient) Post(ctx context.Context, url string, body interface{}) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

type outcome struct {
	status int
	body   []byte
	err    error
}

// fireGrants releases Concurrency identical requests at once and collects every outcome.
func fireGrants(ctx context.Context, client *HTTPClient, cfg *Config) []outcome {
	target := cfg.BaseURL + "/leaderboard/bonus"
	body := BonusRequest{PlayerID: cfg.PlayerID, SessionID: cfg.SessionID, StreamID: cfg.StreamID}

	results := make([]outcome, cfg.Concurrency)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			resp, err := client.Post(ctx, target, body)
			if err != nil {
				results[i] = outcome{err: err}
				return
			}
			defer func() { _ = resp.Body.Close() }()
			data, err := io.ReadAll(resp.Body)
			results[i] = outcome{status: resp.StatusCode, body: data, err: err}
		}(i)
	}
	close(start)
	wg.Wait()
	return results
}

// playerTotal reads the player's total from the leaderboard.
func playerTotal(ctx context.Context, client *HTTPClient, cfg *Config) (int64, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(leaderboardLimit))
	if cfg.StreamID != "" {
		q.Set("streams", cfg.StreamID)
	}

	resp, err := client.Get(ctx, cfg.BaseURL+"/leaderboard?"+q.Encode())
	if err != nil {
		return 0, fmt.Errorf("failed to fetch leaderboard: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("leaderboard returned status %d", resp.StatusCode)
	}
	var body struct {
		Entries []Entry `json:"entries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("failed to decode leaderboard: %w", err)
	}
	for _, e := range body.Entries {
		if e.PlayerID == cfg.PlayerID {
			return e.Total, nil
		}
	}
	return 0, fmt.Errorf("player %q not in the top %d", cfg.PlayerID, leaderboardLimit)
}
