package weather

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/yegors/co-wx/internal/config"
	"github.com/yegors/co-wx/pkg/logger"
)

// Upper bound on a METAR response body
const maxResponseBytes = 64 * 1024

// Client handles HTTP requests to the METAR API
type Client struct {
	config      config.WeatherConfig
	httpClient  *http.Client
	clock       clockwork.Clock
	backoffBase time.Duration
	logger      *logger.Logger
}

// NewClient creates a new METAR API client
func NewClient(cfg config.WeatherConfig, log *logger.Logger) *Client {
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		},
		clock:       clockwork.NewRealClock(),
		backoffBase: 500 * time.Millisecond,
		logger:      log.Named("weather-client"),
	}
}

// FetchRawMETAR fetches the latest raw METAR text for the station
func (c *Client) FetchRawMETAR(ctx context.Context, station string) (string, error) {
	endpoint := fmt.Sprintf("%s/metar?ids=%s&format=raw", strings.TrimRight(c.config.APIBaseURL, "/"), url.QueryEscape(station))

	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff between retries
			backoffDuration := c.backoffBase * time.Duration(1<<uint(attempt-1))
			c.logger.Info("Retrying METAR fetch",
				logger.String("station", station),
				logger.Int("attempt", attempt),
				logger.String("backoff", backoffDuration.String()))

			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-c.clock.After(backoffDuration):
			}
		}

		raw, retry, err := c.fetchOnce(ctx, endpoint)
		if err == nil {
			if attempt > 0 {
				c.logger.Info("Successfully fetched METAR after retries",
					logger.String("station", station),
					logger.Int("attempts_needed", attempt+1))
			}
			return raw, nil
		}

		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
		c.logger.Warn("METAR request failed, may retry",
			logger.String("station", station),
			logger.Error(err),
			logger.Int("attempt", attempt+1),
			logger.Int("max_attempts", c.config.MaxRetries+1))
	}

	c.logger.Error("All attempts to fetch METAR failed",
		logger.String("station", station),
		logger.Error(lastErr),
		logger.Int("max_attempts", c.config.MaxRetries+1))
	return "", fmt.Errorf("fetch METAR for %s: %w", station, lastErr)
}

// fetchOnce performs a single request. retry reports whether another attempt may succeed.
func (c *Client) fetchOnce(ctx context.Context, endpoint string) (raw string, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", false, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("error making request to METAR API: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return "", false, ErrNoObservation
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return "", true, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", false, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	raw, err = firstLine(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", true, fmt.Errorf("error reading METAR response: %w", err)
	}
	if raw == "" {
		return "", false, ErrNoObservation
	}
	return raw, false, nil
}

// firstLine returns the first non-blank line with the optional METAR/SPECI prefix removed
func firstLine(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		line = strings.TrimPrefix(line, "METAR ")
		line = strings.TrimPrefix(line, "SPECI ")
		return line, nil
	}
	return "", scanner.Err()
}

// FetchAll fetches every station concurrently
func (c *Client) FetchAll(ctx context.Context, stations []string) []FetchResult {
	results := make([]FetchResult, len(stations))

	var wg sync.WaitGroup
	for i, station := range stations {
		wg.Add(1)
		go func(i int, station string) {
			defer wg.Done()
			raw, err := c.FetchRawMETAR(ctx, station)
			results[i] = FetchResult{Station: station, Raw: raw, Err: err}
		}(i, station)
	}
	wg.Wait()

	return results
}
