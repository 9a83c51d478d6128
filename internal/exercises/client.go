package exercises

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client fetches the Free Exercise DB document.
type Client struct {
	sourceURL  string
	httpClient *http.Client
	attempts   int
	backoff    time.Duration
}

// NewClient creates a client for sourceURL with the given request timeout.
func NewClient(sourceURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		sourceURL:  sourceURL,
		httpClient: &http.Client{Timeout: timeout},
		attempts:   3,
		backoff:    time.Second,
	}
}

// Fetch downloads and decodes the exercise list. Retries up to 3 times with
// exponential backoff; a 4xx answer is not retried.
func (c *Client) Fetch(ctx context.Context) ([]SourceExercise, error) {
	var lastErr error
	for attempt := range c.attempts {
		if attempt > 0 {
			select {
			case <-time.After(c.backoff << uint(attempt-1)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		list, retry, err := c.fetchOnce(ctx)
		if err == nil {
			return list, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return nil, fmt.Errorf("fetching exercises: %w", lastErr)
}

func (c *Client) fetchOnce(ctx context.Context) ([]SourceExercise, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.sourceURL, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("status %d: %s", resp.StatusCode, body)
		return nil, resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests, err
	}

	var list []SourceExercise
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, false, fmt.Errorf("decoding exercises: %w", err)
	}
	return list, false, nil
}
