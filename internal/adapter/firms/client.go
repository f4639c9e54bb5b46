package firms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/couchcryptid/firewatch-analytics/internal/domain"
)

// Client fetches fire detection CSV payloads from the FIRMS area API.
//
// A single call covers one (source, date window) pair. The caller owns
// retry policy; Fetch classifies each failure as transient or permanent
// so the caller can decide whether retrying is worthwhile.
type Client struct {
	apiKey     string
	baseURL    string
	area       string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

// NewClient creates a FIRMS area API client.
func NewClient(apiKey, baseURL, area string, timeout time.Duration, logger *slog.Logger) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "firms",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		area:    area,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		breaker: cb,
		logger:  logger,
	}
}

// Fetch retrieves detections for source covering the inclusive date range
// [start, end]. The range must not exceed the API's ten day window; callers
// split longer ranges before fetching.
func (c *Client) Fetch(ctx context.Context, source domain.Source, start, end time.Time) (domain.ParseResult, error) {
	days := int(end.Sub(start).Hours()/24) + 1
	if days < 1 || days > 10 {
		return domain.ParseResult{}, &domain.PermanentFetchError{
			Err: fmt.Errorf("window of %d days outside 1..10", days),
		}
	}

	// Path layout: {base}/{key}/{source}/{area}/{days}/{start}.
	u := fmt.Sprintf("%s/%s/%s/%s/%d/%s",
		c.baseURL,
		url.PathEscape(c.apiKey),
		url.PathEscape(string(source)),
		url.PathEscape(c.area),
		days,
		start.Format(time.DateOnly),
	)

	body, err := c.doRequest(ctx, u)
	if err != nil {
		return domain.ParseResult{}, err
	}
	defer body.Close()

	result, err := domain.ParseCSV(body, source)
	if err != nil {
		return domain.ParseResult{}, &domain.PermanentFetchError{Err: fmt.Errorf("parse response: %w", err)}
	}
	return result, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, &domain.PermanentFetchError{Err: fmt.Errorf("create request: %w", err)}
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, execErr := c.httpClient.Do(req)
		if execErr != nil {
			return nil, &domain.TransientFetchError{Err: execErr}
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return resp, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			snippet := readSnippet(resp.Body)
			resp.Body.Close()
			return nil, &domain.TransientFetchError{
				Err: fmt.Errorf("firms API status %d: %s", resp.StatusCode, snippet),
			}
		default:
			snippet := readSnippet(resp.Body)
			resp.Body.Close()
			return nil, &domain.PermanentFetchError{
				Err: fmt.Errorf("firms API status %d: %s", resp.StatusCode, snippet),
			}
		}
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &domain.TransientFetchError{Err: fmt.Errorf("circuit breaker: %w", err)}
		}
		return nil, err
	}

	resp, ok := result.(*http.Response)
	if !ok {
		return nil, &domain.PermanentFetchError{Err: errors.New("unexpected breaker result type")}
	}
	return resp.Body, nil
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 256))
	return strings.TrimSpace(string(b))
}
