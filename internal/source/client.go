package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tokenledger/internal/model"
)

// StatusError is returned when the event feed answers with a non-success
// status. It carries the upstream status and body so the caller can decide
// whether to retry.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("event source returned %d: %s", e.StatusCode, e.Body)
}

// Client fetches pages of chain events from the tokenization service.
// It applies a per-call timeout and a request rate limit; retry policy
// belongs to the caller.
type Client struct {
	baseURL string
	httpc   *http.Client
	limiter *rate.Limiter
	timeout time.Duration
	logger  *zap.Logger
}

// NewClient creates an event feed client for the given base URL.
func NewClient(baseURL string, timeout time.Duration, rps float64, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if rps <= 0 {
		rps = 10
	}
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		timeout: timeout,
		logger:  logger.Named("source"),
	}
}

// Head fetches the feed without a range filter, for its metadata. The
// returned events (the feed's default first page) are discarded.
func (c *Client) Head(ctx context.Context) (model.PageMetadata, error) {
	page, err := c.fetch(ctx, nil)
	if err != nil {
		return model.PageMetadata{}, err
	}
	return page.Metadata, nil
}

// Events fetches one page of events starting at the given sequence index.
func (c *Client) Events(ctx context.Context, index int64, size int) (model.Page, error) {
	params := url.Values{}
	params.Set("index", strconv.FormatInt(index, 10))
	params.Set("size", strconv.Itoa(size))
	return c.fetch(ctx, params)
}

// EventByHash looks up a single event by its transaction hash.
func (c *Client) EventByHash(ctx context.Context, hash string) (model.RawEvent, error) {
	body, err := c.get(ctx, c.baseURL+"/api/events/"+url.PathEscape(hash))
	if err != nil {
		return model.RawEvent{}, err
	}

	var ev model.RawEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return model.RawEvent{}, fmt.Errorf("decode event response: %w", err)
	}
	return ev, nil
}

func (c *Client) fetch(ctx context.Context, params url.Values) (model.Page, error) {
	endpoint := c.baseURL + "/api/events"
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return model.Page{}, err
	}

	var page model.Page
	if err := json.Unmarshal(body, &page); err != nil {
		return model.Page{}, fmt.Errorf("decode events response: %w", err)
	}
	return page, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("event source request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read event source response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("event source non-success status",
			zap.Int("status", resp.StatusCode),
			zap.String("url", endpoint),
		)
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}
