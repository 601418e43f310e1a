package ipfs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Client fetches pinned metadata documents from a Pinata-style gateway.
type Client struct {
	gatewayURL string
	token      string
	httpc      *http.Client
	logger     *zap.Logger
}

// NewClient creates a gateway client. token is the pinataGatewayToken
// query parameter, empty to omit it.
func NewClient(gatewayURL, token string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		gatewayURL: gatewayURL,
		token:      token,
		httpc:      &http.Client{Timeout: timeout},
		logger:     logger.Named("ipfs"),
	}
}

// Metadata dereferences a content id to its metadata document. A
// non-success gateway status is not fatal: it yields an empty document.
// Transport failures are returned to the caller.
func (c *Client) Metadata(ctx context.Context, cid string) (map[string]any, error) {
	endpoint := c.gatewayURL + "/ipfs/" + url.PathEscape(cid)
	if c.token != "" {
		endpoint += "?pinataGatewayToken=" + url.QueryEscape(c.token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ipfs gateway request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read gateway response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("gateway non-success status, returning empty metadata",
			zap.Int("status", resp.StatusCode),
			zap.String("cid", cid),
		)
		return map[string]any{}, nil
	}

	var metadata map[string]any
	if err := json.Unmarshal(body, &metadata); err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", cid, err)
	}
	return metadata, nil
}
