package ingest

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

	"github.com/spec-kit/ticket-ingest/internal/config"
	"github.com/spec-kit/ticket-ingest/internal/domain"
	"github.com/spec-kit/ticket-ingest/internal/ratelimit"
)

// Page is one page of the external source's paginated response.
type Page struct {
	Tickets    []domain.ExternalTicket `json:"tickets"`
	Page       int                     `json:"page"`
	TotalPages int                     `json:"total_pages"`
}

// SourceClient fetches pages from the external ticket source. Every request
// goes through the shared rate limiter; 429 responses are honoured via
// Retry-After outside the transient retry budget.
type SourceClient struct {
	baseURL    string
	client     *http.Client
	limiter    *ratelimit.Limiter
	logger     *zap.Logger
	maxRetries int
}

// NewSourceClient creates a client for the external source.
func NewSourceClient(cfg config.SourceConfig, limiter *ratelimit.Limiter, logger *zap.Logger) *SourceClient {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &SourceClient{
		baseURL:    cfg.BaseURL,
		client:     &http.Client{Timeout: cfg.FetchTimeout()},
		limiter:    limiter,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// FetchPage retrieves one page for a tenant. Transient failures (5xx, network
// errors) are retried with exponential backoff up to the configured budget;
// 429 waits out Retry-After and retries the same page without consuming it.
func (c *SourceClient) FetchPage(ctx context.Context, tenantID string, page int) (*Page, error) {
	endpoint := fmt.Sprintf("%s/external/support-tickets?tenant_id=%s&page=%d",
		c.baseURL, url.QueryEscape(tenantID), page)

	attempt := 0
	for {
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, err
		}

		result, retryAfter, err := c.fetch(ctx, endpoint)
		if err == nil {
			return result, nil
		}

		if retryAfter > 0 {
			c.logger.Warn("source rate limited, honouring Retry-After",
				zap.Int("page", page), zap.Duration("retry_after", retryAfter))
			if err := sleepCtx(ctx, retryAfter); err != nil {
				return nil, err
			}
			continue
		}

		attempt++
		if attempt >= c.maxRetries {
			return nil, fmt.Errorf("fetch page %d for tenant %s: %w", page, tenantID, err)
		}

		backoff := time.Duration(1<<uint(attempt-1)) * time.Second
		c.logger.Warn("source fetch failed, retrying",
			zap.Int("page", page), zap.Int("attempt", attempt), zap.Error(err))
		if err := sleepCtx(ctx, backoff); err != nil {
			return nil, err
		}
	}
}

// fetch performs one request. A positive retryAfter signals a 429.
func (c *SourceClient) fetch(ctx context.Context, endpoint string) (*Page, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, parseRetryAfter(resp.Header), fmt.Errorf("source returned 429")
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, 0, fmt.Errorf("source returned status %d", resp.StatusCode)
	}

	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, 0, fmt.Errorf("decode source page: %w", err)
	}
	if page.TotalPages < 1 {
		page.TotalPages = 1
	}
	return &page, 0, nil
}

// Healthy probes the source's health endpoint.
func (c *SourceClient) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("source health returned status %d", resp.StatusCode)
	}
	return nil
}

func parseRetryAfter(header http.Header) time.Duration {
	seconds, err := strconv.Atoi(header.Get("Retry-After"))
	if err != nil || seconds <= 0 {
		return time.Second
	}
	return time.Duration(seconds) * time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
