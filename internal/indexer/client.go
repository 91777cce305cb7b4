// Package indexer provides rate-limited access to an external blockchain
// indexer and normalizes its wire shapes for the screening core.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/ratelimit"

	"github.com/cryptocompliance/btc-screening/internal/domain"
	"github.com/cryptocompliance/btc-screening/internal/metrics"
	"github.com/cryptocompliance/btc-screening/internal/pkg/logger"
)

const (
	serviceName         = "blockchain-indexer"
	defaultTxLimit      = 25
	rateLimitWindowSecs = 60
)

// Client talks to an Esplora-compatible blockchain indexer.
// All calls are synchronous; a request suspends the caller until data
// arrives, the timeout fires, or the request window rejects it.
type Client struct {
	baseURL string
	httpc   *http.Client
	breaker *gobreaker.CircuitBreaker
	pacer   ratelimit.Limiter
	log     *logger.Logger
	now     func() time.Time

	// Sliding fixed request window
	mu          sync.Mutex
	windowStart time.Time
	windowCount int
	limit       int
}

// NewClient creates an indexer client. rateLimit is the request cap per
// 60-second window.
func NewClient(baseURL string, timeout time.Duration, rateLimit int, log *logger.Logger) *Client {
	rps := rateLimit / rateLimitWindowSecs
	if rps < 1 {
		rps = 1
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    serviceName,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A missing identifier is an answer, not an outage
		IsSuccessful: func(err error) bool {
			return err == nil || domain.IsKind(err, domain.KindDataNotFound)
		},
	})

	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: timeout},
		breaker: breaker,
		pacer:   ratelimit.New(rps),
		log:     log.Named("indexer_client"),
		now:     time.Now,
		limit:   rateLimit,
	}
}

// takeSlot consumes one request from the window, or fails with a
// rate-limit flavored EXTERNAL_API error when the cap is reached
func (c *Client) takeSlot(operation string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.windowStart.IsZero() || now.Sub(c.windowStart) >= rateLimitWindowSecs*time.Second {
		c.windowStart = now
		c.windowCount = 0
	}

	if c.windowCount >= c.limit {
		c.log.RateLimited(operation, c.windowCount, c.limit)
		metrics.ObserveRateLimited()
		return domain.NewError(domain.KindExternalAPI, "indexer request window exhausted").
			WithDetail("rate_limit", true).
			WithDetail("count", c.windowCount).
			WithDetail("limit", c.limit)
	}

	c.windowCount++
	return nil
}

// RateLimitStatus reports the current window counter and its reset time
func (c *Client) RateLimitStatus() domain.RateLimitStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	reset := c.windowStart.Add(rateLimitWindowSecs * time.Second)
	if c.windowStart.IsZero() {
		reset = c.now()
	}
	return domain.RateLimitStatus{
		Count:      c.windowCount,
		Limit:      c.limit,
		ResetEpoch: reset.Unix(),
	}
}

// get fetches a path from the indexer into out, applying window
// accounting, pacing, and the circuit breaker
func (c *Client) get(ctx context.Context, operation, path, identifier string, out any) error {
	started := time.Now()
	err := c.doGet(ctx, operation, path, identifier, out)
	metrics.ObserveIndexerOp(operation, err, started)
	return err
}

func (c *Client) doGet(ctx context.Context, operation, path, identifier string, out any) error {
	if err := c.takeSlot(operation); err != nil {
		return err
	}
	c.pacer.Take()

	body, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.httpc.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, domain.NewError(domain.KindDataNotFound, "identifier has no data in the indexer").
				WithDetail("identifier", identifier)
		case resp.StatusCode != http.StatusOK:
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		return io.ReadAll(resp.Body)
	})
	if err != nil {
		if domain.IsKind(err, domain.KindDataNotFound) {
			return err
		}
		return domain.ExternalAPIError(serviceName, identifier, err)
	}

	if err := json.Unmarshal(body.([]byte), out); err != nil {
		return domain.ExternalAPIError(serviceName, identifier, fmt.Errorf("decoding %s response: %w", operation, err))
	}
	return nil
}

// GetTransaction fetches and normalizes one transaction
func (c *Client) GetTransaction(ctx context.Context, txid string) (*domain.BitcoinTransaction, error) {
	var src esploraTx
	if err := c.get(ctx, "get_transaction", "/tx/"+txid, txid, &src); err != nil {
		return nil, err
	}
	return normalizeTx(src), nil
}

// GetAddressTransactions returns up to limit recent txids for the
// address, most recent first. limit is clamped to 25.
func (c *Client) GetAddressTransactions(ctx context.Context, addr string, limit int) ([]string, error) {
	if limit <= 0 || limit > defaultTxLimit {
		limit = defaultTxLimit
	}

	var txs []esploraTx
	if err := c.get(ctx, "get_address_transactions", "/address/"+addr+"/txs", addr, &txs); err != nil {
		return nil, err
	}

	if len(txs) > limit {
		txs = txs[:limit]
	}
	txids := make([]string, 0, len(txs))
	for _, tx := range txs {
		txids = append(txids, tx.TxID)
	}
	return txids, nil
}

// GetAddressInfo returns a balance and activity summary for the address
func (c *Client) GetAddressInfo(ctx context.Context, addr string) (*domain.AddressInfo, error) {
	var src esploraAddress
	if err := c.get(ctx, "get_address_info", "/address/"+addr, addr, &src); err != nil {
		return nil, err
	}
	return normalizeAddressInfo(src), nil
}

// ExtractAddresses returns the union of unique addresses appearing in the
// transaction's inputs and outputs, in first-seen order
func ExtractAddresses(tx *domain.BitcoinTransaction) []string {
	seen := make(map[string]struct{})
	var addrs []string
	add := func(list []string) {
		for _, a := range list {
			if _, ok := seen[a]; ok {
				continue
			}
			seen[a] = struct{}{}
			addrs = append(addrs, a)
		}
	}
	for _, in := range tx.Inputs {
		add(in.Addresses)
	}
	for _, out := range tx.Outputs {
		add(out.Addresses)
	}
	return addrs
}
