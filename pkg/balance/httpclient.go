package balance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AlexandriaDAO/cyclescan/pkg/utils"
)

// HTTPClient implements Source against one or more status-gateway
// endpoints, with a token-bucket so a full fan-out batch cannot stampede
// the gateway.
type HTTPClient struct {
	endpoints []string
	client    *http.Client

	// token-bucket
	mu          sync.Mutex
	tokens      int64
	maxTokens   int64
	refillEvery time.Duration
	lastRefill  atomic.Value // time.Time
}

// Opts is the set of options for a new HTTPClient.
type Opts struct {
	Endpoints  []string
	Timeout    time.Duration
	RPS        int
	Burst      int
	HTTPClient *http.Client
}

// NewHTTPClient creates a Source backed by the given gateway endpoints.
func NewHTTPClient(o Opts) *HTTPClient {
	if o.RPS <= 0 {
		o.RPS = 20
	}
	if o.Burst <= 0 {
		o.Burst = 40
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}

	client := o.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: o.Timeout}
	} else if client.Timeout == 0 {
		client.Timeout = o.Timeout
	}

	c := &HTTPClient{
		endpoints:   utils.Dedup(o.Endpoints),
		client:      client,
		maxTokens:   int64(o.Burst),
		refillEvery: time.Second / time.Duration(o.RPS),
	}
	c.tokens = c.maxTokens
	c.lastRefill.Store(time.Now())
	return c
}

func (c *HTTPClient) refill() {
	last := c.lastRefill.Load().(time.Time)
	now := time.Now()
	if elapsed := now.Sub(last); elapsed >= c.refillEvery {
		c.mu.Lock()
		n := int64(elapsed / c.refillEvery)
		if c.tokens+n > c.maxTokens {
			c.tokens = c.maxTokens
		} else {
			c.tokens += n
		}
		c.mu.Unlock()
		c.lastRefill.Store(now)
	}
}

func (c *HTTPClient) acquire(ctx context.Context) error {
	for {
		c.refill()
		c.mu.Lock()
		if c.tokens > 0 {
			c.tokens--
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.refillEvery / 2):
		}
	}
}

type statusResponse struct {
	Cycles string `json:"cycles"`
}

type snsSummaryResponse struct {
	Canisters map[string]string `json:"canisters"`
}

// CanisterStatus asks the gateway to relay a canister_status call through
// the blackhole proxy.
func (c *HTTPClient) CanisterStatus(ctx context.Context, proxyID, canisterID string) (uint64, error) {
	q := url.Values{"proxy": {proxyID}, "canister": {canisterID}}
	var out statusResponse
	if err := c.getJSON(ctx, "/v1/canister_status", q, &out); err != nil {
		return 0, &QueryError{Proxy: proxyID, Canister: canisterID, Err: err}
	}
	cycles, err := strconv.ParseUint(out.Cycles, 10, 64)
	if err != nil {
		return 0, &QueryError{Proxy: proxyID, Canister: canisterID, Err: fmt.Errorf("bad cycles value %q: %w", out.Cycles, err)}
	}
	return cycles, nil
}

// SNSCanisters asks the gateway for the SNS root's canister summary.
// Entries with unparseable balances are dropped rather than failing the
// whole response.
func (c *HTTPClient) SNSCanisters(ctx context.Context, rootID string) (map[string]uint64, error) {
	q := url.Values{"root": {rootID}}
	var out snsSummaryResponse
	if err := c.getJSON(ctx, "/v1/sns_summary", q, &out); err != nil {
		return nil, &QueryError{Proxy: rootID, Err: err}
	}
	balances := make(map[string]uint64, len(out.Canisters))
	for id, raw := range out.Canisters {
		if cycles, err := strconv.ParseUint(raw, 10, 64); err == nil {
			balances[id] = cycles
		}
	}
	return balances, nil
}

// getJSON tries each endpoint in order until one answers.
func (c *HTTPClient) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}

	var lastErr error
	for _, ep := range c.endpoints {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep+path+"?"+q.Encode(), nil)
		if err != nil {
			return err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode != http.StatusOK {
			drainAndClose(resp.Body)
			lastErr = fmt.Errorf("endpoint %s returned %s", ep, resp.Status)
			continue
		}
		err = json.NewDecoder(resp.Body).Decode(out)
		drainAndClose(resp.Body)
		if err != nil {
			lastErr = fmt.Errorf("decode response from %s: %w", ep, err)
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no endpoints configured")
	}
	return lastErr
}

// drainAndClose empties the body so the transport can reuse the connection.
func drainAndClose(rc io.ReadCloser) {
	if rc == nil {
		return
	}
	_, _ = io.Copy(io.Discard, rc)
	_ = rc.Close()
}
