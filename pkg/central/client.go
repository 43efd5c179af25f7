// Package central implements the HTTP client for the centralized
// sequencer's feeder gateway: the single source of truth the sync
// pipeline pulls blocks, state updates and classes from (spec §5,
// "Central source"). It follows the teacher's RPC-client shape (a thin
// typed wrapper over net/http with cenkalti/backoff retry and a
// structured logrus logger) generalized from erigon's JSON-RPC/engine
// clients to this feeder gateway's REST-ish endpoints.
package central

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/starkware-libs/papyrus-sub004/pkg/starknet"
)

// classCacheSize bounds the client's in-memory class cache. Declared
// classes are immutable once fetched, so a plain LRU (rather than a
// time-based cache) is sufficient, matching the teacher's own header/body
// LRU caches (hashicorp/golang-lru).
const classCacheSize = 1024

// StarknetErrorCode is the feeder gateway's typed error taxonomy,
// returned in the body of non-2xx responses.
type StarknetErrorCode string

const (
	ErrBlockNotFound      StarknetErrorCode = "StarknetErrorCode.BLOCK_NOT_FOUND"
	ErrUndeclaredClass    StarknetErrorCode = "StarknetErrorCode.UNDECLARED_CLASS"
	ErrOutOfRangeClassHash StarknetErrorCode = "StarknetErrorCode.OUT_OF_RANGE_CLASS_HASH"
	ErrMalformedRequest   StarknetErrorCode = "StarknetErrorCode.MALFORMED_REQUEST"
)

// StarknetError is a typed feeder-gateway failure response.
type StarknetError struct {
	Code    StarknetErrorCode `json:"code"`
	Message string            `json:"message"`
}

func (e *StarknetError) Error() string {
	return fmt.Sprintf("central: %s: %s", e.Code, e.Message)
}

// Config controls how the client reaches and retries against the gateway.
type Config struct {
	BaseURL        string
	HTTPClient     *http.Client
	MaxRetryElapsed time.Duration
	Logger         *logrus.Logger
}

// Client is the feeder gateway HTTP client.
type Client struct {
	baseURL    *url.URL
	http       *http.Client
	maxElapsed time.Duration
	log        *logrus.Logger
	classCache *lru.Cache[starknet.ClassHash, *GatewayClass]
}

// New builds a Client from cfg, defaulting the HTTP client and logger the
// way the teacher's RPC clients do when the caller leaves them nil.
func New(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("central: invalid base url: %w", err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	maxElapsed := cfg.MaxRetryElapsed
	if maxElapsed == 0 {
		maxElapsed = 2 * time.Minute
	}
	cache, err := lru.New[starknet.ClassHash, *GatewayClass](classCacheSize)
	if err != nil {
		return nil, fmt.Errorf("central: building class cache: %w", err)
	}
	return &Client{baseURL: u, http: httpClient, maxElapsed: maxElapsed, log: logger, classCache: cache}, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = u.Path + path
	u.RawQuery = query.Encode()
	return u.String()
}

// doJSON issues a GET request with exponential backoff retry on transport
// errors and 5xx responses, and decodes a 2xx JSON body into out. A 4xx
// response is decoded as a StarknetError and returned without retrying:
// the gateway is telling us something that will not change on retry
// (spec §5 "errors are not transient unless the server says so").
func (c *Client) doJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, query), nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err // network error: retry
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("central: %s returned %d", path, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			var se StarknetError
			if decErr := json.NewDecoder(resp.Body).Decode(&se); decErr == nil && se.Code != "" {
				return backoff.Permanent(&se)
			}
			return backoff.Permanent(fmt.Errorf("central: %s returned %d", path, resp.StatusCode))
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("central: decoding %s: %w", path, err))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.maxElapsed
	notify := func(err error, wait time.Duration) {
		c.log.WithError(err).WithField("path", path).WithField("wait", wait).Warn("central: retrying request")
	}
	return backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify)
}

// blockQuery formats the feeder gateway's block selector: either a
// specific number or the "latest" sentinel.
func blockQuery(block *starknet.BlockNumber) url.Values {
	q := url.Values{}
	if block == nil {
		q.Set("blockNumber", "latest")
	} else {
		q.Set("blockNumber", fmt.Sprintf("%d", *block))
	}
	return q
}

// GetBlock fetches the raw block at blockNumber, or the latest block if
// blockNumber is nil.
func (c *Client) GetBlock(ctx context.Context, blockNumber *starknet.BlockNumber) (*GatewayBlock, error) {
	var out GatewayBlock
	if err := c.doJSON(ctx, "/feeder_gateway/get_block", blockQuery(blockNumber), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetStateUpdate fetches the state diff applied at blockNumber.
func (c *Client) GetStateUpdate(ctx context.Context, blockNumber *starknet.BlockNumber) (*GatewayStateUpdate, error) {
	var out GatewayStateUpdate
	if err := c.doJSON(ctx, "/feeder_gateway/get_state_update", blockQuery(blockNumber), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetClassByHash fetches a declared class (Sierra or Cairo 0) by hash,
// serving from the in-memory LRU cache when the class was already
// fetched once: a class's body never changes after declaration, so a
// cache hit never goes stale.
func (c *Client) GetClassByHash(ctx context.Context, classHash starknet.ClassHash) (*GatewayClass, error) {
	if cached, ok := c.classCache.Get(classHash); ok {
		return cached, nil
	}
	q := url.Values{}
	q.Set("classHash", fmt.Sprintf("0x%x", classHash))
	var out GatewayClass
	if err := c.doJSON(ctx, "/feeder_gateway/get_class_by_hash", q, &out); err != nil {
		return nil, err
	}
	c.classCache.Add(classHash, &out)
	return &out, nil
}

// GetCompiledClassByClassHash fetches the CASM compilation of a class.
func (c *Client) GetCompiledClassByClassHash(ctx context.Context, classHash starknet.ClassHash) (*GatewayCompiledClass, error) {
	q := url.Values{}
	q.Set("classHash", fmt.Sprintf("0x%x", classHash))
	var out GatewayCompiledClass
	if err := c.doJSON(ctx, "/feeder_gateway/get_compiled_class_by_class_hash", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
