package statfin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/mahesh-hegde/tilasto/app/common"
	"github.com/mahesh-hegde/tilasto/app/config"
	"github.com/patrickmn/go-cache"
)

// 64 MiB, the crime table for all municipalities is a few hundred KiB
const maxBodySize = 64 << 20

// Result is the flat answer to a Query. Values must be treated as read-only;
// they may be shared with the response cache.
type Result struct {
	Query  *Query
	Values []float64
	// number of null cells the API sent, read as 0
	Nulls int
}

type Variable struct {
	Code       string   `json:"code"`
	Text       string   `json:"text"`
	Values     []string `json:"values"`
	ValueTexts []string `json:"valueTexts"`
}

// TableMetadata is what a GET on a PxWeb table answers with.
type TableMetadata struct {
	Title     string     `json:"title"`
	Variables []Variable `json:"variables"`
}

func (m *TableMetadata) Variable(code string) *Variable {
	for i := range m.Variables {
		if m.Variables[i].Code == code {
			return &m.Variables[i]
		}
	}
	return nil
}

type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	cache      *cache.Cache
}

func NewClient(conf *config.TilastoConfig) *Client {
	return NewClientWithHTTP(http.DefaultClient,
		time.Duration(conf.FetchTimeoutSeconds)*time.Second,
		time.Duration(conf.CacheTTLSeconds)*time.Second)
}

// NewClientWithHTTP creates a client. A zero ttl disables response caching.
func NewClientWithHTTP(httpClient *http.Client, timeout, ttl time.Duration) *Client {
	c := &Client{httpClient: httpClient, timeout: timeout}
	if ttl > 0 {
		c.cache = cache.New(ttl, 2*ttl)
	}
	return c
}

type dataResponse struct {
	Value []*float64 `json:"value"`
}

// Fetch POSTs q and returns its flat result.
func (c *Client) Fetch(ctx context.Context, q *Query) (*Result, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("failed to json encode %s query: %w", q.Metric, err)
	}
	key := q.URL + "\n" + string(body)
	if c.cache != nil {
		if vals, found := c.cache.Get(key); found {
			slog.Debug("statistics cache hit", "metric", q.Metric)
			return &Result{Query: q, Values: vals.([]float64)}, nil
		}
	}

	raw, err := c.do(ctx, http.MethodPost, q.URL, body)
	if err != nil {
		return nil, err
	}
	var resp dataResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding %s response: %v", common.ErrFetchFailure, q.Metric, err)
	}

	res := &Result{Query: q, Values: make([]float64, len(resp.Value))}
	for i, v := range resp.Value {
		if v == nil {
			res.Nulls++
			continue
		}
		res.Values[i] = *v
	}
	if res.Nulls > 0 {
		slog.Warn("statistics response contains null cells", "metric", q.Metric, "nulls", res.Nulls)
	}
	if c.cache != nil {
		c.cache.Set(key, slices.Clone(res.Values), cache.DefaultExpiration)
	}
	return res, nil
}

// Metadata GETs the variable listing of a table.
func (c *Client) Metadata(ctx context.Context, url string) (*TableMetadata, error) {
	raw, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	var meta TableMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("%w: decoding metadata of %s: %v", common.ErrFetchFailure, url, err)
	}
	return &meta, nil
}

// Get returns the raw body of url.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, url, nil)
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrFetchFailure, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("statistics request failed", "method", method, "url", url, "err", err)
		return nil, fmt.Errorf("%w: %s %s: %v", common.ErrFetchFailure, method, url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", common.ErrFetchFailure, url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Error("statistics API returned error status", "method", method, "url", url, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: %s %s: status %d", common.ErrFetchFailure, method, url, resp.StatusCode)
	}
	slog.Debug("statistics request done", "method", method, "url", url, "bytes", len(raw), "latency", time.Since(start))
	return raw, nil
}
