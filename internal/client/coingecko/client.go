package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"

	"cryptoalert/internal/alert"
)

const (
	defaultHost      = "https://api.coingecko.com/api/v3"
	defaultTimeout   = 15 * time.Second
	defaultBatchSize = 200
)

type Client struct {
	host       string
	vsCurrency string
	apiKey     string
	timeout    time.Duration
	batchSize  int
	httpClient *fasthttp.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("coingecko API error (%d): %s", e.Status, e.Body)
}

type Options struct {
	Host       string
	VsCurrency string
	APIKey     string
	Timeout    time.Duration
	BatchSize  int
}

func NewClient(httpClient *fasthttp.Client, opts Options) *Client {
	if httpClient == nil {
		httpClient = &fasthttp.Client{Name: "cryptoalert"}
	}
	host := strings.TrimRight(strings.TrimSpace(opts.Host), "/")
	if host == "" {
		host = defaultHost
	}
	vs := strings.ToLower(strings.TrimSpace(opts.VsCurrency))
	if vs == "" {
		vs = "usd"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &Client{
		host:       host,
		vsCurrency: vs,
		apiKey:     strings.TrimSpace(opts.APIKey),
		timeout:    timeout,
		batchSize:  batch,
		httpClient: httpClient,
	}
}

// FetchBatch looks up the current price and 24h change for each coin id.
// Ids the API does not return are left out of the result. When one chunk
// fails the others are still returned together with the error.
func (c *Client) FetchBatch(ctx context.Context, keys []string) (map[string]alert.Sample, error) {
	out := make(map[string]alert.Sample, len(keys))
	ids := normalizeIDs(keys)
	var errs []error
	for start := 0; start < len(ids); start += c.batchSize {
		end := start + c.batchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk, err := c.SimplePrice(ctx, ids[start:end])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for k, v := range chunk {
			out[k] = v
		}
	}
	return out, errors.Join(errs...)
}

// SimplePrice calls /simple/price for one set of ids.
func (c *Client) SimplePrice(ctx context.Context, ids []string) (map[string]alert.Sample, error) {
	if len(ids) == 0 {
		return map[string]alert.Sample{}, nil
	}
	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	query.Set("vs_currencies", c.vsCurrency)
	query.Set("include_24hr_change", "true")
	body, err := c.doRequest(ctx, "/simple/price", query)
	if err != nil {
		return nil, err
	}
	return parseSimplePrice(body, c.vsCurrency)
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fullURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.httpClient.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	body := append([]byte(nil), resp.Body()...)
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, &APIError{Status: resp.StatusCode(), Body: string(body)}
	}
	return body, nil
}

func parseSimplePrice(body []byte, vs string) (map[string]alert.Sample, error) {
	var raw map[string]map[string]json.Number
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode simple price: %w", err)
	}
	out := make(map[string]alert.Sample, len(raw))
	for id, fields := range raw {
		price, ok := fields[vs]
		if !ok || price == "" {
			continue
		}
		value, err := decimal.NewFromString(price.String())
		if err != nil {
			continue
		}
		s := alert.Sample{Value: value}
		if change, ok := fields[vs+"_24h_change"]; ok && change != "" {
			if pct, err := decimal.NewFromString(change.String()); err == nil {
				s.PctChange24h = &pct
			}
		}
		out[id] = s
	}
	return out, nil
}

func normalizeIDs(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
