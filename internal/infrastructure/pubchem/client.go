// Package pubchem is a small client for the PubChem PUG REST API. It resolves
// a compound name to its CID and synonym list.
package pubchem

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/turtacn/substance-resolver/internal/application/acquisition"
	"github.com/turtacn/substance-resolver/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/substance-resolver/pkg/errors"
)

const (
	// DefaultBaseURL is the public PUG REST endpoint.
	DefaultBaseURL = "https://pubchem.ncbi.nlm.nih.gov/rest/pug"

	// PubChem asks clients to stay below five requests per second.
	defaultRatePerSecond = 5

	propertyList = "IUPACName,MolecularFormula,MolecularWeight,CanonicalSMILES,IsomericSMILES"
)

// Client implements acquisition.CompoundLookup against PubChem.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	limiter    *rate.Limiter
	retryMax   uint64
	retryWait  time.Duration
	logger     logging.Logger
}

var _ acquisition.CompoundLookup = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithRateLimit caps outgoing requests per second. Zero or less disables
// limiting.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithRetry sets how many times a retryable failure is retried and the
// initial wait between attempts.
func WithRetry(retries uint64, initialWait time.Duration) Option {
	return func(c *Client) {
		c.retryMax = retries
		if initialWait > 0 {
			c.retryWait = initialWait
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a Client. An empty baseURL selects DefaultBaseURL; the
// default HTTP client is wrapped with otelhttp and bounded by timeout.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errors.New(errors.ErrCodeValidation, "pubchem base url must be an http(s) url").
			WithDetail("base_url=" + baseURL)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		userAgent: "substance-resolver",
		limiter:   rate.NewLimiter(rate.Limit(defaultRatePerSecond), 1),
		retryMax:  3,
		retryWait: 500 * time.Millisecond,
		logger:    logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("pubchem")
	return c, nil
}

type propertyResponse struct {
	PropertyTable struct {
		Properties []struct {
			CID int64 `json:"CID"`
		} `json:"Properties"`
	} `json:"PropertyTable"`
}

type synonymResponse struct {
	InformationList struct {
		Information []struct {
			CID     int64    `json:"CID"`
			Synonym []string `json:"Synonym"`
		} `json:"Information"`
	} `json:"InformationList"`
}

// Lookup resolves name to a CID and then fetches the synonyms of that CID.
// An unknown name returns an ErrCodeUpstreamNotFound error.
func (c *Client) Lookup(ctx context.Context, name string) (*acquisition.Compound, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New(errors.ErrCodeValidation, "compound name is empty")
	}

	var props propertyResponse
	path := "/compound/name/" + url.PathEscape(name) + "/property/" + propertyList + "/JSON"
	if err := c.getJSON(ctx, path, &props); err != nil {
		return nil, err
	}
	if len(props.PropertyTable.Properties) == 0 || props.PropertyTable.Properties[0].CID == 0 {
		return nil, errors.New(errors.ErrCodeUpstreamNotFound, "no compound for name").
			WithDetail("name=" + name)
	}
	cid := props.PropertyTable.Properties[0].CID

	var syn synonymResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/compound/cid/%d/synonyms/JSON", cid), &syn); err != nil {
		return nil, err
	}
	compound := &acquisition.Compound{CID: cid}
	if info := syn.InformationList.Information; len(info) > 0 {
		compound.Synonyms = info[0].Synonym
	}
	return compound, nil
}

// getJSON performs a rate-limited GET with exponential backoff on transport
// errors, 429 and 5xx responses.
func (c *Client) getJSON(ctx context.Context, path string, dest interface{}) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryWait
	policy.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(policy, c.retryMax), ctx)

	attempt := 0
	op := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return backoff.Permanent(errors.Wrap(err, errors.ErrCodeInternal, "failed to build pubchem request"))
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return errors.Wrap(err, errors.ErrCodeUpstreamLookupFailed, "pubchem request failed")
		}
		defer resp.Body.Close()
		c.logger.Debug("pubchem request",
			logging.String("path", path),
			logging.Int("status", resp.StatusCode),
			logging.Int("attempt", attempt),
			logging.Duration("elapsed", time.Since(start)),
		)

		switch {
		case resp.StatusCode == http.StatusOK:
			if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
				return backoff.Permanent(errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode pubchem response"))
			}
			return nil
		case resp.StatusCode == http.StatusNotFound:
			_, _ = io.Copy(io.Discard, resp.Body)
			return backoff.Permanent(errors.New(errors.ErrCodeUpstreamNotFound, "pubchem has no record").
				WithDetail("path=" + path))
		case resp.StatusCode == http.StatusTooManyRequests:
			_, _ = io.Copy(io.Discard, resp.Body)
			return errors.New(errors.ErrCodeUpstreamRateLimited, "pubchem rate limit exceeded")
		case resp.StatusCode >= 500:
			_, _ = io.Copy(io.Discard, resp.Body)
			return errors.Newf(errors.ErrCodeUpstreamLookupFailed, "pubchem returned %d", resp.StatusCode)
		default:
			_, _ = io.Copy(io.Discard, resp.Body)
			return backoff.Permanent(errors.Newf(errors.ErrCodeUpstreamLookupFailed, "pubchem returned %d", resp.StatusCode).
				WithDetail("path=" + path))
		}
	}

	err := backoff.Retry(op, b)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil && errors.GetCode(err) == errors.CodeUnknown {
		return errors.Wrap(err, errors.ErrCodeTimeout, "pubchem lookup cancelled")
	}
	return err
}
