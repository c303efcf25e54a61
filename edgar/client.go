// Package edgar downloads XBRL company facts from the SEC EDGAR API.
package edgar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"
)

const (
	DefaultDataURL    = "https://data.sec.gov"
	DefaultTickersURL = "https://www.sec.gov/files/company_tickers.json"

	// SEC fair access policy: at most 10 requests per second
	DefaultRate = 10
)

// ErrNotFound is returned for unknown tickers and missing company facts
var ErrNotFound = errors.New("not found")

// ClientConfig holds configuration for the EDGAR client
type ClientConfig struct {
	// UserAgent is mandatory: SEC rejects anonymous clients.
	// Format: "Company Name admin@company.com"
	UserAgent  string
	DataURL    string
	TickersURL string
	Rate       float64
	MaxRetries int
	RetryBase  time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client fetches company facts from EDGAR
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger

	tickerMu    sync.Mutex
	tickerCache map[string]string // ticker -> 10-digit CIK
}

// NewClient creates a new EDGAR client
func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.UserAgent) == "" {
		return nil, errors.New("edgar: user agent is required")
	}
	if cfg.DataURL == "" {
		cfg.DataURL = DefaultDataURL
	}
	if cfg.TickersURL == "" {
		cfg.TickersURL = DefaultTickersURL
	}
	if cfg.Rate <= 0 {
		cfg.Rate = DefaultRate
	}
	if cfg.RetryBase == 0 {
		cfg.RetryBase = time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		cfg:     cfg,
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(cfg.Rate), 1),
		log:     cfg.Logger,
	}, nil
}

// LookupCIK resolves a ticker symbol to a 10-digit CIK. Numeric input is
// treated as a CIK and padded.
func (c *Client) LookupCIK(ctx context.Context, ticker string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(ticker))
	if normalized == "" {
		return "", fmt.Errorf("empty ticker: %w", ErrNotFound)
	}
	if isDigits(normalized) {
		return padCIK(normalized), nil
	}

	c.tickerMu.Lock()
	defer c.tickerMu.Unlock()

	if c.tickerCache == nil {
		if err := c.loadTickerCache(ctx); err != nil {
			return "", err
		}
	}
	if cik, ok := c.tickerCache[normalized]; ok {
		return cik, nil
	}
	return "", fmt.Errorf("ticker %s: %w", ticker, ErrNotFound)
}

// loadTickerCache fetches the full ticker list.
// Format: {"0": {"cik_str": 19617, "ticker": "JPM", "title": "..."}, ...}
func (c *Client) loadTickerCache(ctx context.Context) error {
	body, err := c.get(ctx, c.cfg.TickersURL)
	if err != nil {
		return fmt.Errorf("failed to fetch company tickers: %w", err)
	}

	type tickerEntry struct {
		CIK    int    `json:"cik_str"`
		Ticker string `json:"ticker"`
		Title  string `json:"title"`
	}
	var resp map[string]tickerEntry
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to parse ticker JSON: %w", err)
	}

	cache := make(map[string]string, len(resp))
	for _, entry := range resp {
		cache[strings.ToUpper(entry.Ticker)] = fmt.Sprintf("%010d", entry.CIK)
	}
	c.tickerCache = cache
	c.log.Debug().Int("tickers", len(cache)).Msg("loaded ticker map")
	return nil
}

// CompanyFacts returns the raw companyfacts document for a CIK
func (c *Client) CompanyFacts(ctx context.Context, cik string) ([]byte, error) {
	url := fmt.Sprintf("%s/api/xbrl/companyfacts/CIK%s.json", strings.TrimRight(c.cfg.DataURL, "/"), padCIK(cik))
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("company facts for CIK %s: %w", cik, err)
	}
	return body, nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

// get performs a rate limited GET. 429 and 5xx replies are retried.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	backoff := retry.WithMaxRetries(uint64(c.cfg.MaxRetries), retry.NewExponential(c.cfg.RetryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", c.cfg.UserAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return ErrNotFound
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			c.log.Debug().Int("status", resp.StatusCode).Str("url", url).Msg("retrying")
			return retry.RetryableError(&statusError{resp.StatusCode})
		case resp.StatusCode != http.StatusOK:
			return &statusError{resp.StatusCode}
		}

		body, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func padCIK(cik string) string {
	cik = strings.TrimLeft(strings.TrimSpace(cik), "0")
	if len(cik) >= 10 {
		return cik
	}
	return strings.Repeat("0", 10-len(cik)) + cik
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
