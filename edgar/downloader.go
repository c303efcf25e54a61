package edgar

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rathore/earnings-agent/facts"
)

// DefaultTickers are the large US banks covered out of the box
var DefaultTickers = []string{
	"JPM", "BAC", "WFC", "C", "USB", "PNC", "GS", "TFC", "COF", "BK",
	"SCHW", "AXP", "STT", "CFG", "FITB", "KEY", "RF", "NTRS", "HBAN", "MS",
}

// FactsSource is the part of Client the downloader needs
type FactsSource interface {
	LookupCIK(ctx context.Context, ticker string) (string, error)
	CompanyFacts(ctx context.Context, cik string) ([]byte, error)
}

// Downloader fetches and flattens company facts for a list of tickers
type Downloader struct {
	src  FactsSource
	opts FlattenOptions
	log  zerolog.Logger
}

// Report summarizes a download
type Report struct {
	Added   map[string]int   // ticker -> new records
	Failed  map[string]error // ticker -> reason
	Derived int              // records added by DeriveMetrics
}

func NewDownloader(src FactsSource, opts FlattenOptions, log zerolog.Logger) *Downloader {
	return &Downloader{src: src, opts: opts, log: log}
}

// Download fills table with facts for every ticker, then derives ratios with
// DeriveMetrics. Tickers that fail are logged and reported but do not stop the
// download. An error is returned only when the context is done or every ticker
// failed.
func (d *Downloader) Download(ctx context.Context, table *facts.Table, tickers []string) (*Report, error) {
	report := &Report{Added: map[string]int{}, Failed: map[string]error{}}

	for i, ticker := range tickers {
		ticker = strings.ToUpper(strings.TrimSpace(ticker))
		if err := ctx.Err(); err != nil {
			return report, err
		}
		log := d.log.With().Str("ticker", ticker).Logger()
		log.Info().Msgf("Processing %d/%d", i+1, len(tickers))

		n, err := d.one(ctx, table, ticker)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return report, err
			}
			log.Warn().Err(err).Msg("skipping ticker")
			report.Failed[ticker] = err
			continue
		}
		report.Added[ticker] = n
		log.Info().Int("records", n).Msg("done")
	}

	if len(tickers) > 0 && len(report.Added) == 0 {
		return report, fmt.Errorf("no data downloaded for %d tickers", len(tickers))
	}
	report.Derived = DeriveMetrics(table)
	d.log.Debug().Int("records", report.Derived).Msg("derived metrics")
	return report, nil
}

func (d *Downloader) one(ctx context.Context, table *facts.Table, ticker string) (int, error) {
	cik, err := d.src.LookupCIK(ctx, ticker)
	if err != nil {
		return 0, err
	}
	body, err := d.src.CompanyFacts(ctx, cik)
	if err != nil {
		return 0, err
	}
	records, err := Flatten(ticker, body, d.opts)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, r := range records {
		if table.Add(r) {
			added++
		}
	}
	return added, nil
}
