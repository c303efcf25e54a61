package edgar

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rathore/earnings-agent/facts"
)

const tickersJSON = `{
	"0": {"cik_str": 19617, "ticker": "JPM", "title": "JPMORGAN CHASE & CO"},
	"1": {"cik_str": 72971, "ticker": "WFC", "title": "WELLS FARGO & COMPANY/MN"}
}`

const jpmFacts = `{
	"cik": 19617,
	"entityName": "JPMORGAN CHASE & CO",
	"facts": {
		"dei": {
			"EntityCommonStockSharesOutstanding": {"units": {"shares": [
				{"end": "2024-01-31", "val": 2870000000, "form": "10-K"}
			]}}
		},
		"us-gaap": {
			"NetIncomeLoss": {
				"label": "Net Income (Loss)",
				"units": {"USD": [
					{"end": "2023-12-31", "val": 49552000000, "form": "10-K", "filed": "2024-02-16"},
					{"end": "2023-12-31", "val": 49600000000, "form": "10-K/A", "filed": "2024-05-01"},
					{"end": "2024-09-30", "val": 12898000000, "form": "10-Q", "filed": "2024-11-01"},
					{"end": "2024-09-30", "val": 12900000000, "form": "10-Q", "filed": "2025-11-01"},
					{"end": "2024-06-30", "val": 18149000000, "form": "8-K"},
					{"end": "2001-12-31", "val": 1694000000, "form": "10-K"}
				]}
			},
			"EarningsPerShareDiluted": {
				"units": {"USD/shares": [
					{"end": "2023-12-31", "val": 16.23, "form": "10-K"}
				]}
			},
			"Broken": {
				"units": {"USD": [
					{"end": "not-a-date", "val": 1, "form": "10-K"},
					{"end": "2023-12-31", "val": "n/a", "form": "10-K"}
				]}
			}
		}
	}
}`

func fakeSEC(t *testing.T, fail *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if fail != nil && fail.Add(-1) >= 0 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		switch r.URL.Path {
		case "/files/company_tickers.json":
			_, _ = io.WriteString(w, tickersJSON)
		case "/api/xbrl/companyfacts/CIK0000019617.json":
			_, _ = io.WriteString(w, jpmFacts)
		case "/api/xbrl/companyfacts/CIK0000072971.json":
			_, _ = io.WriteString(w, `{"facts": {}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server, retries int) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{
		UserAgent:  "Test Bank research@example.com",
		DataURL:    srv.URL,
		TickersURL: srv.URL + "/files/company_tickers.json",
		Rate:       1000,
		MaxRetries: retries,
		RetryBase:  time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresUserAgent(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	assert.Error(t, err)
}

func TestClient_LookupCIK(t *testing.T) {
	c := newTestClient(t, fakeSEC(t, nil), 0)
	ctx := context.Background()

	cik, err := c.LookupCIK(ctx, " jpm ")
	require.NoError(t, err)
	assert.Equal(t, "0000019617", cik)

	cik, err = c.LookupCIK(ctx, "72971")
	require.NoError(t, err)
	assert.Equal(t, "0000072971", cik)

	_, err = c.LookupCIK(ctx, "ZZZZ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_CompanyFacts(t *testing.T) {
	c := newTestClient(t, fakeSEC(t, nil), 0)

	body, err := c.CompanyFacts(context.Background(), "19617")
	require.NoError(t, err)
	assert.Contains(t, string(body), "NetIncomeLoss")

	_, err = c.CompanyFacts(context.Background(), "1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_RetriesRateLimit(t *testing.T) {
	var fail atomic.Int32
	fail.Store(2)
	c := newTestClient(t, fakeSEC(t, &fail), 3)

	_, err := c.CompanyFacts(context.Background(), "0000019617")
	assert.NoError(t, err)

	fail.Store(5)
	c = newTestClient(t, fakeSEC(t, &fail), 1)
	_, err = c.CompanyFacts(context.Background(), "0000019617")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestFlatten(t *testing.T) {
	since := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	records, err := Flatten("JPM", []byte(jpmFacts), FlattenOptions{Since: since})
	require.NoError(t, err)

	byMetric := map[string][]facts.Record{}
	for _, r := range records {
		byMetric[r.Metric] = append(byMetric[r.Metric], r)
	}
	assert.NotContains(t, byMetric, "EntityCommonStockSharesOutstanding")
	assert.NotContains(t, byMetric, "Broken")

	income := byMetric["NetIncomeLoss"]
	require.Len(t, income, 3)
	assert.Equal(t, 49552000000.0, income[0].Value)
	assert.Equal(t, "10-K", income[0].Form)
	assert.Equal(t, "10-Q", income[1].Form)

	eps := byMetric["EarningsPerShareDiluted"]
	require.Len(t, eps, 1)
	assert.Equal(t, 16.23, eps[0].Value)
}

func TestFlatten_Options(t *testing.T) {
	records, err := Flatten("JPM", []byte(jpmFacts), FlattenOptions{
		Forms: []string{"10-K"},
		Units: []string{"USD"},
		Since: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, "NetIncomeLoss", r.Metric)
		assert.Equal(t, "10-K", r.Form)
	}

	_, err = Flatten("X", []byte("{"), FlattenOptions{})
	assert.Error(t, err)

	_, err = Flatten("X", []byte(`{"facts": {}}`), FlattenOptions{})
	assert.Error(t, err)
}

func TestFlatten_Until(t *testing.T) {
	records, err := Flatten("JPM", []byte(jpmFacts), FlattenOptions{
		Since: time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC),
		Until: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, "2023-12-31", r.Date.Format(facts.DateLayout))
	}
}

func TestDeriveMetrics(t *testing.T) {
	q4 := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	q3 := time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC)
	table := facts.NewTable()
	for _, r := range []facts.Record{
		{Company: "BAC", Date: q4, Metric: "NetIncomeLoss", Value: 10, Form: "10-K"},
		{Company: "BAC", Date: q4, Metric: "StockholdersEquity", Value: 100},
		{Company: "BAC", Date: q4, Metric: "Assets", Value: 1000},
		{Company: "BAC", Date: q4, Metric: "NoninterestExpense", Value: 60, Form: "10-K"},
		{Company: "BAC", Date: q4, Metric: "InterestIncomeExpenseNet", Value: 70},
		{Company: "BAC", Date: q4, Metric: "NoninterestIncome", Value: 30},
		// reported ratio is kept
		{Company: "BAC", Date: q4, Metric: MetricReturnOnAssets, Value: 1.5},
		// zero denominators are skipped
		{Company: "BAC", Date: q3, Metric: "NetIncomeLoss", Value: 5, Form: "10-Q"},
		{Company: "BAC", Date: q3, Metric: "StockholdersEquity", Value: 0},
		{Company: "BAC", Date: q3, Metric: "NoninterestExpense", Value: 40},
		{Company: "BAC", Date: q3, Metric: "NoninterestIncome", Value: 0},
	} {
		table.Add(r)
	}

	assert.Equal(t, 2, DeriveMetrics(table))

	roe, ok := table.Latest("BAC", MetricReturnOnEquity, time.Time{})
	require.True(t, ok)
	assert.InDelta(t, 10.0, roe.Value, 1e-9)
	assert.Equal(t, "10-K", roe.Form)
	assert.True(t, roe.Date.Equal(q4))

	roa, ok := table.Latest("BAC", MetricReturnOnAssets, time.Time{})
	require.True(t, ok)
	assert.Equal(t, 1.5, roa.Value)

	eff, ok := table.Latest("BAC", MetricEfficiencyRatio, time.Time{})
	require.True(t, ok)
	assert.InDelta(t, 60.0, eff.Value, 1e-9)
	assert.Len(t, table.Series("BAC", MetricEfficiencyRatio, time.Time{}, time.Time{}), 1)

	assert.Equal(t, 0, DeriveMetrics(table))
}

type fakeSource struct {
	bodies map[string]string
}

func (f *fakeSource) LookupCIK(_ context.Context, ticker string) (string, error) {
	if _, ok := f.bodies[ticker]; !ok {
		return "", ErrNotFound
	}
	return ticker, nil
}

func (f *fakeSource) CompanyFacts(_ context.Context, cik string) ([]byte, error) {
	return []byte(f.bodies[cik]), nil
}

func TestDownloader_Download(t *testing.T) {
	src := &fakeSource{bodies: map[string]string{"JPM": jpmFacts, "WFC": `{"facts": {}}`}}
	d := NewDownloader(src, FlattenOptions{Since: time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)}, zerolog.Nop())
	table := facts.NewTable()

	report, err := d.Download(context.Background(), table, []string{"jpm", "WFC", "NOPE"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"JPM": 3}, report.Added)
	assert.Len(t, report.Failed, 2)
	assert.True(t, errors.Is(report.Failed["NOPE"], ErrNotFound))

	// first filing of a period wins
	rec, ok := table.Latest("JPM", "NetIncomeLoss", time.Time{})
	require.True(t, ok)
	assert.Equal(t, 12898000000.0, rec.Value)
	assert.Equal(t, []string{"EarningsPerShareDiluted", "NetIncomeLoss"}, table.Metrics("JPM"))
	assert.Zero(t, report.Derived)
}

func TestDownloader_DerivesMetrics(t *testing.T) {
	body := `{"facts": {"us-gaap": {
		"NetIncomeLoss": {"units": {"USD": [{"end": "2024-12-31", "val": 20, "form": "10-K"}]}},
		"Assets": {"units": {"USD": [{"end": "2024-12-31", "val": 1000, "form": "10-K"}]}}
	}}}`
	d := NewDownloader(&fakeSource{bodies: map[string]string{"USB": body}},
		FlattenOptions{Since: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}, zerolog.Nop())
	table := facts.NewTable()

	report, err := d.Download(context.Background(), table, []string{"USB"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Derived)
	roa, ok := table.Latest("USB", MetricReturnOnAssets, time.Time{})
	require.True(t, ok)
	assert.InDelta(t, 2.0, roa.Value, 1e-9)
}

func TestDownloader_AllFail(t *testing.T) {
	d := NewDownloader(&fakeSource{}, FlattenOptions{}, zerolog.Nop())
	_, err := d.Download(context.Background(), facts.NewTable(), []string{"A", "B"})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.Download(ctx, facts.NewTable(), []string{"A"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDownloader_WithClient(t *testing.T) {
	c := newTestClient(t, fakeSEC(t, nil), 0)
	d := NewDownloader(c, FlattenOptions{Since: time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)}, zerolog.Nop())
	table := facts.NewTable()

	report, err := d.Download(context.Background(), table, []string{"JPM", "WFC"})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Added["JPM"])
	assert.Contains(t, report.Failed["WFC"].Error(), "no us-gaap facts")
	assert.Equal(t, []string{"JPM"}, table.Companies())
}

func TestPadCIK(t *testing.T) {
	assert.Equal(t, "0000019617", padCIK("19617"))
	assert.Equal(t, "0000019617", padCIK("0000019617"))
	assert.True(t, strings.HasPrefix(padCIK("1"), "000000000"))
}
