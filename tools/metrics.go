package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/rathore/earnings-agent/facts"
)

// MetricComparison is one row of a compare_metrics result
type MetricComparison struct {
	Company string  `json:"company"`
	Metric  string  `json:"metric"`
	Date    string  `json:"date,omitempty"`
	Value   float64 `json:"value"`
	Form    string  `json:"form,omitempty"`
	Missing bool    `json:"missing,omitempty"`
}

// MetricTrend is the result of metric_trend
type MetricTrend struct {
	Company string        `json:"company"`
	Metric  string        `json:"metric"`
	Points  []facts.Point `json:"points"`
}

// NewCompareMetrics returns a tool comparing the latest value of a metric across companies
func NewCompareMetrics(table *facts.Table) *Func {
	return New(Spec{
		Name: "compare_metrics",
		Description: `Compare the latest reported value of a financial metric across companies.
Values are as reported in company filings (USD).`,
		Params: []Param{
			{Name: "companies", Type: TypeArray, Description: "Company tickers, e.g. [\"JPM\", \"WFC\"]"},
			{Name: "metric", Type: TypeString, Description: "Metric name, e.g. NetIncomeLoss"},
			{Name: "as_of", Type: TypeString, Description: "Only consider periods ending on or before this date (YYYY-MM-DD)", Optional: true},
		},
	}, func(_ context.Context, args Args) (any, error) {
		companies, err := args.Strings("companies")
		if err != nil {
			return nil, err
		}
		if len(companies) == 0 {
			return nil, &ArgError{Param: "companies", Reason: "at least one company required"}
		}
		metric, err := args.String("metric")
		if err != nil {
			return nil, err
		}
		asOf, err := dateArg(args, "as_of")
		if err != nil {
			return nil, err
		}

		known := false
		rows := make([]MetricComparison, 0, len(companies))
		for _, company := range companies {
			row := MetricComparison{Company: company, Metric: metric}
			name, ok := table.ResolveMetric(company, metric)
			if ok {
				known = true
				row.Metric = name
			}
			rec, found := table.Latest(company, name, asOf)
			if !ok || !found {
				row.Missing = true
				rows = append(rows, row)
				continue
			}
			row.Company = rec.Company
			row.Date = rec.Date.Format(facts.DateLayout)
			row.Value = rec.Value
			row.Form = rec.Form
			rows = append(rows, row)
		}
		if !known {
			return nil, fmt.Errorf("unknown metric %q for %v", metric, companies)
		}
		return rows, nil
	})
}

// NewMetricTrend returns a tool listing a metric's values over time for one company
func NewMetricTrend(table *facts.Table) *Func {
	return New(Spec{
		Name:        "metric_trend",
		Description: "Return the time series of a financial metric for one company, ordered by period end date.",
		Params: []Param{
			{Name: "company", Type: TypeString, Description: "Company ticker"},
			{Name: "metric", Type: TypeString, Description: "Metric name"},
			{Name: "start", Type: TypeString, Description: "First period end date (YYYY-MM-DD)", Optional: true},
			{Name: "end", Type: TypeString, Description: "Last period end date (YYYY-MM-DD)", Optional: true},
		},
	}, func(_ context.Context, args Args) (any, error) {
		company, err := args.String("company")
		if err != nil {
			return nil, err
		}
		metric, err := args.String("metric")
		if err != nil {
			return nil, err
		}
		start, err := dateArg(args, "start")
		if err != nil {
			return nil, err
		}
		end, err := dateArg(args, "end")
		if err != nil {
			return nil, err
		}
		name, ok := table.ResolveMetric(company, metric)
		if !ok {
			return nil, fmt.Errorf("unknown metric %q for %s", metric, company)
		}
		return MetricTrend{
			Company: company,
			Metric:  name,
			Points:  table.Series(company, name, start, end),
		}, nil
	})
}

// NewListMetrics returns a tool listing the metrics available for a company
func NewListMetrics(table *facts.Table) *Func {
	return New(Spec{
		Name:        "list_metrics",
		Description: "List the financial metrics available for a company.",
		Params: []Param{
			{Name: "company", Type: TypeString, Description: "Company ticker"},
		},
	}, func(_ context.Context, args Args) (any, error) {
		company, err := args.String("company")
		if err != nil {
			return nil, err
		}
		metrics := table.Metrics(company)
		if len(metrics) == 0 {
			return nil, fmt.Errorf("no data for company %q", company)
		}
		return metrics, nil
	})
}

func dateArg(args Args, name string) (time.Time, error) {
	s, err := args.StringOr(name, "")
	if err != nil || s == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(facts.DateLayout, s)
	if err != nil {
		return time.Time{}, &ArgError{Param: name, Reason: "expected date YYYY-MM-DD"}
	}
	return t, nil
}
