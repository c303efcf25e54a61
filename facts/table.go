// Package facts holds company/metric/date indexed financial values.
package facts

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// DateLayout is the layout used for period end dates in files and tool arguments
const DateLayout = "2006-01-02"

// Record is one reported value for a company, metric and period end
type Record struct {
	Company string    `json:"company"`
	Date    time.Time `json:"date"`
	Metric  string    `json:"metric"`
	Value   float64   `json:"value"`
	Form    string    `json:"form,omitempty"`
}

// Point is one entry of a time series
type Point struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
	Form  string  `json:"form,omitempty"`
}

type key struct {
	company string
	metric  string
	date    time.Time
}

// Table is an in-memory fact store. The first value added for a
// (company, metric, date) key is kept; later duplicates are ignored.
type Table struct {
	mu      sync.RWMutex
	records []Record
	index   map[key]int
}

func NewTable() *Table {
	return &Table{index: make(map[key]int)}
}

func normCompany(c string) string {
	return strings.ToUpper(strings.TrimSpace(c))
}

// Add stores a record and reports whether it was new
func (t *Table) Add(r Record) bool {
	r.Company = normCompany(r.Company)
	r.Metric = strings.TrimSpace(r.Metric)
	r.Date = r.Date.UTC().Truncate(24 * time.Hour)
	k := key{r.Company, r.Metric, r.Date}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.index[k]; ok {
		return false
	}
	t.index[k] = len(t.records)
	t.records = append(t.records, r)
	return true
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

// Records returns a copy of all records sorted by company, date, metric
func (t *Table) Records() []Record {
	t.mu.RLock()
	out := slices.Clone(t.records)
	t.mu.RUnlock()
	slices.SortFunc(out, func(a, b Record) int {
		if c := strings.Compare(a.Company, b.Company); c != 0 {
			return c
		}
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return strings.Compare(a.Metric, b.Metric)
	})
	return out
}

// Companies lists the distinct companies, sorted
func (t *Table) Companies() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, r := range t.records {
		seen[r.Company] = struct{}{}
	}
	return sortedKeys(seen)
}

// Metrics lists the distinct metrics reported by a company, sorted
func (t *Table) Metrics(company string) []string {
	company = normCompany(company)
	t.mu.RLock()
	defer t.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, r := range t.records {
		if r.Company == company {
			seen[r.Metric] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// ResolveMetric finds the stored spelling of a metric for a company.
// Exact matches win over case-insensitive ones.
func (t *Table) ResolveMetric(company, metric string) (string, bool) {
	metrics := t.Metrics(company)
	if slices.Contains(metrics, metric) {
		return metric, true
	}
	for _, m := range metrics {
		if strings.EqualFold(m, metric) {
			return m, true
		}
	}
	return "", false
}

// Series returns the values of a metric between from and to (inclusive, zero means open),
// ordered by date
func (t *Table) Series(company, metric string, from, to time.Time) []Point {
	company = normCompany(company)
	t.mu.RLock()
	var matched []Record
	for _, r := range t.records {
		if r.Company != company || r.Metric != metric {
			continue
		}
		if !from.IsZero() && r.Date.Before(from) {
			continue
		}
		if !to.IsZero() && r.Date.After(to) {
			continue
		}
		matched = append(matched, r)
	}
	t.mu.RUnlock()

	slices.SortFunc(matched, func(a, b Record) int { return a.Date.Compare(b.Date) })
	points := make([]Point, 0, len(matched))
	for _, r := range matched {
		points = append(points, Point{Date: r.Date.Format(DateLayout), Value: r.Value, Form: r.Form})
	}
	return points
}

// Latest returns the most recent value on or before asOf (zero means no bound)
func (t *Table) Latest(company, metric string, asOf time.Time) (Record, bool) {
	company = normCompany(company)
	t.mu.RLock()
	defer t.mu.RUnlock()
	var best Record
	found := false
	for _, r := range t.records {
		if r.Company != company || r.Metric != metric {
			continue
		}
		if !asOf.IsZero() && r.Date.After(asOf) {
			continue
		}
		if !found || r.Date.After(best.Date) {
			best, found = r, true
		}
	}
	return best, found
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
