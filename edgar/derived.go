package edgar

import (
	"time"

	"github.com/rathore/earnings-agent/facts"
)

// us-gaap concepts read by DeriveMetrics
const (
	tagNetIncome          = "NetIncomeLoss"
	tagEquity             = "StockholdersEquity"
	tagAssets             = "Assets"
	tagNetInterestIncome  = "InterestIncomeExpenseNet"
	tagNoninterestIncome  = "NoninterestIncome"
	tagNoninterestExpense = "NoninterestExpense"
)

// Metrics computed by DeriveMetrics, in percent
const (
	MetricReturnOnEquity  = "ReturnOnEquity"
	MetricReturnOnAssets  = "ReturnOnAssets"
	MetricEfficiencyRatio = "EfficiencyRatio"
)

type period struct {
	company string
	date    time.Time
}

// DeriveMetrics adds return on equity, return on assets and the efficiency
// ratio for every company and period end that has the inputs but no value of
// its own. Periods with a zero denominator are skipped. It returns the number
// of records added.
func DeriveMetrics(table *facts.Table) int {
	periods := map[period]map[string]facts.Record{}
	var order []period
	for _, r := range table.Records() {
		p := period{r.Company, r.Date}
		m, ok := periods[p]
		if !ok {
			m = map[string]facts.Record{}
			periods[p] = m
			order = append(order, p)
		}
		m[r.Metric] = r
	}

	added := 0
	for _, p := range order {
		m := periods[p]
		add := func(metric string, value float64, form string) {
			if _, ok := m[metric]; ok {
				return
			}
			if table.Add(facts.Record{Company: p.company, Date: p.date, Metric: metric, Value: value, Form: form}) {
				added++
			}
		}

		if ni, ok := m[tagNetIncome]; ok {
			if eq, ok := m[tagEquity]; ok && eq.Value != 0 {
				add(MetricReturnOnEquity, ni.Value/eq.Value*100, ni.Form)
			}
			if assets, ok := m[tagAssets]; ok && assets.Value != 0 {
				add(MetricReturnOnAssets, ni.Value/assets.Value*100, ni.Form)
			}
		}

		expense, ok := m[tagNoninterestExpense]
		if !ok {
			continue
		}
		nii, hasNII := m[tagNetInterestIncome]
		nonII, hasNonII := m[tagNoninterestIncome]
		if !hasNII && !hasNonII {
			continue
		}
		if revenue := nii.Value + nonII.Value; revenue != 0 {
			add(MetricEfficiencyRatio, expense.Value/revenue*100, expense.Form)
		}
	}
	return added
}
