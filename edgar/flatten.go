package edgar

import (
	"fmt"
	"slices"
	"time"

	"github.com/tidwall/gjson"

	"github.com/rathore/earnings-agent/facts"
)

// FlattenOptions selects which facts of a companyfacts document are kept
type FlattenOptions struct {
	// Forms lists accepted filing forms. Empty means 10-K and 10-Q.
	Forms []string
	// Since drops periods ending before it. Zero means ten years back.
	Since time.Time
	// Until drops periods ending after it. Zero means no upper bound.
	Until time.Time
	// Units lists accepted units. Empty means USD and USD/shares.
	Units []string
	// Taxonomy is the XBRL taxonomy to read. Empty means us-gaap.
	Taxonomy string
}

func (o FlattenOptions) withDefaults(now time.Time) FlattenOptions {
	if len(o.Forms) == 0 {
		o.Forms = []string{"10-K", "10-Q"}
	}
	if o.Since.IsZero() {
		o.Since = now.AddDate(-10, 0, 0)
	}
	if len(o.Units) == 0 {
		o.Units = []string{"USD", "USD/shares"}
	}
	if o.Taxonomy == "" {
		o.Taxonomy = "us-gaap"
	}
	return o
}

// Flatten turns a companyfacts document into records, one per tag, unit entry
// and period end. Entries are emitted in document order, so when added to a
// facts.Table the earliest filing of a period wins.
func Flatten(ticker string, body []byte, opts FlattenOptions) ([]facts.Record, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("companyfacts for %s: invalid JSON", ticker)
	}
	opts = opts.withDefaults(time.Now())
	taxonomy := gjson.GetBytes(body, "facts."+gjson.Escape(opts.Taxonomy))
	if !taxonomy.Exists() {
		return nil, fmt.Errorf("companyfacts for %s: no %s facts", ticker, opts.Taxonomy)
	}

	var records []facts.Record
	taxonomy.ForEach(func(tag, fact gjson.Result) bool {
		units := fact.Get("units")
		for _, unit := range opts.Units {
			units.Get(gjson.Escape(unit)).ForEach(func(_, entry gjson.Result) bool {
				form := entry.Get("form").String()
				if !slices.Contains(opts.Forms, form) {
					return true
				}
				end, err := time.Parse(facts.DateLayout, entry.Get("end").String())
				if err != nil || end.Before(opts.Since) || (!opts.Until.IsZero() && end.After(opts.Until)) {
					return true
				}
				val := entry.Get("val")
				if val.Type != gjson.Number {
					return true
				}
				records = append(records, facts.Record{
					Company: ticker,
					Date:    end,
					Metric:  tag.String(),
					Value:   val.Float(),
					Form:    form,
				})
				return true
			})
		}
		return true
	})
	return records, nil
}
