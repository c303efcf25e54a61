package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/rathore/earnings-agent/docs"
)

const defaultMaxChars = 20000

// NewLoadDocument returns a tool that loads an earnings report as plain text
func NewLoadDocument(loader *docs.Loader) *Func {
	return New(Spec{
		Name:        "load_document",
		Description: "Load an earnings report (HTML or text) from a file path and return its text.",
		Params: []Param{
			{Name: "file_path", Type: TypeString, Description: "Path to the report file"},
			{Name: "max_chars", Type: TypeInteger, Description: "Maximum characters to return (default: 20000)", Optional: true},
		},
	}, func(_ context.Context, args Args) (any, error) {
		path, err := args.String("file_path")
		if err != nil {
			return nil, err
		}
		maxChars, err := args.IntOr("max_chars", defaultMaxChars)
		if err != nil {
			return nil, err
		}
		doc, err := loader.Load(path)
		if err != nil {
			return nil, err
		}
		text := doc.Text()
		if text == "" {
			return nil, fmt.Errorf("no text found in %s", path)
		}
		return docs.Truncate(text, int(maxChars)), nil
	})
}

// Completer produces a text completion for a single prompt
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

const metricNotFound = "Metric not found in document"

const extractPrompt = `You are a financial analyst. Extract the specific metric requested from this earnings report.

METRIC TO FIND: %[1]s

EARNINGS REPORT TEXT:
%[2]s

INSTRUCTIONS:
1. Find the exact value for "%[1]s" in the text
2. Include the numerical value with units (millions, billions, %%, etc.)
3. If found, also include any period comparison (YoY, QoQ)
4. If not found, return "` + metricNotFound + `"
5. Be precise and include context if helpful

Return format: "Metric: [value] [additional context if relevant]"`

// NewExtractMetric returns a tool that asks a language model to pull one
// metric out of report text. Long text is split into chunks of chunkSize
// bytes which are tried in order until the metric is found.
func NewExtractMetric(llm Completer, chunkSize int) *Func {
	if chunkSize <= 0 {
		chunkSize = 8000
	}
	return New(Spec{
		Name:        "extract_metric",
		Description: "Extract a specific financial metric from earnings report text using a language model.",
		Params: []Param{
			{Name: "text", Type: TypeString, Description: "Earnings report text"},
			{Name: "metric_name", Type: TypeString, Description: "Metric to extract, e.g. Net Interest Income, ROE, EPS"},
		},
	}, func(ctx context.Context, args Args) (any, error) {
		text, err := args.String("text")
		if err != nil {
			return nil, err
		}
		metric, err := args.String("metric_name")
		if err != nil {
			return nil, err
		}
		for _, chunk := range docs.ChunkText(text, chunkSize) {
			answer, err := llm.Complete(ctx, fmt.Sprintf(extractPrompt, metric, chunk))
			if err != nil {
				return nil, fmt.Errorf("extraction failed: %w", err)
			}
			answer = strings.TrimSpace(answer)
			if answer != "" && !strings.Contains(answer, metricNotFound) {
				return answer, nil
			}
		}
		return metricNotFound, nil
	})
}
