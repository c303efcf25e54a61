package tools

import (
	"context"
	"fmt"

	"github.com/rathore/earnings-agent/rag"
)

// Searcher finds report chunks semantically close to a query
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]rag.Document, error)
}

// SearchHit is one search_reports result
type SearchHit struct {
	Title   string  `json:"title"`
	Path    string  `json:"path"`
	Score   float32 `json:"score"`
	Content string  `json:"content"`
}

// NewSearchReports returns a tool that runs a semantic search over the
// indexed report directory
func NewSearchReports(s Searcher) *Func {
	return New(Spec{
		Name:        "search_reports",
		Description: "Search earnings reports for passages related to a question and return the closest matches.",
		Params: []Param{
			{Name: "query", Type: TypeString, Description: "What to look for, e.g. 'net interest margin guidance'"},
			{Name: "top_k", Type: TypeInteger, Description: "Number of passages to return (default: 5)", Optional: true},
		},
	}, func(ctx context.Context, args Args) (any, error) {
		query, err := args.String("query")
		if err != nil {
			return nil, err
		}
		topK, err := args.IntOr("top_k", 5)
		if err != nil {
			return nil, err
		}
		if topK <= 0 {
			return nil, &ArgError{Param: "top_k", Reason: fmt.Sprintf("must be positive, got %d", topK)}
		}
		found, err := s.Search(ctx, query, int(topK))
		if err != nil {
			return nil, err
		}
		hits := make([]SearchHit, 0, len(found))
		for _, d := range found {
			hits = append(hits, SearchHit{
				Title:   d.Metadata["title"],
				Path:    d.Metadata["file_path"],
				Score:   d.Score,
				Content: d.Content,
			})
		}
		return hits, nil
	})
}
