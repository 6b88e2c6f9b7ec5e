// Package cli provides output formatting for the kioku command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/kioku/pkg/models"
	"github.com/hyperjump/kioku/pkg/utils"
)

// OutputFormat is the format for result output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteResults writes retrieval results to w in the given format.
func WriteResults(w io.Writer, results []*models.RetrievalResult, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	writeResultsText(w, results)
	return nil
}

func writeResultsText(w io.Writer, results []*models.RetrievalResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}
	fmt.Fprintf(w, "\nFound %d results\n\n", len(results))
	for i, r := range results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Similarity: %.4f | Category: %s\n", i+1, r.Similarity, r.Category)
		fmt.Fprintf(w, "ID: %s\n", r.ID)
		if r.Source != "" {
			fmt.Fprintf(w, "Source: %s\n", r.Source)
		}
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(r.Text, 200))
	}
}

// WriteStats writes engine stats to w in the given format.
func WriteStats(w io.Writer, stats models.Stats, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	fmt.Fprintf(w, "Documents:        %d\n", stats.Documents)
	fmt.Fprintf(w, "Index size:       %d\n", stats.IndexSize)
	fmt.Fprintf(w, "Queries:          %d\n", stats.Queries)
	fmt.Fprintf(w, "Avg retrieval:    %.1fms\n", stats.AvgRetrievalMs)
	fmt.Fprintf(w, "Cached embeddings: %d\n", stats.EmbeddingCached)
	return nil
}
