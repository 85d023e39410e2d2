package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/ctxpack/internal/retrieval"
)

// defaultRequester is the identity CLI commands act as.
const defaultRequester = "local"

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// truncate shortens s to at most max runes.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// addRetrievalFlags registers the flags shared by commands that retrieve
// candidate documents.
func addRetrievalFlags(c *cobra.Command) {
	c.Flags().Int("limit", 0, "maximum number of chunks (0 uses the configured limit)")
	c.Flags().String("scope", "", "include every document in this scope")
	c.Flags().StringSlice("doc", nil, "document id to include (repeatable)")
	c.Flags().Float64("min-score", 0, "minimum search score (defaults to the configured value)")
	c.Flags().String("requester", defaultRequester, "identity used for document visibility")
}

func retrievalFlags(c *cobra.Command) (string, retrieval.Request) {
	limit, _ := c.Flags().GetInt("limit")
	scope, _ := c.Flags().GetString("scope")
	docs, _ := c.Flags().GetStringSlice("doc")
	minScore, _ := c.Flags().GetFloat64("min-score")
	who, _ := c.Flags().GetString("requester")

	return who, retrieval.Request{
		DocumentIDs: docs,
		ScopeID:     scope,
		Limit:       limit,
		MinScore:    minScoreFlag(c.Flags().Changed("min-score"), minScore),
	}
}
