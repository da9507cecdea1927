package main

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dd0wney/scann-ondevice/pkg/scann"
	"github.com/dd0wney/scann-ondevice/pkg/search"
)

var (
	searchQuery      string
	searchQueryFile  string
	searchWorkers    int
	searchK          int
	searchPartitions int
	searchJSONOutput bool
)

var searchCmd = &cobra.Command{
	Use:   "search <index-file>",
	Short: "Find the nearest neighbors of a query",
	Long: `Search a FLOAT index for the embeddings nearest to a query vector.

The partitioner picks which partitions to scan; --partitions overrides its
search fraction.

With --query-file, every JSON-lines record's embedding is a query; results
are printed as one JSON array per query, in input order.

Examples:
  scann-index search products.ldb --query "0.1,0.2,0.3" --k 5
  scann-index search products.ldb --query "0.1,0.2,0.3" --partitions 4 --json
  scann-index search products.ldb --query-file queries.jsonl --workers 8`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := openIndexFile(args[0])
		if err != nil {
			return err
		}
		defer index.Close()

		searcher, err := search.NewSearcher(index.Index, search.Options{
			MaxResults:         searchK,
			PartitionsToSearch: searchPartitions,
			Logger:             logger,
			Metrics:            registry,
		})
		if err != nil {
			return err
		}
		if searchQueryFile != "" {
			return searchBatch(cmd, searcher)
		}

		query, err := parseQuery(searchQuery)
		if err != nil {
			return err
		}
		neighbors, err := searcher.Search(query)
		if err != nil {
			return err
		}

		if searchJSONOutput {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(neighbors)
		}
		for rank, n := range neighbors {
			fmt.Fprintf(cmd.OutOrStdout(), "%3d  %-8d %12.6f  %s\n", rank+1, n.Index, n.Distance, n.Metadata)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", "", "Comma-separated query vector")
	searchCmd.Flags().StringVar(&searchQueryFile, "query-file", "", "JSON-lines file of query embeddings")
	searchCmd.Flags().IntVar(&searchWorkers, "workers", runtime.NumCPU(), "Concurrent queries with --query-file")
	searchCmd.Flags().IntVar(&searchK, "k", 10, "Number of neighbors")
	searchCmd.Flags().IntVar(&searchPartitions, "partitions", 0, "Partitions to scan (0 uses the index search fraction)")
	searchCmd.Flags().BoolVar(&searchJSONOutput, "json", false, "Print neighbors as JSON")
	searchCmd.MarkFlagsOneRequired("query", "query-file")
	searchCmd.MarkFlagsMutuallyExclusive("query", "query-file")
}

// parseQuery parses "0.1, 0.2,0.3" into a vector
func parseQuery(s string) ([]float32, error) {
	fields := strings.Split(s, ",")
	query := make([]float32, 0, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 32)
		if err != nil {
			return nil, fmt.Errorf("query value %d: %w", i, err)
		}
		query = append(query, float32(v))
	}
	return query, nil
}

// searchBatch answers every query in --query-file
func searchBatch(cmd *cobra.Command, searcher *search.Searcher) error {
	f, err := os.Open(searchQueryFile)
	if err != nil {
		return err
	}
	defer f.Close()

	input, err := readEmbeddings(f, int(searcher.Config().EmbeddingDim), scann.EmbeddingTypeFloat)
	if err != nil {
		return fmt.Errorf("failed to read queries: %w", err)
	}
	dim := int(searcher.Config().EmbeddingDim)
	queries := make([][]float32, input.Len())
	for i := range queries {
		queries[i] = input.Float[i*dim : (i+1)*dim]
	}

	results, err := searcher.SearchBatch(cmd.Context(), queries, searchWorkers)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, neighbors := range results {
		if err := enc.Encode(neighbors); err != nil {
			return err
		}
	}
	return nil
}
