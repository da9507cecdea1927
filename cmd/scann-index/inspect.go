package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dd0wney/scann-ondevice/pkg/indexstore"
	"github.com/dd0wney/scann-ondevice/pkg/scann"
)

// indexCacheBlocks is the decoded-block cache size for command-line reads
const indexCacheBlocks = 64

var inspectJSONOutput bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <index-file>",
	Short: "Summarize an index file",
	Long: `Print the index config, per-partition embedding counts and user info.

Examples:
  scann-index inspect products.ldb
  scann-index inspect --json products.ldb | jq '.partitions'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := openIndexFile(args[0])
		if err != nil {
			return err
		}
		defer index.Close()

		summary, err := summarize(index.Index)
		if err != nil {
			return err
		}
		if inspectJSONOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		}
		printSummary(cmd.OutOrStdout(), args[0], summary)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolVar(&inspectJSONOutput, "json", false, "Print the summary as JSON")
}

func openIndexFile(path string) (*indexstore.MappedIndex, error) {
	return indexstore.OpenMapped(path, scann.ReaderOptions{
		BlockCacheSize: indexCacheBlocks,
		Logger:         logger,
		Metrics:        registry,
	})
}

// indexSummary is what inspect reports about an index
type indexSummary struct {
	SizeBytes      int64    `json:"size_bytes"`
	EmbeddingType  string   `json:"embedding_type"`
	EmbeddingDim   uint32   `json:"embedding_dim"`
	QueryDistance  string   `json:"query_distance"`
	Leaves         int      `json:"leaves"`
	SearchFraction float32  `json:"search_fraction,omitempty"`
	Embeddings     int      `json:"embeddings"`
	Partitions     []int    `json:"partitions"`
	Offsets        []uint32 `json:"offsets"`
	UserInfo       *string  `json:"user_info,omitempty"`
	UnknownConfig  bool     `json:"unknown_config_fields,omitempty"`
}

func summarize(index *scann.Index) (*indexSummary, error) {
	config, err := index.GetIndexConfig()
	if err != nil {
		return nil, err
	}

	s := &indexSummary{
		SizeBytes:     index.Size(),
		EmbeddingType: config.EmbeddingType.String(),
		EmbeddingDim:  config.EmbeddingDim,
		QueryDistance: config.ScannConfig.QueryDistance.String(),
		Leaves:        config.ScannConfig.Partitioner.NumPartitions(),
		Partitions:    make([]int, config.NumPartitions()),
		Offsets:       config.GlobalPartitionOffsets,
		UnknownConfig: config.ScannConfig.HasUnknownFields(),
	}
	if p := config.ScannConfig.Partitioner; p != nil {
		s.SearchFraction = p.SearchFraction
	}

	for i := range s.Partitions {
		partition, err := index.GetPartitionAtIndex(uint32(i))
		if err != nil {
			return nil, err
		}
		s.Partitions[i], err = scann.PartitionLen(partition, config)
		if err != nil {
			return nil, err
		}
		s.Embeddings += s.Partitions[i]
	}

	info, err := index.GetUserInfo()
	switch {
	case err == nil:
		s.UserInfo = &info
	case !scann.IsNotFound(err):
		return nil, err
	}
	return s, nil
}

func printSummary(w io.Writer, path string, s *indexSummary) {
	fmt.Fprintf(w, "Index: %s (%d bytes)\n", path, s.SizeBytes)
	fmt.Fprintf(w, "Embeddings: %d x %d %s\n", s.Embeddings, s.EmbeddingDim, s.EmbeddingType)
	fmt.Fprintf(w, "Distance: %s\n", s.QueryDistance)
	if s.Leaves > 0 {
		fmt.Fprintf(w, "Partitioner: %d leaves, search fraction %g\n", s.Leaves, s.SearchFraction)
	}
	fmt.Fprintf(w, "Partitions: %d\n", len(s.Partitions))
	for i, n := range s.Partitions {
		fmt.Fprintf(w, "  %4d: %d embeddings (first %d)\n", i, n, s.Offsets[i])
	}
	if s.UserInfo != nil {
		fmt.Fprintf(w, "User info: %s\n", strings.TrimSpace(*s.UserInfo))
	}
	if s.UnknownConfig {
		fmt.Fprintln(w, "Config carries fields this tool does not interpret")
	}
}
