package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dd0wney/scann-ondevice/pkg/scann"
)

var (
	getPartition int
	getMetadata  int
	getUserInfo  bool
)

var getCmd = &cobra.Command{
	Use:   "get <index-file>",
	Short: "Print one record of an index",
	Long: `Print a partition's embeddings, one metadata entry, or the user info.

Examples:
  scann-index get products.ldb --partition 3
  scann-index get products.ldb --metadata 120
  scann-index get products.ldb --user-info`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := openIndexFile(args[0])
		if err != nil {
			return err
		}
		defer index.Close()

		out := cmd.OutOrStdout()
		switch {
		case getPartition >= 0:
			embeddings, err := partitionEmbeddings(index.Index, uint32(getPartition))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(out)
			for _, e := range embeddings {
				if err := enc.Encode(e); err != nil {
					return err
				}
			}
			return nil
		case getMetadata >= 0:
			metadata, err := index.GetMetadataAtIndex(uint32(getMetadata))
			if err != nil {
				return err
			}
			fmt.Fprintln(out, metadata)
			return nil
		case getUserInfo:
			info, err := index.GetUserInfo()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, info)
			return nil
		default:
			return fmt.Errorf("one of --partition, --metadata or --user-info is required")
		}
	},
}

func init() {
	rootCmd.AddCommand(getCmd)

	getCmd.Flags().IntVarP(&getPartition, "partition", "p", -1, "Partition index")
	getCmd.Flags().IntVar(&getMetadata, "metadata", -1, "Global metadata index")
	getCmd.Flags().BoolVar(&getUserInfo, "user-info", false, "Print the user info")
	getCmd.MarkFlagsMutuallyExclusive("partition", "metadata", "user-info")
}

// partitionEmbeddings splits a partition into per-embedding values: float32
// for FLOAT indexes, integers for UINT8 ones.
func partitionEmbeddings(index *scann.Index, i uint32) ([]any, error) {
	config, err := index.GetIndexConfig()
	if err != nil {
		return nil, err
	}
	partition, err := index.GetPartitionAtIndex(i)
	if err != nil {
		return nil, err
	}
	n, err := scann.PartitionLen(partition, config)
	if err != nil {
		return nil, err
	}

	dim := int(config.EmbeddingDim)
	out := make([]any, n)
	if config.EmbeddingType == scann.EmbeddingTypeFloat {
		values, err := scann.DecodeFloatPartition(nil, partition)
		if err != nil {
			return nil, err
		}
		for j := range out {
			out[j] = values[j*dim : (j+1)*dim]
		}
		return out, nil
	}
	for j := range out {
		ints := make([]int, dim)
		for k, b := range partition[j*dim : (j+1)*dim] {
			ints[k] = int(b)
		}
		out[j] = ints
	}
	return out, nil
}
