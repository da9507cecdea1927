package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dd0wney/scann-ondevice/pkg/logging"
	"github.com/dd0wney/scann-ondevice/pkg/scann"
	"github.com/dd0wney/scann-ondevice/pkg/search"
	"github.com/dd0wney/scann-ondevice/pkg/sstable"
	"github.com/dd0wney/scann-ondevice/pkg/validation"
)

var (
	buildManifestPath string
	buildJSONOutput   bool
	buildTimeout      time.Duration
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build an index from a YAML manifest",
	Long: `Build an index file from JSON-lines embeddings described by a YAML manifest.

Each input line holds {"embedding": [...], "metadata": "..."}. When the manifest
configures a partitioner, every embedding is assigned to its nearest leaf.
The finished index is written to the manifest's store under its output name.

Examples:
  scann-index build --manifest products.yaml
  scann-index build --manifest products.yaml --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := validation.LoadManifest(buildManifestPath)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), buildTimeout)
		defer cancel()

		result, err := buildFromManifest(ctx, m, filepath.Dir(buildManifestPath))
		if err != nil {
			return fmt.Errorf("build failed: %w", err)
		}

		if buildJSONOutput {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Index %s written to %s\n", result.Name, result.Output)
		fmt.Fprintf(cmd.OutOrStdout(), "Embeddings: %d\n", result.Embeddings)
		fmt.Fprintf(cmd.OutOrStdout(), "Partitions: %d\n", result.Partitions)
		fmt.Fprintf(cmd.OutOrStdout(), "Size: %d bytes\n", result.Bytes)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringVarP(&buildManifestPath, "manifest", "m", "manifest.yaml", "Build manifest")
	buildCmd.Flags().BoolVar(&buildJSONOutput, "json", false, "Print the build result as JSON")
	buildCmd.Flags().DurationVar(&buildTimeout, "timeout", 30*time.Minute, "Maximum time for the build including upload")
}

// buildResult summarizes a finished build
type buildResult struct {
	Name       string `json:"name"`
	Output     string `json:"output"`
	Embeddings int    `json:"embeddings"`
	Partitions int    `json:"partitions"`
	Bytes      int    `json:"bytes"`
}

// buildFromManifest reads the manifest input, builds the index and stores it.
// Relative input and local store paths resolve against baseDir.
func buildFromManifest(ctx context.Context, m *validation.BuildManifest, baseDir string) (*buildResult, error) {
	input := m.Input
	if !filepath.IsAbs(input) {
		input = filepath.Join(baseDir, input)
	}
	f, err := os.Open(input)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	data, err := readEmbeddings(f, m.EmbeddingDim, m.EmbeddingTypeValue())
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", input, err)
	}

	artifacts := scann.IndexedArtifacts{
		EmbeddingDim:   uint32(m.EmbeddingDim),
		Config:         m.ScannConfig(),
		UserInfo:       m.UserInfo,
		Metadata:       data.Metadata,
		FloatDatabase:  data.Float,
		HashedDatabase: data.Hashed,
	}

	partitions := 1
	if config := artifacts.Config.Partitioner; config != nil {
		p, err := search.NewPartitioner(config)
		if err != nil {
			return nil, err
		}
		artifacts.PartitionAssignment, err = search.Assign(p, data.AsFloat(), m.EmbeddingDim)
		if err != nil {
			return nil, err
		}
		partitions = p.NumPartitions()
	}

	tableOpts := sstable.DefaultOptions()
	tableOpts.BlockSize = validation.DefaultOr(m.BlockSize, tableOpts.BlockSize)
	builder := scann.NewBuilder(scann.BuilderOptions{
		Table:   tableOpts,
		Logger:  logger.With(logging.String("index", m.Name)),
		Metrics: registry,
	})
	buf, err := builder.Build(artifacts, m.Compression)
	if err != nil {
		return nil, err
	}

	storeSpec := m.Store
	if storeSpec.Kind != validation.StoreS3 && !filepath.IsAbs(storeSpec.Dir) {
		storeSpec.Dir = filepath.Join(baseDir, storeSpec.Dir)
	}
	store, err := openStore(ctx, storeSpec)
	if err != nil {
		return nil, err
	}
	if err := store.Put(ctx, m.Output, buf); err != nil {
		return nil, err
	}

	return &buildResult{
		Name:       m.Name,
		Output:     m.Output,
		Embeddings: data.Len(),
		Partitions: partitions,
		Bytes:      len(buf),
	}, nil
}
