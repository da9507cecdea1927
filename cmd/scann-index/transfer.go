package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

var (
	pushS3          s3Flags
	pullS3          s3Flags
	transferTimeout time.Duration
)

var pushCmd = &cobra.Command{
	Use:   "push <index-file> <name>",
	Short: "Upload an index file to S3",
	Long: `Upload a local index file to S3 under <prefix>/<name>.

Credentials come from the default AWS chain (environment, shared config, instance role).

Examples:
  scann-index push products.ldb v2/products.ldb --bucket indexes
  scann-index push products.ldb products.ldb --bucket indexes --endpoint http://localhost:9000`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), transferTimeout)
		defer cancel()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		store, err := pushS3.open(ctx)
		if err != nil {
			return err
		}
		if err := store.Put(ctx, args[1], data); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s (%d bytes) to s3://%s/%s\n", args[0], len(data), pushS3.spec.Bucket, args[1])
		return nil
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull <name> <index-file>",
	Short: "Download an index file from S3",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), transferTimeout)
		defer cancel()

		store, err := pullS3.open(ctx)
		if err != nil {
			return err
		}
		data, err := store.Get(ctx, args[0])
		if err != nil {
			return err
		}
		if err := writeFileAtomic(args[1], data); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Downloaded s3://%s/%s (%d bytes) to %s\n", pullS3.spec.Bucket, args[0], len(data), args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pushCmd, pullCmd)

	pushS3.register(pushCmd.Flags())
	pullS3.register(pullCmd.Flags())
	for _, cmd := range []*cobra.Command{pushCmd, pullCmd} {
		cmd.Flags().DurationVar(&transferTimeout, "timeout", 10*time.Minute, "Maximum transfer time")
	}
}

// writeFileAtomic writes data next to path and renames it into place
func writeFileAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
