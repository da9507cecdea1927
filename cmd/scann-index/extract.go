package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dd0wney/scann-ondevice/pkg/indexstore"
)

// defaultIndexFileName is the associated file name an on-device index is packed under
const defaultIndexFileName = "on_device_index.ldb"

var (
	extractOutput string
	extractList   bool
	packName      string
	packOutput    string
)

var extractCmd = &cobra.Command{
	Use:   "extract <model> [name]",
	Short: "Extract an associated file from a model",
	Long: `Extract an associated file, by default the on-device index, from a model
that carries its associated files as an appended zip archive.

Examples:
  scann-index extract embedder.tflite -o index.ldb
  scann-index extract embedder.tflite --list`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		model, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		if extractList {
			names, err := indexstore.ListAssociatedFiles(model)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		}

		name := defaultIndexFileName
		if len(args) == 2 {
			name = args[1]
		}
		data, err := indexstore.ExtractAssociatedFile(model, name)
		if err != nil {
			return err
		}
		output := extractOutput
		if output == "" {
			output = filepath.Base(name)
		}
		if err := writeFileAtomic(output, data); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Extracted %s (%d bytes) to %s\n", name, len(data), output)
		return nil
	},
}

var packCmd = &cobra.Command{
	Use:   "pack <model> <index-file>",
	Short: "Append an index to a model as an associated file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		model, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		index, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}

		packed, err := indexstore.AppendAssociatedFiles(model, map[string][]byte{packName: index})
		if err != nil {
			return err
		}
		output := packOutput
		if output == "" {
			output = args[0]
		}
		if err := writeFileAtomic(output, packed); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Packed %s into %s as %s\n", args[1], output, packName)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(extractCmd, packCmd)

	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "Output file (defaults to the file name)")
	extractCmd.Flags().BoolVar(&extractList, "list", false, "List associated files instead of extracting")
	packCmd.Flags().StringVar(&packName, "name", defaultIndexFileName, "Associated file name")
	packCmd.Flags().StringVarP(&packOutput, "output", "o", "", "Output model (defaults to overwriting the input)")
}
