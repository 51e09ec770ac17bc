package main

import (
	"fmt"
	"io"
	"os"

	"github.com/snow-ghost/eaknn/core"
	"github.com/snow-ghost/eaknn/testkit"
	"github.com/spf13/cobra"
)

var (
	generateStream streamFlags
	generateOutput string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a synthetic stream as CSV",
	Long: `Write a synthetic labeled stream as CSV with a header x1..xd,y.

Streams:
  clusters   class 0 around (0.1, 0.1), class 1 around (0.9, 0.9)
  threshold  two uniform attributes, class 0 when x1 <= 0.5

Example:
  eaknn generate --stream threshold -n 10200 -o 10200.csv`,
	RunE: runGenerate,
}

func init() {
	generateStream.register(generateCmd)
	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "-", "Output file, - for stdout")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	examples, err := generateStream.examples()
	if err != nil {
		return err
	}

	if generateOutput == "-" {
		return writeStream(cmd.OutOrStdout(), examples)
	}

	f, err := os.Create(generateOutput)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := writeStream(f, examples); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeStream(w io.Writer, examples []core.Example) error {
	if err := testkit.WriteCSV(w, examples); err != nil {
		return fmt.Errorf("write stream: %w", err)
	}
	return nil
}
