package main

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/snow-ghost/eaknn/core"
	"github.com/snow-ghost/eaknn/testkit"
	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "eaknn",
	Short: "Stream classifier with evolved k-NN attribute weights",
	Long: `eaknn classifies a labeled data stream with a weighted k-nearest
neighbour model. Attribute weights are searched by a genetic algorithm over
a sliding window and searched again once enough new examples arrived.

Commands:
  run       Evaluate the classifier test-then-train over a stream
  generate  Write a synthetic stream as CSV

Configuration is read from --config (or $EAKNN_CONFIG) and overridden by
EAKNN_* environment variables, e.g. EAKNN_CLASSIFIER_K=7.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: $EAKNN_CONFIG)")
}

// streamFlags select a synthetic stream.
type streamFlags struct {
	kind       string
	n          int
	noise      float64
	noiseAttrs int
	seed       int64
}

func (f *streamFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.kind, "stream", "clusters", "Synthetic stream (clusters, threshold)")
	cmd.Flags().IntVarP(&f.n, "n", "n", 10000, "Number of synthetic examples")
	cmd.Flags().Float64Var(&f.noise, "noise", 0.05, "Standard deviation of cluster noise")
	cmd.Flags().IntVar(&f.noiseAttrs, "noise-attrs", 0, "Irrelevant uniform attributes appended to each example")
	cmd.Flags().Int64Var(&f.seed, "stream-seed", 1, "Seed of the synthetic stream")
}

func (f *streamFlags) examples() ([]core.Example, error) {
	if f.n < 0 {
		return nil, fmt.Errorf("negative example count %d", f.n)
	}
	rng := rand.New(rand.NewSource(f.seed))

	var examples []core.Example
	switch f.kind {
	case "clusters":
		examples = testkit.TwoClusters(rng, f.n, f.noise)
	case "threshold":
		examples = testkit.Threshold(rng, f.n)
	default:
		return nil, fmt.Errorf("unknown stream %q (want clusters or threshold)", f.kind)
	}
	if f.noiseAttrs > 0 {
		examples = testkit.PadNoise(rng, examples, f.noiseAttrs)
	}
	return examples, nil
}
