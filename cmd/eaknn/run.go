package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/snow-ghost/eaknn/classifier"
	"github.com/snow-ghost/eaknn/evolution"
	"github.com/snow-ghost/eaknn/monitor"
	"github.com/snow-ghost/eaknn/pkg/config"
	"github.com/snow-ghost/eaknn/pkg/observability"
	"github.com/snow-ghost/eaknn/testkit"
	"github.com/spf13/cobra"
)

var (
	runStream      streamFlags
	runInput       string
	runRate        float64
	runReportEvery int64
	runMetricsAddr string
	runPrintConfig bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate the classifier test-then-train over a stream",
	Long: `Evaluate the classifier prequentially: every example is first
predicted, then used for training. The stream is read from --input (CSV
with a header row and the class in the last column) or generated.

Example:
  eaknn run --input 10200.csv --metrics-addr :9090
  eaknn run --stream threshold --noise-attrs 3 -n 5000`,
	RunE: runRun,
}

func init() {
	runStream.register(runCmd)
	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "CSV stream to read instead of a synthetic one")
	runCmd.Flags().Float64Var(&runRate, "rate", 0, "Examples per second, 0 for unpaced")
	runCmd.Flags().Int64Var(&runReportEvery, "report-every", 1000, "Log accuracy every n examples")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "Serve /metrics on this address (overrides config)")
	runCmd.Flags().BoolVar(&runPrintConfig, "print-config", false, "Print the effective configuration and exit")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if runMetricsAddr != "" {
		cfg.Metrics.Addr = runMetricsAddr
	}
	if runPrintConfig {
		data, err := config.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	obs, err := observability.NewManager(observability.Config{
		Logging: cfg.Logging,
		Tracing: cfg.Tracing,
	})
	if err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	defer obs.Shutdown(context.Background())
	logger := obs.GetLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, obs)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	monitors, err := openMonitors(cfg.Monitor)
	if err != nil {
		return err
	}
	defer monitors.close(logger.Warn)

	opts := obs.ClassifierOptions()
	if observer := monitors.observer(); observer != nil {
		opts = append(opts, classifier.WithObserver(observer))
	}
	c, err := classifier.New(cfg.Classifier, opts...)
	if err != nil {
		return err
	}

	name, src, closeSrc, err := openSource()
	if err != nil {
		return err
	}
	defer closeSrc()

	runner := testkit.NewRunner(append(obs.RunnerOptions(),
		testkit.WithRate(runRate),
		testkit.WithReportEvery(runReportEvery),
	)...)
	rep, err := runner.Run(ctx, name, c, src)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	printReport(cmd.OutOrStdout(), name, rep, c)
	return monitors.err()
}

func serveMetrics(addr string, obs *observability.Manager) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", obs.MetricsHandler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	logger := obs.GetLogger()
	go func() {
		logger.Info("Metrics endpoint listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics endpoint failed", "error", err)
		}
	}()
	return srv
}

func openSource() (string, testkit.Source, func(), error) {
	if runInput == "" {
		examples, err := runStream.examples()
		if err != nil {
			return "", nil, nil, err
		}
		return runStream.kind, testkit.FromExamples(examples), func() {}, nil
	}

	f, err := os.Open(runInput)
	if err != nil {
		return "", nil, nil, fmt.Errorf("open input: %w", err)
	}
	src, err := testkit.NewCSVSource(f)
	if err != nil {
		f.Close()
		return "", nil, nil, err
	}
	return runInput, src, func() { f.Close() }, nil
}

// monitorSet holds the generation sinks named in the configuration.
type monitorSet struct {
	best       *monitor.CSVWriter
	population *monitor.CSVWriter
	store      *monitor.SQLiteStore
}

func openMonitors(cfg config.Monitor) (*monitorSet, error) {
	m := &monitorSet{}
	var err error
	if cfg.BestCSV != "" {
		if m.best, err = openCSV(cfg.BestCSV, monitor.CSVBest); err != nil {
			return nil, err
		}
	}
	if cfg.PopulationCSV != "" {
		if m.population, err = openCSV(cfg.PopulationCSV, monitor.CSVPopulation); err != nil {
			m.close(nil)
			return nil, err
		}
	}
	if cfg.SQLite != "" {
		if m.store, err = monitor.NewSQLiteStore(cfg.SQLite); err != nil {
			m.close(nil)
			return nil, err
		}
	}
	return m, nil
}

func openCSV(path string, mode monitor.CSVMode) (*monitor.CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return monitor.NewCSVWriter(f, mode)
}

type sink interface {
	evolution.Observer
	Err() error
	Close() error
}

func (m *monitorSet) sinks() []sink {
	var list []sink
	if m.best != nil {
		list = append(list, m.best)
	}
	if m.population != nil {
		list = append(list, m.population)
	}
	if m.store != nil {
		list = append(list, m.store)
	}
	return list
}

func (m *monitorSet) observer() evolution.Observer {
	sinks := m.sinks()
	if len(sinks) == 0 {
		return nil
	}
	list := make([]evolution.Observer, len(sinks))
	for i, s := range sinks {
		list[i] = s
	}
	return monitor.Multi(list...)
}

func (m *monitorSet) err() error {
	for _, s := range m.sinks() {
		if err := s.Err(); err != nil {
			return fmt.Errorf("monitor: %w", err)
		}
	}
	return nil
}

func (m *monitorSet) close(warn func(string, ...interface{})) {
	for _, s := range m.sinks() {
		if err := s.Close(); err != nil && warn != nil {
			warn("Closing monitor failed", "error", err)
		}
	}
}

func printReport(w io.Writer, name string, rep testkit.Report, c *classifier.Classifier) {
	stats := c.Stats()
	fmt.Fprintf(w, "stream:      %s\n", name)
	fmt.Fprintf(w, "processed:   %d (rejected %d)\n", rep.Processed, rep.Rejected)
	fmt.Fprintf(w, "accuracy:    %.4f\n", rep.Accuracy)
	fmt.Fprintf(w, "refreshes:   %d\n", stats.Refreshes)
	fmt.Fprintf(w, "duration:    %s\n", rep.Duration.Round(time.Millisecond))
	if best, ok := c.Best(); ok {
		fmt.Fprintf(w, "weights:     %s (fitness %.4f)\n", best, stats.BestFitness)
	}
}
