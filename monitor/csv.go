package monitor

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/snow-ghost/eaknn/core"
	"github.com/snow-ghost/eaknn/evolution"
)

// CSVMode selects what a CSVWriter records per generation.
type CSVMode string

const (
	// CSVBest writes the best genotype of each generation.
	CSVBest CSVMode = "best"
	// CSVPopulation writes every individual of each generation.
	CSVPopulation CSVMode = "population"
)

// CSVWriter records generations as CSV rows for offline plotting. The
// header is written with the first generation, once the dimension is known.
//
// Observers cannot fail a run, so the first write error is kept and
// reported by Err and Close.
type CSVWriter struct {
	mu      sync.Mutex
	mode    CSVMode
	w       *csv.Writer
	closer  io.Closer
	runs    runCounter
	started bool
	err     error
}

// NewCSVWriter writes to w. If w is an io.Closer, Close closes it.
func NewCSVWriter(w io.Writer, mode CSVMode) (*CSVWriter, error) {
	if mode != CSVBest && mode != CSVPopulation {
		return nil, fmt.Errorf("%w: unknown csv mode %q", core.ErrInvalidConfig, mode)
	}
	cw := &CSVWriter{mode: mode, w: csv.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		cw.closer = c
	}
	return cw, nil
}

func (c *CSVWriter) OnGeneration(_ context.Context, g evolution.Generation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}

	run := c.runs.observe(g)
	if !c.started {
		c.started = true
		c.write(c.header(len(g.Best.Weights)))
	}

	switch c.mode {
	case CSVBest:
		c.write(row(
			[]string{itoa(run), itoa(g.Number), ftoa(g.Best.Fitness)},
			g.Best.Weights,
		))
	case CSVPopulation:
		for i, ind := range g.Population {
			c.write(row(
				[]string{itoa(run), itoa(g.Number), itoa(i), ftoa(ind.Fitness)},
				ind.Weights,
			))
		}
	}

	c.w.Flush()
	if err := c.w.Error(); err != nil && c.err == nil {
		c.err = err
	}
}

func (c *CSVWriter) header(d int) []string {
	cols := []string{"run", "generation"}
	if c.mode == CSVPopulation {
		cols = append(cols, "index")
	}
	cols = append(cols, "fitness")
	for i := 0; i < d; i++ {
		cols = append(cols, "w"+itoa(i))
	}
	return cols
}

func (c *CSVWriter) write(record []string) {
	if err := c.w.Write(record); err != nil && c.err == nil {
		c.err = err
	}
}

// Err returns the first write error.
func (c *CSVWriter) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close flushes pending rows and closes the underlying writer.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.w.Flush()
	if err := c.w.Error(); err != nil && c.err == nil {
		c.err = err
	}
	if c.closer != nil {
		if err := c.closer.Close(); err != nil && c.err == nil {
			c.err = err
		}
	}
	return c.err
}

func row(prefix []string, w core.WeightVector) []string {
	out := make([]string, 0, len(prefix)+len(w))
	out = append(out, prefix...)
	for _, g := range w {
		out = append(out, ftoa(g))
	}
	return out
}

func itoa(i int) string { return strconv.Itoa(i) }

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
