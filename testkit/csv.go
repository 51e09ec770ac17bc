package testkit

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/snow-ghost/eaknn/core"
)

// WriteCSV writes examples with a header x1..xd,y and the class last.
func WriteCSV(w io.Writer, examples []core.Example) error {
	cw := csv.NewWriter(w)
	if len(examples) > 0 {
		header := make([]string, 0, examples[0].Dim()+1)
		for i := 1; i <= examples[0].Dim(); i++ {
			header = append(header, "x"+strconv.Itoa(i))
		}
		if err := cw.Write(append(header, "y")); err != nil {
			return err
		}
	}
	for _, e := range examples {
		record := make([]string, 0, e.Dim()+1)
		for _, v := range e.Attributes {
			record = append(record, strconv.FormatFloat(v, 'f', -1, 64))
		}
		if err := cw.Write(append(record, strconv.Itoa(e.Class))); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVSource reads a stream written by WriteCSV, or any CSV with a header
// row, numeric attributes and an integer class in the last column.
type CSVSource struct {
	r      *csv.Reader
	header []string
	line   int
}

func NewCSVSource(r io.Reader) (*CSVSource, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv stream: missing header")
		}
		return nil, fmt.Errorf("csv stream: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("csv stream: need at least one attribute and a class, got %d columns", len(header))
	}
	return &CSVSource{r: cr, header: header, line: 1}, nil
}

// Header returns the column names.
func (s *CSVSource) Header() []string { return s.header }

func (s *CSVSource) Next() (core.Example, error) {
	record, err := s.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return core.Example{}, io.EOF
		}
		return core.Example{}, fmt.Errorf("csv stream: %w", err)
	}
	s.line++

	last := len(record) - 1
	attrs := make([]float64, last)
	for i := 0; i < last; i++ {
		attrs[i], err = strconv.ParseFloat(record[i], 64)
		if err != nil {
			return core.Example{}, fmt.Errorf("csv stream line %d column %s: %w", s.line, s.header[i], err)
		}
	}
	if err := core.CheckFinite(attrs); err != nil {
		return core.Example{}, fmt.Errorf("csv stream line %d: %w", s.line, err)
	}
	class, err := strconv.Atoi(record[last])
	if err != nil {
		return core.Example{}, fmt.Errorf("csv stream line %d class: %w", s.line, err)
	}
	return core.Example{Attributes: attrs, Class: class}, nil
}
