package facts

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

var header = []string{"Company", "Date", "Metric", "Value", "Form"}

// ReadCSV loads records in long format: Company,Date,Metric,Value[,Form]
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	t := NewTable()
	line := 0
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		line++
		if line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), header[0]) {
			continue
		}
		if len(row) < 4 {
			return nil, fmt.Errorf("line %d: expected at least 4 fields, got %d", line, len(row))
		}
		date, err := time.Parse(DateLayout, strings.TrimSpace(row[1]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid date %q: %w", line, row[1], err)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(row[3]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid value %q: %w", line, row[3], err)
		}
		rec := Record{Company: row[0], Date: date, Metric: row[2], Value: value}
		if len(row) > 4 {
			rec.Form = strings.TrimSpace(row[4])
		}
		t.Add(rec)
	}
	return t, nil
}

// LoadFile reads a CSV fact file from disk
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// WriteCSV writes all records sorted by company, date and metric
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range t.Records() {
		row := []string{
			r.Company,
			r.Date.Format(DateLayout),
			r.Metric,
			strconv.FormatFloat(r.Value, 'f', -1, 64),
			r.Form,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveFile writes the table to path as CSV
func (t *Table) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := t.WriteCSV(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return f.Close()
}
