// Package records parses the historical prescription CSV behind the Explore view and computes its
// summary statistics.
package records

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/araddon/dateparse"
	"golang.org/x/text/encoding/charmap"

	"github.com/Yafet01/drug-prescription-app/logging"
)

// Record is one historical prescription
type Record struct {
	PatientName string    `json:"patient_name"`
	Medicine    string    `json:"medicine"`
	Disease     string    `json:"disease"`
	Variety     string    `json:"variety"`
	Quantity    float64   `json:"quantity"`
	Date        time.Time `json:"date"`
	Season      string    `json:"season"`
}

// ParseStats counts what happened to the data rows of a file
type ParseStats struct {
	Lines                 int `json:"lines"`
	Parsed                int `json:"parsed"`
	SkippedEmptyLines     int `json:"skipped_empty_lines"`
	SkippedMissingColumns int `json:"skipped_missing_columns"`
	SkippedFormatErrors   int `json:"skipped_format_errors"`
}

// Skipped returns the total number of rejected rows
func (s ParseStats) Skipped() int {
	return s.SkippedEmptyLines + s.SkippedMissingColumns + s.SkippedFormatErrors
}

// ErrMissingColumn is returned when the header lacks a required column
var ErrMissingColumn = errors.New("missing required column")

type column int

const (
	colPatient column = iota
	colMedicine
	colDisease
	colVariety
	colQuantity
	colDate
	colSeason
	columnCount
)

// headerAliases maps normalized header names to columns
var headerAliases = map[string]column{
	"patient name":       colPatient,
	"patient":            colPatient,
	"medicine":           colMedicine,
	"disease":            colDisease,
	"variety":            colVariety,
	"quantity(packets)":  colQuantity,
	"quantity (packets)": colQuantity,
	"quantity":           colQuantity,
	"date":               colDate,
	"season":             colSeason,
}

// Medicine and Quantity are required; the rest may be absent
var requiredColumns = []struct {
	col  column
	name string
}{
	{colMedicine, "Medicine"},
	{colQuantity, "Quantity(Packets)"},
}

// ParseFile reads and parses the CSV at path
func ParseFile(path string) ([]Record, ParseStats, error) {
	cleanPath := filepath.Clean(path)
	content, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, ParseStats{}, fmt.Errorf("failed to read records file %s: %w", cleanPath, err)
	}

	records, stats, err := Parse(bytes.NewReader(content))
	if err != nil {
		return nil, stats, fmt.Errorf("failed to parse %s: %w", cleanPath, err)
	}
	return records, stats, nil
}

// Parse reads a records CSV. Input that is not valid UTF-8 is decoded as ISO-8859-1.
// Rows that cannot be parsed are skipped and counted in the returned stats.
func Parse(r io.Reader) ([]Record, ParseStats, error) {
	var stats ParseStats

	// Exports come in both encodings, so read the content first
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to read records: %w", err)
	}

	var reader io.Reader
	if utf8.Valid(content) {
		reader = bytes.NewReader(content)
	} else {
		reader = charmap.ISO8859_1.NewDecoder().Reader(bytes.NewReader(content))
	}

	cr := csv.NewReader(reader)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return []Record{}, stats, nil
	}
	if err != nil {
		return nil, stats, fmt.Errorf("failed to read header: %w", err)
	}

	index, err := mapHeader(header)
	if err != nil {
		return nil, stats, err
	}

	var records []Record
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		stats.Lines++

		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				stats.SkippedFormatErrors++
				continue
			}
			return nil, stats, fmt.Errorf("failed to read row %d: %w", stats.Lines, err)
		}

		if isEmptyRow(fields) {
			stats.SkippedEmptyLines++
			continue
		}

		record, ok, formatErr := parseRow(fields, index)
		if !ok {
			stats.SkippedMissingColumns++
			continue
		}
		if formatErr {
			stats.SkippedFormatErrors++
			continue
		}

		records = append(records, record)
		stats.Parsed++
	}

	if stats.Skipped() > 0 {
		logging.Debug("Skipped historical record rows",
			"empty", stats.SkippedEmptyLines,
			"missing_columns", stats.SkippedMissingColumns,
			"format_errors", stats.SkippedFormatErrors)
	}

	if records == nil {
		records = []Record{}
	}
	return records, stats, nil
}

// mapHeader returns the field position of each column, -1 when absent
func mapHeader(header []string) ([columnCount]int, error) {
	var index [columnCount]int
	for i := range index {
		index[i] = -1
	}

	for pos, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if col, ok := headerAliases[key]; ok && index[col] == -1 {
			index[col] = pos
		}
	}

	for _, req := range requiredColumns {
		if index[req.col] == -1 {
			return index, fmt.Errorf("%w: %s", ErrMissingColumn, req.name)
		}
	}
	return index, nil
}

// parseRow returns ok=false when a required field is missing and formatErr=true when a present
// field cannot be parsed
func parseRow(fields []string, index [columnCount]int) (record Record, ok bool, formatErr bool) {
	field := func(c column) (string, bool) {
		pos := index[c]
		if pos < 0 || pos >= len(fields) {
			return "", false
		}
		return strings.TrimSpace(fields[pos]), true
	}

	medicine, present := field(colMedicine)
	if !present || medicine == "" {
		return Record{}, false, false
	}
	rawQuantity, present := field(colQuantity)
	if !present || rawQuantity == "" {
		return Record{}, false, false
	}

	quantity, err := strconv.ParseFloat(rawQuantity, 64)
	if err != nil || quantity < 0 || math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		return Record{}, true, true
	}

	record = Record{
		Medicine: medicine,
		Quantity: quantity,
	}
	record.PatientName, _ = field(colPatient)
	record.Disease, _ = field(colDisease)
	record.Variety, _ = field(colVariety)
	record.Season, _ = field(colSeason)

	if rawDate, _ := field(colDate); rawDate != "" {
		date, err := dateparse.ParseIn(rawDate, time.UTC)
		if err != nil {
			return Record{}, true, true
		}
		record.Date = date
	}

	return record, true, false
}

func isEmptyRow(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// FileLoader loads records from a CSV file on disk
type FileLoader struct {
	path string
}

func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: path}
}

// Load parses the file; ctx is only checked before reading
func (l *FileLoader) Load(ctx context.Context) ([]Record, ParseStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, ParseStats{}, err
	}
	return ParseFile(l.path)
}
