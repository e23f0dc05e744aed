package core

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrUnsupportedFormat is wrapped when no parser handles a file's extension.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Row is one data line. Fields are keyed by normalized header name.
// Number is 1-based and counts the header as row 1.
type Row struct {
	Number int
	Fields map[string]string
}

// Get returns the trimmed value of column, or "" if the column is absent.
func (r Row) Get(column string) string {
	return r.Fields[NormalizeKey(column)]
}

// Parsed is the output of a RowParser.
type Parsed struct {
	Headers []string
	Rows    []Row
}

// RowParser turns a byte stream into rows. A well-formed file without data
// rows yields an empty Rows slice, not an error.
type RowParser interface {
	// Extension is the lowercase file suffix handled, including the dot.
	Extension() string
	Parse(ctx context.Context, r io.Reader) (Parsed, error)
}

// ParserSelector picks a RowParser by file extension.
type ParserSelector struct {
	mu      sync.RWMutex
	parsers map[string]RowParser
}

// NewParserSelector creates a selector with the given parsers registered.
func NewParserSelector(parsers ...RowParser) *ParserSelector {
	s := &ParserSelector{parsers: make(map[string]RowParser)}
	for _, p := range parsers {
		s.Register(p)
	}
	return s
}

// DefaultParsers returns the CSV and XLSX parsers.
func DefaultParsers() *ParserSelector {
	return NewParserSelector(CSVParser{}, XLSXParser{})
}

// Register adds a parser. Panics if the extension is already registered.
func (s *ParserSelector) Register(p RowParser) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ext := strings.ToLower(p.Extension())
	if _, exists := s.parsers[ext]; exists {
		panic(fmt.Sprintf("parser already registered: %s", ext))
	}
	s.parsers[ext] = p
}

// Extensions returns the registered extensions, sorted.
func (s *ParserSelector) Extensions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exts := make([]string, 0, len(s.parsers))
	for ext := range s.parsers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Select returns the parser for fileName's extension. The error message is
// user-facing and names the supported formats.
func (s *ParserSelector) Select(fileName string) (RowParser, error) {
	ext := strings.ToLower(filepath.Ext(fileName))

	s.mu.RLock()
	p, ok := s.parsers[ext]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: File format '%s' is not supported. Supported formats: %s",
			ErrUnsupportedFormat, ext, strings.Join(s.Extensions(), ", "))
	}
	return p, nil
}

// UnsupportedFormatMessage strips the sentinel prefix from a Select error.
func UnsupportedFormatMessage(err error) string {
	return strings.TrimPrefix(err.Error(), ErrUnsupportedFormat.Error()+": ")
}

// parseCheckInterval is how many rows are read between context checks.
const parseCheckInterval = 1000

// buildRow maps a raw record onto header. Missing cells read as "".
func buildRow(header []string, idx HeaderIndex, record []string, line int) Row {
	fields := make(map[string]string, len(idx))
	for _, name := range header {
		key := NormalizeKey(name)
		pos := idx[key]
		value := ""
		if pos < len(record) {
			value = strings.TrimSpace(record[pos])
		}
		fields[key] = value
	}
	return Row{Number: line, Fields: fields}
}

// cleanHeader normalizes header cells for display and lookup.
func cleanHeader(record []string) []string {
	header := make([]string, len(record))
	for i, h := range record {
		header[i] = CleanCell(h)
	}
	return header
}

// isBlankRecord reports a line that holds nothing but whitespace.
func isBlankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return len(record) <= 1
}

// CSVParser parses comma-separated files with a header row.
type CSVParser struct{}

func (CSVParser) Extension() string { return ".csv" }

// Parse reads the header and every data line. Blank lines are skipped but
// still advance the row number.
func (CSVParser) Parse(ctx context.Context, r io.Reader) (Parsed, error) {
	reader := csv.NewReader(WrapForParsing(r))
	reader.FieldsPerRecord = -1 // Allow variable fields
	reader.LazyQuotes = true

	var out Parsed

	record, err := reader.Read()
	if err == io.EOF {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("invalid csv header: %w", err)
	}
	if isBlankRecord(record) {
		return out, nil
	}
	out.Headers = cleanHeader(record)
	idx := MakeHeaderIndex(out.Headers)

	for count := 0; ; count++ {
		if count%parseCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return Parsed{}, err
			}
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Parsed{}, fmt.Errorf("invalid csv: %w", err)
		}
		if isBlankRecord(record) {
			continue
		}

		line, _ := reader.FieldPos(0)
		out.Rows = append(out.Rows, buildRow(out.Headers, idx, record, line))
	}

	return out, nil
}
