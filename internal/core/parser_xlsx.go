package core

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// XLSXParser reads the first worksheet of an Excel workbook.
type XLSXParser struct{}

func (XLSXParser) Extension() string { return ".xlsx" }

// Parse treats the first non-empty row as the header. Rows with no content
// are skipped; Number is the worksheet row number.
func (XLSXParser) Parse(ctx context.Context, r io.Reader) (Parsed, error) {
	var out Parsed

	f, err := excelize.OpenReader(r)
	if err != nil {
		return out, fmt.Errorf("invalid xlsx workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return out, errors.New("invalid xlsx workbook: no worksheets")
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return out, fmt.Errorf("read worksheet %q: %w", sheets[0], err)
	}

	var idx HeaderIndex
	for i, record := range records {
		if i%parseCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return Parsed{}, err
			}
		}
		if isEmptyRow(record) {
			continue
		}
		if out.Headers == nil {
			out.Headers = cleanHeader(record)
			idx = MakeHeaderIndex(out.Headers)
			continue
		}
		out.Rows = append(out.Rows, buildRow(out.Headers, idx, record, i+1))
	}

	return out, nil
}

func isEmptyRow(record []string) bool {
	for _, cell := range record {
		if cell != "" {
			return false
		}
	}
	return true
}
