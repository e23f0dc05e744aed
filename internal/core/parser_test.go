package core

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParserSelector(t *testing.T) {
	s := DefaultParsers()

	assert.Equal(t, []string{".csv", ".xlsx"}, s.Extensions())

	p, err := s.Select("Orders.CSV")
	require.NoError(t, err)
	assert.Equal(t, ".csv", p.Extension())

	p, err = s.Select("report.final.xlsx")
	require.NoError(t, err)
	assert.Equal(t, ".xlsx", p.Extension())

	_, err = s.Select("orders.txt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
	assert.Equal(t, "File format '.txt' is not supported. Supported formats: .csv, .xlsx", UnsupportedFormatMessage(err))

	_, err = s.Select("noextension")
	require.Error(t, err)
	assert.Equal(t, "File format '' is not supported. Supported formats: .csv, .xlsx", UnsupportedFormatMessage(err))
}

func TestParserSelector_DuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		NewParserSelector(CSVParser{}, CSVParser{})
	})
}

func TestCSVParser(t *testing.T) {
	input := "\xEF\xBB\xBFOrderDate, customerEmail ,Quantity\n" +
		"2024-03-15 10:30, ada@example.com ,2\n" +
		"\n" +
		"2024-03-16,bob@example.com\n" +
		"2024-03-17,cy@example.com,1,extra\n"

	parsed, err := CSVParser{}.Parse(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"OrderDate", "customerEmail", "Quantity"}, parsed.Headers)
	require.Len(t, parsed.Rows, 3)

	first := parsed.Rows[0]
	assert.Equal(t, 2, first.Number)
	assert.Equal(t, "2024-03-15 10:30", first.Get("orderdate"))
	assert.Equal(t, "ada@example.com", first.Get("CustomerEmail"))
	assert.Equal(t, "2", first.Get("QUANTITY"))

	second := parsed.Rows[1]
	assert.Equal(t, 4, second.Number, "blank line still advances the row number")
	assert.Equal(t, "", second.Get("Quantity"), "missing cell reads as empty")
	assert.Equal(t, "", second.Get("NotAColumn"))

	assert.Equal(t, 5, parsed.Rows[2].Number)
	assert.Equal(t, "1", parsed.Rows[2].Get("Quantity"))
}

func TestCSVParser_Empty(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no bytes", ""},
		{"header only", "OrderDate,Status\n"},
		{"whitespace line", "   \n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := CSVParser{}.Parse(context.Background(), strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Empty(t, parsed.Rows)
		})
	}
}

func TestCSVParser_StrayQuote(t *testing.T) {
	input := "OrderDate,ProductName\n2024-03-15,27\" Monitor\n"
	parsed, err := CSVParser{}.Parse(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, parsed.Rows, 1)
	assert.Equal(t, `27" Monitor`, parsed.Rows[0].Get("ProductName"))
}

func TestCSVParser_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CSVParser{}.Parse(ctx, strings.NewReader("OrderDate\n2024-01-01\n"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestXLSXParser(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"OrderDate", "CustomerEmail", "Quantity"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"2024-03-15 10:30", " ada@example.com ", "2"}))
	require.NoError(t, f.SetSheetRow(sheet, "A4", &[]any{"2024-03-16", "bob@example.com"}))

	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	parsed, err := XLSXParser{}.Parse(context.Background(), &buf)
	require.NoError(t, err)

	assert.Equal(t, []string{"OrderDate", "CustomerEmail", "Quantity"}, parsed.Headers)
	require.Len(t, parsed.Rows, 2)
	assert.Equal(t, 2, parsed.Rows[0].Number)
	assert.Equal(t, "ada@example.com", parsed.Rows[0].Get("customeremail"))
	assert.Equal(t, 4, parsed.Rows[1].Number)
	assert.Equal(t, "", parsed.Rows[1].Get("Quantity"))
}

func TestXLSXParser_NotAWorkbook(t *testing.T) {
	_, err := XLSXParser{}.Parse(context.Background(), strings.NewReader("OrderDate,Status\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid xlsx")
}
