package core

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ParseStage picks a parser by file name and fills Headers and Rows.
type ParseStage struct {
	parsers *ParserSelector
}

// NewParseStage uses parsers, or DefaultParsers when nil.
func NewParseStage(parsers *ParserSelector) ParseStage {
	if parsers == nil {
		parsers = DefaultParsers()
	}
	return ParseStage{parsers: parsers}
}

func (ParseStage) Name() string { return "parse" }

func (s ParseStage) Execute(ctx context.Context, ic *ImportContext) error {
	parser, err := s.parsers.Select(ic.FileName)
	if err != nil {
		ic.Fail(0, ErrColumnFile, UnsupportedFormatMessage(err))
		return nil
	}

	if ic.File == nil {
		return nil
	}
	if _, err := ic.File.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind upload: %w", err)
	}

	parsed, err := parser.Parse(ctx, ic.File)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		ic.Fail(0, ErrColumnFile, err.Error())
		return nil
	}

	ic.Headers = parsed.Headers
	ic.Rows = parsed.Rows
	return nil
}
