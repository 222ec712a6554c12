package series

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"streamstats-go/pkg/stats"
)

// ReaderConfig controls how observations are parsed from text
type ReaderConfig struct {
	// Column selects a 1-based field of delimited rows. Zero means every
	// field on a line is an observation.
	Column int
	// SkipInvalid counts and logs unparseable fields instead of failing.
	SkipInvalid bool
	// MaxLineBytes bounds the scanner buffer.
	MaxLineBytes int
}

// DefaultReaderConfig returns sensible defaults
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{
		MaxLineBytes: 1024 * 1024,
	}
}

// ReadResult reports what a read pass consumed
type ReadResult struct {
	Lines    int64 `json:"lines"`
	Accepted int64 `json:"accepted"`
	Skipped  int64 `json:"skipped"`
}

// ParseError describes a field that could not be accumulated
type ParseError struct {
	Line  int64
	Field int
	Value string
	Err   error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d field %d (%q): %v", e.Line, e.Field, e.Value, e.Err)
}

// Unwrap returns the underlying error
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Reader feeds observations from text input into a StreamingStats
type Reader struct {
	config ReaderConfig
	logger *zap.Logger
}

// NewReader creates a new series reader
func NewReader(config ReaderConfig, logger *zap.Logger) *Reader {
	if config.MaxLineBytes <= 0 {
		config.MaxLineBytes = DefaultReaderConfig().MaxLineBytes
	}
	return &Reader{
		config: config,
		logger: logger,
	}
}

// ReadInto parses r and adds every observation to s in input order.
// Blank lines and lines starting with '#' are ignored, and a first data line
// that does not parse is treated as a header.
func (rd *Reader) ReadInto(ctx context.Context, r io.Reader, s *stats.StreamingStats) (ReadResult, error) {
	var result ReadResult

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), rd.config.MaxLineBytes)

	sawData := false
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Lines++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := splitFields(line)
		if rd.config.Column > 0 {
			if rd.config.Column > len(fields) {
				err := &ParseError{Line: result.Lines, Field: rd.config.Column, Err: fmt.Errorf("row has %d fields", len(fields))}
				if !sawData {
					sawData = true
					continue
				}
				if rd.config.SkipInvalid {
					rd.skip(&result, err)
					continue
				}
				return result, err
			}
			fields = fields[rd.config.Column-1 : rd.config.Column]
		}

		for i, field := range fields {
			fieldNo := i + 1
			if rd.config.Column > 0 {
				fieldNo = rd.config.Column
			}

			value, err := strconv.ParseFloat(field, 64)
			if err == nil {
				err = s.Update(value)
			}
			if err != nil {
				perr := &ParseError{Line: result.Lines, Field: fieldNo, Value: field, Err: err}
				if !sawData && i == 0 && isSyntaxError(err) {
					rd.logger.Debug("Skipping header line", zap.Int64("line", result.Lines))
					break
				}
				if rd.config.SkipInvalid {
					rd.skip(&result, perr)
					continue
				}
				return result, perr
			}
			result.Accepted++
		}
		sawData = true
	}

	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("failed to scan input: %w", err)
	}

	return result, nil
}

func (rd *Reader) skip(result *ReadResult, err error) {
	result.Skipped++
	rd.logger.Warn("Skipping invalid observation", zap.Error(err))
}

func isSyntaxError(err error) bool {
	var numErr *strconv.NumError
	return errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrSyntax)
}

// splitFields splits on commas, semicolons, tabs and spaces
func splitFields(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		switch r {
		case ',', ';', '\t', ' ':
			return true
		}
		return false
	})
}
