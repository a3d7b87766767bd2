package infer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/pithecene-io/recap/recap/convert"
)

// DefaultMaxRecordSize caps one newline-delimited record.
const DefaultMaxRecordSize = 10 << 20

// jsonAPI decodes numbers as json.Number so integers stay distinguishable
// from floats.
var jsonAPI = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// StreamingAdapter folds newline-delimited JSON records into a JSON Schema.
//
// Blank lines are skipped. A .json file whose first record does not parse
// as one line is read again as a single document, so pretty-printed files
// work within the same size cap.
type StreamingAdapter struct {
	maxRecordSize int
}

// StreamingOption configures a StreamingAdapter.
type StreamingOption func(*StreamingAdapter)

// WithMaxRecordSize sets the largest accepted record in bytes.
// Values below one keep the default.
func WithMaxRecordSize(n int) StreamingOption {
	return func(a *StreamingAdapter) {
		if n > 0 {
			a.maxRecordSize = n
		}
	}
}

// NewStreamingAdapter creates an adapter for JSON, NDJSON and JSON Lines.
func NewStreamingAdapter(opts ...StreamingOption) *StreamingAdapter {
	a := &StreamingAdapter{maxRecordSize: DefaultMaxRecordSize}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// recordError reports a record that failed to decode.
type recordError struct {
	record int
	line   int
	err    error
}

func (e *recordError) Error() string {
	return fmt.Sprintf("line %d: %v", e.line, e.err)
}

func (e *recordError) Unwrap() error { return e.err }

// Infer reads every record of src and returns the JSON Schema accepting all
// of them. Empty input yields the empty schema.
func (a *StreamingAdapter) Infer(ctx context.Context, src *Source) (External, error) {
	b := NewBuilder()
	err := a.foldLines(ctx, src, b)

	var re *recordError
	if src.Format == FormatJSON && errors.As(err, &re) && re.record == 1 {
		b = NewBuilder()
		err = a.foldDocument(ctx, src, b)
	}
	if err != nil {
		if errors.As(err, &re) {
			return External{}, fmt.Errorf("%w: %s: %w", ErrInvalidFormat, src.URL, err)
		}
		return External{}, err
	}
	return External{Dialect: convert.DialectJSONSchema, JSON: b.Schema()}, nil
}

func (a *StreamingAdapter) foldLines(ctx context.Context, src *Source, b *Builder) error {
	rc, err := src.Open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, min(64*1024, a.maxRecordSize)), a.maxRecordSize)

	var line, record int
	for scanner.Scan() {
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		record++

		v, err := decodeRecord(data)
		if err != nil {
			return &recordError{record: record, line: line, err: err}
		}
		if err := b.Add(v); err != nil {
			return &recordError{record: record, line: line, err: err}
		}
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return &recordError{
				record: record + 1,
				line:   line + 1,
				err:    fmt.Errorf("record exceeds %d bytes", a.maxRecordSize),
			}
		}
		return err
	}
	return nil
}

func (a *StreamingAdapter) foldDocument(ctx context.Context, src *Source, b *Builder) error {
	rc, err := src.Open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(io.LimitReader(rc, int64(a.maxRecordSize)+1))
	if err != nil {
		return err
	}
	if len(data) > a.maxRecordSize {
		return &recordError{record: 1, line: 1, err: fmt.Errorf("document exceeds %d bytes", a.maxRecordSize)}
	}

	v, err := decodeRecord(data)
	if err != nil {
		return &recordError{record: 1, line: 1, err: err}
	}
	return b.Add(v)
}

// decodeRecord decodes one JSON value. jsoniter accepts a value truncated at
// the end of its buffer, so the bytes are validated first.
func decodeRecord(data []byte) (any, error) {
	if !json.Valid(data) {
		var v any
		return nil, json.Unmarshal(data, &v)
	}
	var v any
	if err := jsonAPI.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
