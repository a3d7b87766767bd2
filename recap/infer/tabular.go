package infer

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/pithecene-io/recap/recap/convert"
	"github.com/pithecene-io/recap/recap/storage"
)

// DefaultSampleRows is the number of data rows a TabularProber reads per
// delimited file.
const DefaultSampleRows = 100

// TabularProber reads the header and a sample of rows from delimited files,
// and the footer of Parquet files.
type TabularProber struct {
	sampleRows int
}

// TabularOption configures a TabularProber.
type TabularOption func(*TabularProber)

// WithSampleRows sets how many data rows are sampled from CSV and TSV files.
// Values below one keep the default.
func WithSampleRows(n int) TabularOption {
	return func(p *TabularProber) {
		if n > 0 {
			p.sampleRows = n
		}
	}
}

// NewTabularProber creates a prober for CSV, TSV and Parquet files.
func NewTabularProber(opts ...TabularOption) *TabularProber {
	p := &TabularProber{sampleRows: DefaultSampleRows}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe returns the Table Schema of a delimited file or the Parquet schema
// of a Parquet file.
func (p *TabularProber) Probe(ctx context.Context, src *Source) (External, error) {
	switch src.Format {
	case FormatCSV:
		return p.probeDelimited(ctx, src, ',')
	case FormatTSV:
		return p.probeDelimited(ctx, src, '\t')
	case FormatParquet:
		return probeParquet(ctx, src)
	default:
		return External{}, fmt.Errorf("infer: %s is not a tabular format", src.Format)
	}
}

var _ Prober = (*TabularProber)(nil)

// -----------------------------------------------------------------------------
// Delimited files
// -----------------------------------------------------------------------------

// cellType is a bitset of the Table Schema types a cell parses as.
type cellType uint8

const (
	cellBoolean cellType = 1 << iota
	cellInteger
	cellNumber
	cellDate
	cellDatetime
	cellTime

	cellAny = cellBoolean | cellInteger | cellNumber | cellDate | cellDatetime | cellTime
)

// Most specific first. A column whose cells share none of these is a string.
var cellPriority = []struct {
	bit  cellType
	name string
}{
	{cellBoolean, convert.TableBoolean},
	{cellInteger, convert.TableInteger},
	{cellNumber, convert.TableNumber},
	{cellDate, convert.TableDate},
	{cellDatetime, convert.TableDatetime},
	{cellTime, convert.TableTime},
}

var (
	datetimeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"}
	timeLayouts     = []string{"15:04:05", "15:04:05.999999999", "15:04:05Z07:00"}
)

func classifyCell(s string) cellType {
	var t cellType
	switch s {
	case "true", "True", "TRUE", "false", "False", "FALSE":
		t |= cellBoolean
	}
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		t |= cellInteger | cellNumber
	} else if _, err := strconv.ParseFloat(s, 64); err == nil {
		t |= cellNumber
	}
	if _, err := time.Parse(time.DateOnly, s); err == nil {
		t |= cellDate
	}
	if parsesAny(datetimeLayouts, s) {
		t |= cellDatetime
	}
	if parsesAny(timeLayouts, s) {
		t |= cellTime
	}
	return t
}

func parsesAny(layouts []string, s string) bool {
	for _, layout := range layouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

type column struct {
	name  string
	types cellType
	seen  bool
}

func (c *column) observe(cell string) {
	if cell == "" {
		return
	}
	c.types &= classifyCell(cell)
	c.seen = true
}

func (c *column) tableType() string {
	if !c.seen {
		return convert.TableString
	}
	for _, p := range cellPriority {
		if c.types&p.bit != 0 {
			return p.name
		}
	}
	return convert.TableString
}

func (p *TabularProber) probeDelimited(ctx context.Context, src *Source, comma rune) (External, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return External{}, err
	}
	defer func() { _ = rc.Close() }()

	r := csv.NewReader(rc)
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = comma == '\t'
	r.ReuseRecord = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return External{Dialect: convert.DialectTableSchema, Table: &convert.TableSchema{}}, nil
	}
	if err != nil {
		return External{}, fmt.Errorf("%w: %s: header: %w", ErrInvalidFormat, src.URL, err)
	}
	columns := headerColumns(header)

	for n := 0; n < p.sampleRows; n++ {
		if err := ctx.Err(); err != nil {
			return External{}, err
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return External{}, fmt.Errorf("%w: %s: %w", ErrInvalidFormat, src.URL, err)
		}
		for i := range columns {
			if i < len(record) {
				columns[i].observe(record[i])
			}
		}
	}

	schema := &convert.TableSchema{Fields: make([]convert.TableField, len(columns))}
	for i, c := range columns {
		schema.Fields[i] = convert.TableField{Name: c.name, Type: c.tableType()}
	}
	return External{Dialect: convert.DialectTableSchema, Table: schema}, nil
}

// headerColumns names one column per header cell. Blank names become
// fieldN and repeated names get a _N suffix, N being the 1-based position.
func headerColumns(header []string) []column {
	columns := make([]column, len(header))
	used := make(map[string]bool, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("field%d", i+1)
		}
		for base, k := name, i+1; used[name]; k++ {
			name = fmt.Sprintf("%s_%d", base, k)
		}
		used[name] = true
		columns[i] = column{name: name, types: cellAny}
	}
	return columns
}

// -----------------------------------------------------------------------------
// Parquet
// -----------------------------------------------------------------------------

func probeParquet(ctx context.Context, src *Source) (External, error) {
	var (
		ra   io.ReaderAt
		size int64
	)
	if src.compressed() {
		rc, err := src.Open(ctx)
		if err != nil {
			return External{}, err
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return External{}, fmt.Errorf("%w: %s: %w", ErrInvalidFormat, src.URL, err)
		}
		ra, size = bytes.NewReader(data), int64(len(data))
	} else {
		sra, err := storage.OpenReaderAt(ctx, src.Storage, src.Path)
		if err != nil {
			return External{}, err
		}
		defer func() { _ = sra.Close() }()
		ra, size = sra, sra.Size()
	}

	if size == 0 {
		return External{}, fmt.Errorf("%w: %s: empty parquet file", ErrInvalidFormat, src.URL)
	}
	file, err := parquet.OpenFile(ra, size, parquet.SkipPageIndex(true), parquet.SkipBloomFilters(true))
	if err != nil {
		return External{}, fmt.Errorf("%w: %s: %w", ErrInvalidFormat, src.URL, err)
	}
	schema, err := convert.ParquetFromSchema(file.Schema())
	if err != nil {
		return External{}, err
	}
	return External{Dialect: convert.DialectParquet, Parquet: schema}, nil
}
