package affiliates

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"siges/internal/util"
)

const DefaultDelimiter = ';'

type Options struct {
	// Delimiter separates fields. Zero means DefaultDelimiter.
	Delimiter  rune
	Vocabulary *Vocabulary
}

// Result is the outcome of one ingestion run. Records is only meaningful
// when Errors is empty.
type Result struct {
	Records  []AffiliateRecord
	Errors   []ValidationError
	RowsRead int
	Skipped  int
}

func (r Result) OK() bool {
	return len(r.Errors) == 0
}

func (r Result) Messages() []string {
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, e.Message)
	}
	return out
}

// RejectedLines returns the distinct lines carrying at least one error, in
// the order they were reported.
func (r Result) RejectedLines() []int {
	seen := map[int]struct{}{}
	var out []int
	for _, e := range r.Errors {
		if _, ok := seen[e.Line]; ok {
			continue
		}
		seen[e.Line] = struct{}{}
		out = append(out, e.Line)
	}
	return out
}

// Err folds the collected errors into one error value, or nil on success.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return &IngestError{Errors: r.Errors}
}

type IngestError struct {
	Errors []ValidationError
}

func (e *IngestError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ve := range e.Errors {
		msgs = append(msgs, ve.Message)
	}
	return strings.Join(msgs, "\n")
}

var errRowPanicked = errors.New("error processing row")

// Ingest streams the CSV in r, validating and mapping one row at a time.
// Row validation errors are collected and parsing continues; a missing
// required column or an unreadable row stops the run immediately.
func Ingest(ctx context.Context, r io.Reader, regime RegimeContext, opts Options) Result {
	delimiter := opts.Delimiter
	if delimiter == 0 {
		delimiter = DefaultDelimiter
	}
	validator := NewValidator(opts.Vocabulary)

	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	var res Result
	line := 1

	header, err := cr.Read()
	if err != nil && !errors.Is(err, io.EOF) {
		res.Errors = append(res.Errors, ValidationError{Line: line, Message: fmt.Sprintf("error reading header: %v", err)})
		return res
	}

	colIx := map[Column]int{}
	for i, h := range header {
		col, ok := ParseColumn(h)
		if !ok || !regime.AllowedColumns.Contains(col) {
			continue
		}
		if _, dup := colIx[col]; !dup {
			colIx[col] = i
		}
	}

	var missing []string
	for _, col := range regime.RequiredColumns.Sorted() {
		if _, ok := colIx[col]; !ok {
			missing = append(missing, string(col))
		}
	}
	if len(missing) > 0 {
		res.Errors = append(res.Errors, ValidationError{
			Line:    line,
			Message: "Missing required columns: " + strings.Join(missing, ", "),
		})
		return res
	}

	for {
		if err := ctx.Err(); err != nil {
			res.Errors = append(res.Errors, ValidationError{Line: line, Message: fmt.Sprintf("ingestion cancelled: %v", err)})
			return res
		}

		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			res.Errors = append(res.Errors, rowFailure(line))
			return res
		}
		res.RowsRead++

		record, rowErrs, skipped, err := processRow(validator, regime, colIx, rec, line)
		if err != nil {
			res.Errors = append(res.Errors, rowFailure(line))
			return res
		}
		switch {
		case skipped:
			res.Skipped++
		case len(rowErrs) > 0:
			res.Errors = append(res.Errors, rowErrs...)
		default:
			res.Records = append(res.Records, record)
		}
	}

	return res
}

func processRow(validator *Validator, regime RegimeContext, colIx map[Column]int, rec []string, line int) (record AffiliateRecord, errs []ValidationError, skipped bool, err error) {
	defer func() {
		if recover() != nil {
			err = errRowPanicked
		}
	}()

	row := project(rec, colIx)
	if isPaddingRow(row, regime.RequiredColumns) {
		return AffiliateRecord{}, nil, true, nil
	}

	if errs = validator.ValidateRow(row, regime.RequiredColumns, line); len(errs) > 0 {
		return AffiliateRecord{}, errs, false, nil
	}

	record, err = MapRow(row)
	return record, nil, false, err
}

// project keeps only the mapped columns; extra trailing cells are ignored.
func project(rec []string, colIx map[Column]int) RawRow {
	row := make(RawRow, len(colIx))
	for col, i := range colIx {
		if i < len(rec) {
			row[col] = rec[i]
		}
	}
	return row
}

// isPaddingRow reports rows whose required cells are all blank.
func isPaddingRow(row RawRow, required ColumnSet) bool {
	for col := range required {
		if !util.IsBlank(row[col]) {
			return false
		}
	}
	return true
}

func rowFailure(line int) ValidationError {
	return ValidationError{Line: line, Message: fmt.Sprintf("Row %d: %v", line, errRowPanicked)}
}
