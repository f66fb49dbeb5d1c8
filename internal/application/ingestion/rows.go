package ingestion

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// defaultExpiryDays is applied when a row has no usable loan_last_date.
const defaultExpiryDays = 30

// Row is a fully-typed, normalized CSV row. A row either parses into this
// struct or becomes a RowError; there is no partially-typed state.
type Row struct {
	LoanID       string
	ClassID      uint64
	NonceID      uint64
	Amount       float64
	URL          string
	LoanDate     time.Time
	LoanLastDate time.Time

	// LastDateDefaulted is set when loan_last_date was absent or unparseable
	// and the 30-day default was substituted.
	LastDateDefaulted bool
}

// RowError is a row that failed strict parsing. Ref is the business loan id
// when present, otherwise "line N".
type RowError struct {
	Ref string
	Err string
}

var requiredColumns = []string{"loanId", "classId", "nonceId", "amount", "url"}

// dateLayouts covers the formats seen in uploaded ledgers.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"02.01.2006",
}

// ParseRows reads the whole CSV stream. A malformed header or an unreadable
// stream fails the batch; malformed field values fail only their row.
func ParseRows(r io.Reader, now time.Time) ([]Row, []RowError, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read CSV header: %w", err)
	}
	col := map[string]int{}
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, name := range requiredColumns {
		if _, ok := col[name]; !ok {
			return nil, nil, fmt.Errorf("CSV is missing required column %q", name)
		}
	}

	var (
		rows    []Row
		rowErrs []RowError
		line    = 1
	)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, nil, fmt.Errorf("read CSV line %d: %w", line, err)
		}

		field := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		ref := field("loanId")
		if ref == "" {
			rowErrs = append(rowErrs, RowError{Ref: fmt.Sprintf("line %d", line), Err: "missing loanId"})
			continue
		}

		classID, err := strconv.ParseUint(field("classId"), 10, 64)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Ref: ref, Err: "invalid classId"})
			continue
		}
		nonceID, err := strconv.ParseUint(field("nonceId"), 10, 64)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Ref: ref, Err: "invalid nonceId"})
			continue
		}
		amount, err := strconv.ParseFloat(field("amount"), 64)
		if err != nil || amount < 0 {
			rowErrs = append(rowErrs, RowError{Ref: ref, Err: "invalid amount"})
			continue
		}

		row := Row{
			LoanID:  ref,
			ClassID: classID,
			NonceID: nonceID,
			Amount:  amount,
			URL:     field("url"),
		}

		if d, ok := parseDate(field("loan_date")); ok {
			row.LoanDate = d
		} else {
			row.LoanDate = now
		}
		if d, ok := parseDate(field("loan_last_date")); ok {
			row.LoanLastDate = d
		} else {
			row.LoanLastDate = now.AddDate(0, 0, defaultExpiryDays)
			row.LastDateDefaulted = true
		}

		rows = append(rows, row)
	}
	return rows, rowErrs, nil
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}
