package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// SummaryRowLimit bounds how many result rows are summarised into the transcript.
const SummaryRowLimit = 5

// QueryResult is the response envelope of the database query service.
type QueryResult struct {
	Errors   []QueryError `json:"errors"`
	Messages []string     `json:"messages"`
	Result   []ResultSet  `json:"result"`
	Success  bool         `json:"success"`
}

// QueryError is a single error reported by the database query service.
type QueryError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ResultSet holds the rows of one executed statement.
type ResultSet struct {
	Results []Row `json:"results"`
}

// ErrorResult wraps a local failure (network, decoding) in the service's
// error list shape so callers render it like any other query error.
func ErrorResult(err error) *QueryResult {
	return &QueryResult{
		Errors:  []QueryError{{Code: 0, Message: err.Error()}},
		Success: false,
	}
}

// Rows returns the rows of the first result set.
func (r *QueryResult) Rows() []Row {
	if r == nil || len(r.Result) == 0 {
		return nil
	}
	return r.Result[0].Results
}

// ErrorList renders every error as a JSON object string.
func (r *QueryResult) ErrorList() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		raw, _ := json.Marshal(e)
		out = append(out, string(raw))
	}
	return out
}

// Summary is the bounded textual form of the result written to the transcript:
// the error list when there is one, otherwise the first rows as CSV.
func (r *QueryResult) Summary() string {
	if errs := r.ErrorList(); len(errs) > 0 {
		return "Errors:\n" + strings.Join(errs, "\n\n")
	}
	rows := r.Rows()
	if len(rows) > SummaryRowLimit {
		rows = rows[:SummaryRowLimit]
	}
	return "First 5 rows:\n" + FormatCSV(rows)
}

// Row is a result row that keeps the column order it arrived in.
type Row struct {
	Columns []string
	Values  map[string]interface{}
}

// NewRow builds a row from alternating column names and values.
func NewRow(pairs ...interface{}) Row {
	r := Row{Values: make(map[string]interface{}, len(pairs)/2)}
	for i := 0; i+1 < len(pairs); i += 2 {
		col := fmt.Sprint(pairs[i])
		if _, ok := r.Values[col]; !ok {
			r.Columns = append(r.Columns, col)
		}
		r.Values[col] = pairs[i+1]
	}
	return r
}

// UnmarshalJSON decodes a JSON object keeping key order.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("row must be a JSON object")
	}

	r.Columns = nil
	r.Values = make(map[string]interface{})
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected row key %v", tok)
		}
		var v interface{}
		if err := dec.Decode(&v); err != nil {
			return err
		}
		if _, seen := r.Values[key]; !seen {
			r.Columns = append(r.Columns, key)
		}
		r.Values[key] = v
	}
	_, err = dec.Token()
	return err
}

// MarshalJSON encodes the row as a JSON object in column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.Values[col])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// FormatCSV renders rows as a header line of the first row's columns
// followed by one comma-separated line per row. Values are not quoted.
func FormatCSV(rows []Row) string {
	if len(rows) == 0 {
		return ""
	}
	cols := rows[0].Columns
	var sb strings.Builder
	sb.WriteString(strings.Join(cols, ","))
	for _, row := range rows {
		sb.WriteByte('\n')
		for i, col := range cols {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(formatCell(row.Values[col]))
		}
	}
	return sb.String()
}

func formatCell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool, int, int64, float64:
		return fmt.Sprint(val)
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(raw)
	}
}
