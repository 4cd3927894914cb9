package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowKeepsColumnOrder(t *testing.T) {
	var row Row
	require.NoError(t, json.Unmarshal([]byte(`{"z":1,"a":"x","m":null}`), &row))
	assert.Equal(t, []string{"z", "a", "m"}, row.Columns)

	out, err := json.Marshal(row)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":"x","m":null}`, string(out))
}

func TestRowRejectsNonObject(t *testing.T) {
	var row Row
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &row))
}

func TestNewRowDeduplicatesColumns(t *testing.T) {
	row := NewRow("id", 1, "name", "Ada", "id", 2)
	assert.Equal(t, []string{"id", "name"}, row.Columns)
	assert.Equal(t, 2, row.Values["id"])
}

func TestFormatCSV(t *testing.T) {
	tests := []struct {
		name string
		rows []Row
		want string
	}{
		{name: "empty", rows: nil, want: ""},
		{
			name: "header from first row",
			rows: []Row{
				NewRow("id", 1, "name", "Ada"),
				NewRow("id", 2, "name", nil),
			},
			want: "id,name\n1,Ada\n2,",
		},
		{
			name: "nested values as json",
			rows: []Row{NewRow("tags", []string{"a", "b"}, "ok", true)},
			want: "tags,ok\n[\"a\",\"b\"],true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatCSV(tt.rows))
		})
	}
}

func TestQueryResultSummary(t *testing.T) {
	rows := make([]Row, 0, 7)
	for i := 0; i < 7; i++ {
		rows = append(rows, NewRow("n", i))
	}
	result := &QueryResult{Success: true, Result: []ResultSet{{Results: rows}}}

	summary := result.Summary()
	assert.True(t, strings.HasPrefix(summary, "First 5 rows:\nn\n0\n"))
	assert.Equal(t, 1+1+SummaryRowLimit, len(strings.Split(summary, "\n")))

	failed := &QueryResult{Errors: []QueryError{{Code: 7500, Message: "no such table: t"}, {Code: 1, Message: "x"}}}
	assert.Equal(t, "Errors:\n{\"code\":7500,\"message\":\"no such table: t\"}\n\n{\"code\":1,\"message\":\"x\"}", failed.Summary())
}

func TestErrorResult(t *testing.T) {
	result := ErrorResult(errors.New("connection refused"))
	assert.False(t, result.Success)
	assert.Nil(t, result.Rows())
	assert.Equal(t, []string{`{"code":0,"message":"connection refused"}`}, result.ErrorList())

	var nilResult *QueryResult
	assert.Nil(t, nilResult.Rows())
	assert.Nil(t, nilResult.ErrorList())
}
