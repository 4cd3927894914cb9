package d1

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawrencecchen/autobuild/internal/domain"
)

func TestClientQuery(t *testing.T) {
	var gotBody queryRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/accounts/acct/d1/database/db1/query", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotBody))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"errors":[],"messages":[],"result":[{"results":[{"name":"Ada","id":1},{"name":"Bob","id":2}]}],"success":true}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "acct", "db1", "tok", time.Second)
	result, err := client.Query(context.Background(), "SELECT name, id FROM users WHERE id > ?", []string{"0"})
	require.NoError(t, err)

	assert.Equal(t, "SELECT name, id FROM users WHERE id > ?", gotBody.SQL)
	assert.Equal(t, []string{"0"}, gotBody.Params)
	assert.True(t, result.Success)
	rows := result.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"name", "id"}, rows[0].Columns)
	assert.Equal(t, "First 5 rows:\nname,id\nAda,1\nBob,2", result.Summary())
}

func TestClientQuerySendsEmptyParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"sql":"SELECT 1","params":[]}`, string(body))
		fmt.Fprint(w, `{"errors":[],"messages":[],"result":[{"results":[]}],"success":true}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "a", "b", "c", time.Second)
	_, err := client.Query(context.Background(), "SELECT 1", nil)
	require.NoError(t, err)
}

func TestClientQueryErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"errors":[{"code":7500,"message":"no such table: nope"}],"messages":[],"result":[],"success":false}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "a", "b", "c", time.Second)
	result, err := client.Query(context.Background(), "SELECT * FROM nope", nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, `Errors:
{"code":7500,"message":"no such table: nope"}`, result.Summary())
}

func TestClientQueryUndecodableError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream down")
	}))
	defer server.Close()

	client := NewClient(server.URL, "a", "b", "c", time.Second)
	_, err := client.Query(context.Background(), "SELECT 1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

type fakeQuerier struct {
	result *domain.QueryResult
	err    error
	sql    string
}

func (f *fakeQuerier) Query(ctx context.Context, sql string, params []string) (*domain.QueryResult, error) {
	f.sql = sql
	return f.result, f.err
}

func TestSchema(t *testing.T) {
	q := &fakeQuerier{result: &domain.QueryResult{
		Success: true,
		Result: []domain.ResultSet{{Results: []domain.Row{
			domain.NewRow("type", "table", "name", "_cf_KV", "sql", "CREATE TABLE _cf_KV (key TEXT)"),
			domain.NewRow("type", "table", "name", "Customer", "sql", "CREATE TABLE Customer (id INTEGER)"),
			domain.NewRow("type", "table", "name", "Order", "sql", "CREATE TABLE `Order` (id INTEGER)"),
		}}},
	}}

	schema, err := Schema(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, schemaQuery, q.sql)
	assert.Equal(t, "CREATE TABLE Customer (id INTEGER)\nCREATE TABLE `Order` (id INTEGER)", schema)
}

func TestSchemaErrors(t *testing.T) {
	_, err := Schema(context.Background(), &fakeQuerier{err: fmt.Errorf("down")})
	assert.Error(t, err)

	_, err = Schema(context.Background(), &fakeQuerier{result: &domain.QueryResult{
		Errors: []domain.QueryError{{Code: 10000, Message: "Authentication error"}},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Authentication error")
}
