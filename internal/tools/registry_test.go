package tools

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	def := Definition{Name: "x", Parse: decode[RunSQLArgs]}
	require.NoError(t, r.Register(def))
	assert.Error(t, r.Register(def))
	assert.Error(t, r.Register(Definition{Parse: decode[RunSQLArgs]}))
	assert.Error(t, r.Register(Definition{Name: "y"}))
	assert.Panics(t, func() { r.MustRegister(def) })
}

func TestDefaultRegistryFunctions(t *testing.T) {
	fns := DefaultRegistry.Functions()
	names := make([]string, 0, len(fns))
	for _, fn := range fns {
		names = append(names, fn.Name)
		assert.NotEmpty(t, fn.Description)
		assert.NotNil(t, fn.Parameters)
	}
	assert.Equal(t, []string{RunSQL, DisplayReact, ListStocks, GetEvents, ShowStockPrice, ShowStockPurchaseUI}, names)

	raw, err := json.Marshal(fns[0].Parameters)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"required":["queryKey","sql"]`)
}

func TestParseRunSQL(t *testing.T) {
	args, err := DefaultRegistry.Parse(RunSQL, json.RawMessage(`{"queryKey":"users","sql":"SELECT * FROM users WHERE id = ?","params":["1"]}`))
	require.NoError(t, err)
	assert.Equal(t, RunSQLArgs{QueryKey: "users", SQL: "SELECT * FROM users WHERE id = ?", Params: []string{"1"}}, args)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		tool   string
		raw    string
		target error
		reason string
	}{
		{name: "unknown tool", tool: "rm_rf", raw: `{}`, target: ErrUnknownTool},
		{name: "missing sql", tool: RunSQL, raw: `{"queryKey":"k"}`, target: ErrInvalidArgs, reason: "sql is required"},
		{name: "wrong type", tool: RunSQL, raw: `{"sql":1}`, target: ErrInvalidArgs},
		{name: "missing render", tool: DisplayReact, raw: `{"code":"function A(){}"}`, target: ErrInvalidArgs, reason: "render is required"},
		{name: "empty symbol", tool: ListStocks, raw: `{"stocks":[{"symbol":"A"},{"symbol":""}]}`, target: ErrInvalidArgs, reason: "stocks[1].symbol is required"},
		{name: "empty headline", tool: GetEvents, raw: `{"events":[{"date":"2024-01-01"}]}`, target: ErrInvalidArgs, reason: "events[0].headline is required"},
		{name: "price symbol", tool: ShowStockPrice, raw: `{"price":1}`, target: ErrInvalidArgs, reason: "symbol is required"},
		{name: "purchase symbol", tool: ShowStockPurchaseUI, raw: ``, target: ErrInvalidArgs, reason: "symbol is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DefaultRegistry.Parse(tt.tool, json.RawMessage(tt.raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			if tt.reason != "" {
				var argsErr *ArgsError
				require.True(t, errors.As(err, &argsErr))
				assert.Equal(t, tt.tool, argsErr.Tool)
				assert.Equal(t, tt.reason, argsErr.Reason)
			}
		})
	}
}

func TestPurchaseSharesDefault(t *testing.T) {
	args, err := DefaultRegistry.Parse(ShowStockPurchaseUI, json.RawMessage(`{"symbol":"DOGE","price":0.12}`))
	require.NoError(t, err)
	assert.Equal(t, float64(DefaultPurchaseShares), args.(ShowStockPurchaseArgs).Shares())

	args, err = DefaultRegistry.Parse(ShowStockPurchaseUI, json.RawMessage(`{"symbol":"DOGE","price":0.12,"numberOfShares":0}`))
	require.NoError(t, err)
	assert.Equal(t, 0.0, args.(ShowStockPurchaseArgs).Shares())
}
