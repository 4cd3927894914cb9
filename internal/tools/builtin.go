package tools

// Names of the built-in actions.
const (
	RunSQL              = "run_sql"
	DisplayReact        = "display_react"
	ListStocks          = "list_stocks"
	GetEvents           = "get_events"
	ShowStockPrice      = "show_stock_price"
	ShowStockPurchaseUI = "show_stock_purchase_ui"
)

func init() {
	RegisterBuiltins(DefaultRegistry)
}

func str(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": desc}
}

func num(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "number", "description": desc}
}

func object(props map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// RegisterBuiltins adds the six built-in actions to r.
func RegisterBuiltins(r *Registry) {
	r.MustRegister(Definition{
		Name:        RunSQL,
		Description: "Run a read-only SQL query on the database.",
		Parameters: object(map[string]interface{}{
			"queryKey": str("The query's key. React components will call useQuery({ queryKey: [queryKey, params] }) to access the result."),
			"sql":      str("The SQL query to run."),
			"params": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "The parameters to use in the query.",
			},
		}, "queryKey", "sql"),
		Parse: decode[RunSQLArgs],
	})

	r.MustRegister(Definition{
		Name:        DisplayReact,
		Description: "Display a React component.",
		Parameters: object(map[string]interface{}{
			"code":   str("The code of the React component. Do not render or export it. Call `useQuery` to retrieve data to render. The queryKey should reference a queryKey defined in `run_sql`, and the queryFn should fetch from the corresponding endpointURL."),
			"render": str("Render the components with props."),
		}, "code", "render"),
		Parse: decode[DisplayReactArgs],
	})

	r.MustRegister(Definition{
		Name:        ListStocks,
		Description: "List three imaginary stocks that are trending.",
		Parameters: object(map[string]interface{}{
			"stocks": map[string]interface{}{
				"type": "array",
				"items": object(map[string]interface{}{
					"symbol": str("The symbol of the stock"),
					"price":  num("The price of the stock"),
					"delta":  num("The change in price of the stock"),
				}, "symbol", "price", "delta"),
			},
		}, "stocks"),
		Parse: decode[ListStocksArgs],
	})

	r.MustRegister(Definition{
		Name:        GetEvents,
		Description: "List funny imaginary events between user highlighted dates that describe stock activity.",
		Parameters: object(map[string]interface{}{
			"events": map[string]interface{}{
				"type": "array",
				"items": object(map[string]interface{}{
					"date":        str("The date of the event, in ISO-8601 format"),
					"headline":    str("The headline of the event"),
					"description": str("The description of the event"),
				}, "date", "headline", "description"),
			},
		}, "events"),
		Parse: decode[GetEventsArgs],
	})

	r.MustRegister(Definition{
		Name:        ShowStockPrice,
		Description: "Get the current stock price of a given stock or currency. Use this to show the price to the user.",
		Parameters: object(map[string]interface{}{
			"symbol": str("The name or symbol of the stock or currency. e.g. DOGE/AAPL/USD."),
			"price":  num("The price of the stock."),
			"delta":  num("The change in price of the stock"),
		}, "symbol", "price", "delta"),
		Parse: decode[ShowStockPriceArgs],
	})

	r.MustRegister(Definition{
		Name:        ShowStockPurchaseUI,
		Description: "Show price and the UI to purchase a stock or currency. Use this if the user wants to purchase a stock or currency.",
		Parameters: object(map[string]interface{}{
			"symbol":         str("The name or symbol of the stock or currency. e.g. DOGE/AAPL/USD."),
			"price":          num("The price of the stock."),
			"numberOfShares": num("The **number of shares** for a stock or currency to purchase. Can be optional if the user did not specify it."),
		}, "symbol", "price"),
		Parse: decode[ShowStockPurchaseArgs],
	})
}
