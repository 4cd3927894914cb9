package tools

import (
	"fmt"
	"strings"

	"github.com/lawrencecchen/autobuild/internal/domain"
)

// DefaultPurchaseShares is used when the model omits numberOfShares.
const DefaultPurchaseShares = 100

// RunSQLArgs are the arguments of run_sql.
type RunSQLArgs struct {
	QueryKey string   `json:"queryKey"`
	SQL      string   `json:"sql"`
	Params   []string `json:"params,omitempty"`
}

func (a RunSQLArgs) Validate() error {
	if strings.TrimSpace(a.SQL) == "" {
		return fmt.Errorf("sql is required")
	}
	return nil
}

// DisplayReactArgs are the arguments of display_react.
type DisplayReactArgs struct {
	Code   string `json:"code"`
	Render string `json:"render"`
}

func (a DisplayReactArgs) Validate() error {
	if strings.TrimSpace(a.Code) == "" {
		return fmt.Errorf("code is required")
	}
	if strings.TrimSpace(a.Render) == "" {
		return fmt.Errorf("render is required")
	}
	return nil
}

// ListStocksArgs are the arguments of list_stocks.
type ListStocksArgs struct {
	Stocks []domain.Stock `json:"stocks"`
}

func (a ListStocksArgs) Validate() error {
	for i, s := range a.Stocks {
		if strings.TrimSpace(s.Symbol) == "" {
			return fmt.Errorf("stocks[%d].symbol is required", i)
		}
	}
	return nil
}

// GetEventsArgs are the arguments of get_events.
type GetEventsArgs struct {
	Events []domain.StockEvent `json:"events"`
}

func (a GetEventsArgs) Validate() error {
	for i, e := range a.Events {
		if strings.TrimSpace(e.Headline) == "" {
			return fmt.Errorf("events[%d].headline is required", i)
		}
	}
	return nil
}

// ShowStockPriceArgs are the arguments of show_stock_price.
type ShowStockPriceArgs struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Delta  float64 `json:"delta"`
}

func (a ShowStockPriceArgs) Validate() error {
	if strings.TrimSpace(a.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	return nil
}

// ShowStockPurchaseArgs are the arguments of show_stock_purchase_ui. The
// share range is checked by the handler, which renders its own message.
type ShowStockPurchaseArgs struct {
	Symbol         string   `json:"symbol"`
	Price          float64  `json:"price"`
	NumberOfShares *float64 `json:"numberOfShares,omitempty"`
}

func (a ShowStockPurchaseArgs) Validate() error {
	if strings.TrimSpace(a.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	return nil
}

// Shares returns the requested share count, defaulting when omitted.
func (a ShowStockPurchaseArgs) Shares() float64 {
	if a.NumberOfShares == nil {
		return DefaultPurchaseShares
	}
	return *a.NumberOfShares
}
