package service

import (
	"context"
	"encoding/json"

	"github.com/lawrencecchen/autobuild/internal/domain"
	"github.com/lawrencecchen/autobuild/internal/tools"
)

// showAfterLatency shows a skeleton, waits the demo latency and settles with
// the final display. The transcript receives the payload as JSON.
func (s *Service) showAfterLatency(ctx context.Context, tc *turnContext, name string, skeleton, final domain.DisplayKind, payload interface{}) {
	if err := tc.show(ctx, tc.display(skeleton, nil)); err != nil {
		tc.fail(ctx, "internal", err)
		return
	}
	if err := sleep(ctx, s.config.DemoLatency); err != nil {
		tc.fail(ctx, "cancelled", err)
		return
	}
	content, err := json.Marshal(payload)
	if err != nil {
		tc.fail(ctx, "internal", err)
		return
	}
	tc.settleAction(ctx, name, tc.display(final, payload), string(content))
}

func (s *Service) listStocks(ctx context.Context, tc *turnContext, args tools.ListStocksArgs) {
	stocks := args.Stocks
	if stocks == nil {
		stocks = []domain.Stock{}
	}
	s.showAfterLatency(ctx, tc, tools.ListStocks, domain.DisplayStocksSkeleton, domain.DisplayStocks, stocks)
}

func (s *Service) getEvents(ctx context.Context, tc *turnContext, args tools.GetEventsArgs) {
	events := args.Events
	if events == nil {
		events = []domain.StockEvent{}
	}
	s.showAfterLatency(ctx, tc, tools.GetEvents, domain.DisplayEventsSkeleton, domain.DisplayEvents, events)
}

func (s *Service) showStockPrice(ctx context.Context, tc *turnContext, args tools.ShowStockPriceArgs) {
	stock := domain.Stock{Symbol: args.Symbol, Price: args.Price, Delta: args.Delta}
	s.showAfterLatency(ctx, tc, tools.ShowStockPrice, domain.DisplayStockSkeleton, domain.DisplayStock, stock)
}
