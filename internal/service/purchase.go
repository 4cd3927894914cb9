package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/lawrencecchen/autobuild/internal/domain"
	"github.com/lawrencecchen/autobuild/internal/tools"
)

// MaxPurchaseShares is the largest purchase the purchase control allows.
const MaxPurchaseShares = 1000

func (s *Service) showStockPurchase(ctx context.Context, tc *turnContext, args tools.ShowStockPurchaseArgs) {
	shares := args.Shares()
	if shares <= 0 || shares > MaxPurchaseShares {
		tc.settleAction(ctx, tools.ShowStockPurchaseUI,
			domain.NewDisplay(domain.DisplayText, "Invalid amount", nil),
			"[Invalid amount]")
		return
	}

	view := domain.PurchaseView{
		Symbol:        args.Symbol,
		Price:         args.Price,
		DefaultAmount: shares,
	}
	text := fmt.Sprintf("Sure! Click the button below to purchase %s shares of $%s:", formatNumber(shares), args.Symbol)
	content := fmt.Sprintf("[UI for purchasing %s shares of %s. Current price = %s, total cost = %s]",
		formatNumber(shares), args.Symbol, formatNumber(args.Price), formatNumber(shares*args.Price))
	tc.settleAction(ctx, tools.ShowStockPurchaseUI, domain.NewDisplay(domain.DisplayPurchase, text, view), content)
}

// ConfirmPurchase shows a progress entry for a purchase and completes it in
// the background. The transcript receives one system entry once it is done.
func (s *Service) ConfirmPurchase(ctx context.Context, sessionID string, req domain.ConfirmPurchaseRequest) (*domain.ConfirmPurchaseResponse, error) {
	if strings.TrimSpace(req.Symbol) == "" {
		return nil, fmt.Errorf("%w: symbol is required", ErrInvalidPurchase)
	}
	if req.Amount <= 0 || req.Amount > MaxPurchaseShares {
		return nil, fmt.Errorf("%w: amount must be between 1 and %d", ErrInvalidPurchase, MaxPurchaseShares)
	}

	amount := strconv.Itoa(req.Amount)
	var entry domain.UIEntry
	_, err := s.sessions.Update(ctx, sessionID, func(sess *domain.Session) error {
		entry = domain.UIEntry{
			ID:      s.sessions.NextUIEntryID(sess),
			Display: domain.NewDisplay(domain.DisplayPurchasing, fmt.Sprintf("Purchasing %s $%s...", amount, req.Symbol), nil),
		}
		sess.UI = sess.UI.Append(entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.spawn("purchase "+req.Symbol, func(ctx context.Context) error {
		return s.completePurchase(ctx, sessionID, entry.ID, req)
	})

	return &domain.ConfirmPurchaseResponse{PurchasingEntry: entry}, nil
}

func (s *Service) completePurchase(ctx context.Context, sessionID string, entryID int64, req domain.ConfirmPurchaseRequest) error {
	amount := strconv.Itoa(req.Amount)
	total := float64(req.Amount) * req.Price

	steps := []struct {
		text  string
		final bool
	}{
		{fmt.Sprintf("Purchasing %s $%s... working on it...", amount, req.Symbol), false},
		{fmt.Sprintf("You have successfully purchased %s $%s. Total cost: %s", amount, req.Symbol, formatCurrency(total)), true},
	}
	for _, step := range steps {
		if err := sleep(ctx, s.config.DemoLatency); err != nil {
			return err
		}
		_, err := s.sessions.Update(ctx, sessionID, func(sess *domain.Session) error {
			ui, ok := sess.UI.Replace(entryID, domain.NewDisplay(domain.DisplayPurchasing, step.text, nil), step.final)
			if !ok {
				return ErrUIEntryNotFound
			}
			sess.UI = ui
			return nil
		})
		if err != nil {
			log.Printf("WARN: failed to update purchase entry %d: %v", entryID, err)
			return err
		}
	}

	_, err := s.sessions.Update(ctx, sessionID, func(sess *domain.Session) error {
		sess.UI = sess.UI.Append(domain.UIEntry{
			ID: s.sessions.NextUIEntryID(sess),
			Display: domain.NewDisplay(domain.DisplaySystem,
				fmt.Sprintf("You have purchased %s shares of %s at $%s. Total cost = %s.", amount, req.Symbol, formatNumber(req.Price), formatCurrency(total)), nil),
			Final: true,
		})
		sess.Transcript = sess.Transcript.Append(domain.ConversationEntry{
			Role: domain.RoleSystem,
			Content: fmt.Sprintf("[User has purchased %s shares of %s at %s. Total cost = %s]",
				amount, req.Symbol, formatNumber(req.Price), formatNumber(total)),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit purchase: %w", err)
	}
	return nil
}

// formatNumber prints the shortest decimal form of v.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatCurrency(v float64) string {
	return "$" + strconv.FormatFloat(v, 'f', 2, 64)
}
