package service

import (
	"context"
	"log"
	"time"

	"github.com/lawrencecchen/autobuild/internal/domain"
)

const expiredReason = "confirmation timed out"

// RunConfirmationTimeoutMonitor expires pending query confirmations until ctx
// is done.
func (s *Service) RunConfirmationTimeoutMonitor(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepExpiredConfirmations(ctx)
		}
	}
}

func (s *Service) sweepExpiredConfirmations(ctx context.Context) {
	if s.config.ConfirmationTimeout <= 0 {
		return
	}
	sweepCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	expired, err := s.store.ListExpiredConfirmations(sweepCtx, s.config.ConfirmationTimeout, 100)
	if err != nil {
		log.Printf("WARN: confirmation timeout sweep failed: %v", err)
		return
	}

	for _, c := range expired {
		updated, err := s.store.DecideConfirmation(sweepCtx, c.ConfirmationID, domain.ConfirmationStatusExpired, expiredReason)
		if err != nil {
			log.Printf("WARN: failed to expire confirmation %s: %v", c.ConfirmationID, err)
			continue
		}
		if !updated {
			continue
		}

		payload := domain.ConfirmationDecisionPayload{
			ConfirmationID: c.ConfirmationID,
			Status:         domain.ConfirmationStatusExpired,
			Reason:         expiredReason,
		}
		if err := s.recordEvent(sweepCtx, c.TurnID, domain.EventTypeConfirmationDecision, payload); err != nil {
			log.Printf("WARN: failed to record confirmation timeout event %s: %v", c.ConfirmationID, err)
		}

		_, err = s.updateQueryCard(sweepCtx, c.SessionID, c.UIEntryID, func(v *domain.RunSQLView) error {
			if v.ConfirmationID == c.ConfirmationID {
				v.Confirmation = string(domain.ConfirmationStatusExpired)
			}
			return nil
		})
		if err != nil {
			log.Printf("WARN: failed to update query card for expired confirmation %s: %v", c.ConfirmationID, err)
		}
	}
}
