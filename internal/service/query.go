package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/lawrencecchen/autobuild/internal/domain"
	"github.com/lawrencecchen/autobuild/internal/sqlsafe"
)

// ErrEmptySQL is returned when a query card is run without SQL.
var ErrEmptySQL = errors.New("sql is required")

// Decisions accepted by DecideConfirmation.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

func (s *Service) createConfirmation(ctx context.Context, tc *turnContext, queryKey, sql string, params []string, reason string) (*domain.QueryConfirmation, error) {
	c := &domain.QueryConfirmation{
		ConfirmationID: "qc_" + uuid.New().String()[:8],
		SessionID:      tc.sessionID,
		TurnID:         tc.turn.TurnID,
		UIEntryID:      tc.uiEntryID,
		QueryKey:       queryKey,
		SQL:            sql,
		Params:         params,
		Status:         domain.ConfirmationStatusPending,
		Reason:         reason,
		CreatedAt:      s.now(),
	}
	if err := s.store.CreateConfirmation(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create confirmation: %w", err)
	}

	s.traceEvent(ctx, tc.turn.TurnID, domain.EventTypeConfirmationRequired, domain.ConfirmationRequiredPayload{
		ConfirmationID: c.ConfirmationID,
		QueryKey:       queryKey,
		SQL:            sql,
	})
	return c, nil
}

// RunQuery executes the SQL of an editable query card on the user's behalf
// and shows the result on the card. The transcript is not edited.
func (s *Service) RunQuery(ctx context.Context, sessionID string, req domain.RunQueryRequest) (*domain.UIEntry, error) {
	if strings.TrimSpace(req.SQL) == "" {
		return nil, ErrEmptySQL
	}
	params := req.Params
	if params == nil {
		params = []string{}
	}

	var queryKey, confirmationID string
	_, err := s.updateQueryCard(ctx, sessionID, req.UIEntryID, func(v *domain.RunSQLView) error {
		v.SQL = req.SQL
		v.Params = params
		v.QuerySafe = sqlsafe.IsQuerySafe(req.SQL)
		v.Loading = true
		queryKey = v.QueryKey
		if v.Confirmation == string(domain.ConfirmationStatusPending) {
			confirmationID = v.ConfirmationID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Running the card is the user's confirmation of a pending query.
	if confirmationID != "" {
		if _, err := s.store.DecideConfirmation(ctx, confirmationID, domain.ConfirmationStatusExecuted, "run from query card"); err != nil {
			log.Printf("WARN: failed to mark confirmation %s executed: %v", confirmationID, err)
		}
	}

	result := s.executeQuery(ctx, "", queryKey, req.SQL, params)
	return s.updateQueryCard(ctx, sessionID, req.UIEntryID, func(v *domain.RunSQLView) error {
		v.Loading = false
		v.Result = result
		v.Errors = result.ErrorList()
		if confirmationID != "" && v.ConfirmationID == confirmationID {
			v.Confirmation = string(domain.ConfirmationStatusExecuted)
		}
		return nil
	})
}

// GetConfirmation returns a query confirmation by ID.
func (s *Service) GetConfirmation(ctx context.Context, confirmationID string) (*domain.QueryConfirmation, error) {
	c, err := s.store.GetConfirmation(ctx, confirmationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get confirmation: %w", err)
	}
	if c == nil {
		return nil, ErrConfirmationNotFound
	}
	return c, nil
}

// DecideConfirmation approves or rejects a pending query. Approval executes
// it. Either way only the query card is updated.
func (s *Service) DecideConfirmation(ctx context.Context, confirmationID string, req domain.ConfirmationDecisionRequest) (*domain.QueryConfirmation, error) {
	var status domain.ConfirmationStatus
	switch req.Decision {
	case DecisionApprove:
		status = domain.ConfirmationStatusExecuted
	case DecisionReject:
		status = domain.ConfirmationStatusRejected
	default:
		return nil, ErrInvalidDecision
	}

	c, err := s.GetConfirmation(ctx, confirmationID)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.ConfirmationStatusPending {
		return nil, ErrConfirmationNotPending
	}

	updated, err := s.store.DecideConfirmation(ctx, confirmationID, status, req.Reason)
	if err != nil {
		return nil, fmt.Errorf("failed to decide confirmation: %w", err)
	}
	if !updated {
		return nil, ErrConfirmationNotPending
	}

	s.traceEvent(ctx, c.TurnID, domain.EventTypeConfirmationDecision, domain.ConfirmationDecisionPayload{
		ConfirmationID: confirmationID,
		Status:         status,
		Reason:         req.Reason,
	})

	var result *domain.QueryResult
	if status == domain.ConfirmationStatusExecuted {
		result = s.executeQuery(ctx, c.TurnID, c.QueryKey, c.SQL, c.Params)
	}

	_, err = s.updateQueryCard(ctx, c.SessionID, c.UIEntryID, func(v *domain.RunSQLView) error {
		v.Confirmation = string(status)
		v.Loading = false
		if result != nil {
			v.Result = result
			v.Errors = result.ErrorList()
		}
		return nil
	})
	if err != nil {
		log.Printf("WARN: failed to update query card for confirmation %s: %v", confirmationID, err)
	}

	return s.GetConfirmation(ctx, confirmationID)
}
