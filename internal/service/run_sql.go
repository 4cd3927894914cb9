package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lawrencecchen/autobuild/internal/adapter/deploy"
	"github.com/lawrencecchen/autobuild/internal/domain"
	"github.com/lawrencecchen/autobuild/internal/retry"
	"github.com/lawrencecchen/autobuild/internal/sqlsafe"
	"github.com/lawrencecchen/autobuild/internal/tools"
	"github.com/lawrencecchen/autobuild/policy"
)

const (
	deployTries          = 3
	endpointReadyTimeout = 2 * time.Minute

	waitingSummary = "Waiting for user to execute query."
)

var errNoDatabase = errors.New("database is not configured")

// runSQLContent is the transcript form of a run_sql action.
type runSQLContent struct {
	SQL         string   `json:"sql"`
	Params      []string `json:"params"`
	Result      string   `json:"result"`
	QueryKey    string   `json:"queryKey"`
	EndpointURL string   `json:"endpointUrl,omitempty"`
}

func (s *Service) runSQL(ctx context.Context, tc *turnContext, args tools.RunSQLArgs) {
	params := args.Params
	if params == nil {
		params = []string{}
	}
	view := domain.RunSQLView{
		QueryKey:  args.QueryKey,
		SQL:       args.SQL,
		Params:    params,
		QuerySafe: sqlsafe.IsQuerySafe(args.SQL),
		Loading:   true,
	}
	if err := tc.show(ctx, tc.display(domain.DisplayRunSQL, view)); err != nil {
		log.Printf("WARN: failed to show query card for turn %s: %v", tc.turn.TurnID, err)
	}

	decision := s.decideQuery(ctx, tc, args, view.QuerySafe)

	var endpoint *deploy.Endpoint
	if s.deployer != nil {
		ep, err := s.createEndpoint(ctx, tc.turn.TurnID, args.SQL, params)
		if err != nil {
			view.Errors = append(view.Errors, "Failed to deploy endpoint: "+err.Error())
		} else {
			endpoint = ep
			view.EndpointURL = ep.URL
		}
	}

	var summary string
	var needsConfirmation bool
	switch decision.Decision {
	case policy.DecisionAllow:
		result := s.executeQuery(ctx, tc.turn.TurnID, args.QueryKey, args.SQL, params)
		view.Result = result
		view.Errors = append(view.Errors, result.ErrorList()...)
		summary = result.Summary()
	case policy.DecisionBlock:
		summary = "Query blocked: " + decision.Reason
		view.Errors = append(view.Errors, summary)
	default:
		needsConfirmation = true
		summary = waitingSummary
	}
	view.Loading = false

	content, _ := json.Marshal(runSQLContent{
		SQL:         args.SQL,
		Params:      params,
		Result:      summary,
		QueryKey:    args.QueryKey,
		EndpointURL: view.EndpointURL,
	})
	settleErr := tc.settleAction(ctx, tools.RunSQL, tc.display(domain.DisplayRunSQL, view), string(content))

	// The confirmation exists only once the card is final, so a decision
	// on it is never overwritten by the settling view.
	if needsConfirmation && settleErr == nil {
		s.requestConfirmation(ctx, tc, args.QueryKey, args.SQL, params, decision.Reason)
	}
	if endpoint != nil {
		s.watchEndpoint(tc, endpoint)
	}
}

// requestConfirmation creates a pending confirmation and attaches it to the
// settled query card.
func (s *Service) requestConfirmation(ctx context.Context, tc *turnContext, queryKey, sql string, params []string, reason string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	c, err := s.createConfirmation(ctx, tc, queryKey, sql, params, reason)
	if err != nil {
		log.Printf("ERROR: failed to create confirmation for turn %s: %v", tc.turn.TurnID, err)
	}
	_, updateErr := s.updateQueryCard(ctx, tc.sessionID, tc.uiEntryID, func(v *domain.RunSQLView) error {
		if err != nil {
			v.Errors = append(v.Errors, "Failed to request confirmation: "+err.Error())
			return nil
		}
		v.ConfirmationID = c.ConfirmationID
		v.Confirmation = string(c.Status)
		return nil
	})
	if updateErr != nil {
		log.Printf("WARN: failed to attach confirmation to query card of turn %s: %v", tc.turn.TurnID, updateErr)
	}
}

// decideQuery asks the policy what to do with a query. A failed evaluation
// falls back to asking the user, and a query the classifier rejected is
// never allowed to run unasked.
func (s *Service) decideQuery(ctx context.Context, tc *turnContext, args tools.RunSQLArgs, safe bool) policy.Decision {
	var decision policy.Decision
	if s.policyEngine == nil {
		decision = policy.Decision{Decision: policy.DecisionAllow}
		if !safe {
			decision = policy.Decision{Decision: policy.DecisionRequireApproval, Reason: "query may modify the database"}
		}
	} else {
		var err error
		decision, err = s.policyEngine.Evaluate(ctx, policy.Input{
			ToolName:  tools.RunSQL,
			QuerySafe: safe,
			SessionID: tc.sessionID,
			Args:      args,
		})
		if err != nil {
			log.Printf("WARN: policy evaluation failed for turn %s: %v", tc.turn.TurnID, err)
			decision = policy.Decision{Decision: policy.DecisionRequireApproval, Reason: "policy evaluation failed"}
		}
	}

	if decision.Decision == policy.DecisionAllow && !safe {
		log.Printf("WARN: policy allowed an unsafe query for turn %s, asking the user instead", tc.turn.TurnID)
		decision = policy.Decision{Decision: policy.DecisionRequireApproval, Reason: "query may modify the database"}
	}

	s.traceEvent(ctx, tc.turn.TurnID, domain.EventTypePolicyDecision, domain.PolicyDecisionPayload{
		ToolName:  tools.RunSQL,
		QuerySafe: safe,
		Decision:  decision.Decision,
		Reason:    decision.Reason,
	})
	return decision
}

// executeQuery runs a query and always returns a result; local failures
// become its error list. An empty turnID skips the trace event.
func (s *Service) executeQuery(ctx context.Context, turnID, queryKey, sql string, params []string) *domain.QueryResult {
	startTime := time.Now()

	var result *domain.QueryResult
	var err error
	if s.db == nil {
		err = errNoDatabase
	} else {
		result, err = s.db.Query(ctx, sql, params)
	}
	if err != nil {
		log.Printf("WARN: query %q failed: %v", queryKey, err)
		result = domain.ErrorResult(err)
	}

	if turnID != "" {
		payload := domain.QueryExecutedPayload{
			QueryKey:  queryKey,
			Success:   result.Success && len(result.Errors) == 0,
			RowCount:  len(result.Rows()),
			LatencyMs: time.Since(startTime).Milliseconds(),
		}
		if err != nil {
			payload.Error = err.Error()
		}
		s.traceEvent(ctx, turnID, domain.EventTypeQueryExecuted, payload)
	}
	return result
}

func (s *Service) createEndpoint(ctx context.Context, turnID, sql string, params []string) (*deploy.Endpoint, error) {
	assets, err := deploy.QueryEndpointAssets(sql, params)
	if err != nil {
		return nil, err
	}
	envVars := map[string]string{
		"CLOUDFLARE_API_TOKEN":  s.config.CloudflareAPIToken,
		"CLOUDFLARE_ACCOUNT_ID": s.config.CloudflareAccountID,
		"D1_DATABASE_ID":        s.config.D1DatabaseID,
	}

	ep, err := retry.Do(ctx, retry.Options{
		Tries: deployTries,
		Sleep: s.retrySleep,
		OnError: func(attempt int, err error) {
			log.Printf("WARN: endpoint deployment attempt %d failed: %v", attempt+1, err)
		},
	}, func(ctx context.Context) (*deploy.Endpoint, error) {
		return s.deployer.CreateEndpoint(ctx, assets, envVars)
	})
	if err != nil {
		s.traceEvent(ctx, turnID, domain.EventTypeEndpointCreated, domain.EndpointPayload{Error: err.Error()})
		return nil, err
	}

	s.traceEvent(ctx, turnID, domain.EventTypeEndpointCreated, domain.EndpointPayload{
		ProjectID:    ep.Project.ID,
		DeploymentID: ep.Deployment.ID,
		URL:          ep.URL,
	})
	return ep, nil
}

// watchEndpoint waits for a deployment in the background and marks the query
// card once it is live. Only the UI entry is edited.
func (s *Service) watchEndpoint(tc *turnContext, ep *deploy.Endpoint) {
	s.spawn("endpoint "+ep.Deployment.ID, func(ctx context.Context) error {
		waitCtx, cancel := context.WithTimeout(ctx, endpointReadyTimeout)
		defer cancel()
		waitErr := s.deployer.WaitReady(waitCtx, ep.Deployment.ID)

		payload := domain.EndpointPayload{
			ProjectID:    ep.Project.ID,
			DeploymentID: ep.Deployment.ID,
			URL:          ep.URL,
		}
		if waitErr != nil {
			log.Printf("WARN: endpoint %s did not become ready: %v", ep.URL, waitErr)
			payload.Error = waitErr.Error()
		}
		s.traceEvent(ctx, tc.turn.TurnID, domain.EventTypeEndpointReady, payload)

		_, err := s.updateQueryCard(ctx, tc.sessionID, tc.uiEntryID, func(v *domain.RunSQLView) error {
			if waitErr != nil {
				v.Errors = append(v.Errors, "Endpoint deployment failed: "+waitErr.Error())
				return nil
			}
			v.EndpointReady = true
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to update query card: %w", err)
		}
		return nil
	})
}

// updateQueryCard applies fn to the view of a run_sql UI entry, keeping its
// text and finality.
func (s *Service) updateQueryCard(ctx context.Context, sessionID string, uiEntryID int64, fn func(v *domain.RunSQLView) error) (*domain.UIEntry, error) {
	var updated domain.UIEntry
	_, err := s.sessions.Update(ctx, sessionID, func(sess *domain.Session) error {
		entry, ok := sess.UI.Find(uiEntryID)
		if !ok {
			return ErrUIEntryNotFound
		}
		if entry.Display.Kind != domain.DisplayRunSQL {
			return ErrNotQueryCard
		}
		var view domain.RunSQLView
		if err := json.Unmarshal(entry.Display.Data, &view); err != nil {
			return fmt.Errorf("failed to decode query card: %w", err)
		}
		if err := fn(&view); err != nil {
			return err
		}

		d := domain.NewDisplay(domain.DisplayRunSQL, entry.Display.Text, view)
		sess.UI, _ = sess.UI.Replace(uiEntryID, d, entry.Final)
		updated = domain.UIEntry{ID: uiEntryID, Display: d, Final: entry.Final}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}
