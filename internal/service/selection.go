package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lawrencecchen/autobuild/internal/domain"
)

// ErrMissingComponentID is returned when a selection names no component.
var ErrMissingComponentID = errors.New("component_id is required")

// SelectRows records the rows selected in a result grid. The entry is keyed
// by the grid's component ID so repeated selections replace each other; an
// empty selection removes it.
func (s *Service) SelectRows(ctx context.Context, sessionID string, req domain.SelectRowsRequest) (*domain.Session, error) {
	if strings.TrimSpace(req.ComponentID) == "" {
		return nil, ErrMissingComponentID
	}

	var content string
	if len(req.Rows) > 0 {
		encoded := make([]string, 0, len(req.Rows))
		for _, row := range req.Rows {
			raw, err := json.Marshal(row)
			if err != nil {
				return nil, fmt.Errorf("failed to encode row: %w", err)
			}
			encoded = append(encoded, string(raw))
		}
		content = "[User has selected the following rows: " + strings.Join(encoded, ",") + "]"
	}

	return s.sessions.Update(ctx, sessionID, func(sess *domain.Session) error {
		if content == "" {
			sess.Transcript = sess.Transcript.Without(req.ComponentID)
			return nil
		}
		sess.Transcript = sess.Transcript.Upsert(domain.ConversationEntry{
			Role:    domain.RoleAssistant,
			Content: content,
			ID:      req.ComponentID,
		})
		return nil
	})
}
