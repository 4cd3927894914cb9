package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lawrencecchen/autobuild/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			version INTEGER NOT NULL DEFAULT 0,
			active_turn_id TEXT,
			transcript TEXT NOT NULL DEFAULT '[]',
			ui TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE TABLE IF NOT EXISTS turns (
			turn_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			status TEXT NOT NULL,
			tool_name TEXT,
			ui_entry_id INTEGER NOT NULL,
			started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			ended_at DATETIME,
			error TEXT,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, started_at)`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			turn_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			type TEXT NOT NULL,
			payload TEXT,
			FOREIGN KEY (turn_id) REFERENCES turns(turn_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_turn ON events(turn_id, ts)`,
		`CREATE TABLE IF NOT EXISTS query_confirmations (
			confirmation_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			turn_id TEXT NOT NULL,
			ui_entry_id INTEGER NOT NULL,
			query_key TEXT,
			sql TEXT NOT NULL,
			params TEXT,
			status TEXT NOT NULL DEFAULT 'PENDING',
			reason TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			decided_at DATETIME,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id),
			FOREIGN KEY (turn_id) REFERENCES turns(turn_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_confirmations_status_created ON query_confirmations(status, created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSession creates a new session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	transcript, ui, err := encodeLogs(session)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, user_id, created_at, updated_at, version, active_turn_id, transcript, ui) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.SessionID, session.UserID, session.CreatedAt.UTC(), session.UpdatedAt.UTC(), session.Version,
		nullString(session.ActiveTurnID), transcript, ui)
	return err
}

// GetSession retrieves a session snapshot by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var session domain.Session
	var activeTurnID sql.NullString
	var transcript, ui string
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, user_id, created_at, updated_at, version, active_turn_id, transcript, ui FROM sessions WHERE session_id = ?`,
		sessionID).Scan(&session.SessionID, &session.UserID, &session.CreatedAt, &session.UpdatedAt, &session.Version,
		&activeTurnID, &transcript, &ui)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if activeTurnID.Valid {
		session.ActiveTurnID = activeTurnID.String
	}
	if err := json.Unmarshal([]byte(transcript), &session.Transcript); err != nil {
		return nil, fmt.Errorf("failed to decode transcript: %w", err)
	}
	if err := json.Unmarshal([]byte(ui), &session.UI); err != nil {
		return nil, fmt.Errorf("failed to decode ui: %w", err)
	}
	return &session, nil
}

// SaveSession replaces the stored snapshot when its version is prevVersion.
func (s *SQLiteStore) SaveSession(ctx context.Context, session *domain.Session, prevVersion int64) error {
	transcript, ui, err := encodeLogs(session)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ?, version = ?, active_turn_id = ?, transcript = ?, ui = ? WHERE session_id = ? AND version = ?`,
		session.UpdatedAt.UTC(), session.Version, nullString(session.ActiveTurnID), transcript, ui, session.SessionID, prevVersion)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrVersionConflict
	}
	return nil
}

func encodeLogs(session *domain.Session) (string, string, error) {
	transcript := session.Transcript
	if transcript == nil {
		transcript = domain.Transcript{}
	}
	ui := session.UI
	if ui == nil {
		ui = domain.UIList{}
	}
	t, err := json.Marshal(transcript)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode transcript: %w", err)
	}
	u, err := json.Marshal(ui)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode ui: %w", err)
	}
	return string(t), string(u), nil
}

// CreateTurn creates a new turn.
func (s *SQLiteStore) CreateTurn(ctx context.Context, turn *domain.Turn) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (turn_id, session_id, status, tool_name, ui_entry_id, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		turn.TurnID, turn.SessionID, turn.Status, nullString(turn.ToolName), turn.UIEntryID, turn.StartedAt.UTC())
	return err
}

const turnColumns = `turn_id, session_id, status, tool_name, ui_entry_id, started_at, ended_at, error`

func scanTurn(scan func(dest ...interface{}) error) (*domain.Turn, error) {
	var turn domain.Turn
	var toolName, errData sql.NullString
	var endedAt sql.NullTime
	if err := scan(&turn.TurnID, &turn.SessionID, &turn.Status, &toolName, &turn.UIEntryID, &turn.StartedAt, &endedAt, &errData); err != nil {
		return nil, err
	}
	if toolName.Valid {
		turn.ToolName = toolName.String
	}
	if endedAt.Valid {
		turn.EndedAt = &endedAt.Time
	}
	if errData.Valid {
		turn.Error = json.RawMessage(errData.String)
	}
	return &turn, nil
}

// GetTurn retrieves a turn by ID.
func (s *SQLiteStore) GetTurn(ctx context.Context, turnID string) (*domain.Turn, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+turnColumns+` FROM turns WHERE turn_id = ?`, turnID)
	turn, err := scanTurn(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return turn, err
}

// ListTurns lists a session's turns, oldest first.
func (s *SQLiteStore) ListTurns(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+turnColumns+` FROM turns WHERE session_id = ? ORDER BY started_at ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		turn, err := scanTurn(rows.Scan)
		if err != nil {
			return nil, err
		}
		turns = append(turns, *turn)
	}
	return turns, rows.Err()
}

// ListUnsettledTurns lists turns that never ended, oldest first.
func (s *SQLiteStore) ListUnsettledTurns(ctx context.Context) ([]domain.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+turnColumns+` FROM turns WHERE ended_at IS NULL ORDER BY started_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		turn, err := scanTurn(rows.Scan)
		if err != nil {
			return nil, err
		}
		turns = append(turns, *turn)
	}
	return turns, rows.Err()
}

// UpdateTurnStatus updates the status of a turn that has not ended.
func (s *SQLiteStore) UpdateTurnStatus(ctx context.Context, turnID string, status domain.TurnStatus, toolName string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE turns SET status = ?, tool_name = COALESCE(?, tool_name) WHERE turn_id = ? AND ended_at IS NULL`,
		status, nullString(toolName), turnID)
	return err
}

// UpdateTurnCompleted marks a turn as ended.
func (s *SQLiteStore) UpdateTurnCompleted(ctx context.Context, turnID string, status domain.TurnStatus, errData []byte) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`UPDATE turns SET status = ?, ended_at = ?, error = ? WHERE turn_id = ? AND ended_at IS NULL`,
		status, now, nullStringBytes(errData), turnID)
	return err
}

// CreateEvent creates a new event.
func (s *SQLiteStore) CreateEvent(ctx context.Context, event *domain.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (event_id, turn_id, ts, type, payload) VALUES (?, ?, ?, ?, ?)`,
		event.EventID, event.TurnID, event.Ts, event.Type, nullStringBytes(event.Payload))
	return err
}

// GetEvents retrieves events for a turn.
func (s *SQLiteStore) GetEvents(ctx context.Context, turnID string, afterTs int64, types []string, limit int) ([]domain.Event, error) {
	query := `SELECT event_id, turn_id, ts, type, payload FROM events WHERE turn_id = ?`
	args := []interface{}{turnID}

	if afterTs > 0 {
		query += ` AND ts > ?`
		args = append(args, afterTs)
	}

	if len(types) > 0 {
		placeholders := make([]string, len(types))
		for i, t := range types {
			placeholders[i] = "?"
			args = append(args, t)
		}
		query += fmt.Sprintf(" AND type IN (%s)", strings.Join(placeholders, ","))
	}

	query += ` ORDER BY ts ASC, rowid ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var event domain.Event
		var payload sql.NullString
		if err := rows.Scan(&event.EventID, &event.TurnID, &event.Ts, &event.Type, &payload); err != nil {
			return nil, err
		}
		if payload.Valid {
			event.Payload = json.RawMessage(payload.String)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// CreateConfirmation creates a pending query confirmation.
func (s *SQLiteStore) CreateConfirmation(ctx context.Context, c *domain.QueryConfirmation) error {
	params, err := json.Marshal(c.Params)
	if err != nil {
		return fmt.Errorf("failed to encode params: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO query_confirmations (confirmation_id, session_id, turn_id, ui_entry_id, query_key, sql, params, status, reason, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ConfirmationID, c.SessionID, c.TurnID, c.UIEntryID, c.QueryKey, c.SQL, string(params), c.Status, nullString(c.Reason), c.CreatedAt.UTC())
	return err
}

const confirmationColumns = `confirmation_id, session_id, turn_id, ui_entry_id, query_key, sql, params, status, reason, created_at, decided_at`

func scanConfirmation(scan func(dest ...interface{}) error) (*domain.QueryConfirmation, error) {
	var c domain.QueryConfirmation
	var queryKey, params, reason sql.NullString
	var decidedAt sql.NullTime
	if err := scan(&c.ConfirmationID, &c.SessionID, &c.TurnID, &c.UIEntryID, &queryKey, &c.SQL, &params, &c.Status, &reason, &c.CreatedAt, &decidedAt); err != nil {
		return nil, err
	}
	c.QueryKey = queryKey.String
	c.Reason = reason.String
	if params.Valid && params.String != "" {
		if err := json.Unmarshal([]byte(params.String), &c.Params); err != nil {
			return nil, fmt.Errorf("failed to decode params: %w", err)
		}
	}
	if decidedAt.Valid {
		c.DecidedAt = &decidedAt.Time
	}
	return &c, nil
}

// GetConfirmation retrieves a confirmation by ID.
func (s *SQLiteStore) GetConfirmation(ctx context.Context, confirmationID string) (*domain.QueryConfirmation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+confirmationColumns+` FROM query_confirmations WHERE confirmation_id = ?`, confirmationID)
	c, err := scanConfirmation(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// DecideConfirmation moves a pending confirmation to status.
func (s *SQLiteStore) DecideConfirmation(ctx context.Context, confirmationID string, status domain.ConfirmationStatus, reason string) (bool, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE query_confirmations SET status = ?, decided_at = ?, reason = COALESCE(?, reason) WHERE confirmation_id = ? AND status = ?`,
		status, now, nullString(reason), confirmationID, domain.ConfirmationStatusPending)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListExpiredConfirmations lists pending confirmations older than timeout.
func (s *SQLiteStore) ListExpiredConfirmations(ctx context.Context, timeout time.Duration, limit int) ([]domain.QueryConfirmation, error) {
	cutoff := time.Now().UTC().Add(-timeout)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+confirmationColumns+`
		FROM query_confirmations
		WHERE status = ?
		  AND julianday(created_at) <= julianday(?)
		ORDER BY created_at ASC
		LIMIT ?
	`, domain.ConfirmationStatusPending, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.QueryConfirmation
	for rows.Next() {
		c, err := scanConfirmation(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
