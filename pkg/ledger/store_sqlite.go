package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists ledger state in a local SQLite database. Save replaces
// the agent's rows in a single transaction, so a reader never observes a
// half-written ledger.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates/opens the ledger database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One ledger writer per process. A single shared connection avoids
	// writer lock contention with SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS ledger_meta (
			agent_id TEXT PRIMARY KEY,
			next_sequence INTEGER NOT NULL DEFAULT 0,
			last_success_at_ms INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS action_history (
			id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			sequence INTEGER NOT NULL,
			timestamp_ms INTEGER NOT NULL,
			action TEXT NOT NULL,
			target TEXT NOT NULL DEFAULT '',
			data TEXT NOT NULL DEFAULT '',
			result_json TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS action_history_agent_idx ON action_history(agent_id, sequence);`,
		`CREATE TABLE IF NOT EXISTS activity_actions (
			agent_id TEXT NOT NULL,
			action TEXT NOT NULL,
			record_json TEXT NOT NULL,
			PRIMARY KEY (agent_id, action)
		);`,
		`CREATE TABLE IF NOT EXISTS content_hashes (
			agent_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			hash INTEGER NOT NULL,
			PRIMARY KEY (agent_id, position)
		);`,
		`CREATE TABLE IF NOT EXISTS cooldown_actions (
			agent_id TEXT NOT NULL,
			cooldown_key TEXT NOT NULL,
			expires_at_ms INTEGER NOT NULL,
			PRIMARY KEY (agent_id, cooldown_key)
		);`,
		`CREATE TABLE IF NOT EXISTS processed_messages (
			agent_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			message_id TEXT NOT NULL,
			PRIMARY KEY (agent_id, position)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init ledger schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, agentID string) (State, error) {
	var st State

	var lastSuccessMS int64
	err := s.db.QueryRowContext(ctx,
		`SELECT next_sequence, last_success_at_ms FROM ledger_meta WHERE agent_id = ?`, agentID).
		Scan(&st.NextSequence, &lastSuccessMS)
	if err == sql.ErrNoRows {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("load ledger meta: %w", err)
	}
	if lastSuccessMS > 0 {
		st.Activity.LastSuccessAt = time.UnixMilli(lastSuccessMS).UTC()
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT sequence, timestamp_ms, action, target, data, result_json, status, error
		 FROM action_history WHERE agent_id = ? ORDER BY sequence ASC`, agentID)
	if err != nil {
		return State{}, fmt.Errorf("load action history: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rec ActionRecord
		var tsMS int64
		var resultJSON string
		if err := rows.Scan(&rec.Sequence, &tsMS, &rec.Action, &rec.Target, &rec.Data, &resultJSON, &rec.Status, &rec.Error); err != nil {
			return State{}, fmt.Errorf("scan action record: %w", err)
		}
		rec.Timestamp = time.UnixMilli(tsMS).UTC()
		if resultJSON != "" {
			rec.Result = json.RawMessage(resultJSON)
		}
		st.ActionHistory = append(st.ActionHistory, rec)
	}
	if err := rows.Err(); err != nil {
		return State{}, fmt.Errorf("iterate action history: %w", err)
	}

	actRows, err := s.db.QueryContext(ctx,
		`SELECT action, record_json FROM activity_actions WHERE agent_id = ?`, agentID)
	if err != nil {
		return State{}, fmt.Errorf("load activity: %w", err)
	}
	defer actRows.Close()
	for actRows.Next() {
		var action, recordJSON string
		if err := actRows.Scan(&action, &recordJSON); err != nil {
			return State{}, fmt.Errorf("scan activity row: %w", err)
		}
		var rec ActionRecord
		if err := json.Unmarshal([]byte(recordJSON), &rec); err != nil {
			return State{}, fmt.Errorf("decode activity record: %w", err)
		}
		if st.Activity.LastActions == nil {
			st.Activity.LastActions = make(map[string]ActionRecord)
		}
		st.Activity.LastActions[action] = rec
	}
	if err := actRows.Err(); err != nil {
		return State{}, fmt.Errorf("iterate activity: %w", err)
	}

	hashRows, err := s.db.QueryContext(ctx,
		`SELECT hash FROM content_hashes WHERE agent_id = ? ORDER BY position ASC`, agentID)
	if err != nil {
		return State{}, fmt.Errorf("load content hashes: %w", err)
	}
	defer hashRows.Close()
	for hashRows.Next() {
		var h int32
		if err := hashRows.Scan(&h); err != nil {
			return State{}, fmt.Errorf("scan content hash: %w", err)
		}
		st.DuplicatePrevention.RecentContentHashes = append(st.DuplicatePrevention.RecentContentHashes, h)
	}
	if err := hashRows.Err(); err != nil {
		return State{}, fmt.Errorf("iterate content hashes: %w", err)
	}

	cdRows, err := s.db.QueryContext(ctx,
		`SELECT cooldown_key, expires_at_ms FROM cooldown_actions WHERE agent_id = ? ORDER BY cooldown_key ASC`, agentID)
	if err != nil {
		return State{}, fmt.Errorf("load cooldowns: %w", err)
	}
	defer cdRows.Close()
	for cdRows.Next() {
		var entry CooldownEntry
		var expMS int64
		if err := cdRows.Scan(&entry.Key, &expMS); err != nil {
			return State{}, fmt.Errorf("scan cooldown: %w", err)
		}
		entry.ExpiresAt = time.UnixMilli(expMS).UTC()
		st.DuplicatePrevention.CooldownActions = append(st.DuplicatePrevention.CooldownActions, entry)
	}
	if err := cdRows.Err(); err != nil {
		return State{}, fmt.Errorf("iterate cooldowns: %w", err)
	}

	msgRows, err := s.db.QueryContext(ctx,
		`SELECT message_id FROM processed_messages WHERE agent_id = ? ORDER BY position ASC`, agentID)
	if err != nil {
		return State{}, fmt.Errorf("load processed messages: %w", err)
	}
	defer msgRows.Close()
	for msgRows.Next() {
		var id string
		if err := msgRows.Scan(&id); err != nil {
			return State{}, fmt.Errorf("scan processed message: %w", err)
		}
		st.ProcessedMessages = append(st.ProcessedMessages, id)
	}
	if err := msgRows.Err(); err != nil {
		return State{}, fmt.Errorf("iterate processed messages: %w", err)
	}

	return st, nil
}

func (s *SQLiteStore) Save(ctx context.Context, agentID string, state State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"action_history", "activity_actions", "content_hashes", "cooldown_actions", "processed_messages"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE agent_id = ?`, agentID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	var lastSuccessMS int64
	if !state.Activity.LastSuccessAt.IsZero() {
		lastSuccessMS = state.Activity.LastSuccessAt.UnixMilli()
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_meta (agent_id, next_sequence, last_success_at_ms) VALUES (?, ?, ?)
		 ON CONFLICT(agent_id) DO UPDATE SET next_sequence = excluded.next_sequence, last_success_at_ms = excluded.last_success_at_ms`,
		agentID, state.NextSequence, lastSuccessMS); err != nil {
		return fmt.Errorf("save ledger meta: %w", err)
	}

	for _, rec := range state.ActionHistory {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO action_history (id, agent_id, sequence, timestamp_ms, action, target, data, result_json, status, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), agentID, rec.Sequence, rec.Timestamp.UnixMilli(),
			rec.Action, rec.Target, rec.Data, string(rec.Result), string(rec.Status), rec.Error); err != nil {
			return fmt.Errorf("save action record: %w", err)
		}
	}

	for action, rec := range state.Activity.LastActions {
		recordJSON, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode activity record: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO activity_actions (agent_id, action, record_json) VALUES (?, ?, ?)`,
			agentID, action, string(recordJSON)); err != nil {
			return fmt.Errorf("save activity record: %w", err)
		}
	}

	for i, h := range state.DuplicatePrevention.RecentContentHashes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO content_hashes (agent_id, position, hash) VALUES (?, ?, ?)`,
			agentID, i, h); err != nil {
			return fmt.Errorf("save content hash: %w", err)
		}
	}

	for _, entry := range state.DuplicatePrevention.CooldownActions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cooldown_actions (agent_id, cooldown_key, expires_at_ms) VALUES (?, ?, ?)`,
			agentID, entry.Key, entry.ExpiresAt.UnixMilli()); err != nil {
			return fmt.Errorf("save cooldown: %w", err)
		}
	}

	for i, id := range state.ProcessedMessages {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO processed_messages (agent_id, position, message_id) VALUES (?, ?, ?)`,
			agentID, i, id); err != nil {
			return fmt.Errorf("save processed message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger save: %w", err)
	}
	return nil
}
