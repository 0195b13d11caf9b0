package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/chemspyd-core/internal/channel"
	"github.com/nerrad567/chemspyd-core/internal/zone"
)

const (
	defaultLimit = 50
	maxLimit     = 500

	// observerTimeout bounds journal writes made from channel callbacks.
	observerTimeout = 2 * time.Second

	// timeLayout is fixed width so stored timestamps sort as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Logger defines the logging interface used by the journal.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Entry is one journaled command.
type Entry struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Args        []channel.Arg `json:"args"`
	Simulated   bool          `json:"simulated"`
	PostedAt    time.Time     `json:"posted_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
}

// Done reports whether the command has finished, successfully or not.
func (e Entry) Done() bool {
	return e.CompletedAt != nil
}

// SQLiteRepository stores the command journal and quantity ledger.
//
// It implements channel.Observer, so attaching it to a Channel journals
// every command, and controller.QuantityRecorder.
type SQLiteRepository struct {
	db     *sql.DB
	logger Logger
	now    func() time.Time
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{
		db:     db,
		logger: noopLogger{},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetLogger sets the logger used for failed observer writes.
func (r *SQLiteRepository) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// RecordCommand inserts a posted command.
//
// Returns:
//   - error: If the id is missing, the arguments cannot be encoded or the
//     insert fails (including a duplicate id)
func (r *SQLiteRepository) RecordCommand(ctx context.Context, cmd channel.Command) error {
	if cmd.ID == "" {
		return fmt.Errorf("command id is required")
	}
	args, err := encodeArgs(cmd.Args)
	if err != nil {
		return err
	}
	posted := cmd.PostedAt
	if posted.IsZero() {
		posted = r.now()
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO commands (id, name, args, simulated, posted_at) VALUES (?, ?, ?, ?, ?)`,
		cmd.ID, cmd.Name, args, boolInt(cmd.Simulated), formatTime(posted),
	)
	if err != nil {
		return fmt.Errorf("inserting command: %w", err)
	}
	return nil
}

// MarkStarted records when the controller accepted a command.
func (r *SQLiteRepository) MarkStarted(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE commands SET started_at = ? WHERE id = ?`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("updating command: %w", err)
	}
	return expectRow(res, id)
}

// CompleteCommand records the outcome of a command. A command that was
// never recorded as posted is inserted.
func (r *SQLiteRepository) CompleteCommand(ctx context.Context, cmd channel.Command, cmdErr error) error {
	if cmd.ID == "" {
		return fmt.Errorf("command id is required")
	}
	args, err := encodeArgs(cmd.Args)
	if err != nil {
		return err
	}
	completed := r.now()
	posted := cmd.PostedAt
	if posted.IsZero() {
		posted = completed
	}
	var started, errText any
	if !cmd.StartedAt.IsZero() {
		started = formatTime(cmd.StartedAt)
	}
	if cmdErr != nil {
		errText = cmdErr.Error()
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO commands (id, name, args, simulated, posted_at, started_at, completed_at, duration_ms, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     started_at   = COALESCE(excluded.started_at, commands.started_at),
		     completed_at = excluded.completed_at,
		     duration_ms  = excluded.duration_ms,
		     error        = excluded.error`,
		cmd.ID, cmd.Name, args, boolInt(cmd.Simulated), formatTime(posted),
		started, formatTime(completed), cmd.Duration.Milliseconds(), errText,
	)
	if err != nil {
		return fmt.Errorf("completing command: %w", err)
	}
	return nil
}

// RecentCommands returns journaled commands, newest first.
//
// Parameters:
//   - limit: Maximum entries (default 50, capped at 500)
//   - name: Only commands with this name; empty for all
func (r *SQLiteRepository) RecentCommands(ctx context.Context, limit int, name string) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	query := `SELECT id, name, args, simulated, posted_at, started_at, completed_at, duration_ms, error
	          FROM commands`
	params := []any{}
	if name != "" {
		query += ` WHERE name = ?`
		params = append(params, name)
	}
	query += ` ORDER BY posted_at DESC, rowid DESC LIMIT ?`
	params = append(params, limit)

	rows, err := r.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("querying commands: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating commands: %w", err)
	}
	return entries, nil
}

// PruneCommands deletes commands posted more than olderThan ago.
func (r *SQLiteRepository) PruneCommands(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}
	cutoff := formatTime(r.now().Add(-olderThan))
	res, err := r.db.ExecContext(ctx, `DELETE FROM commands WHERE posted_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting commands: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// PruneQuantities deletes ledger rows recorded more than olderThan ago.
// The newest row of every well is always kept, so LatestQuantities returns
// the same result before and after pruning.
func (r *SQLiteRepository) PruneQuantities(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}
	cutoff := formatTime(r.now().Add(-olderThan))
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM quantities
		 WHERE recorded_at < ?
		   AND id NOT IN (SELECT MAX(id) FROM quantities GROUP BY element, well_index)`,
		cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting quantities: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// Prune applies one retention period to the command journal and the
// quantity ledger.
//
// Returns:
//   - int64: Total rows removed from both tables
//   - error: If either delete fails
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	commands, err := r.PruneCommands(ctx, olderThan)
	if err != nil {
		return 0, err
	}
	ledger, err := r.PruneQuantities(ctx, olderThan)
	if err != nil {
		return commands, err
	}
	return commands + ledger, nil
}

// RecordQuantities appends one ledger row per snapshot in a single
// transaction.
func (r *SQLiteRepository) RecordQuantities(ctx context.Context, snaps []zone.QuantitySnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO quantities (element, well_index, quantity, recorded_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	at := formatTime(r.now())
	for _, s := range snaps {
		if _, err := stmt.ExecContext(ctx, s.Element, s.Index, s.Quantity, at); err != nil {
			return fmt.Errorf("inserting quantity for %s:%d: %w", s.Element, s.Index, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing quantities: %w", err)
	}
	return nil
}

// LatestQuantities returns the most recent ledger value of every well,
// ordered by element and index. The result can be passed to
// zone.Registry.Restore.
func (r *SQLiteRepository) LatestQuantities(ctx context.Context) ([]zone.QuantitySnapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT q.element, q.well_index, q.quantity
		 FROM quantities q
		 JOIN (SELECT element, well_index, MAX(id) AS id FROM quantities GROUP BY element, well_index) latest
		   ON latest.id = q.id
		 ORDER BY q.element, q.well_index`)
	if err != nil {
		return nil, fmt.Errorf("querying quantities: %w", err)
	}
	defer rows.Close()

	var out []zone.QuantitySnapshot
	for rows.Next() {
		var s zone.QuantitySnapshot
		if err := rows.Scan(&s.Element, &s.Index, &s.Quantity); err != nil {
			return nil, fmt.Errorf("scanning quantity: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating quantities: %w", err)
	}
	return out, nil
}

// CommandPosted implements channel.Observer.
func (r *SQLiteRepository) CommandPosted(cmd channel.Command) {
	ctx, cancel := context.WithTimeout(context.Background(), observerTimeout)
	defer cancel()
	if err := r.RecordCommand(ctx, cmd); err != nil {
		r.logger.Error("journal: recording command failed", "command", cmd.Name, "id", cmd.ID, "error", err)
	}
}

// CommandStarted implements channel.Observer.
func (r *SQLiteRepository) CommandStarted(cmd channel.Command) {
	ctx, cancel := context.WithTimeout(context.Background(), observerTimeout)
	defer cancel()
	if err := r.MarkStarted(ctx, cmd.ID, cmd.StartedAt); err != nil {
		r.logger.Error("journal: marking command started failed", "command", cmd.Name, "id", cmd.ID, "error", err)
	}
}

// CommandCompleted implements channel.Observer.
func (r *SQLiteRepository) CommandCompleted(cmd channel.Command, cmdErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), observerTimeout)
	defer cancel()
	if err := r.CompleteCommand(ctx, cmd, cmdErr); err != nil {
		r.logger.Error("journal: completing command failed", "command", cmd.Name, "id", cmd.ID, "error", err)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e                  Entry
		args, posted       string
		simulated          int
		started, completed sql.NullString
		durationMS         sql.NullInt64
		errText            sql.NullString
	)
	if err := s.Scan(&e.ID, &e.Name, &args, &simulated, &posted, &started, &completed, &durationMS, &errText); err != nil {
		return Entry{}, fmt.Errorf("scanning command: %w", err)
	}
	if err := json.Unmarshal([]byte(args), &e.Args); err != nil {
		return Entry{}, fmt.Errorf("decoding arguments of %s: %w", e.ID, err)
	}
	e.Simulated = simulated != 0

	var err error
	if e.PostedAt, err = parseTime(posted); err != nil {
		return Entry{}, err
	}
	if e.StartedAt, err = parseNullTime(started); err != nil {
		return Entry{}, err
	}
	if e.CompletedAt, err = parseNullTime(completed); err != nil {
		return Entry{}, err
	}
	e.Duration = time.Duration(durationMS.Int64) * time.Millisecond
	e.Error = errText.String
	return e, nil
}

func encodeArgs(args []channel.Arg) (string, error) {
	if args == nil {
		args = []channel.Arg{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("encoding arguments: %w", err)
	}
	return string(data), nil
}

func expectRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
