/*
Package sqlite provides a SQLite-backed implementation of billing.Store.

PURPOSE:
  Default persistent store for single-node deployments and the store the
  API tests run against. The same statements port to PostgreSQL with
  minor dialect changes (RETURNING and ON CONFLICT are supported by both).

KEY TABLES:
  clients:      Client documents, with the cached totals
  projects:     Authoritative project rows
  invoices:     Invoices; number is UNIQUE
  counters:     One row per sequence key ("invoices:2025")
  adjustments:  Parked client deltas awaiting replay

ATOMICITY:
  Each interface method is one statement or one transaction:
  - NextSequence:          INSERT ... ON CONFLICT DO UPDATE ... RETURNING
  - IncrementClientTotals: UPDATE total = total + ? ... RETURNING
  - UpdateProject:         SELECT + UPDATE in a transaction, pre-image returned
  - DeleteProject:         DELETE ... RETURNING

CONNECTIONS:
  The pool is capped at one connection. SQLite has a single writer anyway,
  and ":memory:" databases are per-connection, so a larger pool would give
  each connection its own empty database.

MONEY AND TIME:
  Amounts are stored as integer cents. Timestamps are stored as fixed-width
  UTC text so lexical order equals chronological order.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - billing/store.go: Interface definitions
  - billing/store/memory.go: In-memory implementation for testing
  - store/mongo: Document store implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/freelancers-dashboard/billing"
)

// timeLayout is RFC 3339 with a fixed nanosecond width.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements billing.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ billing.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		company TEXT NOT NULL DEFAULT '',
		total_projects INTEGER NOT NULL DEFAULT 0,
		total_amount_cents INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_clients_name_company
		ON clients(name, company);
	CREATE INDEX IF NOT EXISTS idx_clients_created
		ON clients(created_at DESC);

	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		client_id TEXT NOT NULL REFERENCES clients(id),
		status TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		deadline TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Recompute and client-delete checks scan by client
	CREATE INDEX IF NOT EXISTS idx_projects_client
		ON projects(client_id);
	CREATE INDEX IF NOT EXISTS idx_projects_created
		ON projects(created_at DESC);

	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL UNIQUE,
		client_id TEXT,
		client_name TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_invoices_status_created
		ON invoices(status, created_at);

	CREATE TABLE IF NOT EXISTS counters (
		key TEXT PRIMARY KEY,
		seq INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS adjustments (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		project_id TEXT NOT NULL,
		delta_projects INTEGER NOT NULL,
		delta_amount_cents INTEGER NOT NULL,
		reason TEXT NOT NULL,
		created_at TEXT NOT NULL,
		applied_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_adjustments_pending
		ON adjustments(created_at) WHERE applied_at IS NULL;
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// COUNTERS
// =============================================================================

// NextSequence increments and returns the counter for key, creating it at 1.
func (s *Store) NextSequence(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var seq int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO counters (key, seq) VALUES (?, 1)
		ON CONFLICT(key) DO UPDATE SET seq = seq + 1
		RETURNING seq
	`, key).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to advance counter %s: %w", key, err)
	}
	return seq, nil
}

// =============================================================================
// CLIENTS
// =============================================================================

const clientColumns = `id, name, email, company, total_projects, total_amount_cents, created_at, updated_at`

func (s *Store) InsertClient(ctx context.Context, c billing.Client) error {
	cents, err := billing.ToCents(c.TotalAmount)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO clients (`+clientColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID, c.Name, c.Email, c.Company,
		c.TotalProjects, cents,
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	)
	if err != nil {
		return clientWriteError(err, c.Email)
	}
	return nil
}

func (s *Store) GetClient(ctx context.Context, id billing.ClientID) (billing.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = ?`, id)
	return scanClient(row)
}

func (s *Store) FindClientDuplicate(ctx context.Context, email, name, company string) (billing.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+clientColumns+` FROM clients
		WHERE email = ? OR (name = ? AND company = ?)
		ORDER BY email = ? DESC
		LIMIT 1
	`, email, name, company, email)
	return scanClient(row)
}

func (s *Store) ListClients(ctx context.Context) ([]billing.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+clientColumns+` FROM clients
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []billing.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// UpdateClient patches the descriptive fields; NULL arguments keep the
// stored value.
func (s *Store) UpdateClient(ctx context.Context, id billing.ClientID, patch billing.ClientPatch, at time.Time) (billing.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `
		UPDATE clients SET
			name = COALESCE(?, name),
			email = COALESCE(?, email),
			company = COALESCE(?, company),
			updated_at = ?
		WHERE id = ?
		RETURNING `+clientColumns,
		nullPtr(patch.Name), nullPtr(patch.Email), nullPtr(patch.Company),
		formatTime(at), id,
	)
	c, err := scanClient(row)
	if err != nil && !errors.Is(err, billing.ErrNotFound) {
		email := ""
		if patch.Email != nil {
			email = *patch.Email
		}
		return billing.Client{}, clientWriteError(err, email)
	}
	return c, err
}

func (s *Store) DeleteClient(ctx context.Context, id billing.ClientID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("client %s is referenced by projects: %w", id, billing.ErrConflict)
		}
		return err
	}
	return requireAffected(result)
}

// IncrementClientTotals adds delta to the stored totals in one statement.
func (s *Store) IncrementClientTotals(ctx context.Context, id billing.ClientID, delta billing.Totals, at time.Time) (billing.Client, error) {
	cents, err := billing.ToCents(delta.Amount)
	if err != nil {
		return billing.Client{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `
		UPDATE clients SET
			total_projects = total_projects + ?,
			total_amount_cents = total_amount_cents + ?,
			updated_at = ?
		WHERE id = ?
		RETURNING `+clientColumns,
		delta.Projects, cents, formatTime(at), id,
	)
	return scanClient(row)
}

func (s *Store) SetClientTotals(ctx context.Context, id billing.ClientID, totals billing.Totals, at time.Time) error {
	cents, err := billing.ToCents(totals.Amount)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `
		UPDATE clients SET total_projects = ?, total_amount_cents = ?, updated_at = ?
		WHERE id = ?
	`, totals.Projects, cents, formatTime(at), id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (s *Store) CountActiveClients(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients WHERE total_projects > 0`).Scan(&n)
	return n, err
}

// =============================================================================
// PROJECTS
// =============================================================================

const projectColumns = `id, name, client_id, status, amount_cents, deadline, created_at, updated_at`

func (s *Store) InsertProject(ctx context.Context, p billing.Project) error {
	cents, err := billing.ToCents(p.Amount)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO projects (`+projectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID, p.Name, p.ClientID, p.Status, cents,
		formatTime(p.Deadline), formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return billing.ErrNotFound
		}
		if isUniqueConstraintError(err) {
			return &billing.DuplicateKeyError{Entity: "project", Field: "id", Value: string(p.ID)}
		}
		return fmt.Errorf("failed to insert project: %w", err)
	}
	return nil
}

func (s *Store) GetProject(ctx context.Context, id billing.ProjectID) (billing.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	return scanProject(row)
}

func (s *Store) ListProjects(ctx context.Context) ([]billing.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+projectColumns+` FROM projects
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []billing.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateProject applies patch and returns the row as it was before.
func (s *Store) UpdateProject(ctx context.Context, id billing.ProjectID, patch billing.ProjectPatch, at time.Time) (billing.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return billing.Project{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	prev, err := scanProject(sqlTx.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if err != nil {
		return billing.Project{}, err
	}

	next := patch.Apply(prev, at)
	cents, err := billing.ToCents(next.Amount)
	if err != nil {
		return billing.Project{}, err
	}
	_, err = sqlTx.ExecContext(ctx, `
		UPDATE projects SET name = ?, client_id = ?, status = ?, amount_cents = ?, deadline = ?, updated_at = ?
		WHERE id = ?
	`,
		next.Name, next.ClientID, next.Status, cents,
		formatTime(next.Deadline), formatTime(next.UpdatedAt), id,
	)
	if err != nil {
		if isForeignKeyError(err) {
			return billing.Project{}, billing.ErrNotFound
		}
		return billing.Project{}, fmt.Errorf("failed to update project: %w", err)
	}

	if err := sqlTx.Commit(); err != nil {
		return billing.Project{}, err
	}
	return prev, nil
}

// DeleteProject removes the row and returns it.
func (s *Store) DeleteProject(ctx context.Context, id billing.ProjectID) (billing.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `DELETE FROM projects WHERE id = ? RETURNING `+projectColumns, id)
	return scanProject(row)
}

func (s *Store) CountProjects(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&n)
	return n, err
}

func (s *Store) CountProjectsByClient(ctx context.Context, id billing.ClientID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects WHERE client_id = ?`, id).Scan(&n)
	return n, err
}

func (s *Store) SumProjectsByClient(ctx context.Context) (map[billing.ClientID]billing.Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT client_id, COUNT(*), COALESCE(SUM(amount_cents), 0)
		FROM projects
		GROUP BY client_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[billing.ClientID]billing.Totals)
	for rows.Next() {
		var (
			id    string
			count int64
			cents int64
		)
		if err := rows.Scan(&id, &count, &cents); err != nil {
			return nil, err
		}
		out[billing.ClientID(id)] = billing.Totals{Projects: count, Amount: billing.FromCents(cents)}
	}
	return out, rows.Err()
}

// =============================================================================
// INVOICES
// =============================================================================

const invoiceColumns = `id, number, client_id, client_name, amount_cents, status, created_at, updated_at`

func (s *Store) InsertInvoice(ctx context.Context, inv billing.Invoice) error {
	cents, err := billing.ToCents(inv.Amount)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		inv.ID, inv.Number, nullString(string(inv.ClientID)), inv.ClientName,
		cents, inv.Status,
		formatTime(inv.CreatedAt), formatTime(inv.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) && strings.Contains(err.Error(), "invoices.number") {
			return &billing.DuplicateKeyError{Entity: "invoice", Field: "number", Value: inv.Number}
		}
		return fmt.Errorf("failed to insert invoice: %w", err)
	}
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, id billing.InvoiceID) (billing.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id)
	return scanInvoice(row)
}

func (s *Store) ListInvoices(ctx context.Context) ([]billing.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		ORDER BY created_at DESC, number DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []billing.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (s *Store) UpdateInvoice(ctx context.Context, id billing.InvoiceID, patch billing.InvoicePatch, at time.Time) (billing.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// client_id is set whenever client_name is, an empty id clearing it.
	setClient := patch.ClientID != nil
	var clientID sql.NullString
	if setClient {
		clientID = nullString(string(*patch.ClientID))
	}
	var amount sql.NullInt64
	if patch.Amount != nil {
		cents, err := billing.ToCents(*patch.Amount)
		if err != nil {
			return billing.Invoice{}, err
		}
		amount = sql.NullInt64{Int64: cents, Valid: true}
	}
	var status sql.NullString
	if patch.Status != nil {
		status = nullString(string(*patch.Status))
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE invoices SET
			client_id = CASE WHEN ? THEN ? ELSE client_id END,
			client_name = COALESCE(?, client_name),
			amount_cents = COALESCE(?, amount_cents),
			status = COALESCE(?, status),
			updated_at = ?
		WHERE id = ?
		RETURNING `+invoiceColumns,
		setClient, clientID, nullPtr(patch.ClientName), amount, status, formatTime(at), id,
	)
	return scanInvoice(row)
}

func (s *Store) DeleteInvoice(ctx context.Context, id billing.InvoiceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (s *Store) CountInvoices(ctx context.Context, status billing.InvoiceStatus) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM invoices WHERE status = ?`, status).Scan(&n)
	return n, err
}

// SumInvoices totals invoices with status created in [from, to).
func (s *Store) SumInvoices(ctx context.Context, status billing.InvoiceStatus, from, to time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cents int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM invoices
		WHERE status = ? AND created_at >= ? AND created_at < ?
	`, status, formatTime(from), formatTime(to)).Scan(&cents)
	if err != nil {
		return decimal.Zero, err
	}
	return billing.FromCents(cents), nil
}

// =============================================================================
// ADJUSTMENT LOG
// =============================================================================

// AppendAdjustments parks adjustments atomically.
func (s *Store) AppendAdjustments(ctx context.Context, adjs []billing.Adjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, adj := range adjs {
		cents, err := billing.ToCents(adj.Delta.Amount)
		if err != nil {
			return err
		}
		_, err = sqlTx.ExecContext(ctx, `
			INSERT INTO adjustments
			(id, client_id, project_id, delta_projects, delta_amount_cents, reason, created_at, applied_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			adj.ID, adj.ClientID, adj.ProjectID,
			adj.Delta.Projects, cents,
			adj.Reason, formatTime(adj.CreatedAt), nullTime(adj.AppliedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to append adjustment: %w", err)
		}
	}

	return sqlTx.Commit()
}

func (s *Store) PendingAdjustments(ctx context.Context, limit int) ([]billing.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_id, project_id, delta_projects, delta_amount_cents, reason, created_at
		FROM adjustments
		WHERE applied_at IS NULL
		ORDER BY created_at, rowid
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var adjs []billing.Adjustment
	for rows.Next() {
		var (
			adj       billing.Adjustment
			cents     int64
			createdAt string
		)
		if err := rows.Scan(&adj.ID, &adj.ClientID, &adj.ProjectID, &adj.Delta.Projects,
			&cents, &adj.Reason, &createdAt); err != nil {
			return nil, err
		}
		adj.Delta.Amount = billing.FromCents(cents)
		adj.CreatedAt = parseTime(createdAt)
		adjs = append(adjs, adj)
	}
	return adjs, rows.Err()
}

func (s *Store) MarkAdjustmentApplied(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `UPDATE adjustments SET applied_at = ? WHERE id = ?`, formatTime(at), id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// =============================================================================
// SCANNING
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanClient(row scanner) (billing.Client, error) {
	var (
		c                    billing.Client
		cents                int64
		createdAt, updatedAt string
	)
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Company, &c.TotalProjects, &cents, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return billing.Client{}, billing.ErrNotFound
	}
	if err != nil {
		return billing.Client{}, err
	}
	c.TotalAmount = billing.FromCents(cents)
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return c, nil
}

func scanProject(row scanner) (billing.Project, error) {
	var (
		p                              billing.Project
		cents                          int64
		deadline, createdAt, updatedAt string
	)
	err := row.Scan(&p.ID, &p.Name, &p.ClientID, &p.Status, &cents, &deadline, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return billing.Project{}, billing.ErrNotFound
	}
	if err != nil {
		return billing.Project{}, err
	}
	p.Amount = billing.FromCents(cents)
	p.Deadline = parseTime(deadline)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

func scanInvoice(row scanner) (billing.Invoice, error) {
	var (
		inv                  billing.Invoice
		clientID             sql.NullString
		cents                int64
		createdAt, updatedAt string
	)
	err := row.Scan(&inv.ID, &inv.Number, &clientID, &inv.ClientName, &cents, &inv.Status, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return billing.Invoice{}, billing.ErrNotFound
	}
	if err != nil {
		return billing.Invoice{}, err
	}
	inv.ClientID = billing.ClientID(clientID.String)
	inv.Amount = billing.FromCents(cents)
	inv.CreatedAt = parseTime(createdAt)
	inv.UpdatedAt = parseTime(updatedAt)
	return inv, nil
}

// Helper functions

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return billing.ErrNotFound
	}
	return nil
}

func clientWriteError(err error, email string) error {
	if isUniqueConstraintError(err) && strings.Contains(err.Error(), "clients.email") {
		return &billing.DuplicateKeyError{Entity: "client", Field: "email", Value: email}
	}
	return fmt.Errorf("failed to write client: %w", err)
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
