package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Epistemic-Technology/rfp-mcp/internal/logger"
	"github.com/Epistemic-Technology/rfp-mcp/models"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	q   queries
	log logger.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(dbPath string, log logger.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer avoids SQLITE_BUSY between concurrent tool calls.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, q: newQueries(sq.Question), log: log.With("storage")}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the database tables if they don't exist
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS proposals (
		id TEXT PRIMARY KEY,
		client_name TEXT NOT NULL DEFAULT '',
		proposal_name TEXT NOT NULL DEFAULT '',
		format TEXT NOT NULL DEFAULT '',
		currency TEXT NOT NULL DEFAULT '',
		source_document TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS screens (
		proposal_id TEXT NOT NULL,
		screen_index INTEGER NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		pixel_pitch_mm REAL,
		width_ft REAL,
		height_ft REAL,
		quantity INTEGER,
		area_sq_ft REAL,
		service_type TEXT,
		product_type TEXT,
		is_curved BOOLEAN,
		cost_per_sq_ft REAL,
		margin_pct REAL,
		source_kind TEXT NOT NULL DEFAULT '',
		source_sheet TEXT NOT NULL DEFAULT '',
		source_row INTEGER NOT NULL DEFAULT 0,
		source_citation TEXT NOT NULL DEFAULT '',
		confidence TEXT NOT NULL DEFAULT '{}',
		PRIMARY KEY (proposal_id, screen_index),
		FOREIGN KEY (proposal_id) REFERENCES proposals(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS screen_audits (
		proposal_id TEXT NOT NULL,
		screen_index INTEGER NOT NULL,
		hardware REAL NOT NULL,
		structure REAL NOT NULL,
		install REAL NOT NULL,
		labor REAL NOT NULL,
		pm REAL NOT NULL,
		shipping REAL NOT NULL,
		total_cost REAL NOT NULL,
		margin REAL NOT NULL,
		sell_price REAL NOT NULL,
		bond REAL NOT NULL,
		final_total REAL NOT NULL,
		area_sq_ft REAL NOT NULL,
		price_per_sq_ft REAL NOT NULL,
		PRIMARY KEY (proposal_id, screen_index),
		FOREIGN KEY (proposal_id, screen_index) REFERENCES screens(proposal_id, screen_index) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_proposals_created_at ON proposals(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveProposal stores a proposal and returns its ID
func (s *SQLiteStore) SaveProposal(ctx context.Context, p *models.Proposal) (string, error) {
	prepare(p)
	stmts, err := s.q.saveStatements(p)
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, st := range stmts {
		if _, err := tx.ExecContext(ctx, st.sql, st.args...); err != nil {
			return "", fmt.Errorf("failed to save proposal %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Debug("Saved proposal %s with %d screens", p.ID, len(p.Screens))
	return p.ID, nil
}

// GetProposal retrieves a proposal by ID
func (s *SQLiteStore) GetProposal(ctx context.Context, id string) (*models.Proposal, error) {
	st, err := s.q.selectProposal(id)
	if err != nil {
		return nil, err
	}
	var p models.Proposal
	err = scanProposal(s.db.QueryRowContext(ctx, st.sql, st.args...), &p)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query proposal: %w", err)
	}

	screens, order, err := s.screens(ctx, id)
	if err != nil {
		return nil, err
	}
	audits, err := s.audits(ctx, id)
	if err != nil {
		return nil, err
	}
	assemble(&p, screens, audits, order)
	return &p, nil
}

func (s *SQLiteStore) screens(ctx context.Context, id string) (map[int]models.ScreenRecord, []int, error) {
	st, err := s.q.selectScreens(id)
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.db.QueryContext(ctx, st.sql, st.args...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query screens: %w", err)
	}
	defer rows.Close()

	screens := make(map[int]models.ScreenRecord)
	var order []int
	for rows.Next() {
		idx, screen, err := scanScreen(rows)
		if err != nil {
			return nil, nil, err
		}
		screens[idx] = screen
		order = append(order, idx)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating screens: %w", err)
	}
	return screens, order, nil
}

func (s *SQLiteStore) audits(ctx context.Context, id string) (map[int]models.ScreenAudit, error) {
	st, err := s.q.selectAudits(id)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, st.sql, st.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audits: %w", err)
	}
	defer rows.Close()

	audits := make(map[int]models.ScreenAudit)
	for rows.Next() {
		idx, audit, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		audits[idx] = audit
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audits: %w", err)
	}
	return audits, nil
}

// ListProposals returns a list of all stored proposals
func (s *SQLiteStore) ListProposals(ctx context.Context) ([]models.ProposalInfo, error) {
	st, err := s.q.listProposals()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, st.sql, st.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query proposals: %w", err)
	}
	defer rows.Close()

	var proposals []models.ProposalInfo
	for rows.Next() {
		info, err := scanInfo(rows)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating proposals: %w", err)
	}
	return proposals, nil
}

// DeleteProposal removes a proposal and all associated data
func (s *SQLiteStore) DeleteProposal(ctx context.Context, id string) error {
	stmts, err := s.q.deleteStatements(id)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var result sql.Result
	for _, st := range stmts {
		if result, err = tx.ExecContext(ctx, st.sql, st.args...); err != nil {
			return fmt.Errorf("failed to delete proposal: %w", err)
		}
	}

	// result belongs to the final statement, the proposals row itself.
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return tx.Commit()
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
