package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Epistemic-Technology/rfp-mcp/internal/logger"
	"github.com/Epistemic-Technology/rfp-mcp/models"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS proposals (
		id TEXT PRIMARY KEY,
		client_name TEXT NOT NULL DEFAULT '',
		proposal_name TEXT NOT NULL DEFAULT '',
		format TEXT NOT NULL DEFAULT '',
		currency TEXT NOT NULL DEFAULT '',
		source_document TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS screens (
		proposal_id TEXT NOT NULL REFERENCES proposals(id) ON DELETE CASCADE,
		screen_index INTEGER NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		pixel_pitch_mm DOUBLE PRECISION,
		width_ft DOUBLE PRECISION,
		height_ft DOUBLE PRECISION,
		quantity INTEGER,
		area_sq_ft DOUBLE PRECISION,
		service_type TEXT,
		product_type TEXT,
		is_curved BOOLEAN,
		cost_per_sq_ft DOUBLE PRECISION,
		margin_pct DOUBLE PRECISION,
		source_kind TEXT NOT NULL DEFAULT '',
		source_sheet TEXT NOT NULL DEFAULT '',
		source_row INTEGER NOT NULL DEFAULT 0,
		source_citation TEXT NOT NULL DEFAULT '',
		confidence TEXT NOT NULL DEFAULT '{}',
		PRIMARY KEY (proposal_id, screen_index)
	)`,
	`CREATE TABLE IF NOT EXISTS screen_audits (
		proposal_id TEXT NOT NULL,
		screen_index INTEGER NOT NULL,
		hardware DOUBLE PRECISION NOT NULL,
		structure DOUBLE PRECISION NOT NULL,
		install DOUBLE PRECISION NOT NULL,
		labor DOUBLE PRECISION NOT NULL,
		pm DOUBLE PRECISION NOT NULL,
		shipping DOUBLE PRECISION NOT NULL,
		total_cost DOUBLE PRECISION NOT NULL,
		margin DOUBLE PRECISION NOT NULL,
		sell_price DOUBLE PRECISION NOT NULL,
		bond DOUBLE PRECISION NOT NULL,
		final_total DOUBLE PRECISION NOT NULL,
		area_sq_ft DOUBLE PRECISION NOT NULL,
		price_per_sq_ft DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (proposal_id, screen_index),
		FOREIGN KEY (proposal_id, screen_index) REFERENCES screens(proposal_id, screen_index) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_proposals_created_at ON proposals(created_at)`,
}

// PostgresStore implements the Store interface on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	q    queries
	log  logger.Logger
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects, pings and creates the schema.
func NewPostgresStore(ctx context.Context, dsn string, log logger.Logger) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	config.MaxConns = 10
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{pool: pool, q: newQueries(sq.Dollar), log: log.With("storage")}
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return store, nil
}

// SaveProposal stores a proposal and returns its ID
func (s *PostgresStore) SaveProposal(ctx context.Context, p *models.Proposal) (string, error) {
	prepare(p)
	stmts, err := s.q.saveStatements(p)
	if err != nil {
		return "", err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, st := range stmts {
		if _, err := tx.Exec(ctx, st.sql, st.args...); err != nil {
			return "", fmt.Errorf("failed to save proposal %s: %w", p.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Debug("Saved proposal %s with %d screens", p.ID, len(p.Screens))
	return p.ID, nil
}

// GetProposal retrieves a proposal by ID
func (s *PostgresStore) GetProposal(ctx context.Context, id string) (*models.Proposal, error) {
	st, err := s.q.selectProposal(id)
	if err != nil {
		return nil, err
	}
	var p models.Proposal
	err = scanProposal(s.pool.QueryRow(ctx, st.sql, st.args...), &p)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query proposal: %w", err)
	}

	st, err = s.q.selectScreens(id)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, st.sql, st.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query screens: %w", err)
	}
	screens := make(map[int]models.ScreenRecord)
	var order []int
	for rows.Next() {
		idx, screen, err := scanScreen(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		screens[idx] = screen
		order = append(order, idx)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating screens: %w", err)
	}

	st, err = s.q.selectAudits(id)
	if err != nil {
		return nil, err
	}
	rows, err = s.pool.Query(ctx, st.sql, st.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audits: %w", err)
	}
	audits := make(map[int]models.ScreenAudit)
	for rows.Next() {
		idx, audit, err := scanAudit(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		audits[idx] = audit
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audits: %w", err)
	}

	assemble(&p, screens, audits, order)
	return &p, nil
}

// ListProposals returns a list of all stored proposals
func (s *PostgresStore) ListProposals(ctx context.Context) ([]models.ProposalInfo, error) {
	st, err := s.q.listProposals()
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, st.sql, st.args...)
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
func (s *PostgresStore) DeleteProposal(ctx context.Context, id string) error {
	stmts, err := s.q.deleteStatements(id)
	if err != nil {
		return err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var affected int64
	for _, st := range stmts {
		tag, err := tx.Exec(ctx, st.sql, st.args...)
		if err != nil {
			return fmt.Errorf("failed to delete proposal: %w", err)
		}
		affected = tag.RowsAffected()
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return tx.Commit(ctx)
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
