package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/Epistemic-Technology/rfp-mcp/internal/pricing"
	"github.com/Epistemic-Technology/rfp-mcp/models"
)

// ErrNotFound is returned when a proposal ID does not exist.
var ErrNotFound = errors.New("proposal not found")

// Store defines the interface for persisting proposals and their screens
type Store interface {
	// SaveProposal writes the proposal, its screens and audits in one
	// transaction and returns its ID. An existing proposal with the same ID
	// is replaced.
	SaveProposal(ctx context.Context, p *models.Proposal) (string, error)

	// GetProposal loads a proposal with screens in their saved order
	GetProposal(ctx context.Context, id string) (*models.Proposal, error)

	// ListProposals returns all proposals, newest first
	ListProposals(ctx context.Context) ([]models.ProposalInfo, error)

	// DeleteProposal removes a proposal and all associated rows
	DeleteProposal(ctx context.Context, id string) error

	// Close closes the database connection
	Close() error
}

var screenColumns = []string{
	"proposal_id", "screen_index", "id", "name",
	"pixel_pitch_mm", "width_ft", "height_ft", "quantity", "area_sq_ft",
	"service_type", "product_type", "is_curved", "cost_per_sq_ft", "margin_pct",
	"source_kind", "source_sheet", "source_row", "source_citation", "confidence",
}

var auditColumns = []string{
	"proposal_id", "screen_index",
	"hardware", "structure", "install", "labor", "pm", "shipping",
	"total_cost", "margin", "sell_price", "bond", "final_total",
	"area_sq_ft", "price_per_sq_ft",
}

// statement is one built query ready to execute.
type statement struct {
	sql  string
	args []any
}

// queries builds the SQL shared by both backends. Only the placeholder
// format differs between them.
type queries struct {
	sb sq.StatementBuilderType
}

func newQueries(ph sq.PlaceholderFormat) queries {
	return queries{sb: sq.StatementBuilder.PlaceholderFormat(ph)}
}

func build(b sq.Sqlizer) (statement, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return statement{}, fmt.Errorf("failed to build query: %w", err)
	}
	return statement{sql: query, args: args}, nil
}

// prepare fills the ID and creation time of a new proposal.
func prepare(p *models.Proposal) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	// sqlite orders timestamps as text, so keep one offset
	p.CreatedAt = p.CreatedAt.UTC()
}

// saveStatements returns the statements that replace a proposal, in order.
func (q queries) saveStatements(p *models.Proposal) ([]statement, error) {
	var stmts []statement
	add := func(b sq.Sqlizer) error {
		st, err := build(b)
		if err != nil {
			return err
		}
		stmts = append(stmts, st)
		return nil
	}

	upsert := q.sb.Insert("proposals").
		Columns("id", "client_name", "proposal_name", "format", "currency", "source_document", "created_at").
		Values(p.ID, p.ClientName, p.ProposalName, p.Format, p.Currency, p.SourceDocument, p.CreatedAt).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			client_name = excluded.client_name,
			proposal_name = excluded.proposal_name,
			format = excluded.format,
			currency = excluded.currency,
			source_document = excluded.source_document`)
	if err := add(upsert); err != nil {
		return nil, err
	}
	if err := add(q.sb.Delete("screen_audits").Where(sq.Eq{"proposal_id": p.ID})); err != nil {
		return nil, err
	}
	if err := add(q.sb.Delete("screens").Where(sq.Eq{"proposal_id": p.ID})); err != nil {
		return nil, err
	}

	for i := range p.Screens {
		s := &p.Screens[i]
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		confidence, err := json.Marshal(s.Confidence)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal confidence for screen %d: %w", i, err)
		}
		ins := q.sb.Insert("screens").Columns(screenColumns...).Values(
			p.ID, i, s.ID, s.Name,
			s.PixelPitchMM, s.WidthFt, s.HeightFt, s.Quantity, s.AreaSqFt,
			s.ServiceType, s.ProductType, s.IsCurved, s.CostPerSqFt, s.MarginPct,
			s.Source.Kind, s.Source.Sheet, s.Source.Row, s.Source.Citation, string(confidence),
		)
		if err := add(ins); err != nil {
			return nil, err
		}

		if a := s.Audit; a != nil {
			ins := q.sb.Insert("screen_audits").Columns(auditColumns...).Values(
				p.ID, i,
				a.Hardware, a.Structure, a.Install, a.Labor, a.PM, a.Shipping,
				a.TotalCost, a.Margin, a.SellPrice, a.Bond, a.FinalTotal,
				a.AreaSqFt, a.PricePerSqFt,
			)
			if err := add(ins); err != nil {
				return nil, err
			}
		}
	}
	return stmts, nil
}

func (q queries) selectProposal(id string) (statement, error) {
	return build(q.sb.Select("id", "client_name", "proposal_name", "format", "currency", "source_document", "created_at").
		From("proposals").
		Where(sq.Eq{"id": id}))
}

func (q queries) selectScreens(id string) (statement, error) {
	return build(q.sb.Select(screenColumns[1:]...).
		From("screens").
		Where(sq.Eq{"proposal_id": id}).
		OrderBy("screen_index"))
}

func (q queries) selectAudits(id string) (statement, error) {
	return build(q.sb.Select(auditColumns[1:]...).
		From("screen_audits").
		Where(sq.Eq{"proposal_id": id}))
}

func (q queries) listProposals() (statement, error) {
	return build(q.sb.Select(
		"p.id", "p.client_name", "p.proposal_name", "p.created_at",
		"(SELECT COUNT(*) FROM screens s WHERE s.proposal_id = p.id)",
		"COALESCE((SELECT SUM(a.final_total) FROM screen_audits a WHERE a.proposal_id = p.id), 0)",
	).
		From("proposals p").
		OrderBy("p.created_at DESC", "p.id"))
}

func (q queries) deleteStatements(id string) ([]statement, error) {
	var stmts []statement
	for _, table := range []string{"screen_audits", "screens"} {
		st, err := build(q.sb.Delete(table).Where(sq.Eq{"proposal_id": id}))
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, st)
	}
	st, err := build(q.sb.Delete("proposals").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	return append(stmts, st), nil
}

// rowScanner is satisfied by both *sql.Rows and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProposal(row rowScanner, p *models.Proposal) error {
	return row.Scan(&p.ID, &p.ClientName, &p.ProposalName, &p.Format, &p.Currency, &p.SourceDocument, &p.CreatedAt)
}

func scanScreen(row rowScanner) (int, models.ScreenRecord, error) {
	var (
		idx        int
		s          models.ScreenRecord
		confidence string
	)
	err := row.Scan(
		&idx, &s.ID, &s.Name,
		&s.PixelPitchMM, &s.WidthFt, &s.HeightFt, &s.Quantity, &s.AreaSqFt,
		&s.ServiceType, &s.ProductType, &s.IsCurved, &s.CostPerSqFt, &s.MarginPct,
		&s.Source.Kind, &s.Source.Sheet, &s.Source.Row, &s.Source.Citation, &confidence,
	)
	if err != nil {
		return 0, s, fmt.Errorf("failed to scan screen: %w", err)
	}
	if confidence != "" && confidence != "null" {
		if err := json.Unmarshal([]byte(confidence), &s.Confidence); err != nil {
			return 0, s, fmt.Errorf("failed to unmarshal confidence: %w", err)
		}
	}
	return idx, s, nil
}

func scanAudit(row rowScanner) (int, models.ScreenAudit, error) {
	var (
		idx int
		a   models.ScreenAudit
	)
	err := row.Scan(
		&idx,
		&a.Hardware, &a.Structure, &a.Install, &a.Labor, &a.PM, &a.Shipping,
		&a.TotalCost, &a.Margin, &a.SellPrice, &a.Bond, &a.FinalTotal,
		&a.AreaSqFt, &a.PricePerSqFt,
	)
	if err != nil {
		return 0, a, fmt.Errorf("failed to scan audit: %w", err)
	}
	return idx, a, nil
}

func scanInfo(row rowScanner) (models.ProposalInfo, error) {
	var info models.ProposalInfo
	if err := row.Scan(&info.ID, &info.ClientName, &info.ProposalName, &info.CreatedAt, &info.ScreenCount, &info.FinalTotal); err != nil {
		return info, fmt.Errorf("failed to scan proposal: %w", err)
	}
	return info, nil
}

// assemble attaches audits to their screens and recomputes the totals.
// Stored totals are never trusted.
func assemble(p *models.Proposal, screens map[int]models.ScreenRecord, audits map[int]models.ScreenAudit, order []int) {
	p.Screens = make([]models.ScreenRecord, 0, len(order))
	collected := make([]models.ScreenAudit, 0, len(audits))
	for _, idx := range order {
		s := screens[idx]
		if a, ok := audits[idx]; ok {
			s.Audit = &a
			collected = append(collected, a)
		}
		p.Screens = append(p.Screens, s)
	}
	p.Totals = pricing.Aggregate(collected)
}
