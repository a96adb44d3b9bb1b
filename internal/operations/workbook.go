package operations

import (
	"context"
	"errors"
	"fmt"

	"github.com/Epistemic-Technology/rfp-mcp/internal/documents"
	"github.com/Epistemic-Technology/rfp-mcp/internal/excel"
	"github.com/Epistemic-Technology/rfp-mcp/internal/extraction"
	"github.com/Epistemic-Technology/rfp-mcp/models"
)

// ErrLegacyWorkbook is returned for .xls uploads, which cannot be read.
var ErrLegacyWorkbook = errors.New("legacy .xls workbooks are not supported, save the file as .xlsx")

// ImportOptions control a workbook import.
type ImportOptions struct {
	Save         bool
	ProposalName string
}

// ImportResult is a parsed cost sheet with its gap report.
type ImportResult struct {
	ProposalID string                  `json:"proposal_id,omitempty"`
	Proposal   *models.ParsedProposal  `json:"proposal"`
	Report     models.ExtractionReport `json:"report"`
}

// ImportWorkbook parses a cost-sheet workbook, reports its gaps and
// optionally saves it.
func ImportWorkbook(ctx context.Context, deps Deps, doc models.RawDocument, opts ImportOptions) (*ImportResult, error) {
	log := deps.log().With("import")
	switch doc.Type {
	case documents.TypeXLSX:
	case documents.TypeXLS:
		return nil, ErrLegacyWorkbook
	default:
		return nil, fmt.Errorf("%w: %s is not a workbook", ErrUnsupportedDocument, doc.Type)
	}
	if opts.Save && deps.Store == nil {
		return nil, ErrNoStore
	}

	parsed, err := excel.ParseWorkbook(doc.Data, excel.Options{
		Rates:            deps.Rates,
		InstallLookahead: deps.InstallLookahead,
		Log:              log,
	})
	if err != nil {
		return nil, err
	}
	if opts.ProposalName != "" {
		parsed.ProposalName = opts.ProposalName
	}

	res := &ImportResult{Proposal: parsed, Report: extraction.BuildReport(parsed.Screens)}
	if opts.Save {
		id, err := deps.Store.SaveProposal(ctx, ProposalFromParsed(parsed, doc.Name))
		if err != nil {
			return nil, fmt.Errorf("failed to save proposal: %w", err)
		}
		res.ProposalID = id
	}

	log.Info("Imported %s workbook %s: %d screens, final total %.2f %s",
		parsed.Format, doc.Name, len(parsed.Screens), parsed.InternalAudit.Totals.FinalTotal, parsed.Currency)
	return res, nil
}

// ProposalFromParsed converts an imported workbook into the stored form.
func ProposalFromParsed(p *models.ParsedProposal, source string) *models.Proposal {
	return &models.Proposal{
		ClientName:     p.ClientName,
		ProposalName:   p.ProposalName,
		Format:         p.Format,
		Currency:       p.Currency,
		SourceDocument: source,
		Screens:        p.Screens,
		Totals:         p.InternalAudit.Totals,
	}
}

// ParsedFromProposal is the inverse of ProposalFromParsed, used for export.
func ParsedFromProposal(p *models.Proposal) *models.ParsedProposal {
	audits := make([]models.ScreenAudit, 0, len(p.Screens))
	for _, s := range p.Screens {
		if s.Audit != nil {
			audits = append(audits, *s.Audit)
		}
	}
	return &models.ParsedProposal{
		ClientName:    p.ClientName,
		ProposalName:  p.ProposalName,
		Format:        p.Format,
		Currency:      p.Currency,
		Screens:       p.Screens,
		InternalAudit: models.InternalAudit{Screens: audits, Totals: p.Totals},
	}
}

// ExportProposal renders a stored proposal's audit as an xlsx workbook.
func ExportProposal(ctx context.Context, deps Deps, id string) ([]byte, *models.Proposal, error) {
	if deps.Store == nil {
		return nil, nil, ErrNoStore
	}
	p, err := deps.Store.GetProposal(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := excel.WriteAuditWorkbook(ParsedFromProposal(p))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to write audit workbook: %w", err)
	}
	return data, p, nil
}
