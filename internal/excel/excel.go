package excel

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Epistemic-Technology/rfp-mcp/internal/logger"
	"github.com/Epistemic-Technology/rfp-mcp/internal/pricing"
	"github.com/Epistemic-Technology/rfp-mcp/models"
)

const defaultInstallLookahead = 25

// Options configures workbook import.
type Options struct {
	Rates            pricing.Rates
	InstallLookahead int
	Log              logger.Logger
}

func (o Options) withDefaults() Options {
	if o.Rates == (pricing.Rates{}) {
		o.Rates = pricing.DefaultRates()
	}
	if o.InstallLookahead <= 0 {
		o.InstallLookahead = defaultInstallLookahead
	}
	if o.Log == nil {
		o.Log = logger.NewNoOpLogger()
	}
	return o
}

// Parser turns one workbook layout into a proposal.
type Parser interface {
	Parse(wb Workbook) (*models.ParsedProposal, error)
}

// ParserFor returns the parser for a detected format.
func ParserFor(f Format, opts Options) (Parser, error) {
	opts = opts.withDefaults()
	switch f {
	case FormatStandard:
		return &StandardParser{opts: opts}, nil
	case FormatMoody:
		return &MoodyParser{opts: opts}, nil
	case FormatScotiaBank:
		return &ScotiaBankParser{opts: opts}, nil
	default:
		return nil, errors.New("no parser for unknown workbook format")
	}
}

// ParseWorkbook opens xlsx bytes, detects the layout and parses it.
func ParseWorkbook(data []byte, opts Options) (*models.ParsedProposal, error) {
	wb, err := Open(data)
	if err != nil {
		return nil, err
	}
	defer wb.Close()
	return Parse(wb, opts)
}

// Parse detects the layout of an open workbook and dispatches to its parser.
func Parse(wb Workbook, opts Options) (*models.ParsedProposal, error) {
	opts = opts.withDefaults()
	names := wb.SheetNames()
	rec := DetectFormat(names)
	if rec.Format == FormatUnknown {
		return nil, &SheetNotFoundError{
			Required: []string{SheetCostSheet, SheetMarginAnalysis, SheetMoody},
			Found:    names,
		}
	}

	opts.Log.Info("Detected %s workbook layout (sheet %q)", rec.Format, rec.SheetName)
	for _, missing := range rec.MissingSheets {
		opts.Log.Warn("Workbook has no %q sheet, install costs will be estimated where needed", missing)
	}

	parser, err := ParserFor(rec.Format, opts)
	if err != nil {
		return nil, err
	}
	proposal, err := parser.Parse(wb)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s workbook: %w", rec.Format, err)
	}
	return proposal, nil
}

// finish assigns IDs and rolls the per-screen audits up into project totals.
func finish(p *models.ParsedProposal) *models.ParsedProposal {
	audits := make([]models.ScreenAudit, 0, len(p.Screens))
	for i := range p.Screens {
		if p.Screens[i].ID == "" {
			p.Screens[i].ID = uuid.NewString()
		}
		if p.Screens[i].Audit != nil {
			audits = append(audits, *p.Screens[i].Audit)
		}
	}
	p.InternalAudit = models.InternalAudit{
		Screens: audits,
		Totals:  pricing.Aggregate(audits),
	}
	return p
}
