package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/rfp-mcp/internal/extraction"
	"github.com/Epistemic-Technology/rfp-mcp/internal/logger"
	"github.com/Epistemic-Technology/rfp-mcp/internal/operations"
	"github.com/Epistemic-Technology/rfp-mcp/internal/storage"
	"github.com/Epistemic-Technology/rfp-mcp/models"
)

// ScreenSet is one source's screens as passed to screen-gaps.
type ScreenSet struct {
	Source  string                `json:"source"` // llm, spreadsheet, regex or search
	Screens []models.ScreenRecord `json:"screens"`
}

type ScreenGapsQuery struct {
	ProposalID string      `json:"proposal_id,omitempty"` // Start from a stored proposal
	Sources    []ScreenSet `json:"sources,omitempty"`
	Priority   []string    `json:"priority,omitempty"` // Field conflict order, e.g. ["spreadsheet", "llm"]
	Save       bool        `json:"save,omitempty"`     // Write the result back to proposal_id
}

type ScreenGapsResponse struct {
	ProposalID    string                    `json:"proposal_id,omitempty"`
	Result        *operations.AnalyzeResult `json:"result"`
	ResourcePaths []string                  `json:"resource_paths,omitempty"`
}

func ScreenGapsTool() *mcp.Tool {
	inputschema, err := jsonschema.For[ScreenGapsQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "screen-gaps",
		Description: "Merge screen records from several sources, recompute areas and cost audits, and report which required fields (pixel pitch, width, height, curvature, service type, product type) are still missing. Pass edited screens together with a stored proposal_id and save=true to update it.",
		InputSchema: inputschema,
	}
}

func ScreenGapsToolHandler(ctx context.Context, req *mcp.CallToolRequest, query ScreenGapsQuery, deps operations.Deps, log logger.Logger) (*mcp.CallToolResult, *ScreenGapsResponse, error) {
	log.Info("screen-gaps tool called")

	priority := deps.Priority
	if len(query.Priority) > 0 {
		var err error
		priority, err = extraction.ParsePriority(query.Priority)
		if err != nil {
			return nil, nil, err
		}
	}

	var results []extraction.SourceResult
	for _, set := range query.Sources {
		src, err := extraction.ParsePriority([]string{set.Source})
		if err != nil {
			return nil, nil, err
		}
		results = append(results, extraction.SourceResult{Source: src[0], Screens: set.Screens})
	}

	var stored *models.Proposal
	if query.ProposalID != "" {
		if deps.Store == nil {
			return nil, nil, operations.ErrNoStore
		}
		p, err := deps.Store.GetProposal(ctx, query.ProposalID)
		if err != nil {
			log.Error("screen-gaps tool failed: %v", err)
			return nil, nil, err
		}
		stored = p
		results = append(results, storedSources(p.Screens)...)
	} else if query.Save {
		return nil, nil, errors.New("save requires proposal_id")
	}
	if len(results) == 0 {
		return nil, nil, errors.New("no screens provided: set sources or proposal_id")
	}

	analysis := operations.AnalyzeScreens(results, priority, deps.Rates)
	response := &ScreenGapsResponse{Result: &analysis}

	if query.Save {
		stored.Screens = analysis.Screens
		stored.Totals = analysis.Totals
		id, err := deps.Store.SaveProposal(ctx, stored)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to save proposal: %w", err)
		}
		response.ProposalID = id
		response.ResourcePaths = storage.ResourcePaths(id, len(analysis.Screens))
	}
	return nil, response, nil
}

// storedSources groups saved screens by the source recorded on each one.
// Screens from an unknown source rank as spreadsheet rows.
func storedSources(screens []models.ScreenRecord) []extraction.SourceResult {
	var out []extraction.SourceResult
	index := map[extraction.Source]int{}
	for _, s := range screens {
		src := extraction.SourceSpreadsheet
		if parsed, err := extraction.ParsePriority([]string{s.Source.Kind}); err == nil {
			src = parsed[0]
		}
		i, ok := index[src]
		if !ok {
			out = append(out, extraction.SourceResult{Source: src})
			i = len(out) - 1
			index[src] = i
		}
		out[i].Screens = append(out[i].Screens, s)
	}
	return out
}
