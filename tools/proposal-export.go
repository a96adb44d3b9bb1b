package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/rfp-mcp/internal/logger"
	"github.com/Epistemic-Technology/rfp-mcp/internal/operations"
)

type ProposalExportQuery struct {
	ProposalID string `json:"proposal_id"`
	OutputPath string `json:"output_path,omitempty"` // Write the workbook here instead of returning it
}

type ProposalExportResponse struct {
	ProposalID  string  `json:"proposal_id"`
	FileName    string  `json:"file_name"`
	OutputPath  string  `json:"output_path,omitempty"`
	Workbook    []byte  `json:"workbook,omitempty"`
	ScreenCount int     `json:"screen_count"`
	FinalTotal  float64 `json:"final_total"`
}

func ProposalExportTool() *mcp.Tool {
	inputschema, err := jsonschema.For[ProposalExportQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "proposal-export",
		Description: "Export a stored proposal's internal cost audit as an .xlsx workbook. The totals row uses live formulas. Returns the workbook bytes, or writes them to output_path when given.",
		InputSchema: inputschema,
	}
}

func ProposalExportToolHandler(ctx context.Context, req *mcp.CallToolRequest, query ProposalExportQuery, deps operations.Deps, log logger.Logger) (*mcp.CallToolResult, *ProposalExportResponse, error) {
	log.Info("proposal-export tool called")
	if query.ProposalID == "" {
		return nil, nil, errors.New("proposal_id is required")
	}

	data, p, err := operations.ExportProposal(ctx, deps, query.ProposalID)
	if err != nil {
		log.Error("proposal-export tool failed: %v", err)
		return nil, nil, err
	}

	response := &ProposalExportResponse{
		ProposalID:  p.ID,
		FileName:    exportFileName(p.ClientName, p.ProposalName),
		ScreenCount: len(p.Screens),
		FinalTotal:  p.Totals.FinalTotal,
	}
	if query.OutputPath == "" {
		response.Workbook = data
		return nil, response, nil
	}

	out := query.OutputPath
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		out = filepath.Join(out, response.FileName)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return nil, nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	log.Info("Wrote audit workbook for %s to %s", p.ID, out)
	response.OutputPath = out
	return nil, response, nil
}

func exportFileName(client, proposal string) string {
	var parts []string
	for _, s := range []string{client, proposal, "audit"} {
		s = strings.Join(strings.FieldsFunc(s, func(r rune) bool {
			return !(r == '-' || r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
		}), "-")
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "_") + ".xlsx"
}
