package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/rfp-mcp/internal/logger"
	"github.com/Epistemic-Technology/rfp-mcp/internal/operations"
	"github.com/Epistemic-Technology/rfp-mcp/internal/storage"
)

type ExcelImportQuery struct {
	FilePath     string `json:"file_path,omitempty"`
	URL          string `json:"url,omitempty"`
	RawData      []byte `json:"raw_data,omitempty"`
	Name         string `json:"name,omitempty"`
	Save         bool   `json:"save,omitempty"`
	ProposalName string `json:"proposal_name,omitempty"` // Overrides the name found in the sheet
}

type ExcelImportResponse struct {
	Result        *operations.ImportResult `json:"result"`
	ResourcePaths []string                 `json:"resource_paths,omitempty"`
}

func ExcelImportTool() *mcp.Tool {
	inputschema, err := jsonschema.For[ExcelImportQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "excel-import",
		Description: "Import an LED cost-sheet workbook (.xlsx). The layout is detected automatically. Returns every screen with its cost audit (hardware, structure, install, labor, PM, shipping, margin, bond, final total) and the project totals, plus a report of missing fields. Set save=true to store it as a proposal.",
		InputSchema: inputschema,
	}
}

func ExcelImportToolHandler(ctx context.Context, req *mcp.CallToolRequest, query ExcelImportQuery, deps operations.Deps, log logger.Logger) (*mcp.CallToolResult, *ExcelImportResponse, error) {
	log.Info("excel-import tool called")

	doc, err := operations.LoadDocument(ctx, query.FilePath, query.URL, query.RawData, query.Name)
	if err != nil {
		log.Error("excel-import tool failed: %v", err)
		return nil, nil, err
	}

	result, err := operations.ImportWorkbook(ctx, deps, doc, operations.ImportOptions{
		Save:         query.Save,
		ProposalName: query.ProposalName,
	})
	if err != nil {
		log.Error("excel-import tool failed: %v", err)
		return nil, nil, err
	}

	response := &ExcelImportResponse{Result: result}
	if result.ProposalID != "" {
		response.ResourcePaths = storage.ResourcePaths(result.ProposalID, len(result.Proposal.Screens))
	}
	return nil, response, nil
}
