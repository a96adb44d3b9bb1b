package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/rfp-mcp/internal/logger"
	"github.com/Epistemic-Technology/rfp-mcp/internal/operations"
	"github.com/Epistemic-Technology/rfp-mcp/internal/storage"
)

type RFPExtractQuery struct {
	FilePath          string `json:"file_path,omitempty"`
	URL               string `json:"url,omitempty"`
	RawData           []byte `json:"raw_data,omitempty"`
	Name              string `json:"name,omitempty"`
	UseLLM            *bool  `json:"use_llm,omitempty"`    // Defaults to true when a model is configured
	UseSearch         *bool  `json:"use_search,omitempty"` // Defaults to true
	Save              bool   `json:"save,omitempty"`
	ProposalName      string `json:"proposal_name,omitempty"`
	AttachFilteredPDF bool   `json:"attach_filtered_pdf,omitempty"`
}

type RFPExtractResponse struct {
	Result        *operations.IngestResult `json:"result"`
	ResourcePaths []string                 `json:"resource_paths,omitempty"`
	FilteredPDF   []byte                   `json:"filtered_pdf,omitempty"`
}

func RFPExtractTool() *mcp.Tool {
	inputschema, err := jsonschema.For[RFPExtractQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "rfp-extract",
		Description: "Extract LED display requirements (pixel pitch, dimensions, quantity, service access, curvature) from an RFP document. Accepts PDF, HTML or plain text. Runs the page filter, an optional LLM pass, web search fallback and regex extraction, merges the results and reports which required fields are still missing. Set save=true to store the screens as a proposal.",
		InputSchema: inputschema,
	}
}

func RFPExtractToolHandler(ctx context.Context, req *mcp.CallToolRequest, query RFPExtractQuery, deps operations.Deps, log logger.Logger) (*mcp.CallToolResult, *RFPExtractResponse, error) {
	log.Info("rfp-extract tool called")

	doc, err := operations.LoadDocument(ctx, query.FilePath, query.URL, query.RawData, query.Name)
	if err != nil {
		log.Error("rfp-extract tool failed: %v", err)
		return nil, nil, err
	}

	result, err := operations.IngestRFP(ctx, deps, doc, operations.IngestOptions{
		UseLLM:            boolOr(query.UseLLM, deps.LLM != nil),
		UseSearch:         boolOr(query.UseSearch, true),
		Save:              query.Save,
		ProposalName:      query.ProposalName,
		AttachFilteredPDF: query.AttachFilteredPDF,
	})
	if err != nil {
		log.Error("rfp-extract tool failed: %v", err)
		return nil, nil, err
	}

	response := &RFPExtractResponse{Result: result, FilteredPDF: result.FilteredPDF}
	if result.ProposalID != "" {
		response.ResourcePaths = storage.ResourcePaths(result.ProposalID, len(result.Screens))
	}
	return nil, response, nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
