package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/rfp-mcp/internal/documents"
	"github.com/Epistemic-Technology/rfp-mcp/internal/filter"
	"github.com/Epistemic-Technology/rfp-mcp/internal/logger"
	"github.com/Epistemic-Technology/rfp-mcp/internal/operations"
	"github.com/Epistemic-Technology/rfp-mcp/internal/pdf"
	"github.com/Epistemic-Technology/rfp-mcp/models"
)

type RFPFilterQuery struct {
	FilePath          string `json:"file_path,omitempty"`
	URL               string `json:"url,omitempty"`
	RawData           []byte `json:"raw_data,omitempty"`
	Name              string `json:"name,omitempty"`
	IncludeFullText   bool   `json:"include_full_text,omitempty"`   // Return the unfiltered text too
	AttachFilteredPDF bool   `json:"attach_filtered_pdf,omitempty"` // Return a PDF of the retained pages
}

type RFPFilterResponse struct {
	Document        string               `json:"document"`
	Result          *models.FilterResult `json:"result,omitempty"`
	Degraded        bool                 `json:"degraded,omitempty"`
	UnfilteredBytes int                  `json:"unfiltered_bytes,omitempty"`
	Message         string               `json:"message,omitempty"`
	FilteredPDF     []byte               `json:"filtered_pdf,omitempty"`
}

func RFPFilterTool() *mcp.Tool {
	inputschema, err := jsonschema.For[RFPFilterQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "rfp-filter",
		Description: "Score the pages of an RFP PDF and keep only the ones that describe LED displays, pricing, dimensions or structure. Legal boilerplate is dropped and drawing sheets are flagged. Use this before sending a large RFP to a model.",
		InputSchema: inputschema,
	}
}

func RFPFilterToolHandler(ctx context.Context, req *mcp.CallToolRequest, query RFPFilterQuery, pf *filter.PageFilter, log logger.Logger) (*mcp.CallToolResult, *RFPFilterResponse, error) {
	log.Info("rfp-filter tool called")

	doc, err := operations.LoadDocument(ctx, query.FilePath, query.URL, query.RawData, query.Name)
	if err != nil {
		log.Error("rfp-filter tool failed: %v", err)
		return nil, nil, err
	}
	if doc.Type != documents.TypePDF {
		return nil, nil, fmt.Errorf("%w: rfp-filter reads PDFs, got %s", operations.ErrUnsupportedDocument, doc.Type)
	}

	result, err := pf.FilterDocument(ctx, doc.Data)
	if errors.Is(err, filter.ErrTextUnavailable) {
		log.Warn("No text layer in %s: %v", doc.Name, err)
		return nil, &RFPFilterResponse{
			Document:        doc.Name,
			Degraded:        true,
			UnfilteredBytes: len(doc.Data),
			Message:         "the PDF has no extractable text; it may be scanned. rfp-extract can still read it with a vision model.",
		}, nil
	}
	if err != nil {
		log.Error("rfp-filter tool failed: %v", err)
		return nil, nil, err
	}

	response := &RFPFilterResponse{Document: doc.Name}
	if query.AttachFilteredPDF && len(result.PageNumbers) > 0 {
		out, err := pdf.CollectPages(doc.Data, result.PageNumbers)
		if err != nil {
			log.Warn("Could not build filtered PDF: %v", err)
		} else {
			response.FilteredPDF = out
		}
	}
	if !query.IncludeFullText {
		result.FullText = ""
	}
	response.Result = &result
	return nil, response, nil
}
