package tools

import (
	"context"
	"errors"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/rfp-mcp/internal/logger"
	"github.com/Epistemic-Technology/rfp-mcp/internal/storage"
	"github.com/Epistemic-Technology/rfp-mcp/models"
)

type ProposalListQuery struct {
	Client string `json:"client,omitempty"` // Case-insensitive substring of the client name
}

type ProposalListResponse struct {
	Proposals []ProposalEntry `json:"proposals"`
	Count     int             `json:"count"`
}

type ProposalEntry struct {
	Proposal     models.ProposalInfo `json:"proposal"`
	ResourcePath string              `json:"resource_path"`
}

func ProposalListTool() *mcp.Tool {
	inputschema, err := jsonschema.For[ProposalListQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "proposal-list",
		Description: "List stored proposals, newest first, with screen counts and final totals. Read proposal://{id} resources for details.",
		InputSchema: inputschema,
	}
}

func ProposalListToolHandler(ctx context.Context, req *mcp.CallToolRequest, query ProposalListQuery, store storage.Store, log logger.Logger) (*mcp.CallToolResult, *ProposalListResponse, error) {
	log.Info("proposal-list tool called")

	infos, err := store.ListProposals(ctx)
	if err != nil {
		log.Error("Failed to list proposals: %v", err)
		return nil, nil, err
	}

	response := &ProposalListResponse{Proposals: []ProposalEntry{}}
	for _, info := range infos {
		if query.Client != "" && !strings.Contains(strings.ToLower(info.ClientName), strings.ToLower(query.Client)) {
			continue
		}
		response.Proposals = append(response.Proposals, ProposalEntry{
			Proposal:     info,
			ResourcePath: storage.ResourcePaths(info.ID, 0)[0],
		})
	}
	response.Count = len(response.Proposals)
	return nil, response, nil
}

type ProposalDeleteQuery struct {
	ProposalID string `json:"proposal_id"`
}

type ProposalDeleteResponse struct {
	ProposalID string `json:"proposal_id"`
	Deleted    bool   `json:"deleted"`
}

func ProposalDeleteTool() *mcp.Tool {
	inputschema, err := jsonschema.For[ProposalDeleteQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "proposal-delete",
		Description: "Delete a stored proposal with all its screens and audits.",
		InputSchema: inputschema,
	}
}

func ProposalDeleteToolHandler(ctx context.Context, req *mcp.CallToolRequest, query ProposalDeleteQuery, store storage.Store, log logger.Logger) (*mcp.CallToolResult, *ProposalDeleteResponse, error) {
	log.Info("proposal-delete tool called")
	if query.ProposalID == "" {
		return nil, nil, errors.New("proposal_id is required")
	}
	if err := store.DeleteProposal(ctx, query.ProposalID); err != nil {
		log.Error("Failed to delete proposal %s: %v", query.ProposalID, err)
		return nil, nil, err
	}
	return nil, &ProposalDeleteResponse{ProposalID: query.ProposalID, Deleted: true}, nil
}
