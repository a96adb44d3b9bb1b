package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/rfp-mcp/internal/storage"
	"github.com/Epistemic-Technology/rfp-mcp/models"
)

const scheme = "proposal://"

// ProposalResourceHandler serves stored proposals as MCP resources
type ProposalResourceHandler struct {
	store storage.Store
}

// NewProposalResourceHandler creates a new proposal resource handler
func NewProposalResourceHandler(store storage.Store) *ProposalResourceHandler {
	return &ProposalResourceHandler{store: store}
}

// ReadResource reads a specific resource by URI
func (h *ProposalResourceHandler) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	// proposal://id/resource_type/optional_index
	if !strings.HasPrefix(uri, scheme) {
		return nil, fmt.Errorf("invalid URI scheme, expected %s", scheme)
	}
	parts := strings.Split(strings.TrimPrefix(uri, scheme), "/")
	if parts[0] == "" {
		return nil, fmt.Errorf("invalid URI, missing proposal ID")
	}

	id := parts[0]
	resourceType := ""
	if len(parts) > 1 {
		resourceType = parts[1]
	}
	if len(parts) > 3 {
		return nil, fmt.Errorf("invalid URI: %s", uri)
	}

	p, err := h.store.GetProposal(ctx, id)
	if err != nil {
		return nil, err
	}

	var payload any
	switch resourceType {
	case "":
		payload = summary(p)
	case "screens":
		if len(parts) == 3 {
			index, err := strconv.Atoi(parts[2])
			if err != nil {
				return nil, fmt.Errorf("invalid index: %s", parts[2])
			}
			if index < 0 || index >= len(p.Screens) {
				return nil, fmt.Errorf("screen index %d out of range (proposal has %d screens)", index, len(p.Screens))
			}
			payload = p.Screens[index]
		} else {
			payload = p.Screens
		}
	case "audit":
		payload = audit(p)
	default:
		return nil, fmt.Errorf("unknown resource type: %s", resourceType)
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(data),
			},
		},
	}, nil
}

func summary(p *models.Proposal) map[string]any {
	return map[string]any{
		"proposal_id":         p.ID,
		"client_name":         p.ClientName,
		"proposal_name":       p.ProposalName,
		"format":              p.Format,
		"currency":            p.Currency,
		"source_document":     p.SourceDocument,
		"created_at":          p.CreatedAt,
		"screen_count":        len(p.Screens),
		"totals":              p.Totals,
		"available_resources": storage.ResourcePaths(p.ID, len(p.Screens)),
	}
}

type auditRow struct {
	Index  int                `json:"index"`
	Name   string             `json:"name"`
	Source models.Provenance  `json:"source"`
	Audit  models.ScreenAudit `json:"audit"`
}

func audit(p *models.Proposal) map[string]any {
	rows := []auditRow{}
	var unpriced []string
	for i, s := range p.Screens {
		if s.Audit == nil {
			unpriced = append(unpriced, s.Name)
			continue
		}
		rows = append(rows, auditRow{Index: i, Name: s.Name, Source: s.Source, Audit: *s.Audit})
	}
	return map[string]any{
		"proposal_id": p.ID,
		"currency":    p.Currency,
		"screens":     rows,
		"totals":      p.Totals,
		"unpriced":    unpriced,
	}
}
