package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/Epistemic-Technology/rfp-mcp/internal/logger"
)

const drawingPrompt = `This is a page from an architectural or structural drawing set attached to an LED display RFP.
Describe any LED display shown: its label or location name, overall width and height with units,
pixel pitch, mounting or structure notes, and whether it is curved. Say "no display" if none is shown.`

// DrawingPage is a rendered drawing candidate.
type DrawingPage struct {
	Number int
	PNG    []byte
}

// DrawingNote is the vision model's description of one drawing page.
type DrawingNote struct {
	Page        int    `json:"page"`
	Description string `json:"description"`
}

// DescribeDrawings runs the vision model over drawing pages. A nil describer
// means vision is not configured; the step is skipped, not failed. Pages the
// model fails on are logged and left out of the notes.
func DescribeDrawings(ctx context.Context, vision Describer, pages []DrawingPage, maxWorkers int, log logger.Logger) ([]DrawingNote, error) {
	if len(pages) == 0 {
		return nil, nil
	}
	if vision == nil {
		log.Info("Vision model not configured, skipping %d drawing pages", len(pages))
		return nil, nil
	}

	log.Info("Describing %d drawing pages", len(pages))
	notes, err := ParallelProcess(ctx, pages, maxWorkers, func(ctx context.Context, _ int, p DrawingPage) (DrawingNote, error) {
		text, err := vision.DescribeImage(ctx, drawingPrompt, p.PNG)
		if err != nil {
			if ctx.Err() != nil {
				return DrawingNote{}, err
			}
			log.Warn("Failed to describe drawing page %d: %v", p.Number, err)
			return DrawingNote{Page: p.Number}, nil
		}
		return DrawingNote{Page: p.Number, Description: strings.TrimSpace(text)}, nil
	})
	if err != nil {
		return nil, err
	}

	kept := notes[:0]
	for _, n := range notes {
		if n.Description == "" || strings.EqualFold(strings.Trim(n.Description, ". "), "no display") {
			continue
		}
		kept = append(kept, n)
	}
	return kept, nil
}

// NotesText renders drawing notes as extra prompt context.
func NotesText(notes []DrawingNote) string {
	var b strings.Builder
	for _, n := range notes {
		fmt.Fprintf(&b, "=== Drawing page %d ===\n%s\n\n", n.Page, n.Description)
	}
	return b.String()
}
