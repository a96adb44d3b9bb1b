package operations

import (
	"context"
	"errors"
	"fmt"

	"github.com/Epistemic-Technology/rfp-mcp/internal/documents"
	"github.com/Epistemic-Technology/rfp-mcp/models"
)

// ErrAmbiguousSource is returned when a tool call names more than one input.
var ErrAmbiguousSource = errors.New("provide only one of file_path, url or raw_data")

// LoadDocument reads the document a tool call points at and detects its
// type. This function encapsulates the input handling shared by every tool
// that accepts an uploaded document.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - filePath: Optional local path (mutually exclusive with url and rawData)
//   - url: Optional URL to fetch the document from (mutually exclusive with filePath and rawData)
//   - rawData: Optional raw document bytes (mutually exclusive with filePath and url)
//   - name: Optional display name; defaults to the path or URL
//
// Returns:
//   - doc: The document bytes with their detected type
//   - error: Any error encountered while reading or fetching
func LoadDocument(ctx context.Context, filePath, url string, rawData []byte, name string) (models.RawDocument, error) {
	given := 0
	for _, set := range []bool{filePath != "", url != "", len(rawData) > 0} {
		if set {
			given++
		}
	}
	if given > 1 {
		return models.RawDocument{}, ErrAmbiguousSource
	}

	doc, err := documents.Load(ctx, documents.Source{
		FilePath: filePath,
		URL:      url,
		RawData:  rawData,
		Name:     name,
	})
	if err != nil {
		return models.RawDocument{}, fmt.Errorf("failed to load document: %w", err)
	}
	if doc.Type == documents.TypeUnknown {
		return models.RawDocument{}, fmt.Errorf("%w: could not recognise %s", ErrUnsupportedDocument, doc.Name)
	}
	return doc, nil
}
