package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/Epistemic-Technology/rfp-mcp/models"
)

// PageInfo describes a validated PDF.
type PageInfo struct {
	PageCount int `json:"page_count"`
	Size      int `json:"size_bytes"`
}

// Inspect validates the PDF structure and reports its page count.
func Inspect(data []byte) (PageInfo, error) {
	if len(data) == 0 {
		return PageInfo{}, errors.New("empty PDF data")
	}
	conf := model.NewDefaultConfiguration()
	pdfContext, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return PageInfo{}, fmt.Errorf("failed to validate PDF: %w", err)
	}
	return PageInfo{PageCount: pdfContext.PageCount, Size: len(data)}, nil
}

// CollectPages builds a new PDF holding only the given 1-based pages, in the given order.
func CollectPages(data []byte, pages []int) ([]byte, error) {
	if len(pages) == 0 {
		return nil, errors.New("no pages selected")
	}
	selected := make([]string, 0, len(pages))
	for _, p := range pages {
		if p < 1 {
			return nil, fmt.Errorf("invalid page number %d", p)
		}
		selected = append(selected, strconv.Itoa(p))
	}

	var out bytes.Buffer
	conf := model.NewDefaultConfiguration()
	if err := api.Collect(bytes.NewReader(data), &out, selected, conf); err != nil {
		return nil, fmt.Errorf("failed to collect pages: %w", err)
	}
	return out.Bytes(), nil
}

// ExtractPages returns the text of every page. Pages whose text cannot be
// read come back with empty text so page numbering stays intact.
func ExtractPages(ctx context.Context, data []byte) ([]models.PdfPage, error) {
	it, err := NewPageIterator(data)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	pages := make([]models.PdfPage, 0, it.Len())
	for it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pages = append(pages, it.Page())
	}
	return pages, it.Err()
}

// PageIterator walks a document one page at a time so callers never hold
// the text of every page at once.
type PageIterator struct {
	doc  *fitz.Document
	n    int
	next int
	cur  models.PdfPage
	err  error
}

func NewPageIterator(data []byte) (*PageIterator, error) {
	if len(data) == 0 {
		return nil, errors.New("empty PDF data")
	}
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	return &PageIterator{doc: doc, n: doc.NumPage()}, nil
}

// Len is the page count reported by the document.
func (it *PageIterator) Len() int {
	return it.n
}

func (it *PageIterator) Next() bool {
	if it.err != nil || it.next >= it.n {
		return false
	}
	text, err := it.doc.Text(it.next)
	if err != nil {
		text = ""
	}
	it.next++
	it.cur = models.PdfPage{Number: it.next, Text: text}
	return true
}

func (it *PageIterator) Page() models.PdfPage {
	return it.cur
}

func (it *PageIterator) Err() error {
	return it.err
}

func (it *PageIterator) Close() error {
	return it.doc.Close()
}

// RenderPagePNG renders the given 1-based pages to PNG images.
func RenderPagePNG(data []byte, pages []int, dpi float64) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	images := make([][]byte, 0, len(pages))
	for _, p := range pages {
		if p < 1 || p > doc.NumPage() {
			return nil, fmt.Errorf("page %d out of range (1-%d)", p, doc.NumPage())
		}
		img, err := doc.ImagePNG(p-1, dpi)
		if err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", p, err)
		}
		images = append(images, img)
	}
	return images, nil
}
