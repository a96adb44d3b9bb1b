package documents

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Epistemic-Technology/rfp-mcp/models"
)

// Document types understood by the pipeline.
const (
	TypePDF     = "pdf"
	TypeXLSX    = "xlsx"
	TypeXLS     = "xls"
	TypeDOCX    = "docx"
	TypeHTML    = "html"
	TypeText    = "txt"
	TypeZip     = "zip"
	TypeUnknown = "unknown"

	// cap on extracted HTML text
	maxHTMLText   = 200_000
	maxUploadSize = 200 << 20
)

var oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// ErrNoSource is returned when a request names no document.
var ErrNoSource = errors.New("no document provided: set file_path, url or raw_data")

// DetectDocumentType determines the type of document from the raw data
// by checking magic bytes/headers
func DetectDocumentType(data []byte) string {
	if len(data) == 0 {
		return TypeUnknown
	}

	if len(data) < 4 {
		if isLikelyText(data) {
			return TypeText
		}
		return TypeUnknown
	}

	if bytes.HasPrefix(data, []byte("%PDF")) {
		return TypePDF
	}

	// Legacy Excel and Word share the OLE compound file header.
	if bytes.HasPrefix(data, oleMagic) {
		return TypeXLS
	}

	trimmed := bytes.TrimSpace(data)
	lower := bytes.ToLower(trimmed[:min(len(trimmed), 64)])
	if bytes.HasPrefix(lower, []byte("<!doctype html")) || bytes.HasPrefix(lower, []byte("<html")) {
		return TypeHTML
	}

	// ZIP containers: tell OOXML flavours apart by their part names.
	if data[0] == 0x50 && data[1] == 0x4B && (data[2] == 0x03 || data[2] == 0x05 || data[2] == 0x07) {
		return zipFlavour(data)
	}

	if isLikelyText(data) {
		return TypeText
	}
	return TypeUnknown
}

func zipFlavour(data []byte) string {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		// Truncated archive, fall back to scanning the local headers.
		switch {
		case bytes.Contains(data, []byte("xl/")):
			return TypeXLSX
		case bytes.Contains(data, []byte("word/")):
			return TypeDOCX
		}
		return TypeZip
	}
	for _, f := range r.File {
		switch {
		case strings.HasPrefix(f.Name, "xl/"):
			return TypeXLSX
		case strings.HasPrefix(f.Name, "word/"):
			return TypeDOCX
		}
	}
	return TypeZip
}

// isLikelyText checks if the data is likely plain text (no binary content)
func isLikelyText(data []byte) bool {
	if len(data) == 0 {
		return false
	}

	sampleSize := min(len(data), 512)
	sample := data[:sampleSize]

	if bytes.Contains(sample, []byte{0}) {
		return false
	}

	printable := 0
	for _, b := range sample {
		if (b >= 32 && b <= 126) || b >= 0x80 || b == '\n' || b == '\r' || b == '\t' {
			printable++
		}
	}
	return float64(printable)/float64(len(sample)) > 0.9
}

// Source names where a document comes from. Exactly one field should be set;
// RawData wins over FilePath, which wins over URL.
type Source struct {
	FilePath string
	URL      string
	RawData  []byte
	Name     string
}

// Load reads the document bytes and detects their type.
func Load(ctx context.Context, src Source) (models.RawDocument, error) {
	var (
		data []byte
		err  error
		name = src.Name
	)
	switch {
	case len(src.RawData) > 0:
		data = src.RawData
	case src.FilePath != "":
		data, err = os.ReadFile(src.FilePath)
		if err != nil {
			return models.RawDocument{}, fmt.Errorf("read %s: %w", src.FilePath, err)
		}
		if name == "" {
			name = filepath.Base(src.FilePath)
		}
	case src.URL != "":
		data, err = GetFromURL(ctx, src.URL)
		if err != nil {
			return models.RawDocument{}, err
		}
		if name == "" {
			name = src.URL
		}
	default:
		return models.RawDocument{}, ErrNoSource
	}

	if len(data) == 0 {
		return models.RawDocument{}, errors.New("document is empty")
	}
	return models.RawDocument{Data: data, Type: DetectDocumentType(data), Name: name}, nil
}

var httpClient = &http.Client{Timeout: 60 * time.Second}

// GetFromURL fetches document data from a URL
func GetFromURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: %s", url, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxUploadSize))
}

// HTMLText returns the readable text of an HTML page, one block per line.
// Scripts, styles and page chrome are dropped.
func HTMLText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript, nav, header, footer, svg, iframe").Remove()

	var lines []string
	doc.Find("body").Find("h1, h2, h3, h4, p, li, td, th, dd, dt, pre").Each(func(_ int, s *goquery.Selection) {
		// nested matches would repeat text
		if s.Find("p, li, td, th").Length() > 0 {
			return
		}
		if line := strings.Join(strings.Fields(s.Text()), " "); line != "" {
			lines = append(lines, line)
		}
	})
	text := strings.Join(lines, "\n")
	if text == "" {
		text = strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	}
	if len(text) > maxHTMLText {
		text = text[:maxHTMLText]
	}
	return text, nil
}

// PlainText returns the text of a txt or html document.
func PlainText(doc models.RawDocument) (string, error) {
	switch doc.Type {
	case TypeText:
		return string(doc.Data), nil
	case TypeHTML:
		return HTMLText(bytes.NewReader(doc.Data))
	default:
		return "", fmt.Errorf("%s documents have no plain text form", doc.Type)
	}
}
