package structure

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// MuPDFDecoder extracts plain text per page through MuPDF. Blocks carry no
// position or font information.
type MuPDFDecoder struct{}

func (MuPDFDecoder) Name() string { return "mupdf" }

// Decode implements Decoder.
func (MuPDFDecoder) Decode(ctx context.Context, path string) ([]Page, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	pages := make([]Page, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := doc.Text(i)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		page := Page{Number: i + 1}
		for _, para := range splitParagraphs(text) {
			page.Blocks = append(page.Blocks, Block{Text: para})
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// splitParagraphs breaks page text on blank lines. A short first line of a
// multi-line paragraph becomes its own block so that run-in headings stay
// separable from the body that follows them.
func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var out []string
	for _, para := range strings.Split(text, "\n\n") {
		lines := nonEmptyLines(para)
		if len(lines) == 0 {
			continue
		}
		if len(lines) > 1 && len(lines[0]) < MaxHeaderLen {
			out = append(out, lines[0])
			lines = lines[1:]
		}
		out = append(out, strings.Join(lines, "\n"))
	}
	return out
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// DefaultDecoders returns the layout, mupdf and stream decoders in
// fallback order.
func DefaultDecoders() []Decoder {
	return []Decoder{NewLayoutDecoder(), MuPDFDecoder{}, StreamDecoder{}}
}
