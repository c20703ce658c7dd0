package structure

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// StreamDecoder scrapes text operators out of each page's content stream.
// It yields one text-only block per page and is the decoder of last resort.
type StreamDecoder struct{}

func (StreamDecoder) Name() string { return "stream" }

// Decode implements Decoder.
func (StreamDecoder) Decode(ctx context.Context, path string) ([]Page, error) {
	pc, err := readContext(path)
	if err != nil {
		return nil, err
	}

	pages := make([]Page, 0, pc.PageCount)
	for nr := 1; nr <= pc.PageCount; nr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := Page{Number: nr}
		if text := pageText(pc, nr); text != "" {
			page.Blocks = []Block{{Text: text}}
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func readContext(path string) (*model.Context, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pc, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	return pc, nil
}

// pageImagesByNumber maps page number to image regions. Errors yield an
// empty map since images are optional enrichment.
func pageImagesByNumber(path string) map[int][]ImageBlock {
	out := make(map[int][]ImageBlock)
	pc, err := readContext(path)
	if err != nil || pc.Optimize == nil {
		return out
	}
	for nr := 1; nr <= pc.PageCount; nr++ {
		for _, objNr := range pdfcpu.ImageObjNrs(pc, nr) {
			out[nr] = append(out[nr], imageBlock(pc, objNr))
		}
	}
	return out
}

func imageBlock(pc *model.Context, objNr int) ImageBlock {
	var img ImageBlock
	entry, ok := pc.Table[objNr]
	if !ok || entry == nil {
		return img
	}
	sd, ok := entry.Object.(types.StreamDict)
	if !ok {
		return img
	}
	if w := sd.IntEntry("Width"); w != nil {
		img.Width = *w
	}
	if h := sd.IntEntry("Height"); h != nil {
		img.Height = *h
	}
	return img
}

func pageText(pc *model.Context, nr int) string {
	r, err := pdfcpu.ExtractPageContent(pc, nr)
	if err != nil || r == nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return scrapeText(data)
}

// scrapeText pulls string literals shown by Tj, TJ and ' and turns
// positioning operators into whitespace.
func scrapeText(data []byte) string {
	var sb strings.Builder
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		switch {
		case len(line) == 0:
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, lit := range literals(line) {
				sb.WriteString(unescape(lit))
			}
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			for _, lit := range literals(line) {
				sb.WriteByte('\n')
				sb.WriteString(unescape(lit))
			}
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")):
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		case bytes.Equal(line, []byte("T*")):
			sb.WriteByte('\n')
		}
	}
	return collapseSpace(sb.String())
}

// literals returns the raw bodies of the literal strings in line.
// Escaped parentheses stay inside the literal and balanced unescaped
// ones nest. An unterminated literal runs to the end of the line.
func literals(line []byte) [][]byte {
	var out [][]byte
	for i := 0; i < len(line); i++ {
		if line[i] != '(' {
			continue
		}
		start, depth := i+1, 1
		for i++; i < len(line); i++ {
			switch line[i] {
			case '\\':
				i++
			case '(':
				depth++
			case ')':
				depth--
			}
			if depth == 0 {
				break
			}
		}
		end := min(i, len(line))
		out = append(out, line[start:end])
	}
	return out
}

// unescape decodes the backslash escapes of a PDF literal string.
func unescape(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch c := raw[i]; c {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(c)
		default:
			if c < '0' || c > '7' {
				sb.WriteByte(c)
				continue
			}
			val := int(c - '0')
			for k := 0; k < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; k++ {
				i++
				val = val*8 + int(raw[i]-'0')
			}
			sb.WriteByte(byte(val))
		}
	}
	return sb.String()
}

func collapseSpace(text string) string {
	var sb strings.Builder
	space := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			if !space && sb.Len() > 0 {
				sb.WriteByte(' ')
				space = true
			}
		case unicode.IsPrint(r):
			sb.WriteRune(r)
			space = false
		}
	}
	return strings.TrimSpace(sb.String())
}
