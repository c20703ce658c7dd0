package structure

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// LayoutDecoder reads positioned glyph runs and groups them into rows and
// then blocks. Image regions come from the pdfcpu object table.
type LayoutDecoder struct {
	// RowTolerance is the Y distance within which runs share a row.
	RowTolerance float64
	// WordGap is the fraction of font size that separates two words.
	WordGap float64
	// BlockGap is the multiple of line height that starts a new block.
	BlockGap float64
	// FontDelta is the font size change that starts a new block.
	FontDelta float64
}

// NewLayoutDecoder returns a LayoutDecoder with defaults tuned for
// single and two-column papers.
func NewLayoutDecoder() *LayoutDecoder {
	return &LayoutDecoder{
		RowTolerance: 3.0,
		WordGap:      0.3,
		BlockGap:     1.5,
		FontDelta:    1.0,
	}
}

func (d *LayoutDecoder) Name() string { return "layout" }

// Decode implements Decoder.
func (d *LayoutDecoder) Decode(ctx context.Context, path string) ([]Page, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	images := pageImagesByNumber(path)

	n := r.NumPage()
	pages := make([]Page, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := Page{Number: i, Images: images[i]}
		p := r.Page(i)
		if !p.V.IsNull() {
			page.Blocks = d.blocks(p.Content().Text)
		}
		pages = append(pages, page)
	}
	return pages, nil
}

type row struct {
	y, x0, x1 float64
	size      float64
	text      string
}

func (d *LayoutDecoder) blocks(runs []pdf.Text) []Block {
	rows := d.rows(runs)
	if len(rows) == 0 {
		return nil
	}

	var out []Block
	cur := []row{rows[0]}
	flush := func() {
		out = append(out, rowsToBlock(cur))
		cur = nil
	}
	for _, r := range rows[1:] {
		prev := cur[len(cur)-1]
		lineHeight := math.Max(prev.size, 1)
		if math.Abs(prev.y-r.y) > d.BlockGap*lineHeight || math.Abs(prev.size-r.size) > d.FontDelta {
			flush()
		}
		cur = append(cur, r)
	}
	flush()
	return out
}

// rows groups glyph runs by baseline, top of page first.
func (d *LayoutDecoder) rows(runs []pdf.Text) []row {
	var kept []pdf.Text
	for _, t := range runs {
		if strings.TrimSpace(t.S) != "" {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if math.Abs(kept[i].Y-kept[j].Y) > d.RowTolerance {
			return kept[i].Y > kept[j].Y
		}
		return kept[i].X < kept[j].X
	})

	var out []row
	var group []pdf.Text
	emit := func() {
		if len(group) > 0 {
			out = append(out, d.joinRow(group))
		}
		group = nil
	}
	for _, t := range kept {
		if len(group) > 0 && math.Abs(group[0].Y-t.Y) > d.RowTolerance {
			emit()
		}
		group = append(group, t)
	}
	emit()
	return out
}

func (d *LayoutDecoder) joinRow(runs []pdf.Text) row {
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].X < runs[j].X })

	var sb strings.Builder
	r := row{y: runs[0].Y, x0: runs[0].X, x1: runs[0].X + runs[0].W}
	sizes := make(map[float64]int)
	prevEnd := runs[0].X
	for i, t := range runs {
		if i > 0 && t.X-prevEnd > d.WordGap*math.Max(t.FontSize, 1) {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.S)
		prevEnd = t.X + t.W
		if prevEnd > r.x1 {
			r.x1 = prevEnd
		}
		sizes[math.Round(t.FontSize*10)/10] += len(t.S)
	}
	r.text = sb.String()
	r.size = dominant(sizes)
	return r
}

func rowsToBlock(rows []row) Block {
	lines := make([]string, len(rows))
	box := BBox{X0: rows[0].x0, Y0: rows[0].y, X1: rows[0].x1, Y1: rows[0].y + rows[0].size}
	sizes := make(map[float64]int)
	for i, r := range rows {
		lines[i] = strings.TrimSpace(r.text)
		box.X0 = math.Min(box.X0, r.x0)
		box.X1 = math.Max(box.X1, r.x1)
		box.Y0 = math.Min(box.Y0, r.y)
		box.Y1 = math.Max(box.Y1, r.y+r.size)
		sizes[r.size] += len(r.text)
	}
	return Block{
		Text:     strings.Join(lines, "\n"),
		BBox:     &box,
		FontSize: dominant(sizes),
	}
}

// dominant returns the key with the largest weight, preferring the smaller
// key on ties.
func dominant(weights map[float64]int) float64 {
	var best float64
	bestW := -1
	for k, w := range weights {
		if w > bestW || (w == bestW && k < best) {
			best, bestW = k, w
		}
	}
	return best
}
