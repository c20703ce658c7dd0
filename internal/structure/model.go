// Package structure turns a decoded PDF into named sections and a catalog
// of figures, tables and images.
//
// Decoding produces an ordered list of Pages, each holding text Blocks and
// ImageBlocks. Segment and Detect are independent passes over the same
// pages. Extractor ties fetching, decoding and both passes together.
package structure

import "time"

// BBox is a rectangle in page coordinates.
type BBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Block is a contiguous run of text on a page. BBox is nil and FontSize is
// zero when the decoder cannot report them.
type Block struct {
	Text     string  `json:"text"`
	BBox     *BBox   `json:"bbox,omitempty"`
	FontSize float64 `json:"font_size,omitempty"`
}

// ImageBlock is a raster region detected on a page.
type ImageBlock struct {
	BBox   *BBox `json:"bbox,omitempty"`
	Width  int   `json:"width,omitempty"`
	Height int   `json:"height,omitempty"`
}

// Page is one decoded page. Number is 1-based.
type Page struct {
	Number int          `json:"page_number"`
	Blocks []Block      `json:"blocks"`
	Images []ImageBlock `json:"image_blocks"`
}

// Section is a named span of the document.
type Section struct {
	Title              string `json:"title" yaml:"title"`
	Content            string `json:"content" yaml:"content"`
	StartPage          int    `json:"page" yaml:"page"`
	ReadingTimeMinutes int    `json:"reading_time" yaml:"reading_time"`
}

// Kind classifies a Figure entry.
type Kind string

const (
	KindFigure Kind = "figure"
	KindTable  Kind = "table"
	KindImage  Kind = "image"
)

// Figure is a caption-derived figure or table, or a raw image region.
type Figure struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Kind        Kind   `json:"type" yaml:"type"`
	Page        int    `json:"page" yaml:"page"`
}

// Result is the outcome of one extraction. It is never mutated after
// Extract returns.
type Result struct {
	Success          bool          `json:"success" yaml:"success"`
	PaperID          string        `json:"paper_id,omitempty" yaml:"paper_id,omitempty"`
	Sections         []Section     `json:"sections" yaml:"sections"`
	Figures          []Figure      `json:"figures" yaml:"figures"`
	TotalPages       int           `json:"total_pages" yaml:"total_pages"`
	ExtractionMethod string        `json:"extraction_method,omitempty" yaml:"extraction_method,omitempty"`
	ProcessingTime   time.Duration `json:"processing_time_ns,omitempty" yaml:"processing_time,omitempty"`
	Error            string        `json:"error,omitempty" yaml:"error,omitempty"`
}

func failed(err error) *Result {
	return &Result{
		Success:  false,
		Sections: []Section{},
		Figures:  []Figure{},
		Error:    err.Error(),
	}
}
