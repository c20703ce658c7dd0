package structure

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrNoPages is returned by a decoder that opened the document but found
// nothing to extract.
var ErrNoPages = errors.New("no pages decoded")

// Decoder turns a PDF file on disk into pages of blocks.
type Decoder interface {
	// Name identifies the strategy in Result.ExtractionMethod.
	Name() string
	Decode(ctx context.Context, path string) ([]Page, error)
}

// Fetcher opens a document by URI.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) (io.ReadCloser, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc struct {
	Label string
	Fn    func(ctx context.Context, path string) ([]Page, error)
}

func (d DecoderFunc) Name() string { return d.Label }

func (d DecoderFunc) Decode(ctx context.Context, path string) ([]Page, error) {
	return d.Fn(ctx, path)
}

// safeDecode runs a decoder and converts panics into errors. Several PDF
// libraries panic on malformed input.
func safeDecode(ctx context.Context, d Decoder, path string) (pages []Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%s decoder panicked: %v", d.Name(), r)
		}
	}()
	pages, err = d.Decode(ctx, path)
	if err == nil && len(pages) == 0 {
		err = ErrNoPages
	}
	return pages, err
}
