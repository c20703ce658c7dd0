package endpoints

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/paperpulse/internal/api"
	"github.com/jackzampolin/paperpulse/internal/structure"
	"github.com/jackzampolin/paperpulse/internal/svcctx"
)

// ArxivPDFBase is the default prefix for PDF URLs built from a paper ID.
const ArxivPDFBase = "https://arxiv.org/pdf/"

// ParsePDFRequest is the request body for POST /api/parse-pdf.
type ParsePDFRequest struct {
	PaperID string `json:"paperId"`
	PDFURL  string `json:"pdfUrl,omitempty"`
}

// ParsePDFEndpoint handles POST /api/parse-pdf. When the request has no
// pdfUrl, the URL is PDFBase followed by the paper ID.
type ParsePDFEndpoint struct {
	PDFBase string
}

func (e *ParsePDFEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/parse-pdf", e.handler
}

func (e *ParsePDFEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Extract document structure
//	@Description	Download a paper PDF and return its sections and figures
//	@Tags			papers
//	@Accept			json
//	@Produce		json
//	@Param			request	body		ParsePDFRequest	true	"Paper to parse"
//	@Success		200		{object}	structure.Result
//	@Failure		400		{object}	ErrorResponse	"missing paperId or non-http(s) pdfUrl"
//	@Failure		500		{object}	structure.Result
//	@Router			/api/parse-pdf [post]
func (e *ParsePDFEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req ParsePDFRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.PaperID = strings.TrimSpace(req.PaperID)
	if req.PaperID == "" {
		writeError(w, http.StatusBadRequest, "paperId is required")
		return
	}
	if req.PDFURL == "" {
		base := e.PDFBase
		if base == "" {
			base = ArxivPDFBase
		}
		req.PDFURL = base + req.PaperID
	}
	if u, err := url.Parse(req.PDFURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		writeError(w, http.StatusBadRequest, "pdfUrl must be an http(s) URL")
		return
	}

	extractor := svcctx.ExtractorFrom(r.Context())
	if extractor == nil {
		writeError(w, http.StatusServiceUnavailable, "extractor not initialized")
		return
	}

	res := extractor.ExtractURL(r.Context(), req.PDFURL)
	res.PaperID = req.PaperID
	if !res.Success {
		svcctx.LoggerFrom(r.Context()).Warn("pdf extraction failed",
			"paper_id", req.PaperID, "url", req.PDFURL, "error", res.Error)
		writeJSON(w, http.StatusInternalServerError, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (e *ParsePDFEndpoint) Command(getServerURL func() string) *cobra.Command {
	var pdfURL string
	cmd := &cobra.Command{
		Use:   "parse-pdf <paper-id>",
		Short: "Extract sections and figures from a paper PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var res structure.Result
			req := ParsePDFRequest{PaperID: args[0], PDFURL: pdfURL}
			if err := client.Post(cmd.Context(), "/api/parse-pdf", req, &res); err != nil {
				return err
			}
			return api.Output(res)
		},
	}
	cmd.Flags().StringVar(&pdfURL, "url", "", "PDF URL (default: the arXiv PDF for the paper id)")
	return cmd
}
