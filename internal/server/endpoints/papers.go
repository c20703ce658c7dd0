package endpoints

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/paperpulse/internal/api"
	"github.com/jackzampolin/paperpulse/internal/arxiv"
	"github.com/jackzampolin/paperpulse/internal/store"
	"github.com/jackzampolin/paperpulse/internal/summarize"
	"github.com/jackzampolin/paperpulse/internal/svcctx"
	"github.com/jackzampolin/paperpulse/internal/types"
)

// Search bounds.
const (
	DefaultSearchDays = 7
	MaxSearchDays     = 30
	MaxSearchLimit    = 200
)

// SearchResponse is the response for GET /api/papers/search.
type SearchResponse struct {
	Keyword string        `json:"keyword"`
	Days    int           `json:"days"`
	Papers  []types.Paper `json:"papers"`
}

// Table renders the papers as rows.
func (s SearchResponse) Table() ([]string, [][]string) {
	return PaperRows(s.Papers)
}

// PaperRows renders papers for table output.
func PaperRows(papers []types.Paper) ([]string, [][]string) {
	rows := make([][]string, 0, len(papers))
	for _, p := range papers {
		rows = append(rows, []string{p.ID, p.PublishedDate(), p.Title, strings.Join(p.KeywordsMatched, ", ")})
	}
	return []string{"ID", "Published", "Title", "Keywords"}, rows
}

// SearchPapersEndpoint handles GET /api/papers/search.
type SearchPapersEndpoint struct{}

func (e *SearchPapersEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/papers/search", e.handler
}

func (e *SearchPapersEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Search recent papers
//	@Tags			papers
//	@Produce		json
//	@Param			keyword	query		string	true	"Keyword or phrase"
//	@Param			days	query		int		false	"Days back (default 7, max 30)"
//	@Param			limit	query		int		false	"Maximum results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Router			/api/papers/search [get]
func (e *SearchPapersEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	keyword := strings.TrimSpace(q.Get("keyword"))
	if keyword == "" {
		writeError(w, http.StatusBadRequest, "keyword is required")
		return
	}

	days, err := intParam(q, "days", DefaultSearchDays)
	if err != nil || days < 1 || days > MaxSearchDays {
		writeError(w, http.StatusBadRequest, "days must be between 1 and 30")
		return
	}
	limit, err := intParam(q, "limit", arxiv.DefaultMaxResults)
	if err != nil || limit < 1 || limit > MaxSearchLimit {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 200")
		return
	}

	searcher := svcctx.SearcherFrom(r.Context())
	if searcher == nil {
		writeError(w, http.StatusServiceUnavailable, "searcher not initialized")
		return
	}

	papers, err := searcher.Search(r.Context(), keyword, days, limit)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if papers == nil {
		papers = []types.Paper{}
	}

	writeJSON(w, http.StatusOK, SearchResponse{Keyword: keyword, Days: days, Papers: papers})
}

func (e *SearchPapersEndpoint) Command(getServerURL func() string) *cobra.Command {
	var days, limit int
	cmd := &cobra.Command{
		Use:   "search <keyword>",
		Short: "Search arXiv for recent papers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			query := url.Values{}
			query.Set("keyword", strings.Join(args, " "))
			query.Set("days", strconv.Itoa(days))
			query.Set("limit", strconv.Itoa(limit))
			var resp SearchResponse
			if err := client.GetQuery(cmd.Context(), "/api/papers/search", query, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().IntVar(&days, "days", DefaultSearchDays, "Days back to search")
	cmd.Flags().IntVar(&limit, "limit", arxiv.DefaultMaxResults, "Maximum results")
	return cmd
}

// AnalyzeRequest is the request body for POST /api/papers/analyze. Either
// Paper or PaperID must be set; PaperID is looked up in the store.
type AnalyzeRequest struct {
	PaperID string       `json:"paperId,omitempty"`
	Paper   *types.Paper `json:"paper,omitempty"`
}

// AnalyzePaperEndpoint handles POST /api/papers/analyze.
type AnalyzePaperEndpoint struct{}

func (e *AnalyzePaperEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/papers/analyze", e.handler
}

func (e *AnalyzePaperEndpoint) RequiresInit() bool { return true }

func (e *AnalyzePaperEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	analyzer := svcctx.AnalyzerFrom(r.Context())
	if analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, "analyzer not initialized")
		return
	}

	var paper types.Paper
	switch {
	case req.Paper != nil:
		paper = *req.Paper
	case req.PaperID != "":
		st := svcctx.StoreFrom(r.Context())
		if st == nil {
			writeError(w, http.StatusServiceUnavailable, "store not configured, send the paper inline")
			return
		}
		p, err := st.Paper(r.Context(), req.PaperID)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "paper not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		paper = p
	default:
		writeError(w, http.StatusBadRequest, "paper or paperId is required")
		return
	}
	if paper.Title == "" && paper.Abstract == "" {
		writeError(w, http.StatusBadRequest, "paper needs a title or abstract")
		return
	}

	writeJSON(w, http.StatusOK, analyzer.Analyze(r.Context(), paper))
}

func (e *AnalyzePaperEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <paper-id>",
		Short: "Generate a structured analysis of a stored paper",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var analysis summarize.Analysis
			if err := client.Post(cmd.Context(), "/api/papers/analyze", AnalyzeRequest{PaperID: args[0]}, &analysis); err != nil {
				return err
			}
			return api.Output(analysis)
		},
	}
}

func intParam(q url.Values, key string, def int) (int, error) {
	v := q.Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
