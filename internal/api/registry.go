package api

import (
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

// Registry holds all registered endpoints.
type Registry struct {
	endpoints []Endpoint
}

// NewRegistry creates a new endpoint registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds an endpoint to the registry.
func (r *Registry) Register(ep Endpoint) {
	r.endpoints = append(r.endpoints, ep)
}

// RegisterRoutes registers all endpoint HTTP routes with the given mux.
// initMiddleware wraps handlers that require full server initialization.
func (r *Registry) RegisterRoutes(mux *http.ServeMux, initMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	for _, ep := range r.endpoints {
		method, path, handler := ep.Route()
		if ep.RequiresInit() {
			handler = initMiddleware(handler)
		}
		mux.HandleFunc(method+" "+path, handler)
	}
}

// BuildCommands returns a cobra.Command tree for all registered endpoints.
// Commands are organized by their URL path structure.
// getServerURL is called at runtime to get the server URL.
func (r *Registry) BuildCommands(getServerURL func() string) *cobra.Command {
	apiCmd := &cobra.Command{
		Use:   "api",
		Short: "Commands that call the running server",
		Long: `API commands call the running PaperPulse server via HTTP.

These commands require a running server (paperpulse serve).
Use --server to specify a custom server URL.

Examples:
  paperpulse api health                        # Check server health
  paperpulse api papers search transformer     # Search recent papers
  paperpulse api parse-pdf 2401.00001          # Extract sections and figures`,
	}

	groups := map[string]*cobra.Command{}
	for _, ep := range r.endpoints {
		cmd := ep.Command(getServerURL)
		if cmd == nil {
			continue
		}
		_, path, _ := ep.Route()
		name := commandGroup(path)
		if name == "" {
			apiCmd.AddCommand(cmd)
			continue
		}
		group, ok := groups[name]
		if !ok {
			group = &cobra.Command{Use: name, Short: "Commands for " + name}
			groups[name] = group
			apiCmd.AddCommand(group)
		}
		group.AddCommand(cmd)
	}

	return apiCmd
}

// commandGroup returns the first path segment after /api/ when the path
// has more segments, so /api/papers/search groups under "papers".
func commandGroup(path string) string {
	rest, ok := strings.CutPrefix(path, "/api/")
	if !ok {
		return ""
	}
	group, _, nested := strings.Cut(rest, "/")
	if !nested {
		return ""
	}
	return group
}

// Endpoints returns all registered endpoints.
func (r *Registry) Endpoints() []Endpoint {
	return r.endpoints
}
