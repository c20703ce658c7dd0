package endpoints

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/paperpulse/internal/api"
	"github.com/jackzampolin/paperpulse/internal/store"
	"github.com/jackzampolin/paperpulse/internal/svcctx"
)

// SetActiveRequest is the request body for PATCH /api/subscriptions/{id}.
type SetActiveRequest struct {
	Active *bool `json:"active"`
}

// SetActiveResponse echoes the applied change.
type SetActiveResponse struct {
	ID     string `json:"id"`
	Active bool   `json:"active"`
}

// SetSubscriptionActiveEndpoint handles PATCH /api/subscriptions/{id}.
type SetSubscriptionActiveEndpoint struct{}

func (e *SetSubscriptionActiveEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PATCH", "/api/subscriptions/{id}", e.handler
}

func (e *SetSubscriptionActiveEndpoint) RequiresInit() bool { return true }

func (e *SetSubscriptionActiveEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "subscription id is required")
		return
	}

	var req SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Active == nil {
		writeError(w, http.StatusBadRequest, "body must contain active")
		return
	}

	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not configured")
		return
	}

	err := st.SetSubscriptionActive(r.Context(), id, *req.Active)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "subscription not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SetActiveResponse{ID: id, Active: *req.Active})
}

func (e *SetSubscriptionActiveEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "set-active <id> <true|false>",
		Short: "Activate or deactivate a subscription",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			active, err := strconv.ParseBool(args[1])
			if err != nil {
				return err
			}
			client := api.NewClient(getServerURL())
			var resp SetActiveResponse
			if err := client.Patch(cmd.Context(), "/api/subscriptions/"+args[0], SetActiveRequest{Active: &active}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
