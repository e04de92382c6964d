package httpapi

import (
	"errors"
	"net/http"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/repository"
)

func (a *API) listCumulative(w http.ResponseWriter, r *http.Request) {
	summaries, err := a.Store.ListSummaries(r.Context())
	if err != nil {
		a.writeError(w, r, models.NewError(models.CodePersistence, "failed to list summaries", err))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"summaries": summaries,
		"count":     len(summaries),
	}))
}

func (a *API) getCumulative(w http.ResponseWriter, r *http.Request) {
	cs, err := a.Store.GetSummary(r.Context(), r.PathValue("employee_id"))
	if errors.Is(err, repository.ErrNotFound) {
		a.writeError(w, r, models.NewError(models.CodeNotFound, "no cumulative summary for employee", nil))
		return
	}
	if err != nil {
		a.writeError(w, r, models.NewError(models.CodePersistence, "failed to read summary", err))
		return
	}
	writeJSON(w, http.StatusOK, Ok(cs))
}

type recomputeRequest struct {
	EmployeeID string `json:"employee_id"`
}

// recompute forces a pass for one employee or for everyone.
func (a *API) recompute(w http.ResponseWriter, r *http.Request) {
	var req recomputeRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.EmployeeID == "" {
		req.EmployeeID = r.URL.Query().Get("employee_id")
	}
	res, err := a.Scheduler.ForceUpdate(r.Context(), req.EmployeeID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}
