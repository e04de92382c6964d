package httpapi

import (
	"net/http"
	"strconv"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
)

func (a *API) listAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	unread, _ := strconv.ParseBool(q.Get("unread_only"))
	res, err := a.Alerts.List(r.Context(), models.AlertFilter{
		EmployeeID: q.Get("employee_id"),
		UnreadOnly: unread,
		Limit:      parseInt(q.Get("limit"), 0),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

func (a *API) acknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		a.writeError(w, r, models.ValidationError("alert id must be a positive integer"))
		return
	}
	if err := a.Alerts.Acknowledge(r.Context(), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"id": id, "acknowledged": true}))
}

type acknowledgeAllRequest struct {
	EmployeeID string `json:"employee_id"`
}

func (a *API) acknowledgeAll(w http.ResponseWriter, r *http.Request) {
	var req acknowledgeAllRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	n, err := a.Alerts.AcknowledgeAll(r.Context(), req.EmployeeID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"acknowledged": n}))
}
