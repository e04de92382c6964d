package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/repository"
)

func (a *API) startSession(w http.ResponseWriter, r *http.Request) {
	res, err := a.Sessions.StartOrResume(r.Context(), r.PathValue("employee_id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

func (a *API) closeSession(w http.ResponseWriter, r *http.Request) {
	res, err := a.Sessions.Close(r.Context(), r.PathValue("employee_id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

func (a *API) sessionHistory(w http.ResponseWriter, r *http.Request) {
	sessions, err := a.Queries.History(r.Context(), r.PathValue("employee_id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	}))
}

func (a *API) doseSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := a.Queries.DoseSummary(r.Context(), r.PathValue("employee_id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(summary))
}

type employeeRequest struct {
	Name       string `json:"name"`
	IsPregnant bool   `json:"is_pregnant"`
}

func (a *API) upsertEmployee(w http.ResponseWriter, r *http.Request) {
	var req employeeRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	e := &models.Employee{
		EmployeeID: r.PathValue("employee_id"),
		Name:       strings.TrimSpace(req.Name),
		IsPregnant: req.IsPregnant,
	}
	if err := a.Store.UpsertEmployee(r.Context(), e); err != nil {
		a.writeError(w, r, models.NewError(models.CodePersistence, "failed to save employee", err))
		return
	}
	writeJSON(w, http.StatusOK, Ok(e))
}

func (a *API) getEmployee(w http.ResponseWriter, r *http.Request) {
	e, err := a.Store.GetEmployee(r.Context(), r.PathValue("employee_id"))
	if errors.Is(err, repository.ErrNotFound) {
		a.writeError(w, r, models.NewError(models.CodeNotFound, "employee not found", nil))
		return
	}
	if err != nil {
		a.writeError(w, r, models.NewError(models.CodePersistence, "failed to read employee", err))
		return
	}
	writeJSON(w, http.StatusOK, Ok(e))
}
