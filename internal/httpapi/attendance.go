package httpapi

import (
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/attendance"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
)

const maxImageBytes = 10 << 20

type attendanceRequest struct {
	EmployeeID string `json:"employee_id"`
	CheckType  string `json:"check_type"`
}

// registerAttendance accepts JSON {employee_id, check_type} or a multipart
// form with an "image" file and a "check_type" field.
func (a *API) registerAttendance(w http.ResponseWriter, r *http.Request) {
	var (
		reg *attendance.Registration
		err error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		reg, err = a.registerByImage(w, r)
	} else {
		var req attendanceRequest
		if err = readBodyJSON(r, maxBodyBytes, &req); err == nil {
			reg, err = a.Attendance.Register(r.Context(), req.EmployeeID, req.CheckType)
		}
	}
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(reg))
}

func (a *API) registerByImage(w http.ResponseWriter, r *http.Request) (*attendance.Registration, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		return nil, models.ValidationError("invalid multipart form")
	}
	file, hdr, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, models.ValidationError("image is required")
	}
	if err != nil {
		return nil, models.ValidationError("invalid image upload")
	}
	defer file.Close()

	sample, err := io.ReadAll(file)
	if err != nil {
		return nil, models.ValidationError("failed to read image")
	}
	return a.Attendance.RegisterByImage(r.Context(), sample, hdr.Filename, r.FormValue("check_type"))
}

func (a *API) attendanceStatus(w http.ResponseWriter, r *http.Request) {
	st, err := a.Attendance.Status(r.Context(), r.PathValue("employee_id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(st))
}
