package httpapi

import (
	"net/http"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
)

const defaultRecentReadings = 20

func (a *API) ingestReading(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	in, err := models.DecodeReadingPayload(body)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	reading, err := a.Ingest.Add(in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(reading))
}

// latestReading serves the cache first and falls back to the store.
func (a *API) latestReading(w http.ResponseWriter, r *http.Request) {
	if reading, ok := a.Cache.Latest(); ok {
		writeJSON(w, http.StatusOK, Ok(reading))
		return
	}
	stored, err := a.Store.LatestReadings(r.Context(), 1)
	if err != nil {
		a.writeError(w, r, models.NewError(models.CodePersistence, "store unavailable", err))
		return
	}
	if len(stored) == 0 {
		a.writeError(w, r, models.NewError(models.CodeNotFound, "no readings yet", nil))
		return
	}
	writeJSON(w, http.StatusOK, Ok(stored[len(stored)-1]))
}

// listReadings returns cached readings at or after ?since=, or the most
// recent ?limit= readings when since is absent.
func (a *API) listReadings(w http.ResponseWriter, r *http.Request) {
	var readings []models.Reading
	if since := r.URL.Query().Get("since"); since != "" {
		t, err := a.Engine.Normalize(since)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		readings = a.Cache.Since(t)
	} else {
		readings = a.Cache.Recent(parseInt(r.URL.Query().Get("limit"), defaultRecentReadings))
	}
	if readings == nil {
		readings = []models.Reading{}
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"readings": readings,
		"count":    len(readings),
	}))
}

func (a *API) cacheStats(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{"cache": a.Cache.Stats()}
	if a.WriteBehind != nil {
		resp["write_behind"] = a.WriteBehind()
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}
