package api

import (
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/ghosttrack/ghosttrack/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeServiceError maps service error kinds onto response codes.
// Validation failures are the client's fault; everything else, including
// any storage failure, is a server error and is never masked as success.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case apperr.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case apperr.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func getSiteParam(r *http.Request) string {
	return r.URL.Query().Get("site_id")
}

func getLimitParam(r *http.Request, defaultVal int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if limit, err := strconv.Atoi(l); err == nil && limit > 0 && limit <= 1000 {
			return limit
		}
	}
	return defaultVal
}

// getDateRangeParams parses optional start_date/end_date query params.
// Accepts RFC3339 or plain dates; zero times mean "unbounded".
func getDateRangeParams(r *http.Request) (start, end time.Time) {
	start = parseDateParam(r.URL.Query().Get("start_date"), false)
	end = parseDateParam(r.URL.Query().Get("end_date"), true)
	return start, end
}

func parseDateParam(value string, endOfDay bool) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		if endOfDay {
			// Inclusive range: a bare end date covers the whole day
			return t.Add(24*time.Hour - time.Millisecond)
		}
		return t
	}
	return time.Time{}
}
