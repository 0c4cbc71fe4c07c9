package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-planner/internal/api/middleware"
	"github.com/dvloznov/finance-planner/internal/domain"
)

const dateFormat = "2006-01-02"

// writeServiceError maps engine errors to HTTP statuses: validation 400,
// not found 404, everything else 500 with a generic message.
func writeServiceError(w http.ResponseWriter, log zerolog.Logger, err error, message string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		middleware.WriteError(w, http.StatusBadRequest, validationMessage(err))
	case errors.Is(err, domain.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, err.Error())
	default:
		log.Error().Err(err).Bool("store_error", domain.IsStoreError(err)).Msg(message)
		middleware.WriteError(w, http.StatusInternalServerError, message)
	}
}

// validationMessage returns the field messages without the wrapping context.
func validationMessage(err error) string {
	var single *domain.ValidationError
	if errors.As(err, &single) {
		return single.Error()
	}
	var many domain.ValidationErrors
	if errors.As(err, &many) {
		return many.Error()
	}
	return err.Error()
}

// parseTime accepts RFC3339 timestamps and plain dates. Plain dates are
// midnight in loc.
func parseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation(dateFormat, s, loc)
}

// asOfParam reads ?as_of=, defaulting to now.
func asOfParam(r *http.Request, now func() time.Time) (time.Time, error) {
	v := r.URL.Query().Get("as_of")
	if v == "" {
		return now(), nil
	}
	t, err := parseTime(v, time.Local)
	if err != nil {
		return time.Time{}, domain.NewValidationError("as_of", "expected YYYY-MM-DD or RFC3339: "+v)
	}
	return t, nil
}

func boolParam(r *http.Request, name string) (*bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, domain.NewValidationError(name, "expected true or false: "+v)
	}
	return &b, nil
}

// pageParams reads limit and offset. Malformed values are ignored.
func pageParams(r *http.Request) (limit, offset int) {
	query := r.URL.Query()
	if l, err := strconv.Atoi(query.Get("limit")); err == nil && l > 0 {
		limit = l
	}
	if o, err := strconv.Atoi(query.Get("offset")); err == nil && o > 0 {
		offset = o
	}
	return limit, offset
}
