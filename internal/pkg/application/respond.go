package application

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/apperrors"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/iot"
)

type errorBody struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details"`
	Timestamp time.Time              `json:"timestamp"`
}

type errorEnvelope struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

//writeError maps err onto the error envelope. Errors without a kind are logged and reported
//without their message.
func writeError(w http.ResponseWriter, r *http.Request, log logging.Logger, err error) {
	body := errorBody{
		Code:      apperrors.KindInternal.Code(),
		Message:   "An unexpected error occurred",
		Details:   map[string]interface{}{},
		Timestamp: time.Now().UTC(),
	}
	status := http.StatusInternalServerError

	var appErr *apperrors.Error
	if errors.As(err, &appErr) && appErr.Kind != apperrors.KindInternal {
		body.Code = appErr.Kind.Code()
		body.Message = appErr.Message
		if appErr.Details != nil {
			body.Details = appErr.Details
		}
		status = appErr.Kind.HTTPStatus()
	} else {
		log.Errorf("%s %s failed: %s", r.Method, r.URL.Path, err.Error())
	}

	writeJSON(w, status, errorEnvelope{Success: false, Error: body})
}

func decodeBody(r *http.Request, into interface{}) error {
	if r.Body == nil {
		return apperrors.Validation("Request body is required")
	}

	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		return apperrors.Validation("Invalid request body: %s", err.Error())
	}

	return nil
}

func queryInt(r *http.Request, name string) (int, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return 0, nil
	}

	i, err := strconv.Atoi(value)
	if err != nil {
		return 0, apperrors.Validation("Query parameter %s must be an integer", name).WithDetail("parameter", name)
	}

	return i, nil
}

func queryBool(r *http.Request, name string) (*bool, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return nil, nil
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return nil, apperrors.Validation("Query parameter %s must be true or false", name).WithDetail("parameter", name)
	}

	return &b, nil
}

func queryTime(r *http.Request, name string) (*time.Time, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return nil, nil
	}

	t, err := iot.ParseTimestamp(value)
	if err != nil {
		return nil, apperrors.Validation("Query parameter %s must be an ISO 8601 timestamp", name).WithDetail("parameter", name)
	}

	return &t, nil
}

//page holds the common bounds and paging query parameters
type page struct {
	Start  *time.Time
	End    *time.Time
	Limit  int
	Offset int
}

func queryPage(r *http.Request) (page, error) {
	var p page
	var err error

	if p.Start, err = queryTime(r, "start_date"); err != nil {
		return p, err
	}
	if p.End, err = queryTime(r, "end_date"); err != nil {
		return p, err
	}
	if p.Limit, err = queryInt(r, "limit"); err != nil {
		return p, err
	}
	p.Offset, err = queryInt(r, "offset")

	return p, err
}
