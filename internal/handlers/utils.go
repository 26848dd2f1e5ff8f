package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shelfkeeper/apiserver/internal/services"
	"github.com/shelfkeeper/apiserver/internal/validation"
)

const maxJSONBodyBytes = 1 << 20

// Response is the success envelope.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Token   string `json:"token,omitempty"`
}

// ErrorResponse is the failure envelope. Fields is set for validation
// failures only.
type ErrorResponse struct {
	Success bool                `json:"success"`
	Error   string              `json:"error"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

// Healthz reports that the process is serving.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func writeValidationError(w http.ResponseWriter, verr *validation.Error) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:  "validation failed",
		Fields: verr.Fields,
	})
}

// writeServiceError maps a service error to its HTTP status. Unexpected
// errors are logged with the request logger and answered with an opaque
// message.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		writeValidationError(w, verr)
	case errors.Is(err, services.ErrConflict):
		writeError(w, http.StatusBadRequest, "email already registered, please login with it")
	case errors.Is(err, services.ErrUserNotFound):
		writeError(w, http.StatusBadRequest, "user not found")
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, "invalid login details, please try again")
	case errors.Is(err, services.ErrInvalidID):
		writeError(w, http.StatusBadRequest, "invalid id, please verify your id input")
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, "book not found")
	case errors.Is(err, services.ErrNoCover):
		writeError(w, http.StatusNotFound, "book has no cover")
	case errors.Is(err, services.ErrStorageDisabled):
		writeError(w, http.StatusServiceUnavailable, "cover storage is not configured")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// payloadValidator completes decode errors with the schema errors of the
// fields that did decode.
var payloadValidator = validation.New()

type normalizer interface {
	Normalize()
}

// decodeJSON reads a JSON object from the request body into the struct dst
// points to, field by field. A field holding a value of the wrong type is
// left zero and reported; the remaining fields are then validated so that a
// single response names every invalid field. Malformed bodies come back as
// *validation.Error on "body".
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		var (
			typeErr *json.UnmarshalTypeError
			maxErr  *http.MaxBytesError
		)
		switch {
		case errors.As(err, &maxErr):
			return validation.FieldError("body", "must not exceed 1 MiB")
		case errors.Is(err, io.EOF):
			return validation.FieldError("body", "is required")
		case errors.As(err, &typeErr):
			return validation.FieldError("body", "must be a JSON object")
		default:
			return validation.FieldError("body", "must be valid JSON")
		}
	}

	typeErrs := decodeFields(raw, dst)
	if typeErrs == nil {
		return nil
	}
	if n, ok := dst.(normalizer); ok {
		n.Normalize()
	}
	var schemaErrs *validation.Error
	if errors.As(payloadValidator.Struct(dst), &schemaErrs) {
		typeErrs.Merge(schemaErrs)
	}
	return typeErrs
}

// decodeFields assigns every json-tagged field of the struct dst points to
// from raw and returns the fields whose value did not fit.
func decodeFields(raw map[string]json.RawMessage, dst any) *validation.Error {
	v := reflect.ValueOf(dst).Elem()
	t := v.Type()

	var errs *validation.Error
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		name := strings.SplitN(sf.Tag.Get("json"), ",", 2)[0]
		if !sf.IsExported() || name == "" || name == "-" {
			continue
		}
		value, ok := raw[name]
		if !ok {
			continue
		}
		if err := json.Unmarshal(value, v.Field(i).Addr().Interface()); err != nil {
			if errs == nil {
				errs = &validation.Error{}
			}
			v.Field(i).SetZero()
			errs.Add(name, "must be "+kindName(sf.Type))
		}
	}
	return errs
}

func kindName(t reflect.Type) string {
	if t == nil {
		return "a valid value"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "a string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "an integer"
	case reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.Bool:
		return "a boolean"
	case reflect.Slice, reflect.Array:
		return "a list"
	default:
		return "an object"
	}
}
