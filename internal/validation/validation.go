// Package validation checks request payloads against their struct tags and
// reports failures keyed by JSON field name.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shelfkeeper/apiserver/types"
)

// Error is a field-keyed set of validation messages.
type Error struct {
	Fields map[string][]string
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], ", ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a message for the given field.
func (e *Error) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// Merge copies the messages of other for fields e does not report yet.
func (e *Error) Merge(other *Error) {
	if other == nil {
		return
	}
	for field, messages := range other.Fields {
		if _, ok := e.Fields[field]; ok {
			continue
		}
		for _, m := range messages {
			e.Add(field, m)
		}
	}
}

// FieldError builds an Error holding a single message.
func FieldError(field, message string) *Error {
	e := &Error{}
	e.Add(field, message)
	return e
}

// Validator wraps a configured go-playground validator. It is safe for
// concurrent use.
type Validator struct {
	v *validator.Validate
}

// New returns a Validator that names fields by their json tag and knows the
// custom rules used by the request types.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("bookdate", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		_, err := types.ParseBookDate(value)
		return err == nil
	})
	return &Validator{v: v}
}

// Struct validates s and returns a *Error when any rule fails.
func (val *Validator) Struct(s any) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := &Error{}
	for _, fe := range fieldErrs {
		out.Add(rootField(fe.Field()), message(fe))
	}
	return out
}

// rootField maps "genre[2]" to "genre" so element errors are reported on
// the list they belong to.
func rootField(field string) string {
	if i := strings.IndexByte(field, '['); i > 0 {
		return field[:i]
	}
	return field
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		if strings.Contains(fe.Field(), "[") {
			return "must not contain empty values"
		}
		return "is required"
	case "email":
		return "must be a valid email address"
	case "bookdate":
		return "must be a date in YYYY-MM-DD or RFC 3339 format"
	case "min":
		return boundMessage(fe, "at least")
	case "max":
		return boundMessage(fe, "at most")
	default:
		return fmt.Sprintf("failed on %s", fe.Tag())
	}
}

func boundMessage(fe validator.FieldError, bound string) string {
	switch fe.Kind() {
	case reflect.String:
		if fe.Tag() == "min" && fe.Param() == "1" {
			return "must not be empty"
		}
		return fmt.Sprintf("must contain %s %s characters", bound, fe.Param())
	case reflect.Slice, reflect.Array, reflect.Map:
		return fmt.Sprintf("must contain %s %s items", bound, fe.Param())
	default:
		return fmt.Sprintf("must be %s %s", bound, fe.Param())
	}
}
