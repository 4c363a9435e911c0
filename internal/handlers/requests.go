package handlers

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CustomValidator wraps the go-playground/validator library to implement Echo's Validator interface.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new CustomValidator around v. A nil v gets NewValidate().
func NewValidator(v *validator.Validate) *CustomValidator {
	if v == nil {
		v = NewValidate()
	}
	return &CustomValidator{validator: v}
}

// Validate implements the echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// NewValidate returns a validator that reports fields by their JSON names,
// so error maps use the same keys clients send.
func NewValidate() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// fieldMessages maps "field.tag" to the message shown to clients.
var fieldMessages = map[string]string{
	"email.required":    "Please provide a valid email",
	"email.email":       "Please provide a valid email",
	"password.required": "Password is required",
	"password.min":      "Password must be at least 6 characters long",
	"name.required":     "Name is required",
	"name.max":          "Name must be at most 100 characters long",
	"limit.gte":         "Limit must not be negative",
	"skip.gte":          "Skip must not be negative",
}

// ValidationMessages turns a validator error into a field -> message map.
// It returns nil for errors that did not come from the validator.
func ValidationMessages(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := out[fe.Field()]; seen {
			continue
		}
		if msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]; ok {
			out[fe.Field()] = msg
			continue
		}
		out[fe.Field()] = fe.Field() + " is invalid"
	}
	return out
}

// HistoryQuery is the query of the history endpoint. Zero values select the defaults.
type HistoryQuery struct {
	Limit int `query:"limit" json:"limit" validate:"gte=0"`
	Skip  int `query:"skip" json:"skip" validate:"gte=0"`
}
