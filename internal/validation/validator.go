// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// FieldError is one rejected form field.
type FieldError struct {
	// Field is the json name of the field, matching the form key.
	Field string
	// Tag is the rule that failed, e.g. "notblank" or "max".
	Tag string
	// Message is shown next to the field.
	Message string
}

// RequestValidationError lists every rejected field of one form. It is
// returned before any remote call is made.
type RequestValidationError struct {
	Fields []FieldError
}

// NewFieldError rejects a single field for a rule struct tags cannot express.
func NewFieldError(field, tag, message string) *RequestValidationError {
	return &RequestValidationError{Fields: []FieldError{{Field: field, Tag: tag, Message: message}}}
}

func (e *RequestValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	var b strings.Builder
	for i, f := range e.Fields {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(f.Message)
	}
	return b.String()
}

// HasField reports whether field was rejected.
func (e *RequestValidationError) HasField(field string) bool {
	_, ok := e.lookup(field)
	return ok
}

// Message returns the first message for field, or "" if it passed.
func (e *RequestValidationError) Message(field string) string {
	f, _ := e.lookup(field)
	return f.Message
}

func (e *RequestValidationError) lookup(field string) (FieldError, bool) {
	for _, f := range e.Fields {
		if f.Field == field {
			return f, true
		}
	}
	return FieldError{}, false
}

// Validator returns the shared validator. Struct metadata is cached per type.
var Validator = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	// Registration only fails on empty tag names.
	_ = v.RegisterValidation("positive", positive)
	_ = v.RegisterValidation("notblank", notBlank)
	return v
})

// positive accepts numbers above zero, and strings that parse as such, so
// form text can be checked before conversion.
func positive(fl validator.FieldLevel) bool {
	f := fl.Field()
	switch f.Kind() {
	case reflect.String:
		n, err := strconv.ParseFloat(strings.TrimSpace(f.String()), 64)
		return err == nil && n > 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return f.Int() > 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return f.Uint() > 0
	case reflect.Float32, reflect.Float64:
		return f.Float() > 0
	}
	return false
}

func notBlank(fl validator.FieldLevel) bool {
	f := fl.Field()
	return f.Kind() != reflect.String || strings.TrimSpace(f.String()) != ""
}

// ValidateStruct checks s against its validate tags. It returns nil when
// every field passes.
func ValidateStruct(s any) *RequestValidationError {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		// InvalidValidationError: s was not a struct.
		return NewFieldError("", "invalid", err.Error())
	}

	out := &RequestValidationError{Fields: make([]FieldError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: message(fe),
		})
	}
	return out
}

func message(fe validator.FieldError) string {
	name, param := fe.Field(), fe.Param()
	switch fe.Tag() {
	case "required", "notblank":
		return name + " is required"
	case "email":
		return name + " must be a valid email address"
	case "numeric":
		return name + " must be a number"
	case "number":
		return name + " must be a whole number"
	case "positive":
		return name + " must be greater than zero"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, param)
	case "min", "max":
		bound := "at least"
		if fe.Tag() == "max" {
			bound = "at most"
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be %s %s characters", name, bound, param)
		}
		return fmt.Sprintf("%s must be %s %s", name, bound, param)
	}
	return fmt.Sprintf("%s failed %s validation", name, fe.Tag())
}
