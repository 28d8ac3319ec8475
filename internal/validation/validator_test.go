// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package validation

import (
	"strings"
	"testing"
)

type listingForm struct {
	Title     string `json:"title" validate:"notblank,max=20"`
	Price     string `json:"price" validate:"required,numeric,positive"`
	Stock     string `json:"stock" validate:"required,number"`
	Condition string `json:"condition" validate:"omitempty,oneof=new good poor"`
	Contact   string `json:"contact" validate:"omitempty,email"`
}

func TestValidateStruct(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     listingForm
		wantField string
		wantTag   string
	}{
		{"valid", listingForm{Title: "Dune", Price: "12.50", Stock: "3"}, "", ""},
		{"blank title", listingForm{Title: "   ", Price: "1", Stock: "1"}, "title", "notblank"},
		{"long title", listingForm{Title: strings.Repeat("x", 21), Price: "4", Stock: "1"}, "title", "max"},
		{"missing price", listingForm{Title: "Dune", Stock: "1"}, "price", "required"},
		{"text price", listingForm{Title: "Dune", Price: "cheap", Stock: "1"}, "price", "numeric"},
		{"zero price", listingForm{Title: "Dune", Price: "0", Stock: "1"}, "price", "positive"},
		{"negative price", listingForm{Title: "Dune", Price: "-4", Stock: "1"}, "price", "positive"},
		{"fractional stock", listingForm{Title: "Dune", Price: "4", Stock: "1.5"}, "stock", "number"},
		{"unknown condition", listingForm{Title: "Dune", Price: "4", Stock: "1", Condition: "mint"}, "condition", "oneof"},
		{"bad contact", listingForm{Title: "Dune", Price: "4", Stock: "1", Contact: "nope"}, "contact", "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			verr := ValidateStruct(&tt.input)
			if tt.wantField == "" {
				if verr != nil {
					t.Fatalf("ValidateStruct() = %v, want nil", verr)
				}
				return
			}
			if verr == nil {
				t.Fatalf("ValidateStruct() = nil, want error on %s", tt.wantField)
			}
			if !verr.HasField(tt.wantField) {
				t.Fatalf("HasField(%q) = false, errors %v", tt.wantField, verr)
			}
			if got := verr.Fields[0].Tag; got != tt.wantTag {
				t.Errorf("Tag = %q, want %q", got, tt.wantTag)
			}
		})
	}
}

func TestPositive_NumericKinds(t *testing.T) {
	t.Parallel()

	type counts struct {
		I int     `validate:"positive"`
		U uint    `validate:"positive"`
		F float64 `validate:"positive"`
	}

	if verr := ValidateStruct(&counts{I: 1, U: 1, F: 0.1}); verr != nil {
		t.Errorf("ValidateStruct() = %v, want nil", verr)
	}
	verr := ValidateStruct(&counts{F: -1})
	if verr == nil || len(verr.Fields) != 3 {
		t.Fatalf("ValidateStruct() = %v, want three errors", verr)
	}
}

func TestRequestValidationError_Messages(t *testing.T) {
	t.Parallel()

	verr := ValidateStruct(&listingForm{Title: strings.Repeat("x", 30)})
	if verr == nil {
		t.Fatal("ValidateStruct() = nil, want errors")
	}

	tests := map[string]string{
		"title": "title must be at most 20 characters",
		"price": "price is required",
		"stock": "stock is required",
		"other": "",
	}
	for field, want := range tests {
		if got := verr.Message(field); got != want {
			t.Errorf("Message(%q) = %q, want %q", field, got, want)
		}
	}
	if got := verr.Error(); !strings.Contains(got, "; price is required") {
		t.Errorf("Error() = %q, want messages joined by ;", got)
	}
}

func TestNewFieldError(t *testing.T) {
	t.Parallel()

	verr := NewFieldError("content", "required", "write something or attach an image")
	if !verr.HasField("content") {
		t.Error("HasField(content) = false, want true")
	}
	if got := verr.Error(); got != "write something or attach an image" {
		t.Errorf("Error() = %q", got)
	}
	if (&RequestValidationError{}).Error() != "validation failed" {
		t.Error("empty error should still describe itself")
	}
}

func TestValidateStruct_NotAStruct(t *testing.T) {
	t.Parallel()

	verr := ValidateStruct("title")
	if verr == nil || verr.Fields[0].Tag != "invalid" {
		t.Errorf("ValidateStruct(string) = %v, want invalid", verr)
	}
}
